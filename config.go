package remotenet

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/pacemaker-go/remotenet/internal/logctx"
)

const (
	// DefaultWaitTimeout is substituted when a caller passes 0 to
	// ReceiveMessage (and so to waitForFrame), per spec §4.3.
	DefaultWaitTimeout = 10 * time.Second
	// DefaultWaitTimeoutNegative is substituted when a caller passes a
	// negative total_timeout_ms to ReceiveMessage.
	DefaultWaitTimeoutNegative = 60 * time.Second

	// DefaultConnectTimeout bounds an asynchronous connect when the
	// caller does not specify one.
	DefaultConnectTimeout = 30 * time.Second
	// DefaultHandshakeTimeout bounds a secure handshake pump when the
	// caller does not specify one.
	DefaultHandshakeTimeout = 30 * time.Second
	// DefaultRemotePort is used when PCMK_remote_port is unset or
	// unparseable.
	DefaultRemotePort = 3121

	// connectPollFast is the reschedule interval used immediately after
	// an async connect() call returns success synchronously (spec §4.7.1).
	connectPollFast = 1 * time.Millisecond
	// connectPollSteady is the reschedule interval used for every other
	// progress check.
	connectPollSteady = 500 * time.Millisecond
	// handshakePollSlice is the handshake driver's readiness-poll
	// granularity (spec §4.6); the driver itself uses the secure package's
	// own pollSlice constant, which has the same value.
	handshakePollSlice = 1 * time.Second
)

// Option configures Dial or Listen (and the Sessions they build) via functional options,
// following this package's teacher's With*/Config convention.
type Option func(*Config)

// Config holds the tunables shared by Dial, Listen and Accept. The zero
// value is never used directly; defaultConfig() supplies sane defaults,
// and options layer on top of it.
type Config struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    *logctx.Logger

	connectTimeout   time.Duration
	handshakeTimeout time.Duration
	waitTimeout      time.Duration

	credKind CredentialKind
	psk      []byte

	tlsPrioritiesEnv string
	dhMinBits        int
	dhMaxBits        int

	metrics Metrics
}

// CredentialKind selects the secure session's authentication mode.
type CredentialKind int

const (
	// CredentialPlain disables the secure session layer entirely; frames
	// travel over the raw TCP byte stream.
	CredentialPlain CredentialKind = iota
	// CredentialAnon selects anonymous Diffie-Hellman (Noise NN): no
	// identity on either side, forward-secret against passive capture
	// only.
	CredentialAnon
	// CredentialPSK selects pre-shared-key Diffie-Hellman (Noise
	// NNpsk0): both ends authenticate possession of a shared secret.
	CredentialPSK
)

func defaultConfig() *Config {
	ctx, cancel := context.WithCancel(context.Background())
	return &Config{
		ctx:              ctx,
		cancel:           cancel,
		log:              logctx.Default(),
		connectTimeout:   DefaultConnectTimeout,
		handshakeTimeout: DefaultHandshakeTimeout,
		waitTimeout:      DefaultWaitTimeout,
		credKind:         CredentialPlain,
		tlsPrioritiesEnv: "PCMK_tls_priorities",
	}
}

func applyConfig(opts []Option) *Config {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

// WithContext sets the base context Dial passes to ConnectAsync, where it
// bounds name resolution. Accept and the secure handshake do not consult it.
func WithContext(ctx context.Context) Option {
	return func(c *Config) {
		if ctx != nil {
			c.ctx, c.cancel = context.WithCancel(ctx)
		}
	}
}

// WithLogger overrides the default stdlib-log-backed logger.
func WithLogger(l *logctx.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.log = l
		}
	}
}

// WithConnectTimeout bounds how long an asynchronous connect may take
// before delivering ErrTimeout.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.connectTimeout = d
		}
	}
}

// WithHandshakeTimeout bounds the secure handshake pump.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.handshakeTimeout = d
		}
	}
}

// WithWaitTimeout records a receive budget in the Config. Sessions built by
// Dial and Listener.Accept do not read it: ReceiveMessage substitutes
// DefaultWaitTimeout for 0 and DefaultWaitTimeoutNegative for a negative
// timeout whether or not this option is given.
func WithWaitTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.waitTimeout = d
		}
	}
}

// WithAnonDH selects the anonymous Diffie-Hellman credential kind.
func WithAnonDH() Option {
	return func(c *Config) {
		c.credKind = CredentialAnon
	}
}

// WithPSK selects the pre-shared-key Diffie-Hellman credential kind and
// supplies the shared secret.
func WithPSK(key []byte) Option {
	return func(c *Config) {
		c.credKind = CredentialPSK
		c.psk = append([]byte(nil), key...)
	}
}

// WithDHBounds overrides the PCMK_dh_min_bits/PCMK_dh_max_bits environment
// values in code rather than via the environment; zero means "not set".
func WithDHBounds(minBits, maxBits int) Option {
	return func(c *Config) {
		c.dhMinBits = minBits
		c.dhMaxBits = maxBits
	}
}

// WithMetrics attaches a Metrics collector; every Session built from this
// Config reports its message/byte counts to it. Nil (the default) disables
// reporting entirely rather than paying for a no-op implementation's
// indirection.
func WithMetrics(m Metrics) Option {
	return func(c *Config) {
		c.metrics = m
	}
}

// envInt parses an environment variable as a decimal integer, returning
// (0, false) if it is unset or unparseable. Mirrors crm_parse_int's
// lenient "0 on failure" convention from the C source, made explicit here
// via the bool so callers can distinguish "unset" from "zero".
func envInt(name string) (int, bool) {
	s, ok := os.LookupEnv(name)
	if !ok || s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

// effectiveDHMinBits returns the effective PCMK_dh_min_bits value: the Config
// override if set, else the environment, else 0 (no floor).
func (c *Config) effectiveDHMinBits() int {
	if c.dhMinBits > 0 {
		return c.dhMinBits
	}
	if v, ok := envInt("PCMK_dh_min_bits"); ok && v > 0 {
		return v
	}
	return 0
}

// effectiveDHMaxBits returns the effective PCMK_dh_max_bits value following the
// same override-then-environment rule.
func (c *Config) effectiveDHMaxBits() int {
	if c.dhMaxBits > 0 {
		return c.dhMaxBits
	}
	if v, ok := envInt("PCMK_dh_max_bits"); ok && v > 0 {
		return v
	}
	return 0
}

// tlsPriorities returns the base cipher/handshake priority string: the
// PCMK_tls_priorities environment override if set, else the built-in
// default. The credential-kind suffix ("+ANON-DH" or "+DHE-PSK:+PSK") is
// appended by the secure package, not here, since that package owns the
// Noise pattern selection this string now drives figuratively (see
// DESIGN.md for the Noise substitution rationale).
func (c *Config) tlsPriorities() string {
	if v := os.Getenv(c.tlsPrioritiesEnv); v != "" {
		return v
	}
	return "NORMAL"
}
