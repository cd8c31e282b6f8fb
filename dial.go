package remotenet

import (
	"fmt"
	"net"

	"github.com/pacemaker-go/remotenet/secure"
)

// secureKind maps this package's CredentialKind onto secure.Kind; the two
// enums are kept distinct so the secure package never needs to import the
// root package (and vice versa beyond this one conversion site).
func secureKind(k CredentialKind) secure.Kind {
	if k == CredentialPSK {
		return secure.KindPSK
	}
	return secure.KindAnon
}

// secureConfig builds the secure.Config a Dial/Listener handshake uses from
// the resolved root Config. Only meaningful when credKind != CredentialPlain.
func (c *Config) secureConfig() secure.Config {
	return secure.Config{
		Kind:         secureKind(c.credKind),
		PSK:          c.psk,
		PriorityBase: c.tlsPriorities(),
		MinDHBits:    c.effectiveDHMinBits(),
	}
}

// connectResult is the value ConnectAsync's callback hands back over a
// channel so Dial can present a synchronous call to its own caller while
// still reusing the asynchronous connect engine underneath.
type connectResult struct {
	conn net.Conn
	err  error
}

// Dial establishes a client-side Session: it resolves host and connects to
// port via ConnectAsync, then, if the Config selects a secure credential
// kind, drives a client-role handshake over the new connection before
// handing back a Session ready for SendMessage/ReceiveMessage.
func Dial(host string, port int, codec Codec, opts ...Option) (*Session, error) {
	cfg := applyConfig(opts)

	ch := make(chan connectResult, 1)
	ConnectAsync(cfg.ctx, host, port, cfg.connectTimeout, nil, func(_ any, conn net.Conn, err error) {
		ch <- connectResult{conn, err}
	})
	res := <-ch
	if res.err != nil {
		return nil, res.err
	}
	conn := res.conn

	if cfg.credKind == CredentialPlain {
		return newSession(conn, nil, codec, cfg.log).withMetrics(cfg.metrics), nil
	}

	hs, err := secure.NewHandshake(secure.RoleClient, cfg.secureConfig())
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrSessionConfig, err)
	}
	sec, err := secure.RunHandshake(conn, hs, cfg.handshakeTimeout)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
	}

	return newSession(conn, sec, codec, cfg.log).withMetrics(cfg.metrics), nil
}

// Listener accepts incoming connections and completes them into Sessions,
// applying the same credential kind and metrics wiring to every accepted
// peer (spec §4.8's accept path plus §4.5/§4.6's server-role handshake).
type Listener struct {
	ln       net.Listener
	cfg      *Config
	codec    Codec
	watchdog WatchdogTimeoutFunc
}

// Listen opens ln via net.Listen(network, address) and wraps it so Accept
// produces completed Sessions rather than bare net.Conns.
func Listen(network, address string, codec Codec, opts ...Option) (*Listener, error) {
	ln, err := net.Listen(network, address)
	if err != nil {
		return nil, err
	}
	return &Listener{ln: ln, cfg: applyConfig(opts), codec: codec}, nil
}

// WithWatchdogTimeout attaches the get_sbd_timeout collaborator (spec
// §4.8): every connection this Listener subsequently accepts has
// TCP_USER_TIMEOUT applied to half the reported watchdog interval.
func (l *Listener) WithWatchdogTimeout(f WatchdogTimeoutFunc) *Listener {
	l.watchdog = f
	return l
}

// Accept blocks for the next incoming connection, applies TCP_USER_TIMEOUT
// per the Listener's watchdog setting, runs a server-role secure handshake
// when the Config selects one, and returns the resulting Session.
func (l *Listener) Accept() (*Session, error) {
	logFn := LoggerFunc(func(format string, args ...any) { l.cfg.log.Info(format, args...) })
	conn, err := AcceptConnection(l.ln, &logFn, l.watchdog)
	if err != nil {
		return nil, err
	}

	if l.cfg.credKind == CredentialPlain {
		return newSession(conn, nil, l.codec, l.cfg.log).withMetrics(l.cfg.metrics), nil
	}

	hs, err := secure.NewHandshake(secure.RoleServer, l.cfg.secureConfig())
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrSessionConfig, err)
	}
	sec, err := secure.RunHandshake(conn, hs, l.cfg.handshakeTimeout)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
	}

	return newSession(conn, sec, l.codec, l.cfg.log).withMetrics(l.cfg.metrics), nil
}

// Close stops accepting new connections; Sessions already handed out by
// Accept are unaffected.
func (l *Listener) Close() error { return l.ln.Close() }

// Addr returns the Listener's bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }
