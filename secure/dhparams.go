package secure

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// DHParams is a classical finite-field Diffie-Hellman parameter set: a safe
// prime P = 2Q+1 and a generator G. Nothing in this package's Curve25519
// key agreement consumes these directly (Curve25519 has a fixed field);
// they exist to preserve the spec's bit-bound enforcement and
// server-side-generation testable properties (§4.5, §6) for the wire
// metadata and diagnostics that accompanied the original GnuTLS sessions.
// See /DESIGN.md for why this one component is built on the standard
// library instead of a pack dependency.
type DHParams struct {
	P    *big.Int
	G    *big.Int
	Bits int
}

// DefaultServerDHBits is used when the library cannot query a
// security-level-appropriate bit count (the GnuTLS equivalent is
// gnutls_sec_param_to_pk_bits at GNUTLS_SEC_PARAM_NORMAL, which this
// package has no direct analogue for; the C source's own fallback is
// 1024, preserved here verbatim).
const DefaultServerDHBits = 1024

// BoundDHBits clamps bits to [minBits, maxBits], matching
// pcmk__bound_dh_bits in the original source: if maxBits is positive and
// less than a positive minBits, maxBits is ignored entirely (the caller
// should log a warning when that happens; see BoundDHBitsWithWarning).
func BoundDHBits(bits, minBits, maxBits int) int {
	clamped, _ := BoundDHBitsWithWarning(bits, minBits, maxBits)
	return clamped
}

// BoundDHBitsWithWarning is BoundDHBits plus a flag telling the caller
// whether maxBits was ignored because it was less than minBits (the
// "ignore max with a warning" rule from spec §4.5/§9).
func BoundDHBitsWithWarning(bits, minBits, maxBits int) (clamped int, maxIgnored bool) {
	if minBits > 0 && maxBits > 0 && maxBits < minBits {
		maxBits = 0
		maxIgnored = true
	}
	if minBits > 0 && bits < minBits {
		return minBits, maxIgnored
	}
	if maxBits > 0 && bits > maxBits {
		return maxBits, maxIgnored
	}
	return bits, maxIgnored
}

// GenerateServerDHParams generates a safe-prime DH parameter set at the
// given bit count (already bounded by BoundDHBits), matching
// pcmk__init_tls_dh. Generation uses a Sophie Germain prime search: find
// prime Q of bits-1 length such that P = 2Q+1 is also prime, then P is a
// safe prime and 2 is usable as a generator whenever P mod 8 has the right
// residue (checked below); otherwise a small set of candidate generators
// is tried.
func GenerateServerDHParams(bits int) (*DHParams, error) {
	if bits < 2 {
		return nil, fmt.Errorf("%w: dh bit count must be >= 2, got %d", ErrSessionConfig, bits)
	}

	for attempt := 0; attempt < 8192; attempt++ {
		q, err := rand.Prime(rand.Reader, bits-1)
		if err != nil {
			return nil, fmt.Errorf("%w: prime search: %v", ErrSessionConfig, err)
		}
		p := new(big.Int).Lsh(q, 1)
		p.Add(p, big.NewInt(1))
		if !p.ProbablyPrime(20) {
			continue
		}
		g, ok := pickGenerator(p)
		if !ok {
			continue
		}
		return &DHParams{P: p, G: g, Bits: p.BitLen()}, nil
	}
	return nil, fmt.Errorf("%w: failed to generate a %d-bit safe prime after 8192 attempts", ErrSessionConfig, bits)
}

// InitServerDHParams implements spec §4.5's init_server_dh_params: start
// from a security-level-appropriate bit count (DefaultServerDHBits, since
// this package has no gnutls_sec_param_to_pk_bits equivalent to query),
// clamp it to [minBits, maxBits] via BoundDHBitsWithWarning, and generate
// parameters at the resulting size. The returned warn string is non-empty
// when maxBits was ignored for being less than minBits; callers should log
// it at warn severity and otherwise ignore it.
func InitServerDHParams(minBits, maxBits int) (params *DHParams, warn string, err error) {
	bits, maxIgnored := BoundDHBitsWithWarning(DefaultServerDHBits, minBits, maxBits)
	if maxIgnored {
		warn = "PCMK_dh_max_bits ignored because it is less than PCMK_dh_min_bits"
	}
	params, err = GenerateServerDHParams(bits)
	return params, warn, err
}

// pickGenerator picks a small generator for a safe prime p=2q+1, trying the
// conventional small candidates (2, 3, 5) in order. 2 is taken only when
// p ≡ 7 (mod 8), where it generates the order-Q subgroup; 3 and 5 are taken
// whenever g^2 != 1 mod p, so they have order Q or 2Q (the full group).
func pickGenerator(p *big.Int) (*big.Int, bool) {
	eight := big.NewInt(8)
	mod8 := new(big.Int).Mod(p, eight)

	for _, cand := range []int64{2, 3, 5} {
		g := big.NewInt(cand)
		// For g=2: valid generator of the safe-prime subgroup when
		// p ≡ 7 (mod 8). Other small candidates are accepted if
		// g^2 != 1 mod p (avoiding the trivial order-2 element).
		if cand == 2 && mod8.Cmp(big.NewInt(7)) != 0 {
			continue
		}
		sq := new(big.Int).Exp(g, big.NewInt(2), p)
		if sq.Cmp(big.NewInt(1)) == 0 {
			continue
		}
		return g, true
	}
	return nil, false
}
