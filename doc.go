// Package remotenet implements a framed, optionally Diffie-Hellman-secured
// messaging transport over TCP: a fixed-layout, endian-neutral wire header
// (header.go), a non-blocking send/receive engine that grows its buffers on
// demand (session.go, transport.go, frame.go, send.go), a secure session
// layer built on the Noise Protocol Framework in place of anonymous-DH/
// PSK-DH TLS cipher suites (package secure), and an asynchronous TCP connect
// engine plus an accept path that applies TCP_USER_TIMEOUT (connect.go,
// accept.go).
//
// A Session is built by either Dial (client) or Listen+Accept (server) and
// exchanges tree-shaped messages via SendMessage/ReceiveMessage, with
// serialization delegated to a caller-supplied Codec.
package remotenet
