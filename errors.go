package remotenet

import "errors"

// Error kinds returned by this package, per the wire protocol's error
// taxonomy. Callers should match with errors.Is/errors.As; wrapped errors
// carry additional context via %w.
var (
	// ErrInvalidArgument indicates a precondition violation that is never
	// retriable (e.g. a nil payload passed to Send).
	ErrInvalidArgument = errors.New("remotenet: invalid argument")

	// ErrWouldBlock indicates a transient condition; the caller should
	// retry once the underlying socket signals readiness.
	ErrWouldBlock = errors.New("remotenet: would block")

	// ErrTimeout indicates a deadline elapsed with no guarantee of
	// progress. The caller may retry with a fresh deadline.
	ErrTimeout = errors.New("remotenet: timed out")

	// ErrDisconnected indicates EOF or an unrecoverable transport error.
	// The session is terminal and must be closed.
	ErrDisconnected = errors.New("remotenet: disconnected")

	// ErrInvalidFrame indicates a header whose endian field matched
	// neither the local magic nor its byte-swap. The frame is discarded
	// and the session is terminal.
	ErrInvalidFrame = errors.New("remotenet: invalid frame header")

	// ErrDecompression indicates bzip2 decompression failed for a frame
	// at or below the version this package understands.
	ErrDecompression = errors.New("remotenet: decompression failed")

	// ErrParse indicates the external message parser rejected a payload
	// at or below the version this package understands, or the codec
	// failed to serialize an outgoing message (SendMessage).
	ErrParse = errors.New("remotenet: message parse failed")

	// ErrSessionConfig indicates a secure session could not be
	// constructed (bad priority string, missing credentials, DH bounds
	// rejected, ...).
	ErrSessionConfig = errors.New("remotenet: secure session configuration failed")

	// ErrHandshake indicates the secure handshake failed non-recoverably.
	ErrHandshake = errors.New("remotenet: handshake failed")

	// ErrNameResolution indicates host resolution failed during an
	// asynchronous connect. Surfaced at the public boundary as -ENOTCONN
	// semantics (see ConnectAsync).
	ErrNameResolution = errors.New("remotenet: name resolution failed")

	// ErrNotConnected mirrors the C source's bare -ENOTCONN return when
	// every candidate address failed.
	ErrNotConnected = errors.New("remotenet: not connected")
)
