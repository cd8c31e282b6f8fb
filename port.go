package remotenet

import (
	"os"
	"strconv"
	"sync"
)

var (
	remotePortOnce  sync.Once
	remotePortValue int
)

// RemotePort implements spec §4.9's memoized default-port resolution:
// PCMK_remote_port is read from the environment exactly once per process,
// parsed as a decimal integer in [1, 65535]; any failure falls back to
// DefaultRemotePort with a warning.
func RemotePort(log Logger) int {
	remotePortOnce.Do(func() {
		remotePortValue = resolveRemotePort(log)
	})
	return remotePortValue
}

// Logger is the minimal logging capability RemotePort needs, satisfied by
// *internal/logctx.Logger; a separate interface here lets callers pass their
// own logger without this package exporting logctx's concrete type in its
// public API surface.
type Logger interface {
	Warn(format string, args ...any)
}

func resolveRemotePort(log Logger) int {
	raw, ok := os.LookupEnv("PCMK_remote_port")
	if !ok {
		return DefaultRemotePort
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port < 1 || port > 65535 {
		if log != nil {
			log.Warn("PCMK_remote_port=%q is invalid, falling back to %d", raw, DefaultRemotePort)
		}
		return DefaultRemotePort
	}
	return port
}
