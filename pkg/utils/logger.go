package utils

import (
	"log/slog"
	"sync/atomic"

	"github.com/secmon-lab/gcu/pkg/domain/types"
)

// logger is used when a context carries no logger. The CLI replaces it once logging flags are parsed.
var logger atomic.Pointer[slog.Logger]

func init() {
	SetLogger(slog.Default())
}

func Logger() *slog.Logger {
	return logger.Load()
}

// SetLogger replaces the process logger. Every record gets the gcu version.
func SetLogger(l *slog.Logger) {
	logger.Store(l.With(slog.Group("gcu",
		slog.String("version", types.AppVersion),
	)))
}

func ErrLog(err error) slog.Attr {
	return slog.Any("error", err)
}
