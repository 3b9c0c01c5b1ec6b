package utils

import (
	"io"
	"log/slog"
)

// SafeClose closes c and logs the error instead of returning it
func SafeClose(c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		Logger().Warn("failed to close", ErrLog(err))
	}
}

func SafeWrite(w io.Writer, data []byte) {
	if _, err := w.Write(data); err != nil {
		Logger().Warn("failed to write", ErrLog(err), slog.Int("size", len(data)))
	}
}
