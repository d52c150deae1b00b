package gpu

import (
	"log/slog"

	"github.com/gogpu/colorconvert"
)

// slogger returns the current package logger.
// All logging in internal/gpu goes through this function.
func slogger() *slog.Logger { return colorconvert.Logger() }
