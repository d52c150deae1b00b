package overlay

import (
	"log/slog"

	"github.com/gogpu/colorconvert"
)

func logger() *slog.Logger { return colorconvert.Logger() }
