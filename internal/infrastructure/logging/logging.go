package logging

import (
	"io"
	"os"

	"github.com/phuslu/log"

	"github.com/stellarforge/fleetd/internal/infrastructure/config"
)

// New builds the daemon logger from config. JSON goes straight to the
// writer; text mode wraps it in a console writer for human eyes.
func New(cfg *config.LoggingConfig) *log.Logger {
	logger := &log.Logger{
		Level:      log.ParseLevel(cfg.Level),
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	if cfg.IncludeCaller {
		logger.Caller = 1
	}

	var out io.Writer
	switch cfg.Output {
	case "stdout":
		out = os.Stdout
	case "file":
		logger.Writer = &log.FileWriter{
			Filename:  cfg.FilePath,
			MaxSize:   100 << 20,
			LocalTime: false,
		}
		return logger
	default:
		out = os.Stderr
	}

	if cfg.Format == "text" {
		logger.Writer = &log.ConsoleWriter{
			Writer:         out,
			ColorOutput:    true,
			EndWithMessage: true,
		}
	} else {
		logger.Writer = &log.IOWriter{Writer: out}
	}
	return logger
}
