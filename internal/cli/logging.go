package cli

import (
	"io"
	"strings"

	"github.com/GabrielNunesIT/go-libs/logger"
)

// SetupLogging creates and configures a logger writing to w. verbose raises
// anything quieter than debug to debug.
// Returns the configured logger for dependency injection.
func SetupLogging(w io.Writer, level string, verbose bool) logger.ILogger {
	log := logger.NewConsoleLogger(w)

	switch lvl := strings.ToLower(level); {
	case lvl == "trace":
		log.SetLevel(logger.LevelTrace)
	case lvl == "debug" || verbose:
		log.SetLevel(logger.LevelDebug)
	case lvl == "warn" || lvl == "warning":
		log.SetLevel(logger.LevelWarning)
	case lvl == "error":
		log.SetLevel(logger.LevelError)
	default:
		log.SetLevel(logger.LevelInfo)
	}

	logger.SetDefaultLogger(log)
	logger.SetCtxFallbackLogger(log)

	return log
}
