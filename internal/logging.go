package internal

import (
	"fmt"

	logging "github.com/ipfs/go-log/v2"
)

// Subsystem logger names.
const (
	LogMain      = "main"
	LogTelemetry = "telemetry"
	LogFrames    = "frames"
	LogPlayback  = "playback"
	LogServer    = "server"
)

// Logger returns the named subsystem logger.
func Logger(name string) *logging.ZapEventLogger {
	return logging.Logger(name)
}

// InitLogging sets the level of every subsystem logger. An empty level means info.
func InitLogging(level string) error {
	if level == "" {
		level = "info"
	}
	lvl, err := logging.LevelFromString(level)
	if err != nil {
		return fmt.Errorf("log level %q: %w", level, err)
	}
	logging.SetAllLoggers(lvl)
	return nil
}
