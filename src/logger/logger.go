package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

var Logger zerolog.Logger
var fileSink *lumberjack.Logger

// Init configures the global zerolog logger. When a file path is given,
// log output is duplicated to a size-rotated file.
func Init(levelName, filePath string) {
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var writers []io.Writer
	if os.Getenv("LOG_FORMAT") == "pretty" {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		writers = append(writers, os.Stdout)
	}

	if filePath != "" {
		fileSink = &lumberjack.Logger{
			Filename:   filePath,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		writers = append(writers, fileSink)
	}

	Logger = zerolog.New(io.MultiWriter(writers...)).With().
		Timestamp().
		Logger()
	log.Logger = Logger

	event := Logger.Info().Str("log_level", level.String())
	if fileSink != nil {
		event = event.Str("log_file", filePath)
	}
	event.Msg("Logger initialized")
}

// Close flushes and releases the rotated file sink, if any.
func Close() {
	if fileSink != nil {
		_ = fileSink.Close()
		fileSink = nil
	}
}

// Get returns the configured global logger.
func Get() zerolog.Logger {
	return Logger
}
