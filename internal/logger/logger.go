package logger

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"dmxport/internal/config"
)

type Log struct {
	*logrus.Entry
}

// NewLogger builds the process logger from configuration.
func NewLogger(cfg config.LogConf) (*Log, error) {
	log := logrus.New()

	log.SetOutput(os.Stdout)

	log.Formatter = &logrus.TextFormatter{
		TimestampFormat:  "2006-01-02 15:04:05.0000",
		FullTimestamp:    true,
		QuoteEmptyFields: true,
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logger: bad level %q: %w", cfg.Level, err)
	}
	log.SetLevel(level)
	// Stdout only, no mutex needed.
	log.SetNoLock()

	return &Log{Entry: log.WithFields(nil)}, nil
}

// With adds the fields to the formatted log entry.
func (l *Log) With(fields Fields) *Log {
	return &Log{Entry: l.WithFields(logrus.Fields(fields))}
}

func (l *Log) GetLevel() string {
	return l.Logger.Level.String()
}

// Fields are a representation of formatted log fields.
type Fields map[string]interface{}

// Logger is the logging interface the rest of the daemon consumes.
type Logger interface {
	GetLevel() string
	With(fields Fields) *Log
}
