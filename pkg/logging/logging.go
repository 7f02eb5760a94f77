// Package logging wraps logrus behind a package-level logger so the rest
// of the code logs through one configuration point, with optional
// rotating file output.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logger = logrus.New()

func init() {
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetOutput(os.Stdout)
	logger.SetLevel(logrus.InfoLevel)
}

// SetLevel sets the logging level by name (debug, info, warn, error).
// Unknown names leave the level unchanged.
func SetLevel(name string) {
	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		Warnf("unknown log level %q, keeping %s", name, logger.GetLevel())
		return
	}
	logger.SetLevel(lvl)
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// EnableFileLogging mirrors output to a rotating file under dir.
func EnableFileLogging(dir, file string, maxSizeMB, maxBackups, maxAgeDays int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	rotating := &lumberjack.Logger{
		Filename:   filepath.Join(dir, file),
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}
	logger.SetOutput(io.MultiWriter(os.Stdout, rotating))
	return nil
}

// WithFields returns a structured entry.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return logger.WithFields(fields)
}

// Debugf logs at debug level.
func Debugf(format string, args ...interface{}) { logger.Debugf(format, args...) }

// Infof logs at info level.
func Infof(format string, args ...interface{}) { logger.Infof(format, args...) }

// Warnf logs at warn level.
func Warnf(format string, args ...interface{}) { logger.Warnf(format, args...) }

// Errorf logs at error level.
func Errorf(format string, args ...interface{}) { logger.Errorf(format, args...) }

// Fatalf logs at fatal level and exits.
func Fatalf(format string, args ...interface{}) { logger.Fatalf(format, args...) }
