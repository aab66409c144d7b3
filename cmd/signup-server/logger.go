package main

import (
	"github.com/sirupsen/logrus"
)

// logrusLogger adapts a logrus entry to signup.Logger.
type logrusLogger struct {
	entry *logrus.Entry
}

func newLogger(debug bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetLevel(logrus.InfoLevel)
	if debug {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

func named(logger *logrus.Logger, name string) logrusLogger {
	return logrusLogger{entry: logger.WithField("component", name)}
}

func (l logrusLogger) Debug(format string, args ...any) {
	l.entry.Debugf(format, args...)
}

func (l logrusLogger) Info(format string, args ...any) {
	l.entry.Infof(format, args...)
}

func (l logrusLogger) Error(format string, args ...any) {
	l.entry.Errorf(format, args...)
}
