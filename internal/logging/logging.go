// Package logging provides the leveled logger interface consumed by
// internal/engine, modeled directly on the teacher repository's
// pkg/mcast/types.Logger so that engine code never depends on a
// concrete logging library.
package logging

import "github.com/sirupsen/logrus"

// Logger is the leveled logging surface the engine depends on.
type Logger interface {
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
}

// logrusLogger adapts a *logrus.Entry to Logger. logrus.Entry already
// implements every method in this interface with matching signatures,
// so embedding is all that's required.
type logrusLogger struct {
	*logrus.Entry
}

// NewLogrusLogger returns the engine's default structured logger,
// tagging every line with the given component name.
func NewLogrusLogger(component string) Logger {
	return logrusLogger{Entry: logrus.WithField("component", component)}
}
