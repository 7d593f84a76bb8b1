package badgerstore

import (
	"strings"

	"go.uber.org/zap"
)

// badgerLogger adapts zap to badger's Logger interface.
type badgerLogger struct {
	sugar *zap.SugaredLogger
}

func newBadgerLogger(logger *zap.Logger) *badgerLogger {
	return &badgerLogger{sugar: logger.Named("badger").Sugar()}
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.sugar.Errorf(strings.TrimSuffix(format, "\n"), args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.sugar.Warnf(strings.TrimSuffix(format, "\n"), args...)
}

// Badger is chatty at info level; its progress messages go to debug.
func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.sugar.Debugf(strings.TrimSuffix(format, "\n"), args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.sugar.Debugf(strings.TrimSuffix(format, "\n"), args...)
}
