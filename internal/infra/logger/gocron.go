package logger

import (
	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

type gocronLogger struct {
	log *zap.SugaredLogger
}

// Gocron adapts log to the scheduler's key/value logging interface.
func Gocron(log *zap.Logger) gocron.Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return gocronLogger{log: log.Named("scheduler").Sugar()}
}

func (l gocronLogger) Debug(msg string, args ...any) { l.log.Debugw(msg, args...) }
func (l gocronLogger) Info(msg string, args ...any)  { l.log.Infow(msg, args...) }
func (l gocronLogger) Warn(msg string, args ...any)  { l.log.Warnw(msg, args...) }
func (l gocronLogger) Error(msg string, args ...any) { l.log.Errorw(msg, args...) }
