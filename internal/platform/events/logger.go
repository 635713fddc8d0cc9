package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/zap"
)

// zapLoggerAdapter routes watermill's internal logging into zap.
type zapLoggerAdapter struct {
	log    *zap.Logger
	fields watermill.LogFields
}

func NewWatermillLogger(log *zap.Logger) watermill.LoggerAdapter {
	return &zapLoggerAdapter{log: log.Named("watermill"), fields: watermill.LogFields{}}
}

func (a *zapLoggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.log.Error(msg, append(a.zapFields(fields), zap.Error(err))...)
}

func (a *zapLoggerAdapter) Info(msg string, fields watermill.LogFields) {
	a.log.Info(msg, a.zapFields(fields)...)
}

func (a *zapLoggerAdapter) Debug(msg string, fields watermill.LogFields) {
	a.log.Debug(msg, a.zapFields(fields)...)
}

// Trace is folded into debug; zap has no lower level.
func (a *zapLoggerAdapter) Trace(msg string, fields watermill.LogFields) {
	a.log.Debug(msg, a.zapFields(fields)...)
}

func (a *zapLoggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &zapLoggerAdapter{log: a.log, fields: a.fields.Add(fields)}
}

func (a *zapLoggerAdapter) zapFields(fields watermill.LogFields) []zap.Field {
	all := a.fields.Add(fields)
	out := make([]zap.Field, 0, len(all))
	for k, v := range all {
		out = append(out, zap.Any(k, v))
	}
	return out
}
