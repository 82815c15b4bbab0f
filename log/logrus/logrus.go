// Package logrus adapts a logrus entry to ledgercache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/ledgercache"
)

var _ ledgercache.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New wraps l (logrus.StandardLogger when nil).
func New(l *logrus.Logger) Logger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return Logger{E: logrus.NewEntry(l)}
}

func (l Logger) Debug(msg string, f ledgercache.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f ledgercache.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f ledgercache.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f ledgercache.Fields) { l.with(f).Error(msg) }

// with maps an error under "err" to logrus' own error key.
func (l Logger) with(f ledgercache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	out := make(logrus.Fields, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			out[logrus.ErrorKey] = err
			continue
		}
		out[k] = v
	}
	return l.E.WithFields(out)
}
