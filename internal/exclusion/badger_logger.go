package exclusion

import (
	"strings"

	"go.uber.org/zap"
)

// badgerLogger routes badger's printf-style logging into zap.
type badgerLogger struct {
	s *zap.SugaredLogger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.s.Errorf(trimNewline(format), args...)
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.s.Warnf(trimNewline(format), args...)
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.s.Debugf(trimNewline(format), args...)
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.s.Debugf(trimNewline(format), args...)
}

func trimNewline(format string) string {
	return strings.TrimRight(format, "\n")
}
