package rtc

import (
	"fmt"

	"github.com/pion/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// zeroLogger routes pion's leveled logging into zerolog.
type zeroLogger struct {
	l zerolog.Logger
}

var _ logging.LeveledLogger = zeroLogger{}

func (z zeroLogger) Trace(msg string)             { z.l.Trace().Msg(msg) }
func (z zeroLogger) Tracef(f string, args ...any) { z.l.Trace().Msg(fmt.Sprintf(f, args...)) }
func (z zeroLogger) Debug(msg string)             { z.l.Debug().Msg(msg) }
func (z zeroLogger) Debugf(f string, args ...any) { z.l.Debug().Msg(fmt.Sprintf(f, args...)) }
func (z zeroLogger) Info(msg string)              { z.l.Info().Msg(msg) }
func (z zeroLogger) Infof(f string, args ...any)  { z.l.Info().Msg(fmt.Sprintf(f, args...)) }
func (z zeroLogger) Warn(msg string)              { z.l.Warn().Msg(msg) }
func (z zeroLogger) Warnf(f string, args ...any)  { z.l.Warn().Msg(fmt.Sprintf(f, args...)) }
func (z zeroLogger) Error(msg string)             { z.l.Error().Msg(msg) }
func (z zeroLogger) Errorf(f string, args ...any) { z.l.Error().Msg(fmt.Sprintf(f, args...)) }

type loggerFactory struct{}

// NewLoggerFactory returns a pion LoggerFactory backed by the global zerolog logger.
// Pion is chatty at info, so its scopes are demoted one level.
func NewLoggerFactory() logging.LoggerFactory { return loggerFactory{} }

func (loggerFactory) NewLogger(scope string) logging.LeveledLogger {
	lvl := zerolog.GlobalLevel()
	if lvl < zerolog.WarnLevel {
		lvl++
	}
	return zeroLogger{l: log.With().Str("module", "pion").Str("scope", scope).Logger().Level(lvl)}
}
