package logging

import (
	"github.com/rs/zerolog"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/rules"
)

// AccessLogger writes document access events at debug level, or at warn
// level when the access failed.
func AccessLogger(logger zerolog.Logger) settings.AccessLogger {
	return settings.AccessLoggerFunc(func(event settings.AccessEvent) {
		entry := logger.Debug()
		if event.Err != nil {
			entry = logger.Warn().Err(event.Err)
		}
		entry.
			Str("op", event.Op).
			Str("document", event.Document).
			Str("path", event.Path).
			Dur("duration", event.Duration).
			Msg("settings access")
	})
}

// EvaluatorLogger writes rule evaluations at debug level. Failed rules are
// logged at info and evaluator errors at error.
func EvaluatorLogger(logger zerolog.Logger) rules.EvaluatorLogger {
	return rules.EvaluatorLoggerFunc(func(event rules.EvaluatorLogEvent) {
		var entry *zerolog.Event
		switch {
		case event.Err != nil:
			entry = logger.Error().Err(event.Err)
		case !event.Passed:
			entry = logger.Info()
		default:
			entry = logger.Debug()
		}
		entry.
			Str("engine", event.Engine).
			Str("expr", event.Expr).
			Str("path", event.Path).
			Bool("passed", event.Passed).
			Dur("duration", event.Duration).
			Msg("rule evaluated")
	})
}
