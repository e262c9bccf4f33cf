package settings

import "time"

// AccessEvent describes a single document read or write for logging.
type AccessEvent struct {
	Op       string
	Document string
	Path     string
	Duration time.Duration
	Err      error
}

// AccessLogger records document access events.
type AccessLogger interface {
	LogAccess(AccessEvent)
}

// AccessLoggerFunc adapts a function to AccessLogger.
type AccessLoggerFunc func(AccessEvent)

// LogAccess implements AccessLogger.
func (f AccessLoggerFunc) LogAccess(event AccessEvent) {
	if f != nil {
		f(event)
	}
}

type noopAccessLogger struct{}

func (noopAccessLogger) LogAccess(AccessEvent) {}
