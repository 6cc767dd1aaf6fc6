package log

// Logger receives capture events. Log is called from session, executor and
// transport goroutines, so implementations must be safe for concurrent use
// and should return quickly.
type Logger interface {
	Log(event Event)
}

// LoggerFunc adapts a plain function to Logger.
type LoggerFunc func(Event)

// Log calls f(event).
func (f LoggerFunc) Log(event Event) { f(event) }

// NoopLogger drops every event. The zero value is ready to use.
type NoopLogger struct{}

// Log does nothing.
func (NoopLogger) Log(Event) {}

// Tee fans each event out to every non-nil logger in order. It returns nil
// when no logger remains, and the logger itself when only one does, so the
// result can be assigned straight to a ProtocolLogger field.
func Tee(loggers ...Logger) Logger {
	var sinks tee
	for _, l := range loggers {
		if l != nil {
			sinks = append(sinks, l)
		}
	}
	switch len(sinks) {
	case 0:
		return nil
	case 1:
		return sinks[0]
	default:
		return sinks
	}
}

type tee []Logger

func (t tee) Log(event Event) {
	for _, l := range t {
		l.Log(event)
	}
}

// Only forwards the events that match filter to next. It is typically used
// to keep raw transport frames out of a console trace.
func Only(next Logger, filter Filter) Logger {
	if next == nil {
		return nil
	}
	return LoggerFunc(func(event Event) {
		if filter.matches(event) {
			next.Log(event)
		}
	})
}

var (
	_ Logger = NoopLogger{}
	_ Logger = LoggerFunc(nil)
	_ Logger = tee(nil)
)
