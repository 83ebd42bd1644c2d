package metrics

import "time"

// MetricsEvent is a single named measurement with optional dimensions.
type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

// Observer receives per-turn measurements (backend latencies, call outcomes).
type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type Flusher interface {
	Flush() error
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}

// Timing is a convenience constructor for a duration measurement in milliseconds.
func Timing(name string, start time.Time, tags map[string]string) MetricsEvent {
	return MetricsEvent{
		Name:  name,
		Time:  time.Now(),
		Value: float64(time.Since(start).Milliseconds()),
		Tags:  tags,
	}
}

// Count is a convenience constructor for a unit counter event.
func Count(name string, tags map[string]string) MetricsEvent {
	return MetricsEvent{
		Name:  name,
		Time:  time.Now(),
		Value: 1,
		Tags:  tags,
	}
}
