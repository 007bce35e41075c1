package metrics

import "fmt"

// Sink is the contract for emitting operational metrics. Counter and gauge
// names are dot-free snake_case; tags are "key:value" strings.
type Sink interface {
	// Incr increments a counter by one.
	Incr(name string, tags ...string)
	// Gauge records a point-in-time value, replacing any prior value.
	Gauge(name string, value float64, tags ...string)
}

// Tag formats a metrics tag.
func Tag(key, value string) string {
	return fmt.Sprintf("%s:%s", key, value)
}

// NopSink discards all metrics. It is the default when no sink is configured.
type NopSink struct{}

func (NopSink) Incr(string, ...string)           {}
func (NopSink) Gauge(string, float64, ...string) {}
