package obs

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Label is a key/value pair attached to measurements.
type Label struct {
	Key   string
	Value string
}

// Meter is a very small interface for emitting counters/histograms.
// Implementations may no-op or bridge to a metrics system.
type Meter interface {
	Counter(name string, value float64, labels ...Label)
	Histogram(name string, value float64, labels ...Label)
}

// NopMeter is a Meter that discards all measurements.
type NopMeter struct{}

func (NopMeter) Counter(name string, value float64, labels ...Label)   {}
func (NopMeter) Histogram(name string, value float64, labels ...Label) {}

// OTelMeter bridges measurements to an OpenTelemetry meter.
// Instruments are created lazily, once per name.
type OTelMeter struct {
	m  metric.Meter
	mu sync.Mutex
	cs map[string]metric.Float64Counter
	hs map[string]metric.Float64Histogram
}

// NewOTelMeter returns a Meter backed by the global OpenTelemetry
// meter provider.
func NewOTelMeter(name string) *OTelMeter {
	return &OTelMeter{
		m:  otel.Meter(name),
		cs: make(map[string]metric.Float64Counter),
		hs: make(map[string]metric.Float64Histogram),
	}
}

func (o *OTelMeter) Counter(name string, value float64, labels ...Label) {
	o.mu.Lock()
	c, ok := o.cs[name]
	if !ok {
		var err error
		c, err = o.m.Float64Counter(name)
		if err != nil {
			o.mu.Unlock()
			return
		}
		o.cs[name] = c
	}
	o.mu.Unlock()
	c.Add(context.Background(), value, metric.WithAttributes(attrs(labels)...))
}

func (o *OTelMeter) Histogram(name string, value float64, labels ...Label) {
	o.mu.Lock()
	h, ok := o.hs[name]
	if !ok {
		var err error
		h, err = o.m.Float64Histogram(name)
		if err != nil {
			o.mu.Unlock()
			return
		}
		o.hs[name] = h
	}
	o.mu.Unlock()
	h.Record(context.Background(), value, metric.WithAttributes(attrs(labels)...))
}

func attrs(labels []Label) []attribute.KeyValue {
	kv := make([]attribute.KeyValue, 0, len(labels))
	for _, l := range labels {
		kv = append(kv, attribute.String(l.Key, l.Value))
	}
	return kv
}
