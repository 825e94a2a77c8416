package notify

import (
	"context"

	"floorops/models"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSink counts events by name.
type MetricsSink struct {
	events *prometheus.CounterVec
}

func NewMetricsSink(reg prometheus.Registerer) *MetricsSink {
	s := &MetricsSink{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "floorops_events_total",
				Help: "Domain events emitted, by name",
			},
			[]string{"event"},
		),
	}
	reg.MustRegister(s.events)
	return s
}

func (s *MetricsSink) Publish(_ context.Context, e models.Event) error {
	s.events.WithLabelValues(e.Name).Inc()
	return nil
}
