package relay

import (
	"context"
	"encoding/json"

	"github.com/prometheus/client_golang/prometheus"
	segmentio "github.com/segmentio/kafka-go"

	"github.com/clinicore/scheduling/internal/kafka"
)

// MetricsCollector counts scheduling events by type.
type MetricsCollector struct {
	eventsTotal *prometheus.CounterVec
}

func NewMetricsCollector(reg prometheus.Registerer) *MetricsCollector {
	c := &MetricsCollector{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "events",
			Name:      "consumed_total",
			Help:      "Scheduling domain events consumed, by event type",
		}, []string{"event"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(c.eventsTotal)
	return c
}

func (c *MetricsCollector) Handle(_ context.Context, msg segmentio.Message) error {
	var envelope kafka.Envelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return nil
	}
	c.eventsTotal.WithLabelValues(envelope.Event).Inc()
	return nil
}
