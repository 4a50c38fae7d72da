package relay

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	segmentio "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clinicore/scheduling/internal/kafka"
)

func eventMessage(t *testing.T, event string) segmentio.Message {
	t.Helper()
	envelope, err := kafka.NewEnvelope(event, uuid.New(), time.Now().UTC(), kafka.BookingNoShowPayload{
		BookingID: uuid.New(),
		MarkedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
	value, err := json.Marshal(envelope)
	require.NoError(t, err)
	return segmentio.Message{Key: []byte(uuid.NewString()), Value: value}
}

func TestMetricsCollector_CountsByEvent(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewMetricsCollector(registry)
	ctx := context.Background()

	assert.NoError(t, collector.Handle(ctx, eventMessage(t, kafka.EventBookingCreated)))
	assert.NoError(t, collector.Handle(ctx, eventMessage(t, kafka.EventBookingCreated)))
	assert.NoError(t, collector.Handle(ctx, eventMessage(t, kafka.EventBookingNoShow)))

	assert.Equal(t, float64(2), testutil.ToFloat64(collector.eventsTotal.WithLabelValues(kafka.EventBookingCreated)))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.eventsTotal.WithLabelValues(kafka.EventBookingNoShow)))
}

func TestMetricsCollector_IgnoresGarbage(t *testing.T) {
	collector := NewMetricsCollector(prometheus.NewRegistry())

	err := collector.Handle(context.Background(), segmentio.Message{Value: []byte("not json")})
	assert.NoError(t, err)
}

func TestNotifier_SkipsMalformed(t *testing.T) {
	notifier := NewNotifier(zap.NewNop())
	ctx := context.Background()

	assert.NoError(t, notifier.Handle(ctx, segmentio.Message{Value: []byte("{broken")}))
	assert.NoError(t, notifier.Handle(ctx, eventMessage(t, kafka.EventBookingCancelled)))
}
