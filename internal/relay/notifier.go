// Package relay hosts the worker-side consumers of scheduling events:
// a notification relay emitting one notification per event, and a
// metrics collector counting events by type. Both are idempotent, as
// the bus only guarantees at-least-once delivery.
package relay

import (
	"context"
	"encoding/json"

	segmentio "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/clinicore/scheduling/internal/kafka"
)

// Notifier maps each scheduling event 1:1 to an outbound notification.
// The actual channel (push, SMS, email) lives behind the logger here;
// wiring a real sender only needs a different sink.
type Notifier struct {
	logger *zap.Logger
}

func NewNotifier(logger *zap.Logger) *Notifier {
	return &Notifier{logger: logger}
}

// Handle decodes a scheduling event and emits its notification.
// Malformed messages are logged and skipped so a poison message cannot
// stall the consumer group.
func (n *Notifier) Handle(ctx context.Context, msg segmentio.Message) error {
	var envelope kafka.Envelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		n.logger.Warn("skip malformed event", zap.String("key", string(msg.Key)), zap.Error(err))
		return nil
	}

	n.logger.Info("notification",
		zap.String("event", envelope.Event),
		zap.String("tenant_id", envelope.TenantID.String()),
		zap.String("key", string(msg.Key)),
		zap.Time("occurred_at", envelope.OccurredAt))
	return nil
}
