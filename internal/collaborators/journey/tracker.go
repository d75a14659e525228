// Package journey reports buyer progress to the purchase journey tracker.
package journey

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"propie/internal/coordinator/ports"
	id "propie/pkg/domain"
	"propie/pkg/requestcontext"
)

// Publisher writes one keyed record to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// PhaseAdvanced is the record value on the journey topic.
type PhaseAdvanced struct {
	BuyerID    id.UserID   `json:"buyer_id"`
	Phase      ports.Phase `json:"phase"`
	RequestID  string      `json:"request_id,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// KafkaTracker publishes phase changes keyed by buyer.
type KafkaTracker struct {
	publisher Publisher
	topic     string
}

func NewKafkaTracker(publisher Publisher, topic string) *KafkaTracker {
	return &KafkaTracker{publisher: publisher, topic: topic}
}

func (t *KafkaTracker) AdvancePhase(ctx context.Context, buyerID id.UserID, phase ports.Phase) error {
	if buyerID.IsNil() {
		return fmt.Errorf("advance journey phase %s: buyer ID is required", phase)
	}
	value, err := json.Marshal(PhaseAdvanced{
		BuyerID:    buyerID,
		Phase:      phase,
		RequestID:  requestcontext.RequestID(ctx),
		OccurredAt: requestcontext.Now(ctx).UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal journey event: %w", err)
	}
	return t.publisher.Publish(ctx, t.topic, []byte(buyerID.String()), value)
}

type LogTracker struct {
	logger *slog.Logger
}

func NewLogTracker(logger *slog.Logger) *LogTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogTracker{logger: logger}
}

func (t *LogTracker) AdvancePhase(ctx context.Context, buyerID id.UserID, phase ports.Phase) error {
	t.logger.InfoContext(ctx, "journey phase advanced",
		"buyer_id", buyerID.String(),
		"phase", string(phase),
	)
	return nil
}
