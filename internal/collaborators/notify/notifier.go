// Package notify delivers buyer and developer notifications. The Kafka
// notifier hands events to the messaging service; the log notifier is used
// when no brokers are configured.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"propie/internal/coordinator/ports"
	"propie/pkg/requestcontext"
)

// Event kinds written to the notification topic.
const (
	KindReservationConfirmed = "reservation_confirmed"
	KindReservationCancelled = "reservation_cancelled"
	KindClaimStatusChanged   = "claim_status_changed"
	KindAccessCodeApproved   = "access_code_approved"
)

// Publisher writes one keyed record to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Envelope is the record value on the notification topic.
type Envelope struct {
	Kind      string          `json:"kind"`
	RequestID string          `json:"request_id,omitempty"`
	SentAt    time.Time       `json:"sent_at"`
	Payload   json.RawMessage `json:"payload"`
}

type KafkaNotifier struct {
	publisher Publisher
	topic     string
	now       func() time.Time
}

func NewKafkaNotifier(publisher Publisher, topic string) *KafkaNotifier {
	return &KafkaNotifier{publisher: publisher, topic: topic, now: time.Now}
}

func (n *KafkaNotifier) SendReservationConfirmation(ctx context.Context, notice ports.ReservationNotice) error {
	return n.publish(ctx, KindReservationConfirmed, notice.ReservationID.String(), notice)
}

func (n *KafkaNotifier) SendReservationCancelled(ctx context.Context, notice ports.ReservationNotice) error {
	return n.publish(ctx, KindReservationCancelled, notice.ReservationID.String(), notice)
}

func (n *KafkaNotifier) SendClaimStatusChanged(ctx context.Context, notice ports.ClaimNotice) error {
	return n.publish(ctx, KindClaimStatusChanged, notice.ClaimID.String(), notice)
}

func (n *KafkaNotifier) SendAccessCodeApproved(ctx context.Context, notice ports.ClaimNotice) error {
	return n.publish(ctx, KindAccessCodeApproved, notice.ClaimID.String(), notice)
}

// publish keys records by entity so one entity's notifications stay ordered.
func (n *KafkaNotifier) publish(ctx context.Context, kind, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	value, err := json.Marshal(Envelope{
		Kind:      kind,
		RequestID: requestcontext.RequestID(ctx),
		SentAt:    n.now().UTC(),
		Payload:   body,
	})
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", kind, err)
	}
	return n.publisher.Publish(ctx, n.topic, []byte(key), value)
}

// LogNotifier records notifications in the service log instead of sending them.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendReservationConfirmation(ctx context.Context, notice ports.ReservationNotice) error {
	n.logger.InfoContext(ctx, "notification",
		"kind", KindReservationConfirmed,
		"reservation_id", notice.ReservationID.String(),
		"reference", notice.Reference,
		"buyer_id", notice.BuyerID.String(),
	)
	return nil
}

func (n *LogNotifier) SendReservationCancelled(ctx context.Context, notice ports.ReservationNotice) error {
	n.logger.InfoContext(ctx, "notification",
		"kind", KindReservationCancelled,
		"reservation_id", notice.ReservationID.String(),
		"reference", notice.Reference,
		"status", notice.Status,
		"reason", notice.Reason,
	)
	return nil
}

func (n *LogNotifier) SendClaimStatusChanged(ctx context.Context, notice ports.ClaimNotice) error {
	n.logger.InfoContext(ctx, "notification",
		"kind", KindClaimStatusChanged,
		"claim_id", notice.ClaimID.String(),
		"reference", notice.Reference,
		"status", notice.Status,
		"previous_status", notice.PreviousStatus,
	)
	return nil
}

func (n *LogNotifier) SendAccessCodeApproved(ctx context.Context, notice ports.ClaimNotice) error {
	n.logger.InfoContext(ctx, "notification",
		"kind", KindAccessCodeApproved,
		"claim_id", notice.ClaimID.String(),
		"reference", notice.Reference,
	)
	return nil
}
