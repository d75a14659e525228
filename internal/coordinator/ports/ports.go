// Package ports defines the outbound collaborators the coordinator talks to.
// Implementations live under internal/collaborators; none of them may block
// a lifecycle transition.
package ports

//go:generate mockgen -source=ports.go -destination=../mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	id "propie/pkg/domain"
)

// Phase is a step on the buyer's purchase journey.
type Phase string

const PhaseReservation Phase = "RESERVATION"

// Notifier delivers buyer and developer notifications.
type Notifier interface {
	SendReservationConfirmation(ctx context.Context, n ReservationNotice) error
	SendReservationCancelled(ctx context.Context, n ReservationNotice) error
	SendClaimStatusChanged(ctx context.Context, n ClaimNotice) error
	SendAccessCodeApproved(ctx context.Context, n ClaimNotice) error
}

// JourneyTracker records the buyer's progress across lifecycles.
type JourneyTracker interface {
	AdvancePhase(ctx context.Context, buyerID id.UserID, phase Phase) error
}

// DocumentRegistry links documents held by the external document service to
// a claim. It never receives file bytes.
type DocumentRegistry interface {
	Link(ctx context.Context, claimID id.ClaimID, doc DocumentLink) error
}

// ReservationNotice is the payload for reservation notifications.
type ReservationNotice struct {
	ReservationID id.ReservationID `json:"reservation_id"`
	Reference     string           `json:"reference"`
	BuyerID       id.UserID        `json:"buyer_id"`
	BuyerName     string           `json:"buyer_name"`
	BuyerEmail    string           `json:"buyer_email"`
	PropertyID    id.PropertyID    `json:"property_id"`
	PropertyName  string           `json:"property_name"`
	Status        string           `json:"status"`
	AmountPaid    string           `json:"amount_paid"`
	Outstanding   string           `json:"outstanding"`
	Reason        string           `json:"reason,omitempty"`
	OccurredAt    time.Time        `json:"occurred_at"`
}

// ClaimNotice is the payload for grant claim notifications.
type ClaimNotice struct {
	ClaimID        id.ClaimID    `json:"claim_id"`
	Reference      string        `json:"reference"`
	BuyerID        id.UserID     `json:"buyer_id"`
	DeveloperID    *id.UserID    `json:"developer_id,omitempty"`
	PropertyID     id.PropertyID `json:"property_id"`
	Status         string        `json:"status"`
	PreviousStatus string        `json:"previous_status,omitempty"`
	OccurredAt     time.Time     `json:"occurred_at"`
}

type DocumentLink struct {
	DocumentID id.DocumentID `json:"document_id"`
	URL        string        `json:"url"`
	Name       string        `json:"name,omitempty"`
	Kind       string        `json:"kind,omitempty"`
	AttachedBy id.Actor      `json:"attached_by"`
	AttachedAt time.Time     `json:"attached_at"`
}
