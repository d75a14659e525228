package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	ledgermodels "propie/internal/ledger/models"
	id "propie/pkg/domain"
	dErrors "propie/pkg/domain-errors"
)

const (
	referencePrefix  = "RES"
	minExtensionDays = 1
	maxExtensionDays = 365

	// ExpiryReason is recorded when the sweep closes a reservation.
	ExpiryReason = "automatic expiry"
)

// BuyerDetails is captured at reservation time and never re-read from the buyer profile.
type BuyerDetails struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone,omitempty"`
	FirstTimeBuyer bool   `json:"first_time_buyer"`
	Solicitor      string `json:"solicitor,omitempty"`
}

// PropertySnapshot freezes the listing as the buyer saw it.
type PropertySnapshot struct {
	Name            string          `json:"name"`
	Address         string          `json:"address"`
	Price           decimal.Decimal `json:"price"`
	DevelopmentName string          `json:"development_name,omitempty"`
}

// Note is an append-only annotation on a reservation.
type Note struct {
	ID        id.NoteID `json:"id"`
	Author    id.Actor  `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Reservation holds a property for a buyer while the fee is paid and the
// sale progresses. AmountPaid + OutstandingAmount always equals FeeAmount.
type Reservation struct {
	ID                id.ReservationID `json:"id"`
	Reference         string           `json:"reference"`
	PropertyID        id.PropertyID    `json:"property_id"`
	BuyerID           id.UserID        `json:"buyer_id"`
	Type              Type             `json:"type"`
	Status            Status           `json:"status"`
	FeeAmount         decimal.Decimal  `json:"fee_amount"`
	AmountPaid        decimal.Decimal  `json:"amount_paid"`
	OutstandingAmount decimal.Decimal  `json:"outstanding_amount"`
	BuyerDetails      BuyerDetails     `json:"buyer_details"`
	PropertySnapshot  PropertySnapshot `json:"property_snapshot"`
	Notes             []Note           `json:"notes"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	ExpiresAt         time.Time        `json:"expires_at"`
	ConfirmedAt       *time.Time       `json:"confirmed_at,omitempty"`
	CancelledAt       *time.Time       `json:"cancelled_at,omitempty"`
	ExpiredAt         *time.Time       `json:"expired_at,omitempty"`
	ConvertedAt       *time.Time       `json:"converted_at,omitempty"`
	ExtendedAt        *time.Time       `json:"extended_at,omitempty"`
	Version           int64            `json:"version"`

	// Transactions is loaded from the ledger on reads; the store never persists it.
	Transactions []*ledgermodels.Transaction `json:"transactions,omitempty"`
}

// Result is returned by every mutating operation. Warnings carry
// collaborator failures that happened after the change committed.
type Result struct {
	Reservation *Reservation `json:"reservation"`
	Warnings    []string     `json:"warnings,omitempty"`
}

// NewReservation validates construction input and opens a PENDING reservation
// whose hold runs for ttl from now.
func NewReservation(
	rid id.ReservationID,
	propertyID id.PropertyID,
	buyerID id.UserID,
	resType Type,
	fee decimal.Decimal,
	buyer BuyerDetails,
	snapshot PropertySnapshot,
	ttl time.Duration,
	now time.Time,
) (*Reservation, error) {
	if propertyID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "property ID required")
	}
	if buyerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "buyer ID required")
	}
	if _, err := ParseType(string(resType)); err != nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown reservation type")
	}
	if !fee.IsPositive() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "fee amount must be positive")
	}
	if ttl <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "hold period must be positive")
	}

	fee = fee.Round(2)
	return &Reservation{
		ID:                rid,
		Reference:         id.Reference(referencePrefix, uuid.UUID(rid)),
		PropertyID:        propertyID,
		BuyerID:           buyerID,
		Type:              resType,
		Status:            StatusPending,
		FeeAmount:         fee,
		AmountPaid:        decimal.Zero,
		OutstandingAmount: fee,
		BuyerDetails:      buyer,
		PropertySnapshot:  snapshot,
		Notes:             []Note{},
		CreatedAt:         now,
		UpdatedAt:         now,
		ExpiresAt:         now.Add(ttl),
		Version:           1,
	}, nil
}

// Clone returns a copy that shares no slices or pointers with r.
func (r *Reservation) Clone() *Reservation {
	out := *r
	out.Notes = append([]Note(nil), r.Notes...)
	out.Transactions = nil
	out.ConfirmedAt = cloneTime(r.ConfirmedAt)
	out.CancelledAt = cloneTime(r.CancelledAt)
	out.ExpiredAt = cloneTime(r.ExpiredAt)
	out.ConvertedAt = cloneTime(r.ConvertedAt)
	out.ExtendedAt = cloneTime(r.ExtendedAt)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// IsDue reports whether the hold has lapsed at now and the sweep should close it.
func (r *Reservation) IsDue(now time.Time) bool {
	return IsActive(r.Status) && !r.ExpiresAt.After(now)
}

// credit moves up to amount from outstanding to paid and returns what was moved.
func (r *Reservation) credit(amount decimal.Decimal) decimal.Decimal {
	moved := decimal.Min(amount.Round(2), r.OutstandingAmount)
	r.AmountPaid = r.AmountPaid.Add(moved)
	r.OutstandingAmount = r.FeeAmount.Sub(r.AmountPaid)
	return moved
}

func (r *Reservation) transition(action Action, now time.Time) error {
	next, err := Next(r.Status, action)
	if err != nil {
		return err
	}
	r.Status = next
	r.UpdatedAt = now
	return nil
}

func (r *Reservation) CanConfirmPayment() error {
	_, err := Next(r.Status, ActionConfirmPayment)
	return err
}

// ApplyPaymentConfirmed credits a settled fee payment up to the outstanding
// amount. The service refunds whatever is left over.
func (r *Reservation) ApplyPaymentConfirmed(amount decimal.Decimal, now time.Time) error {
	if err := r.transition(ActionConfirmPayment, now); err != nil {
		return err
	}
	r.credit(amount)
	r.ConfirmedAt = &now
	return nil
}

// ValidateExtension checks the requested number of days.
func ValidateExtension(days int) error {
	if days < minExtensionDays || days > maxExtensionDays {
		return dErrors.New(dErrors.CodeValidation, "additional days must be between 1 and 365")
	}
	return nil
}

func (r *Reservation) ApplyExtension(days int, by id.Actor, now time.Time) error {
	if err := ValidateExtension(days); err != nil {
		return err
	}
	if err := r.transition(ActionExtend, now); err != nil {
		return err
	}
	r.ExpiresAt = r.ExpiresAt.AddDate(0, 0, days)
	r.ExtendedAt = &now
	r.AddNote(by, "hold extended by "+pluralDays(days), now)
	return nil
}

// ApplyCancelled closes the reservation at the caller's request.
func (r *Reservation) ApplyCancelled(reason string, by id.Actor, now time.Time) error {
	if err := r.transition(ActionCancel, now); err != nil {
		return err
	}
	r.CancelledAt = &now
	r.AddNote(by, closingNote("cancelled", reason), now)
	return nil
}

// ApplyExpired closes a lapsed reservation on behalf of the sweep.
func (r *Reservation) ApplyExpired(now time.Time) error {
	if err := r.transition(ActionExpire, now); err != nil {
		return err
	}
	r.ExpiredAt = &now
	r.AddNote(id.SystemActor, closingNote("expired", ExpiryReason), now)
	return nil
}

func (r *Reservation) ApplyConverted(now time.Time) error {
	if err := r.transition(ActionConvert, now); err != nil {
		return err
	}
	r.ConvertedAt = &now
	return nil
}

// ApplyDeposit reduces the outstanding fee by a grant deposit and returns the
// amount actually applied, which is clamped so outstanding never goes negative.
func (r *Reservation) ApplyDeposit(amount decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, dErrors.New(dErrors.CodeValidation, "applied amount must be positive")
	}
	if err := r.transition(ActionApplyDeposit, now); err != nil {
		return decimal.Zero, err
	}
	return r.credit(amount), nil
}

func (r *Reservation) AddNote(by id.Actor, body string, now time.Time) {
	r.Notes = append(r.Notes, Note{
		ID:        id.NewNoteID(),
		Author:    by,
		Body:      body,
		CreatedAt: now,
	})
}

// CheckInvariants is run before every save.
func (r *Reservation) CheckInvariants() error {
	if !r.AmountPaid.Add(r.OutstandingAmount).Equal(r.FeeAmount) {
		return dErrors.New(dErrors.CodeInvariantViolation, "amount paid plus outstanding must equal fee")
	}
	if r.AmountPaid.IsNegative() || r.OutstandingAmount.IsNegative() {
		return dErrors.New(dErrors.CodeInvariantViolation, "reservation amounts cannot be negative")
	}
	if !r.ExpiresAt.After(r.CreatedAt) {
		return dErrors.New(dErrors.CodeInvariantViolation, "expiry must be after creation")
	}
	return nil
}

func closingNote(verb, reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return verb
	}
	return verb + ": " + reason
}

func pluralDays(days int) string {
	if days == 1 {
		return "1 day"
	}
	return strconv.Itoa(days) + " days"
}
