package models

import (
	"time"

	dErrors "propie/pkg/domain-errors"
)

// Status is the reservation lifecycle state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusExpired   Status = "EXPIRED"
	StatusCancelled Status = "CANCELLED"
	StatusConverted Status = "CONVERTED"
)

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusExpired, StatusCancelled, StatusConverted:
		return true
	case StatusPending, StatusConfirmed:
		return false
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// ActiveStatuses are the statuses that hold a property.
var ActiveStatuses = []Status{StatusPending, StatusConfirmed}

// Type is the commercial form of the reservation; it fixes the default hold period.
type Type string

const (
	TypeTemporaryHold    Type = "TEMPORARY_HOLD"
	TypePaidReservation  Type = "PAID_RESERVATION"
	TypeDepositBooking   Type = "DEPOSIT_BOOKING"
	TypeContractExchange Type = "CONTRACT_EXCHANGE"
)

// ParseType constructs a Type from external input.
func ParseType(s string) (Type, error) {
	t := Type(s)
	switch t {
	case TypeTemporaryHold, TypePaidReservation, TypeDepositBooking, TypeContractExchange:
		return t, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "unknown reservation type")
}

// TTLPolicy maps each reservation type to its hold period.
type TTLPolicy map[Type]time.Duration

// DefaultTTLs are the standard hold periods.
func DefaultTTLs() TTLPolicy {
	return TTLPolicy{
		TypeTemporaryHold:    24 * time.Hour,
		TypePaidReservation:  14 * 24 * time.Hour,
		TypeDepositBooking:   30 * 24 * time.Hour,
		TypeContractExchange: 90 * 24 * time.Hour,
	}
}

// For returns the hold period for t, falling back to the default table.
func (p TTLPolicy) For(t Type) time.Duration {
	if d, ok := p[t]; ok && d > 0 {
		return d
	}
	return DefaultTTLs()[t]
}
