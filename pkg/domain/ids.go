package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "propie/pkg/domain-errors"
)

// Typed identifiers. Each wraps a UUID so a ReservationID can never be passed
// where a ClaimID is expected. Construct from external input with the Parse
// functions; generate new ones with the New functions (UUIDv7, time ordered).
type (
	UserID        uuid.UUID
	ReservationID uuid.UUID
	ClaimID       uuid.UUID
	TransactionID uuid.UUID
	EntryID       uuid.UUID
	NoteID        uuid.UUID
	DocumentID    uuid.UUID
)

// PropertyID identifies a listing in the external catalog. It is opaque to this
// system, so only shape is checked.
type PropertyID string

const maxPropertyIDLength = 64

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be empty")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be nil")
	}
	return parsed, nil
}

// newUUID returns a UUIDv7, falling back to v4 if the clock source fails.
func newUUID() uuid.UUID {
	u, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return u
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID("user ID", s)
	return UserID(u), err
}

func ParseReservationID(s string) (ReservationID, error) {
	u, err := parseUUID("reservation ID", s)
	return ReservationID(u), err
}

func ParseClaimID(s string) (ClaimID, error) {
	u, err := parseUUID("claim ID", s)
	return ClaimID(u), err
}

func ParseTransactionID(s string) (TransactionID, error) {
	u, err := parseUUID("transaction ID", s)
	return TransactionID(u), err
}

func ParseDocumentID(s string) (DocumentID, error) {
	u, err := parseUUID("document ID", s)
	return DocumentID(u), err
}

// ParsePropertyID validates an external property identifier.
func ParsePropertyID(s string) (PropertyID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "property ID cannot be empty")
	}
	if len(s) > maxPropertyIDLength || !utf8.ValidString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid property ID")
	}
	return PropertyID(s), nil
}

func NewUserID() UserID               { return UserID(newUUID()) }
func NewReservationID() ReservationID { return ReservationID(newUUID()) }
func NewDocumentID() DocumentID       { return DocumentID(newUUID()) }
func NewClaimID() ClaimID             { return ClaimID(newUUID()) }
func NewTransactionID() TransactionID { return TransactionID(newUUID()) }
func NewEntryID() EntryID             { return EntryID(newUUID()) }
func NewNoteID() NoteID               { return NoteID(newUUID()) }

func (id UserID) String() string        { return uuid.UUID(id).String() }
func (id ReservationID) String() string { return uuid.UUID(id).String() }
func (id ClaimID) String() string       { return uuid.UUID(id).String() }
func (id TransactionID) String() string { return uuid.UUID(id).String() }
func (id EntryID) String() string       { return uuid.UUID(id).String() }
func (id NoteID) String() string        { return uuid.UUID(id).String() }
func (id DocumentID) String() string    { return uuid.UUID(id).String() }
func (id PropertyID) String() string    { return string(id) }

func (id UserID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id ReservationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ClaimID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id TransactionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id DocumentID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// MarshalText lets typed IDs serialize as plain UUID strings in JSON.
func (id UserID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id ReservationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id ClaimID) MarshalText() ([]byte, error)       { return []byte(id.String()), nil }
func (id TransactionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id EntryID) MarshalText() ([]byte, error)       { return []byte(id.String()), nil }
func (id NoteID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id DocumentID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }

// UnmarshalText is the inverse of MarshalText, used when IDs are read back
// from JSON columns and event payloads.
func (id *UserID) UnmarshalText(b []byte) error        { return unmarshalUUID(b, (*uuid.UUID)(id)) }
func (id *ReservationID) UnmarshalText(b []byte) error { return unmarshalUUID(b, (*uuid.UUID)(id)) }
func (id *ClaimID) UnmarshalText(b []byte) error       { return unmarshalUUID(b, (*uuid.UUID)(id)) }
func (id *TransactionID) UnmarshalText(b []byte) error { return unmarshalUUID(b, (*uuid.UUID)(id)) }
func (id *EntryID) UnmarshalText(b []byte) error       { return unmarshalUUID(b, (*uuid.UUID)(id)) }
func (id *NoteID) UnmarshalText(b []byte) error        { return unmarshalUUID(b, (*uuid.UUID)(id)) }
func (id *DocumentID) UnmarshalText(b []byte) error    { return unmarshalUUID(b, (*uuid.UUID)(id)) }

func unmarshalUUID(b []byte, dst *uuid.UUID) error {
	if len(b) == 0 {
		*dst = uuid.Nil
		return nil
	}
	parsed, err := uuid.ParseBytes(b)
	if err != nil {
		return err
	}
	*dst = parsed
	return nil
}

// Reference derives a human-facing reference from an ID, e.g. RES-0190F3A2....
// The full 128 bits are kept, so references are as unique as the IDs.
func Reference(prefix string, u uuid.UUID) string {
	return prefix + "-" + strings.ToUpper(strings.ReplaceAll(u.String(), "-", ""))
}
