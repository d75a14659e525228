package handler

import (
	"time"

	ledgermodels "propie/internal/ledger/models"
	"propie/internal/reservation/models"
)

// ReservationResponse is the HTTP view of a reservation. Money is rendered as
// fixed two-decimal strings.
type ReservationResponse struct {
	ID                string                  `json:"id"`
	Reference         string                  `json:"reference"`
	PropertyID        string                  `json:"property_id"`
	BuyerID           string                  `json:"buyer_id"`
	Type              string                  `json:"type"`
	Status            string                  `json:"status"`
	FeeAmount         string                  `json:"fee_amount"`
	AmountPaid        string                  `json:"amount_paid"`
	OutstandingAmount string                  `json:"outstanding_amount"`
	Buyer             models.BuyerDetails     `json:"buyer"`
	Property          models.PropertySnapshot `json:"property"`
	Notes             []models.Note           `json:"notes"`
	Transactions      []TransactionResponse   `json:"transactions,omitempty"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
	ExpiresAt         time.Time               `json:"expires_at"`
	ConfirmedAt       *time.Time              `json:"confirmed_at,omitempty"`
	CancelledAt       *time.Time              `json:"cancelled_at,omitempty"`
	ExpiredAt         *time.Time              `json:"expired_at,omitempty"`
	ConvertedAt       *time.Time              `json:"converted_at,omitempty"`
	ExtendedAt        *time.Time              `json:"extended_at,omitempty"`
}

type TransactionResponse struct {
	ID            string     `json:"id"`
	Type          string     `json:"type"`
	Status        string     `json:"status"`
	Amount        string     `json:"amount"`
	Reference     string     `json:"reference,omitempty"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
}

// ResultResponse wraps a mutated reservation with post-commit warnings.
type ResultResponse struct {
	Reservation *ReservationResponse `json:"reservation"`
	Warnings    []string             `json:"warnings,omitempty"`
}

type ListResponse struct {
	Reservations []*ReservationResponse `json:"reservations"`
}

func FromReservation(r *models.Reservation) *ReservationResponse {
	resp := &ReservationResponse{
		ID:                r.ID.String(),
		Reference:         r.Reference,
		PropertyID:        r.PropertyID.String(),
		BuyerID:           r.BuyerID.String(),
		Type:              string(r.Type),
		Status:            string(r.Status),
		FeeAmount:         r.FeeAmount.StringFixed(2),
		AmountPaid:        r.AmountPaid.StringFixed(2),
		OutstandingAmount: r.OutstandingAmount.StringFixed(2),
		Buyer:             r.BuyerDetails,
		Property:          r.PropertySnapshot,
		Notes:             r.Notes,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
		ExpiresAt:         r.ExpiresAt,
		ConfirmedAt:       r.ConfirmedAt,
		CancelledAt:       r.CancelledAt,
		ExpiredAt:         r.ExpiredAt,
		ConvertedAt:       r.ConvertedAt,
		ExtendedAt:        r.ExtendedAt,
	}
	for _, t := range r.Transactions {
		resp.Transactions = append(resp.Transactions, fromTransaction(t))
	}
	return resp
}

func fromTransaction(t *ledgermodels.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:            t.ID.String(),
		Type:          string(t.Type),
		Status:        string(t.Status),
		Amount:        t.Amount.StringFixed(2),
		Reference:     t.Reference,
		PaymentMethod: t.PaymentMethod,
		CreatedAt:     t.CreatedAt,
		ProcessedAt:   t.ProcessedAt,
	}
}

func FromResult(res *models.Result) *ResultResponse {
	return &ResultResponse{Reservation: FromReservation(res.Reservation), Warnings: res.Warnings}
}
