package handler

import (
	"strings"

	"github.com/shopspring/decimal"

	"propie/internal/reservation/models"
	id "propie/pkg/domain"
	dErrors "propie/pkg/domain-errors"
)

// CreateReservationRequest is the body for POST /reservations.
type CreateReservationRequest struct {
	PropertyID       string           `json:"property_id" validate:"required,max=64"`
	BuyerID          string           `json:"buyer_id" validate:"omitempty,uuid"`
	Type             string           `json:"type" validate:"required,oneof=TEMPORARY_HOLD PAID_RESERVATION DEPOSIT_BOOKING CONTRACT_EXCHANGE"`
	FeeAmount        decimal.Decimal  `json:"fee_amount"`
	Buyer            BuyerDetails     `json:"buyer" validate:"required"`
	PropertySnapshot PropertySnapshot `json:"property" validate:"required"`

	parsedPropertyID id.PropertyID
	parsedBuyerID    id.UserID
}

type BuyerDetails struct {
	Name           string `json:"name" validate:"required,max=200"`
	Email          string `json:"email" validate:"required,email"`
	Phone          string `json:"phone" validate:"omitempty,max=32"`
	FirstTimeBuyer bool   `json:"first_time_buyer"`
	Solicitor      string `json:"solicitor" validate:"omitempty,max=200"`
}

type PropertySnapshot struct {
	Name            string          `json:"name" validate:"required,max=200"`
	Address         string          `json:"address" validate:"required,max=500"`
	Price           decimal.Decimal `json:"price"`
	DevelopmentName string          `json:"development_name" validate:"omitempty,max=200"`
}

// Validate implements httputil.Validatable.
func (r *CreateReservationRequest) Validate() error {
	if !r.FeeAmount.IsPositive() {
		return dErrors.New(dErrors.CodeValidation, "fee_amount must be positive")
	}
	if r.PropertySnapshot.Price.IsNegative() {
		return dErrors.New(dErrors.CodeValidation, "property.price cannot be negative")
	}
	propertyID, err := id.ParsePropertyID(r.PropertyID)
	if err != nil {
		return err
	}
	r.parsedPropertyID = propertyID
	if r.BuyerID != "" {
		buyerID, err := id.ParseUserID(r.BuyerID)
		if err != nil {
			return err
		}
		r.parsedBuyerID = buyerID
	}
	return nil
}

func (r *CreateReservationRequest) buyerDetails() models.BuyerDetails {
	return models.BuyerDetails{
		Name:           strings.TrimSpace(r.Buyer.Name),
		Email:          strings.TrimSpace(r.Buyer.Email),
		Phone:          r.Buyer.Phone,
		FirstTimeBuyer: r.Buyer.FirstTimeBuyer,
		Solicitor:      r.Buyer.Solicitor,
	}
}

func (r *CreateReservationRequest) propertySnapshot() models.PropertySnapshot {
	return models.PropertySnapshot{
		Name:            strings.TrimSpace(r.PropertySnapshot.Name),
		Address:         strings.TrimSpace(r.PropertySnapshot.Address),
		Price:           r.PropertySnapshot.Price,
		DevelopmentName: r.PropertySnapshot.DevelopmentName,
	}
}

// ConfirmPaymentRequest is the body for POST /reservations/{id}/confirm-payment.
type ConfirmPaymentRequest struct {
	TransactionRef string `json:"transaction_ref" validate:"required,max=128"`
	PaymentMethod  string `json:"payment_method" validate:"required,max=64"`
}

// ExtendRequest is the body for POST /reservations/{id}/extend.
type ExtendRequest struct {
	AdditionalDays int `json:"additional_days" validate:"min=1,max=365"`
}

// CancelRequest is the body for POST /reservations/{id}/cancel.
type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}
