package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"propie/internal/grantclaim/models"
	id "propie/pkg/domain"
	dErrors "propie/pkg/domain-errors"
)

// InitiateRequest is the body for POST /grant-claims.
type InitiateRequest struct {
	PropertyID      string          `json:"property_id" validate:"required,max=64"`
	BuyerID         string          `json:"buyer_id" validate:"omitempty,uuid"`
	DeveloperID     string          `json:"developer_id" validate:"omitempty,uuid"`
	RequestedAmount decimal.Decimal `json:"requested_amount"`

	parsedPropertyID  id.PropertyID
	parsedBuyerID     id.UserID
	parsedDeveloperID *id.UserID
}

func (r *InitiateRequest) Validate() error {
	if !r.RequestedAmount.IsPositive() {
		return dErrors.New(dErrors.CodeValidation, "requested_amount must be positive")
	}
	propertyID, err := id.ParsePropertyID(r.PropertyID)
	if err != nil {
		return err
	}
	r.parsedPropertyID = propertyID
	if r.BuyerID != "" {
		if r.parsedBuyerID, err = id.ParseUserID(r.BuyerID); err != nil {
			return err
		}
	}
	if r.DeveloperID != "" {
		dev, err := id.ParseUserID(r.DeveloperID)
		if err != nil {
			return err
		}
		r.parsedDeveloperID = &dev
	}
	return nil
}

type AccessCodeRequest struct {
	Code   string    `json:"code" validate:"required,max=64"`
	Expiry time.Time `json:"expiry" validate:"required"`
}

// DecisionRequest is the developer's verdict on a submitted access code.
type DecisionRequest struct {
	Approve *bool  `json:"approve" validate:"required"`
	Note    string `json:"note" validate:"max=1000"`
}

type DocumentRequest struct {
	ID   string `json:"id" validate:"required,uuid"`
	URL  string `json:"url" validate:"required,url,max=2048"`
	Name string `json:"name" validate:"omitempty,max=200"`
	Kind string `json:"kind" validate:"omitempty,max=64"`
}

func (r DocumentRequest) toModel() (models.DocumentRef, error) {
	docID, err := id.ParseDocumentID(r.ID)
	if err != nil {
		return models.DocumentRef{}, err
	}
	return models.DocumentRef{ID: docID, URL: r.URL, Name: r.Name, Kind: r.Kind}, nil
}

// Validate implements httputil.Validatable.
func (r *DocumentRequest) Validate() error {
	_, err := r.toModel()
	return err
}

// ClaimCodeRequest is the body for POST /grant-claims/{id}/claim-code.
type ClaimCodeRequest struct {
	Code           string           `json:"code" validate:"required,max=64"`
	Expiry         time.Time        `json:"expiry" validate:"required"`
	ApprovedAmount decimal.Decimal  `json:"approved_amount"`
	Evidence       *DocumentRequest `json:"evidence" validate:"required"`

	evidence models.DocumentRef
}

func (r *ClaimCodeRequest) Validate() error {
	if !r.ApprovedAmount.IsPositive() {
		return dErrors.New(dErrors.CodeValidation, "approved_amount must be positive")
	}
	ref, err := r.Evidence.toModel()
	if err != nil {
		return err
	}
	r.evidence = ref
	return nil
}

type RequestFundsRequest struct {
	Note string `json:"note" validate:"max=1000"`
}

// AmountRequest carries a money amount for funds received and deposit applied.
type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (r *AmountRequest) Validate() error {
	if !r.Amount.IsPositive() {
		return dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	return nil
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type NoteRequest struct {
	Body    string `json:"body" validate:"required,max=4000"`
	Private bool   `json:"private"`
}
