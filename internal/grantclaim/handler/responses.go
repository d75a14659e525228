package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"propie/internal/grantclaim/models"
)

// ClaimResponse is the HTTP view of a grant claim.
type ClaimResponse struct {
	ID                   string                      `json:"id"`
	Reference            string                      `json:"reference"`
	BuyerID              string                      `json:"buyer_id"`
	DeveloperID          string                      `json:"developer_id,omitempty"`
	PropertyID           string                      `json:"property_id"`
	Status               string                      `json:"status"`
	RequestedAmount      string                      `json:"requested_amount"`
	ApprovedAmount       string                      `json:"approved_amount,omitempty"`
	DrawdownAmount       string                      `json:"drawdown_amount,omitempty"`
	DepositAppliedAmount string                      `json:"deposit_applied_amount,omitempty"`
	AccessCode           string                      `json:"access_code,omitempty"`
	AccessCodeExpiry     *time.Time                  `json:"access_code_expiry,omitempty"`
	ClaimCode            string                      `json:"claim_code,omitempty"`
	ClaimCodeExpiry      *time.Time                  `json:"claim_code_expiry,omitempty"`
	Documents            []models.DocumentRef        `json:"documents"`
	Notes                []models.Note               `json:"notes"`
	StatusHistory        []models.StatusHistoryEntry `json:"status_history"`
	CreatedAt            time.Time                   `json:"created_at"`
	UpdatedAt            time.Time                   `json:"updated_at"`
}

type ResultResponse struct {
	Claim    *ClaimResponse `json:"claim"`
	Warnings []string       `json:"warnings,omitempty"`
}

type ListResponse struct {
	Claims []*ClaimResponse `json:"claims"`
}

type HistoryResponse struct {
	History []models.StatusHistoryEntry `json:"history"`
}

func FromClaim(c *models.GrantClaim) *ClaimResponse {
	resp := &ClaimResponse{
		ID:                   c.ID.String(),
		Reference:            c.Reference,
		BuyerID:              c.BuyerID.String(),
		PropertyID:           c.PropertyID.String(),
		Status:               string(c.Status),
		RequestedAmount:      c.RequestedAmount.StringFixed(2),
		ApprovedAmount:       money(c.ApprovedAmount),
		DrawdownAmount:       money(c.DrawdownAmount),
		DepositAppliedAmount: money(c.DepositAppliedAmount),
		AccessCode:           c.AccessCode,
		AccessCodeExpiry:     c.AccessCodeExpiry,
		ClaimCode:            c.ClaimCode,
		ClaimCodeExpiry:      c.ClaimCodeExpiry,
		Documents:            c.Documents,
		Notes:                c.Notes,
		StatusHistory:        c.StatusHistory,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}
	if c.DeveloperID != nil {
		resp.DeveloperID = c.DeveloperID.String()
	}
	return resp
}

func FromResult(res *models.Result) *ResultResponse {
	return &ResultResponse{Claim: FromClaim(res.Claim), Warnings: res.Warnings}
}

func money(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}
