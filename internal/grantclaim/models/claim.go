package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	id "propie/pkg/domain"
	dErrors "propie/pkg/domain-errors"
)

const referencePrefix = "HTB"

// ErrNotDue is returned by Expire when the claim's deadline has not passed.
var ErrNotDue = errors.New("grant claim not due")

// StatusHistoryEntry records one transition. PreviousStatus is nil only for
// the entry that opened the claim.
type StatusHistoryEntry struct {
	ID             id.EntryID `json:"id"`
	Seq            int        `json:"seq"`
	PreviousStatus *Status    `json:"previous_status"`
	NewStatus      Status     `json:"new_status"`
	Actor          id.Actor   `json:"actor"`
	Note           string     `json:"note,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
}

// Note is an append-only annotation. Private notes are hidden from buyers.
type Note struct {
	ID        id.NoteID `json:"id"`
	Author    id.Actor  `json:"author"`
	Body      string    `json:"body"`
	Private   bool      `json:"private"`
	CreatedAt time.Time `json:"created_at"`
}

// DocumentRef points at a file held by the external document service.
// The claim never owns the bytes.
type DocumentRef struct {
	ID         id.DocumentID `json:"id"`
	URL        string        `json:"url"`
	Name       string        `json:"name"`
	Kind       string        `json:"kind"`
	AttachedBy id.Actor      `json:"attached_by"`
	AttachedAt time.Time     `json:"attached_at"`
}

// Validate checks the caller-supplied part of a reference.
func (d DocumentRef) Validate() error {
	if d.ID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "document ID is required")
	}
	if strings.TrimSpace(d.URL) == "" {
		return dErrors.New(dErrors.CodeValidation, "document URL is required")
	}
	return nil
}

// GrantClaim tracks a buyer's drawdown of a government purchase incentive.
type GrantClaim struct {
	ID                   id.ClaimID           `json:"id"`
	Reference            string               `json:"reference"`
	BuyerID              id.UserID            `json:"buyer_id"`
	DeveloperID          *id.UserID           `json:"developer_id,omitempty"`
	PropertyID           id.PropertyID        `json:"property_id"`
	Status               Status               `json:"status"`
	RequestedAmount      decimal.Decimal      `json:"requested_amount"`
	ApprovedAmount       decimal.NullDecimal  `json:"approved_amount"`
	DrawdownAmount       decimal.NullDecimal  `json:"drawdown_amount"`
	DepositAppliedAmount decimal.NullDecimal  `json:"deposit_applied_amount"`
	AccessCode           string               `json:"access_code,omitempty"`
	AccessCodeExpiry     *time.Time           `json:"access_code_expiry,omitempty"`
	ClaimCode            string               `json:"claim_code,omitempty"`
	ClaimCodeExpiry      *time.Time           `json:"claim_code_expiry,omitempty"`
	Documents            []DocumentRef        `json:"documents"`
	Notes                []Note               `json:"notes"`
	StatusHistory        []StatusHistoryEntry `json:"status_history"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
	Version              int64                `json:"version"`
}

// Result is returned by every mutating operation. Warnings carry
// collaborator failures that happened after the change committed.
type Result struct {
	Claim    *GrantClaim `json:"claim"`
	Warnings []string    `json:"warnings,omitempty"`
}

// AppliedDeposit describes how a deposit landed on the linked reservation.
type AppliedDeposit struct {
	ReservationID        id.ReservationID
	ReservationReference string
	Applied              decimal.Decimal
	Outstanding          decimal.Decimal
}

// NewGrantClaim opens a claim in INITIATED with its first history entry.
func NewGrantClaim(
	cid id.ClaimID,
	buyerID id.UserID,
	propertyID id.PropertyID,
	developerID *id.UserID,
	requested decimal.Decimal,
	by id.Actor,
	now time.Time,
) (*GrantClaim, error) {
	if buyerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "buyer ID required")
	}
	if propertyID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "property ID required")
	}
	if !requested.IsPositive() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "requested amount must be positive")
	}
	c := &GrantClaim{
		ID:              cid,
		Reference:       id.Reference(referencePrefix, uuid.UUID(cid)),
		BuyerID:         buyerID,
		DeveloperID:     developerID,
		PropertyID:      propertyID,
		Status:          StatusInitiated,
		RequestedAmount: requested.Round(2),
		Documents:       []DocumentRef{},
		Notes:           []Note{},
		CreatedAt:       now,
		UpdatedAt:       now,
		Version:         1,
	}
	c.StatusHistory = []StatusHistoryEntry{{
		ID:        id.NewEntryID(),
		Seq:       0,
		NewStatus: StatusInitiated,
		Actor:     by,
		Note:      "claim initiated",
		Timestamp: now,
	}}
	return c, nil
}

// Clone returns a copy that shares no slices or pointers with c.
func (c *GrantClaim) Clone() *GrantClaim {
	out := *c
	out.Documents = append([]DocumentRef(nil), c.Documents...)
	out.Notes = append([]Note(nil), c.Notes...)
	out.StatusHistory = make([]StatusHistoryEntry, len(c.StatusHistory))
	for i, e := range c.StatusHistory {
		if e.PreviousStatus != nil {
			prev := *e.PreviousStatus
			e.PreviousStatus = &prev
		}
		out.StatusHistory[i] = e
	}
	if c.DeveloperID != nil {
		dev := *c.DeveloperID
		out.DeveloperID = &dev
	}
	out.AccessCodeExpiry = cloneTime(c.AccessCodeExpiry)
	out.ClaimCodeExpiry = cloneTime(c.ClaimCodeExpiry)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Deadline is the code expiry that bounds the current status, if any.
func (c *GrantClaim) Deadline() *time.Time {
	switch c.Status.deadline() {
	case accessCodeDeadline:
		return c.AccessCodeExpiry
	case claimCodeDeadline:
		return c.ClaimCodeExpiry
	case noDeadline:
		return nil
	}
	return nil
}

// IsDue reports whether the current deadline has passed at now.
func (c *GrantClaim) IsDue(now time.Time) bool {
	d := c.Deadline()
	return d != nil && !d.After(now) && Allows(c.Status, ActionExpire)
}

// CanAct checks the actor against the claim's parties. Buyers act on their
// own claims; developers on claims assigned to them or not yet assigned.
func (c *GrantClaim) CanAct(actor id.Actor) error {
	switch actor.Role {
	case id.RoleBuyer:
		if actor.ID != c.BuyerID {
			return dErrors.New(dErrors.CodeForbidden, "claim belongs to another buyer")
		}
	case id.RoleDeveloper:
		if c.DeveloperID != nil && *c.DeveloperID != actor.ID {
			return dErrors.New(dErrors.CodeForbidden, "claim is assigned to another developer")
		}
	case id.RoleAdmin, id.RoleSystem, "":
	}
	return nil
}

// transition moves the claim along the table and appends the history entry.
func (c *GrantClaim) transition(action Action, by id.Actor, note string, now time.Time) error {
	next, err := Next(c.Status, action, by.Role)
	if err != nil {
		return err
	}
	previous := c.Status
	c.StatusHistory = append(c.StatusHistory, StatusHistoryEntry{
		ID:             id.NewEntryID(),
		Seq:            len(c.StatusHistory),
		PreviousStatus: &previous,
		NewStatus:      next,
		Actor:          by,
		Note:           strings.TrimSpace(note),
		Timestamp:      now,
	})
	c.Status = next
	c.UpdatedAt = now
	if by.Role == id.RoleDeveloper && c.DeveloperID == nil {
		dev := by.ID
		c.DeveloperID = &dev
	}
	return nil
}

// check resolves a transition without applying it, so input validation that
// follows can fail without touching c.
func (c *GrantClaim) check(action Action, by id.Actor) error {
	_, err := Next(c.Status, action, by.Role)
	return err
}

func (c *GrantClaim) RecordAccessCode(code string, expiry time.Time, by id.Actor, now time.Time) error {
	if err := c.check(ActionRecordAccessCode, by); err != nil {
		return err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return dErrors.New(dErrors.CodeValidation, "access code is required")
	}
	if !expiry.After(now) {
		return dErrors.New(dErrors.CodeValidation, "access code expiry must be in the future")
	}
	if err := c.transition(ActionRecordAccessCode, by, "access code received", now); err != nil {
		return err
	}
	c.AccessCode = code
	c.AccessCodeExpiry = &expiry
	return nil
}

func (c *GrantClaim) SubmitAccessCode(by id.Actor, now time.Time) error {
	return c.transition(ActionSubmitAccessCode, by, "access code submitted to developer", now)
}

// ProcessAccessCode records the developer's decision on the submitted code.
func (c *GrantClaim) ProcessAccessCode(approve bool, note string, by id.Actor, now time.Time) error {
	action := ActionRejectAccessCode
	if approve {
		action = ActionApproveAccessCode
	}
	return c.transition(action, by, note, now)
}

// IssueClaimCode records the claim code with its approved amount and evidence.
func (c *GrantClaim) IssueClaimCode(
	code string,
	expiry time.Time,
	approved decimal.Decimal,
	evidence *DocumentRef,
	by id.Actor,
	now time.Time,
) error {
	if err := c.check(ActionIssueClaimCode, by); err != nil {
		return err
	}
	code = strings.TrimSpace(code)
	switch {
	case evidence == nil:
		return dErrors.New(dErrors.CodeValidation, "evidence document is required")
	case code == "":
		return dErrors.New(dErrors.CodeValidation, "claim code is required")
	case !expiry.After(now):
		return dErrors.New(dErrors.CodeValidation, "claim code expiry must be in the future")
	case !approved.IsPositive():
		return dErrors.New(dErrors.CodeValidation, "approved amount must be positive")
	case approved.GreaterThan(c.RequestedAmount):
		return dErrors.New(dErrors.CodeValidation, "approved amount cannot exceed requested amount")
	}
	if err := evidence.Validate(); err != nil {
		return err
	}
	if err := c.transition(ActionIssueClaimCode, by, "claim code issued", now); err != nil {
		return err
	}
	c.ClaimCode = code
	c.ClaimCodeExpiry = &expiry
	c.ApprovedAmount = decimal.NewNullDecimal(approved.Round(2))
	c.attach(*evidence, by, now)
	return nil
}

func (c *GrantClaim) RequestFunds(note string, by id.Actor, now time.Time) error {
	if strings.TrimSpace(note) == "" {
		note = "funds requested"
	}
	return c.transition(ActionRequestFunds, by, note, now)
}

// ReceiveFunds records the drawdown, which may not exceed the approved amount.
func (c *GrantClaim) ReceiveFunds(received decimal.Decimal, by id.Actor, now time.Time) error {
	if err := c.check(ActionReceiveFunds, by); err != nil {
		return err
	}
	if !received.IsPositive() {
		return dErrors.New(dErrors.CodeValidation, "received amount must be positive")
	}
	if !c.ApprovedAmount.Valid || received.GreaterThan(c.ApprovedAmount.Decimal) {
		return dErrors.New(dErrors.CodeValidation, "received amount cannot exceed approved amount")
	}
	if err := c.transition(ActionReceiveFunds, by, "funds received "+received.StringFixed(2), now); err != nil {
		return err
	}
	c.DrawdownAmount = decimal.NewNullDecimal(received.Round(2))
	return nil
}

// CanApplyDeposit validates a deposit against the drawdown before any
// reservation is touched.
func (c *GrantClaim) CanApplyDeposit(amount decimal.Decimal, by id.Actor) error {
	if err := c.check(ActionApplyDeposit, by); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return dErrors.New(dErrors.CodeValidation, "applied amount must be positive")
	}
	if !c.DrawdownAmount.Valid || amount.GreaterThan(c.DrawdownAmount.Decimal) {
		return dErrors.New(dErrors.CodeInsufficientBalance, "applied amount exceeds drawdown")
	}
	return nil
}

func (c *GrantClaim) ApplyDeposit(amount decimal.Decimal, applied AppliedDeposit, by id.Actor, now time.Time) error {
	if err := c.CanApplyDeposit(amount, by); err != nil {
		return err
	}
	note := "deposit " + amount.StringFixed(2) + " applied to " + applied.ReservationReference +
		", reduced outstanding by " + applied.Applied.StringFixed(2)
	if err := c.transition(ActionApplyDeposit, by, note, now); err != nil {
		return err
	}
	c.DepositAppliedAmount = decimal.NewNullDecimal(amount.Round(2))
	return nil
}

func (c *GrantClaim) Complete(by id.Actor, now time.Time) error {
	return c.transition(ActionComplete, by, "claim completed", now)
}

func (c *GrantClaim) Cancel(reason string, by id.Actor, now time.Time) error {
	note := "cancelled"
	if reason = strings.TrimSpace(reason); reason != "" {
		note += ": " + reason
	}
	return c.transition(ActionCancel, by, note, now)
}

// Expire closes a claim whose current deadline passed.
func (c *GrantClaim) Expire(now time.Time) error {
	if !c.IsDue(now) {
		return ErrNotDue
	}
	return c.transition(ActionExpire, id.SystemActor, "code expired", now)
}

// AddNote is allowed in every status, terminal ones included.
func (c *GrantClaim) AddNote(body string, private bool, by id.Actor, now time.Time) error {
	body = strings.TrimSpace(body)
	if body == "" {
		return dErrors.New(dErrors.CodeValidation, "note body is required")
	}
	c.Notes = append(c.Notes, Note{
		ID:        id.NewNoteID(),
		Author:    by,
		Body:      body,
		Private:   private,
		CreatedAt: now,
	})
	c.UpdatedAt = now
	return nil
}

// AttachDocument links a document while the claim is still open.
func (c *GrantClaim) AttachDocument(ref DocumentRef, by id.Actor, now time.Time) error {
	if c.Status.IsTerminal() {
		return dErrors.InvalidTransition("grant claim", string(c.Status), nonTerminalNames()...)
	}
	if err := ref.Validate(); err != nil {
		return err
	}
	for _, d := range c.Documents {
		if d.ID == ref.ID {
			return dErrors.New(dErrors.CodeConflict, "document already attached")
		}
	}
	c.attach(ref, by, now)
	c.UpdatedAt = now
	return nil
}

func (c *GrantClaim) attach(ref DocumentRef, by id.Actor, now time.Time) {
	ref.AttachedBy = by
	ref.AttachedAt = now
	c.Documents = append(c.Documents, ref)
}

// VisibleTo hides private notes from buyers.
func (c *GrantClaim) VisibleTo(actor id.Actor) *GrantClaim {
	if actor.Role != id.RoleBuyer {
		return c
	}
	out := c.Clone()
	out.Notes = out.Notes[:0]
	for _, n := range c.Notes {
		if !n.Private {
			out.Notes = append(out.Notes, n)
		}
	}
	return out
}

// CheckInvariants is run before every save.
func (c *GrantClaim) CheckInvariants() error {
	if len(c.StatusHistory) == 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "claim has no status history")
	}
	for i, e := range c.StatusHistory {
		if e.Seq != i {
			return dErrors.New(dErrors.CodeInvariantViolation, "status history out of sequence")
		}
		if i == 0 {
			if e.PreviousStatus != nil {
				return dErrors.New(dErrors.CodeInvariantViolation, "first history entry must have no previous status")
			}
			continue
		}
		if e.PreviousStatus == nil || *e.PreviousStatus != c.StatusHistory[i-1].NewStatus {
			return dErrors.New(dErrors.CodeInvariantViolation, "status history is not a continuous walk")
		}
	}
	if c.StatusHistory[len(c.StatusHistory)-1].NewStatus != c.Status {
		return dErrors.New(dErrors.CodeInvariantViolation, "status history does not end at current status")
	}
	if c.ClaimCode != "" && (!c.ApprovedAmount.Valid || !c.hasApprovedAccessCode()) {
		return dErrors.New(dErrors.CodeInvariantViolation, "claim code set before access code approval")
	}
	if c.ApprovedAmount.Valid && c.ApprovedAmount.Decimal.GreaterThan(c.RequestedAmount) {
		return dErrors.New(dErrors.CodeInvariantViolation, "approved amount exceeds requested amount")
	}
	if c.DrawdownAmount.Valid && (!c.ApprovedAmount.Valid || c.DrawdownAmount.Decimal.GreaterThan(c.ApprovedAmount.Decimal)) {
		return dErrors.New(dErrors.CodeInvariantViolation, "drawdown exceeds approved amount")
	}
	if c.DepositAppliedAmount.Valid && (!c.DrawdownAmount.Valid || c.DepositAppliedAmount.Decimal.GreaterThan(c.DrawdownAmount.Decimal)) {
		return dErrors.New(dErrors.CodeInvariantViolation, "applied deposit exceeds drawdown")
	}
	return nil
}

// hasApprovedAccessCode reports whether the walk passed through ACCESS_CODE_APPROVED.
func (c *GrantClaim) hasApprovedAccessCode() bool {
	for _, e := range c.StatusHistory {
		if e.NewStatus == StatusAccessCodeApproved {
			return true
		}
	}
	return false
}

func nonTerminalNames() []string {
	var out []string
	for _, st := range lifecycleOrder {
		if !st.IsTerminal() {
			out = append(out, string(st))
		}
	}
	return out
}
