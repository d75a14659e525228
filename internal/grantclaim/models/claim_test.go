package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "propie/pkg/domain"
	dErrors "propie/pkg/domain-errors"
)

var (
	now       = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	buyer     = id.Actor{ID: id.NewUserID(), Role: id.RoleBuyer}
	developer = id.Actor{ID: id.NewUserID(), Role: id.RoleDeveloper}
)

func newClaim(t *testing.T) *GrantClaim {
	t.Helper()
	c, err := NewGrantClaim(id.NewClaimID(), buyer.ID, "PLOT-3", nil, decimal.NewFromInt(30000), buyer, now)
	require.NoError(t, err)
	return c
}

func evidence() *DocumentRef {
	return &DocumentRef{ID: id.NewDocumentID(), URL: "https://docs.example.com/htb/1.pdf", Name: "claim-code.pdf", Kind: "CLAIM_CODE_EVIDENCE"}
}

// approvedClaim walks a claim up to ACCESS_CODE_APPROVED.
func approvedClaim(t *testing.T) *GrantClaim {
	t.Helper()
	c := newClaim(t)
	require.NoError(t, c.RecordAccessCode("AC-123", now.Add(30*24*time.Hour), buyer, now))
	require.NoError(t, c.SubmitAccessCode(buyer, now))
	require.NoError(t, c.ProcessAccessCode(true, "looks good", developer, now))
	return c
}

func assertValidWalk(t *testing.T, c *GrantClaim) {
	t.Helper()
	require.NoError(t, c.CheckInvariants())
	require.NotEmpty(t, c.StatusHistory)
	assert.Nil(t, c.StatusHistory[0].PreviousStatus)
	for i := 1; i < len(c.StatusHistory); i++ {
		require.NotNil(t, c.StatusHistory[i].PreviousStatus)
		assert.Equal(t, c.StatusHistory[i-1].NewStatus, *c.StatusHistory[i].PreviousStatus)
	}
}

func TestNewGrantClaim(t *testing.T) {
	c := newClaim(t)
	assert.Equal(t, StatusInitiated, c.Status)
	assert.Regexp(t, `^HTB-[0-9A-F]{32}$`, c.Reference)
	require.Len(t, c.StatusHistory, 1)
	assertValidWalk(t, c)

	_, err := NewGrantClaim(id.NewClaimID(), buyer.ID, "PLOT-3", nil, decimal.Zero, buyer, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestHappyPathIsAValidWalk(t *testing.T) {
	c := approvedClaim(t)
	require.NoError(t, c.IssueClaimCode("CC-9", now.Add(90*24*time.Hour), decimal.NewFromInt(30000), evidence(), developer, now))
	require.NoError(t, c.RequestFunds("", developer, now))
	require.NoError(t, c.ReceiveFunds(decimal.NewFromInt(30000), developer, now))
	require.NoError(t, c.ApplyDeposit(decimal.NewFromInt(10000), AppliedDeposit{ReservationReference: "RES-1", Applied: decimal.NewFromInt(10000)}, developer, now))
	require.NoError(t, c.Complete(developer, now))

	assert.Equal(t, StatusCompleted, c.Status)
	assert.Len(t, c.StatusHistory, 9)
	assert.Len(t, c.Documents, 1)
	assert.Equal(t, developer.ID, *c.DeveloperID, "first developer action assigns the claim")
	assertValidWalk(t, c)
}

func TestClaimCodeRequiresApproval(t *testing.T) {
	c := approvedClaim(t)

	err := c.RequestFunds("", developer, now)
	te, ok := dErrors.AsTransition(err)
	require.True(t, ok, "expected transition error, got %v", err)
	assert.Equal(t, "ACCESS_CODE_APPROVED", te.Current)
	assert.Equal(t, []string{"CLAIM_CODE_ISSUED"}, te.Required)

	require.NoError(t, c.IssueClaimCode("CC-9", now.Add(time.Hour), decimal.NewFromInt(30000), evidence(), developer, now))
	assert.Equal(t, StatusClaimCodeIssued, c.Status)
	require.NoError(t, c.RequestFunds("", developer, now))
	assert.Equal(t, StatusFundsRequested, c.Status)
}

func TestIssueClaimCodeValidation(t *testing.T) {
	cases := []struct {
		name     string
		code     string
		expiry   time.Time
		approved decimal.Decimal
		evidence *DocumentRef
	}{
		{"missing evidence", "CC", now.Add(time.Hour), decimal.NewFromInt(1), nil},
		{"empty code", " ", now.Add(time.Hour), decimal.NewFromInt(1), evidence()},
		{"past expiry", "CC", now.Add(-time.Hour), decimal.NewFromInt(1), evidence()},
		{"zero approved", "CC", now.Add(time.Hour), decimal.Zero, evidence()},
		{"approved over requested", "CC", now.Add(time.Hour), decimal.NewFromInt(30001), evidence()},
		{"evidence without url", "CC", now.Add(time.Hour), decimal.NewFromInt(1), &DocumentRef{ID: id.NewDocumentID()}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := approvedClaim(t)
			err := c.IssueClaimCode(tc.code, tc.expiry, tc.approved, tc.evidence, developer, now)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "got %v", err)
			assert.Equal(t, StatusAccessCodeApproved, c.Status, "failed validation leaves the claim untouched")
			assert.Empty(t, c.ClaimCode)
		})
	}
}

func TestRoles(t *testing.T) {
	c := newClaim(t)
	require.NoError(t, c.RecordAccessCode("AC", now.Add(time.Hour), buyer, now))
	require.NoError(t, c.SubmitAccessCode(buyer, now))

	admin := id.Actor{ID: id.NewUserID(), Role: id.RoleAdmin}
	err := c.ProcessAccessCode(true, "", buyer, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	err = c.ProcessAccessCode(true, "", admin, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden), "approval is the developer's decision")

	require.NoError(t, c.ProcessAccessCode(false, "code mismatch", developer, now))
	assert.Equal(t, StatusRejected, c.Status)
	assert.True(t, c.Status.IsTerminal())

	err = c.Cancel("", buyer, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
}

func TestCanAct(t *testing.T) {
	c := newClaim(t)
	assert.NoError(t, c.CanAct(buyer))
	assert.True(t, dErrors.HasCode(c.CanAct(id.Actor{ID: id.NewUserID(), Role: id.RoleBuyer}), dErrors.CodeForbidden))
	assert.NoError(t, c.CanAct(developer))

	dev := developer.ID
	c.DeveloperID = &dev
	assert.True(t, dErrors.HasCode(c.CanAct(id.Actor{ID: id.NewUserID(), Role: id.RoleDeveloper}), dErrors.CodeForbidden))
}

func TestFundsAndDeposit(t *testing.T) {
	c := approvedClaim(t)
	require.NoError(t, c.IssueClaimCode("CC", now.Add(time.Hour), decimal.NewFromInt(20000), evidence(), developer, now))
	require.NoError(t, c.RequestFunds("", developer, now))

	err := c.ReceiveFunds(decimal.NewFromInt(20001), developer, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	require.NoError(t, c.ReceiveFunds(decimal.NewFromInt(15000), developer, now))

	err = c.CanApplyDeposit(decimal.NewFromInt(15001), developer)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInsufficientBalance))
	assert.NoError(t, c.CanApplyDeposit(decimal.NewFromInt(15000), developer))
}

func TestDeadlines(t *testing.T) {
	c := newClaim(t)
	assert.Nil(t, c.Deadline())
	assert.False(t, c.IsDue(now.Add(1000*time.Hour)))

	expiry := now.Add(48 * time.Hour)
	require.NoError(t, c.RecordAccessCode("AC", expiry, buyer, now))
	require.NotNil(t, c.Deadline())
	assert.Equal(t, expiry, *c.Deadline())
	assert.False(t, c.IsDue(expiry.Add(-time.Second)))
	assert.True(t, c.IsDue(expiry))

	assert.ErrorIs(t, c.Expire(now), ErrNotDue)
	require.NoError(t, c.Expire(expiry))
	assert.Equal(t, StatusExpired, c.Status)
	last := c.StatusHistory[len(c.StatusHistory)-1]
	assert.Equal(t, id.RoleSystem, last.Actor.Role)
	assertValidWalk(t, c)
}

func TestNotesAndDocuments(t *testing.T) {
	c := newClaim(t)
	require.NoError(t, c.AddNote("internal only", true, developer, now))
	require.NoError(t, c.AddNote("shared", false, developer, now))
	assert.True(t, dErrors.HasCode(c.AddNote("  ", false, developer, now), dErrors.CodeValidation))

	visible := c.VisibleTo(buyer)
	require.Len(t, visible.Notes, 1)
	assert.Equal(t, "shared", visible.Notes[0].Body)
	assert.Len(t, c.Notes, 2, "filtering never mutates the claim")
	assert.Len(t, c.VisibleTo(developer).Notes, 2)

	doc := *evidence()
	require.NoError(t, c.AttachDocument(doc, buyer, now))
	assert.True(t, dErrors.HasCode(c.AttachDocument(doc, buyer, now), dErrors.CodeConflict))

	require.NoError(t, c.Cancel("withdrawn", buyer, now))
	assert.True(t, dErrors.HasCode(c.AttachDocument(*evidence(), buyer, now), dErrors.CodeInvalidTransition))
	assert.NoError(t, c.AddNote("after close", false, buyer, now), "notes are allowed on terminal claims")
	assert.Len(t, c.StatusHistory, 2, "notes and documents add no history")
}

func TestCheckInvariantsDetectsBrokenWalk(t *testing.T) {
	c := approvedClaim(t)
	wrong := StatusInitiated
	c.StatusHistory[2].PreviousStatus = &wrong
	assert.True(t, dErrors.HasCode(c.CheckInvariants(), dErrors.CodeInvariantViolation))
}
