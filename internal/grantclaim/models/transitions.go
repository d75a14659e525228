package models

import (
	"slices"

	id "propie/pkg/domain"
	dErrors "propie/pkg/domain-errors"
)

// Action is a caller- or sweep-initiated claim operation.
type Action string

const (
	ActionRecordAccessCode  Action = "RECORD_ACCESS_CODE"
	ActionSubmitAccessCode  Action = "SUBMIT_ACCESS_CODE"
	ActionApproveAccessCode Action = "APPROVE_ACCESS_CODE"
	ActionRejectAccessCode  Action = "REJECT_ACCESS_CODE"
	ActionIssueClaimCode    Action = "ISSUE_CLAIM_CODE"
	ActionRequestFunds      Action = "REQUEST_FUNDS"
	ActionReceiveFunds      Action = "RECEIVE_FUNDS"
	ActionApplyDeposit      Action = "APPLY_DEPOSIT"
	ActionComplete          Action = "COMPLETE"
	ActionCancel            Action = "CANCEL"
	ActionExpire            Action = "EXPIRE"
)

// Rule is one row of the transition table.
type Rule struct {
	Target Status
	Roles  []id.Role
}

var (
	buyerRoles     = []id.Role{id.RoleBuyer, id.RoleAdmin}
	developerRoles = []id.Role{id.RoleDeveloper, id.RoleAdmin}
	developerOnly  = []id.Role{id.RoleDeveloper}
	closingRoles   = []id.Role{id.RoleBuyer, id.RoleDeveloper, id.RoleAdmin}
	systemOnly     = []id.Role{id.RoleSystem}
)

// transitions is consulted by every operation and by the expiry sweep.
// Terminal statuses have no rows.
var transitions = map[Status]map[Action]Rule{
	StatusInitiated: withClosing(map[Action]Rule{
		ActionRecordAccessCode: {StatusAccessCodeReceived, buyerRoles},
	}),
	StatusAccessCodeReceived: withClosing(map[Action]Rule{
		ActionSubmitAccessCode: {StatusAccessCodeSubmitted, buyerRoles},
	}),
	StatusAccessCodeSubmitted: withClosing(map[Action]Rule{
		ActionApproveAccessCode: {StatusAccessCodeApproved, developerOnly},
		ActionRejectAccessCode:  {StatusRejected, developerOnly},
	}),
	StatusAccessCodeApproved: withClosing(map[Action]Rule{
		ActionIssueClaimCode: {StatusClaimCodeIssued, developerRoles},
	}),
	StatusClaimCodeIssued: withClosing(map[Action]Rule{
		ActionRequestFunds: {StatusFundsRequested, developerRoles},
	}),
	StatusFundsRequested: withClosing(map[Action]Rule{
		ActionReceiveFunds: {StatusFundsReceived, developerRoles},
	}),
	StatusFundsReceived: withClosing(map[Action]Rule{
		ActionApplyDeposit: {StatusDepositApplied, developerRoles},
	}),
	StatusDepositApplied: withClosing(map[Action]Rule{
		ActionComplete: {StatusCompleted, developerRoles},
	}),
}

// withClosing adds the CANCEL and EXPIRE rows every non-terminal status carries.
func withClosing(rows map[Action]Rule) map[Action]Rule {
	rows[ActionCancel] = Rule{StatusCancelled, closingRoles}
	rows[ActionExpire] = Rule{StatusExpired, systemOnly}
	return rows
}

// Next resolves action from current for role. A role that may never perform
// the action gets CodeForbidden; a status that does not allow it gets an
// invalid transition naming the statuses that would. An empty role is an
// in-process caller and skips the role check.
func Next(current Status, action Action, role id.Role) (Status, error) {
	if role != "" && !mayEverPerform(role, action) {
		return "", dErrors.New(dErrors.CodeForbidden, string(role)+" may not "+string(action))
	}
	rule, ok := transitions[current][action]
	if !ok {
		required := RequiredStatuses(action)
		names := make([]string, len(required))
		for i, st := range required {
			names[i] = string(st)
		}
		return "", dErrors.InvalidTransition("grant claim", string(current), names...)
	}
	if role != "" && !slices.Contains(rule.Roles, role) {
		return "", dErrors.New(dErrors.CodeForbidden, string(role)+" may not "+string(action)+" from "+string(current))
	}
	return rule.Target, nil
}

// RequiredStatuses lists the statuses from which action is allowed, in lifecycle order.
func RequiredStatuses(action Action) []Status {
	var out []Status
	for _, st := range lifecycleOrder {
		if _, ok := transitions[st][action]; ok {
			out = append(out, st)
		}
	}
	return out
}

// Allows reports whether action is valid from current, ignoring roles.
func Allows(current Status, action Action) bool {
	_, ok := transitions[current][action]
	return ok
}

func mayEverPerform(role id.Role, action Action) bool {
	for _, rows := range transitions {
		if rule, ok := rows[action]; ok && slices.Contains(rule.Roles, role) {
			return true
		}
	}
	return false
}
