package models

import (
	"slices"

	dErrors "propie/pkg/domain-errors"
)

// Action is a caller- or sweep-initiated reservation operation.
type Action string

const (
	ActionConfirmPayment Action = "CONFIRM_PAYMENT"
	ActionExtend         Action = "EXTEND"
	ActionCancel         Action = "CANCEL"
	ActionExpire         Action = "EXPIRE"
	ActionConvert        Action = "CONVERT"
	ActionApplyDeposit   Action = "APPLY_DEPOSIT"
)

// transitions is the single source of truth for which action is allowed from
// which status and where it leads. Terminal statuses have no entries.
var transitions = map[Status]map[Action]Status{
	StatusPending: {
		ActionConfirmPayment: StatusConfirmed,
		ActionCancel:         StatusCancelled,
		ActionExpire:         StatusExpired,
		ActionApplyDeposit:   StatusPending,
	},
	StatusConfirmed: {
		ActionExtend:       StatusConfirmed,
		ActionCancel:       StatusCancelled,
		ActionExpire:       StatusExpired,
		ActionConvert:      StatusConverted,
		ActionApplyDeposit: StatusConfirmed,
	},
}

// Next returns the status action leads to from current, or an invalid
// transition error naming the statuses the action requires.
func Next(current Status, action Action) (Status, error) {
	if next, ok := transitions[current][action]; ok {
		return next, nil
	}
	required := RequiredStatuses(action)
	names := make([]string, len(required))
	for i, st := range required {
		names[i] = string(st)
	}
	return "", dErrors.InvalidTransition("reservation", string(current), names...)
}

// RequiredStatuses lists the statuses from which action is allowed, in lifecycle order.
func RequiredStatuses(action Action) []Status {
	var out []Status
	for _, st := range []Status{StatusPending, StatusConfirmed} {
		if _, ok := transitions[st][action]; ok {
			out = append(out, st)
		}
	}
	return out
}

// Allows reports whether action is valid from current.
func Allows(current Status, action Action) bool {
	_, ok := transitions[current][action]
	return ok
}

// IsActive reports whether s still holds the property.
func IsActive(s Status) bool {
	return slices.Contains(ActiveStatuses, s)
}
