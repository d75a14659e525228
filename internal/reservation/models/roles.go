package models

import (
	"slices"

	id "propie/pkg/domain"
)

// actionRoles lists who may trigger each action. Buyers are further limited
// to their own reservations by the service.
var actionRoles = map[Action][]id.Role{
	ActionConfirmPayment: {id.RoleDeveloper, id.RoleAdmin, id.RoleSystem},
	ActionExtend:         {id.RoleDeveloper, id.RoleAdmin},
	ActionCancel:         {id.RoleBuyer, id.RoleDeveloper, id.RoleAdmin},
	ActionExpire:         {id.RoleSystem},
	ActionConvert:        {id.RoleDeveloper, id.RoleAdmin},
	ActionApplyDeposit:   {id.RoleDeveloper, id.RoleAdmin, id.RoleSystem},
}

// Permits reports whether role may trigger action.
func Permits(role id.Role, action Action) bool {
	return slices.Contains(actionRoles[action], role)
}
