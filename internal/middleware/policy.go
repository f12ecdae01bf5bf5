package middleware

import (
	"github.com/vaughan-dsouza/ledger/internal/apperr"
	"github.com/vaughan-dsouza/ledger/internal/models"
)

// CanEditUser checks that actor may edit the profile of targetID.
// Admins may edit anyone; everyone else only themselves.
func CanEditUser(actor models.User, targetID string) error {
	if actor.ID == targetID || actor.Role.Can(models.PermManageUsers) {
		return nil
	}
	return apperr.Denied("you can only edit your own profile")
}

// CheckRoleChange rejects any attempt by actor to change their own role.
func CheckRoleChange(actor models.User, targetID string, newRole *models.Role) error {
	if newRole == nil || actor.ID != targetID || *newRole == actor.Role {
		return nil
	}
	return apperr.Denied("you cannot change your own role")
}

// MovementScope returns the owner ids a listing by actor is limited to.
// requested narrows an unrestricted caller and is ignored otherwise.
func MovementScope(actor models.User, requested []string) []string {
	if actor.Role.Can(models.PermViewAllMovements) {
		return requested
	}
	return []string{actor.ID}
}
