// Package auth checks credentials, keeps login sessions and manages
// passwords of the users table.
package auth

import (
	"slices"

	"parish/src-server/model"
)

// Identity is the logged-in user as seen by request handlers.
type Identity struct {
	UserID   int64    `json:"id"`
	UserName string   `json:"user_name"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}

func identityOf(user *model.User) *Identity {
	return &Identity{
		UserID:   user.ID,
		UserName: user.UserName,
		Email:    user.Email,
		Roles:    user.GetRoles(),
	}
}

// HasRole is false for a nil identity, admins have every role.
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	return slices.Contains(i.Roles, role) || slices.Contains(i.Roles, model.ROLE_ADMIN)
}
