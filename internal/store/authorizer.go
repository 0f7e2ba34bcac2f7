package store

import (
	"context"

	"github.com/erazemk/popis/internal/model"
)

// RoleAuthorizer grants approval rights to active users holding at least
// MinimumRole (manager when empty).
type RoleAuthorizer struct {
	DB          DBTX
	MinimumRole string
}

// CanApprove reports whether actor may approve the given session.
func (a *RoleAuthorizer) CanApprove(ctx context.Context, actor, sessionID int64) (bool, error) {
	user, err := GetUser(ctx, a.DB, actor)
	if err != nil {
		return false, err
	}
	if user == nil || user.DeletedAt != nil {
		return false, nil
	}

	minimum := a.MinimumRole
	if minimum == "" {
		minimum = model.RoleManager
	}
	return model.RoleAtLeast(user.Role, minimum), nil
}
