package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/popis/internal/db"
	"github.com/erazemk/popis/internal/model"
)

func TestRoleAuthorizerCanApprove(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin, err := CreateUser(ctx, database, "admin", "hash", model.RoleAdmin)
	require.NoError(t, err)
	manager, err := CreateUser(ctx, database, "manager", "hash", model.RoleManager)
	require.NoError(t, err)
	counter, err := CreateUser(ctx, database, "counter", "hash", model.RoleUser)
	require.NoError(t, err)

	tests := []struct {
		name    string
		minimum string
		actor   int64
		want    bool
	}{
		{"default minimum admits manager", "", manager.ID, true},
		{"default minimum admits admin", "", admin.ID, true},
		{"default minimum rejects counter", "", counter.ID, false},
		{"admin-only rejects manager", model.RoleAdmin, manager.ID, false},
		{"admin-only admits admin", model.RoleAdmin, admin.ID, true},
		{"user minimum admits counter", model.RoleUser, counter.ID, true},
		{"unknown minimum rejects everyone", "auditor", admin.ID, false},
		{"unknown actor", "", 999, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authz := &RoleAuthorizer{DB: database, MinimumRole: tt.minimum}
			got, err := authz.CanApprove(ctx, tt.actor, 1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoleAuthorizerRejectsDeletedUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	manager, err := CreateUser(ctx, database, "manager", "hash", model.RoleManager)
	require.NoError(t, err)
	authz := &RoleAuthorizer{DB: database}

	ok, err := authz.CanApprove(ctx, manager.ID, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, DeleteUser(ctx, database, manager.ID))

	ok, err = authz.CanApprove(ctx, manager.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}
