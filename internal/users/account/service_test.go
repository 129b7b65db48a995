// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/gatekeeper/internal/platform/apperr"
	"github.com/taibuivan/gatekeeper/internal/platform/sec"
	"github.com/taibuivan/gatekeeper/internal/users/account"
	"github.com/taibuivan/gatekeeper/internal/users/auth"
	"github.com/taibuivan/gatekeeper/internal/users/auth/authtest"
	"github.com/taibuivan/gatekeeper/pkg/pagination"
	"github.com/taibuivan/gatekeeper/pkg/pointer"
	"github.com/taibuivan/gatekeeper/pkg/uuid"
)

var discard = slog.New(slog.DiscardHandler)

// seed stores a user with the given role and password "Secret123".
func seed(t *testing.T, users *authtest.UserRepository, username string, role sec.UserRole) *auth.User {
	t.Helper()

	hash, err := sec.HashPassword("Secret123")
	require.NoError(t, err)

	user := &auth.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        username + "@x.com",
		PasswordHash: hash,
		Role:         role,
	}
	require.NoError(t, users.Create(context.Background(), user))
	return user
}

/*
TestService_Lookups covers id, username, email and paginated lookups.
*/
func TestService_Lookups(t *testing.T) {
	users := authtest.NewUserRepository()
	service := account.NewService(users, discard)
	ctx := context.Background()

	alice := seed(t, users, "alice", sec.RoleUser)
	seed(t, users, "bob", sec.RoleUser)
	seed(t, users, "carol", sec.RoleAdmin)

	// 1. Single lookups normalize their input
	found, err := service.Find(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", found.Username)

	found, err = service.FindByUsername(ctx, " alice ")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, found.ID)

	found, err = service.FindByEmail(ctx, "ALICE@X.COM")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, found.ID)

	_, err = service.Find(ctx, uuid.New())
	assert.True(t, apperr.IsNotFound(err))

	// 2. Pages
	page, meta, err := service.List(ctx, pagination.Params{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "carol", page[0].Username)
	assert.Equal(t, pagination.Meta{Page: 2, Limit: 2, Total: 3, TotalPages: 2}, meta)
}

/*
TestService_Update verifies ownership and uniqueness rules.
*/
func TestService_Update(t *testing.T) {
	users := authtest.NewUserRepository()
	service := account.NewService(users, discard)
	ctx := context.Background()

	alice := seed(t, users, "alice", sec.RoleUser)
	bob := seed(t, users, "bob", sec.RoleUser)
	root := seed(t, users, "root", sec.RoleAdmin)

	input := account.UpdateUserInput{Username: "alice", Email: "alice@new.com", FirstName: pointer.To(" Alice ")}

	// 1. Another user may not edit alice
	_, err := service.Update(ctx, bob.Identity(), alice.ID, input)
	assert.ErrorIs(t, err, account.ErrNotOwner)

	// 2. Alice may
	updated, err := service.Update(ctx, alice.Identity(), alice.ID, input)
	require.NoError(t, err)
	assert.Equal(t, "alice@new.com", updated.Email)
	assert.Equal(t, "Alice", pointer.Val(updated.FirstName))

	// 3. Admins may edit anyone, but not onto a taken username
	_, err = service.Update(ctx, root.Identity(), alice.ID, account.UpdateUserInput{Username: "bob", Email: "alice@new.com"})
	assert.True(t, apperr.IsConflict(err))

	_, err = service.Update(ctx, root.Identity(), alice.ID, account.UpdateUserInput{Username: "alice", Email: "BOB@x.com"})
	assert.True(t, apperr.IsConflict(err))

	// 4. Validation
	_, err = service.Update(ctx, alice.Identity(), alice.ID, account.UpdateUserInput{Username: "alice", Email: "not-an-email"})
	assert.True(t, apperr.HasCode(err, apperr.CodeValidationError))

	// 5. Unknown id
	_, err = service.Update(ctx, root.Identity(), uuid.New(), input)
	assert.True(t, apperr.IsNotFound(err))
}

/*
TestService_PasswordAndRole covers the password and role mutations.
*/
func TestService_PasswordAndRole(t *testing.T) {
	users := authtest.NewUserRepository()
	service := account.NewService(users, discard)
	ctx := context.Background()
	alice := seed(t, users, "alice", sec.RoleUser)

	// 1. Own password
	_, err := service.UpdatePassword(ctx, alice.Identity(), account.UpdatePasswordInput{Password: "NewSecret1", RepeatedPassword: "NewSecret1"})
	require.NoError(t, err)

	stored, err := users.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, sec.CheckPasswordHash("NewSecret1", stored.PasswordHash))

	// 2. Mismatched repeat
	_, err = service.UpdatePasswordByID(ctx, alice.ID, account.UpdatePasswordInput{Password: "NewSecret2", RepeatedPassword: "nope"})
	assert.True(t, apperr.HasCode(err, apperr.CodeValidationError))

	// 3. Role change
	updated, err := service.UpdateRole(ctx, alice.ID, account.UpdateRoleInput{Role: sec.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, sec.RoleAdmin, updated.Role)

	_, err = service.UpdateRole(ctx, alice.ID, account.UpdateRoleInput{Role: "ROOT"})
	assert.True(t, apperr.HasCode(err, apperr.CodeValidationError))

	// 4. Delete
	require.NoError(t, service.Delete(ctx, alice.ID))
	assert.True(t, apperr.IsNotFound(service.Delete(ctx, alice.ID)))
}

/*
TestService_EnsureAdmin verifies the startup bootstrap.
*/
func TestService_EnsureAdmin(t *testing.T) {
	users := authtest.NewUserRepository()
	service := account.NewService(users, discard)
	ctx := context.Background()

	// 1. Not configured
	created, err := service.EnsureAdmin(ctx, account.AdminSettings{})
	require.NoError(t, err)
	assert.False(t, created)

	// 2. Created with role ADMIN
	settings := account.AdminSettings{Username: "root", Email: "Root@X.com", Password: "Sup3rSecret"}
	created, err = service.EnsureAdmin(ctx, settings)
	require.NoError(t, err)
	assert.True(t, created)

	admin, err := users.FindByUsername(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, sec.RoleAdmin, admin.Role)
	assert.Equal(t, "root@x.com", admin.Email)
	assert.True(t, sec.CheckPasswordHash("Sup3rSecret", admin.PasswordHash))

	// 3. Second run leaves the account alone
	created, err = service.EnsureAdmin(ctx, settings)
	require.NoError(t, err)
	assert.False(t, created)

	// 4. Weak password is refused
	_, err = service.EnsureAdmin(ctx, account.AdminSettings{Username: "other", Email: "o@x.com", Password: "short"})
	assert.Error(t, err)
}
