// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taibuivan/gatekeeper/internal/platform/apperr"
	"github.com/taibuivan/gatekeeper/internal/platform/ctxutil"
	"github.com/taibuivan/gatekeeper/internal/platform/sec"
	"github.com/taibuivan/gatekeeper/internal/users/auth"
	"github.com/taibuivan/gatekeeper/pkg/ident"
	"github.com/taibuivan/gatekeeper/pkg/pagination"
	"github.com/taibuivan/gatekeeper/pkg/uuid"
)

// ErrNotOwner is returned when a non-admin edits another account.
var ErrNotOwner = apperr.Forbidden("Only the account owner or an administrator may change this account")

// # Service Layer

// Service orchestrates business logic for user account management.
type Service struct {
	userRepository auth.UserRepository
	logger         *slog.Logger
}

// NewService constructs a new [Service] with its repository dependency.
func NewService(userRepo auth.UserRepository, logger *slog.Logger) *Service {
	return &Service{userRepository: userRepo, logger: logger}
}

// # Lookups

// Find retrieves a user by id.
func (service *Service) Find(context context.Context, id string) (*auth.User, error) {
	return service.userRepository.FindByID(context, id)
}

// FindByUsername retrieves a user by username, after normalization.
func (service *Service) FindByUsername(context context.Context, username string) (*auth.User, error) {
	return service.userRepository.FindByUsername(context, ident.Username(username))
}

// FindByEmail retrieves a user by email, after normalization.
func (service *Service) FindByEmail(context context.Context, email string) (*auth.User, error) {
	return service.userRepository.FindByEmail(context, ident.Email(email))
}

/*
List returns one page of users ordered by creation.

Parameters:
  - context: context.Context
  - params: pagination.Params

Returns:
  - []*auth.User: The requested page (possibly empty)
  - pagination.Meta: Page metadata including the total count
  - error: Storage failures
*/
func (service *Service) List(context context.Context, params pagination.Params) ([]*auth.User, pagination.Meta, error) {
	users, total, err := service.userRepository.List(context, params.Limit, params.Offset())
	if err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("account_service_list_failed: %w", err)
	}
	return users, params.Meta(total), nil
}

// # Mutations

/*
Update replaces the profile fields of the account identified by id.

Description: Allowed for the account owner and for administrators. A changed
username or email must not belong to another account. Changing the username
invalidates outstanding tokens, since they carry the old subject.

Parameters:
  - context: context.Context
  - caller: *sec.Identity
  - id: string
  - input: UpdateUserInput

Returns:
  - *auth.User: The updated user
  - error: Validation, [ErrNotOwner], NOT_FOUND, CONFLICT or storage failures
*/
func (service *Service) Update(context context.Context, caller *sec.Identity, id string, input UpdateUserInput) (*auth.User, error) {
	if caller == nil || (caller.UserID != id && !caller.HasRole(sec.RoleAdmin)) {
		return nil, ErrNotOwner
	}

	input.Normalize()
	if err := input.Validate(); err != nil {
		return nil, err
	}

	user, err := service.userRepository.FindByID(context, id)
	if err != nil {
		return nil, err
	}

	if input.Username != user.Username {
		if err := ensureFree(context, service.userRepository.ExistsByUsername, input.Username); err != nil {
			return nil, err
		}
	}
	if input.Email != user.Email {
		if err := ensureFree(context, service.userRepository.ExistsByEmail, input.Email); err != nil {
			return nil, err
		}
	}

	user.Username = input.Username
	user.Email = input.Email
	user.FirstName = input.FirstName
	user.LastName = input.LastName

	if err := service.userRepository.Update(context, user); err != nil {
		return nil, fmt.Errorf("account_service_update_failed: %w", err)
	}

	ctxutil.GetLogger(context).InfoContext(context, "user_updated",
		slog.String("user_id", id),
		slog.String("by", caller.Subject),
	)

	return user, nil
}

// ensureFree turns an existence check into a conflict.
func ensureFree(context context.Context, exists func(context.Context, string) (bool, error), value string) error {
	taken, err := exists(context, value)
	if err != nil {
		return fmt.Errorf("account_service_uniqueness_check_failed: %w", err)
	}
	if taken {
		return apperr.Conflict("User already exists")
	}
	return nil
}

// UpdatePassword changes the password of the calling account.
func (service *Service) UpdatePassword(context context.Context, caller *sec.Identity, input UpdatePasswordInput) (*auth.User, error) {
	if caller == nil {
		return nil, apperr.Unauthorized("Authentication required")
	}
	return service.setPassword(context, caller.UserID, input)
}

// UpdatePasswordByID changes the password of any account. Administrators only,
// enforced by the route policy.
func (service *Service) UpdatePasswordByID(context context.Context, id string, input UpdatePasswordInput) (*auth.User, error) {
	return service.setPassword(context, id, input)
}

func (service *Service) setPassword(context context.Context, id string, input UpdatePasswordInput) (*auth.User, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	hashedPassword, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("account_service_hash_failed: %w", err)
	}

	if err := service.userRepository.UpdatePassword(context, id, hashedPassword); err != nil {
		return nil, err
	}

	ctxutil.GetLogger(context).InfoContext(context, "user_password_changed", slog.String("user_id", id))

	return service.userRepository.FindByID(context, id)
}

// UpdateRole assigns a new role to the account. Administrators only, enforced
// by the route policy. The change applies to the next request of that account.
func (service *Service) UpdateRole(context context.Context, id string, input UpdateRoleInput) (*auth.User, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	if err := service.userRepository.UpdateRole(context, id, input.Role); err != nil {
		return nil, err
	}

	ctxutil.GetLogger(context).WarnContext(context, "user_role_changed",
		slog.String("user_id", id),
		slog.String("role", input.Role.String()),
	)

	return service.userRepository.FindByID(context, id)
}

// Delete removes the account. Its tokens stop resolving to an identity.
func (service *Service) Delete(context context.Context, id string) error {
	if err := service.userRepository.Delete(context, id); err != nil {
		return err
	}

	ctxutil.GetLogger(context).WarnContext(context, "user_deleted", slog.String("user_id", id))
	return nil
}

// # Bootstrap

/*
EnsureAdmin creates the configured administrator if the username is free.

Description: Runs once at startup. An existing account with the same username
is left untouched, whatever its role.

Parameters:
  - context: context.Context
  - settings: AdminSettings

Returns:
  - bool: true if an account was created
  - error: Validation or storage failures
*/
func (service *Service) EnsureAdmin(context context.Context, settings AdminSettings) (bool, error) {
	if settings.Username == "" {
		return false, nil
	}

	username := ident.Username(settings.Username)
	exists, err := service.userRepository.ExistsByUsername(context, username)
	if err != nil {
		return false, fmt.Errorf("account_service_admin_lookup_failed: %w", err)
	}
	if exists {
		service.logger.Info("admin_bootstrap_skipped", slog.String("username", username))
		return false, nil
	}

	input := UpdateUserInput{Username: username, Email: settings.Email}
	input.Normalize()
	if err := input.Validate(); err != nil {
		return false, fmt.Errorf("account_service_admin_invalid: %w", err)
	}
	credentials := UpdatePasswordInput{Password: settings.Password, RepeatedPassword: settings.Password}
	if err := credentials.Validate(); err != nil {
		return false, fmt.Errorf("account_service_admin_invalid: %w", err)
	}

	hashedPassword, err := sec.HashPassword(settings.Password)
	if err != nil {
		return false, fmt.Errorf("account_service_hash_failed: %w", err)
	}

	admin := &auth.User{
		ID:           uuid.New(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hashedPassword,
		Role:         sec.RoleAdmin,
	}
	if err := service.userRepository.Create(context, admin); err != nil {
		return false, fmt.Errorf("account_service_admin_create_failed: %w", err)
	}

	service.logger.Info("admin_bootstrapped", slog.String("user_id", admin.ID), slog.String("username", admin.Username))
	return true, nil
}
