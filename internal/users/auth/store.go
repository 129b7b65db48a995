// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"time"

	"github.com/taibuivan/gatekeeper/internal/platform/sec"
)

// # User Data Access

// UserRepository defines the data access contract for user accounts.
//
// Lookups return an apperr NOT_FOUND error for missing rows. Writes that hit
// a unique index return an apperr CONFLICT error.
type UserRepository interface {

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string (UUIDv7)

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.NotFound or database failures
	*/
	FindByID(context context.Context, id string) (*User, error)

	/*
		FindByUsername returns the account with the given canonical username.

		Parameters:
		  - context: context.Context
		  - username: string

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.NotFound or database failures
	*/
	FindByUsername(context context.Context, username string) (*User, error)

	/*
		FindByEmail returns the account with the given canonical email.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.NotFound or database failures
	*/
	FindByEmail(context context.Context, email string) (*User, error)

	// ExistsByUsername reports whether an account already uses username.
	ExistsByUsername(context context.Context, username string) (bool, error)

	// ExistsByEmail reports whether an account already uses email.
	ExistsByEmail(context context.Context, email string) (bool, error)

	/*
		List returns one page of accounts ordered by creation time, and the total count.

		Parameters:
		  - context: context.Context
		  - limit: int
		  - offset: int

		Returns:
		  - []*User: The page
		  - int: Total number of accounts
		  - error: Database failures
	*/
	List(context context.Context, limit, offset int) ([]*User, int, error)

	/*
		Create persists a brand-new user account.

		Parameters:
		  - context: context.Context
		  - user: *User (timestamps are set by the repository)

		Returns:
		  - error: apperr.Conflict on duplicate username or email
	*/
	Create(context context.Context, user *User) error

	/*
		Update persists username, email and names of an existing account.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: apperr.NotFound, apperr.Conflict or database failures
	*/
	Update(context context.Context, user *User) error

	// UpdatePassword replaces only the password hash.
	UpdatePassword(context context.Context, id, passwordHash string) error

	// UpdateRole replaces only the role.
	UpdateRole(context context.Context, id string, role sec.UserRole) error

	// Delete removes the account permanently.
	Delete(context context.Context, id string) error
}

// # Volatile Data Access

// RevocationRepository records refresh tokens that must no longer be exchanged.
type RevocationRepository interface {

	/*
		Revoke blocks the token identified by jti for ttl.

		Parameters:
		  - context: context.Context
		  - jti: string (the refresh token's "jti" claim)
		  - ttl: time.Duration (remaining lifetime of the token)

		Returns:
		  - error: Persistence failures
	*/
	Revoke(context context.Context, jti string, ttl time.Duration) error

	// IsRevoked reports whether jti has been revoked.
	IsRevoked(context context.Context, jti string) (bool, error)
}
