// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements the account identity layer of Gatekeeper.

It defines the User entity and the credential flows built on it: registration,
password login, access-token refresh, logout and identity resolution for the
request filter.

# Architecture

  - Entities: User, TokenPair.
  - Contracts: UserRepository (PostgreSQL), RevocationRepository (Redis).
  - Security: bcrypt password hashes and HS256 tokens from [sec.TokenCodec].
*/
package auth

import (
	"time"

	"github.com/taibuivan/gatekeeper/internal/platform/sec"
)

// # Domain Entities

// User represents a registered account.
type User struct {
	ID           string       `json:"id"`
	Username     string       `json:"username"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"` // Explicitly omitted from JSON for security.
	FirstName    *string      `json:"first_name,omitempty"`
	LastName     *string      `json:"last_name,omitempty"`
	Role         sec.UserRole `json:"role"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Identity projects the user onto the request principal.
func (user *User) Identity() *sec.Identity {
	return &sec.Identity{
		UserID:  user.ID,
		Subject: user.Username,
		Email:   user.Email,
		Role:    user.Role,
	}
}

// TokenPair is returned by a successful password login.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// # Field Identifiers

// Field names used in validation errors and JSON payloads.
const (
	FieldUsername         = "username"
	FieldEmail            = "email"
	FieldPassword         = "password"
	FieldRepeatedPassword = "repeated_password"
	FieldFirstName        = "first_name"
	FieldLastName         = "last_name"
	FieldRole             = "role"
	FieldRefreshToken     = "refresh_token"
)

// # Field Constraints

const (
	// UsernameMinLength is the shortest accepted username.
	UsernameMinLength = 3
	// UsernameMaxLength matches the column width of users.account.username.
	UsernameMaxLength = 50
	// PasswordMinLength is the shortest accepted password.
	PasswordMinLength = 8
	// PasswordMaxLength is bcrypt's input limit in bytes; longer input is rejected rather than truncated.
	PasswordMaxLength = 72
	// EmailMaxLength follows RFC 5321.
	EmailMaxLength = 254
	// NameMaxLength bounds first and last names.
	NameMaxLength = 100
)
