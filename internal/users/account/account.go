// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package account handles the management of existing user records.

It covers lookups, listing, profile updates, password and role changes,
deletion and the startup bootstrap of the administrator account.

# Architecture

  - Domain: This package depends on the auth package for the User entity and
    its repository contract.
  - Security: Route-level role checks are made by the access policy; the
    service additionally enforces ownership where a route allows "self or ADMIN".
*/
package account

import (
	"github.com/taibuivan/gatekeeper/internal/platform/sec"
	"github.com/taibuivan/gatekeeper/internal/platform/validate"
	"github.com/taibuivan/gatekeeper/internal/users/auth"
	"github.com/taibuivan/gatekeeper/pkg/ident"
	"github.com/taibuivan/gatekeeper/pkg/slice"
)

// # Commands

// UpdateUserInput replaces the profile fields of an account.
type UpdateUserInput struct {
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

// Normalize canonicalizes the identifier fields in place.
func (input *UpdateUserInput) Normalize() {
	input.Username = ident.Username(input.Username)
	input.Email = ident.Email(input.Email)
	input.FirstName = ident.Name(input.FirstName)
	input.LastName = ident.Name(input.LastName)
}

// Validate checks field constraints of a profile update.
func (input *UpdateUserInput) Validate() error {
	validator := &validate.Validator{}

	validator.Required(auth.FieldUsername, input.Username).
		MinLen(auth.FieldUsername, input.Username, auth.UsernameMinLength).
		MaxLen(auth.FieldUsername, input.Username, auth.UsernameMaxLength).
		Required(auth.FieldEmail, input.Email).
		Email(auth.FieldEmail, input.Email).
		MaxLen(auth.FieldEmail, input.Email, auth.EmailMaxLength)

	auth.ValidateNames(validator, input.FirstName, input.LastName)

	return validator.Err()
}

// UpdatePasswordInput sets a new password.
type UpdatePasswordInput struct {
	Password         string `json:"password"`
	RepeatedPassword string `json:"repeated_password"`
}

// Validate applies the password policy.
func (input *UpdatePasswordInput) Validate() error {
	return auth.ValidatePassword(&validate.Validator{}, input.Password, input.RepeatedPassword).Err()
}

// UpdateRoleInput assigns a role.
type UpdateRoleInput struct {
	Role sec.UserRole `json:"role"`
}

// Validate checks the role is one of the assignable roles.
func (input *UpdateRoleInput) Validate() error {
	allowed := slice.Map(sec.Roles, sec.UserRole.String)
	return new(validate.Validator).OneOf(auth.FieldRole, string(input.Role), allowed...).Err()
}

// # Bootstrap

// AdminSettings describes the administrator account ensured at startup.
// An empty Username disables the bootstrap.
type AdminSettings struct {
	Username string
	Email    string
	Password string
}
