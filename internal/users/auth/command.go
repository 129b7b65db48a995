// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"github.com/taibuivan/gatekeeper/internal/platform/validate"
	"github.com/taibuivan/gatekeeper/pkg/ident"
)

// # Commands

// RegisterInput holds the data required to enroll a new account.
type RegisterInput struct {
	Username         string  `json:"username"`
	Email            string  `json:"email"`
	Password         string  `json:"password"`
	RepeatedPassword string  `json:"repeated_password"`
	FirstName        *string `json:"first_name"`
	LastName         *string `json:"last_name"`
}

// Normalize canonicalizes the identifier fields in place.
func (input *RegisterInput) Normalize() {
	input.Username = ident.Username(input.Username)
	input.Email = ident.Email(input.Email)
	input.FirstName = ident.Name(input.FirstName)
	input.LastName = ident.Name(input.LastName)
}

// Validate checks field constraints of a registration.
func (input *RegisterInput) Validate() error {
	validator := &validate.Validator{}

	validator.Required(FieldUsername, input.Username).
		MinLen(FieldUsername, input.Username, UsernameMinLength).
		MaxLen(FieldUsername, input.Username, UsernameMaxLength).
		Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		MaxLen(FieldEmail, input.Email, EmailMaxLength)

	ValidatePassword(validator, input.Password, input.RepeatedPassword)
	ValidateNames(validator, input.FirstName, input.LastName)

	return validator.Err()
}

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate checks that both credentials are present.
func (input *LoginInput) Validate() error {
	return new(validate.Validator).
		Required(FieldUsername, input.Username).
		Required(FieldPassword, input.Password).
		Err()
}

// RefreshInput carries a refresh token, for both refresh and logout.
type RefreshInput struct {
	RefreshToken string `json:"refresh_token"`
}

// Validate checks that the token is present.
func (input *RefreshInput) Validate() error {
	return new(validate.Validator).Required(FieldRefreshToken, input.RefreshToken).Err()
}

// # Shared Rules

// ValidatePassword applies the password policy and the repeat check.
func ValidatePassword(validator *validate.Validator, password, repeated string) *validate.Validator {
	return validator.Required(FieldPassword, password).
		MinLen(FieldPassword, password, PasswordMinLength).
		Custom(FieldPassword, len(password) > PasswordMaxLength, "Maximum 72 bytes").
		Equal(FieldRepeatedPassword, repeated, password, "Passwords do not match")
}

// ValidateNames applies the optional first and last name rules.
func ValidateNames(validator *validate.Validator, firstName, lastName *string) *validate.Validator {
	validator.NullOrNotBlank(FieldFirstName, firstName).
		NullOrNotBlank(FieldLastName, lastName)

	if firstName != nil {
		validator.MaxLen(FieldFirstName, *firstName, NameMaxLength)
	}
	if lastName != nil {
		validator.MaxLen(FieldLastName, *lastName, NameMaxLength)
	}
	return validator
}
