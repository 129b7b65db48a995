// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/taibuivan/gatekeeper/internal/platform/apperr"
	"github.com/taibuivan/gatekeeper/internal/platform/ctxutil"
	"github.com/taibuivan/gatekeeper/internal/platform/metrics"
	"github.com/taibuivan/gatekeeper/internal/platform/sec"
	"github.com/taibuivan/gatekeeper/pkg/ident"
	"github.com/taibuivan/gatekeeper/pkg/uuid"
)

// # Errors

var (
	// ErrBadCredentials is the single client-facing answer to a failed login.
	// It does not reveal whether the username exists.
	ErrBadCredentials = apperr.AuthenticationFailed("Username or password incorrect")

	// ErrTokenRevoked is returned when a logged-out refresh token is presented.
	ErrTokenRevoked = apperr.Unauthenticated(apperr.CodeTokenRevoked, "Refresh token has been revoked")

	// ErrTokenOwner is returned when logging out a token that belongs to someone else.
	ErrTokenOwner = apperr.Forbidden("Refresh token belongs to another account")

	// ErrNoIdentity is returned by [Service.CurrentIdentity] for anonymous requests.
	ErrNoIdentity = apperr.NotFound("Current user")
)

// # Contracts & Types

// TokenIssuer defines the token operations the service depends on.
// [sec.TokenCodec] satisfies it.
type TokenIssuer interface {
	IssueAccessToken(userID, subject, email string, role sec.UserRole) (string, error)
	IssueRefreshToken(userID, subject string) (string, error)
	VerifyRefreshToken(token string) (*sec.RefreshClaims, error)
}

// Service implements user authentication use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, registration,
// or login logic must be reviewed by the security team.
type Service struct {
	userRepository       UserRepository
	revocationRepository RevocationRepository
	tokens               TokenIssuer
	metrics              *metrics.Metrics
	logger               *slog.Logger

	// Now is the clock used for revocation TTLs. Tests may replace it.
	Now func() time.Time
}

// NewService constructs a new [Service] with necessary dependencies.
// collectors may be nil.
func NewService(
	userRepo UserRepository,
	revocationRepo RevocationRepository,
	tokens TokenIssuer,
	collectors *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		userRepository:       userRepo,
		revocationRepository: revocationRepo,
		tokens:               tokens,
		metrics:              collectors,
		logger:               logger,
		Now:                  time.Now,
	}
}

// # Registration Flow

/*
Register validates, hashes, and persists a brand new user account.

Description: The role is always USER regardless of the input. Uniqueness is
checked up front for a precise message and enforced again by the store's
unique indexes.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *User: Created entity
  - error: Validation, Conflict (if identity exists) or storage errors
*/
func (service *Service) Register(context context.Context, input RegisterInput) (*User, error) {
	input.Normalize()
	if err := input.Validate(); err != nil {
		return nil, err
	}

	// Verify username uniqueness. Return a client-safe Conflict err.
	taken, err := service.userRepository.ExistsByUsername(context, input.Username)
	if err != nil {
		return nil, fmt.Errorf("auth_service_username_check_failed: %w", err)
	}
	if taken {
		return nil, apperr.Conflict("Username is already taken")
	}

	// Verify email uniqueness.
	taken, err = service.userRepository.ExistsByEmail(context, input.Email)
	if err != nil {
		return nil, fmt.Errorf("auth_service_email_check_failed: %w", err)
	}
	if taken {
		return nil, apperr.Conflict("Email is already registered")
	}

	hashedPassword, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	// Time-sortable ID to prevent PG index fragmentation.
	user := &User{
		ID:           uuid.New(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hashedPassword,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Role:         sec.RoleUser,
	}

	if err := service.userRepository.Create(context, user); err != nil {
		return nil, fmt.Errorf("auth_service_register_failed: %w", err)
	}

	ctxutil.GetLogger(context).InfoContext(context, "user_registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return user, nil
}

// # Authentication Flow

/*
Login validates user credentials and issues an access/refresh token pair.

Description: An unknown username still costs one bcrypt comparison so that
timing does not reveal which usernames exist.

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - *TokenPair: Access and refresh tokens signed for the stored role and email
  - error: NOT_FOUND for an unknown user, [ErrBadCredentials] on password
    mismatch, or internal failures
*/
func (service *Service) Login(context context.Context, input LoginInput) (*TokenPair, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	username := ident.Username(input.Username)

	user, err := service.userRepository.FindByUsername(context, username)
	if err != nil {
		if apperr.IsNotFound(err) {
			sec.BurnPasswordCheck(input.Password)
			service.loginFailed(context, username, "unknown_user")
		}
		return nil, err
	}

	// bcrypt comparison is constant-time for a given hash
	if !sec.CheckPasswordHash(input.Password, user.PasswordHash) {
		service.loginFailed(context, username, "bad_password")
		return nil, ErrBadCredentials
	}

	accessToken, err := service.tokens.IssueAccessToken(user.ID, user.Username, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("auth_service_access_token_failed: %w", err)
	}

	refreshToken, err := service.tokens.IssueRefreshToken(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("auth_service_refresh_token_failed: %w", err)
	}

	service.metrics.LoginAttempt(metrics.OutcomeSuccess)
	ctxutil.GetLogger(context).InfoContext(context, "user_logged_in", slog.String("user_id", user.ID))

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (service *Service) loginFailed(context context.Context, username, reason string) {
	service.metrics.LoginAttempt(metrics.OutcomeFailure)
	ctxutil.GetLogger(context).InfoContext(context, "login_failed",
		slog.String("username", username),
		slog.String("reason", reason),
	)
}

// # Session Management

/*
RefreshAccessToken exchanges a refresh token for a fresh access token.

Description: The role and email are re-read from the store, so role changes
take effect on the next refresh. The refresh token itself is never rotated.

Parameters:
  - context: context.Context
  - input: RefreshInput

Returns:
  - string: New access token for the same subject
  - error: Token verification errors, [ErrTokenRevoked], NOT_FOUND if the
    account is gone, or internal failures
*/
func (service *Service) RefreshAccessToken(context context.Context, input RefreshInput) (string, error) {
	if err := input.Validate(); err != nil {
		return "", err
	}

	claims, err := service.verifyRefreshToken(context, input.RefreshToken)
	if err != nil {
		service.metrics.TokenRefresh(metrics.OutcomeRejected)
		return "", err
	}

	user, err := service.resolveAccount(context, claims.UserID, claims.Subject)
	if err != nil {
		service.metrics.TokenRefresh(metrics.OutcomeRejected)
		return "", err
	}

	accessToken, err := service.tokens.IssueAccessToken(user.ID, user.Username, user.Email, user.Role)
	if err != nil {
		return "", fmt.Errorf("auth_service_refresh_access_token_failed: %w", err)
	}

	service.metrics.TokenRefresh(metrics.OutcomeSuccess)
	return accessToken, nil
}

// verifyRefreshToken checks the signature, expiry and revocation state.
func (service *Service) verifyRefreshToken(context context.Context, token string) (*sec.RefreshClaims, error) {
	claims, err := service.tokens.VerifyRefreshToken(token)
	if err != nil {
		return nil, err
	}

	// Every issued refresh token carries a jti
	if claims.ID == "" {
		return nil, sec.ErrTokenMalformed
	}

	revoked, err := service.revocationRepository.IsRevoked(context, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("auth_service_revocation_lookup_failed: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	return claims, nil
}

/*
Logout permanently revokes a refresh token of the calling account.

Description: Idempotent. Revoking an already revoked or already expired
token succeeds without side effects.

Parameters:
  - context: context.Context
  - identity: *sec.Identity (the caller)
  - input: RefreshInput

Returns:
  - error: Token verification errors, [ErrTokenOwner], or storage failures
*/
func (service *Service) Logout(context context.Context, identity *sec.Identity, input RefreshInput) error {
	if err := input.Validate(); err != nil {
		return err
	}

	claims, err := service.verifyRefreshToken(context, input.RefreshToken)
	switch {
	case errors.Is(err, sec.ErrTokenExpired), errors.Is(err, ErrTokenRevoked):
		return nil
	case err != nil:
		return err
	}

	if identity == nil || claims.UserID != identity.UserID || claims.Subject != identity.Subject {
		return ErrTokenOwner
	}

	remaining := claims.ExpiresAt.Sub(service.Now())
	if remaining <= 0 {
		return nil
	}

	if err := service.revocationRepository.Revoke(context, claims.ID, remaining); err != nil {
		return fmt.Errorf("auth_service_logout_failed: %w", err)
	}

	ctxutil.GetLogger(context).InfoContext(context, "user_logged_out", slog.String("user_id", identity.UserID))
	return nil
}

// # Identity Resolution

// CurrentIdentity returns the principal established for this request.
func (service *Service) CurrentIdentity(context context.Context) (*sec.Identity, error) {
	identity := ctxutil.GetIdentity(context)
	if identity == nil {
		return nil, ErrNoIdentity
	}
	return identity, nil
}

// LoadIdentity resolves a token's account id and subject into the live
// principal. It backs the request identity filter.
func (service *Service) LoadIdentity(context context.Context, userID, subject string) (*sec.Identity, error) {
	user, err := service.resolveAccount(context, userID, subject)
	if err != nil {
		return nil, err
	}
	return user.Identity(), nil
}

/*
resolveAccount finds the account currently holding subject and checks that it
is the account the token was issued to.

Description: A username freed by a rename or a deletion can be registered
again. The new holder has a different id, so tokens of the previous holder
resolve to NOT_FOUND instead of to the new account.

Returns:
  - *User: The account named by both claims
  - error: NOT_FOUND when no account matches both, or storage errors
*/
func (service *Service) resolveAccount(context context.Context, userID, subject string) (*User, error) {
	user, err := service.userRepository.FindByUsername(context, subject)
	if err != nil {
		return nil, err
	}

	if user.ID != userID {
		ctxutil.GetLogger(context).WarnContext(context, "token_account_mismatch",
			slog.String("subject", subject),
			slog.String("token_user_id", userID),
		)
		return nil, apperr.NotFound(resourceUser)
	}
	return user, nil
}
