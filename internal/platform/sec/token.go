// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, JWT Signing) from
// the domain logic. It acts as an Infrastructure service injected into the
// Application layer via small consumer-side interfaces.
package sec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/taibuivan/gatekeeper/internal/platform/apperr"
)

// # Verification Failures

// Token verification failures. Every error returned by the Verify methods wraps
// exactly one of these, so callers can branch with [errors.Is] and the HTTP
// layer can render them directly.
var (
	ErrSignatureInvalid = apperr.Unauthenticated(apperr.CodeSignatureInvalid, "Could not verify token signature")
	ErrTokenExpired     = apperr.Unauthenticated(apperr.CodeTokenExpired, "Token has timed out")
	ErrTokenMalformed   = apperr.Unauthenticated(apperr.CodeTokenMalformed, "Token is not valid")
)

// # Claims

// AccessClaims represents the payload embedded inside a JWT Access Token.
//
// Subject is the username and UserID the immutable account id. Usernames can
// be changed and later reused, so the server only accepts a token whose
// UserID still matches the account currently holding Subject. Email and Role
// are informational; the live role is read from the store on every request.
type AccessClaims struct {
	jwt.RegisteredClaims

	UserID string   `json:"uid"`
	Email  string   `json:"email"`
	Role   UserRole `json:"role"`
}

// RefreshClaims represents the payload of a JWT Refresh Token.
//
// It carries no role or email: the role is re-read from the store whenever the
// token is exchanged. The registered "jti" claim identifies the token for
// revocation.
type RefreshClaims struct {
	jwt.RegisteredClaims

	UserID string `json:"uid"`
}

// # Codec

// TokenSettings holds the immutable signing parameters of a [TokenCodec].
type TokenSettings struct {
	Issuer        string
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
}

// TokenOption customizes a [TokenCodec].
type TokenOption func(*TokenCodec)

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) TokenOption {
	return func(codec *TokenCodec) {
		codec.now = now
	}
}

// TokenCodec issues and verifies HS256-signed access and refresh tokens.
//
// # Concurrency
//
// A TokenCodec is immutable after construction and safe for concurrent use.
type TokenCodec struct {
	issuer        string
	accessSecret  []byte
	accessTTL     time.Duration
	refreshSecret []byte
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenCodec validates settings and constructs a [TokenCodec].
func NewTokenCodec(settings TokenSettings, options ...TokenOption) (*TokenCodec, error) {
	switch {
	case settings.Issuer == "":
		return nil, errors.New("sec: token issuer is required")
	case settings.AccessSecret == "" || settings.RefreshSecret == "":
		return nil, errors.New("sec: both signing secrets are required")
	case settings.AccessSecret == settings.RefreshSecret:
		return nil, errors.New("sec: access and refresh secrets must differ")
	case settings.AccessTTL <= 0 || settings.RefreshTTL <= 0:
		return nil, errors.New("sec: token TTLs must be positive")
	}

	codec := &TokenCodec{
		issuer:        settings.Issuer,
		accessSecret:  []byte(settings.AccessSecret),
		accessTTL:     settings.AccessTTL,
		refreshSecret: []byte(settings.RefreshSecret),
		refreshTTL:    settings.RefreshTTL,
		now:           time.Now,
	}

	for _, option := range options {
		option(codec)
	}

	return codec, nil
}

// AccessTTL returns the lifetime of issued access tokens.
func (codec *TokenCodec) AccessTTL() time.Duration {
	return codec.accessTTL
}

// # Issuing

// IssueAccessToken signs a short-lived access token for the account userID,
// known by the username subject, with the access secret.
func (codec *TokenCodec) IssueAccessToken(userID, subject, email string, role UserRole) (string, error) {
	currentTime := codec.now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    codec.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(codec.accessTTL)),
		},
		UserID: userID,
		Email:  email,
		Role:   role,
	}

	signedToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(codec.accessSecret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign access token: %w", err)
	}

	return signedToken, nil
}

// IssueRefreshToken signs a long-lived refresh token for the account userID
// with the refresh secret.
func (codec *TokenCodec) IssueRefreshToken(userID, subject string) (string, error) {
	tokenID, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("sec: failed to generate token id: %w", err)
	}

	currentTime := codec.now()
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID.String(),
			Issuer:    codec.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(codec.refreshTTL)),
		},
		UserID: userID,
	}

	signedToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(codec.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign refresh token: %w", err)
	}

	return signedToken, nil
}

// # Verification

// VerifyAccessToken checks signature, issuer and expiry of an access token.
//
// # Returns
//   - The decoded claims on success.
//   - An error wrapping [ErrSignatureInvalid], [ErrTokenExpired] or [ErrTokenMalformed].
func (codec *TokenCodec) VerifyAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := codec.verify(tokenString, claims, codec.accessSecret); err != nil {
		return nil, err
	}
	if err := requireBinding(claims.Subject, claims.UserID); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyRefreshToken checks signature, issuer and expiry of a refresh token.
// The failure contract is identical to [TokenCodec.VerifyAccessToken].
func (codec *TokenCodec) VerifyRefreshToken(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := codec.verify(tokenString, claims, codec.refreshSecret); err != nil {
		return nil, err
	}
	if err := requireBinding(claims.Subject, claims.UserID); err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing jti", ErrTokenMalformed)
	}
	return claims, nil
}

func (codec *TokenCodec) verify(tokenString string, claims jwt.Claims, secret []byte) error {
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) {
			return secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(codec.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(codec.now),
	)
	if err == nil {
		return nil
	}

	// The parser checks the signature before any claim, so an expired token
	// signed with the wrong secret is reported as a signature failure.
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}

// requireBinding rejects signed tokens that do not name both the username and
// the account id.
func requireBinding(subject, userID string) error {
	if subject == "" || userID == "" {
		return fmt.Errorf("%w: missing sub or uid", ErrTokenMalformed)
	}
	return nil
}
