// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/taibuivan/gatekeeper/internal/platform/access"
	"github.com/taibuivan/gatekeeper/internal/platform/apperr"
	"github.com/taibuivan/gatekeeper/internal/platform/constants"
	"github.com/taibuivan/gatekeeper/internal/platform/ctxutil"
	"github.com/taibuivan/gatekeeper/internal/platform/metrics"
	"github.com/taibuivan/gatekeeper/internal/platform/respond"
	"github.com/taibuivan/gatekeeper/internal/platform/sec"
)

// Header rejections. Token rejections come from [sec.TokenCodec].
var (
	ErrMissingAuthHeader   = apperr.Unauthenticated(apperr.CodeMissingAuthHeader, "Authorization header is missing")
	ErrMalformedAuthHeader = apperr.Unauthenticated(apperr.CodeMalformedAuthHeader, "Authorization header must use the Bearer scheme")
	ErrEmptyToken          = apperr.Unauthenticated(apperr.CodeEmptyToken, "Bearer token is empty")
	ErrUnknownSubject      = apperr.Unauthorized("Token subject no longer exists")
)

// AccessTokenVerifier validates a raw access token. [sec.TokenCodec] satisfies it.
type AccessTokenVerifier interface {
	VerifyAccessToken(token string) (*sec.AccessClaims, error)
}

// IdentityLoader resolves the account named by a token into the live principal.
// It returns NOT_FOUND when no account holds subject under userID.
type IdentityLoader interface {
	LoadIdentity(ctx context.Context, userID, subject string) (*sec.Identity, error)
}

// # Identity Filter

// Identify establishes the caller's identity from the bearer access token.
// It matches the cleaned path; mount it after [CanonicalPath] so the router
// dispatches on that same path.
//
// # Flow
//  1. Paths in bypass pass through untouched.
//  2. Missing or blank Authorization header: 401 MISSING_AUTH_HEADER.
//  3. Header without the "Bearer " prefix: 401 MALFORMED_AUTH_HEADER.
//  4. Blank token after the prefix: 401 EMPTY_TOKEN.
//  5. Token verification failure: 401 SIGNATURE_INVALID, TOKEN_EXPIRED or TOKEN_MALFORMED.
//  6. The account is loaded through [IdentityLoader] and attached with [ctxutil.WithIdentity].
//     A subject that vanished or now belongs to another account: 401 UNAUTHENTICATED.
//
// The downstream handler is never called after a rejection.
func Identify(verifier AccessTokenVerifier, loader IdentityLoader, bypass access.PathSet, collectors *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			// 1. Bypass list
			if bypass.Contains(canonicalPath(request.URL.Path)) {
				next.ServeHTTP(writer, request)
				return
			}

			// 2. Header extraction
			token, err := bearerToken(request.Header.Get(constants.HeaderAuthorization))
			if err != nil {
				reject(writer, request, collectors, err)
				return
			}

			// 3. Token verification
			claims, err := verifier.VerifyAccessToken(token)
			if err != nil {
				reject(writer, request, collectors, err)
				return
			}

			// 4. Live identity lookup
			identity, err := loader.LoadIdentity(request.Context(), claims.UserID, claims.Subject)
			if err != nil {
				if apperr.IsNotFound(err) {
					err = ErrUnknownSubject.WithCause(err)
				}
				reject(writer, request, collectors, err)
				return
			}

			recordSubject(request.Context(), identity.Subject)
			ctx := ctxutil.WithIdentity(request.Context(), identity)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from an Authorization header value.
func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", ErrMissingAuthHeader
	}

	token, found := strings.CutPrefix(header, constants.BearerPrefix)
	if !found {
		return "", ErrMalformedAuthHeader
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}

// # Access Policy

// Authorize enforces policy using the identity established by [Identify].
// Anonymous callers of protected routes get 401, insufficient roles get 403.
// Like [Identify] it decides on the cleaned path.
func Authorize(policy *access.Policy, collectors *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			identity := ctxutil.GetIdentity(request.Context())

			if err := policy.Decide(request.Method, canonicalPath(request.URL.Path), identity); err != nil {
				reject(writer, request, collectors, err)
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// reject logs, counts and writes an authentication or authorization failure.
func reject(writer http.ResponseWriter, request *http.Request, collectors *metrics.Metrics, err error) {
	reason := apperr.CodeInternalError
	if appError := apperr.As(err); appError != nil {
		reason = appError.Code
	}

	collectors.AuthRejected(reason)
	ctxutil.GetLogger(request.Context()).DebugContext(request.Context(), "auth_rejected",
		slog.String("reason", reason),
		slog.String("error", err.Error()),
	)

	respond.Error(writer, request, err)
}
