// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/gatekeeper/internal/platform/apperr"
	requestutil "github.com/taibuivan/gatekeeper/internal/platform/request"
	"github.com/taibuivan/gatekeeper/internal/platform/respond"
)

// # Definitions & Constructors

// Handler implements authentication-related HTTP endpoints.
//
// # Scope
//
// Access control is not decided here. The identity filter and the route
// policy have already run by the time a handler executes.
type Handler struct {
	authService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{authService: service}
}

// Routes returns a [chi.Router] configured with authentication-specific routes.
//
// # Endpoints
//   - POST /register : Creates a new account.
//   - POST /login    : Exchanges credentials for a token pair.
//   - POST /refresh  : Exchanges a refresh token for an access token.
//   - POST /logout   : Revokes a refresh token.
//   - GET  /me       : Returns the caller's identity.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/register", handler.register)
	router.Post("/login", handler.login)
	router.Post("/refresh", handler.refresh)
	router.Post("/logout", handler.logout)
	router.Get("/me", handler.me)

	return router
}

/*
Register handles the creation of a new user account.

POST /api/v1/auth/register

Request:
  - Body: RegisterInput (username, email, password, repeated_password, first_name?, last_name?)

Response:
  - 201: User: Created user profile (role USER)
  - 400: VALIDATION_ERROR: Bad input or validation failure
  - 409: CONFLICT: Username or Email already exists
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input RegisterInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.authService.Register(request.Context(), input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, user)
}

/*
Login authenticates a user and issues a token pair.

POST /api/v1/auth/login

Request:
  - Body: LoginInput (username, password)

Response:
  - 200: TokenPair: access_token and refresh_token
  - 400: AUTHENTICATION_FAILED: Unknown user or wrong password (same message for both)
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input LoginInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	tokens, err := handler.authService.Login(request.Context(), input)
	if err != nil {
		// Unknown users and wrong passwords must be indistinguishable
		if apperr.IsNotFound(err) {
			err = ErrBadCredentials.WithCause(err)
		}
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, tokens)
}

/*
Refresh issues a new access token using a valid refresh token.

POST /api/v1/auth/refresh

Request:
  - Body: RefreshInput (refresh_token)

Response:
  - 200: {access_token, token_type}
  - 401: SIGNATURE_INVALID, TOKEN_EXPIRED, TOKEN_MALFORMED, TOKEN_REVOKED or UNAUTHENTICATED
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	var input RefreshInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	accessToken, err := handler.authService.RefreshAccessToken(request.Context(), input)
	if err != nil {
		// The token was valid but its account is gone
		if apperr.IsNotFound(err) {
			err = apperr.Unauthorized("Token subject no longer exists").WithCause(err)
		}
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		"access_token": accessToken,
		"token_type":   "Bearer",
	})
}

/*
Logout revokes one of the caller's refresh tokens.

POST /api/v1/auth/logout

Request:
  - Body: RefreshInput (refresh_token)

Response:
  - 204: No Content: Token revoked (or already unusable)
  - 403: FORBIDDEN: Token belongs to another account
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input RefreshInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.Logout(request.Context(), identity, input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
Me returns the identity established for the current request.

GET /api/v1/auth/me

Response:
  - 200: Identity: {id, subject, email, role}
  - 404: NOT_FOUND: No identity on the request
*/
func (handler *Handler) me(writer http.ResponseWriter, request *http.Request) {
	identity, err := handler.authService.CurrentIdentity(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, identity)
}
