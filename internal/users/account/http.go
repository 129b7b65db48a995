// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	requestutil "github.com/taibuivan/gatekeeper/internal/platform/request"
	"github.com/taibuivan/gatekeeper/internal/platform/respond"
	"github.com/taibuivan/gatekeeper/internal/users/auth"
	"github.com/taibuivan/gatekeeper/pkg/pagination"
)

// Handler implements the HTTP layer for user account management.
type Handler struct {
	accountService *Service
}

// NewHandler constructs a new account [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{accountService: service}
}

// Routes returns a [chi.Router] configured with the account domain's endpoints.
//
// Role requirements (ADMIN for password, role and delete by id) are enforced
// by the access policy before these handlers run.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Lookups
	router.Get("/", handler.list)
	router.Get("/{id}", handler.get)

	// Self service
	router.Put("/{id}", handler.update)
	router.Put("/password", handler.updateOwnPassword)

	// Administration
	router.Put("/{id}/password", handler.updatePassword)
	router.Put("/{id}/role", handler.updateRole)
	router.Delete("/{id}", handler.delete)

	return router
}

// # Lookup Endpoints

/*
GET /api/v1/users.

Description: With ?username= or ?email= returns that single user. Otherwise
returns a page of users.

Response:
  - 200: User or paginated []User
  - 404: NOT_FOUND: No user with the given username or email
*/
func (handler *Handler) list(writer http.ResponseWriter, request *http.Request) {
	query := request.URL.Query()

	var (
		user *auth.User
		err  error
	)
	switch {
	case query.Has("username"):
		user, err = handler.accountService.FindByUsername(request.Context(), query.Get("username"))
	case query.Has("email"):
		user, err = handler.accountService.FindByEmail(request.Context(), query.Get("email"))
	default:
		users, meta, err := handler.accountService.List(request.Context(), pagination.FromRequest(request))
		if err != nil {
			respond.Error(writer, request, err)
			return
		}
		respond.Paginated(writer, users, meta)
		return
	}

	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, user)
}

/*
GET /api/v1/users/{id}.

Response:
  - 200: User
  - 400: VALIDATION_ERROR: id is not a UUID
  - 404: NOT_FOUND
*/
func (handler *Handler) get(writer http.ResponseWriter, request *http.Request) {
	id, err := requestutil.ID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.accountService.Find(request.Context(), id)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

// # Mutation Endpoints

/*
PUT /api/v1/users/{id}.

Request:
  - Body: UpdateUserInput (username, email, first_name?, last_name?)

Response:
  - 200: User: The updated profile
  - 403: FORBIDDEN: Caller is neither the owner nor an administrator
  - 409: CONFLICT: Username or email belongs to another account
*/
func (handler *Handler) update(writer http.ResponseWriter, request *http.Request) {
	caller, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	id, err := requestutil.ID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input UpdateUserInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.accountService.Update(request.Context(), caller, id, input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

/*
PUT /api/v1/users/password.

Request:
  - Body: UpdatePasswordInput (password, repeated_password)

Response:
  - 200: User: The caller's account
*/
func (handler *Handler) updateOwnPassword(writer http.ResponseWriter, request *http.Request) {
	caller, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input UpdatePasswordInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.accountService.UpdatePassword(request.Context(), caller, input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

/*
PUT /api/v1/users/{id}/password.

Request:
  - Body: UpdatePasswordInput (password, repeated_password)

Response:
  - 200: User
  - 404: NOT_FOUND
*/
func (handler *Handler) updatePassword(writer http.ResponseWriter, request *http.Request) {
	id, err := requestutil.ID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input UpdatePasswordInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.accountService.UpdatePasswordByID(request.Context(), id, input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

/*
PUT /api/v1/users/{id}/role.

Request:
  - Body: UpdateRoleInput (role: USER | ADMIN)

Response:
  - 200: User
  - 404: NOT_FOUND
*/
func (handler *Handler) updateRole(writer http.ResponseWriter, request *http.Request) {
	id, err := requestutil.ID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input UpdateRoleInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.accountService.UpdateRole(request.Context(), id, input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

/*
DELETE /api/v1/users/{id}.

Response:
  - 204: No Content
  - 404: NOT_FOUND
*/
func (handler *Handler) delete(writer http.ResponseWriter, request *http.Request) {
	id, err := requestutil.ID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.accountService.Delete(request.Context(), id); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}
