// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/gatekeeper/internal/platform/apperr"
	"github.com/taibuivan/gatekeeper/internal/platform/ctxutil"
	"github.com/taibuivan/gatekeeper/internal/platform/respond"
	"github.com/taibuivan/gatekeeper/internal/platform/sec"
	"github.com/taibuivan/gatekeeper/internal/users/account"
	"github.com/taibuivan/gatekeeper/internal/users/auth/authtest"
	"github.com/taibuivan/gatekeeper/pkg/pagination"
)

func serve(t *testing.T, handler http.Handler, method, path string, body any, caller *sec.Identity) *httptest.ResponseRecorder {
	t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}

	request := httptest.NewRequest(method, path, bytes.NewReader(payload))
	if caller != nil {
		request = request.WithContext(ctxutil.WithIdentity(request.Context(), caller))
	}

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

/*
TestHandler_Routes exercises every account endpoint once.
*/
func TestHandler_Routes(t *testing.T) {
	users := authtest.NewUserRepository()
	routes := account.NewHandler(account.NewService(users, discard)).Routes()

	alice := seed(t, users, "alice", sec.RoleUser)
	bob := seed(t, users, "bob", sec.RoleUser)
	root := seed(t, users, "root", sec.RoleAdmin)

	// 1. Single lookups
	recorder := serve(t, routes, http.MethodGet, "/"+alice.ID, nil, bob.Identity())
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = serve(t, routes, http.MethodGet, "/?email=alice@x.com", nil, bob.Identity())
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = serve(t, routes, http.MethodGet, "/?username=ghost", nil, bob.Identity())
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	recorder = serve(t, routes, http.MethodGet, "/not-a-uuid", nil, bob.Identity())
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	// 2. Paginated list
	recorder = serve(t, routes, http.MethodGet, "/?page=1&limit=2", nil, bob.Identity())
	require.Equal(t, http.StatusOK, recorder.Code)

	var listed struct {
		Data []map[string]any `json:"data"`
		Meta pagination.Meta  `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&listed))
	assert.Len(t, listed.Data, 2)
	assert.Equal(t, 3, listed.Meta.Total)

	// 3. Profile update by a stranger, then by the owner
	update := map[string]string{"username": "alice", "email": "alice@new.com"}
	recorder = serve(t, routes, http.MethodPut, "/"+alice.ID, update, bob.Identity())
	assert.Equal(t, http.StatusForbidden, recorder.Code)

	recorder = serve(t, routes, http.MethodPut, "/"+alice.ID, update, alice.Identity())
	assert.Equal(t, http.StatusOK, recorder.Code)

	// 4. Own password
	password := map[string]string{"password": "NewSecret1", "repeated_password": "NewSecret1"}
	recorder = serve(t, routes, http.MethodPut, "/password", password, bob.Identity())
	assert.Equal(t, http.StatusOK, recorder.Code)

	// 5. Administration
	recorder = serve(t, routes, http.MethodPut, "/"+alice.ID+"/password", password, root.Identity())
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder = serve(t, routes, http.MethodPut, "/"+alice.ID+"/role", map[string]string{"role": "ADMIN"}, root.Identity())
	require.Equal(t, http.StatusOK, recorder.Code)

	var promoted struct {
		Data struct {
			Role sec.UserRole `json:"role"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&promoted))
	assert.Equal(t, sec.RoleAdmin, promoted.Data.Role)

	recorder = serve(t, routes, http.MethodPut, "/"+alice.ID+"/role", map[string]string{"role": "GOD"}, root.Identity())
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	var envelope respond.ErrorEnvelope
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&envelope))
	assert.Equal(t, apperr.CodeValidationError, envelope.Code)

	recorder = serve(t, routes, http.MethodDelete, "/"+alice.ID, nil, root.Identity())
	assert.Equal(t, http.StatusNoContent, recorder.Code)

	recorder = serve(t, routes, http.MethodDelete, "/"+alice.ID, nil, root.Identity())
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}
