// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package respond_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/gatekeeper/internal/platform/apperr"
	"github.com/taibuivan/gatekeeper/internal/platform/respond"
)

/*
TestJSON_NoStore marks every response non-cacheable.
*/
func TestJSON_NoStore(t *testing.T) {
	recorder := httptest.NewRecorder()
	respond.OK(recorder, map[string]string{"access_token": "t"})

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "no-store", recorder.Header().Get("Cache-Control"))
	assert.Equal(t, "no-cache", recorder.Header().Get("Pragma"))
	assert.JSONEq(t, `{"data":{"access_token":"t"}}`, recorder.Body.String())
}

/*
TestError_Envelope covers the error body and the Bearer challenge.
*/
func TestError_Envelope(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		challenge string
	}{
		{"missing_header", apperr.Unauthenticated(apperr.CodeMissingAuthHeader, "missing"), http.StatusUnauthorized, `Bearer realm="gatekeeper"`},
		{"empty_token", apperr.Unauthenticated(apperr.CodeEmptyToken, "empty"), http.StatusUnauthorized, `Bearer realm="gatekeeper", error="invalid_request"`},
		{"expired", apperr.Unauthenticated(apperr.CodeTokenExpired, "expired"), http.StatusUnauthorized, `Bearer realm="gatekeeper", error="invalid_token"`},
		{"forbidden", apperr.Forbidden("no"), http.StatusForbidden, ""},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respond.Error(recorder, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			assert.Equal(t, tt.status, recorder.Code)
			assert.Equal(t, tt.challenge, recorder.Header().Get("WWW-Authenticate"))
			assert.Equal(t, "no-store", recorder.Header().Get("Cache-Control"))
			assert.NotContains(t, recorder.Body.String(), "disk on fire")
		})
	}
}
