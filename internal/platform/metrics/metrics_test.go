// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/gatekeeper/internal/platform/metrics"
)

/*
TestMetrics_Counters verifies the helpers increment the labelled series.
*/
func TestMetrics_Counters(t *testing.T) {
	m := metrics.New()

	m.AuthRejected("TOKEN_EXPIRED")
	m.AuthRejected("TOKEN_EXPIRED")
	m.LoginAttempt(metrics.OutcomeFailure)
	m.TokenRefresh(metrics.OutcomeSuccess)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuthRejections.WithLabelValues("TOKEN_EXPIRED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginAttempts.WithLabelValues(metrics.OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokenRefreshes.WithLabelValues(metrics.OutcomeSuccess)))
}

/*
TestMetrics_NilSafe ensures a nil collector set is a no-op.
*/
func TestMetrics_NilSafe(t *testing.T) {
	var m *metrics.Metrics

	assert.NotPanics(t, func() {
		m.AuthRejected("x")
		m.LoginAttempt(metrics.OutcomeSuccess)
		m.ObserveRequest(http.MethodGet, "/health", http.StatusOK, time.Millisecond)
	})
}

/*
TestMetrics_Handler checks the exposition endpoint.
*/
func TestMetrics_Handler(t *testing.T) {
	m := metrics.New()
	m.ObserveRequest(http.MethodGet, "/api/v1/users/{id}", http.StatusOK, 5*time.Millisecond)

	recorder := httptest.NewRecorder()
	m.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
	body := recorder.Body.String()
	assert.True(t, strings.Contains(body, `gatekeeper_http_requests_total{method="GET",route="/api/v1/users/{id}",status="200"} 1`))
}
