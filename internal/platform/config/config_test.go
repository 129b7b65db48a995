// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/gatekeeper/internal/platform/config"
)

func validConfig() *config.Config {
	return &config.Config{
		JWTAccessSecret:  strings.Repeat("a", 32),
		JWTRefreshSecret: strings.Repeat("r", 32),
		JWTAccessTTL:     15 * time.Minute,
		JWTRefreshTTL:    7 * 24 * time.Hour,
	}
}

/*
TestLoad_FromEnvironment verifies defaults and required variables are applied.
*/
func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/gatekeeper")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("JWT_ACCESS_SECRET", strings.Repeat("a", 40))
	t.Setenv("JWT_REFRESH_SECRET", strings.Repeat("b", 40))
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8,192.0.2.1")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 15*time.Minute, cfg.JWTAccessTTL)
	assert.Equal(t, 168*time.Hour, cfg.JWTRefreshTTL)
	assert.Equal(t, "gatekeeper", cfg.JWTIssuer)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Origins())
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.1"}, cfg.TrustedProxies)
}

/*
TestValidate_Secrets checks the secret length and independence rules.
*/
func TestValidate_Secrets(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		valid  bool
	}{
		{"valid", func(*config.Config) {}, true},
		{"short_access_secret", func(c *config.Config) { c.JWTAccessSecret = "short" }, false},
		{"short_refresh_secret", func(c *config.Config) { c.JWTRefreshSecret = "short" }, false},
		{"shared_secret", func(c *config.Config) { c.JWTRefreshSecret = c.JWTAccessSecret }, false},
		{"access_outlives_refresh", func(c *config.Config) { c.JWTAccessTTL = 30 * 24 * time.Hour }, false},
		{"admin_without_password", func(c *config.Config) { c.AdminUsername = "root"; c.AdminEmail = "root@x.com" }, false},
		{"trusted_proxies", func(c *config.Config) { c.TrustedProxies = []string{"10.0.0.0/8", "::1"} }, true},
		{"bad_trusted_proxy", func(c *config.Config) { c.TrustedProxies = []string{"proxy.internal"} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
