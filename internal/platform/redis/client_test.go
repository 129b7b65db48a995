// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package redis

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/*
TestConfigure applies the revocation-store settings on top of the URL.
*/
func TestConfigure(t *testing.T) {
	// 1. Defaults
	options, err := redis.ParseURL("redis://cache:6379/3")
	require.NoError(t, err)
	configure(options)

	assert.Equal(t, "cache:6379", options.Addr)
	assert.Equal(t, 3, options.DB)
	assert.Equal(t, 500*time.Millisecond, options.ReadTimeout)
	assert.True(t, options.ContextTimeoutEnabled)
	assert.Equal(t, 2, options.MaxRetries)
	assert.Equal(t, "gatekeeper", options.ClientName)

	// 2. A client name from the URL is kept
	options, err = redis.ParseURL("redis://cache:6379/0?client_name=edge")
	require.NoError(t, err)
	configure(options)
	assert.Equal(t, "edge", options.ClientName)
}
