// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package data_test

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/gatekeeper/data"
)

/*
TestMigrations_Paired verifies every embedded up migration has a down migration.
*/
func TestMigrations_Paired(t *testing.T) {
	entries, err := fs.ReadDir(data.Migrations(), ".")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	names := make(map[string]bool, len(entries))
	for _, entry := range entries {
		names[entry.Name()] = true
	}

	for name := range names {
		if base, found := strings.CutSuffix(name, ".up.sql"); found {
			assert.True(t, names[base+".down.sql"], "missing down migration for %s", name)
		}
	}
	assert.True(t, names["000001_create_users_account.up.sql"])
}
