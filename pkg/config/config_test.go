// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-network/dusk-da/pkg/config"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() { _ = os.Chdir(wd) }()

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9001", cfg.DAAddress)
	assert.Equal(t, "./data", cfg.DataDirectory)
	assert.Equal(t, "heavy_bbolt_v1", cfg.Backend)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")

	contents := "da_address = \"127.0.0.1:7000\"\ndata_directory = \"/var/lib/da\"\nbackend = \"memory_v1\"\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7000", cfg.DAAddress)
	assert.Equal(t, "/var/lib/da", cfg.DataDirectory)
	assert.Equal(t, "memory_v1", cfg.Backend)
}
