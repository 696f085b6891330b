// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package config loads the data availability node's runtime configuration
// with spf13/viper, the same configuration library the teacher repo's test
// harness (harness/engine/network.go) drives to write out node config
// files.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is everything the DA node needs to start: where to listen for
// streaming connections, and where to keep its on-disk state.
type Config struct {
	// DAAddress is the address the stream server listens on, e.g.
	// "0.0.0.0:9001".
	DAAddress string `mapstructure:"da_address"`
	// DataDirectory is the root directory the block store and any other
	// persisted state live under.
	DataDirectory string `mapstructure:"data_directory"`
	// Backend selects the registered database.Driver to open, e.g.
	// "heavy_bbolt_v1" or "memory_v1".
	Backend string `mapstructure:"backend"`
	// GraphQLAddress, if non-empty, serves the read-only block explorer API
	// on this address.
	GraphQLAddress string `mapstructure:"graphql_address"`
}

// defaults mirror a single-node local devnet: stream on the conventional DA
// port, keep state under ./data, use the durable backend.
func defaults() Config {
	return Config{
		DAAddress:     "0.0.0.0:9001",
		DataDirectory: "./data",
		Backend:       "heavy_bbolt_v1",
	}
}

// Load reads configuration from, in increasing precedence: built-in
// defaults, a config file (if found), and DUSK_DA_-prefixed environment
// variables. path may be empty, in which case only the current directory
// is searched for a "da_config" file.
func Load(path string) (Config, error) {
	v := viper.New()

	d := defaults()
	v.SetDefault("da_address", d.DAAddress)
	v.SetDefault("data_directory", d.DataDirectory)
	v.SetDefault("backend", d.Backend)
	v.SetDefault("graphql_address", "")

	v.SetEnvPrefix("dusk_da")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("da_config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.DAAddress == "" {
		return Config{}, fmt.Errorf("da_address must not be empty")
	}
	if cfg.DataDirectory == "" {
		return Config{}, fmt.Errorf("data_directory must not be empty")
	}

	return cfg, nil
}
