// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package database

import (
	"fmt"
	"sync"
)

// Driver opens a named Store backend. Mirrors the teacher's
// pkg/core/database driver-registration pattern (heavy/driver.go), so the
// backend used at runtime is selected by name rather than compiled-in
// directly by callers.
type Driver interface {
	Open(dataDir string) (Store, error)
	Name() string
}

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// Register makes a Driver available under its Name(). It returns an error
// if a driver with that name is already registered.
func Register(d Driver) error {
	driversMu.Lock()
	defer driversMu.Unlock()

	name := d.Name()
	if _, exists := drivers[name]; exists {
		return fmt.Errorf("database driver %q already registered", name)
	}

	drivers[name] = d
	return nil
}

// Open opens a Store using the named, previously-registered driver.
func Open(name, dataDir string) (Store, error) {
	driversMu.RLock()
	d, ok := drivers[name]
	driversMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown database driver %q", name)
	}

	return d.Open(dataDir)
}
