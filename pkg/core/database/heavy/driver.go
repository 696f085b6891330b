// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package heavy

import "github.com/dusk-network/dusk-da/pkg/core/database"

type driver struct{}

func (d driver) Open(dataDir string) (database.Store, error) {
	return New(dataDir)
}

func (d driver) Name() string {
	return DriverName
}

func init() {
	if err := database.Register(driver{}); err != nil {
		panic(err)
	}
}
