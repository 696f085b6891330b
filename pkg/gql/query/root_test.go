// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package query_test

import (
	"context"
	"testing"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-network/dusk-da/pkg/core/block"
	"github.com/dusk-network/dusk-da/pkg/core/database/memory"
	"github.com/dusk-network/dusk-da/pkg/gql/query"
)

func schema(t *testing.T) graphql.Schema {
	t.Helper()

	root := query.NewRoot()
	sc, err := graphql.NewSchema(graphql.SchemaConfig{Query: root.Query})
	require.NoError(t, err)
	return sc
}

func execute(sc graphql.Schema, store interface{}, q string) *graphql.Result {
	return graphql.Do(graphql.Params{
		Schema:        sc,
		RequestString: q,
		Context:       context.WithValue(context.Background(), "database", store), //nolint:staticcheck
	})
}

func TestLastBlockQuery(t *testing.T) {
	store := memory.New()
	var h block.Hash
	h[0] = 7
	require.NoError(t, store.Put(block.SignedBlock{Header: block.Header{Height: 3, Hash: h}}))

	result := execute(schema(t), store, `{ lastBlock { height } }`)

	require.Empty(t, result.Errors)
	data, ok := result.Data.(map[string]interface{})
	require.True(t, ok)

	lastBlock, ok := data["lastBlock"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 3, lastBlock["height"])
}

func TestBlockQueryNotFound(t *testing.T) {
	store := memory.New()

	result := execute(schema(t), store, `{ block(hash: "`+zeroHashHex()+`") { height } }`)

	require.Empty(t, result.Errors)
	data, ok := result.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Nil(t, data["block"])
}

func zeroHashHex() string {
	var h block.Hash
	s := ""
	for _, b := range h {
		s += byteHex(b)
	}
	return s
}

func byteHex(b byte) string {
	const hexDigits = "0123456789abcdef"
	return string([]byte{hexDigits[b>>4], hexDigits[b&0x0f]})
}
