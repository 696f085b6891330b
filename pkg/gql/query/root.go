// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package query exposes a read-only, block-store-scoped GraphQL API, built
// with graphql-go/graphql exactly as the teacher's pkg/gql/query package
// does, narrowed from the teacher's full blocks/transactions/mempool
// surface down to what the DA core actually owns: the block store.
// Resolvers pull the database.Store out of the request context under the
// "database" key, the same convention the teacher's query tests use.
package query

import (
	"fmt"

	"github.com/graphql-go/graphql"

	"github.com/dusk-network/dusk-da/pkg/core/block"
	"github.com/dusk-network/dusk-da/pkg/core/database"
)

const storeContextKey = "database"

// Root wraps the assembled GraphQL query schema.
type Root struct {
	Query *graphql.Object
}

// NewRoot builds the query schema. The store itself is not closed over:
// every resolver reads it back out of the request context, so a single
// compiled schema can be reused across requests against different Core
// instances in tests.
func NewRoot() *Root {
	return &Root{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name: "Query",
			Fields: graphql.Fields{
				"block":     blockField(),
				"blocks":    blocksField(),
				"lastBlock": lastBlockField(),
			},
		}),
	}
}

var blockType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Block",
	Fields: graphql.Fields{
		"hash":       &graphql.Field{Type: graphql.String},
		"parentHash": &graphql.Field{Type: graphql.String},
		"height":     &graphql.Field{Type: graphql.Int},
		"slot":       &graphql.Field{Type: graphql.Int},
		"txCount":    &graphql.Field{Type: graphql.Int},
	},
})

func storeFrom(p graphql.ResolveParams) (database.Store, error) {
	store, ok := p.Context.Value(storeContextKey).(database.Store)
	if !ok || store == nil {
		return nil, fmt.Errorf("no block store attached to request context")
	}
	return store, nil
}

func toGQLBlock(b block.SignedBlock) map[string]interface{} {
	return map[string]interface{}{
		"hash":       b.Hash().String(),
		"parentHash": b.ParentHash().String(),
		"height":     int(b.HeightOf()),
		"slot":       int(b.Header.Slot),
		"txCount":    len(b.Txs),
	}
}

func blockField() *graphql.Field {
	return &graphql.Field{
		Type: blockType,
		Args: graphql.FieldConfigArgument{
			"hash": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
		},
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			store, err := storeFrom(p)
			if err != nil {
				return nil, err
			}

			hashHex, _ := p.Args["hash"].(string)

			var h block.Hash
			if err := decodeHashHex(hashHex, &h); err != nil {
				return nil, err
			}

			b, ok, err := store.Get(h)
			if err != nil {
				return nil, fmt.Errorf("reading block: %w", err)
			}
			if !ok {
				return nil, nil
			}

			return toGQLBlock(b), nil
		},
	}
}

func lastBlockField() *graphql.Field {
	return &graphql.Field{
		Type: blockType,
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			store, err := storeFrom(p)
			if err != nil {
				return nil, err
			}

			b, ok, err := store.Last()
			if err != nil {
				return nil, fmt.Errorf("reading last block: %w", err)
			}
			if !ok {
				return nil, nil
			}

			return toGQLBlock(b), nil
		},
	}
}

func blocksField() *graphql.Field {
	return &graphql.Field{
		Type: graphql.NewList(blockType),
		Args: graphql.FieldConfigArgument{
			"from": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
			"to":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
		},
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			store, err := storeFrom(p)
			if err != nil {
				return nil, err
			}

			from, _ := p.Args["from"].(int)
			to, _ := p.Args["to"].(int)

			results, err := store.Range(block.Height(from), block.Height(to))
			if err != nil {
				return nil, fmt.Errorf("ranging blocks: %w", err)
			}

			out := make([]map[string]interface{}, 0, len(results))
			for _, r := range results {
				if r.Err != nil {
					continue
				}
				out = append(out, toGQLBlock(r.Block))
			}

			return out, nil
		},
	}
}

func decodeHashHex(hex string, out *block.Hash) error {
	if len(hex) != block.HashSize*2 {
		return fmt.Errorf("invalid hash hex length %d", len(hex))
	}

	for i := 0; i < block.HashSize; i++ {
		var b byte
		if _, err := fmt.Sscanf(hex[i*2:i*2+2], "%02x", &b); err != nil {
			return fmt.Errorf("invalid hash hex: %w", err)
		}
		out[i] = b
	}

	return nil
}
