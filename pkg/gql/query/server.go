// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package query

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/graphql-go/graphql"
	"github.com/sirupsen/logrus"

	"github.com/dusk-network/dusk-da/pkg/core/database"
)

var log = logrus.WithFields(logrus.Fields{"process": "da_gql"})

// request is the POST body a GraphQL client sends: a query string plus
// optional variables, the conventional graphql-go wire shape.
type request struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

// Handler builds an http.Handler serving store's block data over the schema
// assembled by NewRoot. Every request gets its own resolver context carrying
// store under storeContextKey, so a single Handler can be reused for the
// lifetime of the process.
func Handler(store database.Store) (http.Handler, error) {
	root := NewRoot()

	schema, err := graphql.NewSchema(graphql.SchemaConfig{Query: root.Query})
	if err != nil {
		return nil, fmt.Errorf("assembling graphql schema: %w", err)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("decoding request: %v", err), http.StatusBadRequest)
			return
		}

		ctx := context.WithValue(r.Context(), storeContextKey, store)

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			Context:        ctx,
		})

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(result); err != nil {
			log.WithError(err).Warn("encoding graphql response")
		}
	}), nil
}

// Serve binds addr and serves the block explorer GraphQL API over HTTP until
// ctx is cancelled. It is a best-effort sidecar to the DA core's own event
// loop: a query-serving failure here never affects block acceptance or
// streaming.
func Serve(ctx context.Context, addr string, store database.Store) error {
	handler, err := Handler(store)
	if err != nil {
		return err
	}

	srv := &http.Server{Addr: addr, Handler: handler}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	log.WithField("address", addr).Info("graphql block explorer listening")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving graphql: %w", err)
	}

	return nil
}
