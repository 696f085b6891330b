// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Command danode runs the data availability core standalone: it opens the
// configured block store, binds the stream server, and drives the event
// loop until interrupted. Wiring follows the teacher's demo/node/main.go
// shape (config -> storage -> server -> run loop), adapted from a
// consensus-bootstrapping demo to a data-availability one.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/dusk-network/dusk-da/pkg/config"
	"github.com/dusk-network/dusk-da/pkg/core/availability"
	"github.com/dusk-network/dusk-da/pkg/core/database"
	_ "github.com/dusk-network/dusk-da/pkg/core/database/heavy"
	_ "github.com/dusk-network/dusk-da/pkg/core/database/memory"
	"github.com/dusk-network/dusk-da/pkg/core/eventbus"
	"github.com/dusk-network/dusk-da/pkg/core/genesis"
	"github.com/dusk-network/dusk-da/pkg/gql/query"
	"github.com/dusk-network/dusk-da/pkg/p2p/stream"
)

var log = logrus.WithFields(logrus.Fields{"process": "danode"})

func main() {
	configPath := flag.String("config", "", "path to a da_config file (optional)")
	dataDir := flag.String("data-dir", "", "override the configured data directory")
	daAddress := flag.String("da-address", "", "override the configured stream server listen address")
	flag.Parse()

	if err := run(*configPath, *dataDir, *daAddress); err != nil {
		log.WithError(err).Fatal("danode exited")
	}
}

func run(configPath, dataDirOverride, daAddressOverride string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if dataDirOverride != "" {
		cfg.DataDirectory = dataDirOverride
	}
	if daAddressOverride != "" {
		cfg.DAAddress = daAddressOverride
	}

	store, err := database.Open(cfg.Backend, cfg.DataDirectory)
	if err != nil {
		return fmt.Errorf("opening block store: %w", err)
	}
	defer store.Close()

	server, err := stream.Listen(cfg.DAAddress)
	if err != nil {
		return fmt.Errorf("binding stream server: %w", err)
	}

	bus := eventbus.New()
	core := availability.New(store, bus, server)

	empty, err := store.IsEmpty()
	if err != nil {
		return fmt.Errorf("checking block store: %w", err)
	}

	if empty {
		log.Info("fresh data directory, generating genesis block")
		g := genesis.Generate(genesis.Config{})
		bus.Publish(eventbus.TopicGenesis, availability.GenesisEvent{Block: &g})
	} else {
		log.Info("resuming from persisted state, requesting catch-up")
		bus.Publish(eventbus.TopicGenesis, availability.GenesisEvent{Block: nil})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.GraphQLAddress != "" {
		go func() {
			if err := query.Serve(ctx, cfg.GraphQLAddress, store); err != nil {
				log.WithError(err).Warn("graphql server stopped")
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		cancel()
	}()

	log.WithField("address", cfg.DAAddress).Info("data availability node starting")

	if err := core.Run(ctx); err != nil && err != context.Canceled {
		return fmt.Errorf("running data availability core: %w", err)
	}

	return nil
}
