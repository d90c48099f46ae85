// Copyright 2025-2026 Daniel Villamizar
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Command warelay maintains a persistent WhatsApp session and relays every
// message the main identity receives to a secondary number, with rate
// limiting, duplicate suppression and randomized pacing between sends.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/dvillamizar/warelay/pkg/relay"
	"github.com/dvillamizar/warelay/pkg/relay/credstore"
	"github.com/dvillamizar/warelay/pkg/relay/qrterm"
	"github.com/dvillamizar/warelay/pkg/relay/waproto"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "warelay:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := relay.Load()
	if err != nil {
		return err
	}
	log.Info().
		Str("main", cfg.MainJID).
		Str("secondary", cfg.SecondaryJID).
		Str("db", cfg.DBPath).
		Msg("Starting warelay")

	store, err := credstore.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	dialer, err := waproto.NewDialer(store.DB(), log)
	if err != nil {
		return err
	}

	gov := relay.NewGovernor(cfg, log)
	pipe := relay.NewPipeline(cfg, log)
	sup := relay.NewSupervisor(dialer, store, qrterm.New(log), gov, pipe, cfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go gov.Run(ctx)

	srv := livenessServer(cfg.ListenAddr)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("Liveness endpoint listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Liveness server error")
		}
	}()

	runErr := sup.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	log.Info().Msg("Shutdown complete")
	return nil
}

func livenessServer(addr string) *http.Server {
	r := chi.NewRouter()
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("alive"))
	})
	return &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
