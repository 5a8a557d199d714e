// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Receipt Mailer — webhook server
//
// Entry point for the receipt mailer. It:
//  1. Loads configuration from the environment and optional config.yaml
//  2. Connects to Postgres (delivery log) and Redis (dedup) when configured
//  3. Serves the Stripe webhook endpoint and a health check
//  4. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/cuchifrol/receipt-mailer/internal/config"
	"github.com/cuchifrol/receipt-mailer/internal/dedup"
	"github.com/cuchifrol/receipt-mailer/internal/deliverylog"
	"github.com/cuchifrol/receipt-mailer/internal/mailer"
	"github.com/cuchifrol/receipt-mailer/internal/stripeapi"
	"github.com/cuchifrol/receipt-mailer/internal/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	slog.Info("starting receipt mailer",
		"smtp_host", cfg.SMTPHost,
		"template", cfg.TemplatePath,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Delivery log (optional) ---
	var (
		pgPool *pgxpool.Pool
		store  *deliverylog.Store
	)
	if cfg.DatabaseURL != "" {
		pgPool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to create Postgres pool", "error", err)
			os.Exit(1)
		}
		defer pgPool.Close()

		store, err = deliverylog.NewStore(ctx, pgPool)
		if err != nil {
			slog.Error("failed to initialise delivery log", "error", err)
			os.Exit(1)
		}
		slog.Info("connected to PostgreSQL")
	}

	// --- Dedup filter (optional) ---
	var (
		rdb    *redis.Client
		filter *dedup.Filter
	)
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		rdb = redis.NewClient(opt)
		filter = dedup.NewFilter(rdb)
		if err := filter.Ping(ctx); err != nil {
			slog.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		slog.Info("connected to Redis")
	}

	// --- Stripe lookups + SMTP sender ---
	charges := stripeapi.NewClient(cfg.StripeAPIKey, stripeapi.DefaultBaseURL, cfg.StripeLookupTimeout)
	sender := mailer.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.MailFrom, cfg.MailPassword, cfg.SMTPTimeout)

	handler := webhook.NewHandler(webhook.HandlerConfig{
		WebhookSecret: cfg.StripeWebhookSecret,
		TemplatePath:  cfg.TemplatePath,
		MailFrom:      cfg.MailFrom,
		MailFromName:  cfg.MailFromName,
		MailCC:        cfg.MailCC,
		Subject:       cfg.MailSubject,
		Charges:       charges,
		Sender:        sender,
		Filter:        nilIfNoFilter(filter),
		Deliveries:    nilIfNoStore(store),
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", handler.ServeWebhook)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if filter != nil {
			if err := filter.Ping(r.Context()); err != nil {
				http.Error(w, "redis unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		if store != nil {
			if err := store.Ping(r.Context()); err != nil {
				http.Error(w, "postgres unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second, // the pipeline runs inside the request
	}

	// --- Graceful Shutdown ---
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh

		slog.Info("received shutdown signal", "signal", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}

		if rdb != nil {
			rdb.Close()
		}
		if pgPool != nil {
			pgPool.Close()
		}
	}()

	slog.Info("receipt mailer listening", "addr", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("receipt mailer stopped")
}

// nilIfNoFilter keeps the handler's Deduper interface nil when Redis is not
// configured. A typed nil pointer in a non-nil interface would defeat the
// handler's nil checks.
func nilIfNoFilter(f *dedup.Filter) webhook.Deduper {
	if f == nil {
		return nil
	}
	return f
}

func nilIfNoStore(s *deliverylog.Store) webhook.DeliveryLog {
	if s == nil {
		return nil
	}
	return s
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
