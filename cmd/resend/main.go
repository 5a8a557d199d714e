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

// Receipt Mailer — Resend Command
//
// Standalone CLI tool that re-sends the confirmation email for a single
// payment by fetching it from the Stripe API and running it through the
// normal extraction → render → send pipeline. Intended for support cases
// where the original webhook delivery was lost or the send failed.
//
// Usage:
//
//	go run ./cmd/resend/ --payment pi_xxx [--force] [--dry-run]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cuchifrol/receipt-mailer/internal/config"
	"github.com/cuchifrol/receipt-mailer/internal/deliverylog"
	"github.com/cuchifrol/receipt-mailer/internal/mailer"
	"github.com/cuchifrol/receipt-mailer/internal/models"
	"github.com/cuchifrol/receipt-mailer/internal/receipt"
	"github.com/cuchifrol/receipt-mailer/internal/render"
	"github.com/cuchifrol/receipt-mailer/internal/stripeapi"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// --- CLI Flags ---
	paymentFlag := flag.String("payment", "", "Payment intent id to resend (required)")
	forceFlag := flag.Bool("force", false, "Resend even when the delivery log already records a sent receipt")
	dryRunFlag := flag.Bool("dry-run", false, "Render the email but do not send it")
	flag.Parse()

	if *paymentFlag == "" {
		fmt.Fprintf(os.Stderr, "Error: --payment is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// --- Delivery log (optional): refuse to double-send without --force ---
	var store *deliverylog.Store
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to create Postgres pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		store, err = deliverylog.NewStore(ctx, pool)
		if err != nil {
			slog.Error("failed to initialise delivery log", "error", err)
			os.Exit(1)
		}

		prev, err := store.GetByPayment(ctx, *paymentFlag)
		if err != nil {
			slog.Error("delivery log lookup failed", "error", err)
			os.Exit(1)
		}
		if prev != nil && prev.Status == deliverylog.StatusSent && !*forceFlag {
			slog.Error("receipt already sent for this payment, use --force to resend",
				"payment_id", *paymentFlag,
				"recipient", prev.Recipient,
				"sent_at", prev.CreatedAt,
			)
			os.Exit(1)
		}
	}

	// --- Fetch the payment intent from Stripe ---
	charges := stripeapi.NewClient(cfg.StripeAPIKey, stripeapi.DefaultBaseURL, cfg.StripeLookupTimeout)

	obj, err := charges.FetchPaymentIntent(ctx, *paymentFlag)
	if err != nil {
		slog.Error("payment intent lookup failed", "payment_id", *paymentFlag, "error", err)
		os.Exit(1)
	}
	if obj == nil {
		slog.Error("payment intent not found", "payment_id", *paymentFlag)
		os.Exit(1)
	}

	// The API object may only reference its charge; fetch it for billing
	// detail the same way the webhook path does.
	var charge map[string]any
	if receipt.PayloadEmail(obj) == "" {
		if id := receipt.StringAt(obj, "latest_charge"); id != "" {
			charge, err = charges.FetchCharge(ctx, id)
			if err != nil {
				slog.Warn("charge lookup failed", "charge_id", id, "error", err)
			}
		}
	}

	rec, err := receipt.FromPaymentIntent(obj, charge)
	if err != nil {
		slog.Error("could not build payment record", "payment_id", *paymentFlag, "error", err)
		os.Exit(1)
	}

	vals := render.FromRecord(rec)
	html, err := render.HTML(cfg.TemplatePath, vals)
	if err != nil {
		slog.Error("template rendering failed", "error", err)
		os.Exit(1)
	}
	msg := models.MailMessage{
		From:     cfg.MailFrom,
		FromName: cfg.MailFromName,
		To:       rec.Email,
		CC:       cfg.MailCC,
		Subject:  cfg.MailSubject,
		TextBody: render.Text(vals),
		HTMLBody: html,
	}

	if *dryRunFlag {
		slog.Info("dry run, not sending",
			"recipient", rec.Email,
			"amount", receipt.FormatAmount(rec.AmountMinor, rec.Currency),
			"product", rec.Product,
		)
		fmt.Println(msg.TextBody)
		return
	}

	sender := mailer.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.MailFrom, cfg.MailPassword, cfg.SMTPTimeout)
	if err := sender.Send(ctx, msg); err != nil {
		if store != nil {
			_ = store.Save(ctx, deliveryRecord(rec, deliverylog.StatusFailed, err))
		}
		slog.Error("send failed", "recipient", rec.Email, "error", err)
		os.Exit(1)
	}

	if store != nil {
		if err := store.Save(ctx, deliveryRecord(rec, deliverylog.StatusSent, nil)); err != nil {
			slog.Warn("delivery log write failed", "error", err)
		}
	}

	slog.Info("receipt resent",
		"payment_id", rec.PaymentID,
		"recipient", rec.Email,
		"amount", receipt.FormatAmount(rec.AmountMinor, rec.Currency),
	)
}

func deliveryRecord(rec *models.PaymentRecord, status string, sendErr error) deliverylog.Record {
	errText := ""
	if sendErr != nil {
		errText = sendErr.Error()
	}
	return deliverylog.Record{
		// The resend path has no webhook event; key the row on the payment.
		EventID:     "resend:" + rec.PaymentID,
		PaymentID:   rec.PaymentID,
		Recipient:   rec.Email,
		AmountMinor: rec.AmountMinor,
		Currency:    rec.Currency,
		Status:      status,
		Error:       errText,
	}
}
