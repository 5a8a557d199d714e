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

// Package webhook handles incoming Stripe payment events. When a payment
// completes, Stripe POSTs a signed event to the registered webhook URL; the
// handler verifies the signature, resolves the customer and payment detail,
// and dispatches a confirmation email.
//
// Signature verification is the sole authentication boundary. Past it, every
// failure is terminal for the event but still acknowledged with 200 — Stripe
// redelivers on any other status, and redelivery of a half-processed event
// must never reach a customer twice. The single exception is a failed
// checkout-session line-item lookup, which returns 500.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	stripe "github.com/stripe/stripe-go/v81"
	stripewebhook "github.com/stripe/stripe-go/v81/webhook"

	"github.com/cuchifrol/receipt-mailer/internal/deliverylog"
	"github.com/cuchifrol/receipt-mailer/internal/mailer"
	"github.com/cuchifrol/receipt-mailer/internal/models"
	"github.com/cuchifrol/receipt-mailer/internal/receipt"
	"github.com/cuchifrol/receipt-mailer/internal/render"
)

// maxBodyBytes caps the request body read. Stripe events are well under this.
const maxBodyBytes = 1 << 20

// Charges looks up charge and line-item detail when the event payload lacks
// full billing information.
type Charges interface {
	FetchCharge(ctx context.Context, chargeID string) (map[string]any, error)
	ListLineItems(ctx context.Context, sessionID string) ([]map[string]any, error)
}

// Deduper filters already-processed event ids. Forget releases an id marked
// seen so a redelivery of the same event is processed again.
type Deduper interface {
	IsNew(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// DeliveryLog records send outcomes.
type DeliveryLog interface {
	Save(ctx context.Context, r deliverylog.Record) error
}

// LineItemsError reports a failed checkout-session line-item lookup. It is
// the one downstream fault surfaced to Stripe as an error status.
type LineItemsError struct {
	SessionID string
	Err       error
}

func (e *LineItemsError) Error() string {
	return fmt.Sprintf("list line items for session %s: %v", e.SessionID, e.Err)
}

func (e *LineItemsError) Unwrap() error { return e.Err }

// HandlerConfig carries the handler's collaborators and mail settings.
// Filter and Deliveries may be nil; the corresponding step is skipped.
type HandlerConfig struct {
	WebhookSecret string
	TemplatePath  string

	MailFrom     string
	MailFromName string
	MailCC       string
	Subject      string

	Charges    Charges
	Sender     mailer.Sender
	Filter     Deduper
	Deliveries DeliveryLog
}

// Handler processes Stripe payment events.
type Handler struct {
	cfg HandlerConfig
}

// NewHandler creates a payment event handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{cfg: cfg}
}

// ServeWebhook handles webhook requests from Stripe.
//
//   - 400: missing/invalid signature, or a body that cannot be parsed
//   - 500: checkout-session line-item lookup failure
//   - 200: everything else, including ignored event types, duplicates, and
//     every post-verification processing failure
func (h *Handler) ServeWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		slog.Error("failed to read webhook body", "error", err)
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return
	}

	// Endpoints can be pinned to any API version; extraction works on the
	// raw tree, so a version mismatch must not reject a correctly signed
	// event.
	event, err := stripewebhook.ConstructEventWithOptions(body, r.Header.Get("Stripe-Signature"), h.cfg.WebhookSecret, stripewebhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		slog.Warn("webhook verification failed", "error", err)
		http.Error(w, "invalid payload or signature", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded, stripe.EventTypeCheckoutSessionCompleted:
	default:
		// Acknowledge everything else so Stripe never retries it.
		slog.Debug("ignoring event type", "type", event.Type, "event_id", event.ID)
		w.WriteHeader(http.StatusOK)
		return
	}

	if h.cfg.Filter != nil {
		isNew, err := h.cfg.Filter.IsNew(r.Context(), event.ID)
		if err != nil {
			slog.Warn("dedup check failed, proceeding", "error", err)
		} else if !isNew {
			slog.Info("skipping duplicate event", "event_id", event.ID)
			w.WriteHeader(http.StatusOK)
			return
		}
	}

	if err := h.process(r.Context(), &event); err != nil {
		var lookupErr *LineItemsError
		switch {
		case errors.As(err, &lookupErr):
			slog.Error("line item lookup failed",
				"event_id", event.ID,
				"session_id", lookupErr.SessionID,
				"error", err,
			)
			// The 500 exists to make Stripe redeliver; the event must not
			// stay marked as seen or the redelivery is dropped.
			if h.cfg.Filter != nil {
				if ferr := h.cfg.Filter.Forget(r.Context(), event.ID); ferr != nil {
					slog.Warn("failed to release dedup key", "event_id", event.ID, "error", ferr)
				}
			}
			http.Error(w, "line item lookup failed", http.StatusInternalServerError)
			return
		case errors.Is(err, receipt.ErrMissingEmail):
			slog.Warn("no customer email found, skipping receipt", "event_id", event.ID)
		default:
			slog.Error("event processing failed",
				"event_id", event.ID,
				"type", event.Type,
				"error", err,
			)
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// process runs the extraction → render → send pipeline for a routed event.
func (h *Handler) process(ctx context.Context, event *stripe.Event) error {
	if event.Data == nil || event.Data.Object == nil {
		return errors.New("event has no data object")
	}
	obj := event.Data.Object

	var (
		rec *models.PaymentRecord
		err error
	)
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		rec, err = h.paymentIntentRecord(ctx, obj)
	case stripe.EventTypeCheckoutSessionCompleted:
		rec, err = h.checkoutSessionRecord(ctx, obj)
	default:
		return fmt.Errorf("unroutable event type %s", event.Type)
	}
	if err != nil {
		return err
	}
	rec.EventID = event.ID

	msg, err := h.buildMessage(rec)
	if err != nil {
		return fmt.Errorf("render receipt: %w", err)
	}

	if err := h.cfg.Sender.Send(ctx, msg); err != nil {
		h.record(ctx, rec, deliverylog.StatusFailed, err)
		return fmt.Errorf("send receipt to %s: %w", rec.Email, err)
	}

	slog.Info("receipt sent",
		"event_id", rec.EventID,
		"recipient", rec.Email,
		"amount", receipt.FormatAmount(rec.AmountMinor, rec.Currency),
	)
	h.record(ctx, rec, deliverylog.StatusSent, nil)
	return nil
}

// paymentIntentRecord extracts a record from a payment_intent.succeeded
// object. The latest_charge is fetched only when no strategy that outranks
// it finds an email; a failed lookup falls through to the remaining
// strategies.
func (h *Handler) paymentIntentRecord(ctx context.Context, obj map[string]any) (*models.PaymentRecord, error) {
	var charge map[string]any
	if receipt.PayloadEmail(obj) == "" && h.cfg.Charges != nil {
		if id := receipt.StringAt(obj, "latest_charge"); id != "" {
			c, err := h.cfg.Charges.FetchCharge(ctx, id)
			if err != nil {
				slog.Warn("charge lookup failed", "charge_id", id, "error", err)
			} else {
				charge = c
			}
		}
	}
	return receipt.FromPaymentIntent(obj, charge)
}

// checkoutSessionRecord extracts a record from a checkout.session.completed
// object, enumerating line items for the product description.
func (h *Handler) checkoutSessionRecord(ctx context.Context, obj map[string]any) (*models.PaymentRecord, error) {
	var items []map[string]any
	if h.cfg.Charges != nil {
		if id := receipt.StringAt(obj, "id"); id != "" {
			li, err := h.cfg.Charges.ListLineItems(ctx, id)
			if err != nil {
				return nil, &LineItemsError{SessionID: id, Err: err}
			}
			items = li
		}
	}
	return receipt.FromCheckoutSession(obj, items)
}

func (h *Handler) buildMessage(rec *models.PaymentRecord) (models.MailMessage, error) {
	vals := render.FromRecord(rec)
	html, err := render.HTML(h.cfg.TemplatePath, vals)
	if err != nil {
		return models.MailMessage{}, err
	}
	return models.MailMessage{
		From:     h.cfg.MailFrom,
		FromName: h.cfg.MailFromName,
		To:       rec.Email,
		CC:       h.cfg.MailCC,
		Subject:  h.cfg.Subject,
		TextBody: render.Text(vals),
		HTMLBody: html,
	}, nil
}

// record writes the delivery outcome to the audit log, best-effort.
func (h *Handler) record(ctx context.Context, rec *models.PaymentRecord, status string, sendErr error) {
	if h.cfg.Deliveries == nil {
		return
	}
	errText := ""
	if sendErr != nil {
		errText = sendErr.Error()
	}
	r := deliverylog.Record{
		EventID:     rec.EventID,
		PaymentID:   rec.PaymentID,
		Recipient:   rec.Email,
		AmountMinor: rec.AmountMinor,
		Currency:    rec.Currency,
		Status:      status,
		Error:       errText,
	}
	if err := h.cfg.Deliveries.Save(ctx, r); err != nil {
		slog.Warn("delivery log write failed", "event_id", rec.EventID, "error", err)
	}
}
