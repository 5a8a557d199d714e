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

// Package deliverylog provides a Postgres-backed audit log of receipt sends.
// Writes are best-effort: the webhook response never depends on them.
package deliverylog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Delivery statuses.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Record represents one receipt delivery outcome.
type Record struct {
	ID          uuid.UUID
	EventID     string
	PaymentID   string
	Recipient   string
	AmountMinor int64
	Currency    string
	Status      string
	Error       string
	CreatedAt   time.Time
}

// Store provides access to receipt delivery records in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a delivery log backed by the given Postgres pool.
// It ensures the table exists on creation.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure delivery log schema: %w", err)
	}
	slog.Info("delivery log initialised")
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS receipt_deliveries (
			id           UUID PRIMARY KEY,
			event_id     TEXT NOT NULL UNIQUE,
			payment_id   TEXT NOT NULL DEFAULT '',
			recipient    TEXT NOT NULL,
			amount_minor BIGINT NOT NULL DEFAULT 0,
			currency     TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL,
			error        TEXT NOT NULL DEFAULT '',
			created_at   TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_receipt_deliveries_payment ON receipt_deliveries(payment_id);
		CREATE INDEX IF NOT EXISTS idx_receipt_deliveries_status ON receipt_deliveries(status);
	`)
	return err
}

// Save upserts a delivery record keyed on the Stripe event id, so a redelivered
// event that succeeds on the second attempt overwrites the failed row.
func (s *Store) Save(ctx context.Context, r Record) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO receipt_deliveries
			(id, event_id, payment_id, recipient, amount_minor, currency, status, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id) DO UPDATE SET
			status = EXCLUDED.status,
			error  = EXCLUDED.error
	`, r.ID, r.EventID, r.PaymentID, r.Recipient, r.AmountMinor, r.Currency, r.Status, r.Error)
	return err
}

// GetByPayment retrieves the most recent delivery for a payment id.
// Returns nil when the payment has no recorded delivery.
func (s *Store) GetByPayment(ctx context.Context, paymentID string) (*Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, event_id, payment_id, recipient, amount_minor, currency, status, error, created_at
		FROM receipt_deliveries
		WHERE payment_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, paymentID)
	return scanRecord(row)
}

// Ping checks the Postgres connection.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	err := row.Scan(
		&r.ID, &r.EventID, &r.PaymentID, &r.Recipient,
		&r.AmountMinor, &r.Currency, &r.Status, &r.Error, &r.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}
