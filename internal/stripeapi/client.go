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

// Package stripeapi provides a minimal client for the Stripe REST endpoints
// used for secondary lookups: fetching a charge by id when the webhook
// payload only carries a reference, and enumerating checkout-session line
// items. Responses are decoded into plain JSON trees so the field extractor
// can walk them with the same fallback paths it applies to webhook payloads.
package stripeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cuchifrol/receipt-mailer/internal/retry"
)

// DefaultBaseURL is the public Stripe API endpoint.
const DefaultBaseURL = "https://api.stripe.com"

// lookupAttempts bounds each lookup to one retry. An unbounded hang or a
// long retry loop here would stall the webhook response to Stripe.
const lookupAttempts = 2

// Client performs authenticated lookups against the Stripe API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	timeout    time.Duration
}

// NewClient creates a Stripe lookup client. timeout bounds each individual
// request; pass DefaultBaseURL outside of tests.
func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{},
		baseURL:    baseURL,
		apiKey:     apiKey,
		timeout:    timeout,
	}
}

// FetchCharge retrieves the full charge object for a charge id.
// Returns nil without error when the charge does not exist.
func (c *Client) FetchCharge(ctx context.Context, chargeID string) (map[string]any, error) {
	return c.getJSON(ctx, "/v1/charges/"+chargeID)
}

// FetchPaymentIntent retrieves the full payment-intent object.
// Returns nil without error when the payment intent does not exist.
func (c *Client) FetchPaymentIntent(ctx context.Context, paymentIntentID string) (map[string]any, error) {
	return c.getJSON(ctx, "/v1/payment_intents/"+paymentIntentID)
}

// ListLineItems enumerates the line items of a checkout session.
func (c *Client) ListLineItems(ctx context.Context, sessionID string) ([]map[string]any, error) {
	obj, err := c.getJSON(ctx, "/v1/checkout/sessions/"+sessionID+"/line_items")
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, nil
	}

	raw, _ := obj["data"].([]any)
	items := make([]map[string]any, 0, len(raw))
	for _, entry := range raw {
		if m, ok := entry.(map[string]any); ok {
			items = append(items, m)
		}
	}
	return items, nil
}

// getJSON performs an authenticated GET and decodes the response body.
// Each attempt gets its own deadline; the call is retried once.
func (c *Client) getJSON(ctx context.Context, path string) (map[string]any, error) {
	var out map[string]any

	attempt := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("stripe request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			out = nil
			return nil
		}
		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("stripe API returned HTTP %d for %s", resp.StatusCode, path)
			if !transientStatus(resp.StatusCode) {
				// Bad key, bad request: a retry returns the same answer.
				return retry.Permanent(err)
			}
			return err
		}

		var decoded map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return fmt.Errorf("decode stripe response: %w", err)
		}
		out = decoded
		return nil
	}

	if err := retry.Do(ctx, lookupAttempts, 500*time.Millisecond, attempt); err != nil {
		return nil, err
	}
	return out, nil
}

// transientStatus reports whether a retry of the same request could succeed.
func transientStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}
