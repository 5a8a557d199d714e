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

// Package models defines the data structures shared across the receipt mailer.
package models

// Address is a structured shipping address taken from the payment object.
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	PostalCode string `json:"postal_code"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	Country    string `json:"country"`
}

// PaymentRecord is the resolved view over a payment-intent or checkout-session
// object, built by the field extractor. Immutable once constructed.
type PaymentRecord struct {
	EventID     string   `json:"event_id"`
	PaymentID   string   `json:"payment_id"`
	Email       string   `json:"email"`
	Name        string   `json:"name,omitempty"`
	AmountMinor int64    `json:"amount_minor"`
	Currency    string   `json:"currency"`
	Shipping    *Address `json:"shipping,omitempty"`
	Product     string   `json:"product"`
}

// MailMessage is a fully rendered confirmation email, ready for dispatch.
// Sent exactly once; never retried.
type MailMessage struct {
	From     string
	FromName string
	To       string
	CC       string
	Subject  string
	TextBody string
	HTMLBody string
}
