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

// Package receipt resolves a PaymentRecord from the raw JSON tree of a
// Stripe payment-intent or checkout-session object. Stripe scatters customer
// detail across several optional locations depending on how the payment was
// created, so each field is resolved through an ordered list of fallback
// paths; the first non-empty match wins.
package receipt

import (
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cuchifrol/receipt-mailer/internal/models"
)

// ErrMissingEmail reports that no customer email could be found anywhere in
// the payment object or its associated charge. A receipt cannot be sent.
var ErrMissingEmail = errors.New("no customer email in payment object or charge")

// DefaultProduct is the product description used when the payment carries none.
const DefaultProduct = "Your Purchase"

// DefaultCurrency is assumed when the payment object names no currency.
const DefaultCurrency = "USD"

var titleCaser = cases.Title(language.Und)

// emailStrategy resolves a candidate customer email from the payment object
// and the optional secondary charge lookup. Strategies are pure; the order of
// the list below is the resolution priority.
type emailStrategy func(obj, charge map[string]any) string

// chargeLookupRank is the position of the fetched-charge strategy below;
// strategies before it resolve from the payload alone.
const chargeLookupRank = 2

var emailStrategies = []emailStrategy{
	// Explicit receipt address on the object itself.
	func(obj, _ map[string]any) string {
		return StringAt(obj, "receipt_email")
	},
	// Billing details of the first embedded charge.
	func(obj, _ map[string]any) string {
		if c := firstCharge(obj); c != nil {
			return StringAt(c, "billing_details", "email")
		}
		return ""
	},
	// Billing details of the separately fetched latest_charge.
	func(_, charge map[string]any) string {
		if charge != nil {
			return StringAt(charge, "billing_details", "email")
		}
		return ""
	},
	// Checkout sessions carry customer detail in customer_details.
	func(obj, _ map[string]any) string {
		return StringAt(obj, "customer_details", "email")
	},
}

// ResolveEmail returns the customer email for a payment object, trying each
// extraction strategy in priority order. charge is the secondary lookup
// result and may be nil. Returns "" when no strategy matches.
func ResolveEmail(obj, charge map[string]any) string {
	for _, strategy := range emailStrategies {
		if email := strings.TrimSpace(strategy(obj, charge)); email != "" {
			return email
		}
	}
	return ""
}

// PayloadEmail resolves an email using only the strategies that outrank the
// fetched-charge lookup. A caller deciding whether to fetch the charge must
// not consult the lower-ranked strategies, or they would win over the charge.
func PayloadEmail(obj map[string]any) string {
	for _, strategy := range emailStrategies[:chargeLookupRank] {
		if email := strings.TrimSpace(strategy(obj, nil)); email != "" {
			return email
		}
	}
	return ""
}

// FromPaymentIntent builds a PaymentRecord from a payment_intent.succeeded
// object. charge is the fetched latest_charge and may be nil when the payload
// carried enough detail on its own or the lookup failed.
func FromPaymentIntent(obj, charge map[string]any) (*models.PaymentRecord, error) {
	return build(obj, charge, nil)
}

// FromCheckoutSession builds a PaymentRecord from a checkout.session.completed
// object. lineItems is the enumerated product list and may be empty.
func FromCheckoutSession(obj map[string]any, lineItems []map[string]any) (*models.PaymentRecord, error) {
	return build(obj, nil, lineItems)
}

func build(obj, charge map[string]any, lineItems []map[string]any) (*models.PaymentRecord, error) {
	email := ResolveEmail(obj, charge)
	if email == "" {
		return nil, ErrMissingEmail
	}

	return &models.PaymentRecord{
		PaymentID:   StringAt(obj, "id"),
		Email:       email,
		Name:        resolveName(obj, charge),
		AmountMinor: resolveAmount(obj),
		Currency:    resolveCurrency(obj),
		Shipping:    resolveShipping(obj),
		Product:     resolveProduct(obj, charge, lineItems),
	}, nil
}

// resolveAmount reads the integer minor-unit amount. Payment intents carry
// "amount", checkout sessions "amount_total".
func resolveAmount(obj map[string]any) int64 {
	for _, key := range []string{"amount", "amount_total"} {
		if n, ok := numberAt(obj, key); ok {
			return n
		}
	}
	return 0
}

func resolveCurrency(obj map[string]any) string {
	cur := strings.TrimSpace(StringAt(obj, "currency"))
	if cur == "" {
		return DefaultCurrency
	}
	return strings.ToUpper(cur)
}

// resolveName finds a billing or customer name and title-cases it.
// Absent names resolve to the empty string.
func resolveName(obj, charge map[string]any) string {
	candidates := []string{
		StringAt(obj, "customer_details", "name"),
		nameFromCharge(firstCharge(obj)),
		nameFromCharge(charge),
		StringAt(obj, "shipping", "name"),
		StringAt(obj, "shipping_details", "name"),
	}
	for _, name := range candidates {
		if name = strings.TrimSpace(name); name != "" {
			return titleCaser.String(name)
		}
	}
	return ""
}

func nameFromCharge(charge map[string]any) string {
	if charge == nil {
		return ""
	}
	return StringAt(charge, "billing_details", "name")
}

// resolveShipping reads the nested shipping address if one is present.
// Payment intents nest it under "shipping", checkout sessions under
// "shipping_details".
func resolveShipping(obj map[string]any) *models.Address {
	var addr map[string]any
	for _, key := range []string{"shipping", "shipping_details"} {
		if shipping, ok := obj[key].(map[string]any); ok {
			if a, ok := shipping["address"].(map[string]any); ok {
				addr = a
				break
			}
		}
	}
	if addr == nil {
		return nil
	}

	a := &models.Address{
		Line1:      StringAt(addr, "line1"),
		Line2:      StringAt(addr, "line2"),
		PostalCode: StringAt(addr, "postal_code"),
		City:       StringAt(addr, "city"),
		State:      StringAt(addr, "state"),
		Country:    StringAt(addr, "country"),
	}
	if *a == (models.Address{}) {
		return nil
	}
	return a
}

// resolveProduct prefers a charge-level description, then the payment-level
// one, then the first checkout line item.
func resolveProduct(obj, charge map[string]any, lineItems []map[string]any) string {
	candidates := []string{
		nameFromChargeDescription(firstCharge(obj)),
		nameFromChargeDescription(charge),
		StringAt(obj, "description"),
	}
	if len(lineItems) > 0 {
		candidates = append(candidates, StringAt(lineItems[0], "description"))
	}
	for _, desc := range candidates {
		if desc = strings.TrimSpace(desc); desc != "" {
			return desc
		}
	}
	return DefaultProduct
}

func nameFromChargeDescription(charge map[string]any) string {
	if charge == nil {
		return ""
	}
	return StringAt(charge, "description")
}

// firstCharge returns the first entry of the object's embedded charges list,
// or nil when the list is absent or empty.
func firstCharge(obj map[string]any) map[string]any {
	charges, ok := obj["charges"].(map[string]any)
	if !ok {
		return nil
	}
	data, ok := charges["data"].([]any)
	if !ok || len(data) == 0 {
		return nil
	}
	first, _ := data[0].(map[string]any)
	return first
}

// StringAt walks nested objects along path and returns the final string
// value, or "" when any step is missing or has an unexpected shape.
func StringAt(obj map[string]any, path ...string) string {
	cur := any(obj)
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		if cur, ok = m[key]; !ok {
			return ""
		}
	}
	s, _ := cur.(string)
	return s
}

// numberAt reads an integer field. JSON decoding yields float64; test
// fixtures and fetched trees may carry native ints.
func numberAt(obj map[string]any, key string) (int64, bool) {
	switch v := obj[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}
