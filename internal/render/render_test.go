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

package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cuchifrol/receipt-mailer/internal/models"
)

func testValues() Values {
	return Values{
		CustomerName:    "Jane Doe",
		PaymentAmount:   "25.50 EUR",
		ShippingAddress: "1 Main St\nSpringfield\nUS",
		ProductName:     "Annual Plan",
	}
}

// TestSubstitute verifies token replacement and line-break handling.
func TestSubstitute(t *testing.T) {
	tmpl := "Hi {{CUSTOMER_NAME}}, you paid {{PAYMENT_AMOUNT}} for {{PRODUCT_NAME}}. Ship to: {{SHIPPING_ADDRESS}}"

	got := Substitute(tmpl, testValues(), "<br>")
	want := "Hi Jane Doe, you paid 25.50 EUR for Annual Plan. Ship to: 1 Main St<br>Springfield<br>US"
	if got != want {
		t.Errorf("Substitute() = %q, want %q", got, want)
	}
}

// TestSubstituteUnknownTokens verifies that unrecognised tokens pass through
// untouched instead of failing the render.
func TestSubstituteUnknownTokens(t *testing.T) {
	tmpl := "{{CUSTOMER_NAME}} {{ORDER_NUMBER}} {{CUSTOMER}}"
	got := Substitute(tmpl, testValues(), "\n")
	want := "Jane Doe {{ORDER_NUMBER}} {{CUSTOMER}}"
	if got != want {
		t.Errorf("Substitute() = %q, want %q", got, want)
	}
}

// TestSubstituteValueContainsToken verifies single-pass semantics: a value
// that itself contains a token string is not re-expanded.
func TestSubstituteValueContainsToken(t *testing.T) {
	v := testValues()
	v.CustomerName = "{{PRODUCT_NAME}}"
	got := Substitute("{{CUSTOMER_NAME}}", v, "\n")
	if got != "{{PRODUCT_NAME}}" {
		t.Errorf("Substitute() = %q, want the literal token string", got)
	}
}

// TestSubstituteRepeatedTokens verifies every occurrence is replaced.
func TestSubstituteRepeatedTokens(t *testing.T) {
	got := Substitute("{{PRODUCT_NAME}} and {{PRODUCT_NAME}}", testValues(), "\n")
	if got != "Annual Plan and Annual Plan" {
		t.Errorf("Substitute() = %q", got)
	}
}

// TestHTML verifies template loading and <br> line breaks.
func TestHTML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "receipt.html")
	tmpl := "<p>{{CUSTOMER_NAME}}</p><p>{{SHIPPING_ADDRESS}}</p>"
	if err := os.WriteFile(path, []byte(tmpl), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := HTML(path, testValues())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "<p>Jane Doe</p><p>1 Main St<br>Springfield<br>US</p>"
	if got != want {
		t.Errorf("HTML() = %q, want %q", got, want)
	}
}

// TestHTMLMissingFile verifies the error path for an absent template.
func TestHTMLMissingFile(t *testing.T) {
	_, err := HTML(filepath.Join(t.TempDir(), "nope.html"), testValues())
	if err == nil {
		t.Fatal("expected error for missing template file")
	}
}

// TestText verifies the built-in plain-text body.
func TestText(t *testing.T) {
	got := Text(testValues())
	for _, want := range []string{"Jane Doe", "25.50 EUR", "Annual Plan", "1 Main St\nSpringfield\nUS"} {
		if !strings.Contains(got, want) {
			t.Errorf("Text() missing %q in %q", want, got)
		}
	}
	if strings.Contains(got, "{{") {
		t.Errorf("Text() left unreplaced tokens: %q", got)
	}
}

// TestFromRecord verifies derivation of display values from a record.
func TestFromRecord(t *testing.T) {
	rec := &models.PaymentRecord{
		Name:        "Jane Doe",
		AmountMinor: 2550,
		Currency:    "EUR",
		Product:     "Annual Plan",
	}
	v := FromRecord(rec)
	if v.PaymentAmount != "25.50 EUR" {
		t.Errorf("PaymentAmount = %q, want %q", v.PaymentAmount, "25.50 EUR")
	}
	if v.ShippingAddress != "No shipping address specified" {
		t.Errorf("ShippingAddress = %q, want the no-shipping notice", v.ShippingAddress)
	}
	if v.CustomerName != "Jane Doe" || v.ProductName != "Annual Plan" {
		t.Errorf("Values = %+v", v)
	}
}
