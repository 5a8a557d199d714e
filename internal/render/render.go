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

// Package render turns a PaymentRecord into email bodies. The HTML body comes
// from a template file with named placeholder tokens; substitution is literal
// substring replacement, and tokens the renderer does not recognise are left
// untouched so template typos never fail a send.
package render

import (
	"fmt"
	"os"
	"strings"

	"github.com/cuchifrol/receipt-mailer/internal/models"
	"github.com/cuchifrol/receipt-mailer/internal/receipt"
)

// Placeholder tokens recognised in receipt templates.
const (
	TokenCustomerName    = "{{CUSTOMER_NAME}}"
	TokenPaymentAmount   = "{{PAYMENT_AMOUNT}}"
	TokenShippingAddress = "{{SHIPPING_ADDRESS}}"
	TokenProductName     = "{{PRODUCT_NAME}}"
)

// Values holds the formatted strings substituted into a template.
type Values struct {
	CustomerName    string
	PaymentAmount   string
	ShippingAddress string // line-break separated
	ProductName     string
}

// FromRecord derives template values from a payment record.
func FromRecord(rec *models.PaymentRecord) Values {
	return Values{
		CustomerName:    rec.Name,
		PaymentAmount:   receipt.FormatAmount(rec.AmountMinor, rec.Currency),
		ShippingAddress: receipt.FormatShipping(rec.Shipping),
		ProductName:     rec.Product,
	}
}

// Substitute replaces each recognised token with its value. lineBreak is
// inserted between shipping-address lines ("<br>" for HTML bodies, "\n" for
// text). All replacements happen in a single pass, so the result does not
// depend on token order and re-applying is a no-op.
func Substitute(template string, v Values, lineBreak string) string {
	r := strings.NewReplacer(
		TokenCustomerName, v.CustomerName,
		TokenPaymentAmount, v.PaymentAmount,
		TokenShippingAddress, strings.ReplaceAll(v.ShippingAddress, "\n", lineBreak),
		TokenProductName, v.ProductName,
	)
	return r.Replace(template)
}

// HTML loads the template file at path and renders the HTML body.
func HTML(path string, v Values) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read template %s: %w", path, err)
	}
	return Substitute(string(data), v, "<br>"), nil
}

// textTemplate is the built-in plain-text fallback for mail clients that do
// not display HTML.
const textTemplate = `Hello {{CUSTOMER_NAME}},

We have received your payment of {{PAYMENT_AMOUNT}} for {{PRODUCT_NAME}}.

Shipping address:
{{SHIPPING_ADDRESS}}

Thank you for your purchase!
`

// Text renders the plain-text fallback body.
func Text(v Values) string {
	return Substitute(textTemplate, v, "\n")
}
