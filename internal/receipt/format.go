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

package receipt

import (
	"fmt"
	"strings"

	"github.com/cuchifrol/receipt-mailer/internal/models"
)

// NoShippingNotice is substituted when a payment has no shipping address.
const NoShippingNotice = "No shipping address specified"

// FormatAmount renders a minor-unit amount as a 2-decimal major-unit value
// followed by the uppercase currency code, e.g. 2550 + "eur" → "25.50 EUR".
func FormatAmount(amountMinor int64, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	return fmt.Sprintf("%.2f %s", float64(amountMinor)/100, currency)
}

// FormatShipping renders an address as a multi-line string:
// line1, optional line2, "postal city state", country. Returns
// NoShippingNotice for a nil address.
func FormatShipping(a *models.Address) string {
	if a == nil {
		return NoShippingNotice
	}

	var lines []string
	if a.Line1 != "" {
		lines = append(lines, a.Line1)
	}
	if a.Line2 != "" {
		lines = append(lines, a.Line2)
	}
	if locality := joinFields(a.PostalCode, a.City, a.State); locality != "" {
		lines = append(lines, locality)
	}
	if a.Country != "" {
		lines = append(lines, a.Country)
	}
	if len(lines) == 0 {
		return NoShippingNotice
	}
	return strings.Join(lines, "\n")
}

func joinFields(fields ...string) string {
	var parts []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, " ")
}
