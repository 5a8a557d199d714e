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

package mailer

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"

	"github.com/cuchifrol/receipt-mailer/internal/models"
)

func testMessage() models.MailMessage {
	return models.MailMessage{
		From:     "shop@example.com",
		FromName: "Example Shop",
		To:       "buyer@example.com",
		CC:       "records@example.com",
		Subject:  "Thanks for your purchase!",
		TextBody: "plain body",
		HTMLBody: "<p>html body</p>",
	}
}

// TestBuildMessage parses the wire form back with net/mail and verifies the
// headers and both multipart/alternative parts.
func TestBuildMessage(t *testing.T) {
	raw, err := BuildMessage(testMessage())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parsed, err := mail.ReadMessage(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("wire form does not parse: %v", err)
	}

	if got := parsed.Header.Get("Subject"); got != "Thanks for your purchase!" {
		t.Errorf("Subject = %q", got)
	}
	if got := parsed.Header.Get("To"); got != "buyer@example.com" {
		t.Errorf("To = %q", got)
	}
	if got := parsed.Header.Get("Cc"); got != "records@example.com" {
		t.Errorf("Cc = %q", got)
	}
	from, err := mail.ParseAddress(parsed.Header.Get("From"))
	if err != nil {
		t.Fatalf("From header does not parse: %v", err)
	}
	if from.Name != "Example Shop" || from.Address != "shop@example.com" {
		t.Errorf("From = %+v", from)
	}
	if parsed.Header.Get("Message-ID") == "" {
		t.Error("missing Message-ID header")
	}

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	if err != nil {
		t.Fatalf("Content-Type does not parse: %v", err)
	}
	if mediaType != "multipart/alternative" {
		t.Fatalf("media type = %q, want multipart/alternative", mediaType)
	}

	mr := multipart.NewReader(parsed.Body, params["boundary"])
	var types []string
	var bodies []string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("reading part: %v", err)
		}
		body, err := io.ReadAll(part)
		if err != nil {
			t.Fatalf("reading part body: %v", err)
		}
		pt, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
		types = append(types, pt)
		bodies = append(bodies, strings.TrimSpace(string(body)))
	}

	if len(types) != 2 || types[0] != "text/plain" || types[1] != "text/html" {
		t.Fatalf("part types = %v, want [text/plain text/html]", types)
	}
	if bodies[0] != "plain body" {
		t.Errorf("text part = %q", bodies[0])
	}
	if bodies[1] != "<p>html body</p>" {
		t.Errorf("html part = %q", bodies[1])
	}
}

// TestBuildMessageNoOptionalFields verifies Cc is omitted and the bare From
// address is used when FromName is empty.
func TestBuildMessageNoOptionalFields(t *testing.T) {
	msg := testMessage()
	msg.FromName = ""
	msg.CC = ""

	raw, err := BuildMessage(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parsed, err := mail.ReadMessage(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("wire form does not parse: %v", err)
	}
	if got := parsed.Header.Get("Cc"); got != "" {
		t.Errorf("Cc = %q, want omitted", got)
	}
	if got := parsed.Header.Get("From"); got != "shop@example.com" {
		t.Errorf("From = %q, want bare address", got)
	}
}

// TestBuildMessageInvalidAddresses verifies address validation of every slot.
func TestBuildMessageInvalidAddresses(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.MailMessage)
	}{
		{"bad from", func(m *models.MailMessage) { m.From = "not an address" }},
		{"bad to", func(m *models.MailMessage) { m.To = "also not" }},
		{"bad cc", func(m *models.MailMessage) { m.CC = "nope@" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := testMessage()
			tt.mutate(&msg)
			if _, err := BuildMessage(msg); err == nil {
				t.Error("expected error, got none")
			}
		})
	}
}

// TestRecipientList verifies envelope recipient assembly.
func TestRecipientList(t *testing.T) {
	msg := testMessage()
	rcpts, err := recipientList(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rcpts) != 2 || rcpts[0] != "buyer@example.com" || rcpts[1] != "records@example.com" {
		t.Errorf("recipients = %v", rcpts)
	}

	msg.CC = ""
	rcpts, err = recipientList(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rcpts) != 1 {
		t.Errorf("recipients = %v, want To only", rcpts)
	}

	msg.To = " "
	if _, err := recipientList(msg); err == nil {
		t.Error("expected error for empty recipient")
	}
}

// TestMemorySender verifies the in-memory test double records sends.
func TestMemorySender(t *testing.T) {
	s := NewMemorySender()
	if err := s.Send(context.Background(), testMessage()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].To != "buyer@example.com" {
		t.Errorf("Messages() = %+v", msgs)
	}
}

// TestSendRejectsBadMessageWithoutDialing verifies the sender fails fast on
// a malformed message. The relay address is unroutable; reaching the dial
// would hang or error differently.
func TestSendRejectsBadMessageWithoutDialing(t *testing.T) {
	s := NewSMTPSender("smtp.invalid", 587, "user", "pass", 0)
	msg := testMessage()
	msg.To = "not an address"
	err := s.Send(context.Background(), msg)
	if err == nil {
		t.Fatal("expected error, got none")
	}
	if !strings.Contains(err.Error(), "invalid recipient address") {
		t.Errorf("error = %v, want address validation failure", err)
	}
}
