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

// Package mailer dispatches confirmation emails over an authenticated TLS
// SMTP relay.
package mailer

import (
	"context"
	"sync"

	"github.com/cuchifrol/receipt-mailer/internal/models"
)

// Sender delivers a mail message.
type Sender interface {
	Send(ctx context.Context, msg models.MailMessage) error
}

// MemorySender records messages in memory for inspection in tests and
// dry runs.
type MemorySender struct {
	mu   sync.Mutex
	msgs []models.MailMessage
}

// NewMemorySender constructs an empty memory sender.
func NewMemorySender() *MemorySender {
	return &MemorySender{}
}

// Send records the message.
func (m *MemorySender) Send(_ context.Context, msg models.MailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
	return nil
}

// Messages returns a copy of the messages seen so far.
func (m *MemorySender) Messages() []models.MailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.MailMessage, len(m.msgs))
	copy(out, m.msgs)
	return out
}
