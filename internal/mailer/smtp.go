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
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cuchifrol/receipt-mailer/internal/models"
)

// implicitTLSPort is the SMTPS port. Connections to it are TLS from the
// first byte; every other port gets STARTTLS before authentication.
const implicitTLSPort = 465

// SMTPSender sends messages through a single authenticated SMTP relay.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	timeout  time.Duration
}

// NewSMTPSender creates a sender for the given relay. username is also the
// envelope sender identity; timeout bounds the dial and the whole session.
func NewSMTPSender(host string, port int, username, password string, timeout time.Duration) *SMTPSender {
	return &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		timeout:  timeout,
	}
}

// Send transmits the message over an encrypted, authenticated session.
// The message is built before dialing so a malformed address never opens
// a connection.
func (s *SMTPSender) Send(ctx context.Context, msg models.MailMessage) error {
	raw, err := BuildMessage(msg)
	if err != nil {
		return err
	}
	recipients, err := recipientList(msg)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	dialer := net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if s.timeout > 0 {
		// Bound the whole SMTP exchange, not just the dial.
		_ = conn.SetDeadline(time.Now().Add(s.timeout))
	}

	if s.port == implicitTLSPort {
		conn = tls.Client(conn, &tls.Config{ServerName: s.host})
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if s.port != implicitTLSPort {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			return errors.New("smtp relay does not support STARTTLS")
		}
		if err := client.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	auth := smtp.PlainAuth("", s.username, s.password, s.host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}

	if err := client.Mail(msg.From); err != nil {
		return fmt.Errorf("mail from %s: %w", msg.From, err)
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt to %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write([]byte(raw)); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}

	return client.Quit()
}

// BuildMessage assembles the RFC 5322 wire form of the message: headers plus
// a multipart/alternative body carrying the plain-text fallback and the HTML
// part. Addresses are validated here.
func BuildMessage(msg models.MailMessage) (string, error) {
	from, err := mail.ParseAddress(msg.From)
	if err != nil {
		return "", fmt.Errorf("invalid sender address %q: %w", msg.From, err)
	}
	if _, err := mail.ParseAddress(msg.To); err != nil {
		return "", fmt.Errorf("invalid recipient address %q: %w", msg.To, err)
	}
	if msg.CC != "" {
		if _, err := mail.ParseAddress(msg.CC); err != nil {
			return "", fmt.Errorf("invalid cc address %q: %w", msg.CC, err)
		}
	}

	fromHeader := msg.From
	if msg.FromName != "" {
		fromHeader = (&mail.Address{Name: msg.FromName, Address: msg.From}).String()
	}

	boundary := randomBoundary("receipt")

	var b strings.Builder
	writeHeader := func(key, value string) {
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	}

	writeHeader("From", fromHeader)
	writeHeader("To", msg.To)
	if msg.CC != "" {
		writeHeader("Cc", msg.CC)
	}
	writeHeader("Subject", msg.Subject)
	writeHeader("Date", time.Now().Format(time.RFC1123Z))
	writeHeader("Message-ID", messageID(from.Address))
	writeHeader("MIME-Version", "1.0")
	writeHeader("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", boundary))
	b.WriteString("\r\n")

	writePart := func(contentType, body string) {
		b.WriteString("--" + boundary + "\r\n")
		b.WriteString("Content-Type: " + contentType + "; charset=UTF-8\r\n")
		b.WriteString("\r\n")
		b.WriteString(body)
		b.WriteString("\r\n")
	}
	writePart("text/plain", msg.TextBody)
	writePart("text/html", msg.HTMLBody)
	b.WriteString("--" + boundary + "--\r\n")

	return b.String(), nil
}

// recipientList gathers envelope recipients (To plus optional CC).
func recipientList(msg models.MailMessage) ([]string, error) {
	if strings.TrimSpace(msg.To) == "" {
		return nil, errors.New("message has no recipient")
	}
	rcpts := []string{msg.To}
	if msg.CC != "" {
		rcpts = append(rcpts, msg.CC)
	}
	return rcpts, nil
}

func messageID(fromAddr string) string {
	domain := "localhost"
	if i := strings.LastIndex(fromAddr, "@"); i >= 0 && i < len(fromAddr)-1 {
		domain = fromAddr[i+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.New().String(), domain)
}

func randomBoundary(prefix string) string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%s", prefix, hex.EncodeToString(buf))
}
