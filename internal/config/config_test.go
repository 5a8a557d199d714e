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

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// setRequired sets the minimal environment a Load call needs to pass
// validation, and clears the optional knobs so ambient values cannot leak in.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("MAIL_FROM", "shop@example.com")
	t.Setenv("MAIL_PASSWORD", "secret")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_PORT", "587")
	t.Setenv("STRIPE_API_KEY", "sk_test_abc")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_abc")
	for _, key := range []string{
		"MAIL_FROM_NAME", "MAIL_CC", "MAIL_SUBJECT", "TEMPLATE_PATH",
		"REDIS_URL", "DATABASE_URL", "PORT", "LOG_LEVEL", "CONFIG_PATH",
		"SMTP_TIMEOUT", "STRIPE_LOOKUP_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
}

// TestLoad verifies required values and defaults.
func TestLoad(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.MailFrom != "shop@example.com" {
		t.Errorf("MailFrom = %q", cfg.MailFrom)
	}
	if cfg.SMTPPort != 587 {
		t.Errorf("SMTPPort = %d", cfg.SMTPPort)
	}
	if cfg.MailSubject != "Thanks for your purchase!" {
		t.Errorf("MailSubject = %q, want default", cfg.MailSubject)
	}
	if cfg.TemplatePath != "templates/receipt.html" {
		t.Errorf("TemplatePath = %q, want default", cfg.TemplatePath)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want default 8080", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want default", cfg.LogLevel)
	}
	if cfg.SMTPTimeout != 30*time.Second {
		t.Errorf("SMTPTimeout = %v, want 30s default", cfg.SMTPTimeout)
	}
	if cfg.StripeLookupTimeout != 10*time.Second {
		t.Errorf("StripeLookupTimeout = %v, want 10s default", cfg.StripeLookupTimeout)
	}
}

// TestLoadMissingRequired verifies every absent secret is named in a single
// error.
func TestLoadMissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("MAIL_PASSWORD", "")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error, got none")
	}
	for _, want := range []string{"MAIL_PASSWORD", "STRIPE_WEBHOOK_SECRET"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not name %s", err, want)
		}
	}
	if strings.Contains(err.Error(), "MAIL_FROM,") || strings.HasSuffix(err.Error(), "MAIL_FROM") {
		t.Errorf("error %q names a variable that is set", err)
	}
}

// TestLoadDurationOverrides verifies timeout parsing from the environment.
func TestLoadDurationOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SMTP_TIMEOUT", "5s")
	t.Setenv("STRIPE_LOOKUP_TIMEOUT", "2s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SMTPTimeout != 5*time.Second {
		t.Errorf("SMTPTimeout = %v, want 5s", cfg.SMTPTimeout)
	}
	if cfg.StripeLookupTimeout != 2*time.Second {
		t.Errorf("StripeLookupTimeout = %v, want 2s", cfg.StripeLookupTimeout)
	}
}

// TestLoadYAMLFile verifies config.yaml values apply, ${VAR} references
// expand, and environment variables still win.
func TestLoadYAMLFile(t *testing.T) {
	setRequired(t)
	t.Setenv("SMTP_HOST", "env.example.com")
	t.Setenv("MAIL_CC_ADDR", "cc@example.com")

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
mail:
  from_name: "Example Shop"
  cc: "${MAIL_CC_ADDR}"
smtp:
  host: yaml.example.com
server:
  port: 9090
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MailFromName != "Example Shop" {
		t.Errorf("MailFromName = %q", cfg.MailFromName)
	}
	if cfg.MailCC != "cc@example.com" {
		t.Errorf("MailCC = %q, want expanded ${MAIL_CC_ADDR}", cfg.MailCC)
	}
	if cfg.SMTPHost != "env.example.com" {
		t.Errorf("SMTPHost = %q, environment must win over the file", cfg.SMTPHost)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090 from the file", cfg.Port)
	}
}

// TestLoadMissingConfigPath verifies an explicit CONFIG_PATH must exist.
func TestLoadMissingConfigPath(t *testing.T) {
	setRequired(t)
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing CONFIG_PATH file")
	}
}

// TestLoadMalformedYAML verifies a parse failure surfaces.
func TestLoadMalformedYAML(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("mail: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)

	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}
