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

// Package config loads configuration from environment variables and an
// optional config.yaml. Secrets come from the environment only and are
// never defaulted.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the receipt mailer.
type Config struct {
	// Mail
	MailFrom     string
	MailFromName string
	MailCC       string
	MailSubject  string
	MailPassword string
	SMTPHost     string
	SMTPPort     int
	SMTPTimeout  time.Duration

	// Stripe
	StripeAPIKey        string
	StripeWebhookSecret string
	StripeLookupTimeout time.Duration

	// Template
	TemplatePath string

	// Optional storage. Empty URL disables the corresponding component.
	RedisURL    string
	DatabaseURL string

	// Server
	Port     int
	LogLevel string
}

// rawConfig mirrors the YAML structure for unmarshalling. Only non-secret
// settings may live in the file.
type rawConfig struct {
	Mail struct {
		From     string `yaml:"from"`
		FromName string `yaml:"from_name"`
		CC       string `yaml:"cc"`
		Subject  string `yaml:"subject"`
	} `yaml:"mail"`
	SMTP struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"smtp"`
	Template struct {
		Path string `yaml:"path"`
	} `yaml:"template"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
}

// Load reads configuration from a .env file (if present), an optional
// config.yaml (with ${VAR} expansion), and environment variables.
// Environment variables win over the file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	raw, err := loadYAML()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		MailFrom:            firstNonEmpty(os.Getenv("MAIL_FROM"), raw.Mail.From),
		MailFromName:        firstNonEmpty(os.Getenv("MAIL_FROM_NAME"), raw.Mail.FromName),
		MailCC:              firstNonEmpty(os.Getenv("MAIL_CC"), raw.Mail.CC),
		MailSubject:         firstNonEmpty(os.Getenv("MAIL_SUBJECT"), raw.Mail.Subject, "Thanks for your purchase!"),
		MailPassword:        os.Getenv("MAIL_PASSWORD"),
		SMTPHost:            firstNonEmpty(os.Getenv("SMTP_HOST"), raw.SMTP.Host),
		SMTPPort:            firstPositive(envInt("SMTP_PORT"), raw.SMTP.Port),
		SMTPTimeout:         envOrDefaultDuration("SMTP_TIMEOUT", 30*time.Second),
		StripeAPIKey:        os.Getenv("STRIPE_API_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripeLookupTimeout: envOrDefaultDuration("STRIPE_LOOKUP_TIMEOUT", 10*time.Second),
		TemplatePath:        firstNonEmpty(os.Getenv("TEMPLATE_PATH"), raw.Template.Path, "templates/receipt.html"),
		RedisURL:            firstNonEmpty(os.Getenv("REDIS_URL"), raw.Redis.URL),
		DatabaseURL:         firstNonEmpty(os.Getenv("DATABASE_URL"), raw.Database.URL),
		Port:                firstPositive(envInt("PORT"), raw.Server.Port, 8080),
		LogLevel:            envOrDefault("LOG_LEVEL", "info"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks that every required secret is present. Missing values are
// reported together so a misconfigured deployment fails with one message.
func (c *Config) validate() error {
	var missing []string
	if c.MailFrom == "" {
		missing = append(missing, "MAIL_FROM")
	}
	if c.MailPassword == "" {
		missing = append(missing, "MAIL_PASSWORD")
	}
	if c.SMTPHost == "" {
		missing = append(missing, "SMTP_HOST")
	}
	if c.SMTPPort <= 0 {
		missing = append(missing, "SMTP_PORT")
	}
	if c.StripeAPIKey == "" {
		missing = append(missing, "STRIPE_API_KEY")
	}
	if c.StripeWebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// loadYAML reads the optional YAML file. When CONFIG_PATH is set the file
// must exist; otherwise config.yaml in the working directory is used if
// present.
func loadYAML() (*rawConfig, error) {
	var raw rawConfig

	path := os.Getenv("CONFIG_PATH")
	required := path != ""
	if path == "" {
		path = "config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if required {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		return &raw, nil
	}

	// Expand ${VAR} references in the YAML
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}
	return &raw, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
