// Package email is the concrete external adapter a sendTask delegates
// to (§4.3, §6 "email sender defaults"): it composes an RFC 5322 MIME
// message from a markdown body and delivers it over SMTP.
package email

import (
	"fmt"
	"os"
	"strconv"
)

// SMTPConfig holds the connection parameters for the outbound relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	StartTLS bool
	From     string
}

// ConfigFromEnv reads the SMTP sender defaults from environment
// variables (§6 "Configuration surface"), the way the teacher's own
// config loader reads IMAP settings for its email accounts.
func ConfigFromEnv() (SMTPConfig, error) {
	cfg := SMTPConfig{
		Host:     os.Getenv("EMAIL_SMTP_HOST"),
		Username: os.Getenv("EMAIL_SMTP_USERNAME"),
		Password: os.Getenv("EMAIL_SMTP_PASSWORD"),
		From:     os.Getenv("EMAIL_FROM"),
		StartTLS: os.Getenv("EMAIL_SMTP_STARTTLS") == "true",
		Port:     587,
	}
	if cfg.Host == "" {
		return SMTPConfig{}, fmt.Errorf("EMAIL_SMTP_HOST is required")
	}
	if cfg.From == "" {
		return SMTPConfig{}, fmt.Errorf("EMAIL_FROM is required")
	}
	if p := os.Getenv("EMAIL_SMTP_PORT"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return SMTPConfig{}, fmt.Errorf("EMAIL_SMTP_PORT %q: %w", p, err)
		}
		cfg.Port = port
	}
	return cfg, nil
}
