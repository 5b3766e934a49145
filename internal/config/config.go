// Package config builds the process configuration once at startup:
// defaults, then environment, then command-line flags. Components receive
// the resulting struct and never read ambient environment state themselves.
package config

import (
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
)

// Config holds runtime settings for the chatvault server.
type Config struct {
	// Addr is the HTTP listen address for the redemption endpoint.
	Addr string
	// AdminAddr is the owner-command listener; keep it loopback-bound.
	AdminAddr string
	// BaseURL is the externally visible prefix for constructing links.
	BaseURL string
	// DataDir roots all persisted state (logs, keys, registry, bundles).
	DataDir string

	// MasterKey encrypts message logs; LinkSigningKey signs download
	// tokens. Distinct secrets: key separation.
	MasterKey      []byte
	LinkSigningKey []byte

	MaxDownloads       int
	DeleteOnExhaustion bool
	OTPAttemptLimit    int
	OTPLength          int

	SMTPHost     string
	SMTPPort     int
	SMTPEmail    string
	SMTPPassword string

	masterKeyB64 string
	linkKeyB64   string
}

func defaults() *Config {
	return &Config{
		Addr:               ":8080",
		AdminAddr:          "127.0.0.1:8081",
		BaseURL:            "http://localhost:8080",
		DataDir:            "user_data",
		MaxDownloads:       1,
		DeleteOnExhaustion: true,
		OTPAttemptLimit:    5,
		OTPLength:          10,
		SMTPHost:           "smtp.gmail.com",
		SMTPPort:           465,
	}
}

// Load builds the configuration from defaults, environment variables, and
// the given command-line arguments (usually os.Args[1:]). Both secrets are
// required and must be valid base64; a missing secret is an error, never a
// silent zero key.
func Load(args []string) (*Config, error) {
	c := defaults()
	c.applyEnv()
	if err := c.applyFlags(args); err != nil {
		return nil, err
	}
	if err := c.decodeKeys(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() {
	setStr := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setStr(&c.Addr, "ADDR")
	setStr(&c.AdminAddr, "ADMIN_ADDR")
	setStr(&c.BaseURL, "BASE_URL")
	setStr(&c.DataDir, "DATA_DIR")
	setStr(&c.masterKeyB64, "MASTER_KEY")
	setStr(&c.linkKeyB64, "SECRET_LINK_KEY")
	setInt(&c.MaxDownloads, "MAX_DOWNLOADS")
	setInt(&c.OTPAttemptLimit, "OTP_ATTEMPT_LIMIT")
	setInt(&c.OTPLength, "OTP_LENGTH")
	setStr(&c.SMTPHost, "SMTP_HOST")
	setInt(&c.SMTPPort, "SMTP_PORT")
	setStr(&c.SMTPEmail, "SMTP_EMAIL")
	setStr(&c.SMTPPassword, "SMTP_PASSWORD")
	if v, ok := os.LookupEnv("DELETE_AFTER_DOWNLOAD"); ok {
		c.DeleteOnExhaustion = v == "true" || v == "1"
	}
}

func (c *Config) applyFlags(args []string) error {
	fs := flag.NewFlagSet("chatvault-server", flag.ContinueOnError)
	fs.StringVar(&c.Addr, "addr", c.Addr, "listen address")
	fs.StringVar(&c.AdminAddr, "admin-addr", c.AdminAddr, "owner-command listen address (loopback)")
	fs.StringVar(&c.BaseURL, "base-url", c.BaseURL, "external base URL for links")
	fs.StringVar(&c.DataDir, "data-dir", c.DataDir, "data directory")
	fs.StringVar(&c.masterKeyB64, "master-key", c.masterKeyB64, "base64 master encryption secret (required)")
	fs.StringVar(&c.linkKeyB64, "link-key", c.linkKeyB64, "base64 link-signing secret (required)")
	fs.IntVar(&c.MaxDownloads, "max-downloads", c.MaxDownloads, "downloads permitted per link")
	fs.BoolVar(&c.DeleteOnExhaustion, "delete-on-exhaustion", c.DeleteOnExhaustion, "delete artifact when quota is spent")
	fs.IntVar(&c.OTPAttemptLimit, "otp-attempts", c.OTPAttemptLimit, "OTP attempts before a link locks")
	fs.IntVar(&c.OTPLength, "otp-length", c.OTPLength, "generated passcode length")
	fs.StringVar(&c.SMTPHost, "smtp-host", c.SMTPHost, "SMTP host")
	fs.IntVar(&c.SMTPPort, "smtp-port", c.SMTPPort, "SMTP port (implicit TLS)")
	fs.StringVar(&c.SMTPEmail, "smtp-email", c.SMTPEmail, "SMTP sender account")
	fs.StringVar(&c.SMTPPassword, "smtp-password", c.SMTPPassword, "SMTP password")
	return fs.Parse(args)
}

func (c *Config) decodeKeys() error {
	if c.masterKeyB64 == "" || c.linkKeyB64 == "" {
		return errors.New("MASTER_KEY and SECRET_LINK_KEY must be set")
	}
	var err error
	if c.MasterKey, err = base64.StdEncoding.DecodeString(c.masterKeyB64); err != nil {
		return fmt.Errorf("decode master key: %w", err)
	}
	if c.LinkSigningKey, err = base64.StdEncoding.DecodeString(c.linkKeyB64); err != nil {
		return fmt.Errorf("decode link-signing key: %w", err)
	}
	return nil
}
