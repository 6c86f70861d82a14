package attachment

import "time"

// Default limits. These mirror the product rules for case attachments and
// apply whenever the corresponding Config field is left zero.
const (
	DefaultMaxPerCase   = 10
	DefaultMaxFileBytes = 25 << 20 // 25 MiB
	DefaultSignedURLTTL = time.Hour
	DefaultKeyNamespace = "cases"
)

// Config holds the attachment limits and storage key namespace.
// All fields are explicit so tests can vary limits freely.
type Config struct {
	// KeyNamespace is the first segment of every storage key (default: cases).
	KeyNamespace string

	// MaxPerCase is the attachment quota per case (default: 10).
	// The quota is best effort: the count read and the eventual insert are
	// not atomic, so concurrent uploads against the same case can jointly
	// exceed it. See Service.Validate.
	MaxPerCase int

	// MaxFileBytes is the per-file size limit in bytes (default: 25 MiB).
	MaxFileBytes int64

	// AllowedExtensions is the lowercase, dot-free extension allow-list
	// (default: DefaultAllowedExtensions).
	AllowedExtensions []string

	// AllowedMIME maps an extension to the declared MIME types accepted for
	// it (default: DefaultAllowedMIME). Extensions without an entry accept
	// any declared type.
	AllowedMIME map[string][]string

	// SignedURLTTL is the lifetime of minted download URLs (default: 1 hour).
	SignedURLTTL time.Duration
}

// applyDefaults fills in default values for empty config fields.
func (c *Config) applyDefaults() {
	if c.KeyNamespace == "" {
		c.KeyNamespace = DefaultKeyNamespace
	}
	if c.MaxPerCase == 0 {
		c.MaxPerCase = DefaultMaxPerCase
	}
	if c.MaxFileBytes == 0 {
		c.MaxFileBytes = DefaultMaxFileBytes
	}
	if c.AllowedExtensions == nil {
		c.AllowedExtensions = DefaultAllowedExtensions()
	}
	if c.AllowedMIME == nil {
		c.AllowedMIME = DefaultAllowedMIME()
	}
	if c.SignedURLTTL == 0 {
		c.SignedURLTTL = DefaultSignedURLTTL
	}
}

// validate checks that the configured limits are usable.
func (c *Config) validate() error {
	if c.MaxPerCase < 0 || c.MaxFileBytes < 0 || c.SignedURLTTL < 0 {
		return ErrInvalidConfig
	}
	if len(c.AllowedExtensions) == 0 {
		return ErrInvalidConfig
	}
	return nil
}
