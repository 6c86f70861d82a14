// Package storage implements the blob store for case attachments on
// S3-compatible object storage.
//
// It exposes exactly the operations the attachment orchestrators need: a
// content-typed Put, an idempotent batch Remove, and presigned download URLs
// with a Content-Disposition filename. Timeouts are left to the SDK client
// and the caller's context; the package adds none of its own.
package storage

// Config holds S3-compatible storage configuration.
type Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string `yaml:"bucket"`

	// AccessKey is the access key ID (required).
	AccessKey string `yaml:"access_key"`

	// SecretKey is the secret access key (required).
	SecretKey string `yaml:"secret_key"`

	// Endpoint is a custom S3 endpoint URL (optional, for MinIO or other
	// S3-compatible services).
	Endpoint string `yaml:"endpoint"`

	// Region is the AWS region (default: us-east-1).
	Region string `yaml:"region"`

	// PathStyle enables path-style URLs (required for MinIO).
	PathStyle bool `yaml:"path_style"`
}

// DefaultRegion applies when Config.Region is empty.
const DefaultRegion = "us-east-1"

// applyDefaults fills in default values for empty config fields.
func (c *Config) applyDefaults() {
	if c.Region == "" {
		c.Region = DefaultRegion
	}
}

// validate checks that required configuration fields are set.
func (c *Config) validate() error {
	if c.Bucket == "" || c.AccessKey == "" || c.SecretKey == "" {
		return ErrInvalidConfig
	}
	return nil
}
