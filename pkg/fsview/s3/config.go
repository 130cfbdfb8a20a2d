// Package s3 implements fsview.View for AWS S3 and S3-compatible storage.
package s3

import (
	"fmt"
	"strings"
)

// DefaultMaxKeys is the listing page size used when none is configured.
const DefaultMaxKeys = 1000

// Config configures an S3 view.
//
// Authentication uses AWS SDK v2's default credential chain unless explicit
// credentials are provided. For S3-compatible stores (MinIO, Wasabi), set
// Endpoint and typically ForcePathStyle.
type Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string

	// Region is the AWS region. Defaults to the SDK's resolution when empty.
	Region string

	// Endpoint is a custom endpoint URL for S3-compatible stores.
	// Leave empty for AWS S3.
	Endpoint string

	// Profile is the AWS profile name to use from shared config.
	Profile string

	// AccessKeyID is an explicit access key. If set, SecretAccessKey must
	// also be set. Takes precedence over the default credential chain.
	AccessKeyID string

	// SecretAccessKey is an explicit secret key. Required if AccessKeyID is set.
	SecretAccessKey string

	// ForcePathStyle forces path-style URLs (bucket in path, not subdomain).
	// Required by most S3-compatible stores.
	ForcePathStyle bool

	// MaxKeys is the listing page size. Zero uses DefaultMaxKeys.
	MaxKeys int
}

// Validate checks the configuration for required fields.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Bucket) == "" {
		return fmt.Errorf("s3 view: bucket is required")
	}
	if c.AccessKeyID != "" && c.SecretAccessKey == "" {
		return fmt.Errorf("s3 view: secret access key is required when access key id is set")
	}
	return nil
}
