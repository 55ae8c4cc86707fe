// Package storage stores uploaded profile images and resolves their public URLs.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	aws3 "github.com/aws/aws-sdk-go/service/s3"
	"github.com/casdoor/oss"
	"github.com/casdoor/oss/s3"
)

// DefaultBucket is the bucket profile images are written to.
const DefaultBucket = "profile-images"

// Config holds object storage configuration.
type Config struct {
	Provider  string // "filesystem", "aws-s3" or "minio"
	ID        string
	Secret    string
	Region    string
	Bucket    string
	Endpoint  string
	Folder    string // filesystem root
	PublicURL string // base URL stored objects are served from
}

// ConfigFromEnv creates a Config from FOLIO_STORAGE_* environment variables.
func ConfigFromEnv() Config {
	return Config{
		Provider:  envOrDefault("FOLIO_STORAGE_PROVIDER", "filesystem"),
		ID:        os.Getenv("FOLIO_STORAGE_ID"),
		Secret:    os.Getenv("FOLIO_STORAGE_SECRET"),
		Region:    os.Getenv("FOLIO_STORAGE_REGION"),
		Bucket:    envOrDefault("FOLIO_STORAGE_BUCKET", DefaultBucket),
		Endpoint:  os.Getenv("FOLIO_STORAGE_ENDPOINT"),
		Folder:    os.Getenv("FOLIO_STORAGE_FOLDER"),
		PublicURL: envOrDefault("FOLIO_STORAGE_PUBLIC_URL", "/uploads"),
	}
}

// DefaultFolder returns the default filesystem root: ~/.folio/uploads
func DefaultFolder() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".folio", "uploads"), nil
}

// NewStorage creates the storage backend named by c.Provider.
func NewStorage(c *Config) (oss.StorageInterface, error) {
	switch c.Provider {
	case "", "filesystem":
		folder := c.Folder
		if folder == "" {
			var err error
			if folder, err = DefaultFolder(); err != nil {
				return nil, err
			}
		}
		return NewFileSystem(folder)
	case "aws-s3":
		return NewS3(c)
	case "minio":
		return NewMinio(c)
	default:
		return nil, fmt.Errorf("unsupported storage provider %q", c.Provider)
	}
}

// NewS3 creates an AWS S3 backend with public-read objects.
func NewS3(c *Config) (oss.StorageInterface, error) {
	if c.Bucket == "" {
		return nil, fmt.Errorf("bucket is required for S3")
	}
	return s3.New(&s3.Config{
		AccessID:   c.ID,
		AccessKey:  c.Secret,
		Region:     c.Region,
		Bucket:     c.Bucket,
		Endpoint:   c.Endpoint,
		S3Endpoint: c.Endpoint,
		ACL:        aws3.BucketCannedACLPublicRead,
	}), nil
}

// NewMinio creates an S3-compatible backend using path-style addressing.
func NewMinio(c *Config) (oss.StorageInterface, error) {
	if c.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required for Minio")
	}
	if c.ID == "" || c.Secret == "" {
		return nil, fmt.Errorf("access ID and secret are required for Minio")
	}
	if c.Bucket == "" {
		return nil, fmt.Errorf("bucket is required for Minio")
	}

	region := c.Region
	if region == "" {
		region = "us-east-1"
	}

	return s3.New(&s3.Config{
		AccessID:         c.ID,
		AccessKey:        c.Secret,
		Region:           region,
		Bucket:           c.Bucket,
		Endpoint:         c.Endpoint,
		S3Endpoint:       c.Endpoint,
		ACL:              aws3.BucketCannedACLPublicRead,
		S3ForcePathStyle: true,
	}), nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
