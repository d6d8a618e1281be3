// Package objectstore archives immutable recipe snapshots in MinIO so
// every lot keeps an audit artifact outside the database.
package objectstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/forno-labs/forno-go/internal/platform/env"
)

type Config struct {
	Endpoint        string
	AccessKey       string
	SecretKey       string
	Region          string
	UseSSL          bool
	BucketSnapshots string
}

func ConfigFromEnv() (Config, error) {
	useSSL, err := env.Bool("FORNO_MINIO_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Endpoint:        env.String("FORNO_MINIO_ENDPOINT", "localhost:9000"),
		AccessKey:       env.String("FORNO_MINIO_ACCESS_KEY", "forno"),
		SecretKey:       env.String("FORNO_MINIO_SECRET_KEY", "fornominio"),
		Region:          env.String("FORNO_MINIO_REGION", "us-east-1"),
		UseSSL:          useSSL,
		BucketSnapshots: env.String("FORNO_MINIO_BUCKET_SNAPSHOTS", "recipe-snapshots"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.Region) == "" {
		return errors.New("region is required")
	}
	if strings.TrimSpace(c.BucketSnapshots) == "" {
		return errors.New("snapshots bucket is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	return nil
}
