package config

import (
	"fmt"
	"os"
)

// ArchiveConfig holds the object storage settings used to keep a copy of
// every generated workbook. An empty endpoint disables archiving.
type ArchiveConfig struct {
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"accessKey"`
	SecretKey string `json:"secretKey"`
	Bucket    string `json:"bucket"`
	UseSSL    bool   `json:"useSSL"`
}

// GetArchiveConfig reads the archive settings from the environment.
func GetArchiveConfig() *ArchiveConfig {
	bucket := os.Getenv("SHEETPLOT_MINIO_BUCKET")
	if bucket == "" {
		bucket = "sheetplot-reports"
	}
	return &ArchiveConfig{
		Endpoint:  os.Getenv("SHEETPLOT_MINIO_ENDPOINT"),
		AccessKey: os.Getenv("SHEETPLOT_MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("SHEETPLOT_MINIO_SECRET_KEY"),
		Bucket:    bucket,
		UseSSL:    os.Getenv("SHEETPLOT_MINIO_USE_SSL") == "true",
	}
}

// Enabled reports whether an archive endpoint is configured.
func (c *ArchiveConfig) Enabled() bool {
	return c.Endpoint != ""
}

// ValidateConfig checks that an enabled archive has credentials and a bucket.
func (c *ArchiveConfig) ValidateConfig() error {
	if !c.Enabled() {
		return nil
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		return fmt.Errorf("minio credentials cannot be empty")
	}
	if c.Bucket == "" {
		return fmt.Errorf("minio bucket cannot be empty")
	}
	return nil
}
