package s3sender

import (
	"github.com/kbukum/iterpipe/validation"
)

// DefaultRegion is the default AWS region.
const DefaultRegion = "us-east-1"

// Config holds the S3 block sender configuration.
type Config struct {
	// Bucket receives one object per block.
	Bucket string `mapstructure:"bucket" validate:"required"`
	// Prefix is prepended to every object key.
	Prefix string `mapstructure:"prefix"`
	// Extension is appended to every object key.
	Extension string `mapstructure:"extension"`
	// Separator is written after every element.
	Separator string `mapstructure:"separator"`
	// ContentType of the uploaded objects.
	ContentType string `mapstructure:"content_type"`

	Region         string `mapstructure:"region" validate:"required"`
	Endpoint       string `mapstructure:"endpoint"`
	AccessKey      string `mapstructure:"access_key"`
	SecretKey      string `mapstructure:"secret_key"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	if c.Separator == "" {
		c.Separator = "\n"
	}
	if c.Extension == "" {
		c.Extension = ".txt"
	}
	if c.ContentType == "" {
		c.ContentType = "text/plain; charset=utf-8"
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	return validation.Validate(c)
}
