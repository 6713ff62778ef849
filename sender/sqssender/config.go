package sqssender

import "github.com/kbukum/iterpipe/validation"

// DefaultRegion is the default AWS region.
const DefaultRegion = "us-east-1"

// Config holds the SQS sender configuration.
type Config struct {
	QueueURL string `mapstructure:"queue_url" validate:"required"`
	Region   string `mapstructure:"region" validate:"required"`
	Endpoint string `mapstructure:"endpoint"`
	// DelaySeconds postpones delivery of every message.
	DelaySeconds int32 `mapstructure:"delay_seconds" validate:"gte=0,lte=900"`
	// MessageGroupID is required by FIFO queues.
	MessageGroupID string `mapstructure:"message_group_id"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Region == "" {
		c.Region = DefaultRegion
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	return validation.Validate(c)
}
