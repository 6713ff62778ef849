package main

import (
	"fmt"

	"github.com/kbukum/iterpipe/config"
	"github.com/kbukum/iterpipe/errors"
	"github.com/kbukum/iterpipe/iterator"
	"github.com/kbukum/iterpipe/message"
	"github.com/kbukum/iterpipe/observability"
	"github.com/kbukum/iterpipe/pipe"
	"github.com/kbukum/iterpipe/resilience"
	"github.com/kbukum/iterpipe/sender/s3sender"
	"github.com/kbukum/iterpipe/sender/sqssender"
	"github.com/kbukum/iterpipe/validation"
)

// Sender types.
const (
	SenderS3  = "s3"
	SenderSQS = "sqs"
)

// Config is the configuration of the iterpipe binary.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Input     InputConfig          `yaml:"input" mapstructure:"input"`
	Pipe      pipe.Config          `yaml:"pipe" mapstructure:"pipe"`
	Sender    SenderConfig         `yaml:"sender" mapstructure:"sender"`
	Telemetry observability.Config `yaml:"telemetry" mapstructure:"telemetry"`
}

// InputConfig controls how the input is split into line elements.
type InputConfig struct {
	Charset     string `yaml:"charset" mapstructure:"charset"`
	TrimSpace   bool   `yaml:"trim_space" mapstructure:"trim_space"`
	SkipEmpty   bool   `yaml:"skip_empty" mapstructure:"skip_empty"`
	MaxLineSize int    `yaml:"max_line_size" mapstructure:"max_line_size" validate:"gte=0"`
	// StopOnResult ends the run after the first result equal to it.
	StopOnResult string `yaml:"stop_on_result" mapstructure:"stop_on_result"`
}

// SenderConfig selects and configures the sender.
type SenderConfig struct {
	Type string `yaml:"type" mapstructure:"type" validate:"required,oneof=s3 sqs"`
	// Only the section of the selected type is validated.
	S3  s3sender.Config  `yaml:"s3" mapstructure:"s3" validate:"-"`
	SQS sqssender.Config `yaml:"sqs" mapstructure:"sqs" validate:"-"`

	// RateLimit bounds sends per second across all dispatch units.
	RateLimit resilience.RateLimiterConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// defaults are registered with the loader so that keys absent from every
// source still decode to the documented values.
func defaults() map[string]any {
	return map[string]any{
		"name":            serviceName,
		"pipe.block_size": 1,
		"input.charset":   "UTF-8",
	}
}

// ApplyDefaults fills unset fields of every section.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Pipe.ApplyDefaults()
	c.Telemetry.ApplyDefaults()
	switch c.Sender.Type {
	case SenderS3:
		c.Sender.S3.ApplyDefaults()
	case SenderSQS:
		c.Sender.SQS.ApplyDefaults()
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Pipe.Validate(); err != nil {
		return err
	}
	if err := validation.Validate(&c.Input); err != nil {
		return err
	}
	if err := validation.Validate(&c.Telemetry); err != nil {
		return err
	}
	if err := validation.Validate(&c.Sender); err != nil {
		return err
	}
	var err error
	switch c.Sender.Type {
	case SenderS3:
		err = c.Sender.S3.Validate()
	case SenderSQS:
		err = c.Sender.SQS.Validate()
	}
	if err != nil {
		return errors.Configuration("sender."+c.Sender.Type, err.Error()).WithCause(err)
	}
	return nil
}

// splitter builds the line splitter of the input section.
func (c InputConfig) splitter() iterator.Splitter[*message.Message] {
	var opts []iterator.LinesOption
	if c.TrimSpace {
		opts = append(opts, iterator.TrimSpace())
	}
	if c.SkipEmpty {
		opts = append(opts, iterator.SkipEmpty())
	}
	if c.MaxLineSize > 0 {
		opts = append(opts, iterator.MaxLineSize(c.MaxLineSize))
	}
	if c.Charset != "" {
		opts = append(opts, iterator.WithElementOptions(message.WithCharset(c.Charset)))
	}
	return iterator.Lines(opts...)
}

// describe returns the sender destination for the startup summary.
func (c SenderConfig) describe() string {
	switch c.Type {
	case SenderS3:
		return fmt.Sprintf("s3://%s/%s", c.S3.Bucket, c.S3.Prefix)
	case SenderSQS:
		return "sqs " + c.SQS.QueueURL
	default:
		return c.Type
	}
}
