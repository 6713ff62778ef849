package pipe

import (
	"time"

	"github.com/kbukum/iterpipe/aggregator"
	"github.com/kbukum/iterpipe/validation"
)

// DefaultMaxChildThreads is the parallel capacity used when none is configured.
const DefaultMaxChildThreads = 20

// ElementWrapping replaces the default <result item="i"> tag pair.
type ElementWrapping struct {
	Prefix string `mapstructure:"prefix"`
	Suffix string `mapstructure:"suffix"`
}

// Config holds the settings of an IteratingPipe.
type Config struct {
	// BlockSize is the number of elements dispatched per block.
	BlockSize int `mapstructure:"block_size" validate:"gte=1"`
	// MaxItems stops iteration after that many elements. 0 means unbounded.
	MaxItems int `mapstructure:"max_items" validate:"gte=0"`
	// Parallel dispatches elements on the bounded executor.
	Parallel bool `mapstructure:"parallel"`
	// MaxChildThreads bounds parallel dispatch.
	MaxChildThreads int `mapstructure:"max_child_threads"`
	// Timeout bounds the parallel dispatch phase of a run. 0 means none.
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`

	ElementWrapping ElementWrapping `mapstructure:"element_wrapping"`
	// Escaping XML-escapes every rendered result.
	Escaping bool `mapstructure:"escaping"`
	// CountOnly renders only the number of results instead of the list.
	CountOnly bool `mapstructure:"count_only"`
	// Concatenate joins results without the <results> structure.
	Concatenate bool `mapstructure:"concatenate"`
	// AddInputToResult renders each element before its result.
	AddInputToResult bool `mapstructure:"add_input_to_result"`
	// RemoveXMLDeclarationInResults strips <?xml ...?> from results.
	RemoveXMLDeclarationInResults bool `mapstructure:"remove_xml_declaration_in_results"`

	// ItemNoSessionKey names the scope key holding the current item number.
	ItemNoSessionKey string `mapstructure:"item_no_session_key"`
	// TimeoutOnResult fails the run with TIMEOUT when a result equals it.
	TimeoutOnResult string `mapstructure:"timeout_on_result"`
	// ExceptionOnResult fails the run with DISPATCH_ERROR when a result equals it.
	ExceptionOnResult string `mapstructure:"exception_on_result"`
	// RemoveDuplicates skips elements whose text was already dispatched.
	RemoveDuplicates bool `mapstructure:"remove_duplicates"`
}

// DefaultConfig returns a sequential, unbatched configuration that renders
// every result. The zero Config behaves the same once defaults are applied.
func DefaultConfig() Config {
	return Config{BlockSize: 1}
}

// ApplyDefaults fills unset sizes.
func (c *Config) ApplyDefaults() {
	if c.BlockSize == 0 {
		c.BlockSize = 1
	}
	if c.MaxChildThreads == 0 {
		if c.Parallel {
			c.MaxChildThreads = DefaultMaxChildThreads
		} else {
			c.MaxChildThreads = 1
		}
	}
}

// Validate checks the configuration. Failures are CONFIGURATION_ERRORs.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	return validation.New().
		Min("max_child_threads", c.MaxChildThreads, 1).
		Custom(!c.Concatenate || !c.CountOnly, "concatenate", "conflicts with count_only").
		Err()
}

func (c *Config) aggregatorOptions() aggregator.Options {
	opts := aggregator.Options{
		Prefix:               c.ElementWrapping.Prefix,
		Suffix:               c.ElementWrapping.Suffix,
		Escape:               c.Escaping,
		AddInput:             c.AddInputToResult,
		RemoveXMLDeclaration: c.RemoveXMLDeclarationInResults,
	}
	switch {
	case c.CountOnly:
		opts.Mode = aggregator.ModeCountOnly
	case c.Concatenate:
		opts.Mode = aggregator.ModeConcatenate
	}
	return opts
}
