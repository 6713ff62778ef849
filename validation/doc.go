// Package validation checks configuration before any work starts.
//
// Struct tag validation (go-playground/validator) covers single-field
// bounds; the programmatic Validator covers rules spanning several fields.
// Both report a CONFIGURATION_ERROR naming every offending field by its
// configuration key.
//
// # Struct Tag Validation
//
//	type Config struct {
//	    BlockSize int `mapstructure:"block_size" validate:"gte=1"`
//	}
//	err := validation.Validate(cfg)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.Custom(!cfg.Concatenate || !cfg.CountOnly, "concatenate", "conflicts with count_only")
//	err := v.Err()
package validation
