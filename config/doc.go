// Package config loads iterpipe configuration with Viper.
//
// LoadConfig looks for config.yml under ./cmd/<service>/, ./config/ and
// the working directory, loads a matching .env file with godotenv and
// binds environment variables onto nested keys, so PIPE_BLOCK_SIZE sets
// pipe.block_size. Defaults registered with WithDefaults apply to keys
// that no source sets.
//
//	var cfg Config
//	err := config.LoadConfig("iterpipe", &cfg,
//	    config.WithDefaults(map[string]any{"pipe.block_size": 1}))
package config
