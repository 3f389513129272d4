package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config file: deckgen.yaml in the working directory.
	v.SetConfigName("deckgen")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine; environment variables carry the load.
	}

	// Environment variables with DECKGEN_ prefix override file values,
	// e.g. DECKGEN_PROVIDERS_GEMINI_API_KEY.
	v.SetEnvPrefix("DECKGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration against its declared constraints.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// setDefaults registers default values for all settings that have one.
func setDefaults(v *viper.Viper) {
	v.SetDefault("worker.log_level", "info")
	v.SetDefault("worker.text_concurrency", 5)
	v.SetDefault("worker.image_concurrency", 8)
	v.SetDefault("worker.call_timeout_seconds", 180)
	v.SetDefault("worker.retry_base_delay_seconds", 2)
	v.SetDefault("worker.max_attempts", 3)

	v.SetDefault("storage.images_dir", "data/images")
	v.SetDefault("storage.artifacts_dir", "data/artifacts")

	v.SetDefault("providers.text", "gemini")
	v.SetDefault("providers.image", "gemini")
	v.SetDefault("providers.gemini.text_model", "gemini-2.5-flash")
	v.SetDefault("providers.gemini.image_model", "gemini-2.0-flash-preview-image-generation")
	v.SetDefault("providers.vertex.location", "us-central1")
	v.SetDefault("providers.vertex.text_model", "gemini-2.5-flash")
	v.SetDefault("providers.vertex.image_model", "gemini-2.0-flash-preview-image-generation")
	v.SetDefault("providers.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("providers.openai.text_model", "gpt-4o-mini")
	v.SetDefault("providers.openai.image_model", "gpt-image-1")
}
