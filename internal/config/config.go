package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Worker    WorkerConfig    `mapstructure:"worker"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"   validate:"required"`
	Providers ProvidersConfig `mapstructure:"providers" validate:"required"`
}

// WorkerConfig contains the job-runner settings.
type WorkerConfig struct {
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`

	// TextConcurrency bounds concurrent provider calls for text jobs
	// (description and material generation).
	TextConcurrency int `mapstructure:"text_concurrency" validate:"gte=1,lte=32"`

	// ImageConcurrency bounds concurrent provider calls for image jobs.
	ImageConcurrency int `mapstructure:"image_concurrency" validate:"gte=1,lte=32"`

	// CallTimeoutSeconds is the per-provider-call timeout. Image
	// generation sits at the upper end of the recommended 60-300s range.
	CallTimeoutSeconds int `mapstructure:"call_timeout_seconds" validate:"gte=1,lte=600"`

	// RetryBaseDelaySeconds is the base delay for exponential backoff
	// between transient-failure retries.
	RetryBaseDelaySeconds int `mapstructure:"retry_base_delay_seconds" validate:"gte=1,lte=60"`

	// MaxAttempts is the per-item retry budget for transient failures.
	MaxAttempts int `mapstructure:"max_attempts" validate:"gte=1,lte=5"`
}

// StorageConfig locates the local directories for generated images and
// per-item artifacts.
type StorageConfig struct {
	ImagesDir    string `mapstructure:"images_dir"    validate:"required"`
	ArtifactsDir string `mapstructure:"artifacts_dir" validate:"required"`
}

// DatabaseConfig contains all database-related configuration settings.
// An empty URL selects the in-memory job store.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// ProvidersConfig is the immutable provider-selection snapshot the
// registry resolves from. It is read once per job submission; the core
// never re-reads live settings mid-batch.
type ProvidersConfig struct {
	Text  string `mapstructure:"text"  validate:"omitempty,oneof=gemini vertex openai"`
	Image string `mapstructure:"image" validate:"omitempty,oneof=gemini vertex openai"`

	Gemini GeminiConfig `mapstructure:"gemini"`
	Vertex VertexConfig `mapstructure:"vertex"`
	OpenAI OpenAIConfig `mapstructure:"openai"`
}

// GeminiConfig contains settings for the Gemini API backend.
type GeminiConfig struct {
	APIKey     string `mapstructure:"api_key"`
	TextModel  string `mapstructure:"text_model"`
	ImageModel string `mapstructure:"image_model"`
}

// VertexConfig contains settings for the Vertex AI backend.
type VertexConfig struct {
	Project    string `mapstructure:"project"`
	Location   string `mapstructure:"location"`
	TextModel  string `mapstructure:"text_model"`
	ImageModel string `mapstructure:"image_model"`
}

// OpenAIConfig contains settings for any OpenAI-compatible backend.
type OpenAIConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url" validate:"omitempty,url"`
	TextModel  string `mapstructure:"text_model"`
	ImageModel string `mapstructure:"image_model"`
}
