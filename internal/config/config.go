// Package config loads and validates the application configuration from a
// YAML file, environment variables, and built-in defaults via viper.
//
// The matching thresholds and the retry budget are empirically tuned
// values inherited from field use. They are exposed as configuration with
// defaults rather than re-derived; callers throughout the pipeline assume
// the default acceptance gate when interpreting scores.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Engine   EngineConfig   `mapstructure:"engine" yaml:"engine"`
	Models   ModelsConfig   `mapstructure:"models" yaml:"models"`
	Vision   VisionConfig   `mapstructure:"vision" yaml:"vision"`
	Matching MatchingConfig `mapstructure:"matching" yaml:"matching"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
}

// LoggerConfig configures the global zap logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// EngineConfig tunes the per-command pipeline.
type EngineConfig struct {
	// Retries is the per-command retry budget, keyed by processed text so
	// paraphrases of the same normalized command share one budget.
	Retries int `mapstructure:"retries" yaml:"retries"`
	// RetryBackoff is the pause before a failed command is re-attempted.
	RetryBackoff time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
	// QueuePollInterval is the idle sleep between queue polls.
	QueuePollInterval time.Duration `mapstructure:"queue_poll_interval" yaml:"queue_poll_interval"`
	// UseGPT enables the rewrite model pass at startup. Toggleable at
	// runtime via the toggle-gpt command.
	UseGPT bool `mapstructure:"use_gpt" yaml:"use_gpt"`
}

// ModelsConfig configures the model host boundary. All three calls are
// synchronous blocking RPCs with bounded timeouts; a timeout surfaces as
// a retryable handler failure, not a transport-level retry.
type ModelsConfig struct {
	BaseURL        string        `mapstructure:"base_url" yaml:"base_url"`
	EmbedTimeout   time.Duration `mapstructure:"embed_timeout" yaml:"embed_timeout"`
	RewriteTimeout time.Duration `mapstructure:"rewrite_timeout" yaml:"rewrite_timeout"`
	OCRTimeout     time.Duration `mapstructure:"ocr_timeout" yaml:"ocr_timeout"`
}

// VisionConfig tunes screenshot caching and spatial search.
type VisionConfig struct {
	// ScreenDiffThreshold: below this perceptual-diff fraction the
	// previous OCR result is reused verbatim.
	ScreenDiffThreshold float64 `mapstructure:"screen_diff_threshold" yaml:"screen_diff_threshold"`
	// SpatialDistance is how far, in pixels, something is still
	// considered "next to" an anchor.
	SpatialDistance int `mapstructure:"spatial_distance" yaml:"spatial_distance"`
	// ImageDir holds the reference crops used by image click / wait-for.
	ImageDir string `mapstructure:"image_dir" yaml:"image_dir"`
}

// MatchingConfig carries the similarity thresholds used across the
// resolvers. The defaults are tuned values; see the package doc.
type MatchingConfig struct {
	// AcceptThreshold is the general acceptance gate for hybrid scores.
	AcceptThreshold float64 `mapstructure:"accept_threshold" yaml:"accept_threshold"`
	// ColorSimilarityThreshold gates fuzzy color-name matches on numeric
	// targets.
	ColorSimilarityThreshold float64 `mapstructure:"color_similarity_threshold" yaml:"color_similarity_threshold"`
	// ConditionThreshold is the stricter gate for conditional checks; a
	// false positive here silently skips a whole branch.
	ConditionThreshold float64 `mapstructure:"condition_threshold" yaml:"condition_threshold"`
	// NameThreshold gates saved-sequence name lookups; accidental macro
	// execution is costlier than a missed match.
	NameThreshold float64 `mapstructure:"name_threshold" yaml:"name_threshold"`
	// MaxNGram bounds the action resolver's span search.
	MaxNGram int `mapstructure:"max_ngram" yaml:"max_ngram"`
	// ActionExactBoost and TargetExactBoost scale the multi-word
	// exact-match bonus per extra word.
	ActionExactBoost float64 `mapstructure:"action_exact_boost" yaml:"action_exact_boost"`
	TargetExactBoost float64 `mapstructure:"target_exact_boost" yaml:"target_exact_boost"`
}

// StoreConfig configures sequence persistence.
type StoreConfig struct {
	SequencesPath string `mapstructure:"sequences_path" yaml:"sequences_path"`
}

// setDefaults registers the built-in defaults on a viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "handsfree")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)

	v.SetDefault("engine.retries", 3)
	v.SetDefault("engine.retry_backoff", time.Second)
	v.SetDefault("engine.queue_poll_interval", 100*time.Millisecond)
	v.SetDefault("engine.use_gpt", false)

	v.SetDefault("models.base_url", "http://127.0.0.1:5555")
	v.SetDefault("models.embed_timeout", 120*time.Second)
	v.SetDefault("models.rewrite_timeout", 300*time.Second)
	v.SetDefault("models.ocr_timeout", 120*time.Second)

	v.SetDefault("vision.screen_diff_threshold", 0.001)
	v.SetDefault("vision.spatial_distance", 450)
	v.SetDefault("vision.image_dir", "./clickable_images")

	v.SetDefault("matching.accept_threshold", 0.6)
	v.SetDefault("matching.color_similarity_threshold", 0.65)
	v.SetDefault("matching.condition_threshold", 0.7)
	v.SetDefault("matching.name_threshold", 0.9)
	v.SetDefault("matching.max_ngram", 8)
	v.SetDefault("matching.action_exact_boost", 0.1)
	v.SetDefault("matching.target_exact_boost", 0.2)

	v.SetDefault("store.sequences_path", "sequences.json")
}

// Load reads the configuration from the given file (or the default search
// path when empty), applies HANDSFREE_* environment overrides, and
// validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("HANDSFREE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No config file; defaults and env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration, as used when no file or
// environment overrides are present.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Unmarshalling pure defaults cannot fail.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Engine.Retries < 1 {
		return fmt.Errorf("engine.retries must be >= 1, got %d", c.Engine.Retries)
	}
	if c.Models.BaseURL == "" {
		return fmt.Errorf("models.base_url must be set")
	}
	if c.Matching.AcceptThreshold <= 0 || c.Matching.AcceptThreshold >= 1 {
		return fmt.Errorf("matching.accept_threshold must be in (0,1), got %v", c.Matching.AcceptThreshold)
	}
	if c.Matching.MaxNGram < 1 {
		return fmt.Errorf("matching.max_ngram must be >= 1, got %d", c.Matching.MaxNGram)
	}
	if c.Vision.SpatialDistance <= 0 {
		return fmt.Errorf("vision.spatial_distance must be positive, got %d", c.Vision.SpatialDistance)
	}
	return nil
}
