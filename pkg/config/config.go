// Package config loads service configuration from defaults, a config file,
// and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the reranking service.
type Config struct {
	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Model configuration
	Model ModelConfig `mapstructure:"model"`

	// Remote scoring backend configuration
	Remote RemoteConfig `mapstructure:"remote"`

	// Debug enables verbose diagnostics
	Debug bool `mapstructure:"debug"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text, json
}

// ModelConfig holds scoring-model configuration.
type ModelConfig struct {
	// Provider selects the scoring backend: onnx, jina, llm, mock.
	Provider string `mapstructure:"provider"`

	// Name identifies the model (HuggingFace repo or API model name).
	Name string `mapstructure:"name"`

	// CacheDir is the local directory for downloaded weights.
	CacheDir string `mapstructure:"cache_dir"`

	// DeviceIndex pins the accelerator index; negative means unset.
	DeviceIndex int `mapstructure:"device_index"`

	// UseFP16 requests reduced-precision weights.
	UseFP16 bool `mapstructure:"use_fp16"`

	// MaxLength caps combined query+document token length.
	MaxLength int `mapstructure:"max_length"`

	// BatchSize limits pairs per inference call.
	BatchSize int `mapstructure:"batch_size"`

	// LibraryPath optionally points at the onnxruntime shared library.
	LibraryPath string `mapstructure:"library_path"`
}

// RemoteConfig holds configuration for API-backed scoring providers.
type RemoteConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load loads configuration from defaults and environment variables.
func Load() (*Config, error) {
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)

	return config, nil
}

// setDefaults sets default configuration values.
func setDefaults() {
	// Server defaults (parity with the original service defaults)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.mode", "release")

	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	// Model defaults
	viper.SetDefault("model.provider", "onnx")
	viper.SetDefault("model.name", "BAAI/bge-reranker-v2-gemma")
	viper.SetDefault("model.cache_dir", "./model_cache")
	viper.SetDefault("model.device_index", -1)
	viper.SetDefault("model.use_fp16", true)
	viper.SetDefault("model.max_length", 512)
	viper.SetDefault("model.batch_size", 16)

	// Remote backend defaults
	viper.SetDefault("remote.timeout", 30*time.Second)

	viper.SetDefault("debug", false)
}

// overrideWithEnv overrides config with environment variables.
func overrideWithEnv(config *Config) {
	if host := os.Getenv("RERANK_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("RERANK_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if provider := os.Getenv("RERANK_PROVIDER"); provider != "" {
		config.Model.Provider = provider
	}
	if model := os.Getenv("RERANK_MODEL"); model != "" {
		config.Model.Name = model
	}
	if cacheDir := os.Getenv("RERANK_CACHE_DIR"); cacheDir != "" {
		config.Model.CacheDir = cacheDir
	}
	if dev := os.Getenv("RERANK_DEVICE"); dev != "" {
		if idx, err := strconv.Atoi(dev); err == nil {
			config.Model.DeviceIndex = idx
		}
	}
	if baseURL := os.Getenv("RERANK_BASE_URL"); baseURL != "" {
		config.Remote.BaseURL = baseURL
	}
	if apiKey := os.Getenv("RERANK_API_KEY"); apiKey != "" {
		config.Remote.APIKey = apiKey
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" && config.Remote.APIKey == "" {
		config.Remote.APIKey = apiKey
	}
	if debug := os.Getenv("RERANK_DEBUG"); debug != "" {
		if b, err := strconv.ParseBool(debug); err == nil {
			config.Debug = b
		}
	}
}
