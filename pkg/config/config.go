package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"scamdetect-server/pkg/errors"
)

// Config represents the complete application configuration
type Config struct {
	HTTP      HTTPConfig      `json:"http"`
	Logging   LoggingConfig   `json:"logging"`
	Store     StoreConfig     `json:"store"`
	Analysis  AnalysisConfig  `json:"analysis"`
	GoogleSTT GoogleSTTConfig `json:"google_stt"`
	Reasoning ReasoningConfig `json:"reasoning"`
	Messaging MessagingConfig `json:"messaging"`
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Port           int           `json:"port"`
	ReadTimeout    time.Duration `json:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout"`
	MetricsEnabled bool          `json:"metrics_enabled"`

	// MaxUploadBytes bounds the accepted audio chunk size
	MaxUploadBytes int64 `json:"max_upload_bytes"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Output string `json:"output"`
}

// StoreConfig holds the call context store configuration
type StoreConfig struct {
	// Directory where per-call JSON documents are written
	Directory string `json:"directory"`

	// ChunkSeconds is the nominal duration represented by each chunk
	ChunkSeconds int `json:"chunk_seconds"`
}

// AnalysisConfig holds the analysis pipeline configuration
type AnalysisConfig struct {
	// Provider selects the analysis backends: "mock" or "google"
	Provider string `json:"provider"`

	// StageTimeout bounds each analysis stage per chunk
	StageTimeout time.Duration `json:"stage_timeout"`
}

// GoogleSTTConfig holds Google Speech-to-Text configuration
type GoogleSTTConfig struct {
	APIKey          string `json:"-"`
	CredentialsFile string `json:"credentials_file"`
	Language        string `json:"language"`
	SampleRate      int    `json:"sample_rate"`
	Model           string `json:"model"`
}

// ReasoningConfig holds the reasoning engine configuration
type ReasoningConfig struct {
	BaseURL string        `json:"base_url"`
	Model   string        `json:"model"`
	Timeout time.Duration `json:"timeout"`
}

// MessagingConfig holds AMQP configuration. Publishing is disabled when the
// URL or queue name is empty.
type MessagingConfig struct {
	AMQPUrl       string `json:"-"`
	AMQPQueueName string `json:"amqp_queue_name"`
}

// Load loads the configuration from environment variables, optionally seeded
// from a .env file found in the working directory or its parent.
func Load(logger *logrus.Logger) (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		logger.WithError(err).Warn("Failed to get current working directory")
		wd = "unknown"
	}

	possibleEnvFiles := []string{
		".env",
		"../.env",
		filepath.Join(wd, ".env"),
	}

	var loadedFrom string
	for _, envFile := range possibleEnvFiles {
		if _, statErr := os.Stat(envFile); statErr == nil {
			if loadErr := godotenv.Load(envFile); loadErr == nil {
				loadedFrom, _ = filepath.Abs(envFile)
				break
			}
		}
	}

	if loadedFrom != "" {
		logger.WithFields(logrus.Fields{
			"working_dir": wd,
			"path":        loadedFrom,
		}).Info("Successfully loaded .env file")
	} else {
		logger.WithField("working_dir", wd).Warn("No .env file found, using environment variables only")
	}

	config := &Config{
		HTTP: HTTPConfig{
			Port:           getEnvInt("HTTP_PORT", 8080),
			ReadTimeout:    getEnvDuration("HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:   getEnvDuration("HTTP_WRITE_TIMEOUT", 120*time.Second),
			MetricsEnabled: getEnvBool("HTTP_ENABLE_METRICS", true),
			MaxUploadBytes: int64(getEnvInt("HTTP_MAX_UPLOAD_BYTES", 10*1024*1024)),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		Store: StoreConfig{
			Directory:    getEnv("STORE_DIRECTORY", "./call-contexts"),
			ChunkSeconds: getEnvInt("STORE_CHUNK_SECONDS", 10),
		},
		Analysis: AnalysisConfig{
			Provider:     strings.ToLower(getEnv("ANALYSIS_PROVIDER", "mock")),
			StageTimeout: getEnvDuration("ANALYSIS_STAGE_TIMEOUT", 15*time.Second),
		},
		GoogleSTT: GoogleSTTConfig{
			APIKey:          getEnv("GOOGLE_STT_API_KEY", ""),
			CredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
			Language:        getEnv("GOOGLE_STT_LANGUAGE", "en-US"),
			SampleRate:      getEnvInt("GOOGLE_STT_SAMPLE_RATE", 16000),
			Model:           getEnv("GOOGLE_STT_MODEL", "phone_call"),
		},
		Reasoning: ReasoningConfig{
			BaseURL: getEnv("REASONING_BASE_URL", "http://localhost:11434"),
			Model:   getEnv("REASONING_MODEL", "gemma3:4b"),
			Timeout: getEnvDuration("REASONING_TIMEOUT", 60*time.Second),
		},
		Messaging: MessagingConfig{
			AMQPUrl:       getEnv("AMQP_URL", ""),
			AMQPQueueName: getEnv("AMQP_QUEUE_NAME", ""),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return errors.NewInvalidInput("invalid HTTP port",
			map[string]interface{}{"port": c.HTTP.Port})
	}
	if c.Store.ChunkSeconds <= 0 {
		return errors.NewInvalidInput("chunk seconds must be positive",
			map[string]interface{}{"chunk_seconds": c.Store.ChunkSeconds})
	}
	if c.Analysis.Provider != "mock" && c.Analysis.Provider != "google" {
		return errors.NewInvalidInput("unknown analysis provider",
			map[string]interface{}{"provider": c.Analysis.Provider})
	}
	if c.Analysis.Provider == "google" && c.GoogleSTT.APIKey == "" && c.GoogleSTT.CredentialsFile == "" {
		return errors.NewInvalidInput("google provider requires GOOGLE_STT_API_KEY or GOOGLE_APPLICATION_CREDENTIALS")
	}
	if c.Reasoning.Timeout <= 0 {
		return errors.NewInvalidInput("reasoning timeout must be positive",
			map[string]interface{}{"timeout": c.Reasoning.Timeout.String()})
	}
	return nil
}

// Helper function to get an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// Helper function to get a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	switch strings.ToLower(value) {
	case "true", "yes", "1", "on":
		return true
	case "false", "no", "0", "off":
		return false
	default:
		return defaultValue
	}
}

// Helper function to get an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

// Helper function to get a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
