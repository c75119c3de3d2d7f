// Package config loads application configuration from environment variables
// and an optional YAML config file.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App      App      `mapstructure:"app"`
	AI       AI       `mapstructure:"ai"`
	Postgres Postgres `mapstructure:"postgres"`
	GenAI    GenAI    `mapstructure:"genai"`
	Server   Server   `mapstructure:"server"`
	Fetch    Fetch    `mapstructure:"fetch"`
	Topics   Topics   `mapstructure:"topics"`
}

// App holds general application configuration.
type App struct {
	LogLevel string `mapstructure:"log_level"`
}

// AI holds LLM backend configuration. At least one API key is required;
// GoogleAPIKey selects the Gemini backend, ChairAPIKey the OpenWebUI backend.
type AI struct {
	GoogleAPIKey   string  `mapstructure:"google_api_key"`
	ChairAPIKey    string  `mapstructure:"chair_api_key"`
	Model          string  `mapstructure:"model"`
	EmbeddingModel string  `mapstructure:"embedding_model"`
	MaxTokens      int32   `mapstructure:"max_tokens"`
	Temperature    float32 `mapstructure:"temperature"`
	Timeout        string  `mapstructure:"timeout"`
}

// Postgres holds vector-store connection configuration.
type Postgres struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	DB       string `mapstructure:"db"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// DSN renders a pgx-compatible connection string.
func (p Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", p.User, p.Password, p.Host, p.Port, p.DB)
}

// GenAI holds the base URL used by collaborators that reach the GenAI HTTP
// surface (e.g. the OpenWebUI backend).
type GenAI struct {
	BaseURL string `mapstructure:"base_url"`
}

// Server holds HTTP server configuration.
type Server struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// Fetch holds article-fetcher configuration.
type Fetch struct {
	DefaultLimit int    `mapstructure:"default_limit"`
	MaxLimit     int    `mapstructure:"max_limit"`
	Timeout      string `mapstructure:"timeout"`
}

// Topics holds topic-engine configuration.
type Topics struct {
	MinClusterSize      int `mapstructure:"min_cluster_size"`
	MaxArticlesPerTopic int `mapstructure:"max_articles_per_topic"`
	MaxTopics           int `mapstructure:"max_topics"`
}

var globalConfig *Config

// Load reads configuration from the optional config file, .env file, and
// environment variables. Missing LLM credentials are fatal; missing database
// settings fall back to db:5432/postgres.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".nicheexplorer")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Reset clears the cached configuration. Intended for tests.
func Reset() {
	globalConfig = nil
	viper.Reset()
}

func setDefaults() {
	viper.SetDefault("app.log_level", "info")

	viper.SetDefault("ai.model", "gemini-flash-lite-latest")
	viper.SetDefault("ai.embedding_model", "gemini-embedding-001")
	viper.SetDefault("ai.max_tokens", 8192)
	viper.SetDefault("ai.temperature", 0.7)
	viper.SetDefault("ai.timeout", "60s")

	viper.SetDefault("postgres.host", "db")
	viper.SetDefault("postgres.port", 5432)
	viper.SetDefault("postgres.db", "postgres")
	viper.SetDefault("postgres.user", "postgres")
	viper.SetDefault("postgres.password", "postgres")

	viper.SetDefault("genai.base_url", "http://py-genai:8000")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "120s")

	viper.SetDefault("fetch.default_limit", 50)
	viper.SetDefault("fetch.max_limit", 200)
	viper.SetDefault("fetch.timeout", "30s")

	viper.SetDefault("topics.min_cluster_size", 3)
	viper.SetDefault("topics.max_articles_per_topic", 40)
	viper.SetDefault("topics.max_topics", 10)
}

// bindEnvironmentVariables maps the flat env-var surface onto viper keys.
func bindEnvironmentVariables() {
	_ = viper.BindEnv("ai.google_api_key", "GOOGLE_API_KEY")
	_ = viper.BindEnv("ai.chair_api_key", "CHAIR_API_KEY")
	_ = viper.BindEnv("app.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("postgres.host", "POSTGRES_HOST")
	_ = viper.BindEnv("postgres.port", "POSTGRES_PORT")
	_ = viper.BindEnv("postgres.db", "POSTGRES_DB")
	_ = viper.BindEnv("postgres.user", "POSTGRES_USER")
	_ = viper.BindEnv("postgres.password", "POSTGRES_PASSWORD")
	_ = viper.BindEnv("genai.base_url", "GENAI_BASE_URL")
}

func validateConfig(config *Config) error {
	if config.AI.GoogleAPIKey == "" && config.AI.ChairAPIKey == "" {
		return fmt.Errorf("no LLM credentials configured: set GOOGLE_API_KEY or CHAIR_API_KEY")
	}
	if config.Fetch.DefaultLimit <= 0 || config.Fetch.DefaultLimit > config.Fetch.MaxLimit {
		return fmt.Errorf("invalid fetch limits: default=%d max=%d", config.Fetch.DefaultLimit, config.Fetch.MaxLimit)
	}
	return nil
}
