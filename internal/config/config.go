package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App         App         `mapstructure:"app"`
	Database    Database    `mapstructure:"database"`
	Ingest      Ingest      `mapstructure:"ingest"`
	Cluster     Cluster     `mapstructure:"cluster"`
	LLM         LLM         `mapstructure:"llm"`
	Topic       Topic       `mapstructure:"topic"`
	Submissions Submissions `mapstructure:"submissions"`
	Roster      Roster      `mapstructure:"roster"`
	Scheduler   Scheduler   `mapstructure:"scheduler"`
	Logging     Logging     `mapstructure:"logging"`
}

// App holds general application configuration
type App struct {
	Debug bool `mapstructure:"debug"`
}

// Database holds Postgres configuration
type Database struct {
	URL             string `mapstructure:"url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
}

// Ingest holds source fetching configuration
type Ingest struct {
	IntervalMinutes       int    `mapstructure:"interval_minutes"`
	MaxFetchRetries       int    `mapstructure:"max_fetch_retries"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`
	UserAgent             string `mapstructure:"user_agent"`
	FeedCacheTTLMinutes   int    `mapstructure:"feed_cache_ttl_minutes"`
}

// Cluster holds story clustering thresholds
type Cluster struct {
	TimeWindowHours          int     `mapstructure:"time_window_hours"`
	GameWindowHours          int     `mapstructure:"game_window_hours"`
	OpinionWindowHours       int     `mapstructure:"opinion_window_hours"`
	SimilarityThreshold      float64 `mapstructure:"similarity_threshold"`
	EntityOverlapThreshold   float64 `mapstructure:"entity_overlap_threshold"`
	TokenSimilarityThreshold float64 `mapstructure:"token_similarity_threshold"`
}

// LLM holds relevance-model configuration (Ollama)
type LLM struct {
	RelevanceEnabled bool   `mapstructure:"relevance_enabled"`
	EvaluationMode   bool   `mapstructure:"evaluation_mode"`
	BaseURL          string `mapstructure:"base_url"`
	Model            string `mapstructure:"model"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
}

// Topic holds the tracked-topic keyword configuration
type Topic struct {
	Keywords []string `mapstructure:"keywords"`
}

// Submissions holds user-submission configuration
type Submissions struct {
	RateLimitPerIP int    `mapstructure:"rate_limit_per_ip"`
	SourceName     string `mapstructure:"source_name"`
}

// Roster holds roster synchronization configuration
type Roster struct {
	URL      string `mapstructure:"url"`
	TeamName string `mapstructure:"team_name"`
}

// Scheduler holds worker and periodic-task configuration
type Scheduler struct {
	Workers              int `mapstructure:"workers"`
	QueueSize            int `mapstructure:"queue_size"`
	TaskHardLimitMinutes int `mapstructure:"task_hard_limit_minutes"`
	TaskSoftLimitMinutes int `mapstructure:"task_soft_limit_minutes"`
	PurgeRetentionDays   int `mapstructure:"purge_retention_days"`
	CacheCleanupMinutes  int `mapstructure:"cache_cleanup_minutes"`
}

// Logging holds logging configuration
type Logging struct {
	Level string `mapstructure:"level"`
}

var globalConfig *Config

// Load loads the configuration from various sources
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

	// Configure viper
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".sharkwire")
		viper.SetConfigType("yaml")
	}

	// Set defaults
	setDefaults()

	// Bind environment variables
	bindEnvironmentVariables()

	// Enable automatic environment variable reading
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Unmarshal into struct
	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// setDefaults sets default configuration values
func setDefaults() {
	// App defaults
	viper.SetDefault("app.debug", false)

	// Database defaults
	viper.SetDefault("database.max_open_conns", 10)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "30m")

	// Ingest defaults
	viper.SetDefault("ingest.interval_minutes", 15)
	viper.SetDefault("ingest.max_fetch_retries", 3)
	viper.SetDefault("ingest.request_timeout_seconds", 30)
	viper.SetDefault("ingest.user_agent", "sharkwire/1.0 (+news aggregator)")
	viper.SetDefault("ingest.feed_cache_ttl_minutes", 60)

	// Cluster defaults
	viper.SetDefault("cluster.time_window_hours", 72)
	viper.SetDefault("cluster.game_window_hours", 24)
	viper.SetDefault("cluster.opinion_window_hours", 12)
	viper.SetDefault("cluster.similarity_threshold", 0.62)
	viper.SetDefault("cluster.entity_overlap_threshold", 0.50)
	viper.SetDefault("cluster.token_similarity_threshold", 0.40)

	// LLM defaults
	viper.SetDefault("llm.relevance_enabled", false)
	viper.SetDefault("llm.evaluation_mode", false)
	viper.SetDefault("llm.base_url", "http://localhost:11434")
	viper.SetDefault("llm.model", "llama3.2:3b")
	viper.SetDefault("llm.timeout_seconds", 30)

	// Topic defaults
	viper.SetDefault("topic.keywords", []string{
		"sharks", "sj sharks", "san jose", "barracuda", "sap center",
	})

	// Submissions defaults
	viper.SetDefault("submissions.rate_limit_per_ip", 10)
	viper.SetDefault("submissions.source_name", "User Submissions")

	// Roster defaults
	viper.SetDefault("roster.team_name", "San Jose Sharks")

	// Scheduler defaults
	viper.SetDefault("scheduler.workers", 4)
	viper.SetDefault("scheduler.queue_size", 256)
	viper.SetDefault("scheduler.task_hard_limit_minutes", 60)
	viper.SetDefault("scheduler.task_soft_limit_minutes", 50)
	viper.SetDefault("scheduler.purge_retention_days", 30)
	viper.SetDefault("scheduler.cache_cleanup_minutes", 60)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables() {
	bindEnvKeys("database.url", []string{
		"DATABASE_URL",
		"POSTGRES_URL",
	})

	bindEnvKeys("llm.base_url", []string{
		"OLLAMA_BASE_URL",
		"OLLAMA_HOST",
	})

	bindEnvKeys("llm.model", []string{
		"OLLAMA_MODEL",
	})

	bindEnvKeys("llm.relevance_enabled", []string{
		"LLM_RELEVANCE_ENABLED",
	})

	bindEnvKeys("llm.evaluation_mode", []string{
		"LLM_EVALUATION_MODE",
	})

	bindEnvKeys("roster.url", []string{
		"ROSTER_URL",
	})

	bindEnvKeys("app.debug", []string{
		"DEBUG",
		"SHARKWIRE_DEBUG",
	})

	bindEnvKeys("logging.level", []string{
		"LOG_LEVEL",
	})
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

// validateConfig ensures required configuration is present
func validateConfig(config *Config) error {
	var errors []string

	if config.Database.URL == "" {
		errors = append(errors, "database URL is required. Set DATABASE_URL environment variable or database.url in config file")
	}

	if config.Cluster.SimilarityThreshold <= 0 || config.Cluster.SimilarityThreshold > 1 {
		errors = append(errors, fmt.Sprintf("cluster.similarity_threshold must be in (0, 1], got %v", config.Cluster.SimilarityThreshold))
	}

	if config.LLM.RelevanceEnabled && config.LLM.BaseURL == "" {
		errors = append(errors, "llm.base_url is required when llm.relevance_enabled is set")
	}

	if config.Submissions.RateLimitPerIP < 1 {
		errors = append(errors, "submissions.rate_limit_per_ip must be at least 1")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Convenience getters for commonly used configuration values
func GetDatabase() Database       { return Get().Database }
func GetIngest() Ingest           { return Get().Ingest }
func GetCluster() Cluster         { return Get().Cluster }
func GetLLM() LLM                 { return Get().LLM }
func GetTopic() Topic             { return Get().Topic }
func GetSubmissions() Submissions { return Get().Submissions }
func GetRoster() Roster           { return Get().Roster }
func GetScheduler() Scheduler     { return Get().Scheduler }
func IsDebugMode() bool           { return Get().App.Debug }

// Reset clears the global configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viper.Reset()
}
