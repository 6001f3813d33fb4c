package handlers

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"sharkwire/internal/clusterer"
	"sharkwire/internal/config"
	"sharkwire/internal/enrich"
	"sharkwire/internal/ingest"
	"sharkwire/internal/logger"
	"sharkwire/internal/maintenance"
	"sharkwire/internal/persistence"
	"sharkwire/internal/relevance"
	"sharkwire/internal/roster"
	"sharkwire/internal/scheduler"
	"sharkwire/internal/submissions"
)

var cfgFile string

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sharkwire",
		Short: "Sharkwire aggregates San Jose Sharks news into story clusters.",
		Long: `Sharkwire ingests Sharks coverage from approved sources, filters it
for relevance, and groups story variants about the same event into
clusters.

Common workflows:

  # Run migrations, import sources, then start the worker
  sharkwire migrate up
  sharkwire sources import initial_sources.csv
  sharkwire worker

  # One-off operations
  sharkwire ingest
  sharkwire sync-roster
  sharkwire merge-clusters 240 241 242`,
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.sharkwire.yaml)")

	rootCmd.AddCommand(NewWorkerCmd())
	rootCmd.AddCommand(NewIngestCmd())
	rootCmd.AddCommand(NewEnrichCmd())
	rootCmd.AddCommand(NewMigrateCmd())
	rootCmd.AddCommand(NewMergeCmd())
	rootCmd.AddCommand(NewSyncRosterCmd())
	rootCmd.AddCommand(NewPurgeCmd())
	rootCmd.AddCommand(NewSourcesCmd())
	rootCmd.AddCommand(NewSubmitCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if _, err := config.Load(cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if config.IsDebugMode() {
		logger.SetLevel("debug")
	} else if level := config.Get().Logging.Level; level != "" {
		logger.SetLevel(level)
	}
}

// getDatabase opens the configured Postgres database. The DATABASE_URL
// environment variable overrides the config file.
func getDatabase() (*persistence.PostgresDB, error) {
	dbCfg := config.GetDatabase()

	connStr := dbCfg.URL
	if env := os.Getenv("DATABASE_URL"); env != "" {
		connStr = env
	}
	if connStr == "" {
		return nil, fmt.Errorf("no database configured: set database.url or DATABASE_URL")
	}

	pool := persistence.PoolOptions{
		MaxOpenConns: dbCfg.MaxOpenConns,
		MaxIdleConns: dbCfg.MaxIdleConns,
	}
	if dbCfg.ConnMaxLifetime != "" {
		lifetime, err := time.ParseDuration(dbCfg.ConnMaxLifetime)
		if err != nil {
			return nil, fmt.Errorf("invalid database.conn_max_lifetime %q: %w", dbCfg.ConnMaxLifetime, err)
		}
		pool.ConnMaxLifetime = lifetime
	}

	return persistence.NewPostgresDBWithPool(connStr, pool)
}

// Config assembly, translating the flat config file into per-package
// settings. Zero config values keep the package defaults.

func ingestConfig() ingest.Config {
	cfg := ingest.DefaultConfig()
	c := config.GetIngest()
	if c.UserAgent != "" {
		cfg.UserAgent = c.UserAgent
	}
	if c.RequestTimeoutSeconds > 0 {
		cfg.RequestTimeout = time.Duration(c.RequestTimeoutSeconds) * time.Second
	}
	if c.FeedCacheTTLMinutes > 0 {
		cfg.FeedCacheTTL = time.Duration(c.FeedCacheTTLMinutes) * time.Minute
	}
	if c.MaxFetchRetries > 0 {
		cfg.MaxFetchRetries = uint64(c.MaxFetchRetries)
	}
	return cfg
}

func clusterConfig() clusterer.Config {
	cfg := clusterer.DefaultConfig()
	c := config.GetCluster()
	if c.TimeWindowHours > 0 {
		cfg.TimeWindowHours = c.TimeWindowHours
	}
	if c.GameWindowHours > 0 {
		cfg.GameWindowHours = c.GameWindowHours
	}
	if c.OpinionWindowHours > 0 {
		cfg.OpinionWindowHours = c.OpinionWindowHours
	}
	if c.SimilarityThreshold > 0 {
		cfg.SimilarityThreshold = c.SimilarityThreshold
	}
	if c.EntityOverlapThreshold > 0 {
		cfg.EntityOverlapThreshold = c.EntityOverlapThreshold
	}
	if c.TokenSimilarityThreshold > 0 {
		cfg.TokenSimilarityThreshold = c.TokenSimilarityThreshold
	}
	return cfg
}

func enrichConfig() enrich.Config {
	llm := config.GetLLM()

	cfg := enrich.Config{
		Relevance: relevance.Config{
			LLMEnabled:     llm.RelevanceEnabled,
			EvaluationMode: llm.EvaluationMode,
			TopicKeywords:  config.GetTopic().Keywords,
		},
		Cluster: clusterConfig(),
	}

	if llm.RelevanceEnabled {
		baseURL := llm.BaseURL
		model := llm.Model
		timeout := time.Duration(llm.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		cfg.NewLLMClient = func() relevance.LLMClient {
			return relevance.NewOllamaClient(baseURL, model, timeout)
		}
	}
	return cfg
}

func submissionsConfig() submissions.Config {
	cfg := submissions.DefaultConfig()
	c := config.GetSubmissions()
	if c.RateLimitPerIP > 0 {
		cfg.RateLimitPerIP = c.RateLimitPerIP
	}
	if c.SourceName != "" {
		cfg.SourceName = c.SourceName
	}
	if ua := config.GetIngest().UserAgent; ua != "" {
		cfg.UserAgent = ua
	}
	return cfg
}

func rosterConfig() roster.Config {
	cfg := roster.DefaultConfig()
	c := config.GetRoster()
	if c.URL != "" {
		cfg.URL = c.URL
	}
	if c.TeamName != "" {
		cfg.TeamName = c.TeamName
	}
	if ua := config.GetIngest().UserAgent; ua != "" {
		cfg.UserAgent = ua
	}
	return cfg
}

func maintenanceConfig() maintenance.Config {
	cfg := maintenance.DefaultConfig()
	if days := config.GetScheduler().PurgeRetentionDays; days > 0 {
		cfg.RetentionDays = days
	}
	return cfg
}

func schedulerConfig() scheduler.Config {
	cfg := scheduler.DefaultConfig()
	c := config.GetScheduler()
	if c.Workers > 0 {
		cfg.Workers = c.Workers
	}
	if c.QueueSize > 0 {
		cfg.QueueSize = c.QueueSize
	}
	if c.TaskHardLimitMinutes > 0 {
		cfg.TaskHardLimit = time.Duration(c.TaskHardLimitMinutes) * time.Minute
	}
	if c.TaskSoftLimitMinutes > 0 {
		cfg.TaskSoftLimit = time.Duration(c.TaskSoftLimitMinutes) * time.Minute
	}
	if c.CacheCleanupMinutes > 0 {
		cfg.CacheInterval = time.Duration(c.CacheCleanupMinutes) * time.Minute
	}
	if minutes := config.GetIngest().IntervalMinutes; minutes > 0 {
		cfg.IngestInterval = time.Duration(minutes) * time.Minute
	}
	return cfg
}
