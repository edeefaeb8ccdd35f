package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ppiankov/clausecheck/internal/model"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=..."
var Version = "v0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "clausecheck",
	Short: "clausecheck - NBKR loan contract compliance checks",
	Long: `clausecheck flags clauses in consumer loan contracts that violate
NBKR consumer-credit requirements, cites the supporting law passages and
explains each finding in Russian, English and Kyrgyz.

Findings are heuristic. They point a reviewer at clauses worth reading;
they are not legal advice.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command; ctx cancellation aborts running scans
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "clausecheck %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.clausecheck/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().String("log-format", "", "log format: console or json")
	rootCmd.PersistentFlags().String("store", "", "SQLite database for rules, corpus and reports")

	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("store.path", rootCmd.PersistentFlags().Lookup("store"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	setDefaults(viper.GetViper(), model.DefaultConfig())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".clausecheck"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// CLAUSECHECK_TRANSLATE_PROVIDER overrides translate.provider
	viper.SetEnvPrefix("CLAUSECHECK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every key so env overrides reach Unmarshal
func setDefaults(v *viper.Viper, d *model.Config) {
	v.SetDefault("retrieval.top_k", d.Retrieval.TopK)
	v.SetDefault("retrieval.force_lexical", d.Retrieval.ForceLexical)
	v.SetDefault("retrieval.corpus_path", d.Retrieval.CorpusPath)
	v.SetDefault("retrieval.snapshot_path", d.Retrieval.SnapshotPath)
	v.SetDefault("retrieval.embedding.provider", d.Retrieval.Embedding.Provider)
	v.SetDefault("retrieval.embedding.model", d.Retrieval.Embedding.Model)
	v.SetDefault("retrieval.embedding.base_url", d.Retrieval.Embedding.BaseURL)
	v.SetDefault("retrieval.embedding.api_key", d.Retrieval.Embedding.APIKey)
	v.SetDefault("retrieval.embedding.timeout", d.Retrieval.Embedding.Timeout)

	v.SetDefault("rules.catalog_path", d.Rules.CatalogPath)

	v.SetDefault("translate.provider", d.Translate.Provider)
	v.SetDefault("translate.model", d.Translate.Model)
	v.SetDefault("translate.base_url", d.Translate.BaseURL)
	v.SetDefault("translate.api_key", d.Translate.APIKey)
	v.SetDefault("translate.targets", d.Translate.Targets)
	v.SetDefault("translate.timeout", d.Translate.Timeout)
	v.SetDefault("translate.concurrency", d.Translate.Concurrency)
	v.SetDefault("translate.rps", d.Translate.RPS)
	v.SetDefault("translate.burst", d.Translate.Burst)
	v.SetDefault("translate.temperature", d.Translate.Temperature)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.ttl", d.Cache.TTL)

	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("concurrency.workers", d.Concurrency.Workers)

	v.SetDefault("network.http_proxy", d.Network.HTTPProxy)
	v.SetDefault("network.https_proxy", d.Network.HTTPSProxy)
	v.SetDefault("network.no_proxy", d.Network.NoProxy)
}

// loadConfig resolves flags > env > config file > defaults.
// Provider API keys fall back to OPENAI_API_KEY.
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if cfg.Retrieval.Embedding.APIKey == "" {
			cfg.Retrieval.Embedding.APIKey = key
		}
		if cfg.Translate.APIKey == "" && strings.EqualFold(cfg.Translate.Provider, "openai") {
			cfg.Translate.APIKey = key
		}
	}
	if base := os.Getenv("OLLAMA_BASE_URL"); base != "" && cfg.Translate.BaseURL == "" &&
		strings.EqualFold(cfg.Translate.Provider, "ollama") {
		cfg.Translate.BaseURL = base
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// newLogger builds a zap logger on stderr from log.level and log.format
func newLogger(cfg model.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zcfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	if cfg.Format == "json" {
		zcfg.Encoding = "json"
		zcfg.EncoderConfig = zap.NewProductionEncoderConfig()
	}
	return zcfg.Build()
}
