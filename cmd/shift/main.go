package main

import (
	"fmt"
	"os"
	"time"

	"shift/internal/cleanup"
	"shift/internal/config"
	"shift/internal/llm"
	"shift/internal/source"
	"shift/internal/workflow"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger    *zap.Logger
	cfg       *config.Config
	cfgFile   string
	redisAddr string
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "shift",
	Short: "shift - read any article without the clutter",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("redis") {
			cfg.Redis.Addr = redisAddr
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = logLevel
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, err = newLogger(cfg.Log)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Sync()
		}
	},
	SilenceUsage: true,
}

// newLogger builds a console (development) or JSON (production) logger.
// Logs go to stderr so articles printed on stdout stay clean.
func newLogger(c config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewDevelopmentConfig()
	if c.Format == "json" {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// newSource returns the page source, or a canned article in demo mode.
func newSource(demo bool) workflow.Source {
	if demo {
		return &source.Static{Content: source.DemoArticle(), Delay: 500 * time.Millisecond}
	}
	return source.NewReadabilitySource(source.Options{
		Timeout:      cfg.Source.Timeout,
		UserAgent:    cfg.Source.UserAgent,
		RequireHTTPS: cfg.Source.RequireHTTPS,
	})
}

// newCleaner wires the cleanup pipeline. Without a usable service client
// every cleanup falls back to the raw article; client is nil in that case.
func newCleaner() (cleaner *cleanup.Cleaner, client *llm.Client) {
	prompt, err := cleanup.LoadPrompt(cfg.LLM.PromptFile)
	if err != nil {
		logger.Warn("Using built-in cleanup prompt", zap.Error(err))
	}

	var gen llm.Generator
	client, err = llm.NewClient(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	})
	if err != nil {
		logger.Warn("Cleanup disabled, articles will be shown as extracted", zap.Error(err))
		gen = llm.Unavailable{Err: err}
	} else {
		gen = client
	}

	adapter := cleanup.NewAdapter(gen, cleanup.AdapterConfig{
		SystemPrompt: prompt,
		Temperature:  cfg.LLM.Temperature,
		MaxTokens:    cfg.LLM.MaxTokens,
	})
	return cleanup.NewCleaner(adapter, logger), client
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis", "", "Address of Redis server (enables the read queue)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(cleanCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
