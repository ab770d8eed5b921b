package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/printmind/printmind"
	"github.com/printmind/printmind/capability"
	"github.com/printmind/printmind/capability/catalog"
	"github.com/printmind/printmind/capability/gcode"
	"github.com/printmind/printmind/capability/knowledge"
	"github.com/printmind/printmind/capability/printer"
	"github.com/printmind/printmind/capability/vision"
	"github.com/printmind/printmind/config"
	"github.com/printmind/printmind/core"
	"github.com/printmind/printmind/logging"
	"github.com/printmind/printmind/oracle"
	oracleanthropic "github.com/printmind/printmind/oracle/anthropic"
	oracleopenai "github.com/printmind/printmind/oracle/openai"
	"github.com/printmind/printmind/session"
	sessionsqlite "github.com/printmind/printmind/session/sqlite"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "printmind",
	Short: "3D printing assistant engine",
	Long: `printmind answers 3D printing questions by orchestrating an LLM
oracle with local capabilities: knowledge base search, G-code analysis,
print photo inspection and printer control over Moonraker.

Use "printmind chat" for an interactive session or "printmind ask" for a
single question.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}
	return config.Load()
}

// buildEngine wires the full engine from configuration: logger, oracle
// provider, session store and the built-in capability set.
func buildEngine(cfg *config.Config) (*printmind.Engine, func(), error) {
	logger := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})

	oracleSvc, err := buildOracle(cfg)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {}
	var store core.SessionStore = session.NewInMemory()
	if cfg.Store.Driver == "sqlite" {
		sqliteStore, err := sessionsqlite.Open(cfg.Store.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open session store: %w", err)
		}
		cleanup = func() { _ = sqliteStore.Close() }
		store = sqliteStore
	}

	engine, err := printmind.New(func(o *printmind.Options) {
		o.Oracle = oracleSvc
		o.SessionStore = store
		o.Logger = logger
		o.MaxRounds = cfg.Turn.MaxRounds
		o.PipelineRetries = cfg.Pipeline.MaxRetries
		o.QualityThreshold = cfg.Pipeline.QualityThreshold
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	if err := registerCapabilities(engine, cfg); err != nil {
		cleanup()
		return nil, nil, err
	}

	return engine, cleanup, nil
}

func buildOracle(cfg *config.Config) (oracle.Oracle, error) {
	switch cfg.Oracle.Provider {
	case "anthropic":
		return oracleanthropic.New(func(o *oracleanthropic.Options) {
			if cfg.Oracle.Model != "" {
				o.Model = anthropic.Model(cfg.Oracle.Model)
			}
			o.Temperature = cfg.Oracle.Temperature
			o.MaxTokens = cfg.Oracle.MaxTokens
			o.APIKey = cfg.Oracle.APIKey
		}), nil
	case "openai":
		return oracleopenai.New(func(o *oracleopenai.Options) {
			if cfg.Oracle.Model != "" {
				o.Model = cfg.Oracle.Model
			}
			o.Temperature = cfg.Oracle.Temperature
			o.MaxCompletionTokens = cfg.Oracle.MaxTokens
			o.APIKey = cfg.Oracle.APIKey
			o.BaseURL = cfg.Oracle.BaseURL
		}), nil
	case "mock":
		return oracle.NewMock(), nil
	default:
		return nil, fmt.Errorf("unknown oracle provider %q", cfg.Oracle.Provider)
	}
}

func registerCapabilities(engine *printmind.Engine, cfg *config.Config) error {
	idx := knowledge.NewIndex()
	if cfg.Knowledge.CorpusDir != "" {
		if err := ingestCorpus(idx, cfg.Knowledge.CorpusDir); err != nil {
			return fmt.Errorf("ingest corpus: %w", err)
		}
	}
	if err := engine.RegisterCapability(knowledge.NewSearchCapability(idx)); err != nil {
		return err
	}

	if err := engine.RegisterCapability(gcode.NewAnalyzeCapability()); err != nil {
		return err
	}
	if err := engine.RegisterCapability(gcode.NewMetricsCapability()); err != nil {
		return err
	}

	if err := engine.RegisterCapability(vision.NewInspectCapability(&vision.StaticDetector{})); err != nil {
		return err
	}

	table := catalog.New()
	if err := engine.RegisterCapability(catalog.NewLessonsCapability(table)); err != nil {
		return err
	}
	if err := engine.RegisterCapability(catalog.NewRecommendProjectCapability(table)); err != nil {
		return err
	}

	// Printer control only when an endpoint is configured; device
	// capabilities never retry.
	if cfg.Printer.APIURL != "" {
		client := printer.NewClient(cfg.Printer.APIURL, func(o *printer.ClientOptions) {
			o.Timeout = cfg.Printer.Timeout
		})
		devicePolicy := capability.Policy{Timeout: cfg.Printer.Timeout, MaxRetries: 0}
		if err := engine.RegisterCapabilityWithPolicy(printer.NewStatusCapability(client), devicePolicy); err != nil {
			return err
		}
		if err := engine.RegisterCapabilityWithPolicy(printer.NewSetTemperatureCapability(client), devicePolicy); err != nil {
			return err
		}
	}

	return nil
}

// ingestCorpus loads markdown and text documents from a directory tree.
func ingestCorpus(idx *knowledge.Index, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".md" && ext != ".txt" {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			rel = path
		}
		idx.Add(knowledge.Document{
			ID:      rel,
			Title:   strings.TrimSuffix(filepath.Base(path), ext),
			Content: string(content),
			Source:  rel,
		})
		return nil
	})
}
