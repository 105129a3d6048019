package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"codelake/internal/config"
	"codelake/internal/embedding"
	"codelake/internal/generation"
	"codelake/internal/ingest"
	"codelake/internal/llm"
	"codelake/internal/planner"
	"codelake/internal/retrieval"
	"codelake/internal/server"
	"codelake/internal/session"
	"codelake/internal/store"
	"codelake/internal/types"
)

var (
	// Global flags
	configPath string
	verbose    bool

	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "codelake",
	Short: "codelake - retrieval-grounded SDK code generation",
	Long: `codelake answers SDK coding questions with generated code grounded in
ingested documentation.

It plans a request into dependency-ordered tasks, retrieves relevant
documentation per task (falling back to web search when the local store
scores low), and generates code task by task with accumulated context.

Run without arguments to start the interactive chat interface.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

// serveCmd runs the HTTP API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Starts the HTTP API with a /generate endpoint and, when auto-update is
configured, the background documentation updater.`,
	RunE: runServe,
}

// ingestCmd loads documentation into the store.
var ingestCmd = &cobra.Command{
	Use:   "ingest [dir...]",
	Short: "Ingest documentation directories into the store",
	Long: `Walks each directory, chunks supported files, embeds the chunks, and
stores them. With no arguments, the directories from the configuration
are ingested.`,
	RunE: runIngest,
}

// generateCmd handles a single request without a server.
var generateCmd = &cobra.Command{
	Use:   "generate [request]",
	Short: "Generate code for a single request",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGenerate,
}

// chatCmd is the interactive console, also the default command.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat interface",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "codelake.yaml", "configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(chatCmd)
}

// app holds the wired pipeline for one process.
type app struct {
	cfg      *config.Config
	store    *store.Store
	registry *session.Registry
	updater  *ingest.Updater
}

func (a *app) close() {
	if a.store != nil {
		_ = a.store.Close()
	}
}

// buildApp wires the full pipeline: embedding engine, document store, web
// fallback, retrieval coordinator, LLM client, planner, generator, and the
// session registry around them.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	eng, err := embedding.NewEngine(ctx, embedding.Config{
		Provider:       cfg.Embedding.Provider,
		OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
		OllamaModel:    cfg.Embedding.OllamaModel,
		GenAIAPIKey:    cfg.Embedding.GenAIAPIKey,
		GenAIModel:     cfg.Embedding.GenAIModel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding engine: %w", err)
	}
	logger.Info("embedding engine ready", zap.String("engine", eng.Name()))

	st, err := store.Open(cfg.Store.DatabasePath, eng, logger)
	if err != nil {
		return nil, err
	}

	var web *retrieval.WebSearch
	if cfg.Retrieval.UseWebSearch {
		web, err = retrieval.NewWebSearch(
			cfg.WebSearch.GoogleAPIKey,
			cfg.WebSearch.GoogleCSEID,
			cfg.WebSearch.MaxResults,
			retrieval.WithThrottle(cfg.WebThrottle()),
			retrieval.WithWebLogger(logger),
		)
		if err != nil {
			logger.Warn("web search fallback disabled", zap.Error(err))
		}
	}

	var secondary types.FallbackSource
	if web != nil {
		secondary = web
	}
	coordinator := retrieval.NewCoordinator(st, secondary,
		cfg.Retrieval.ConfidenceThreshold, cfg.Retrieval.FetchK,
		retrieval.WithLogger(logger),
		retrieval.WithFallback(web != nil))

	client, err := llm.NewGeminiClient(ctx, llm.GeminiConfig{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLMTimeout(),
	})
	if err != nil {
		return nil, err
	}

	plan := planner.New(client, logger)
	gen := generation.New(client, coordinator, logger)

	registry := session.NewRegistry(func(id string) (*session.Session, error) {
		return session.New(id, coordinator, plan, gen, client,
			cfg.Session.HistoryWindow, logger.With(zap.String("session", id))), nil
	})

	a := &app{cfg: cfg, store: st, registry: registry}

	if cfg.Ingest.AutoUpdate && len(cfg.Ingest.DocsPaths) > 0 {
		ingestor := ingest.NewIngestor(st, cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap, logger)
		a.updater = ingest.NewUpdater(ingestor, cfg.Ingest.DocsPaths, cfg.UpdateInterval(), logger)
	}
	return a, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if a.updater != nil {
		if err := a.updater.Start(); err != nil {
			logger.Warn("background updater not started", zap.Error(err))
		} else {
			defer a.updater.Stop()
		}
	}

	srv := server.New(a.registry, logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(a.cfg.ListenAddr())
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case err := <-errCh:
		return err
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	dirs := args
	if len(dirs) == 0 {
		dirs = cfg.Ingest.DocsPaths
	}
	if len(dirs) == 0 {
		return fmt.Errorf("no directories given and none configured under ingest.docs_paths")
	}

	eng, err := embedding.NewEngine(ctx, embedding.Config{
		Provider:       cfg.Embedding.Provider,
		OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
		OllamaModel:    cfg.Embedding.OllamaModel,
		GenAIAPIKey:    cfg.Embedding.GenAIAPIKey,
		GenAIModel:     cfg.Embedding.GenAIModel,
	})
	if err != nil {
		return fmt.Errorf("failed to create embedding engine: %w", err)
	}

	st, err := store.Open(cfg.Store.DatabasePath, eng, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	ingestor := ingest.NewIngestor(st, cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap, logger)
	total := 0
	for _, dir := range dirs {
		n, err := ingestor.IngestDir(ctx, dir)
		if err != nil {
			return err
		}
		total += n
	}

	count, err := st.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Ingested %d chunks, store now holds %d documents.\n", total, count)
	return nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	request := strings.Join(args, " ")
	sess, err := a.registry.Get("")
	if err != nil {
		return err
	}

	result := sess.GenerateCode(ctx, request)
	fmt.Println(result.Code)
	fmt.Printf("\n# Confidence: %.2f\n", result.Confidence)
	for _, s := range result.Suggestions {
		fmt.Printf("# Suggestion: %s\n", s)
	}
	for _, m := range result.MissingInfo {
		fmt.Printf("# Missing: %s\n", m)
	}
	return nil
}

func main() {
	// Best effort: local development keys live in .env.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
