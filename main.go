package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/adapters/datasource"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/adapters/datasource/postgres"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/adapters/datasource/sqlite"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/config"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/embeddings"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/handlers"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/llm"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/logging"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/metadata"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/middleware"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/schemagraph"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/valuerank"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/workflow"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model", cfg.LLM.Model),
		zap.String("datasource_driver", cfg.Datasource.Driver),
		zap.String("datasource_dsn", logging.SanitizeDSN(cfg.Datasource.DSN)))

	ctx := context.Background()

	adapter, err := newAdapter(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open datasource", zap.Error(err))
	}
	defer func() { _ = adapter.Close() }()

	llmClient, err := llm.NewFromProvider(cfg.LLM.Provider, &llm.Config{
		Endpoint:       cfg.LLM.Endpoint,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		APIKey:         cfg.LLM.APIKey,
		Temperature:    cfg.LLM.Temperature,
	}, logger)
	if err != nil {
		logger.Fatal("failed to create llm client", zap.Error(err))
	}

	descriptions, err := metadata.LoadColumnDescriptions(cfg.MetadataDir, logger)
	if err != nil {
		logger.Fatal("failed to load column descriptions", zap.Error(err))
	}

	graphProvider := schemagraph.NewProvider(adapter, schemagraph.BuildOptions{
		Descriptions: descriptions,
		Statistics:   adapter,
	}, logger)
	graph, err := graphProvider.Graph(ctx)
	if err != nil {
		logger.Fatal("failed to build schema graph", zap.Error(err))
	}
	logger.Info("schema graph ready", zap.Int("columns", graph.NodeCount()))

	schemaSummary, err := datasource.BuildSchemaSummary(ctx, adapter)
	if err != nil {
		logger.Fatal("failed to build schema summary", zap.Error(err))
	}

	columnIndex := embeddings.NewColumnIndex(llmClient, logger)
	indexed, err := columnIndex.Build(ctx, adapter, adapter, descriptions)
	if err != nil {
		// The engine falls back to full column enumeration when semantic
		// search is unavailable, so a failed index is not fatal.
		logger.Warn("column index unavailable", zap.Error(err))
	} else {
		logger.Info("column index ready", zap.Int("columns", indexed))
	}

	ranker := valuerank.New(adapter, cfg.Datasource.SampleLimit, logger)

	engine, err := workflow.NewEngine(workflow.Dependencies{
		LLM:      llmClient,
		Columns:  columnIndex,
		Values:   ranker,
		Paths:    graphProvider,
		Executor: adapter,
	}, workflow.Options{
		MaxIterations:    cfg.Workflow.MaxIterations,
		HumanInteraction: cfg.Workflow.HumanInteraction,
		MaxNodeVisits:    cfg.Workflow.MaxNodeVisits,
	}, logger)
	if err != nil {
		logger.Fatal("failed to create workflow engine", zap.Error(err))
	}

	// Rebuild swaps the graph, summary, and column index together so a
	// schema change never leaves the caches disagreeing.
	var rebuildMu sync.Mutex
	rebuild := func(ctx context.Context) (int, error) {
		rebuildMu.Lock()
		defer rebuildMu.Unlock()
		if _, err := graphProvider.Rebuild(ctx); err != nil {
			return 0, fmt.Errorf("failed to rebuild schema graph: %w", err)
		}
		summary, err := datasource.BuildSchemaSummary(ctx, adapter)
		if err != nil {
			return 0, fmt.Errorf("failed to rebuild schema summary: %w", err)
		}
		schemaSummary = summary
		return columnIndex.Build(ctx, adapter, adapter, descriptions)
	}
	currentSummary := func() string {
		rebuildMu.Lock()
		defer rebuildMu.Unlock()
		return schemaSummary
	}

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewQueryHandler(engine, currentSummary, logger).RegisterRoutes(mux)
	handlers.NewSchemaHandler(rebuild, logger).RegisterRoutes(mux)

	handler := middleware.RequestLogger(logger)(mux)

	addr := net.JoinHostPort(cfg.BindAddr, cfg.Port)
	logger.Info("starting sqlpilot-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func newAdapter(ctx context.Context, cfg *config.Config, logger *zap.Logger) (datasource.Adapter, error) {
	switch cfg.Datasource.Driver {
	case "sqlite":
		return sqlite.New(cfg.Datasource.DSN, logger)
	case "postgres":
		return postgres.New(ctx, cfg.Datasource.DSN, logger)
	default:
		return nil, fmt.Errorf("unknown datasource driver %q", cfg.Datasource.Driver)
	}
}
