package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/cubeguard/pkg/config"
	"github.com/ekaya-inc/cubeguard/pkg/cube"
	"github.com/ekaya-inc/cubeguard/pkg/generator"
	"github.com/ekaya-inc/cubeguard/pkg/llm"
	"github.com/ekaya-inc/cubeguard/pkg/logging"
	"github.com/ekaya-inc/cubeguard/pkg/mcp"
	"github.com/ekaya-inc/cubeguard/pkg/mcp/tools"
	"github.com/ekaya-inc/cubeguard/pkg/repair"
	"github.com/ekaya-inc/cubeguard/pkg/schema"
	"github.com/ekaya-inc/cubeguard/pkg/services"
	"github.com/ekaya-inc/cubeguard/pkg/suggest"
	"github.com/ekaya-inc/cubeguard/pkg/validator"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("cube_api_url", logging.SanitizeURL(cfg.Cube.APIURL)),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.Bool("llm_available", cfg.LLM.IsAvailable()))

	cubeClient := cube.NewClient(cfg.Cube, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	meta, err := cubeClient.Meta(ctx)
	cancel()
	if err != nil {
		logger.Fatal("failed to fetch schema metadata", zap.Error(err))
	}

	graph, err := schema.Build(meta, schema.BuildOptions{MinConfidence: cfg.Validator.MinRelationshipConfidence}, logger)
	if err != nil {
		logger.Fatal("failed to build schema graph", zap.Error(err))
	}
	logger.Info("schema graph built",
		zap.Int("entities", len(graph.Entities())),
		zap.Int("relationships", len(graph.Relationships())))

	suggester := suggest.New(graph, cfg.Validator, logger)
	repairer := repair.New(graph, suggester, logger)
	pathValidator := validator.New(graph, cfg.Validator, logger)

	var gen services.QueryGenerator
	var fixer services.Fixer
	if cfg.LLM.IsAvailable() {
		client, err := llm.New(cfg.LLM, logger)
		if err != nil {
			logger.Fatal("failed to create LLM client", zap.Error(err))
		}
		gen = generator.New(client, logger)
		fixer = repair.NewFixer(client, logger)
	} else {
		logger.Warn("no LLM configured; natural language tools are disabled")
	}

	service := services.NewQueryService(
		pathValidator,
		suggester,
		repairer,
		cubeClient,
		gen,
		fixer,
		schema.FormatForLLM(meta),
		logger,
	)

	mcpServer := mcp.NewServer("cubeguard", cfg.Version, logger)
	deps := &tools.Deps{Service: service, Meta: meta, Logger: logger}
	tools.RegisterHealthTool(mcpServer.MCP(), cfg.Version)
	tools.RegisterSchemaTool(mcpServer.MCP(), deps)
	tools.RegisterExecuteTools(mcpServer.MCP(), deps)
	if gen != nil {
		tools.RegisterQueryTools(mcpServer.MCP(), deps)
	}

	mux := http.NewServeMux()
	mux.Handle("/mcp", mcpServer.NewStreamableHTTPServer())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"` + cfg.Version + `"}`)) //nolint:errcheck
	})

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("starting cubeguard", zap.String("addr", addr), zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
