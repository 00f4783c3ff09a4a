// Answerd is a retrieval-augmented question answering daemon for
// product documents.
//
// It resolves product mentions against a catalog, expands the query into
// mode-specific search variants, retrieves and reranks evidence from a
// vector backend, compresses it under a token budget and generates a
// cited answer.
//
// Usage:
//
//	# Start server with defaults
//	answerd
//
//	# Start with a config file
//	answerd -config config.yaml
//
//	# Configure via environment
//	SERVER_PORT=9090 LLM_BASE_URL=http://localhost:8000/v1 answerd
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/answerforge/answerd/internal/analyzer"
	"github.com/answerforge/answerd/internal/assembler"
	"github.com/answerforge/answerd/internal/catalog"
	"github.com/answerforge/answerd/internal/compressor"
	"github.com/answerforge/answerd/internal/config"
	"github.com/answerforge/answerd/internal/embeddings"
	"github.com/answerforge/answerd/internal/expander"
	"github.com/answerforge/answerd/internal/httpapi"
	"github.com/answerforge/answerd/internal/llm"
	"github.com/answerforge/answerd/internal/logging"
	"github.com/answerforge/answerd/internal/pipeline"
	"github.com/answerforge/answerd/internal/reranker"
	"github.com/answerforge/answerd/internal/retriever"
	"github.com/answerforge/answerd/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  answerd            Start the answerd daemon\n")
			fmt.Fprintf(os.Stderr, "  answerd version    Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("answerd\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires the pipeline and serves it until ctx is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync()

	llmClient, err := llm.NewOpenAIClient(llm.Config{
		BaseURL:   cfg.LLM.BaseURL,
		Model:     cfg.LLM.Model,
		APIKey:    cfg.LLM.APIKey,
		MaxTokens: cfg.LLM.MaxTokens,
	})
	if err != nil {
		return fmt.Errorf("initializing completion client: %w", err)
	}

	embedder, err := embeddings.NewService(embeddings.Config{
		BaseURL: cfg.Embeddings.BaseURL,
		Model:   cfg.Embeddings.Model,
		APIKey:  cfg.Embeddings.APIKey,
	})
	if err != nil {
		return fmt.Errorf("initializing embedding service: %w", err)
	}

	backend, err := vectorstore.NewBackend(cfg.VectorStore, embedder)
	if err != nil {
		return fmt.Errorf("initializing vector store: %w", err)
	}
	defer backend.Close()

	var source catalog.Source
	if cfg.Catalog.URL != "" {
		source, err = catalog.NewHTTPSource(cfg.Catalog.URL)
		if err != nil {
			return fmt.Errorf("initializing catalog source: %w", err)
		}
	} else {
		logger.Warn(ctx, "no catalog url configured, product resolution disabled")
		source = catalog.NewStaticSource(nil)
	}
	cache := catalog.NewCache(source, cfg.Catalog.RefreshTTL, logger)
	resolver := catalog.NewResolver(cache)

	p := pipeline.New(pipeline.Deps{
		Analyzer:      analyzer.New(llmClient, resolver, cfg.CompanyContext, logger),
		Expander:      expander.New(llmClient, logger),
		Retriever:     retriever.New(embedder, backend, logger),
		Reranker:      reranker.New(llmClient, logger),
		Compressor:    compressor.New(),
		Assembler:     assembler.New(llmClient, nil, logger),
		ChunkTokenCap: cfg.Pipeline.ChunkTokenCap,
		Logger:        logger,
		GapRecorder: func(ctx context.Context, query string, analysis assembler.ContextAnalysis) {
			logger.Info(ctx, "context gap recorded",
				zap.String("query", query),
				zap.String("priority", analysis.Priority),
				zap.Strings("topics", analysis.SuggestedTopics))
		},
	})

	server, err := httpapi.NewServer(p, logger, httpapi.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		QueryTimeout: cfg.Server.QueryTimeout,
	}, pipelineDefaults(cfg.Pipeline))
	if err != nil {
		return fmt.Errorf("initializing http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info(ctx, "answerd started",
		zap.String("version", version),
		zap.String("vectorstore", cfg.VectorStore.Provider),
		zap.Int("port", cfg.Server.Port))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// pipelineDefaults maps configured pipeline defaults to request options.
func pipelineDefaults(cfg config.PipelineConfig) pipeline.Options {
	return pipeline.Options{
		RetrievalCount:      cfg.RetrievalCount,
		SimilarityThreshold: cfg.SimilarityThreshold,
		MaxQueries:          cfg.MaxQueries,
		FinalChunkCount:     cfg.FinalChunkCount,
		UseReranking:        cfg.UseReranking,
		UseCompression:      cfg.UseCompression,
		UseMultiQuery:       cfg.UseMultiQuery,
	}
}
