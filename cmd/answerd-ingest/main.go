// Answerd-ingest loads a JSON chunk dump into the vector store answerd
// queries against.
//
// The input file is a JSON array of chunk records:
//
//	[{"id": "...", "content": "...", "filename": "pillow.pdf",
//	  "productName": "Deep Sleep Pillow", "documentId": "doc-1"}]
//
// Usage:
//
//	answerd-ingest -config config.yaml -input chunks.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/answerforge/answerd/internal/config"
	"github.com/answerforge/answerd/internal/embeddings"
	"github.com/answerforge/answerd/internal/logging"
	"github.com/answerforge/answerd/internal/vectorstore"
)

// chunkRecord is one entry of the input dump.
type chunkRecord struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	Filename    string `json:"filename"`
	ProductName string `json:"productName"`
	DocumentID  string `json:"documentId"`
}

func main() {
	configPath := flag.String("config", "", "path to config file (YAML)")
	inputPath := flag.String("input", "", "path to JSON chunk dump")
	batchSize := flag.Int("batch", 32, "documents per upsert batch")
	flag.Parse()

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: answerd-ingest -config config.yaml -input chunks.json")
		os.Exit(1)
	}

	if err := run(context.Background(), *configPath, *inputPath, *batchSize); err != nil {
		log.Fatalf("Ingest error: %v", err)
	}
}

func run(ctx context.Context, configPath, inputPath string, batchSize int) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync()

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

	records, err := readRecords(inputPath)
	if err != nil {
		return err
	}
	logger.Info(ctx, "ingesting chunks",
		zap.Int("count", len(records)),
		zap.String("provider", cfg.VectorStore.Provider))

	// The qdrant backend expects caller-supplied vectors; chromem embeds
	// through its own embedding function.
	needVectors := cfg.VectorStore.Provider == "qdrant"

	if batchSize <= 0 {
		batchSize = 32
	}
	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		docs, err := toDocuments(ctx, embedder, batch, needVectors)
		if err != nil {
			return fmt.Errorf("preparing batch at %d: %w", start, err)
		}
		if err := backend.AddDocuments(ctx, docs); err != nil {
			return fmt.Errorf("upserting batch at %d: %w", start, err)
		}
		logger.Info(ctx, "batch ingested", zap.Int("from", start), zap.Int("to", end))
	}

	logger.Info(ctx, "ingest complete", zap.Int("chunks", len(records)))
	return nil
}

func readRecords(path string) ([]chunkRecord, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	var records []chunkRecord
	if err := json.Unmarshal(content, &records); err != nil {
		return nil, fmt.Errorf("parsing input: %w", err)
	}
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.NewString()
		}
		if records[i].Content == "" {
			return nil, fmt.Errorf("record %d has empty content", i)
		}
	}
	return records, nil
}

func toDocuments(ctx context.Context, embedder *embeddings.Service, batch []chunkRecord, needVectors bool) ([]vectorstore.Document, error) {
	var vectors [][]float32
	if needVectors {
		texts := make([]string, len(batch))
		for i, record := range batch {
			texts[i] = record.Content
		}
		var err error
		vectors, err = embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embedding batch: %w", err)
		}
	}

	docs := make([]vectorstore.Document, len(batch))
	for i, record := range batch {
		metadata := map[string]any{
			"filename":     record.Filename,
			"product_name": record.ProductName,
			"document_id":  record.DocumentID,
		}
		if needVectors {
			metadata["vector"] = vectors[i]
		}
		docs[i] = vectorstore.Document{
			ID:       record.ID,
			Content:  record.Content,
			Metadata: metadata,
		}
	}
	return docs, nil
}
