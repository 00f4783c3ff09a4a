package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Tracer for OpenTelemetry instrumentation.
var qdrantTracer = otel.Tracer("answerd.vectorstore.qdrant")

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string

	// Port is the Qdrant gRPC port (NOT the HTTP REST port).
	// Default: 6334
	Port int

	// CollectionName is the collection holding the document chunks.
	CollectionName string

	// VectorSize is the dimensionality of embeddings.
	// MUST match the embedder's output dimensions.
	VectorSize uint64

	// UseTLS enables TLS encryption for the gRPC connection.
	UseTLS bool

	// MaxRetries is the maximum number of retry attempts for transient
	// failures. Default: 3
	MaxRetries int

	// RetryBackoff is the initial backoff duration for retries.
	// Doubles on each retry. Default: 1 second
	RetryBackoff time.Duration

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.CollectionName == "" {
		return fmt.Errorf("%w: collection name required", ErrInvalidConfig)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return nil
}

// IsTransientError checks if an error is transient (should retry).
// Returns true for network timeouts and temporary unavailability.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	st, ok := status.FromError(err)
	if !ok {
		return false
	}

	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// QdrantBackend implements Backend using Qdrant's native gRPC client.
//
// The gRPC transport (port 6334) bypasses Qdrant's HTTP layer and its
// payload size limits, and performs better under retrieval fan-out.
type QdrantBackend struct {
	client *qdrant.Client
	config QdrantConfig
}

// NewQdrantBackend creates a QdrantBackend with the given configuration
// and verifies connectivity with a health check.
func NewQdrantBackend(config QdrantConfig) (*QdrantBackend, error) {
	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if err := ValidateCollectionName(config.CollectionName); err != nil {
		return nil, fmt.Errorf("validating collection name: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	backend := &QdrantBackend{
		client: client,
		config: config,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: health check failed: %v", ErrConnectionFailed, err)
	}

	return backend, nil
}

// Search performs similarity search against the configured collection.
func (b *QdrantBackend) Search(ctx context.Context, vector []float32, limit int, scoreThreshold float32, filter map[string]any) ([]Hit, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantBackend.Search")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", b.config.CollectionName),
		attribute.Int("limit", limit),
	)

	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector cannot be empty")
	}

	query := &qdrant.QueryPoints{
		CollectionName: b.config.CollectionName,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         buildQdrantFilter(filter),
	}
	if scoreThreshold > 0 {
		query.ScoreThreshold = qdrant.PtrOf(scoreThreshold)
	}

	var points []*qdrant.ScoredPoint
	err := b.retryOperation(ctx, func() error {
		res, err := b.client.Query(ctx, query)
		if err != nil {
			return err
		}
		points = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("searching collection %s: %w", b.config.CollectionName, err)
	}

	hits := make([]Hit, len(points))
	for i, point := range points {
		hits[i] = pointToHit(point)
	}

	span.SetAttributes(attribute.Int("results_count", len(hits)))
	span.SetStatus(codes.Ok, "success")
	return hits, nil
}

// AddDocuments upserts document chunks into the configured collection.
// Vectors must be supplied via the "vector" metadata key by the caller;
// ingest normally goes through the chromem backend or external tooling,
// so this path is intentionally minimal.
func (b *QdrantBackend) AddDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return ErrEmptyDocuments
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for _, doc := range docs {
		vec, ok := doc.Metadata["vector"].([]float32)
		if !ok {
			return fmt.Errorf("document %s missing vector metadata", doc.ID)
		}

		payload := map[string]any{"content": doc.Content, "id": doc.ID}
		for k, v := range doc.Metadata {
			if k == "vector" {
				continue
			}
			payload[k] = v
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(doc.ID)),
			Vectors: qdrant.NewVectors(vec...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	return b.retryOperation(ctx, func() error {
		_, err := b.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: b.config.CollectionName,
			Points:         points,
		})
		return err
	})
}

// pointID maps a chunk id onto a Qdrant point id. Qdrant only accepts
// UUID (or integer) point ids, so anything else becomes a deterministic
// UUID derived from the id; the original stays in the payload.
func pointID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

// Close closes the gRPC connection.
func (b *QdrantBackend) Close() error {
	return b.client.Close()
}

// retryOperation retries transient failures with exponential backoff.
func (b *QdrantBackend) retryOperation(ctx context.Context, operation func() error) error {
	backoff := b.config.RetryBackoff

	var lastErr error
	for attempt := 0; attempt <= b.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		lastErr = operation()
		if lastErr == nil {
			return nil
		}
		if !IsTransientError(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("operation failed after %d retries: %w", b.config.MaxRetries, lastErr)
}

// buildQdrantFilter converts a metadata filter map into a Qdrant filter.
// Only string values are supported (keyword match).
func buildQdrantFilter(filter map[string]any) *qdrant.Filter {
	sf := stringFilter(filter)
	if sf == nil {
		return nil
	}

	conditions := make([]*qdrant.Condition, 0, len(sf))
	for key, value := range sf {
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: key,
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Keyword{Keyword: value},
					},
				},
			},
		})
	}
	return &qdrant.Filter{Must: conditions}
}

// pointToHit converts a Qdrant scored point to a Hit.
func pointToHit(point *qdrant.ScoredPoint) Hit {
	hit := Hit{Score: point.Score}

	if point.Payload != nil {
		hit.Metadata = make(map[string]any, len(point.Payload))
		for k, v := range point.Payload {
			switch val := v.Kind.(type) {
			case *qdrant.Value_StringValue:
				hit.Metadata[k] = val.StringValue
				switch k {
				case "content":
					hit.Content = val.StringValue
				case "id":
					hit.ID = val.StringValue
				case "filename":
					hit.Filename = val.StringValue
				}
			case *qdrant.Value_IntegerValue:
				hit.Metadata[k] = val.IntegerValue
			case *qdrant.Value_DoubleValue:
				hit.Metadata[k] = val.DoubleValue
			case *qdrant.Value_BoolValue:
				hit.Metadata[k] = val.BoolValue
			}
		}
	}

	if hit.ID == "" {
		if id := point.Id.GetUuid(); id != "" {
			hit.ID = id
		}
	}

	return hit
}
