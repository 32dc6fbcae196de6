package similarity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/raphaelgruber/plagscan/internal/config"
	"github.com/raphaelgruber/plagscan/internal/metrics"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// maxCachedVectors bounds the vector cache; beyond it vectors are computed
// but not stored.
const maxCachedVectors = 50000

// probeText is embedded by Ready.
const probeText = "plagscan readiness probe"

// ErrEmptyEmbedding indicates the backend returned no vector.
var ErrEmptyEmbedding = errors.New("no embedding returned")

// Embedding scores texts by the cosine similarity of their embedding vectors.
type Embedding struct {
	model     embeddings.Embedder
	modelName string
	maxChars  int
	cache     *xsync.MapOf[string, []float32]
	metrics   *metrics.Collector
	logger    *slog.Logger
}

// EmbeddingOption configures an Embedding scorer.
type EmbeddingOption func(*Embedding)

// WithMetrics records backend call timings under metrics.OpEmbedding.
func WithMetrics(c *metrics.Collector) EmbeddingOption {
	return func(e *Embedding) { e.metrics = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) EmbeddingOption {
	return func(e *Embedding) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEmbedding wraps an existing langchaingo embedder. Inputs longer than
// maxChars runes are truncated before embedding; maxChars <= 0 disables truncation.
func NewEmbedding(model embeddings.Embedder, modelName string, maxChars int, opts ...EmbeddingOption) *Embedding {
	e := &Embedding{
		model:     model,
		modelName: modelName,
		maxChars:  maxChars,
		cache:     xsync.NewMapOf[string, []float32](),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewEmbeddingFromConfig creates the embedding backend named by cfg.EmbedProvider.
func NewEmbeddingFromConfig(cfg config.Config, opts ...EmbeddingOption) (*Embedding, error) {
	var model embeddings.Embedder
	var err error

	switch cfg.EmbedProvider {
	case config.ProviderOllama:
		llm, ollamaErr := ollama.New(
			ollama.WithModel(cfg.EmbedModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if ollamaErr != nil {
			return nil, fmt.Errorf("create ollama client: %w", ollamaErr)
		}
		model, err = embeddings.NewEmbedder(llm)
		if err != nil {
			return nil, fmt.Errorf("create ollama embedder: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		llm, openaiErr := openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithEmbeddingModel(cfg.EmbedModel),
		)
		if openaiErr != nil {
			return nil, fmt.Errorf("create openai client: %w", openaiErr)
		}
		model, err = embeddings.NewEmbedder(llm)
		if err != nil {
			return nil, fmt.Errorf("create openai embedder: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.EmbedProvider)
	}

	return NewEmbedding(model, cfg.EmbedModel, cfg.MaxInputChars, opts...), nil
}

// Name implements Scorer.
func (e *Embedding) Name() string { return "embedding:" + e.modelName }

// Score implements Scorer.
func (e *Embedding) Score(ctx context.Context, a, b string) (float64, error) {
	va, err := e.vector(ctx, a)
	if err != nil {
		return 0, err
	}
	vb, err := e.vector(ctx, b)
	if err != nil {
		return 0, err
	}
	return clamp(Cosine(va, vb)), nil
}

// Ready embeds a probe string, bypassing the cache.
func (e *Embedding) Ready(ctx context.Context) error {
	_, err := e.embed(ctx, probeText)
	return err
}

// CacheSize returns the number of cached vectors.
func (e *Embedding) CacheSize() int {
	return e.cache.Size()
}

func (e *Embedding) vector(ctx context.Context, text string) ([]float32, error) {
	text = truncate(text, e.maxChars)
	if v, ok := e.cache.Load(text); ok {
		return v, nil
	}
	v, err := e.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if e.cache.Size() < maxCachedVectors {
		e.cache.Store(text, v)
	}
	return v, nil
}

func (e *Embedding) embed(ctx context.Context, text string) ([]float32, error) {
	textLen := len(text)
	start := time.Now()
	vectors, err := e.model.EmbedDocuments(ctx, []string{text})
	duration := time.Since(start)

	if e.metrics != nil {
		if err != nil {
			e.metrics.RecordFailure(metrics.OpEmbedding, duration)
		} else {
			e.metrics.RecordTiming(metrics.OpEmbedding, duration)
		}
	}
	if err != nil {
		e.logger.Warn("embedding failed", "model", e.modelName, "text_len", textLen, "duration_ms", duration.Milliseconds(), "error", err)
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, ErrEmptyEmbedding
	}

	e.logger.Debug("embedding complete", "model", e.modelName, "text_len", textLen, "duration_ms", duration.Milliseconds())
	return vectors[0], nil
}

// Cosine returns the cosine similarity of two vectors, or 0 if their
// lengths differ or either has zero norm.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
