// Package memory provides a best-effort semantic store of past
// detection descriptions for retrieval-augmented answers.
//
// Writes are asynchronous: Add enqueues onto a bounded queue drained by
// a small worker pool, so a detection burst can never block the
// perception loop or spawn unbounded goroutines. When the queue is full
// the newest write is dropped and logged. Reads embed the query and
// rank stored documents by cosine similarity.
package memory

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lumenlabs/go-lumen/pkg/inference"
)

// Document is one stored description with its embedding.
type Document struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Embedding []float64         `json:"embedding"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Result is a retrieved document with its similarity score.
type Result struct {
	Document
	Score float64
}

// Config holds store configuration.
type Config struct {
	// QueueSize bounds pending writes. Default 64.
	QueueSize int

	// Workers is the embed worker pool size. Default 2.
	Workers int

	// EmbedTimeout bounds each embedding call. Default 10s.
	EmbedTimeout time.Duration

	// Persistence is the optional backing file store.
	Persistence Persistence

	// Logger for background write failures.
	Logger *slog.Logger
}

// Store holds embedded documents and serves similarity queries.
type Store struct {
	provider inference.Provider
	cfg      Config
	logger   *slog.Logger

	mu   sync.RWMutex
	docs []Document

	queue   chan addJob
	wg      sync.WaitGroup
	closeMu sync.RWMutex
	closed  bool
}

type addJob struct {
	text string
	meta map[string]string
}

// NewStore creates a store backed by the given embedding provider and
// starts its worker pool. Previously persisted documents are loaded.
func NewStore(provider inference.Provider, cfg Config) (*Store, error) {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Store{
		provider: provider,
		cfg:      cfg,
		logger:   cfg.Logger.With("component", "memory.store"),
		queue:    make(chan addJob, cfg.QueueSize),
	}

	if cfg.Persistence != nil {
		docs, err := cfg.Persistence.Load()
		if err != nil {
			s.logger.Warn("load persisted memory failed", "error", err)
		} else {
			s.docs = docs
		}
	}

	for i := 0; i < cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}

	return s, nil
}

// Add enqueues a fire-and-forget write. It never blocks: when the
// queue is full the write is dropped and logged.
func (s *Store) Add(text string, meta map[string]string) {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- addJob{text: text, meta: meta}:
	default:
		s.logger.Warn("memory queue full, dropping write", "text", text)
	}
}

// Query embeds the question and returns the k most similar documents.
// An empty store returns an empty slice, not an error.
func (s *Store) Query(ctx context.Context, text string, k int) ([]Result, error) {
	s.mu.RLock()
	empty := len(s.docs) == 0
	s.mu.RUnlock()
	if empty {
		return nil, nil
	}

	resp, err := s.provider.Embed(ctx, &inference.EmbedRequest{Input: []string{text}})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, nil
	}
	query := resp.Embeddings[0]

	s.mu.RLock()
	results := make([]Result, 0, len(s.docs))
	for _, doc := range s.docs {
		results = append(results, Result{
			Document: doc,
			Score:    cosine(query, doc.Embedding),
		})
	}
	s.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Close stops the workers after draining queued writes.
func (s *Store) Close() error {
	s.closeMu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.closeMu.Unlock()
	s.wg.Wait()
	return nil
}

func (s *Store) worker() {
	defer s.wg.Done()

	for job := range s.queue {
		s.process(job)
	}
}

func (s *Store) process(job addJob) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.EmbedTimeout)
	defer cancel()

	resp, err := s.provider.Embed(ctx, &inference.EmbedRequest{Input: []string{job.text}})
	if err != nil {
		// Best effort; failure is isolated to this write
		s.logger.Warn("embed failed, discarding memory write",
			"text", job.text,
			"error", err,
		)
		return
	}
	if len(resp.Embeddings) == 0 {
		s.logger.Warn("embed returned no vectors", "text", job.text)
		return
	}

	doc := Document{
		ID:        uuid.NewString(),
		Text:      job.text,
		Embedding: resp.Embeddings[0],
		Metadata:  job.meta,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.docs = append(s.docs, doc)
	snapshot := make([]Document, len(s.docs))
	copy(snapshot, s.docs)
	s.mu.Unlock()

	if s.cfg.Persistence != nil {
		if err := s.cfg.Persistence.Save(snapshot); err != nil {
			s.logger.Warn("persist memory failed", "error", err)
		}
	}
}

// cosine computes cosine similarity between two vectors.
// Mismatched or zero-length vectors score 0.
func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
