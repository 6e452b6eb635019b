package memory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/lumenlabs/go-lumen/pkg/inference"
)

// embedderFor returns a mock provider mapping known texts to fixed
// vectors so similarity ordering is deterministic.
func embedderFor(vectors map[string][]float64) *inference.Mock {
	m := inference.NewMock()
	m.EmbedFunc = func(ctx context.Context, req *inference.EmbedRequest) (*inference.EmbedResponse, error) {
		out := make([][]float64, 0, len(req.Input))
		for _, text := range req.Input {
			vec, ok := vectors[text]
			if !ok {
				vec = []float64{0, 0, 1}
			}
			out = append(out, vec)
		}
		return &inference.EmbedResponse{Embeddings: out}, nil
	}
	return m
}

func waitForLen(t *testing.T, s *Store, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Len() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("store did not reach %d documents, have %d", n, s.Len())
}

func TestStoreAddAndQuery(t *testing.T) {
	mock := embedderFor(map[string][]float64{
		"a near chair at center": {1, 0, 0},
		"a far dog at left":      {0, 1, 0},
		"chair":                  {0.9, 0.1, 0},
	})

	s, err := NewStore(mock, Config{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer s.Close()

	s.Add("a near chair at center", map[string]string{"label": "chair"})
	s.Add("a far dog at left", nil)
	waitForLen(t, s, 2)

	results, err := s.Query(context.Background(), "chair", 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Text != "a near chair at center" {
		t.Errorf("expected chair doc first, got %q", results[0].Text)
	}
	if results[0].Metadata["label"] != "chair" {
		t.Errorf("metadata not preserved: %v", results[0].Metadata)
	}
}

func TestStoreQueryEmpty(t *testing.T) {
	s, err := NewStore(inference.NewMock(), Config{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer s.Close()

	results, err := s.Query(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("Query on empty store: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestStoreEmbedFailureDiscardsWrite(t *testing.T) {
	mock := inference.NewMock()
	failed := make(chan struct{}, 1)
	mock.EmbedFunc = func(ctx context.Context, req *inference.EmbedRequest) (*inference.EmbedResponse, error) {
		select {
		case failed <- struct{}{}:
		default:
		}
		return nil, inference.ErrProviderUnavailable
	}

	s, err := NewStore(mock, Config{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer s.Close()

	s.Add("will fail", nil)

	select {
	case <-failed:
	case <-time.After(2 * time.Second):
		t.Fatal("embed was never attempted")
	}
	// give the worker a beat to finish the discarded job
	time.Sleep(20 * time.Millisecond)
	if s.Len() != 0 {
		t.Errorf("failed write should not be stored, have %d docs", s.Len())
	}
}

func TestStorePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	p, err := NewJSONFile(path)
	if err != nil {
		t.Fatalf("NewJSONFile: %v", err)
	}

	mock := embedderFor(map[string][]float64{"remembered": {1, 0, 0}})

	s, err := NewStore(mock, Config{Persistence: p})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	s.Add("remembered", nil)
	waitForLen(t, s, 1)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := NewStore(mock, Config{Persistence: p})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	if s2.Len() != 1 {
		t.Fatalf("expected 1 persisted doc, got %d", s2.Len())
	}
	results, err := s2.Query(context.Background(), "remembered", 5)
	if err != nil {
		t.Fatalf("Query after reload: %v", err)
	}
	if len(results) != 1 || results[0].Text != "remembered" {
		t.Errorf("persisted doc not retrievable: %+v", results)
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 0}, []float64{1, 0}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"mismatched length", []float64{1}, []float64{1, 0}, 0},
		{"zero vector", []float64{0, 0}, []float64{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosine(tt.a, tt.b)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("cosine(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
