package store

import (
	"context"
	"math"
	"sort"
	"sync"
)

// Memory is a brute-force in-process vector store. It mirrors the Postgres
// backend's semantics, including the not-initialized failure mode, so tests
// and single-machine setups can run without a database.
type Memory struct {
	mu      sync.RWMutex
	metric  string
	ready   bool
	records map[string]Record
}

func NewMemory(metric string) *Memory {
	return &Memory{
		metric:  metric,
		records: make(map[string]Record),
	}
}

func (m *Memory) EnsureCollection(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		m.ready = true
		m.records = make(map[string]Record)
	}
	return nil
}

func (m *Memory) DropCollection(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = false
	m.records = make(map[string]Record)
	return nil
}

func (m *Memory) Upsert(ctx context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return ErrIndexNotInitialized
	}
	for _, rec := range records {
		m.records[rec.ID] = rec
	}
	return nil
}

func (m *Memory) DeleteDocument(ctx context.Context, documentKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return ErrIndexNotInitialized
	}
	for id, rec := range m.records {
		if rec.Meta.DocumentKey == documentKey {
			delete(m.records, id)
		}
	}
	return nil
}

func (m *Memory) Query(ctx context.Context, embedding []float32, k int, filter Filter) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.ready {
		return nil, ErrIndexNotInitialized
	}
	if k <= 0 {
		return nil, nil
	}

	hits := make([]Hit, 0, len(m.records))
	for _, rec := range m.records {
		if filter.Kind != "" && rec.Meta.Kind != filter.Kind {
			continue
		}
		hits = append(hits, Hit{
			ID:       rec.ID,
			Text:     rec.Text,
			Meta:     rec.Meta,
			Distance: m.distance(embedding, rec.Embedding),
		})
	}

	// Ties break on ID to keep the ranking reproducible.
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ID < hits[j].ID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *Memory) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.ready {
		return 0, ErrIndexNotInitialized
	}
	return len(m.records), nil
}

func (m *Memory) distance(a, b []float32) float64 {
	if m.metric == "l2" {
		return l2Distance(a, b)
	}
	return cosineDistance(a, b)
}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

func l2Distance(a, b []float32) float64 {
	var sum float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

var _ VectorStore = (*Memory)(nil)
