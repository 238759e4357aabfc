package vectorindex

import (
	"context"
	"math"
	"sort"
	"sync"
)

// Memory is a brute-force in-process index using cosine similarity.
type Memory struct {
	mu      sync.RWMutex
	order   []string
	records map[string]Record
}

func NewMemory() *Memory {
	return &Memory{records: map[string]Record{}}
}

func (m *Memory) Upsert(_ context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		if _, ok := m.records[r.ID]; !ok {
			m.order = append(m.order, r.ID)
		}
		vec := make([]float32, len(r.Vector))
		copy(vec, r.Vector)
		r.Vector = vec
		m.records[r.ID] = r
	}
	return nil
}

func (m *Memory) Query(_ context.Context, vector []float32, topK int, filter Filter) ([]Match, error) {
	if topK < 1 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Match, 0, len(m.order))
	for _, id := range m.order {
		r := m.records[id]
		if filter.UserID != "" && r.Metadata.UserID != filter.UserID {
			continue
		}
		out = append(out, Match{ID: r.ID, Score: cosine(vector, r.Vector), Metadata: r.Metadata})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
