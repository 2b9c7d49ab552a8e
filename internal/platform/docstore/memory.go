package docstore

import (
	"context"
	"sort"
	"sync"
)

type memEntry struct {
	raw []byte
	seq int64
}

// Memory is an in-process Store. Documents are held encoded so callers never
// share maps with the store.
type Memory struct {
	mu   sync.RWMutex
	cols map[string]map[string]*memEntry
	seq  int64
}

func NewMemory() *Memory {
	return &Memory{cols: map[string]map[string]*memEntry{}}
}

func (m *Memory) Set(ctx context.Context, collection, id string, doc Document) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	raw, err := encode(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putLocked(collection, id, raw)
	return nil
}

func (m *Memory) putLocked(collection, id string, raw []byte) {
	col := m.cols[collection]
	if col == nil {
		col = map[string]*memEntry{}
		m.cols[collection] = col
	}
	if e, ok := col[id]; ok {
		e.raw = raw
		return
	}
	m.seq++
	col[id] = &memEntry{raw: raw, seq: m.seq}
}

func (m *Memory) Get(ctx context.Context, collection, id string) (Document, bool, error) {
	if err := validateKey(collection, id); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	e, ok := m.cols[collection][id]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	doc, err := decode(e.raw)
	if err != nil {
		return nil, false, backendErr("get", err)
	}
	return doc, true, nil
}

func (m *Memory) Mutate(ctx context.Context, collection, id string, fn MutateFunc) (Document, error) {
	if err := validateKey(collection, id); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.cols[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	cur, err := decode(e.raw)
	if err != nil {
		return nil, backendErr("mutate", err)
	}
	next, err := fn(cur)
	if err != nil {
		return nil, err
	}
	raw, err := encode(next)
	if err != nil {
		return nil, err
	}
	e.raw = raw
	return decode(raw)
}

func (m *Memory) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	if err := validateQuery(collection, q); err != nil {
		return nil, err
	}
	type hit struct {
		doc Document
		seq int64
	}
	m.mu.RLock()
	hits := make([]hit, 0, len(m.cols[collection]))
	for _, e := range m.cols[collection] {
		doc, err := decode(e.raw)
		if err != nil {
			m.mu.RUnlock()
			return nil, backendErr("query", err)
		}
		if matches(doc, q.Filters) {
			hits = append(hits, hit{doc: doc, seq: e.seq})
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if q.OrderBy != "" {
			av, _ := fieldString(a.doc[q.OrderBy])
			bv, _ := fieldString(b.doc[q.OrderBy])
			if av != bv {
				if q.Desc {
					return av > bv
				}
				return av < bv
			}
		}
		if q.Desc {
			return a.seq > b.seq
		}
		return a.seq < b.seq
	})

	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	out := make([]Document, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.doc)
	}
	return out, nil
}

func matches(doc Document, filters []Filter) bool {
	for _, f := range filters {
		v, ok := fieldString(doc[f.Field])
		if !ok || v != f.Value {
			return false
		}
	}
	return true
}
