package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

type memDoc struct {
	data    []byte
	version uint64
}

// Memory is an in-process Store used in tests and local development. It
// implements the same optimistic transaction semantics as the Postgres
// store: reads record document versions, commit validates them under the
// store lock and applies staged writes atomically.
type Memory struct {
	mu    sync.Mutex
	colls map[string]map[string]*memDoc
	order map[string][]string // insertion order per collection
}

func NewMemory() *Memory {
	return &Memory{
		colls: make(map[string]map[string]*memDoc),
		order: make(map[string][]string),
	}
}

func (s *Memory) Get(_ context.Context, collection, id string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.colls[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{ID: id, Data: bytes.Clone(d.data)}, nil
}

func (s *Memory) List(_ context.Context, collection string) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Document
	for _, id := range s.order[collection] {
		d := s.colls[collection][id]
		out = append(out, Document{ID: id, Data: bytes.Clone(d.data)})
	}
	return out, nil
}

func (s *Memory) Query(_ context.Context, collection string, where ...Where) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Document
	for _, id := range s.order[collection] {
		d := s.colls[collection][id]
		ok, err := matches(d.data, where)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, Document{ID: id, Data: bytes.Clone(d.data)})
		}
	}
	return out, nil
}

func (s *Memory) Add(_ context.Context, collection string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("json.Marshal: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	if s.colls[collection] == nil {
		s.colls[collection] = make(map[string]*memDoc)
	}
	s.colls[collection][id] = &memDoc{data: data, version: 1}
	s.order[collection] = append(s.order[collection], id)
	return id, nil
}

func (s *Memory) Update(_ context.Context, collection, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.colls[collection][id]
	if !ok {
		return ErrNotFound
	}
	d.data = data
	d.version++
	return nil
}

func (s *Memory) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		tx := &memTx{
			s:     s,
			reads: make(map[memRef]uint64),
		}
		if err := fn(tx); err != nil {
			return err
		}
		if s.commit(tx) {
			return nil
		}
	}
	return ErrTxConflict
}

func (s *Memory) Close() error { return nil }

type memRef struct{ collection, id string }

type memTx struct {
	s      *Memory
	reads  map[memRef]uint64 // version observed; 0 means absent
	writes []memWrite
	staged map[memRef][]byte
}

type memWrite struct {
	ref  memRef
	data []byte
}

func (t *memTx) Get(collection, id string) (Document, error) {
	ref := memRef{collection, id}

	// a read after an own write observes the staged value
	if data, ok := t.staged[ref]; ok {
		return Document{ID: id, Data: bytes.Clone(data)}, nil
	}

	t.s.mu.Lock()
	d, ok := t.s.colls[collection][id]
	var version uint64
	var data []byte
	if ok {
		version = d.version
		data = bytes.Clone(d.data)
	}
	t.s.mu.Unlock()

	if _, seen := t.reads[ref]; !seen {
		t.reads[ref] = version
	}
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{ID: id, Data: data}, nil
}

func (t *memTx) Update(collection, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}
	ref := memRef{collection, id}
	t.writes = append(t.writes, memWrite{ref: ref, data: data})
	if t.staged == nil {
		t.staged = make(map[memRef][]byte)
	}
	t.staged[ref] = data
	return nil
}

// commit validates every recorded read version and, if all still hold,
// applies the staged writes. Returns false on conflict.
func (s *Memory) commit(tx *memTx) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ref, version := range tx.reads {
		var current uint64
		if d, ok := s.colls[ref.collection][ref.id]; ok {
			current = d.version
		}
		if current != version {
			return false
		}
	}
	for _, w := range tx.writes {
		d, ok := s.colls[w.ref.collection][w.ref.id]
		if !ok {
			// writing a document deleted since the read; treat as conflict
			return false
		}
		d.data = w.data
		d.version++
	}
	return true
}

// matches reports whether the document satisfies every predicate. Values are
// compared through their canonical JSON encoding so numeric types line up.
func matches(data []byte, where []Where) (bool, error) {
	if len(where) == 0 {
		return true, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return false, fmt.Errorf("json.Unmarshal: %w", err)
	}

	for _, w := range where {
		got, ok := fields[w.Field]
		if !ok {
			return false, nil
		}
		want, err := json.Marshal(w.Value)
		if err != nil {
			return false, fmt.Errorf("json.Marshal: %w", err)
		}
		if !bytes.Equal(bytes.TrimSpace(got), want) {
			return false, nil
		}
	}
	return true, nil
}
