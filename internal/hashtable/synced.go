package hashtable

import (
	"io"
	"sync"

	"go.uber.org/atomic"
)

// SyncTable guards a Table with a single mutex held for the duration of
// each call. Counters are updated atomically and can be read without the
// lock.
type SyncTable[V any] struct {
	mu    sync.Mutex
	table *Table[V]

	hits    *atomic.Int64
	misses  *atomic.Int64
	inserts *atomic.Int64
	deletes *atomic.Int64
}

func NewSync[V any](capacity int, opts ...Option) (*SyncTable[V], error) {
	t, err := New[V](capacity, opts...)
	if err != nil {
		return nil, err
	}
	return &SyncTable[V]{
		table:   t,
		hits:    atomic.NewInt64(0),
		misses:  atomic.NewInt64(0),
		inserts: atomic.NewInt64(0),
		deletes: atomic.NewInt64(0),
	}, nil
}

func (s *SyncTable[V]) Insert(key string, value V) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.table.Insert(key, value); err != nil {
		return err
	}
	s.inserts.Inc()
	return nil
}

func (s *SyncTable[V]) Lookup(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.table.Lookup(key)
	if ok {
		s.hits.Inc()
	} else {
		s.misses.Inc()
	}
	return v, ok
}

func (s *SyncTable[V]) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.table.Delete(key)
	if removed {
		s.deletes.Inc()
	}
	return removed
}

func (s *SyncTable[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Len()
}

func (s *SyncTable[V]) Cap() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Cap()
}

func (s *SyncTable[V]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Stats()
}

// Walk holds the lock for the whole traversal; fn must not call back into s.
func (s *SyncTable[V]) Walk(fn func(bucket int, key string, value V) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table.Walk(fn)
}

func (s *SyncTable[V]) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Keys()
}

func (s *SyncTable[V]) Fprint(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Fprint(w)
}

// Reset empties the table in place, keeping its capacity and allocator.
func (s *SyncTable[V]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table.Clear()
}

func (s *SyncTable[V]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table.Close()
}

type Counters struct {
	Hits    int64
	Misses  int64
	Inserts int64
	Deletes int64
}

func (s *SyncTable[V]) Counters() Counters {
	return Counters{
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
		Inserts: s.inserts.Load(),
		Deletes: s.deletes.Load(),
	}
}
