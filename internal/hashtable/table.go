// Package hashtable implements a fixed-capacity, string-keyed hash table
// that resolves collisions by chaining.
//
// A Table is not safe for concurrent use; callers that share one across
// goroutines must serialize every call themselves or use SyncTable. The
// table never resizes, so chains grow without bound as Len outpaces Cap.
package hashtable

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
)

const (
	none       int32 = -1
	maxEntries       = 1<<31 - 1
)

type entry[V any] struct {
	key   string
	value V
	next  int32
}

// Table maps string keys to values of type V. Keys are copied on insert;
// values are stored as given and the table never inspects or releases
// what they refer to.
type Table[V any] struct {
	capacity int
	buckets  []int32
	entries  []entry[V]
	free     int32
	size     int
	alloc    Allocator
	closed   bool
}

type Option func(*options)

type options struct {
	alloc Allocator
}

func WithAllocator(a Allocator) Option {
	return func(o *options) {
		o.alloc = a
	}
}

// New creates a table with capacity empty buckets. A non-positive capacity
// fails with ErrInvalidCapacity before anything is allocated.
func New[V any](capacity int, opts ...Option) (*Table[V], error) {
	if capacity <= 0 {
		return nil, &OpError{Op: "create", Err: fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)}
	}

	o := options{alloc: HeapAllocator{}}
	for _, opt := range opts {
		opt(&o)
	}

	if err := o.alloc.Alloc(KindBuckets, capacity); err != nil {
		return nil, &OpError{Op: "create", Err: allocationError(err)}
	}

	buckets := make([]int32, capacity)
	for i := range buckets {
		buckets[i] = none
	}

	return &Table[V]{
		capacity: capacity,
		buckets:  buckets,
		free:     none,
		alloc:    o.alloc,
	}, nil
}

func allocationError(err error) error {
	if errors.Is(err, ErrAllocationFailed) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrAllocationFailed, err)
}

func (t *Table[V]) mustBeOpen() {
	if t.closed {
		panic(ErrClosed)
	}
}

// find returns the arena index of key's entry and of its predecessor in
// the chain, or none for either.
func (t *Table[V]) find(bucket int, key string) (idx, prev int32) {
	prev = none
	for idx = t.buckets[bucket]; idx != none; idx = t.entries[idx].next {
		if t.entries[idx].key == key {
			return idx, prev
		}
		prev = idx
	}
	return none, none
}

// Insert stores value under key. An existing key has its value replaced
// and keeps its original key copy. A new key is placed at the head of its
// bucket's chain. On error the table is left exactly as it was.
func (t *Table[V]) Insert(key string, value V) error {
	t.mustBeOpen()

	bucket := bucketIndex(key, t.capacity)
	if idx, _ := t.find(bucket, key); idx != none {
		t.entries[idx].value = value
		return nil
	}

	if t.free == none && len(t.entries) >= maxEntries {
		return &OpError{Op: "insert", Key: key, Err: fmt.Errorf("%w: entry arena full", ErrAllocationFailed)}
	}
	if err := t.alloc.Alloc(KindEntry, 1); err != nil {
		return &OpError{Op: "insert", Key: key, Err: allocationError(err)}
	}
	if err := t.alloc.Alloc(KindKey, len(key)); err != nil {
		t.alloc.Free(KindEntry, 1)
		return &OpError{Op: "insert", Key: key, Err: allocationError(err)}
	}

	e := entry[V]{
		key:   strings.Clone(key),
		value: value,
		next:  t.buckets[bucket],
	}

	var idx int32
	if t.free != none {
		idx = t.free
		t.free = t.entries[idx].next
		t.entries[idx] = e
	} else {
		idx = int32(len(t.entries))
		t.entries = append(t.entries, e)
	}

	t.buckets[bucket] = idx
	t.size++
	return nil
}

// Lookup returns the value stored under key. ok is false when the key is
// absent, which is not an error.
func (t *Table[V]) Lookup(key string) (value V, ok bool) {
	t.mustBeOpen()

	idx, _ := t.find(bucketIndex(key, t.capacity), key)
	if idx == none {
		return value, false
	}
	return t.entries[idx].value, true
}

// Delete removes key and reports whether it was present.
func (t *Table[V]) Delete(key string) bool {
	t.mustBeOpen()

	bucket := bucketIndex(key, t.capacity)
	idx, prev := t.find(bucket, key)
	if idx == none {
		return false
	}

	if prev == none {
		t.buckets[bucket] = t.entries[idx].next
	} else {
		t.entries[prev].next = t.entries[idx].next
	}

	t.release(idx)
	t.size--
	return true
}

func (t *Table[V]) release(idx int32) {
	t.alloc.Free(KindKey, len(t.entries[idx].key))
	t.alloc.Free(KindEntry, 1)

	t.entries[idx] = entry[V]{next: t.free}
	t.free = idx
}

func (t *Table[V]) Len() int {
	t.mustBeOpen()
	return t.size
}

func (t *Table[V]) Cap() int {
	t.mustBeOpen()
	return t.capacity
}

// Walk calls fn for every entry, bucket by bucket in index order and each
// chain from head to tail, until fn returns false. fn must not modify the
// table.
func (t *Table[V]) Walk(fn func(bucket int, key string, value V) bool) {
	t.mustBeOpen()

	for b, head := range t.buckets {
		for idx := head; idx != none; idx = t.entries[idx].next {
			if !fn(b, t.entries[idx].key, t.entries[idx].value) {
				return
			}
		}
	}
}

// All yields key/value pairs in Walk order.
func (t *Table[V]) All() iter.Seq2[string, V] {
	return func(yield func(string, V) bool) {
		t.Walk(func(_ int, key string, value V) bool {
			return yield(key, value)
		})
	}
}

func (t *Table[V]) Keys() []string {
	keys := make([]string, 0, t.Len())
	for k := range t.All() {
		keys = append(keys, k)
	}
	return keys
}

type Stats struct {
	Size         int
	Capacity     int
	LoadFactor   float64
	EmptyBuckets int
	LongestChain int
}

func (t *Table[V]) Stats() Stats {
	t.mustBeOpen()

	s := Stats{
		Size:       t.size,
		Capacity:   t.capacity,
		LoadFactor: float64(t.size) / float64(t.capacity),
	}
	for _, head := range t.buckets {
		n := 0
		for idx := head; idx != none; idx = t.entries[idx].next {
			n++
		}
		if n == 0 {
			s.EmptyBuckets++
		}
		if n > s.LongestChain {
			s.LongestChain = n
		}
	}
	return s
}

// Fprint writes a human-readable dump of the non-empty buckets to w.
func (t *Table[V]) Fprint(w io.Writer) error {
	t.mustBeOpen()

	if _, err := fmt.Fprintf(w, "Hash Table (size: %d, capacity: %d)\n", t.size, t.capacity); err != nil {
		return err
	}

	var sb strings.Builder
	for b, head := range t.buckets {
		if head == none {
			continue
		}
		sb.Reset()
		fmt.Fprintf(&sb, "  Bucket %d:", b)
		for idx := head; idx != none; idx = t.entries[idx].next {
			fmt.Fprintf(&sb, " [%s]->", t.entries[idx].key)
		}
		sb.WriteString("NULL\n")
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table[V]) String() string {
	var sb strings.Builder
	_ = t.Fprint(&sb)
	return sb.String()
}

// Clear releases every entry and its key copy and keeps the bucket array,
// leaving an empty table of the same capacity. It allocates nothing and
// cannot fail.
func (t *Table[V]) Clear() {
	t.mustBeOpen()
	t.clear()
}

func (t *Table[V]) clear() {
	for b, head := range t.buckets {
		for idx := head; idx != none; {
			next := t.entries[idx].next
			t.release(idx)
			idx = next
		}
		t.buckets[b] = none
	}
	t.entries = t.entries[:0]
	t.free = none
	t.size = 0
}

// Close releases every entry, its key copy and the bucket array. The table
// must not be used afterwards: every method, Close included, panics on a
// closed table.
func (t *Table[V]) Close() {
	t.mustBeOpen()

	t.clear()
	t.alloc.Free(KindBuckets, t.capacity)

	t.buckets = nil
	t.entries = nil
	t.closed = true
}
