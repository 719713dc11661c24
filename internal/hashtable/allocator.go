package hashtable

import (
	"fmt"
	"sync"
)

type Kind byte

const (
	KindBuckets Kind = iota
	KindEntry
	KindKey
)

func (k Kind) String() string {
	switch k {
	case KindBuckets:
		return "buckets"
	case KindEntry:
		return "entry"
	case KindKey:
		return "key"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}

// MaxCapacity is the largest bucket count HeapAllocator will grant. Bucket
// heads are int32 arena indices.
const MaxCapacity = 1<<31 - 1

// Allocator is asked before the table grows and told when it shrinks. n is
// a byte length for KindKey and an element count for the other kinds. An
// Alloc error leaves nothing to Free.
type Allocator interface {
	Alloc(kind Kind, n int) error
	Free(kind Kind, n int)
}

// HeapAllocator lets the Go heap back every request it can represent.
type HeapAllocator struct{}

func (HeapAllocator) Alloc(kind Kind, n int) error {
	if n < 0 || (kind == KindBuckets && n > MaxCapacity) {
		return fmt.Errorf("%w: %d %s", ErrAllocationFailed, n, kind)
	}
	return nil
}

func (HeapAllocator) Free(Kind, int) {}

const (
	bucketOverhead = 4
	entryOverhead  = 48
	keyOverhead    = 16
)

// EstimateSize approximates the bytes an allocation of n units of kind costs.
func EstimateSize(kind Kind, n int) int64 {
	switch kind {
	case KindBuckets:
		return int64(n) * bucketOverhead
	case KindEntry:
		return int64(n) * entryOverhead
	case KindKey:
		return int64(n) + keyOverhead
	default:
		return 0
	}
}

// LimitAllocator refuses any allocation that would push the estimated
// footprint past MaxMemory. It never evicts. Safe for concurrent use.
type LimitAllocator struct {
	MaxMemory int64

	mu   sync.Mutex
	used int64
}

func NewLimitAllocator(maxMemory int64) *LimitAllocator {
	return &LimitAllocator{MaxMemory: maxMemory}
}

func (l *LimitAllocator) Alloc(kind Kind, n int) error {
	size := EstimateSize(kind, n)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.used+size > l.MaxMemory {
		return fmt.Errorf("%w: %s of %d bytes exceeds maxmemory %d (used %d)",
			ErrAllocationFailed, kind, size, l.MaxMemory, l.used)
	}
	l.used += size
	return nil
}

func (l *LimitAllocator) Free(kind Kind, n int) {
	size := EstimateSize(kind, n)

	l.mu.Lock()
	l.used -= size
	l.mu.Unlock()
}

func (l *LimitAllocator) Used() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.used
}
