// Package dedupe makes job submission idempotent by remembering the job
// created for each client submission key.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

// DefaultMaxSize bounds the deduper when no option is given.
const DefaultMaxSize = 10_000

// Deduper remembers which job a submission key produced.
type Deduper interface {
	// SeenAndRecord atomically checks key and records jobID for it if it is new.
	// When key was already recorded it returns the earlier job id and true.
	SeenAndRecord(ctx context.Context, key, jobID string) (string, bool)

	// Unrecord forgets key so the submission can be retried, e.g. after the
	// queue refused the job.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

type entry struct {
	key   string
	jobID string
}

// inMemoryDeduper keeps keys in insertion order so the oldest is evicted first.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	maxSize int
}

// NewInMemoryDeduper creates a new in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key, jobID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[key]; ok {
		return el.Value.(*entry).jobID, true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.seen, oldest.Value.(*entry).key)
	}
	d.seen[key] = d.order.PushBack(&entry{key: key, jobID: jobID})
	return jobID, false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[key]; ok {
		d.order.Remove(el)
		delete(d.seen, key)
	}
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.order.Len())
}
