// Package vocabulary assigns the dense, global term ids shared by every block
// worker. All implementations guarantee that concurrent GetOrCreate calls for
// one term return one id, and that no id is ever handed out twice.
package vocabulary

import (
	"context"
	"sync"
	"sync/atomic"

	farmhash "github.com/leemcloughlin/gofarmhash"

	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/index"
)

type Service interface {
	GetOrCreate(ctx context.Context, term string) (index.TermID, error)
}

const DefaultSegments = 64

// Memory is a segmented in-process vocabulary. A term hashes to one segment
// and only that segment's lock is held while it is resolved; ids come from a
// single counter bumped only when a term is created, so they stay dense.
type Memory struct {
	segments []segment
	next     atomic.Uint32
}

type segment struct {
	mu    sync.RWMutex
	terms map[string]index.TermID
}

// NewMemory creates a vocabulary with the given number of segments.
func NewMemory(segments int) *Memory {
	if segments <= 0 {
		segments = DefaultSegments
	}
	m := &Memory{segments: make([]segment, segments)}
	for i := range m.segments {
		m.segments[i].terms = make(map[string]index.TermID)
	}
	return m
}

func (m *Memory) segmentFor(term string) *segment {
	h := farmhash.Hash32WithSeed([]byte(term), 0)
	return &m.segments[h%uint32(len(m.segments))]
}

func (m *Memory) GetOrCreate(_ context.Context, term string) (index.TermID, error) {
	seg := m.segmentFor(term)

	seg.mu.RLock()
	id, ok := seg.terms[term]
	seg.mu.RUnlock()
	if ok {
		return id, nil
	}

	seg.mu.Lock()
	defer seg.mu.Unlock()
	if id, ok := seg.terms[term]; ok {
		return id, nil
	}
	id = index.TermID(m.next.Add(1) - 1)
	seg.terms[term] = id
	return id, nil
}

// Lookup returns the id of a term without creating it.
func (m *Memory) Lookup(term string) (index.TermID, bool) {
	seg := m.segmentFor(term)
	seg.mu.RLock()
	defer seg.mu.RUnlock()
	id, ok := seg.terms[term]
	return id, ok
}

// Len returns the number of ids handed out so far.
func (m *Memory) Len() int {
	return int(m.next.Load())
}

// Snapshot copies the full term to id mapping.
func (m *Memory) Snapshot() map[string]index.TermID {
	out := make(map[string]index.TermID, m.Len())
	for i := range m.segments {
		seg := &m.segments[i]
		seg.mu.RLock()
		for term, id := range seg.terms {
			out[term] = id
		}
		seg.mu.RUnlock()
	}
	return out
}

// Restore seeds the vocabulary from a persisted mapping so a new run keeps
// the ids of an earlier one. It must be called before any GetOrCreate.
func (m *Memory) Restore(terms map[string]index.TermID) {
	var next uint32
	for term, id := range terms {
		seg := m.segmentFor(term)
		seg.mu.Lock()
		seg.terms[term] = id
		seg.mu.Unlock()
		if uint32(id)+1 > next {
			next = uint32(id) + 1
		}
	}
	m.next.Store(next)
}
