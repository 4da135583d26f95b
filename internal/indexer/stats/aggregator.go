// Package stats aggregates posting-list statistics reported concurrently by
// block workers and announces when every block index is ready for merging.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/errors"
)

// Document-frequency histogram buckets (upper bounds, inclusive).
var dfBuckets = []int{1, 2, 5, 10, 100, 1000}

type Summary struct {
	PostingLists   int64          `json:"posting_lists"`
	Postings       int64          `json:"postings"`
	Occurrences    int64          `json:"occurrences"`
	MaxDocFreq     int            `json:"max_doc_freq"`
	DocFreqBuckets map[string]int `json:"doc_freq_buckets"`
	Blocks         []string       `json:"blocks"`
	Ready          bool           `json:"ready"`
	ReadyAt        time.Time      `json:"ready_at,omitempty"`
}

// Notifier is told once that the merge phase may start.
type Notifier interface {
	MergeInputReady(ctx context.Context, summary Summary) error
}

type Aggregator struct {
	postingLists atomic.Int64
	postings     atomic.Int64
	occurrences  atomic.Int64

	mu         sync.Mutex
	maxDocFreq int
	buckets    []int
	signalled  bool
	final      Summary

	notifier Notifier
	logger   *slog.Logger
}

// NewAggregator creates an Aggregator; notifier may be nil.
func NewAggregator(notifier Notifier) *Aggregator {
	return &Aggregator{
		buckets:  make([]int, len(dfBuckets)+1),
		notifier: notifier,
		logger:   slog.Default().With("component", "stats-aggregator"),
	}
}

// ProcessPostingList records one term's posting list from one block. Safe
// for concurrent use by every worker.
func (a *Aggregator) ProcessPostingList(pl index.PostingList) {
	a.postingLists.Add(1)
	a.postings.Add(int64(len(pl)))
	a.occurrences.Add(int64(pl.Occurrences()))

	df := len(pl)
	a.mu.Lock()
	if df > a.maxDocFreq {
		a.maxDocFreq = df
	}
	a.buckets[bucketFor(df)]++
	a.mu.Unlock()
}

func bucketFor(df int) int {
	for i, upper := range dfBuckets {
		if df <= upper {
			return i
		}
	}
	return len(dfBuckets)
}

func bucketLabel(i int) string {
	if i == len(dfBuckets) {
		return fmt.Sprintf(">%d", dfBuckets[len(dfBuckets)-1])
	}
	return fmt.Sprintf("<=%d", dfBuckets[i])
}

// SignalEndOfMergeInputReady freezes the statistics once every block index
// is on disk and forwards them to the notifier. It may be called only once.
func (a *Aggregator) SignalEndOfMergeInputReady(ctx context.Context, blocks []string) error {
	a.mu.Lock()
	if a.signalled {
		a.mu.Unlock()
		return apperrors.ErrAlreadySignalled
	}
	a.signalled = true
	summary := a.summaryLocked()
	summary.Blocks = append([]string(nil), blocks...)
	summary.Ready = true
	summary.ReadyAt = time.Now().UTC()
	a.final = summary
	a.mu.Unlock()

	a.logger.Info("merge input ready",
		"blocks", len(blocks),
		"posting_lists", summary.PostingLists,
		"postings", summary.Postings,
		"max_doc_freq", summary.MaxDocFreq,
	)
	if a.notifier == nil {
		return nil
	}
	if err := a.notifier.MergeInputReady(ctx, summary); err != nil {
		return fmt.Errorf("notifying merge readiness: %w", err)
	}
	return nil
}

// Summary returns the current statistics, or the frozen ones after the
// merge-ready signal.
func (a *Aggregator) Summary() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.signalled {
		return a.final
	}
	return a.summaryLocked()
}

func (a *Aggregator) summaryLocked() Summary {
	buckets := make(map[string]int, len(a.buckets))
	for i, n := range a.buckets {
		if n > 0 {
			buckets[bucketLabel(i)] = n
		}
	}
	return Summary{
		PostingLists:   a.postingLists.Load(),
		Postings:       a.postings.Load(),
		Occurrences:    a.occurrences.Load(),
		MaxDocFreq:     a.maxDocFreq,
		DocFreqBuckets: buckets,
	}
}
