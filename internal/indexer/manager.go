// Package indexer runs the parallel block-indexing stage of BSBI: one worker
// per block turns its documents into a term-id-sorted partial index on disk,
// and the Manager joins them all before announcing that the merge phase may
// start.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/collection"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/progress"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/stemmer"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/stopwords"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/metrics"
)

// StatsCollector receives every posting list of every block and is told once
// that all block indexes are on disk. Implementations must accept concurrent
// ProcessPostingList calls.
type StatsCollector interface {
	ProcessPostingList(pl index.PostingList)
	SignalEndOfMergeInputReady(ctx context.Context, blocks []string) error
}

// Completion records where a finished block index lives and the offset of
// each of its term entries.
type Completion struct {
	BlockPath string
	Positions []int64
}

type Options struct {
	OutputDir string
	Stopwords *stopwords.Filter
	Extractor tokenizer.Extractor
	Stemmers  stemmer.Factory
	Stats     StatsCollector
	Progress  progress.Reporter
	Metrics   *metrics.Metrics
}

// Manager orchestrates one parse run. Its completion state is guarded by a
// single mutex that workers take only for the final handshake.
type Manager struct {
	opts   Options
	logger *slog.Logger

	mu        sync.Mutex
	positions map[string][]int64
	completed int
}

func NewManager(opts Options) (*Manager, error) {
	if opts.OutputDir == "" {
		return nil, apperrors.Newf(apperrors.ErrInvalidConfig, "output directory is required")
	}
	if opts.Stats == nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidConfig, "stats collector is required")
	}
	if opts.Extractor == nil {
		opts.Extractor = tokenizer.Whitespace
	}
	if opts.Stemmers == nil {
		opts.Stemmers = func() stemmer.Stemmer { return stemmer.NewSnowball("english") }
	}
	if opts.Progress == nil {
		opts.Progress = progress.Nop{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}
	return &Manager{
		opts:      opts,
		logger:    logger.WithComponent("parse-manager"),
		positions: make(map[string][]int64),
	}, nil
}

// Parse indexes every block of coll concurrently, one goroutine per block,
// and returns once all of them have reported completion. Only then is the
// stats collector told that the merge input is ready.
//
// The first failing block cancels the others at their next document
// boundary; Parse then returns that block's *errors.BlockError and the merge
// signal is never sent.
func (m *Manager) Parse(ctx context.Context, coll *collection.Collection) ([]Completion, error) {
	if coll.Vocabulary == nil || coll.Documents == nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidConfig, "collection needs a document map and a vocabulary")
	}
	if err := checkBlockPaths(coll.Blocks); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.positions = make(map[string][]int64, len(coll.Blocks))
	m.completed = 0
	m.mu.Unlock()

	start := time.Now()
	m.opts.Progress.ReportStart(len(coll.Blocks))
	m.logger.Info("block parsing started",
		"blocks", len(coll.Blocks),
		"documents", coll.DocumentCount(),
		"output_dir", m.opts.OutputDir,
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, block := range coll.Blocks {
		worker := newBlockWorker(m, block, coll.Documents, coll.Vocabulary)
		g.Go(func() error {
			return worker.Run(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		m.logger.Error("block parsing aborted",
			"error", err,
			"completed", m.Completed(),
			"blocks", len(coll.Blocks),
		)
		return nil, err
	}

	completions := make([]Completion, 0, len(coll.Blocks))
	blockPaths := make([]string, 0, len(coll.Blocks))
	m.mu.Lock()
	for _, block := range coll.Blocks {
		positions, ok := m.positions[block.Path]
		if !ok {
			m.mu.Unlock()
			return nil, fmt.Errorf("block %s finished without reporting completion", block.Path)
		}
		completions = append(completions, Completion{BlockPath: block.Path, Positions: positions})
		blockPaths = append(blockPaths, block.Path)
	}
	m.mu.Unlock()

	if sizer, ok := coll.Vocabulary.(interface{ Len() int }); ok {
		m.opts.Metrics.VocabularySize.Set(float64(sizer.Len()))
	}
	if err := m.opts.Stats.SignalEndOfMergeInputReady(ctx, blockPaths); err != nil {
		return nil, fmt.Errorf("signalling merge input ready: %w", err)
	}
	m.opts.Metrics.MergeInputReadyTotal.Inc()

	m.logger.Info("block parsing complete",
		"blocks", len(completions),
		"duration", time.Since(start),
	)
	return completions, nil
}

// SignalJobDone is the completion handshake. Each worker calls it exactly
// once, after its block index is on disk.
func (m *Manager) SignalJobDone(blockPath string, positions []int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.positions[blockPath]; dup {
		m.logger.Error("duplicate completion ignored", "block", blockPath)
		return
	}
	m.positions[blockPath] = positions
	m.completed++
	m.opts.Progress.ReportBlockDone(m.completed)
}

// Completed returns the number of blocks that reported completion.
func (m *Manager) Completed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completed
}

// Positions returns the entry offsets reported for a block.
func (m *Manager) Positions(blockPath string) ([]int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	positions, ok := m.positions[blockPath]
	return positions, ok
}

func checkBlockPaths(blocks []collection.Block) error {
	seen := make(map[string]struct{}, len(blocks))
	for _, b := range blocks {
		if b.Path == "" {
			return apperrors.Newf(apperrors.ErrInvalidConfig, "block with empty path")
		}
		if !filepath.IsLocal(b.Path) {
			return apperrors.Newf(apperrors.ErrInvalidConfig, "block path %q escapes the output directory", b.Path)
		}
		if _, dup := seen[b.Path]; dup {
			return apperrors.Newf(apperrors.ErrInvalidConfig, "duplicate block path %q", b.Path)
		}
		seen[b.Path] = struct{}{}
	}
	return nil
}
