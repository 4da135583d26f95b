package indexer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/collection"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/stemmer"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/vocabulary"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/logger"
)

// BlockWorker builds the partial index of exactly one block.
type BlockWorker struct {
	manager   *Manager
	block     collection.Block
	documents collection.DocumentMap
	vocab     vocabulary.Service
	logger    *slog.Logger

	tokens int
}

func newBlockWorker(m *Manager, block collection.Block, documents collection.DocumentMap, vocab vocabulary.Service) *BlockWorker {
	return &BlockWorker{
		manager:   m,
		block:     block,
		documents: documents,
		vocab:     vocab,
		logger:    logger.WithBlock("block-worker", block.Path),
	}
}

// Run parses every document of the block, hands each posting list to the
// stats collector, writes the index in term id order and reports completion.
// On any error nothing is persisted and completion is not reported.
func (w *BlockWorker) Run(ctx context.Context) error {
	opts := &w.manager.opts
	start := time.Now()
	opts.Metrics.ActiveWorkers.Inc()
	defer opts.Metrics.ActiveWorkers.Dec()

	positions, blockIndex, err := w.build(ctx)
	if err != nil {
		opts.Metrics.BlocksFailedTotal.Inc()
		w.logger.Error("block aborted", "error", err)
		return err
	}

	w.manager.SignalJobDone(w.block.Path, positions)

	opts.Metrics.BlocksParsedTotal.Inc()
	opts.Metrics.BlockParseDuration.Observe(time.Since(start).Seconds())
	opts.Metrics.BlockDistinctTerms.Observe(float64(blockIndex.Len()))
	w.logger.Info("block parsed",
		"documents", blockIndex.DocCount(),
		"tokens", w.tokens,
		"terms", blockIndex.Len(),
		"duration", time.Since(start),
	)
	return nil
}

func (w *BlockWorker) build(ctx context.Context) ([]int64, *index.BlockIndex, error) {
	opts := &w.manager.opts
	if err := w.block.Validate(); err != nil {
		return nil, nil, apperrors.NewBlockError(w.block.Path, err)
	}

	stem := opts.Stemmers()
	blockIndex := index.NewBlockIndex()
	for _, docID := range w.block.Documents {
		if err := ctx.Err(); err != nil {
			return nil, nil, apperrors.NewDocumentError(w.block.Path, uint32(docID), err)
		}
		if err := w.indexDocument(ctx, docID, stem, blockIndex); err != nil {
			return nil, nil, apperrors.NewDocumentError(w.block.Path, uint32(docID), err)
		}
	}

	blockIndex.Each(func(_ index.TermID, postings index.PostingList) {
		opts.Stats.ProcessPostingList(postings)
	})

	positions, err := w.persist(blockIndex)
	if err != nil {
		return nil, nil, apperrors.NewBlockError(w.block.Path, err)
	}
	return positions, blockIndex, nil
}

// indexDocument folds one document into the block index.
func (w *BlockWorker) indexDocument(ctx context.Context, docID index.DocID, stem stemmer.Stemmer, blockIndex *index.BlockIndex) error {
	opts := &w.manager.opts
	freqs, err := w.countTerms(docID, stem)
	if err != nil {
		return err
	}

	for term := range freqs {
		if opts.Stopwords.IsStopword(term) {
			delete(freqs, term)
		}
	}

	// Resolving in lexical order keeps id assignment reproducible for a
	// single-block run.
	terms := make([]string, 0, len(freqs))
	for term := range freqs {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	for _, term := range terms {
		termID, err := w.vocab.GetOrCreate(ctx, term)
		if err != nil {
			return fmt.Errorf("resolving term %q: %w", term, err)
		}
		blockIndex.Add(termID, docID, freqs[term])
	}
	blockIndex.DocumentDone()
	opts.Metrics.DocumentsParsedTotal.Inc()
	return nil
}

// countTerms reads a document line by line and tallies stemmed tokens.
func (w *BlockWorker) countTerms(docID index.DocID, stem stemmer.Stemmer) (map[string]uint32, error) {
	opts := &w.manager.opts
	path, err := w.documents.Path(docID)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrDocumentUnreadable, path, err)
	}
	defer f.Close()

	freqs := make(map[string]uint32)
	tokens := 0
	reader := bufio.NewReaderSize(f, 64*1024)
	for {
		line, readErr := reader.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrDocumentUnreadable, path, readErr)
		}
		for _, raw := range opts.Extractor.Extract(line) {
			term, err := stem.Stem(raw)
			if err != nil {
				return nil, err
			}
			if term == "" {
				continue
			}
			freqs[term]++
			tokens++
		}
		if readErr != nil {
			break
		}
	}
	w.tokens += tokens
	opts.Metrics.TokensProcessedTotal.Add(float64(tokens))
	return freqs, nil
}

// persist writes the block index in ascending term id order and returns the
// entry positions.
func (w *BlockWorker) persist(blockIndex *index.BlockIndex) ([]int64, error) {
	opts := &w.manager.opts
	writer, err := segment.Open(filepath.Join(opts.OutputDir, w.block.Path), blockIndex.Len())
	if err != nil {
		return nil, err
	}
	for _, entry := range blockIndex.Entries() {
		if err := writer.Append(entry); err != nil {
			if abortErr := writer.Abort(); abortErr != nil {
				w.logger.Error("discarding partial block index failed", "path", writer.Path(), "error", abortErr)
			}
			return nil, err
		}
	}
	positions, err := writer.Close()
	if err != nil {
		return nil, err
	}
	opts.Metrics.PostingListsWritten.Add(float64(len(positions)))
	return positions, nil
}
