package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/collection"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/stats"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/stemmer"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/stopwords"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/vocabulary"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/errors"
)

type recordingStats struct {
	mu        sync.Mutex
	lists     int
	signalled int
	blocks    []string
}

func (r *recordingStats) ProcessPostingList(index.PostingList) {
	r.mu.Lock()
	r.lists++
	r.mu.Unlock()
}

func (r *recordingStats) SignalEndOfMergeInputReady(_ context.Context, blocks []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signalled++
	r.blocks = blocks
	return nil
}

type countingProgress struct {
	mu      sync.Mutex
	started int
	done    []int
}

func (c *countingProgress) ReportStart(n int) { c.started = n }

func (c *countingProgress) ReportBlockDone(n int) {
	c.mu.Lock()
	c.done = append(c.done, n)
	c.mu.Unlock()
}

type fixture struct {
	dir       string
	outputDir string
	docs      collection.MapDocuments
	vocab     *vocabulary.Memory
	stats     *recordingStats
	progress  *countingProgress
	manager   *Manager
}

func newFixture(t *testing.T, stop ...string) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:       dir,
		outputDir: filepath.Join(dir, "indexes"),
		docs:      collection.MapDocuments{},
		vocab:     vocabulary.NewMemory(8),
		stats:     &recordingStats{},
		progress:  &countingProgress{},
	}
	m, err := NewManager(Options{
		OutputDir: f.outputDir,
		Stopwords: stopwords.New(stop...),
		Extractor: tokenizer.Whitespace,
		Stemmers:  func() stemmer.Stemmer { return stemmer.Identity{} },
		Stats:     f.stats,
		Progress:  f.progress,
	})
	require.NoError(t, err)
	f.manager = m
	return f
}

func (f *fixture) addDoc(t *testing.T, id index.DocID, text string) {
	t.Helper()
	path := filepath.Join(f.dir, "docs", fmt.Sprintf("doc_%d.txt", id))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	f.docs[id] = path
}

func (f *fixture) collection(blocks ...collection.Block) *collection.Collection {
	return &collection.Collection{Blocks: blocks, Documents: f.docs, Vocabulary: f.vocab}
}

func (f *fixture) readBlock(t *testing.T, blockPath string) []index.TermEntry {
	t.Helper()
	r, err := segment.OpenReader(filepath.Join(f.outputDir, blockPath))
	require.NoError(t, err)
	defer r.Close()
	entries, err := r.Entries()
	require.NoError(t, err)
	return entries
}

func (f *fixture) postings(t *testing.T, entries []index.TermEntry, term string) index.PostingList {
	t.Helper()
	id, ok := f.vocab.Lookup(term)
	require.True(t, ok, "term %q has no id", term)
	for _, e := range entries {
		if e.TermID == id {
			return e.Postings
		}
	}
	return nil
}

func assertAscending(t *testing.T, entries []index.TermEntry) {
	t.Helper()
	for i := 1; i < len(entries); i++ {
		assert.Less(t, entries[i-1].TermID, entries[i].TermID)
	}
}

func TestParse_FilteringAndAggregation(t *testing.T) {
	f := newFixture(t, "the", "a")
	f.addDoc(t, 1, "the cat sat on the mat")
	f.addDoc(t, 2, "a cat ran")

	completions, err := f.manager.Parse(context.Background(), f.collection(
		collection.Block{Path: "block_0000", Documents: []index.DocID{1, 2}},
	))
	require.NoError(t, err)
	require.Len(t, completions, 1)

	entries := f.readBlock(t, "block_0000")
	require.Len(t, entries, 5)
	assertAscending(t, entries)

	assert.Equal(t, index.PostingList{{DocID: 1, Frequency: 1}, {DocID: 2, Frequency: 1}}, f.postings(t, entries, "cat"))
	assert.Equal(t, index.PostingList{{DocID: 1, Frequency: 1}}, f.postings(t, entries, "sat"))
	assert.Equal(t, index.PostingList{{DocID: 1, Frequency: 1}}, f.postings(t, entries, "on"))
	assert.Equal(t, index.PostingList{{DocID: 1, Frequency: 1}}, f.postings(t, entries, "mat"))
	assert.Equal(t, index.PostingList{{DocID: 2, Frequency: 1}}, f.postings(t, entries, "ran"))

	_, ok := f.vocab.Lookup("the")
	assert.False(t, ok, "stopword received a term id")
	_, ok = f.vocab.Lookup("a")
	assert.False(t, ok, "stopword received a term id")

	assert.Equal(t, 5, f.stats.lists)
	assert.Equal(t, 1, f.stats.signalled)
	assert.Equal(t, []string{"block_0000"}, f.stats.blocks)
}

func TestParse_FrequenciesAcrossLines(t *testing.T) {
	f := newFixture(t)
	f.addDoc(t, 3, "cat cat\n\ncat dog\r\n  dog\tcat")

	_, err := f.manager.Parse(context.Background(), f.collection(
		collection.Block{Path: "b", Documents: []index.DocID{3}},
	))
	require.NoError(t, err)

	entries := f.readBlock(t, "b")
	require.Len(t, entries, 2)
	assert.Equal(t, index.PostingList{{DocID: 3, Frequency: 4}}, f.postings(t, entries, "cat"))
	assert.Equal(t, index.PostingList{{DocID: 3, Frequency: 2}}, f.postings(t, entries, "dog"))
}

func TestParse_SharedVocabularyAcrossBlocks(t *testing.T) {
	f := newFixture(t)
	f.addDoc(t, 1, "cat alpha beta")
	f.addDoc(t, 2, "gamma cat")
	f.addDoc(t, 3, "cat delta")
	f.addDoc(t, 4, "epsilon zeta cat")

	completions, err := f.manager.Parse(context.Background(), f.collection(
		collection.Block{Path: "block_0000", Documents: []index.DocID{1, 2}},
		collection.Block{Path: "block_0001", Documents: []index.DocID{3, 4}},
	))
	require.NoError(t, err)
	require.Len(t, completions, 2)

	catID, ok := f.vocab.Lookup("cat")
	require.True(t, ok)

	for _, blockPath := range []string{"block_0000", "block_0001"} {
		entries := f.readBlock(t, blockPath)
		assertAscending(t, entries)
		found := false
		for _, e := range entries {
			if e.TermID == catID {
				found = true
				assert.Len(t, e.Postings, 2)
			}
		}
		assert.True(t, found, "block %s lacks cat", blockPath)
	}
	assert.Equal(t, 7, f.vocab.Len())
}

func TestParse_EmptyBlock(t *testing.T) {
	f := newFixture(t)

	completions, err := f.manager.Parse(context.Background(), f.collection(
		collection.Block{Path: "block_empty"},
	))
	require.NoError(t, err)

	require.Len(t, completions, 1)
	assert.Empty(t, completions[0].Positions)
	assert.Empty(t, f.readBlock(t, "block_empty"))
	assert.Equal(t, 1, f.manager.Completed())
	assert.Equal(t, []int{1}, f.progress.done)
}

func TestParse_ManyBlocksConcurrently(t *testing.T) {
	f := newFixture(t, "and")
	const blocks, perBlock = 12, 5
	coll := f.collection()
	docID := index.DocID(0)
	for b := 0; b < blocks; b++ {
		block := collection.Block{Path: collection.BlockName(b)}
		for d := 0; d < perBlock; d++ {
			words := []string{"shared", "and", fmt.Sprintf("block%d", b), fmt.Sprintf("doc%d", docID), "shared"}
			f.addDoc(t, docID, strings.Join(words, " "))
			block.Documents = append(block.Documents, docID)
			docID++
		}
		coll.Blocks = append(coll.Blocks, block)
	}

	completions, err := f.manager.Parse(context.Background(), coll)
	require.NoError(t, err)
	require.Len(t, completions, blocks)
	assert.Equal(t, blocks, f.manager.Completed())
	assert.Equal(t, blocks, f.progress.started)
	assert.Len(t, f.progress.done, blocks)

	sharedID, ok := f.vocab.Lookup("shared")
	require.True(t, ok)
	for i, c := range completions {
		assert.Equal(t, collection.BlockName(i), c.BlockPath)
		entries := f.readBlock(t, c.BlockPath)
		assertAscending(t, entries)
		require.Len(t, entries, 2+perBlock)
		assert.Len(t, c.Positions, len(entries))

		for _, e := range entries {
			if e.TermID == sharedID {
				for _, p := range e.Postings {
					assert.Equal(t, uint32(2), p.Frequency)
				}
			}
		}

		positions, ok := f.manager.Positions(c.BlockPath)
		require.True(t, ok)
		assert.Equal(t, c.Positions, positions)
	}
	// shared + one per block + one per document
	assert.Equal(t, 1+blocks+blocks*perBlock, f.vocab.Len())
}

func TestParse_CompletionPositionsMatchFile(t *testing.T) {
	f := newFixture(t)
	f.addDoc(t, 1, "x y z")

	completions, err := f.manager.Parse(context.Background(), f.collection(
		collection.Block{Path: "nested/block_0000", Documents: []index.DocID{1}},
	))
	require.NoError(t, err)

	r, err := segment.OpenReader(filepath.Join(f.outputDir, "nested", "block_0000"))
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, r.Positions(), completions[0].Positions)
}

func TestParse_UnreadableDocumentAbortsRun(t *testing.T) {
	f := newFixture(t)
	f.addDoc(t, 1, "fine words")
	f.docs[2] = filepath.Join(f.dir, "missing.txt")

	completions, err := f.manager.Parse(context.Background(), f.collection(
		collection.Block{Path: "good", Documents: []index.DocID{1}},
		collection.Block{Path: "bad", Documents: []index.DocID{2}},
	))
	require.Error(t, err)
	assert.Nil(t, completions)
	assert.ErrorIs(t, err, apperrors.ErrDocumentUnreadable)

	var blockErr *apperrors.BlockError
	require.ErrorAs(t, err, &blockErr)
	assert.Equal(t, "bad", blockErr.BlockPath)
	assert.Equal(t, int64(2), blockErr.DocID)

	_, statErr := os.Stat(filepath.Join(f.outputDir, "bad"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(f.outputDir, "bad.tmp"))
	assert.True(t, os.IsNotExist(statErr))
	_, reported := f.manager.Positions("bad")
	assert.False(t, reported)
	assert.Equal(t, 0, f.stats.signalled, "merge signalled after a failed block")
}

func TestParse_UnknownDocumentID(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.Parse(context.Background(), f.collection(
		collection.Block{Path: "b", Documents: []index.DocID{99}},
	))
	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)
}

func TestParse_UnsortedBlockRejected(t *testing.T) {
	f := newFixture(t)
	f.addDoc(t, 1, "one")
	f.addDoc(t, 2, "two")

	_, err := f.manager.Parse(context.Background(), f.collection(
		collection.Block{Path: "b", Documents: []index.DocID{2, 1}},
	))
	assert.ErrorIs(t, err, apperrors.ErrUnsortedBlock)
	assert.Equal(t, 0, f.stats.signalled)
}

type failingStemmer struct{}

func (failingStemmer) Stem(string) (string, error) {
	return "", apperrors.ErrStemming
}

func TestParse_StemmingFailureAbortsBlock(t *testing.T) {
	f := newFixture(t)
	f.manager.opts.Stemmers = func() stemmer.Stemmer { return failingStemmer{} }
	f.addDoc(t, 1, "anything")

	_, err := f.manager.Parse(context.Background(), f.collection(
		collection.Block{Path: "b", Documents: []index.DocID{1}},
	))
	assert.ErrorIs(t, err, apperrors.ErrStemming)
}

func TestParse_CancelledContext(t *testing.T) {
	f := newFixture(t)
	f.addDoc(t, 1, "cat")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.manager.Parse(ctx, f.collection(
		collection.Block{Path: "b", Documents: []index.DocID{1}},
	))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.stats.signalled)
}

func TestParse_InvalidCollection(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.Parse(context.Background(), &collection.Collection{Documents: f.docs})
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)

	_, err = f.manager.Parse(context.Background(), f.collection(
		collection.Block{Path: "same"},
		collection.Block{Path: "same"},
	))
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}

func TestParse_RejectsBlockPathOutsideOutputDir(t *testing.T) {
	for _, blockPath := range []string{"../escaped", "nested/../../escaped", "/tmp/escaped"} {
		t.Run(blockPath, func(t *testing.T) {
			f := newFixture(t)
			f.addDoc(t, 1, "cat")

			_, err := f.manager.Parse(context.Background(), f.collection(
				collection.Block{Path: blockPath, Documents: []index.DocID{1}},
			))
			assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
			_, statErr := os.Stat(filepath.Join(f.dir, "escaped"))
			assert.True(t, os.IsNotExist(statErr))
			assert.Equal(t, 0, f.manager.Completed())
		})
	}
}

func TestParse_WriteFailureAbortsBlock(t *testing.T) {
	f := newFixture(t)
	f.addDoc(t, 1, "cat sat")
	// a non-empty directory where the block index belongs makes the final
	// rename fail after every entry was written
	require.NoError(t, os.MkdirAll(filepath.Join(f.outputDir, "b", "occupied"), 0o755))

	completions, err := f.manager.Parse(context.Background(), f.collection(
		collection.Block{Path: "b", Documents: []index.DocID{1}},
	))
	require.Error(t, err)
	assert.Nil(t, completions)
	assert.ErrorIs(t, err, apperrors.ErrIndexWrite)

	var blockErr *apperrors.BlockError
	require.ErrorAs(t, err, &blockErr)
	assert.Equal(t, "b", blockErr.BlockPath)

	_, reported := f.manager.Positions("b")
	assert.False(t, reported)
	assert.Equal(t, 0, f.manager.Completed())
	assert.Equal(t, 0, f.stats.signalled)
	_, statErr := os.Stat(filepath.Join(f.outputDir, "b.tmp"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestSignalJobDone_DuplicateIgnored(t *testing.T) {
	f := newFixture(t)

	f.manager.SignalJobDone("b", []int64{32})
	f.manager.SignalJobDone("b", []int64{64})

	assert.Equal(t, 1, f.manager.Completed())
	positions, ok := f.manager.Positions("b")
	require.True(t, ok)
	assert.Equal(t, []int64{32}, positions)
}

func TestParse_WithStatsAggregator(t *testing.T) {
	f := newFixture(t, "the")
	agg := stats.NewAggregator(nil)
	f.manager.opts.Stats = agg
	f.addDoc(t, 1, "the cat the hat")
	f.addDoc(t, 2, "cat")

	_, err := f.manager.Parse(context.Background(), f.collection(
		collection.Block{Path: "b0", Documents: []index.DocID{1}},
		collection.Block{Path: "b1", Documents: []index.DocID{2}},
	))
	require.NoError(t, err)

	summary := agg.Summary()
	assert.True(t, summary.Ready)
	assert.Equal(t, int64(3), summary.PostingLists)
	assert.Equal(t, int64(3), summary.Occurrences)
	assert.ElementsMatch(t, []string{"b0", "b1"}, summary.Blocks)
}

func TestNewManager_RequiresOutputAndStats(t *testing.T) {
	_, err := NewManager(Options{Stats: &recordingStats{}})
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)

	_, err = NewManager(Options{OutputDir: t.TempDir()})
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)

	m, err := NewManager(Options{OutputDir: t.TempDir(), Stats: &recordingStats{}})
	require.NoError(t, err)
	assert.NotNil(t, m.opts.Extractor)
	assert.NotNil(t, m.opts.Stemmers)
	assert.NotNil(t, m.opts.Metrics)
}
