package collection

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/errors"
)

// BlockName formats the output name of the n-th block.
func BlockName(n int) string {
	return fmt.Sprintf("block_%04d", n)
}

// Partition walks root for files matching pattern (doublestar syntax,
// relative to root), assigns doc ids in sorted path order starting at 0 and
// cuts the result into blocks of at most blockSize documents.
func Partition(root string, pattern string, blockSize int) ([]Block, MapDocuments, error) {
	if blockSize <= 0 {
		return nil, nil, apperrors.Newf(apperrors.ErrInvalidConfig, "block size must be positive, got %d", blockSize)
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, nil, apperrors.Newf(apperrors.ErrInvalidConfig, "invalid document pattern %q", pattern)
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		matched, err := doublestar.Match(pattern, filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		if matched {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walking collection %s: %w", root, err)
	}
	sort.Strings(paths)

	docs := make(MapDocuments, len(paths))
	blocks := make([]Block, 0, (len(paths)+blockSize-1)/blockSize)
	for i, path := range paths {
		docID := index.DocID(i)
		docs[docID] = path
		if i%blockSize == 0 {
			blocks = append(blocks, Block{
				Path:      BlockName(len(blocks)),
				Documents: make([]index.DocID, 0, blockSize),
			})
		}
		last := &blocks[len(blocks)-1]
		last.Documents = append(last.Documents, docID)
	}

	slog.Default().With("component", "partitioner").Info("collection partitioned",
		"root", root,
		"pattern", pattern,
		"documents", len(paths),
		"blocks", len(blocks),
	)
	return blocks, docs, nil
}
