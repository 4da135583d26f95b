// Package collection describes the document collection handed to the block
// indexer: the document map, the blocks the collection is cut into, and the
// shared vocabulary every block resolves terms against.
package collection

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/vocabulary"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/errors"
)

// DocumentMap resolves a document id to the file holding its text.
type DocumentMap interface {
	Path(docID index.DocID) (string, error)
}

// MapDocuments is a read-only in-memory DocumentMap.
type MapDocuments map[index.DocID]string

func (m MapDocuments) Path(docID index.DocID) (string, error) {
	path, ok := m[docID]
	if !ok {
		return "", fmt.Errorf("%w: doc id %d", apperrors.ErrDocumentNotFound, docID)
	}
	return path, nil
}

// Block is a disjoint slice of the collection processed by one worker. Path
// names the block's output file relative to the index directory.
type Block struct {
	Path      string
	Documents []index.DocID
}

// Validate checks that documents are strictly ascending, which keeps every
// posting list the block emits sorted by doc id.
func (b Block) Validate() error {
	for i := 1; i < len(b.Documents); i++ {
		if b.Documents[i] <= b.Documents[i-1] {
			return fmt.Errorf("%w: doc %d follows doc %d",
				apperrors.ErrUnsortedBlock, b.Documents[i], b.Documents[i-1])
		}
	}
	return nil
}

type Collection struct {
	Blocks     []Block
	Documents  DocumentMap
	Vocabulary vocabulary.Service
}

// DocumentCount returns the number of documents across all blocks.
func (c *Collection) DocumentCount() int {
	n := 0
	for _, b := range c.Blocks {
		n += len(b.Documents)
	}
	return n
}
