// Package errors defines the sentinel errors shared by the block indexer and
// the BlockError type that ties a failure to the block (and document) that
// caused it.
package errors

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound     = errors.New("document not found")
	ErrDocumentUnreadable   = errors.New("document unreadable")
	ErrStopwordsUnavailable = errors.New("stopword list unavailable")
	ErrIndexWrite           = errors.New("index write failed")
	ErrOutOfOrder           = errors.New("term entries out of order")
	ErrUnsortedBlock        = errors.New("block documents not in ascending doc id order")
	ErrStemming             = errors.New("stemming failed")
	ErrVocabulary           = errors.New("vocabulary lookup failed")
	ErrInvalidConfig        = errors.New("invalid configuration")
	ErrAlreadySignalled     = errors.New("merge input already signalled")
	ErrCorruptSegment       = errors.New("corrupt block index file")
)

// NoDocument marks a BlockError that is not tied to a single document.
const NoDocument = -1

// BlockError reports the failure of one block. DocID is NoDocument when the
// failure happened outside the per-document loop (writing, stats, setup).
type BlockError struct {
	BlockPath string
	DocID     int64
	Err       error
}

func (e *BlockError) Error() string {
	if e.DocID == NoDocument {
		return fmt.Sprintf("block %s: %s", e.BlockPath, e.Err.Error())
	}
	return fmt.Sprintf("block %s, document %d: %s", e.BlockPath, e.DocID, e.Err.Error())
}

func (e *BlockError) Unwrap() error {
	return e.Err
}

// NewBlockError wraps err for the given block.
func NewBlockError(blockPath string, err error) *BlockError {
	return &BlockError{BlockPath: blockPath, DocID: NoDocument, Err: err}
}

// NewDocumentError wraps err for a document inside the given block.
func NewDocumentError(blockPath string, docID uint32, err error) *BlockError {
	return &BlockError{BlockPath: blockPath, DocID: int64(docID), Err: err}
}

// Newf wraps a sentinel with a formatted message so errors.Is still matches
// the sentinel.
func Newf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// FailedBlock returns the block path carried by err, if any.
func FailedBlock(err error) (string, bool) {
	var blockErr *BlockError
	if errors.As(err, &blockErr) {
		return blockErr.BlockPath, true
	}
	return "", false
}

// Process exit codes of the indexer CLI.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitConfig      = 2
	ExitInput       = 3
	ExitIndexWrite  = 4
	ExitInterrupted = 130
)

// ExitCode maps an error to the CLI exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, ErrInvalidConfig):
		return ExitConfig
	case errors.Is(err, ErrStopwordsUnavailable),
		errors.Is(err, ErrDocumentNotFound),
		errors.Is(err, ErrDocumentUnreadable),
		errors.Is(err, ErrUnsortedBlock):
		return ExitInput
	case errors.Is(err, ErrIndexWrite), errors.Is(err, ErrOutOfOrder):
		return ExitIndexWrite
	default:
		return ExitFailure
	}
}
