package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlockError_UnwrapsToSentinel(t *testing.T) {
	err := fmt.Errorf("worker: %w", NewDocumentError("block_0001", 42, ErrDocumentUnreadable))

	assert.ErrorIs(t, err, ErrDocumentUnreadable)
	assert.Contains(t, err.Error(), "block block_0001, document 42")

	path, ok := FailedBlock(err)
	assert.True(t, ok)
	assert.Equal(t, "block_0001", path)
}

func TestBlockError_WithoutDocument(t *testing.T) {
	err := NewBlockError("block_0002", ErrIndexWrite)

	assert.Equal(t, "block block_0002: index write failed", err.Error())
	assert.Equal(t, int64(NoDocument), err.DocID)
}

func TestNewf_KeepsSentinel(t *testing.T) {
	err := Newf(ErrInvalidConfig, "block size %d", 0)

	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, "invalid configuration: block size 0", err.Error())
}

func TestFailedBlock_PlainError(t *testing.T) {
	_, ok := FailedBlock(fmt.Errorf("boom"))
	assert.False(t, ok)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, ExitOK},
		{"config", Newf(ErrInvalidConfig, "block size 0"), ExitConfig},
		{"missing stopwords", fmt.Errorf("loading: %w", ErrStopwordsUnavailable), ExitInput},
		{"unreadable document", NewDocumentError("b", 3, ErrDocumentUnreadable), ExitInput},
		{"write", NewBlockError("b", ErrIndexWrite), ExitIndexWrite},
		{"interrupted", NewDocumentError("b", 1, context.Canceled), ExitInterrupted},
		{"other", fmt.Errorf("boom"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}
