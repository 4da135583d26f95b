package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/errors"
)

func TestWhitespace(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"simple", "the cat sat", []string{"the", "cat", "sat"}},
		{"runs of whitespace", "  the\t\tcat \n", []string{"the", "cat"}},
		{"punctuation kept", "Cat, sat.", []string{"Cat,", "sat."}},
		{"blank line", "   \n", []string{}},
		{"empty line", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Whitespace.Extract(tt.line)
			assert.Equal(t, len(tt.want), len(got))
			if len(tt.want) > 0 {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestAlphanumeric(t *testing.T) {
	got := Alphanumeric.Extract("The Cat's mat, x 42-times!")
	assert.Equal(t, []string{"the", "cat", "mat", "42", "times"}, got)
}

func TestNGram(t *testing.T) {
	assert.Equal(t, []string{"the_cat", "cat_sat"}, NGram(2).Extract("the cat sat"))
	assert.Equal(t, []string{"cat"}, NGram(2).Extract("cat"))
	assert.Empty(t, NGram(2).Extract("  "))
	assert.Equal(t, []string{"a", "b"}, NGram(0).Extract("a b"))
}

func TestByName(t *testing.T) {
	for _, name := range []string{"", "whitespace", "alphanumeric", "bigram"} {
		ex, err := ByName(name)
		require.NoError(t, err, name)
		assert.NotNil(t, ex)
	}

	_, err := ByName("icu")
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}
