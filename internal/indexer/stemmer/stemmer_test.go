package stemmer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/errors"
)

func TestSnowball_StemsAndCaches(t *testing.T) {
	s := NewSnowball("english")

	got, err := s.Stem("running")
	require.NoError(t, err)
	assert.Equal(t, "run", got)

	got, err = s.Stem("cats")
	require.NoError(t, err)
	assert.Equal(t, "cat", got)

	assert.Len(t, s.cache, 2)
	again, err := s.Stem("running")
	require.NoError(t, err)
	assert.Equal(t, "run", again)
	assert.Len(t, s.cache, 2)
}

func TestSnowball_UnknownLanguage(t *testing.T) {
	s := NewSnowball("klingon")
	_, err := s.Stem("qapla")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrStemming)
}

func TestSuffix(t *testing.T) {
	tests := []struct {
		word string
		want string
	}{
		{"relational", "relate"},
		{"cats", "cat"},
		{"walking", "walk"},
		{"ponies", "pony"},
		{"is", "is"},
		{"glass", "glass"},
	}
	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			got, err := Suffix{}.Stem(tt.word)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIdentity(t *testing.T) {
	got, err := Identity{}.Stem("Running,")
	require.NoError(t, err)
	assert.Equal(t, "Running,", got)
}

func TestFactoryByName_FreshInstances(t *testing.T) {
	factory, err := FactoryByName("snowball")
	require.NoError(t, err)

	a := factory().(*Snowball)
	b := factory().(*Snowball)
	_, _ = a.Stem("cats")
	assert.NotSame(t, a, b)
	assert.Empty(t, b.cache)

	for _, name := range []string{"", "suffix", "identity"} {
		_, err := FactoryByName(name)
		assert.NoError(t, err, name)
	}

	_, err = FactoryByName("lancaster")
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}
