// Package stemmer reduces raw tokens to their index form. Stemmers may keep
// private caches, so each block worker builds its own instance through a
// Factory and never shares it.
package stemmer

import (
	"fmt"

	"github.com/kljensen/snowball"

	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/errors"
)

type Stemmer interface {
	Stem(word string) (string, error)
}

// Factory creates a fresh, unshared Stemmer.
type Factory func() Stemmer

// Snowball wraps the Snowball stemmer and memoises results per instance.
type Snowball struct {
	language string
	cache    map[string]string
}

func NewSnowball(language string) *Snowball {
	return &Snowball{
		language: language,
		cache:    make(map[string]string, 4096),
	}
}

func (s *Snowball) Stem(word string) (string, error) {
	if stemmed, ok := s.cache[word]; ok {
		return stemmed, nil
	}
	stemmed, err := snowball.Stem(word, s.language, true)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", apperrors.ErrStemming, word, err)
	}
	s.cache[word] = stemmed
	return stemmed, nil
}

type Identity struct{}

func (Identity) Stem(word string) (string, error) {
	return word, nil
}

// FactoryByName resolves a configured stemmer name.
func FactoryByName(name string) (Factory, error) {
	switch name {
	case "", "snowball":
		return func() Stemmer { return NewSnowball("english") }, nil
	case "suffix":
		return func() Stemmer { return Suffix{} }, nil
	case "identity":
		return func() Stemmer { return Identity{} }, nil
	default:
		return nil, apperrors.Newf(apperrors.ErrInvalidConfig, "unknown stemmer %q", name)
	}
}
