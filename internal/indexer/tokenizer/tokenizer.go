// Package tokenizer provides the token-extraction strategies applied to each
// line of a document. A strategy is chosen once per deployment and shared by
// every block worker, so implementations must be stateless.
package tokenizer

import (
	"strings"
	"unicode"

	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/errors"
)

// Extractor turns one line of text into its raw tokens, in order.
type Extractor interface {
	Extract(line string) []string
}

// ExtractorFunc adapts a plain function to Extractor.
type ExtractorFunc func(line string) []string

func (f ExtractorFunc) Extract(line string) []string {
	return f(line)
}

// Whitespace splits on runs of whitespace and leaves tokens untouched.
var Whitespace Extractor = ExtractorFunc(strings.Fields)

// Alphanumeric lower-cases the line, splits on every rune that is not a
// letter or digit, and drops single-character fragments.
var Alphanumeric Extractor = ExtractorFunc(func(line string) []string {
	words := strings.FieldsFunc(strings.ToLower(line), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := words[:0]
	for _, w := range words {
		if len(w) < 2 {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
})

// NGram emits word n-grams of whitespace tokens joined with "_". Lines shorter
// than n produce their single shorter gram.
func NGram(n int) Extractor {
	if n < 1 {
		n = 1
	}
	return ExtractorFunc(func(line string) []string {
		words := strings.Fields(line)
		if len(words) == 0 {
			return nil
		}
		if len(words) <= n {
			return []string{strings.Join(words, "_")}
		}
		grams := make([]string, 0, len(words)-n+1)
		for i := 0; i+n <= len(words); i++ {
			grams = append(grams, strings.Join(words[i:i+n], "_"))
		}
		return grams
	})
}

// ByName resolves a configured strategy name.
func ByName(name string) (Extractor, error) {
	switch name {
	case "", "whitespace":
		return Whitespace, nil
	case "alphanumeric":
		return Alphanumeric, nil
	case "bigram":
		return NGram(2), nil
	default:
		return nil, apperrors.Newf(apperrors.ErrInvalidConfig, "unknown tokenizer %q", name)
	}
}
