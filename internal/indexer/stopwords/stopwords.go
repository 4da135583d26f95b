// Package stopwords loads the list of common words excluded from every block
// index. A Filter is immutable once built and may be shared by any number of
// workers without locking.
package stopwords

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/errors"
)

type Filter struct {
	words map[string]struct{}
}

// New builds a filter from an in-memory word list.
func New(words ...string) *Filter {
	f := &Filter{words: make(map[string]struct{}, len(words))}
	for _, w := range words {
		if w != "" {
			f.words[w] = struct{}{}
		}
	}
	return f
}

// Load reads a newline-delimited word list. Lines are matched verbatim apart
// from the line terminator; blank lines are skipped.
func Load(path string) (*Filter, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening stopword list %s: %w: %v", path, apperrors.ErrStopwordsUnavailable, err)
	}
	defer file.Close()

	f := &Filter{words: make(map[string]struct{})}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		word := strings.TrimRight(scanner.Text(), "\r")
		if word == "" {
			continue
		}
		f.words[word] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading stopword list %s: %w: %v", path, apperrors.ErrStopwordsUnavailable, err)
	}
	return f, nil
}

// IsStopword reports an exact, case-sensitive match.
func (f *Filter) IsStopword(term string) bool {
	if f == nil {
		return false
	}
	_, ok := f.words[term]
	return ok
}

func (f *Filter) Len() int {
	if f == nil {
		return 0
	}
	return len(f.words)
}
