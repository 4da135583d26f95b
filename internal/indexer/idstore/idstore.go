// Package idstore persists the two id mappings a parse run produces, document
// id to path and term to term id, so the merge phase and later runs can
// resolve them.
package idstore

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/collection"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/index"
)

type Store interface {
	SaveDocuments(ctx context.Context, docs collection.MapDocuments) error
	LoadDocuments(ctx context.Context) (collection.MapDocuments, error)
	SaveVocabulary(ctx context.Context, terms map[string]index.TermID) error
	LoadVocabulary(ctx context.Context) (map[string]index.TermID, error)
	Close() error
}

var (
	_ Store = (*Bolt)(nil)
	_ Store = (*Postgres)(nil)
)
