package idstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/collection"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/postgres"
)

const uniqueViolation = pq.ErrorCode("23505")

const schema = `
CREATE TABLE IF NOT EXISTS bsbi_documents (
	doc_id BIGINT PRIMARY KEY,
	path   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS bsbi_terms (
	term    TEXT PRIMARY KEY,
	term_id BIGINT NOT NULL UNIQUE
);`

// Postgres keeps the mappings in two tables, shared by every indexer that
// points at the same database.
type Postgres struct {
	client *postgres.Client
}

// NewPostgres creates the tables if needed. The store takes ownership of
// client.
func NewPostgres(ctx context.Context, client *postgres.Client) (*Postgres, error) {
	if _, err := client.DB.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("creating id store tables: %w", err)
	}
	return &Postgres{client: client}, nil
}

func (s *Postgres) SaveDocuments(ctx context.Context, docs collection.MapDocuments) error {
	return s.client.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM bsbi_documents`); err != nil {
			return fmt.Errorf("clearing documents: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO bsbi_documents (doc_id, path) VALUES ($1, $2)`)
		if err != nil {
			return fmt.Errorf("preparing document insert: %w", err)
		}
		defer stmt.Close()
		for id, path := range docs {
			if _, err := stmt.ExecContext(ctx, int64(id), path); err != nil {
				return fmt.Errorf("inserting document %d: %w", id, err)
			}
		}
		return nil
	})
}

func (s *Postgres) LoadDocuments(ctx context.Context) (collection.MapDocuments, error) {
	rows, err := s.client.DB.QueryContext(ctx, `SELECT doc_id, path FROM bsbi_documents`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	docs := collection.MapDocuments{}
	for rows.Next() {
		var (
			id   int64
			path string
		)
		if err := rows.Scan(&id, &path); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs[index.DocID(id)] = path
	}
	return docs, rows.Err()
}

// SaveVocabulary merges terms into bsbi_terms. The upsert returns the id
// already stored for a term, so a mismatch is caught in the same statement;
// an id held by another term trips the term_id unique constraint.
func (s *Postgres) SaveVocabulary(ctx context.Context, terms map[string]index.TermID) error {
	return s.client.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO bsbi_terms (term, term_id) VALUES ($1, $2)
			ON CONFLICT (term) DO UPDATE SET term = EXCLUDED.term
			RETURNING term_id`)
		if err != nil {
			return fmt.Errorf("preparing term insert: %w", err)
		}
		defer stmt.Close()
		for term, id := range terms {
			var stored int64
			if err := stmt.QueryRowContext(ctx, term, int64(id)).Scan(&stored); err != nil {
				var pqErr *pq.Error
				if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
					return apperrors.Newf(apperrors.ErrVocabulary, "term id %d for %q already belongs to another term", id, term)
				}
				return fmt.Errorf("inserting term %q: %w", term, err)
			}
			if index.TermID(stored) != id {
				return apperrors.Newf(apperrors.ErrVocabulary, "term %q is stored with id %d, run assigned %d", term, stored, id)
			}
		}
		return nil
	})
}

func (s *Postgres) LoadVocabulary(ctx context.Context) (map[string]index.TermID, error) {
	rows, err := s.client.DB.QueryContext(ctx, `SELECT term, term_id FROM bsbi_terms`)
	if err != nil {
		return nil, fmt.Errorf("querying terms: %w", err)
	}
	defer rows.Close()

	terms := make(map[string]index.TermID)
	for rows.Next() {
		var (
			term string
			id   int64
		)
		if err := rows.Scan(&term, &id); err != nil {
			return nil, fmt.Errorf("scanning term: %w", err)
		}
		terms[term] = index.TermID(id)
	}
	return terms, rows.Err()
}

func (s *Postgres) Close() error {
	return s.client.Close()
}
