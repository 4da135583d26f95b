package idstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/collection"
	"github.com/Adithya-Monish-Kumar-K/bsbi-indexer/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/bsbi-indexer/pkg/errors"
)

var (
	bucketDocuments = []byte("documents")
	bucketTerms     = []byte("terms")
	bucketTermIDs   = []byte("term_ids")
)

// Bolt keeps the mappings in a single bbolt file. Document keys are
// big-endian ids so a cursor walks them in id order. term_ids indexes the
// terms bucket by id.
type Bolt struct {
	db *bbolt.DB
}

func OpenBolt(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating id store directory: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketDocuments, bucketTerms, bucketTermIDs} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		byID := tx.Bucket(bucketTermIDs)
		if byID.Stats().KeyN > 0 {
			return nil
		}
		return tx.Bucket(bucketTerms).ForEach(func(term, id []byte) error {
			return byID.Put(id, term)
		})
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Bolt{db: db}, nil
}

func encodeID(id uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, id)
	return buf
}

func decodeID(buf []byte) (uint32, error) {
	if len(buf) != 4 {
		return 0, fmt.Errorf("corrupt id store value of %d bytes", len(buf))
	}
	return binary.BigEndian.Uint32(buf), nil
}

// SaveDocuments replaces the stored document map.
func (s *Bolt) SaveDocuments(_ context.Context, docs collection.MapDocuments) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketDocuments); err != nil {
			return err
		}
		b, err := tx.CreateBucket(bucketDocuments)
		if err != nil {
			return err
		}
		for id, path := range docs {
			if err := b.Put(encodeID(uint32(id)), []byte(path)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Bolt) LoadDocuments(_ context.Context) (collection.MapDocuments, error) {
	docs := collection.MapDocuments{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocuments).ForEach(func(k, v []byte) error {
			id, err := decodeID(k)
			if err != nil {
				return err
			}
			docs[index.DocID(id)] = string(v)
			return nil
		})
	})
	return docs, err
}

// SaveVocabulary merges terms into the stored vocabulary. A term stored
// under another id, or an id already owned by another term, fails the whole
// save with ErrVocabulary.
func (s *Bolt) SaveVocabulary(_ context.Context, terms map[string]index.TermID) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		byTerm := tx.Bucket(bucketTerms)
		byID := tx.Bucket(bucketTermIDs)
		for term, id := range terms {
			key := encodeID(uint32(id))
			if stored := byTerm.Get([]byte(term)); stored != nil {
				if !bytes.Equal(stored, key) {
					storedID, _ := decodeID(stored)
					return apperrors.Newf(apperrors.ErrVocabulary, "term %q is stored with id %d, run assigned %d", term, storedID, id)
				}
				continue
			}
			if owner := byID.Get(key); owner != nil {
				return apperrors.Newf(apperrors.ErrVocabulary, "term id %d belongs to %q, run assigned it to %q", id, owner, term)
			}
			if err := byTerm.Put([]byte(term), key); err != nil {
				return err
			}
			if err := byID.Put(key, []byte(term)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Bolt) LoadVocabulary(_ context.Context) (map[string]index.TermID, error) {
	terms := make(map[string]index.TermID)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTerms).ForEach(func(k, v []byte) error {
			id, err := decodeID(v)
			if err != nil {
				return err
			}
			terms[string(k)] = index.TermID(id)
			return nil
		})
	})
	return terms, err
}

func (s *Bolt) Close() error {
	return s.db.Close()
}
