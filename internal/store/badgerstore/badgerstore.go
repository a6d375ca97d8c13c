// Package badgerstore keeps documents in an embedded badger database, one
// JSON value per key under <database>/<collection>/<id>.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"carepulse/internal/store"

	"github.com/dgraph-io/badger/v4"
)

type Store struct {
	db  *badger.DB
	now func() time.Time
}

func New(db *badger.DB) *Store {
	return &Store{db: db, now: store.Now}
}

func prefix(databaseID, collectionID string) []byte {
	return []byte(databaseID + "/" + collectionID + "/")
}

func key(databaseID, collectionID, id string) []byte {
	return append(prefix(databaseID, collectionID), id...)
}

func (s *Store) CreateDocument(ctx context.Context, databaseID, collectionID, documentID string, data map[string]interface{}) (*store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := s.now()
	doc := &store.Document{
		ID:           store.ResolveID(documentID),
		DatabaseID:   databaseID,
		CollectionID: collectionID,
		CreatedAt:    now,
		UpdatedAt:    now,
		Data:         data,
	}
	k := key(databaseID, collectionID, doc.ID)

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(k); err == nil {
			return fmt.Errorf("%w: %s/%s", store.ErrConflict, collectionID, doc.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return put(txn, k, doc)
	})
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return doc, nil
}

func (s *Store) GetDocument(ctx context.Context, databaseID, collectionID, documentID string) (*store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var doc *store.Document
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		doc, err = get(txn, key(databaseID, collectionID, documentID))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s/%s", store.ErrNotFound, collectionID, documentID)
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (s *Store) UpdateDocument(ctx context.Context, databaseID, collectionID, documentID string, data map[string]interface{}) (*store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	k := key(databaseID, collectionID, documentID)

	var doc *store.Document
	err := s.db.Update(func(txn *badger.Txn) error {
		var err error
		doc, err = get(txn, k)
		if err != nil {
			return err
		}
		doc.Data = store.Merge(doc.Data, data)
		doc.UpdatedAt = s.now()
		return put(txn, k, doc)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s/%s", store.ErrNotFound, collectionID, documentID)
	}
	if err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}
	return doc, nil
}

func (s *Store) ListDocuments(ctx context.Context, databaseID, collectionID string, opts ...store.QueryOption) ([]*store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := store.BuildQuery(opts...)
	p := prefix(databaseID, collectionID)

	var docs []*store.Document
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			var doc store.Document
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &doc)
			}); err != nil {
				return err
			}
			if q.Matches(doc.Data) {
				docs = append(docs, &doc)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	store.SortNewestFirst(docs)
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs, nil
}

func get(txn *badger.Txn, k []byte) (*store.Document, error) {
	item, err := txn.Get(k)
	if err != nil {
		return nil, err
	}
	var doc store.Document
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &doc)
	}); err != nil {
		return nil, err
	}
	return &doc, nil
}

func put(txn *badger.Txn, k []byte, doc *store.Document) error {
	val, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return txn.Set(k, val)
}
