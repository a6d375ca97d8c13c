// Package store is the document persistence boundary. Records are schemaless
// JSON documents addressed by database, collection and document ID.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrConflict = errors.New("document already exists")
)

// UniqueID asks the store to assign a fresh document ID.
const UniqueID = "unique()"

// Document is a stored record plus its metadata.
type Document struct {
	ID           string                 `json:"$id"`
	DatabaseID   string                 `json:"$databaseId"`
	CollectionID string                 `json:"$collectionId"`
	CreatedAt    time.Time              `json:"$createdAt"`
	UpdatedAt    time.Time              `json:"$updatedAt"`
	Data         map[string]interface{} `json:"data"`
}

// Store is implemented by every persistence backend.
type Store interface {
	CreateDocument(ctx context.Context, databaseID, collectionID, documentID string, data map[string]interface{}) (*Document, error)
	GetDocument(ctx context.Context, databaseID, collectionID, documentID string) (*Document, error)
	// UpdateDocument replaces the given top-level keys and keeps the rest.
	UpdateDocument(ctx context.Context, databaseID, collectionID, documentID string, data map[string]interface{}) (*Document, error)
	// ListDocuments returns matching documents, newest first.
	ListDocuments(ctx context.Context, databaseID, collectionID string, opts ...QueryOption) ([]*Document, error)
}

func NewID() string {
	return uuid.New().String()
}

// ResolveID returns id, or a generated one for "" and UniqueID.
func ResolveID(id string) string {
	if id == "" || id == UniqueID {
		return NewID()
	}
	return id
}

// Now is the timestamp source for document metadata, in UTC at microsecond
// precision so values survive a database round trip unchanged.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Filter matches documents whose top-level Field equals Value.
type Filter struct {
	Field string
	Value interface{}
}

type Query struct {
	Filters []Filter
	Limit   int
}

type QueryOption func(*Query)

func Equal(field string, value interface{}) QueryOption {
	return func(q *Query) {
		q.Filters = append(q.Filters, Filter{Field: field, Value: value})
	}
}

// Limit caps the number of documents returned. Zero means no cap.
func Limit(n int) QueryOption {
	return func(q *Query) {
		if n > 0 {
			q.Limit = n
		}
	}
}

func BuildQuery(opts ...QueryOption) Query {
	var q Query
	for _, opt := range opts {
		opt(&q)
	}
	return q
}

// Matches reports whether data satisfies every filter. Values compare by
// their printed form so a string filter matches a decoded JSON string.
func (q Query) Matches(data map[string]interface{}) bool {
	for _, f := range q.Filters {
		v, ok := data[f.Field]
		if !ok || fmt.Sprint(v) != fmt.Sprint(f.Value) {
			return false
		}
	}
	return true
}

// Encode flattens v into document data. Metadata keys starting with "$" are dropped.
func Encode(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	for k := range data {
		if strings.HasPrefix(k, "$") {
			delete(data, k)
		}
	}
	return data, nil
}

// Decode fills v from the document data and its metadata.
func Decode(doc *Document, v interface{}) error {
	if doc == nil {
		return ErrNotFound
	}
	m := make(map[string]interface{}, len(doc.Data)+3)
	for k, val := range doc.Data {
		m[k] = val
	}
	m["$id"] = doc.ID
	m["$createdAt"] = doc.CreatedAt
	m["$updatedAt"] = doc.UpdatedAt

	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("decode document %s: %w", doc.ID, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode document %s: %w", doc.ID, err)
	}
	return nil
}

// Merge copies the keys of patch over base and returns base.
func Merge(base, patch map[string]interface{}) map[string]interface{} {
	if base == nil {
		base = make(map[string]interface{}, len(patch))
	}
	for k, v := range patch {
		base[k] = v
	}
	return base
}

// SortNewestFirst orders docs by creation time, newest first, then by ID.
func SortNewestFirst(docs []*Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
}
