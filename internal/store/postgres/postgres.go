// internal/store/postgres/postgres.go
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"carepulse/internal/store"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	database_id   TEXT        NOT NULL,
	collection_id TEXT        NOT NULL,
	id            TEXT        NOT NULL,
	data          JSONB       NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (database_id, collection_id, id)
);
CREATE INDEX IF NOT EXISTS documents_created_at_idx
	ON documents (database_id, collection_id, created_at DESC);`

// Store keeps every collection in one JSONB table.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Store {
	return &Store{db: db, now: store.Now}
}

// EnsureSchema creates the documents table and its index when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure documents schema: %w", err)
	}
	return nil
}

func (s *Store) CreateDocument(ctx context.Context, databaseID, collectionID, documentID string, data map[string]interface{}) (*store.Document, error) {
	id := store.ResolveID(documentID)
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	now := s.now()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (database_id, collection_id, id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)`,
		databaseID, collectionID, id, payload, now,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: %s/%s", store.ErrConflict, collectionID, id)
		}
		return nil, fmt.Errorf("insert document: %w", err)
	}

	return &store.Document{
		ID:           id,
		DatabaseID:   databaseID,
		CollectionID: collectionID,
		CreatedAt:    now,
		UpdatedAt:    now,
		Data:         data,
	}, nil
}

func (s *Store) GetDocument(ctx context.Context, databaseID, collectionID, documentID string) (*store.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT data, created_at, updated_at FROM documents
		WHERE database_id = $1 AND collection_id = $2 AND id = $3`,
		databaseID, collectionID, documentID,
	)
	doc, err := scanDocument(row, databaseID, collectionID, documentID)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Store) UpdateDocument(ctx context.Context, databaseID, collectionID, documentID string, data map[string]interface{}) (*store.Document, error) {
	patch, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE documents SET data = data || $4::jsonb, updated_at = $5
		WHERE database_id = $1 AND collection_id = $2 AND id = $3
		RETURNING data, created_at, updated_at`,
		databaseID, collectionID, documentID, patch, s.now(),
	)
	return scanDocument(row, databaseID, collectionID, documentID)
}

func (s *Store) ListDocuments(ctx context.Context, databaseID, collectionID string, opts ...store.QueryOption) ([]*store.Document, error) {
	q := store.BuildQuery(opts...)

	var sb strings.Builder
	sb.WriteString(`SELECT id, data, created_at, updated_at FROM documents WHERE database_id = $1 AND collection_id = $2`)
	args := []interface{}{databaseID, collectionID}
	for _, f := range q.Filters {
		args = append(args, f.Field, fmt.Sprint(f.Value))
		fmt.Fprintf(&sb, ` AND data->>$%d = $%d`, len(args)-1, len(args))
	}
	sb.WriteString(` ORDER BY created_at DESC, id`)
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, ` LIMIT $%d`, len(args))
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []*store.Document
	for rows.Next() {
		var (
			id      string
			payload []byte
			doc     = &store.Document{DatabaseID: databaseID, CollectionID: collectionID}
		)
		if err := rows.Scan(&id, &payload, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc.ID = id
		if err := json.Unmarshal(payload, &doc.Data); err != nil {
			return nil, fmt.Errorf("unmarshal document %s: %w", id, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

func scanDocument(row *sql.Row, databaseID, collectionID, documentID string) (*store.Document, error) {
	var payload []byte
	doc := &store.Document{ID: documentID, DatabaseID: databaseID, CollectionID: collectionID}

	if err := row.Scan(&payload, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s/%s", store.ErrNotFound, collectionID, documentID)
		}
		return nil, fmt.Errorf("read document: %w", err)
	}
	if err := json.Unmarshal(payload, &doc.Data); err != nil {
		return nil, fmt.Errorf("unmarshal document %s: %w", documentID, err)
	}
	return doc, nil
}
