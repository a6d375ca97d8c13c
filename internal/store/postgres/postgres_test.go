// internal/store/postgres/postgres_test.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"carepulse/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := New(db)
	s.now = func() time.Time { return fixedNow }
	return s, mock
}

func TestStore_EnsureSchema(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS documents`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateDocument(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec(`INSERT INTO documents`).
		WithArgs("carepulse", "appointments", sqlmock.AnyArg(), sqlmock.AnyArg(), fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))

	doc, err := s.CreateDocument(context.Background(), "carepulse", "appointments", store.UniqueID,
		map[string]interface{}{"status": "pending"})

	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	assert.NotEqual(t, store.UniqueID, doc.ID)
	assert.Equal(t, fixedNow, doc.CreatedAt)
	assert.Equal(t, "pending", doc.Data["status"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateDocument_UniqueViolation(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec(`INSERT INTO documents`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})

	_, err := s.CreateDocument(context.Background(), "carepulse", "users", "u-1", map[string]interface{}{})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestStore_CreateDocument_DatabaseError(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectExec(`INSERT INTO documents`).WillReturnError(errors.New("connection reset"))

	_, err := s.CreateDocument(context.Background(), "carepulse", "users", "u-1", map[string]interface{}{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrConflict)
}

func TestStore_GetDocument(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT data, created_at, updated_at FROM documents`).
		WithArgs("carepulse", "patients", "p-1").
		WillReturnRows(sqlmock.NewRows([]string{"data", "created_at", "updated_at"}).
			AddRow([]byte(`{"userId":"u-1","name":"Jane"}`), fixedNow, fixedNow))

	doc, err := s.GetDocument(context.Background(), "carepulse", "patients", "p-1")
	require.NoError(t, err)
	assert.Equal(t, "p-1", doc.ID)
	assert.Equal(t, "Jane", doc.Data["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetDocument_NotFound(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT data, created_at, updated_at FROM documents`).
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetDocument(context.Background(), "carepulse", "patients", "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_UpdateDocument(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(`UPDATE documents SET data = data \|\| \$4::jsonb`).
		WithArgs("carepulse", "appointments", "a-1", sqlmock.AnyArg(), fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"data", "created_at", "updated_at"}).
			AddRow([]byte(`{"status":"cancelled","reason":"checkup"}`), fixedNow.Add(-time.Hour), fixedNow))

	doc, err := s.UpdateDocument(context.Background(), "carepulse", "appointments", "a-1",
		map[string]interface{}{"status": "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, "cancelled", doc.Data["status"])
	assert.Equal(t, "checkup", doc.Data["reason"])
	assert.Equal(t, fixedNow, doc.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdateDocument_NotFound(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(`UPDATE documents`).WillReturnError(sql.ErrNoRows)

	_, err := s.UpdateDocument(context.Background(), "carepulse", "appointments", "missing", map[string]interface{}{})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_ListDocuments(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT id, data, created_at, updated_at FROM documents WHERE database_id = \$1 AND collection_id = \$2 AND data->>\$3 = \$4 ORDER BY created_at DESC, id LIMIT \$5`).
		WithArgs("carepulse", "patients", "userId", "u-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "data", "created_at", "updated_at"}).
			AddRow("p-1", []byte(`{"userId":"u-1"}`), fixedNow, fixedNow))

	docs, err := s.ListDocuments(context.Background(), "carepulse", "patients",
		store.Equal("userId", "u-1"), store.Limit(1))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "p-1", docs[0].ID)
	assert.Equal(t, "patients", docs[0].CollectionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListDocuments_Unfiltered(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(`ORDER BY created_at DESC, id$`).
		WithArgs("carepulse", "appointments").
		WillReturnRows(sqlmock.NewRows([]string{"id", "data", "created_at", "updated_at"}))

	docs, err := s.ListDocuments(context.Background(), "carepulse", "appointments")
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.NoError(t, mock.ExpectationsWereMet())
}
