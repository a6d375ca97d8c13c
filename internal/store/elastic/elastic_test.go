// internal/store/elastic/elastic_test.go
package elastic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"carepulse/internal/store"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCluster answers the handful of document APIs the store uses.
type fakeCluster struct {
	mu         sync.Mutex
	indices    map[string]map[string]*source
	order      map[string][]string
	lastSearch map[string]interface{}
	searches   int
}

// seed stores n documents directly, the last one newest.
func (f *fakeCluster) seed(index string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.indices[index] == nil {
		f.indices[index] = make(map[string]*source)
	}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("a-%03d", i)
		f.indices[index][id] = &source{ID: id, Data: map[string]interface{}{"n": i}}
		f.order[index] = append([]string{id}, f.order[index]...)
	}
}

func newFakeCluster() *fakeCluster {
	return &fakeCluster{
		indices: make(map[string]map[string]*source),
		order:   make(map[string][]string),
	}
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	body, _ := io.ReadAll(r.Body)

	switch {
	case len(parts) == 3 && parts[1] == "_create":
		index, id := parts[0], parts[2]
		if _, ok := f.indices[index][id]; ok {
			writeJSON(w, http.StatusConflict, map[string]interface{}{"error": map[string]string{"type": "version_conflict_engine_exception"}, "status": 409})
			return
		}
		var src source
		_ = json.Unmarshal(body, &src)
		if f.indices[index] == nil {
			f.indices[index] = make(map[string]*source)
		}
		f.indices[index][id] = &src
		f.order[index] = append([]string{id}, f.order[index]...)
		writeJSON(w, http.StatusCreated, map[string]interface{}{"_id": id, "result": "created"})

	case len(parts) == 3 && parts[1] == "_doc":
		index, id := parts[0], parts[2]
		src, ok := f.indices[index][id]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]interface{}{"_id": id, "found": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"_id": id, "found": true, "_source": src})

	case len(parts) == 3 && parts[1] == "_update":
		index, id := parts[0], parts[2]
		src, ok := f.indices[index][id]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": map[string]string{"type": "document_missing_exception"}, "status": 404})
			return
		}
		var patch struct {
			Doc source `json:"doc"`
		}
		_ = json.Unmarshal(body, &patch)
		src.Data = store.Merge(src.Data, patch.Doc.Data)
		src.UpdatedAt = patch.Doc.UpdatedAt
		writeJSON(w, http.StatusOK, map[string]interface{}{"_id": id, "result": "updated"})

	case len(parts) == 2 && parts[1] == "_search":
		index := parts[0]
		f.lastSearch = nil
		_ = json.Unmarshal(body, &f.lastSearch)
		f.searches++
		docs, ok := f.indices[index]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": map[string]string{"type": "index_not_found_exception"}, "status": 404})
			return
		}
		// Sort values carry the position in newest-first order.
		start := 0
		if after, ok := f.lastSearch["search_after"].([]interface{}); ok && len(after) > 0 {
			start = int(after[0].(float64)) + 1
		}
		size := len(f.order[index])
		if n, ok := f.lastSearch["size"].(float64); ok {
			size = int(n)
		}
		hits := make([]map[string]interface{}, 0, size)
		for pos := start; pos < len(f.order[index]) && len(hits) < size; pos++ {
			id := f.order[index][pos]
			hits = append(hits, map[string]interface{}{"_id": id, "_source": docs[id], "sort": []interface{}{pos, id}})
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"hits": map[string]interface{}{"hits": hits}})

	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported " + r.URL.Path})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestStore(t *testing.T) (*Store, *fakeCluster) {
	t.Helper()
	cluster := newFakeCluster()
	srv := httptest.NewServer(cluster)
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return New(client), cluster
}

func TestIndexName(t *testing.T) {
	assert.Equal(t, "carepulse-appointments", IndexName("CarePulse", "appointments"))
}

func TestStore_CreateGetUpdate(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateDocument(ctx, "carepulse", "appointments", store.UniqueID,
		map[string]interface{}{"status": "pending", "reason": "checkup"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := s.GetDocument(ctx, "carepulse", "appointments", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "pending", got.Data["status"])
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))

	updated, err := s.UpdateDocument(ctx, "carepulse", "appointments", created.ID,
		map[string]interface{}{"status": "scheduled"})
	require.NoError(t, err)
	assert.Equal(t, "scheduled", updated.Data["status"])
	assert.Equal(t, "checkup", updated.Data["reason"])
}

func TestStore_CreateDocument_Conflict(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateDocument(ctx, "carepulse", "users", "u-1", map[string]interface{}{"name": "Jane"})
	require.NoError(t, err)

	_, err = s.CreateDocument(ctx, "carepulse", "users", "u-1", map[string]interface{}{"name": "Jane"})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestStore_NotFound(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetDocument(ctx, "carepulse", "patients", "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.UpdateDocument(ctx, "carepulse", "patients", "missing", map[string]interface{}{})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_ListDocuments(t *testing.T) {
	s, cluster := newTestStore(t)
	ctx := context.Background()

	docs, err := s.ListDocuments(ctx, "carepulse", "patients")
	require.NoError(t, err)
	assert.Empty(t, docs)

	_, err = s.CreateDocument(ctx, "carepulse", "patients", "p-1", map[string]interface{}{"userId": "u-1"})
	require.NoError(t, err)

	docs, err = s.ListDocuments(ctx, "carepulse", "patients", store.Equal("userId", "u-1"), store.Limit(1))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "p-1", docs[0].ID)

	assert.EqualValues(t, 1, cluster.lastSearch["size"])
	filters := cluster.lastSearch["query"].(map[string]interface{})["bool"].(map[string]interface{})["filter"].([]interface{})
	require.Len(t, filters, 1)
	assert.Equal(t, map[string]interface{}{
		"term": map[string]interface{}{"data.userId.keyword": "u-1"},
	}, filters[0])
}

func TestStore_ListDocuments_PagesWithoutLimit(t *testing.T) {
	s, cluster := newTestStore(t)
	cluster.seed("carepulse-appointments", 2*pageSize+5)

	docs, err := s.ListDocuments(context.Background(), "carepulse", "appointments")
	require.NoError(t, err)
	require.Len(t, docs, 2*pageSize+5)
	assert.Equal(t, fmt.Sprintf("a-%03d", 2*pageSize+4), docs[0].ID)
	assert.Equal(t, "a-000", docs[len(docs)-1].ID)
	assert.Equal(t, 3, cluster.searches)
	assert.Equal(t, []interface{}{float64(2*pageSize - 1), fmt.Sprintf("a-%03d", 5)}, cluster.lastSearch["search_after"])
}

func TestStore_ListDocuments_LimitAcrossPages(t *testing.T) {
	s, cluster := newTestStore(t)
	cluster.seed("carepulse-appointments", pageSize+50)

	docs, err := s.ListDocuments(context.Background(), "carepulse", "appointments", store.Limit(pageSize+10))
	require.NoError(t, err)
	assert.Len(t, docs, pageSize+10)
	assert.Equal(t, 2, cluster.searches)
	assert.EqualValues(t, 10, cluster.lastSearch["size"])
}

func TestSearchBody_SortAndNonStringTerms(t *testing.T) {
	body := searchBody(store.BuildQuery(store.Equal("privacyConsent", true)), pageSize, nil)

	assert.Equal(t, pageSize, body["size"])
	assert.NotContains(t, body, "search_after")
	filters := body["query"].(map[string]interface{})["bool"].(map[string]interface{})["filter"].([]interface{})
	assert.Equal(t, map[string]interface{}{
		"term": map[string]interface{}{"data.privacyConsent": true},
	}, filters[0])

	sort := body["sort"].([]interface{})
	require.Len(t, sort, 2)
	assert.Contains(t, sort[1], "id.keyword")

	body = searchBody(store.BuildQuery(), 5, []interface{}{int64(1), "a-1"})
	assert.Equal(t, []interface{}{int64(1), "a-1"}, body["search_after"])
}
