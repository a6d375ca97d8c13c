// internal/store/elastic/elastic.go
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"carepulse/internal/store"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// pageSize is how many hits one search request asks for. Longer listings
// page on with search_after.
const pageSize = 100

// Store keeps each collection in its own index named <database>-<collection>.
type Store struct {
	client *elasticsearch.Client
	now    func() time.Time
}

func New(client *elasticsearch.Client) *Store {
	return &Store{client: client, now: store.Now}
}

func IndexName(databaseID, collectionID string) string {
	return strings.ToLower(databaseID + "-" + collectionID)
}

type source struct {
	ID        string                 `json:"id,omitempty"`
	Data      map[string]interface{} `json:"data"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

type getResponse struct {
	ID     string `json:"_id"`
	Found  bool   `json:"found"`
	Source source `json:"_source"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string        `json:"_id"`
			Source source        `json:"_source"`
			Sort   []interface{} `json:"sort"`
		} `json:"hits"`
	} `json:"hits"`
}

func (s *Store) CreateDocument(ctx context.Context, databaseID, collectionID, documentID string, data map[string]interface{}) (*store.Document, error) {
	id := store.ResolveID(documentID)
	now := s.now()
	body, err := json.Marshal(source{ID: id, Data: data, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}

	res, err := s.client.Create(
		IndexName(databaseID, collectionID), id, bytes.NewReader(body),
		s.client.Create.WithContext(ctx),
		s.client.Create.WithRefresh("wait_for"),
	)
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusConflict {
		return nil, fmt.Errorf("%w: %s/%s", store.ErrConflict, collectionID, id)
	}
	if res.IsError() {
		return nil, fmt.Errorf("create document: %s", res.String())
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
	res, err := s.client.Get(
		IndexName(databaseID, collectionID), documentID,
		s.client.Get.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s/%s", store.ErrNotFound, collectionID, documentID)
	}
	if res.IsError() {
		return nil, fmt.Errorf("get document: %s", res.String())
	}

	var got getResponse
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", documentID, err)
	}
	if !got.Found {
		return nil, fmt.Errorf("%w: %s/%s", store.ErrNotFound, collectionID, documentID)
	}
	return toDocument(databaseID, collectionID, documentID, got.Source), nil
}

func (s *Store) UpdateDocument(ctx context.Context, databaseID, collectionID, documentID string, data map[string]interface{}) (*store.Document, error) {
	body, err := json.Marshal(map[string]interface{}{
		"doc": map[string]interface{}{
			"data":      data,
			"updatedAt": s.now(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}

	res, err := s.client.Update(
		IndexName(databaseID, collectionID), documentID, bytes.NewReader(body),
		s.client.Update.WithContext(ctx),
		s.client.Update.WithRefresh("wait_for"),
	)
	if err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s/%s", store.ErrNotFound, collectionID, documentID)
	}
	if res.IsError() {
		return nil, fmt.Errorf("update document: %s", res.String())
	}

	return s.GetDocument(ctx, databaseID, collectionID, documentID)
}

// ListDocuments returns matching documents newest first, ties broken by id.
// Without a limit it pages through every match.
func (s *Store) ListDocuments(ctx context.Context, databaseID, collectionID string, opts ...store.QueryOption) ([]*store.Document, error) {
	q := store.BuildQuery(opts...)
	var (
		docs  []*store.Document
		after []interface{}
	)
	for {
		size := pageSize
		if q.Limit > 0 && q.Limit-len(docs) < size {
			size = q.Limit - len(docs)
		}

		page, last, err := s.search(ctx, databaseID, collectionID, searchBody(q, size, after))
		if err != nil {
			return nil, err
		}
		docs = append(docs, page...)

		if len(page) < size || len(last) == 0 || (q.Limit > 0 && len(docs) >= q.Limit) {
			return docs, nil
		}
		after = last
	}
}

// search runs one page and returns its documents plus the sort values of the
// last hit.
func (s *Store) search(ctx context.Context, databaseID, collectionID string, query map[string]interface{}) ([]*store.Document, []interface{}, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal query: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(IndexName(databaseID, collectionID)),
		s.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("search documents: %w", err)
	}
	defer res.Body.Close()

	// A collection nobody has written to yet has no index.
	if res.StatusCode == http.StatusNotFound {
		return nil, nil, nil
	}
	if res.IsError() {
		return nil, nil, fmt.Errorf("search documents: %s", res.String())
	}

	return decodeHits(res, databaseID, collectionID)
}

func decodeHits(res *esapi.Response, databaseID, collectionID string) ([]*store.Document, []interface{}, error) {
	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, nil, fmt.Errorf("decode search response: %w", err)
	}
	docs := make([]*store.Document, 0, len(parsed.Hits.Hits))
	var last []interface{}
	for _, hit := range parsed.Hits.Hits {
		docs = append(docs, toDocument(databaseID, collectionID, hit.ID, hit.Source))
		last = hit.Sort
	}
	return docs, last, nil
}

func searchBody(q store.Query, size int, after []interface{}) map[string]interface{} {
	filters := make([]interface{}, 0, len(q.Filters))
	for _, f := range q.Filters {
		field := "data." + f.Field
		if _, ok := f.Value.(string); ok {
			field += ".keyword"
		}
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{field: f.Value},
		})
	}

	body := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"filter": filters},
		},
		"sort": []interface{}{
			map[string]interface{}{"createdAt": map[string]interface{}{"order": "desc"}},
			map[string]interface{}{"id.keyword": map[string]interface{}{"order": "asc", "unmapped_type": "keyword"}},
		},
		"size": size,
	}
	if len(after) > 0 {
		body["search_after"] = after
	}
	return body
}

func toDocument(databaseID, collectionID, id string, src source) *store.Document {
	return &store.Document{
		ID:           id,
		DatabaseID:   databaseID,
		CollectionID: collectionID,
		CreatedAt:    src.CreatedAt,
		UpdatedAt:    src.UpdatedAt,
		Data:         src.Data,
	}
}
