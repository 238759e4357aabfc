package scholar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/scholarchat/internal/logger"
	"github.com/yoockh/scholarchat/internal/ratelimit"
	"github.com/yoockh/scholarchat/internal/utils"
)

// memCache is a map-backed cache.Cache.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (m *memCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (m *memCache) SetJSON(_ context.Context, key string, val any, _ time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = b
	return nil
}

const searchBody = `{
  "total": 42,
  "next": 2,
  "data": [
    {
      "paperId": "p1",
      "title": "Full paper",
      "abstract": "An abstract.",
      "year": 2021,
      "authors": [{"authorId": "a1", "name": "Ada"}, {"authorId": null, "name": "Grace"}],
      "venue": "Nature",
      "citationCount": 7,
      "url": "https://example.org/p1",
      "externalIds": {"DOI": "10.1/xyz"},
      "s2FieldsOfStudy": [{"category": "Biology", "source": "s2"}]
    },
    {
      "paperId": "p2",
      "title": "Sparse paper",
      "abstract": null,
      "year": null,
      "authors": [],
      "venue": "",
      "citationCount": null,
      "url": null
    }
  ]
}`

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	opts = append([]Option{WithBaseURL(srv.URL), WithLogger(logger.Discard())}, opts...)
	return NewClient(ratelimit.New(1000), opts...)
}

func TestSearch_NormalizesPapers(t *testing.T) {
	var got *http.Request
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		_, _ = w.Write([]byte(searchBody))
	}), WithAPIKey("secret"))

	res, err := c.Search(context.Background(), SearchParams{
		Query:            "gene editing",
		Limit:            4,
		Year:             "2020-",
		FieldsOfStudy:    []string{"Biology", "Medicine"},
		MinCitationCount: 1,
	})
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "/paper/search", got.URL.Path)
	q := got.URL.Query()
	assert.Equal(t, "gene editing", q.Get("query"))
	assert.Equal(t, "4", q.Get("limit"))
	assert.Equal(t, "0", q.Get("offset"))
	assert.Equal(t, "2020-", q.Get("year"))
	assert.Equal(t, []string{"Biology", "Medicine"}, q["fieldsOfStudy"])
	assert.Equal(t, "1", q.Get("minCitationCount"))
	assert.Equal(t, paperFields, q.Get("fields"))
	assert.Equal(t, "secret", got.Header.Get("x-api-key"))

	assert.Equal(t, 42, res.Total)
	require.NotNil(t, res.Next)
	assert.Equal(t, 2, *res.Next)
	require.Len(t, res.Papers, 2)

	full := res.Papers[0]
	assert.Equal(t, "p1", full.PaperID)
	assert.Equal(t, "An abstract.", *full.Abstract)
	assert.Equal(t, 2021, *full.Year)
	assert.Equal(t, 7, full.CitationCount)
	assert.Equal(t, "https://example.org/p1", *full.URL)
	assert.Equal(t, "10.1/xyz", *full.DOI)
	assert.Equal(t, []string{"Biology"}, []string(full.FieldsOfStudy))
	require.Len(t, full.Authors, 2)
	assert.Equal(t, "a1", *full.Authors[0].AuthorID)
	assert.Nil(t, full.Authors[1].AuthorID)

	sparse := res.Papers[1]
	assert.Nil(t, sparse.Abstract)
	assert.Nil(t, sparse.Year)
	assert.Nil(t, sparse.Venue)
	assert.Nil(t, sparse.DOI)
	assert.Nil(t, sparse.FieldsOfStudy)
	assert.Equal(t, 0, sparse.CitationCount)
	assert.Equal(t, "https://www.semanticscholar.org/paper/p2", *sparse.URL)
	assert.Empty(t, sparse.Authors)
}

func TestSearch_EmptyQuery(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())

	_, err := c.Search(context.Background(), SearchParams{Query: "  "})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestSearch_RateLimited(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := c.Search(context.Background(), SearchParams{Query: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrRateLimited)
	assert.Equal(t, http.StatusTooManyRequests, utils.HTTPStatus(err))

	var ae *utils.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, utils.RateLimitedMessage, ae.Message)
}

func TestSearch_ServerError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.Search(context.Background(), SearchParams{Query: "x"})
	assert.ErrorIs(t, err, utils.ErrExternalService)
	assert.Contains(t, err.Error(), "Semantic Scholar API error: 500 Internal Server Error")
}

func TestSearch_NotFoundIsAnErrorForSearch(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())

	_, err := c.Search(context.Background(), SearchParams{Query: "x"})
	assert.ErrorIs(t, err, utils.ErrExternalService)
}

func TestSearch_CacheHitSkipsUpstream(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(searchBody))
	}), WithCache(newMemCache(), time.Minute))

	p := SearchParams{Query: "cached", Limit: 2}
	first, err := c.Search(context.Background(), p)
	require.NoError(t, err)
	second, err := c.Search(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, first.Papers[0].PaperID, second.Papers[0].PaperID)

	_, err = c.Search(context.Background(), SearchParams{Query: "cached", Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestGetPaperDetails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/paper/p1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"paperId":"p1","title":"Found","citationCount":3}`))
	})
	mux.HandleFunc("/paper/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	p, err := c.GetPaperDetails(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Found", p.Title)
	assert.Equal(t, "https://www.semanticscholar.org/paper/p1", *p.URL)

	p, err = c.GetPaperDetails(ctx, "missing")
	assert.NoError(t, err)
	assert.Nil(t, p)

	_, err = c.GetPaperDetails(ctx, "broken")
	assert.ErrorIs(t, err, utils.ErrExternalService)

	batch := c.BatchGetPaperDetails(ctx, []string{"p1", "missing", "broken"})
	require.Len(t, batch, 3)
	assert.NotNil(t, batch[0])
	assert.Nil(t, batch[1])
	assert.Nil(t, batch[2])
}

func TestRequestsAreRateLimited(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total":0,"data":[]}`))
	}))
	c.limiter = ratelimit.New(5) // 200ms

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.Search(context.Background(), SearchParams{Query: "x", Offset: i})
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond)
}
