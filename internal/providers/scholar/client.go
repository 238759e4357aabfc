package scholar

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/scholarchat/internal/cache"
	"github.com/yoockh/scholarchat/internal/models"
	"github.com/yoockh/scholarchat/internal/ratelimit"
	"github.com/yoockh/scholarchat/internal/utils"
)

const (
	DefaultBaseURL = "https://api.semanticscholar.org/graph/v1"
	paperPageURL   = "https://www.semanticscholar.org/paper/"
)

var paperFields = strings.Join([]string{
	"paperId",
	"title",
	"abstract",
	"year",
	"authors",
	"venue",
	"citationCount",
	"url",
	"externalIds",
	"s2FieldsOfStudy",
}, ",")

// SearchParams mirrors the query parameters of /paper/search. Zero values are omitted.
type SearchParams struct {
	Query            string
	Limit            int
	Offset           int
	Year             string
	FieldsOfStudy    []string
	Venue            string
	MinCitationCount int
}

type SearchResult struct {
	Papers []models.ResearchPaper `json:"papers"`
	Total  int                    `json:"total"`
	Next   *int                   `json:"next,omitempty"`
}

// Searcher is the slice of the client the research pipeline depends on.
type Searcher interface {
	Search(ctx context.Context, p SearchParams) (*SearchResult, error)
}

type Client struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	limiter  *ratelimit.Limiter
	cache    cache.Cache
	cacheTTL time.Duration
	logger   logrus.FieldLogger
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithAPIKey(k string) Option {
	return func(c *Client) { c.apiKey = k }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithCache(ch cache.Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = ch
		c.cacheTTL = ttl
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient builds a Semantic Scholar client. Every outbound request goes through limiter.
func NewClient(limiter *ratelimit.Limiter, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: limiter,
		logger:  logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.limiter == nil {
		c.limiter = ratelimit.New(1)
	}
	if c.cache == nil {
		c.cache = cache.Nop{}
	}
	return c
}

func (c *Client) Search(ctx context.Context, p SearchParams) (*SearchResult, error) {
	const op = "ScholarClient.Search"

	if strings.TrimSpace(p.Query) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "query is required", nil)
	}
	if p.Limit <= 0 {
		p.Limit = 10
	}

	q := url.Values{}
	q.Set("query", p.Query)
	q.Set("limit", strconv.Itoa(p.Limit))
	q.Set("offset", strconv.Itoa(p.Offset))
	q.Set("fields", paperFields)
	if p.Year != "" {
		q.Set("year", p.Year)
	}
	for _, f := range p.FieldsOfStudy {
		q.Add("fieldsOfStudy", f)
	}
	if p.Venue != "" {
		q.Set("venue", p.Venue)
	}
	if p.MinCitationCount > 0 {
		q.Set("minCitationCount", strconv.Itoa(p.MinCitationCount))
	}
	encoded := q.Encode()

	key := searchCacheKey(encoded)
	var cached SearchResult
	if hit, err := c.cache.GetJSON(ctx, key, &cached); err != nil {
		c.logger.WithError(err).Warn("paper search cache read failed")
	} else if hit {
		return &cached, nil
	}

	c.logger.WithField("query", p.Query).Info("searching Semantic Scholar")

	var raw searchResponse
	found, err := c.get(ctx, op, "/paper/search?"+encoded, &raw, false)
	if err != nil {
		return nil, err
	}
	if !found {
		return &SearchResult{Papers: []models.ResearchPaper{}}, nil
	}

	out := &SearchResult{
		Papers: make([]models.ResearchPaper, 0, len(raw.Data)),
		Total:  raw.Total,
		Next:   raw.Next,
	}
	for _, rp := range raw.Data {
		out.Papers = append(out.Papers, rp.normalize())
	}

	if err := c.cache.SetJSON(ctx, key, out, c.cacheTTL); err != nil {
		c.logger.WithError(err).Warn("paper search cache write failed")
	}
	return out, nil
}

// GetPaperDetails returns nil, nil when the paper does not exist.
func (c *Client) GetPaperDetails(ctx context.Context, paperID string) (*models.ResearchPaper, error) {
	const op = "ScholarClient.GetPaperDetails"

	if strings.TrimSpace(paperID) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "paper_id is required", nil)
	}

	c.logger.WithField("paper_id", paperID).Info("fetching paper details")

	var raw rawPaper
	found, err := c.get(ctx, op, "/paper/"+url.PathEscape(paperID)+"?fields="+paperFields, &raw, true)
	if err != nil || !found {
		return nil, err
	}
	p := raw.normalize()
	return &p, nil
}

// BatchGetPaperDetails fetches papers one at a time; a failed or missing lookup yields a nil entry.
func (c *Client) BatchGetPaperDetails(ctx context.Context, paperIDs []string) []*models.ResearchPaper {
	c.logger.WithField("count", len(paperIDs)).Info("batch fetching paper details")

	out := make([]*models.ResearchPaper, 0, len(paperIDs))
	for _, id := range paperIDs {
		p, err := c.GetPaperDetails(ctx, id)
		if err != nil {
			c.logger.WithError(err).WithField("paper_id", id).Warn("paper lookup failed")
		}
		out = append(out, p)
	}
	return out
}

// get performs a rate-limited GET. found is false only for a 404 when allowNotFound is set.
func (c *Client) get(ctx context.Context, op, path string, dst any, allowNotFound bool) (found bool, err error) {
	if err := c.limiter.WaitIfNeeded(ctx); err != nil {
		return false, utils.E(utils.CodeTimeout, op, "rate limiter wait aborted", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, utils.E(utils.CodeInternal, op, "failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, utils.E(utils.CodeExternalService, op, "Semantic Scholar request failed", fmt.Errorf("%w: %v", utils.ErrExternalService, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		switch {
		case resp.StatusCode == http.StatusNotFound && allowNotFound:
			return false, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			c.logger.Warn("rate limit exceeded, API returned 429")
			return false, utils.E(utils.CodeRateLimited, op, utils.RateLimitedMessage, utils.ErrRateLimited)
		default:
			return false, utils.E(utils.CodeExternalService, op,
				fmt.Sprintf("Semantic Scholar API error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
				utils.ErrExternalService)
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return false, utils.E(utils.CodeExternalService, op, "invalid Semantic Scholar response", fmt.Errorf("%w: %v", utils.ErrExternalService, err))
	}
	return true, nil
}

// CanonicalURL is the Semantic Scholar page of a paper.
func CanonicalURL(paperID string) string {
	return paperPageURL + paperID
}

func searchCacheKey(encodedQuery string) string {
	sum := sha256.Sum256([]byte(encodedQuery))
	return "scholar:search:" + hex.EncodeToString(sum[:16])
}
