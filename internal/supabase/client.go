// Package supabase provides a minimal client for the Supabase REST API
// (PostgREST) used by the yacht catalog.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const maxResponseBytes = 8 << 20 // 8 MiB

// ErrNotConfigured is returned by New when the project URL or key is missing.
var ErrNotConfigured = errors.New("supabase: url and key are required")

// Client is a Supabase REST API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Config holds client configuration.
type Config struct {
	URL    string
	APIKey string
	// HTTPClient overrides the default client. When nil a resilient client
	// with retries and a circuit breaker is used.
	HTTPClient *http.Client
	Timeout    time.Duration
	Retry      RetryConfig
	Breaker    CircuitBreakerConfig
}

// New creates a new Supabase client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" || strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	parsed, err := url.Parse(strings.TrimSpace(cfg.URL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("supabase: invalid project URL %q", cfg.URL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		retry := cfg.Retry
		if retry.MaxRetries == 0 && len(retry.RetryableStatusCodes) == 0 {
			retry = DefaultRetryConfig()
		}
		breaker := cfg.Breaker
		if breaker.FailureThreshold == 0 {
			breaker = DefaultCircuitBreakerConfig()
		}
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: NewTransport(nil, retry, breaker),
		}
	}

	return &Client{
		baseURL:    strings.TrimSuffix(strings.TrimSpace(cfg.URL), "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}, nil
}

// =============================================================================
// Query Builder
// =============================================================================

// From starts a query builder for a table or view.
func (c *Client) From(table string) *QueryBuilder {
	return &QueryBuilder{
		client:  c,
		table:   table,
		columns: "*",
		filters: url.Values{},
	}
}

// QueryBuilder builds PostgREST read queries.
type QueryBuilder struct {
	client  *Client
	table   string
	columns string
	filters url.Values
	orders  []string
	limit   int
	offset  int
	single  bool
	count   string // exact, planned, estimated
}

// Select specifies columns to select.
func (q *QueryBuilder) Select(columns string) *QueryBuilder {
	q.columns = columns
	return q
}

// Eq adds an equality filter.
func (q *QueryBuilder) Eq(column string, value any) *QueryBuilder {
	return q.Filter(column, "eq", value)
}

// Neq adds a not-equal filter.
func (q *QueryBuilder) Neq(column string, value any) *QueryBuilder {
	return q.Filter(column, "neq", value)
}

// Gte adds a greater-than-or-equal filter.
func (q *QueryBuilder) Gte(column string, value any) *QueryBuilder {
	return q.Filter(column, "gte", value)
}

// Lte adds a less-than-or-equal filter.
func (q *QueryBuilder) Lte(column string, value any) *QueryBuilder {
	return q.Filter(column, "lte", value)
}

// ILike adds a case-insensitive LIKE filter. Use % as the wildcard.
func (q *QueryBuilder) ILike(column, pattern string) *QueryBuilder {
	return q.Filter(column, "ilike", pattern)
}

// Is adds an IS filter (null, true, false).
func (q *QueryBuilder) Is(column string, value any) *QueryBuilder {
	return q.Filter(column, "is", value)
}

// Not adds a negated filter, e.g. Not("name", "is", "null").
func (q *QueryBuilder) Not(column, op string, value any) *QueryBuilder {
	return q.Filter(column, "not."+op, value)
}

// Filter adds a raw column filter.
func (q *QueryBuilder) Filter(column, op string, value any) *QueryBuilder {
	q.filters.Add(column, fmt.Sprintf("%s.%v", op, value))
	return q
}

// Or adds an OR group. Conditions use PostgREST syntax, e.g.
// "name.ilike.%foo%". Use Quote for user supplied values.
func (q *QueryBuilder) Or(conditions ...string) *QueryBuilder {
	q.filters.Add("or", "("+strings.Join(conditions, ",")+")")
	return q
}

// Order adds an ORDER BY clause.
func (q *QueryBuilder) Order(column string, ascending bool) *QueryBuilder {
	dir := "asc"
	if !ascending {
		dir = "desc"
	}
	q.orders = append(q.orders, column+"."+dir)
	return q
}

// Limit sets the LIMIT.
func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.limit = n
	return q
}

// Offset sets the OFFSET.
func (q *QueryBuilder) Offset(n int) *QueryBuilder {
	q.offset = n
	return q
}

// Single expects exactly one row; zero rows yields an *Error with code
// PGRST116.
func (q *QueryBuilder) Single() *QueryBuilder {
	q.single = true
	return q
}

// Count requests a row count (exact, planned or estimated).
func (q *QueryBuilder) Count(countType string) *QueryBuilder {
	q.count = countType
	return q
}

// Query returns the encoded query parameters.
func (q *QueryBuilder) Query() url.Values {
	params := url.Values{}
	if q.columns != "" {
		params.Set("select", q.columns)
	}
	for k, vs := range q.filters {
		for _, v := range vs {
			params.Add(k, v)
		}
	}
	if len(q.orders) > 0 {
		params.Set("order", strings.Join(q.orders, ","))
	}
	if q.limit > 0 {
		params.Set("limit", strconv.Itoa(q.limit))
	}
	if q.offset > 0 {
		params.Set("offset", strconv.Itoa(q.offset))
	}
	return params
}

// Execute runs the query. Responses with status >= 400 are returned as
// *Error, except 416 which PostgREST sends for an offset past the last row;
// that case yields an empty body and the total from Content-Range.
func (q *QueryBuilder) Execute(ctx context.Context) (*Response, error) {
	reqURL := fmt.Sprintf("%s/rest/v1/%s", q.client.baseURL, url.PathEscape(q.table))
	if params := q.Query(); len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	q.client.setHeaders(req)
	if q.single {
		req.Header.Set("Accept", "application/vnd.pgrst.object+json")
	}
	if q.count != "" {
		req.Header.Set("Prefer", "count="+q.count)
	}

	resp, err := q.client.do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable && !q.single {
		resp.Body = []byte("[]")
		return resp, nil
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp, nil
}

// ExecuteInto runs the query and decodes the body into dest.
func (q *QueryBuilder) ExecuteInto(ctx context.Context, dest any) (*Response, error) {
	resp, err := q.Execute(ctx)
	if err != nil {
		return nil, err
	}
	if err := resp.JSON(dest); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", q.table, err)
	}
	return resp, nil
}

// Quote wraps a value in double quotes for use inside Or conditions so that
// reserved characters (commas, parentheses, dots) are taken literally.
func Quote(value string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(value) + `"`
}

// =============================================================================
// RPC (Stored Procedures)
// =============================================================================

// RPC calls a Postgres function exposed by PostgREST.
func (c *Client) RPC(ctx context.Context, fn string, params any) (*Response, error) {
	reqURL := fmt.Sprintf("%s/rest/v1/rpc/%s", c.baseURL, url.PathEscape(fn))

	if params == nil {
		params = map[string]any{}
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp, nil
}

// =============================================================================
// Response Types
// =============================================================================

// Response is a raw PostgREST response.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// JSON unmarshals the response body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Total returns the row count from the Content-Range header ("0-19/345" or
// "*/345"), or -1 when the server did not report one.
func (r *Response) Total() int {
	cr := r.Headers.Get("Content-Range")
	idx := strings.LastIndex(cr, "/")
	if idx < 0 {
		return -1
	}
	n, err := strconv.Atoi(cr[idx+1:])
	if err != nil {
		return -1
	}
	return n
}

// Err returns an *Error when the response indicates failure.
func (r *Response) Err() error {
	if r.StatusCode < 400 {
		return nil
	}
	return parseError(r.Body, r.StatusCode)
}

// Error is a PostgREST error payload.
type Error struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details"`
	Hint       string `json:"hint"`
	StatusCode int    `json:"-"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase error %d: %s", e.StatusCode, e.Message)
}

// CodeNoRows is the PostgREST code for "0 rows" on a single-object request.
const CodeNoRows = "PGRST116"

// IsNoRows reports whether err is PostgREST's single-object "no rows" error.
func IsNoRows(err error) bool {
	var sbErr *Error
	return errors.As(err, &sbErr) && sbErr.Code == CodeNoRows
}

func parseError(body []byte, statusCode int) error {
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
		Hint    string `json:"hint"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return &Error{Code: "unknown", Message: strings.TrimSpace(string(body)), StatusCode: statusCode}
	}
	msg := payload.Message
	if msg == "" {
		msg = payload.Error
	}
	if msg == "" {
		msg = http.StatusText(statusCode)
	}
	return &Error{
		Code:       payload.Code,
		Message:    msg,
		Details:    payload.Details,
		Hint:       payload.Hint,
		StatusCode: statusCode,
	}
}

// =============================================================================
// Internal Methods
// =============================================================================

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
}

func (c *Client) do(req *http.Request) (*Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(body) > maxResponseBytes {
		return nil, fmt.Errorf("read response: body exceeds %d bytes", maxResponseBytes)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Headers:    resp.Header,
	}, nil
}
