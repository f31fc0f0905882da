package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultRESTTimeout = 10 * time.Second
	maxErrorBody       = 512
)

// RESTStore talks to a PostgREST-compatible table endpoint, the wire shape
// hosted row stores such as Supabase expose at /rest/v1/<table>.
type RESTStore struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// RESTOption configures a RESTStore.
type RESTOption func(*RESTStore)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) RESTOption {
	return func(s *RESTStore) {
		if c != nil {
			s.client = c
		}
	}
}

// WithAPIKey sends key as both the apikey header and a bearer token.
func WithAPIKey(key string) RESTOption {
	return func(s *RESTStore) { s.apiKey = key }
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) RESTOption {
	return func(s *RESTStore) {
		if d > 0 {
			s.client.Timeout = d
		}
	}
}

// NewRESTStore targets baseURL/table.
func NewRESTStore(baseURL, table string, opts ...RESTOption) (*RESTStore, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid store url %q", baseURL)
	}
	s := &RESTStore{
		endpoint: u.String() + "/" + table,
		client:   &http.Client{Timeout: defaultRESTTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Select issues GET ?board=eq.X&order=score.asc&limit=N.
func (s *RESTStore) Select(ctx context.Context, board string, limit int) ([]Row, error) {
	q := url.Values{}
	q.Set("select", "id,board,name,score")
	q.Set("board", "eq."+board)
	q.Set("order", "score.asc")
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var rows []Row
	if err := s.do(ctx, http.MethodGet, q, nil, "", &rows); err != nil {
		return nil, fmt.Errorf("select %s: %w", board, err)
	}
	return rows, nil
}

// Delete issues DELETE ?board=eq.X.
func (s *RESTStore) Delete(ctx context.Context, board string) error {
	q := url.Values{}
	q.Set("board", "eq."+board)
	if err := s.do(ctx, http.MethodDelete, q, nil, "return=minimal", nil); err != nil {
		return fmt.Errorf("delete %s: %w", board, err)
	}
	return nil
}

// Insert POSTs the rows and reads back the representation. Rows without an
// id leave it to the column default.
func (s *RESTStore) Insert(ctx context.Context, rows []Row) ([]Row, error) {
	body, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("encode rows: %w", err)
	}
	q := url.Values{}
	q.Set("columns", "id,board,name,score")
	q.Set("select", "id,board,name,score")

	var out []Row
	if err := s.do(ctx, http.MethodPost, q, body, "return=representation,missing=default", &out); err != nil {
		return nil, fmt.Errorf("insert: %w", err)
	}
	if len(out) != len(rows) {
		return nil, fmt.Errorf("%w: inserted %d rows, got %d back", ErrRemoteResponse, len(rows), len(out))
	}
	return out, nil
}

// Close releases idle connections.
func (s *RESTStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *RESTStore) do(ctx context.Context, method string, q url.Values, body []byte, prefer string, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.endpoint+"?"+q.Encode(), rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
	if s.apiKey != "" {
		req.Header.Set("apikey", s.apiKey)
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: %s: %s", ErrRemoteResponse, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %w", ErrRemoteResponse, err)
	}
	return nil
}
