// Package remote talks to a booklet server over its JSON REST API. Client satisfies
// reconcile.Remote and reconcile.Searcher so the CLI and TUI can run against either the
// local sqlite store or a server without caring which.
package remote

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

	"booklet-cli/internal/model"
	"booklet-cli/internal/reconcile"
	"booklet-cli/internal/store"
)

const defaultTimeout = 15 * time.Second

// HTTPError is a non-2xx response. It unwraps to the matching store sentinel so callers
// classify remote failures with the same errors.Is checks they use locally.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, msg)
}

func (e *HTTPError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return store.ErrInvalid
	case http.StatusNotFound:
		return store.ErrNotFound
	case http.StatusConflict:
		return store.ErrConflict
	}
	return nil
}

type Client struct {
	base *url.URL
	http *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the underlying client (tests pass httptest's).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("remote: base url is empty")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("remote: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote: unsupported scheme %q", u.Scheme)
	}
	c := &Client{base: u, http: &http.Client{Timeout: defaultTimeout}}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// do sends body (if non-nil) as JSON and decodes a 2xx response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("remote: marshal request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, q), rdr)
	if err != nil {
		return fmt.Errorf("remote: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remote: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromResponse(method, path, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("remote: decode %s %s: %w", method, path, err)
	}
	return nil
}

func errorFromResponse(method, path string, resp *http.Response) *HTTPError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := strings.TrimSpace(string(raw))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	return &HTTPError{Method: method, Path: path, StatusCode: resp.StatusCode, Message: msg}
}

func bookletPath(id int64) string { return "/booklets/" + strconv.FormatInt(id, 10) }

func (c *Client) ListBooklets(ctx context.Context) ([]model.Booklet, error) {
	var out []model.Booklet
	err := c.do(ctx, http.MethodGet, "/booklets", nil, nil, &out)
	return out, err
}

func (c *Client) CreateBooklet(ctx context.Context, title, subject string) (model.Booklet, error) {
	var out model.Booklet
	err := c.do(ctx, http.MethodPost, "/booklets", nil, map[string]string{"title": title, "subject": subject}, &out)
	return out, err
}

func (c *Client) GetBooklet(ctx context.Context, id int64) (model.Booklet, error) {
	var out model.Booklet
	err := c.do(ctx, http.MethodGet, bookletPath(id), nil, nil, &out)
	return out, err
}

func (c *Client) ListItems(ctx context.Context, bookletID int64) ([]model.Item, error) {
	var out []model.Item
	err := c.do(ctx, http.MethodGet, bookletPath(bookletID)+"/items", nil, nil, &out)
	return out, err
}

func (c *Client) CreateItem(ctx context.Context, bookletID int64, spec model.ItemSpec) (model.Item, error) {
	var out model.Item
	err := c.do(ctx, http.MethodPost, bookletPath(bookletID)+"/items", nil, spec, &out)
	return out, err
}

func (c *Client) UpdateItem(ctx context.Context, bookletID, itemID int64, patch model.ItemPatch) (model.Item, error) {
	var out model.Item
	path := bookletPath(bookletID) + "/items/" + strconv.FormatInt(itemID, 10)
	err := c.do(ctx, http.MethodPatch, path, nil, patch, &out)
	return out, err
}

func (c *Client) DeleteItem(ctx context.Context, bookletID, itemID int64) error {
	path := bookletPath(bookletID) + "/items/" + strconv.FormatInt(itemID, 10)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// ReplaceItems calls the bulk endpoint. 404, 405 and 501 mean the server has no bulk
// support and are reported as reconcile.ErrUnsupported.
func (c *Client) ReplaceItems(ctx context.Context, bookletID int64, specs []model.ItemSpec) ([]model.Item, error) {
	if specs == nil {
		specs = []model.ItemSpec{}
	}
	var out []model.Item
	err := c.do(ctx, http.MethodPut, bookletPath(bookletID)+"/items", nil, specs, &out)
	var he *HTTPError
	if errors.As(err, &he) {
		switch he.StatusCode {
		case http.StatusNotFound, http.StatusMethodNotAllowed, http.StatusNotImplemented:
			return nil, fmt.Errorf("%w: %v", reconcile.ErrUnsupported, he)
		}
	}
	return out, err
}

func (c *Client) SearchCandidates(ctx context.Context, filter model.SearchFilter, page model.Page) (model.SearchResult, error) {
	q := url.Values{}
	if s := strings.TrimSpace(filter.Query); s != "" {
		q.Set("q", s)
	}
	if s := strings.TrimSpace(filter.Subject); s != "" {
		q.Set("subject", s)
	}
	if filter.Difficulty != "" {
		q.Set("difficulty", string(filter.Difficulty))
	}
	if page.Number > 0 {
		q.Set("page", strconv.Itoa(page.Number))
	}
	if page.Size > 0 {
		q.Set("size", strconv.Itoa(page.Size))
	}
	var out model.SearchResult
	err := c.do(ctx, http.MethodGet, "/candidates", q, nil, &out)
	return out, err
}

// CandidatesByVersion resolves display data for versionIDs. Unknown ids are omitted.
func (c *Client) CandidatesByVersion(ctx context.Context, versionIDs []int64) (map[int64]model.Candidate, error) {
	out := make(map[int64]model.Candidate, len(versionIDs))
	if len(versionIDs) == 0 {
		return out, nil
	}
	parts := make([]string, 0, len(versionIDs))
	for _, id := range versionIDs {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	var list []model.Candidate
	if err := c.do(ctx, http.MethodGet, "/versions", url.Values{"ids": {strings.Join(parts, ",")}}, nil, &list); err != nil {
		return nil, err
	}
	for _, cand := range list {
		out[cand.VersionID] = cand
	}
	return out, nil
}

func (c *Client) AddQuestionVersion(ctx context.Context, in store.QuestionInput) (model.Candidate, error) {
	body := map[string]string{
		"code":       in.Code,
		"title":      in.Title,
		"subject":    in.Subject,
		"difficulty": string(in.Difficulty),
		"stem":       in.Stem,
	}
	var out model.Candidate
	err := c.do(ctx, http.MethodPost, "/questions", nil, body, &out)
	return out, err
}

var (
	_ reconcile.Remote   = (*Client)(nil)
	_ reconcile.Searcher = (*Client)(nil)
	_ store.Backend      = (*Client)(nil)
)
