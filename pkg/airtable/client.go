package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/zerymnor-storefront/pkg/errors"
)

const (
	defaultBaseURL             = "https://api.airtable.com/v0"
	defaultTimeout             = 10 * time.Second
	errorBodyReadLimit   int64 = 4096
	contentTypeJSON            = "application/json"
	headerAuthorization        = "Authorization"
)

var (
	errTokenRequired  = errors.New("airtable token is required")
	errBaseIDRequired = errors.New("airtable base id is required")
)

// Record is a single row of a remote table.
type Record struct {
	ID          string         `json:"id"`
	Fields      map[string]any `json:"fields"`
	CreatedTime string         `json:"createdTime,omitempty"`
}

// ListResult is one page of records. Offset is non-empty when the remote
// store holds more pages.
type ListResult struct {
	Records []Record
	Offset  string
}

// APIError carries the status and best-effort parsed body of a non-2xx response.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	switch {
	case e.Type != "" && e.Message != "":
		return fmt.Sprintf("status %d: %s: %s", e.StatusCode, e.Type, e.Message)
	case e.Message != "":
		return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
	case e.Type != "":
		return fmt.Sprintf("status %d: %s", e.StatusCode, e.Type)
	}
	return fmt.Sprintf("status %d", e.StatusCode)
}

// Client talks to the spreadsheet-backed record store over its REST JSON API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	baseID     string
	timeout    time.Duration
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the API root.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout bounds every individual remote call.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// NewClient builds a client for one base.
func NewClient(token, baseID string, opts ...Option) (*Client, error) {
	trimmedToken := strings.TrimSpace(token)
	if trimmedToken == "" {
		return nil, errTokenRequired
	}
	trimmedBase := strings.TrimSpace(baseID)
	if trimmedBase == "" {
		return nil, errBaseIDRequired
	}

	client := &Client{
		httpClient: &http.Client{},
		baseURL:    defaultBaseURL,
		token:      trimmedToken,
		baseID:     trimmedBase,
		timeout:    defaultTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// List fetches the first page of a table. Pagination is not followed.
func (c *Client) List(ctx context.Context, table string) (ListResult, error) {
	var payload struct {
		Records []Record `json:"records"`
		Offset  string   `json:"offset"`
	}
	if err := c.do(ctx, http.MethodGet, c.tableURL(table), nil, &payload, "list records"); err != nil {
		return ListResult{}, err
	}
	return ListResult{Records: payload.Records, Offset: payload.Offset}, nil
}

// Get fetches a single record, bypassing any caches.
func (c *Client) Get(ctx context.Context, table, id string) (Record, error) {
	recordURL, err := c.recordURL(table, id)
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := c.do(ctx, http.MethodGet, recordURL, nil, &rec, "get record"); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Update patches only the given fields of a record.
func (c *Client) Update(ctx context.Context, table, id string, fields map[string]any) (Record, error) {
	recordURL, err := c.recordURL(table, id)
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := c.do(ctx, http.MethodPatch, recordURL, map[string]any{"fields": fields}, &rec, "update record"); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Create inserts a record.
func (c *Client) Create(ctx context.Context, table string, fields map[string]any) (Record, error) {
	var rec Record
	if err := c.do(ctx, http.MethodPost, c.tableURL(table), map[string]any{"fields": fields}, &rec, "create record"); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Delete removes a record.
func (c *Client) Delete(ctx context.Context, table, id string) error {
	recordURL, err := c.recordURL(table, id)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, recordURL, nil, nil, "delete record")
}

func (c *Client) do(ctx context.Context, method, target string, body any, out any, op string) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "airtable client not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal "+op+" request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build "+op+" request")
	}
	req.Header.Set(headerAuthorization, "Bearer "+c.token)
	req.Header.Set("Accept", contentTypeJSON)
	if body != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return pkgerrors.Wrap(pkgerrors.CodeTimeout, err, op+" timed out")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute "+op+" request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := parseAPIError(resp)
		code := pkgerrors.CodeDependency
		if resp.StatusCode == http.StatusNotFound {
			code = pkgerrors.CodeNotFound
		}
		return pkgerrors.Wrap(code, apiErr, op+" request failed")
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	if err := decoder.Decode(out); err != nil {
		if isTimeout(err) {
			return pkgerrors.Wrap(pkgerrors.CodeTimeout, err, op+" timed out")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode "+op+" response")
	}
	return nil
}

// parseAPIError accepts both {"error":{"type","message"}} and {"error":"..."}.
func parseAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return apiErr
	}

	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil || len(envelope.Error) == 0 {
		apiErr.Message = string(trimmed)
		return apiErr
	}

	var detailed struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Error, &detailed); err == nil {
		apiErr.Type = detailed.Type
		apiErr.Message = detailed.Message
		return apiErr
	}
	var plain string
	if err := json.Unmarshal(envelope.Error, &plain); err == nil {
		apiErr.Type = plain
	}
	return apiErr
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (c *Client) tableURL(table string) string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(c.baseURL, "/"), url.PathEscape(c.baseID), url.PathEscape(table))
}

func (c *Client) recordURL(table, id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "record id is required")
	}
	return c.tableURL(table) + "/" + url.PathEscape(trimmed), nil
}
