package client

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

	"github.com/alfredjeanlab/lngraph/internal/model"
)

// HTTPClient talks to the lngraph HTTP/JSON API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- Stateless graph operations ---

// Decode has the server decode data and returns the canonical graph.
func (c *HTTPClient) Decode(ctx context.Context, data []byte) (*model.Graph, error) {
	var g model.Graph
	if err := c.do(ctx, http.MethodPost, "/v1/decode", data, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *HTTPClient) Stats(ctx context.Context, data []byte) (*model.Stats, error) {
	var s model.Stats
	if err := c.do(ctx, http.MethodPost, "/v1/stats", data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// --- Snapshots ---

// CreateSnapshot uploads data as a new snapshot.
func (c *HTTPClient) CreateSnapshot(ctx context.Context, data []byte) (*model.Snapshot, error) {
	var snap model.Snapshot
	if err := c.do(ctx, http.MethodPost, "/v1/snapshots", data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// CreateSnapshotFromSource asks the server to fetch the graph from uri.
func (c *HTTPClient) CreateSnapshotFromSource(ctx context.Context, uri string) (*model.Snapshot, error) {
	var snap model.Snapshot
	path := "/v1/snapshots?" + url.Values{"source": {uri}}.Encode()
	if err := c.do(ctx, http.MethodPost, path, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *HTTPClient) ListSnapshots(ctx context.Context, limit int) ([]*model.Snapshot, error) {
	path := "/v1/snapshots"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp ListSnapshotsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Snapshots, nil
}

func (c *HTTPClient) GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error) {
	var snap model.Snapshot
	if err := c.do(ctx, http.MethodGet, "/v1/snapshots/"+url.PathEscape(id), nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *HTTPClient) GetSnapshotGraph(ctx context.Context, id string) (*model.Graph, error) {
	var g model.Graph
	if err := c.do(ctx, http.MethodGet, "/v1/snapshots/"+url.PathEscape(id)+"/graph", nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *HTTPClient) DeleteSnapshot(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/snapshots/"+url.PathEscape(id), nil, nil)
}

// do sends body (raw JSON, may be nil) and decodes the response into result.
func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte, result any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	// 204 No Content: success with no body.
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error  string `json:"error"`
			Kind   string `json:"kind"`
			Field  string `json:"field"`
			Line   int    `json:"line"`
			Column int    `json:"column"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{
				StatusCode: resp.StatusCode,
				Message:    errResp.Error,
				Kind:       errResp.Kind,
				Field:      errResp.Field,
				Line:       errResp.Line,
				Column:     errResp.Column,
			}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
