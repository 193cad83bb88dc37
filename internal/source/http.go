package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// errorBodyBytes bounds how much of a failed response is kept for logging.
const errorBodyBytes = 512

// StatusError reports a non-2xx response. The response body is kept for
// logging and is not part of the message, since it comes from a third party.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.StatusCode)
}

// HTTPSource fetches a graph document with a GET request.
type HTTPSource struct {
	URL string
	// MaxBytes bounds the response body; zero means no limit.
	MaxBytes   int64
	token      string
	httpClient *http.Client
}

// NewHTTPSource creates an HTTP source. When token is non-empty, an
// Authorization header is set on the request.
func NewHTTPSource(url, token string) *HTTPSource {
	return &HTTPSource{
		URL:        url,
		token:      token,
		httpClient: &http.Client{},
	}
}

func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyBytes))
		return nil, &StatusError{URL: s.URL, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if s.MaxBytes > 0 && resp.ContentLength > s.MaxBytes {
		return nil, fmt.Errorf("%w: content length %d over %d bytes", ErrTooLarge, resp.ContentLength, s.MaxBytes)
	}
	data, err := readLimited(resp.Body, s.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return data, nil
}

func (s *HTTPSource) String() string { return s.URL }
