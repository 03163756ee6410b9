package webclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// WebClient executes HTTP requests for scanners, feeds and notification sinks.
type WebClient interface {
	Do(ctx context.Context, req *Request) (*Response, error)
	Get(ctx context.Context, url string) (*Response, error)
	Close() error
}

// DoJSON marshals body (when non-nil) and sends it with a JSON content type.
func DoJSON(ctx context.Context, wc WebClient, method, url string, headers http.Header, body any) (*Response, error) {
	req := &Request{Method: method, URL: url, Headers: http.Header{}}
	for k, vs := range headers {
		req.Headers[k] = append([]string(nil), vs...)
	}
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		req.Body = b
		req.Headers.Set("Content-Type", "application/json")
	}
	req.Headers.Set("Accept", "application/json")
	return wc.Do(ctx, req)
}
