package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// maxResponseBody bounds how much of the collector's reply is decoded.
const maxResponseBody = 64 << 10

// NetHTTPAdapter is the standard HTTP adapter implementation using net/http package.
type NetHTTPAdapter struct {
	client *http.Client
	gzip   bool
}

// Ensure NetHTTPAdapter implements HTTPAdapter interface
var _ HTTPAdapter = (*NetHTTPAdapter)(nil)

// NetHTTPOption configures a NetHTTPAdapter.
type NetHTTPOption func(*NetHTTPAdapter)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) NetHTTPOption {
	return func(a *NetHTTPAdapter) {
		a.client = client
	}
}

// WithGzip compresses request bodies and sets Content-Encoding: gzip.
func WithGzip(enabled bool) NetHTTPOption {
	return func(a *NetHTTPAdapter) {
		a.gzip = enabled
	}
}

// NewNetHTTPAdapter creates a new NetHTTPAdapter instance.
func NewNetHTTPAdapter(opts ...NetHTTPOption) *NetHTTPAdapter {
	a := &NetHTTPAdapter{
		client: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type eventsPayload struct {
	Events []Event `json:"events"`
}

// Send posts events as {"events": [...]} to endpoint with the given headers.
func (h *NetHTTPAdapter) Send(ctx context.Context, endpoint string, events []Event, headers map[string]string) (*HTTPResponse, error) {
	jsonData, err := json.Marshal(eventsPayload{Events: events})
	if err != nil {
		return nil, errors.Wrap(err, "marshal events")
	}

	body := jsonData
	if h.gzip {
		body, err = compress(jsonData)
		if err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}

	req.Header.Set("Content-Type", "application/json")
	if h.gzip {
		req.Header.Set("Content-Encoding", "gzip")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	var data any
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if len(raw) > 0 {
		// Non-JSON replies are kept as text.
		if json.Unmarshal(raw, &data) != nil {
			data = string(raw)
		}
	}

	return &HTTPResponse{
		Status: resp.StatusCode,
		OK:     resp.StatusCode >= 200 && resp.StatusCode < 300,
		Data:   data,
	}, nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, errors.Wrap(err, "gzip events")
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "gzip events")
	}
	return buf.Bytes(), nil
}
