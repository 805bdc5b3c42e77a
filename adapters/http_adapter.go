package adapters

import "context"

// HTTPResponse represents the response from an HTTP request.
type HTTPResponse struct {
	OK     bool
	Status int
	Data   any
}

// HTTPAdapter is an interface for HTTP communication.
// Implement this interface to use custom HTTP clients.
type HTTPAdapter interface {
	// Send events to the specified endpoint.
	//
	// Parameters:
	//   - ctx: Bounds the request; the caller applies the request timeout
	//   - endpoint: The collector URL
	//   - events: Batch of events to send, in queue order
	//   - headers: Custom headers to merge with defaults
	//
	// Returns the HTTP response, or an error when no response was received.
	Send(ctx context.Context, endpoint string, events []Event, headers map[string]string) (*HTTPResponse, error)
}
