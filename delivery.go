package spresso

import (
	"context"
	"runtime"
	"time"

	"github.com/pkg/errors"
)

const eventsPath = "/v1/events"

// Ack confirms that the collector accepted a batch.
type Ack struct {
	Status int
	Count  int
}

// DeliveryClient sends batches to the collector through an HTTPAdapter.
//
// A batch is delivered all-or-nothing: only a 2xx response counts as an
// acknowledgment. There are no retries here; a failed batch stays queued
// until the next flush.
type DeliveryClient struct {
	http     HTTPAdapter
	settings *settings
	config   Config
	logger   LoggerAdapter
}

// NewDeliveryClient creates a delivery client. The server URL is read from
// settings on every send so it can change at runtime.
func NewDeliveryClient(config Config, settings *settings, http HTTPAdapter, logger LoggerAdapter) *DeliveryClient {
	return &DeliveryClient{
		http:     http,
		settings: settings,
		config:   config,
		logger:   logger,
	}
}

// Endpoint returns the URL batches are posted to.
func (d *DeliveryClient) Endpoint() string {
	return d.settings.serverURL.Load() + eventsPath
}

func (d *DeliveryClient) headers() map[string]string {
	headers := map[string]string{
		"X-Spresso-SDK": "go/" + Version + " (" + runtime.GOOS + "/" + runtime.GOARCH + ")",
		"X-Spresso-Env": d.config.Environment.String(),
	}
	if d.config.APIKey != "" {
		headers[d.config.APIKeyHeader] = d.config.APIKey
	}
	return headers
}

// Send delivers one batch. The request is bounded by RequestTimeout; a
// timeout is reported as a *DeliveryError like any other failure.
func (d *DeliveryClient) Send(ctx context.Context, batch []Event) (Ack, error) {
	ctx, cancel := context.WithTimeout(ctx, d.config.RequestTimeout)
	defer cancel()

	endpoint := d.Endpoint()
	started := time.Now()
	d.logger.Debug("Sending batch", "endpoint", endpoint, "count", len(batch))

	resp, err := d.http.Send(ctx, endpoint, batch, d.headers())
	if err != nil {
		return Ack{}, &DeliveryError{
			Count:   len(batch),
			Timeout: errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded),
			Err:     err,
		}
	}
	if resp == nil {
		return Ack{}, &DeliveryError{Count: len(batch), Err: errors.New("empty response")}
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return Ack{}, &DeliveryError{Status: resp.Status, Count: len(batch)}
	}

	d.logger.Debug("Batch acknowledged",
		"status", resp.Status,
		"count", len(batch),
		"elapsed", time.Since(started),
	)
	return Ack{Status: resp.Status, Count: len(batch)}, nil
}
