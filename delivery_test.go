package spresso

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDelivery(t *testing.T, config Config, http HTTPAdapter) *DeliveryClient {
	t.Helper()
	config = config.withDefaults()
	require.NoError(t, config.Validate())
	return NewDeliveryClient(config, newSettings(config), http, noopLogger())
}

func TestDeliveryClient_Send(t *testing.T) {
	t.Run("2xx is acknowledged", func(t *testing.T) {
		for _, status := range []int{200, 201, 202, 204} {
			http := &mockHTTPAdapter{status: status}
			delivery := newTestDelivery(t, Config{}, http)

			ack, err := delivery.Send(context.Background(), namedEvents("a", "b"))

			require.NoError(t, err)
			assert.Equal(t, Ack{Status: status, Count: 2}, ack)
		}
	})

	t.Run("any other status is a failure", func(t *testing.T) {
		for _, status := range []int{301, 400, 401, 404, 429, 500, 503} {
			http := &mockHTTPAdapter{status: status}
			delivery := newTestDelivery(t, Config{}, http)

			_, err := delivery.Send(context.Background(), namedEvents("a"))

			var derr *DeliveryError
			require.ErrorAs(t, err, &derr, "status %d", status)
			assert.Equal(t, status, derr.Status)
			assert.Equal(t, 1, derr.Count)
			assert.False(t, derr.Timeout)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		http := &mockHTTPAdapter{block: make(chan struct{})}
		defer close(http.block)
		delivery := newTestDelivery(t, Config{RequestTimeout: 20 * time.Millisecond}, http)

		_, err := delivery.Send(context.Background(), namedEvents("a"))

		var derr *DeliveryError
		require.ErrorAs(t, err, &derr)
		assert.True(t, derr.Timeout)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("nil response", func(t *testing.T) {
		delivery := newTestDelivery(t, Config{}, nilResponseAdapter{})

		_, err := delivery.Send(context.Background(), namedEvents("a"))

		var derr *DeliveryError
		assert.ErrorAs(t, err, &derr)
	})
}

type nilResponseAdapter struct{}

func (nilResponseAdapter) Send(context.Context, string, []Event, map[string]string) (*HTTPResponse, error) {
	return nil, nil
}

func TestDeliveryClient_Request(t *testing.T) {
	t.Run("endpoint and headers", func(t *testing.T) {
		http := &mockHTTPAdapter{}
		delivery := newTestDelivery(t, Config{
			Environment: EnvironmentStaging,
			APIKey:      "secret",
		}, http)

		_, err := delivery.Send(context.Background(), namedEvents("a"))
		require.NoError(t, err)

		assert.Equal(t, "https://api.staging.spresso.com/v1/events", http.endpoints[0])
		headers := http.headers[0]
		assert.Equal(t, "secret", headers["X-API-Key"])
		assert.Equal(t, "staging", headers["X-Spresso-Env"])
		assert.True(t, strings.HasPrefix(headers["X-Spresso-SDK"], "go/"+Version))
	})

	t.Run("custom api key header", func(t *testing.T) {
		http := &mockHTTPAdapter{}
		delivery := newTestDelivery(t, Config{APIKey: "secret", APIKeyHeader: "Authorization"}, http)

		_, err := delivery.Send(context.Background(), namedEvents("a"))
		require.NoError(t, err)

		assert.Equal(t, "secret", http.headers[0]["Authorization"])
		assert.NotContains(t, http.headers[0], "X-API-Key")
	})

	t.Run("no api key", func(t *testing.T) {
		http := &mockHTTPAdapter{}
		delivery := newTestDelivery(t, Config{}, http)

		_, err := delivery.Send(context.Background(), namedEvents("a"))
		require.NoError(t, err)

		assert.NotContains(t, http.headers[0], "X-API-Key")
	})

	t.Run("server url change applies to next send", func(t *testing.T) {
		http := &mockHTTPAdapter{}
		delivery := newTestDelivery(t, Config{}, http)

		delivery.settings.serverURL.Store("https://collector.example.com")
		_, err := delivery.Send(context.Background(), namedEvents("a"))
		require.NoError(t, err)

		assert.Equal(t, "https://collector.example.com/v1/events", http.endpoints[0])
	})
}
