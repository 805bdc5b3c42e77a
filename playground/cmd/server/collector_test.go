package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func postEvents(t *testing.T, handler http.Handler, body io.Reader, gzipped bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/events", body)
	req.Header.Set("Content-Type", "application/json")
	if gzipped {
		req.Header.Set("Content-Encoding", "gzip")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCollector_Events(t *testing.T) {
	handler := NewCollector(zap.NewNop()).Handler()

	t.Run("accepts a batch", func(t *testing.T) {
		rec := postEvents(t, handler, strings.NewReader(`{"events":[{"name":"a"},{"name":"b"}]}`), false)

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.EqualValues(t, 2, body["received"])
	})

	t.Run("gzip body", func(t *testing.T) {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		_, err := gz.Write([]byte(`{"events":[{"name":"a"}]}`))
		require.NoError(t, err)
		require.NoError(t, gz.Close())

		rec := postEvents(t, handler, &buf, true)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("trigger_error answers 500", func(t *testing.T) {
		rec := postEvents(t, handler, strings.NewReader(`{"events":[{"name":"a","properties":{"trigger_error":true}}]}`), false)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		rec := postEvents(t, handler, strings.NewReader(`{`), false)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/events", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestCollector_Metrics(t *testing.T) {
	handler := NewCollector(zap.NewNop()).Handler()
	postEvents(t, handler, strings.NewReader(`{"events":[{"name":"spresso_view_page"}]}`), false)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `spresso_collector_events_received_total{name="spresso_view_page"} 1`)
}

func TestCollector_Health(t *testing.T) {
	handler := NewCollector(zap.NewNop()).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}
