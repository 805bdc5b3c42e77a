package main

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const maxBodySize = 10 << 20

type eventsPayload struct {
	Events []map[string]any `json:"events"`
}

// Collector is a local stand-in for the Spresso collection service. It logs
// every batch and answers 500 when any event has a true trigger_error
// property, so client retries can be exercised by hand.
type Collector struct {
	logger   *zap.Logger
	router   *mux.Router
	registry *prometheus.Registry

	received       *prometheus.CounterVec
	batches        *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
}

func NewCollector(logger *zap.Logger) *Collector {
	c := &Collector{
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	c.initMetrics()
	c.buildRouter()
	return c
}

func (c *Collector) Handler() http.Handler {
	return c.router
}

func (c *Collector) initMetrics() {
	c.received = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spresso",
		Subsystem: "collector",
		Name:      "events_received_total",
		Help:      "Events received by name",
	}, []string{"name"})
	c.batches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spresso",
		Subsystem: "collector",
		Name:      "batches_total",
		Help:      "Batches received by response code",
	}, []string{"code"})
	c.requestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "spresso",
		Subsystem: "collector",
		Name:      "request_latency_seconds",
		Help:      "HTTP request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method", "code"})
	c.registry.MustRegister(c.received, c.batches, c.requestLatency)
}

func (c *Collector) buildRouter() {
	r := mux.NewRouter()
	r.Use(c.metricsMiddleware)

	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/events", c.handleEvents).Methods(http.MethodPost)

	r.HandleFunc("/healthz", c.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	c.router = r
}

func (c *Collector) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (c *Collector) handleEvents(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		c.logger.Warn("Failed to read body", zap.Error(err))
		c.reply(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var payload eventsPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.logger.Warn("Invalid JSON", zap.Error(err))
		c.reply(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	c.logger.Info("Received batch",
		zap.Int("count", len(payload.Events)),
		zap.String("sdk", r.Header.Get("X-Spresso-SDK")),
		zap.Bool("gzip", r.Header.Get("Content-Encoding") == "gzip"),
		zap.Any("events", payload.Events),
	)

	for _, event := range payload.Events {
		if triggersError(event) {
			c.logger.Info("Simulating server error")
			c.reply(w, http.StatusInternalServerError, map[string]string{"error": "simulated server error"})
			return
		}
	}

	for _, event := range payload.Events {
		name, _ := event["name"].(string)
		c.received.WithLabelValues(name).Inc()
	}
	c.reply(w, http.StatusOK, map[string]any{
		"success":  true,
		"received": len(payload.Events),
	})
}

func (c *Collector) reply(w http.ResponseWriter, status int, body any) {
	c.batches.WithLabelValues(strconv.Itoa(status)).Inc()
	writeJSON(w, status, body)
}

func triggersError(event map[string]any) bool {
	props, ok := event["properties"].(map[string]any)
	if !ok {
		return false
	}
	trigger, _ := props["trigger_error"].(bool)
	return trigger
}

func readBody(r *http.Request) ([]byte, error) {
	var reader io.Reader = io.LimitReader(r.Body, maxBodySize)
	if r.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(reader)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip body")
		}
		defer gz.Close()
		reader = gz
	}
	body, err := io.ReadAll(reader)
	return body, errors.Wrap(err, "read body")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (c *Collector) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		routeName := "unknown"
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				routeName = tmpl
			}
		}
		c.requestLatency.With(prometheus.Labels{
			"route":  routeName,
			"method": r.Method,
			"code":   strconv.Itoa(rw.status),
		}).Observe(time.Since(start).Seconds())
	})
}

// responseWriter captures HTTP status codes for metrics.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
