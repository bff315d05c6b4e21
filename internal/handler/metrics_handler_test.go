package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/qbank-access-api/internal/service"
)

func TestMetricsHandlerReady(t *testing.T) {
	ok := func(ctx context.Context) error { return nil }
	down := func(ctx context.Context) error { return errors.New("connection refused") }

	h := NewMetricsHandler(service.NewMetricsService(), map[string]ReadinessCheck{"database": ok})
	c, w := newTestContext(http.MethodGet, "/ready", nil, nil)
	h.Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)

	h = NewMetricsHandler(service.NewMetricsService(), map[string]ReadinessCheck{"database": ok, "cache": down})
	c, w = newTestContext(http.MethodGet, "/ready", nil, nil)
	h.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestMetricsHandlerPrometheus(t *testing.T) {
	h := NewMetricsHandler(service.NewMetricsService(), nil)
	c, w := newTestContext(http.MethodGet, "/metrics", nil, nil)
	h.Prometheus(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "goroutines_total")
}
