package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecker_AllUp(t *testing.T) {
	c := NewChecker()
	c.Register("redis", Ping(func(context.Context) error { return nil }))
	c.Register("postgres", Ping(func(context.Context) error { return nil }))

	report := c.Run(context.Background())
	assert.Equal(t, StatusUp, report.Status)
	assert.Len(t, report.Components, 2)
	assert.Equal(t, []string{"postgres", "redis"}, c.Names())
}

func TestChecker_Handler_Down(t *testing.T) {
	c := NewChecker()
	c.Register("redis", Ping(func(context.Context) error { return nil }))
	c.Register("postgres", Ping(func(context.Context) error { return errors.New("connection refused") }))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StatusDown, report.Status)
	assert.Equal(t, "connection refused", report.Components["postgres"].Message)
	assert.Equal(t, StatusUp, report.Components["redis"].Status)
}

func TestChecker_NoChecks(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
