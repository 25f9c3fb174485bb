package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthyDB(context.Context) error { return nil }

func TestHealthCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	tests := []struct {
		name     string
		database CheckFunc
		redisUp  bool
		want     string
	}{
		{"all healthy", healthyDB, true, StatusHealthy},
		{"database down", func(context.Context) error { return errors.New("connection refused") }, true, StatusUnhealthy},
		{"redis down degrades", healthyDB, false, StatusDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.redisUp {
				mr.Close()
			}
			status := NewHealthChecker(tt.database, client, "1.2.3").Check(context.Background())
			assert.Equal(t, tt.want, status.Status)
			assert.Equal(t, "1.2.3", status.Version)
			assert.Len(t, status.Dependencies, 2)
		})
	}
}

func TestHealthRoutes(t *testing.T) {
	router := mux.NewRouter()
	failing := func(context.Context) error { return errors.New("pq: no connection") }
	RegisterHealthRoutes(router, NewHealthChecker(failing, nil, ""))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.Equal(t, "pq: no connection", status.Dependencies["database"].Message)
}
