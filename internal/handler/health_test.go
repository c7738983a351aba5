package handler_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetaHandler_HandleHealth(t *testing.T) {
	t.Run("connected", func(t *testing.T) {
		env := newTestEnv(t, nil)

		rr := env.do(t, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		body := decode(t, rr)
		assert.Equal(t, "OK", body["status"])
		assert.Equal(t, "Connected", body["database"])
		assert.Equal(t, "test", body["environment"])
		assert.NotEmpty(t, body["timestamp"])
		assert.GreaterOrEqual(t, body["uptime"], 0.0)
	})

	t.Run("database down", func(t *testing.T) {
		env := newTestEnv(t, nil)
		require.NoError(t, env.store.Close())

		rr := env.do(t, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "Disconnected", decode(t, rr)["database"])
	})
}

func TestMetaHandler_Info(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodGet, "/api/v1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	info := decode(t, rr)
	assert.Equal(t, "Event RSVP API", info["message"])
	assert.Equal(t, "v1", info["version"])
	assert.Equal(t, "Running", info["status"])

	rr = env.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	root := decode(t, rr)
	assert.Equal(t, "Welcome to the Event RSVP API", root["message"])
	assert.Equal(t, "/api/v1", root["documentation"])
	assert.Equal(t, "/health", root["health"])
}

func TestMetaHandler_HandleNotFound(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		method, path string
	}{
		{http.MethodGet, "/nope?x=1"},
		{http.MethodGet, "/api/v1/nope"},
		{http.MethodPatch, "/api/v1/users"},
		{http.MethodPost, "/health"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := env.do(t, tt.method, tt.path, nil)
			require.Equal(t, http.StatusNotFound, rr.Code)
			assert.JSONEq(t,
				`{"error": "Route not found", "path": "`+tt.path+`", "method": "`+tt.method+`"}`,
				rr.Body.String())
		})
	}
}
