package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string, retries int) *HTTPClient {
	return NewClient(DefaultConfig().
		WithBaseURL(url).
		WithTimeout(2*time.Second).
		WithRetry(retries, time.Millisecond).
		WithBearerToken("secret"))
}

func TestPostRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/echo", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": req["text"]})
	}))
	defer server.Close()

	client := newTestClient(server.URL+"/api/", 0)

	var resp struct {
		Echo string `json:"echo"`
	}
	err := client.Post(context.Background(), "/echo", map[string]string{"text": "olá"}, &resp)
	require.NoError(t, err)
	assert.Equal(t, "olá", resp.Echo)
}

func TestRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 重试时请求体必须完整重发
		var req map[string]int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 7, req["n"])

		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"detail":"model warming up"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)

	var resp struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, client.Post(context.Background(), "/generate", map[string]int{"n": 7}, &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"model not found"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	err := client.Get(context.Background(), "/models/x", nil)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "model not found", apiErr.Detail)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 2)
	err := client.Get(context.Background(), "/health", nil)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestNegativeMaxRetriesMakesSingleAttempt(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client := newTestClient(server.URL, -1)
	err := client.Post(ctx, "/generate", map[string]string{"prompt": "oi"}, nil)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.NoError(t, ctx.Err())
}

func TestAttempts(t *testing.T) {
	assert.Equal(t, uint(1), Attempts(-1))
	assert.Equal(t, uint(1), Attempts(0))
	assert.Equal(t, uint(4), Attempts(3))
}

func TestInvalidJSONIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	var out map[string]interface{}
	err := client.Get(context.Background(), "/health", &out)
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
