package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBackoffSchedule(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, Backoff(0))
	assert.Equal(t, 250*time.Millisecond, Backoff(1))
	assert.Equal(t, 500*time.Millisecond, Backoff(2))
	assert.Equal(t, 500*time.Millisecond, Backoff(9))
}

func TestRetriesServerErrors(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	c := New(zap.NewNop(), nil, server.Client(), 2, "test")

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(3), hits.Load())
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := New(zap.NewNop(), nil, server.Client(), 2, "test")

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	// The 404 comes back as a response, not an error, after one attempt.
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, int64(1), hits.Load())
}

func TestRequestBodyRewindsOnRetry(t *testing.T) {
	var hits atomic.Int64
	var lastBody atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 64)
		n, _ := r.Body.Read(buf)
		lastBody.Store(string(buf[:n]))
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New(zap.NewNop(), nil, server.Client(), 1, "test")

	req, err := http.NewRequest(http.MethodPost, server.URL, strings.NewReader("payload"))
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, int64(2), hits.Load())
	assert.Equal(t, "payload", lastBody.Load().(string))
}

func TestInterceptorOrderAndSendBypass(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	c := New(zap.NewNop(), nil, server.Client(), 0, "test")

	var order []string
	c.Use(func(next RoundFunc) RoundFunc {
		return func(req *http.Request) (*http.Response, error) {
			order = append(order, "outer")
			return next(req)
		}
	})
	c.Use(func(next RoundFunc) RoundFunc {
		return func(req *http.Request) (*http.Response, error) {
			order = append(order, "inner")
			return next(req)
		}
	})

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, []string{"outer", "inner"}, order)

	// Send skips the chain entirely.
	order = nil
	req, _ = http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err = c.Send(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, order)
}

func TestDoJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"name":"foodmap","count":2}`))
	}))
	defer server.Close()

	c := New(zap.NewNop(), nil, server.Client(), 0, "test")

	var out struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, c.DoJSON(context.Background(), req, &out))
	assert.Equal(t, "foodmap", out.Name)
	assert.Equal(t, 2, out.Count)
}

func TestDoJSONNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	c := New(zap.NewNop(), nil, server.Client(), 0, "test")

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	err := c.DoJSON(context.Background(), req, nil)
	assert.Error(t, err)
}
