package upstream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/any-hub/teecache/internal/config"
)

func newTestClient(t *testing.T, url string, mutate func(*config.Config)) (*Client, *test.Hook) {
	t.Helper()
	cfg := &config.Config{
		Global: config.GlobalConfig{
			MaxRetries:      2,
			InitialBackoff:  config.Duration(time.Millisecond),
			UpstreamTimeout: config.Duration(5 * time.Second),
		},
		Upstream: config.UpstreamConfig{URL: url},
	}
	if mutate != nil {
		mutate(cfg)
	}
	logger, hook := test.NewNullLogger()
	client, err := NewClient(cfg, logger)
	require.NoError(t, err)
	return client, hook
}

func TestFetchReturnsBodyAndName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/objects/42", r.URL.Path)
		w.Header().Set(config.DefaultNameHeader, "fedora-20")
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = io.WriteString(w, "abcd")
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL+"/objects", nil)
	resp, err := client.Fetch(t.Context(), "42")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(body))
	assert.Equal(t, "42", resp.Object.ID)
	assert.Equal(t, "fedora-20", resp.Object.Name)
	assert.Equal(t, int64(4), resp.Size)
	assert.Equal(t, "application/octet-stream", resp.ContentType)
}

func TestFetchFallsBackToIDForName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "x")
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL, nil)
	resp, err := client.Fetch(t.Context(), "7")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "7", resp.Object.Name)
}

func TestFetchCustomNameHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Image-Name", "cirros")
		_, _ = io.WriteString(w, "x")
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL, func(cfg *config.Config) {
		cfg.Upstream.NameHeader = "X-Image-Name"
	})
	resp, err := client.Fetch(t.Context(), "7")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "cirros", resp.Object.Name)
}

func TestFetchNotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL, nil)
	_, err := client.Fetch(t.Context(), "missing")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	client, hook := newTestClient(t, srv.URL, nil)
	resp, err := client.Fetch(t.Context(), "1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(3), calls.Load())

	retries := 0
	for _, entry := range hook.AllEntries() {
		if entry.Data["action"] == "upstream_retry" {
			assert.Equal(t, logrus.WarnLevel, entry.Level)
			retries++
		}
	}
	assert.Equal(t, 2, retries)
}

func TestFetchGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL, func(cfg *config.Config) {
		cfg.Global.MaxRetries = 1
	})
	_, err := client.Fetch(t.Context(), "1")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL, nil)
	_, err := client.Fetch(t.Context(), "1")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.False(t, statusErr.Retryable())
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchSendsBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "ci" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL, func(cfg *config.Config) {
		cfg.Upstream.Username = "ci"
		cfg.Upstream.Password = "secret"
	})
	resp, err := client.Fetch(t.Context(), "1")
	require.NoError(t, err)
	resp.Body.Close()
}

func TestFetchHonoursCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL, nil)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := client.Fetch(ctx, "1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestObjectURLEscapesID(t *testing.T) {
	client, _ := newTestClient(t, "http://store.local/base", nil)
	assert.Equal(t, "http://store.local/base/a%20b", client.ObjectURL("a b").String())
}

func TestIsHopByHopHeader(t *testing.T) {
	assert.True(t, IsHopByHopHeader("connection"))
	assert.True(t, IsHopByHopHeader("Transfer-Encoding"))
	assert.False(t, IsHopByHopHeader("Content-Type"))
}
