package static

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/lotscout/internal/engine"
	"github.com/law-makers/lotscout/internal/retry"
)

func fastRenderer(t *testing.T, opts engine.Options) *Renderer {
	t.Helper()
	r, err := New(nil, opts)
	require.NoError(t, err)
	cfg := retry.DefaultConfig()
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 2 * time.Millisecond
	r.SetRetry(cfg)
	return r
}

func TestRenderer_Navigate_BasicHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "lotscout-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "1", r.Header.Get("X-Debug"))
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Lot 12345678</title></head>
			<body><h1>2019 TOYOTA COROLLA</h1><p>Odometer: 42,000 mi</p></body></html>`)
	}))
	defer server.Close()

	r := fastRenderer(t, engine.Options{UserAgent: "lotscout-test", Headers: map[string]string{"x-debug": "1"}})
	defer r.Release()

	page, err := r.Navigate(context.Background(), server.URL, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Lot 12345678", page.Title)
	assert.Contains(t, page.HTML, "<h1>2019 TOYOTA COROLLA</h1>")
	assert.Contains(t, page.Text, "Odometer: 42,000 mi")
	assert.False(t, page.TimedOut)
	assert.Equal(t, "static", r.Name())
}

func TestRenderer_Navigate_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `<p>ok</p>`)
	}))
	defer server.Close()

	r := fastRenderer(t, engine.Options{})
	page, err := r.Navigate(context.Background(), server.URL, time.Second)
	require.NoError(t, err)
	assert.Contains(t, page.Text, "ok")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRenderer_Navigate_NotFoundFails(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	r := fastRenderer(t, engine.Options{})
	_, err := r.Navigate(context.Background(), server.URL, time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrNavigationFailed))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRenderer_Navigate_TimeoutIsSoft(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	r := fastRenderer(t, engine.Options{})
	page, err := r.Navigate(context.Background(), server.URL, 50*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, page.TimedOut)
	assert.Empty(t, page.HTML)
}

func TestRenderer_Navigate_DetachedFromCallerCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<p>still here</p>`)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := fastRenderer(t, engine.Options{})
	page, err := r.Navigate(ctx, server.URL, time.Second)
	require.NoError(t, err)
	assert.Contains(t, page.Text, "still here")
}

func TestRenderer_InvalidURLAndRelease(t *testing.T) {
	r := fastRenderer(t, engine.Options{})

	_, err := r.Navigate(context.Background(), "not-a-url", time.Second)
	assert.True(t, errors.Is(err, engine.ErrInvalidURL))

	require.NoError(t, r.Release())
	require.NoError(t, r.Release())

	_, err = r.Navigate(context.Background(), "https://www.copart.com/", time.Second)
	assert.ErrorIs(t, err, engine.ErrRendererReleased)
}

func TestNew_RejectsBadProxy(t *testing.T) {
	_, err := New(nil, engine.Options{Proxy: "http://[::1"})
	assert.ErrorIs(t, err, engine.ErrRendererUnavailable)
}
