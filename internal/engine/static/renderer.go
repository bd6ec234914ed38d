// internal/engine/static/renderer.go
package static

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/lotscout/internal/engine"
	"github.com/law-makers/lotscout/internal/retry"
	"github.com/law-makers/lotscout/internal/utils/headers"
	urlutil "github.com/law-makers/lotscout/internal/utils/url"
	"github.com/law-makers/lotscout/pkg/models"
)

// maxBody caps how much of a response is read
const maxBody = 16 << 20

// Renderer fetches pages over plain HTTP. It runs no JavaScript, so it only
// suits server-rendered listings and tests.
type Renderer struct {
	client  *http.Client
	opts    engine.Options
	headers map[string]string
	retry   retry.Config

	mu       sync.Mutex
	released bool
}

// New creates a static Renderer. A nil client gets a default transport that
// honours opts.Proxy.
func New(client *http.Client, opts engine.Options) (*Renderer, error) {
	if client == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if opts.Proxy != "" {
			proxyURL, err := url.Parse(opts.Proxy)
			if err != nil {
				return nil, engine.Unavailable("static", err)
			}
			transport.Proxy = http.ProxyURL(proxyURL)
		}
		client = &http.Client{Transport: transport}
	}

	cfg := retry.DefaultConfig()
	cfg.Operation = "static navigate"

	return &Renderer{
		client:  client,
		opts:    opts,
		headers: headers.Browser(opts.UserAgent, opts.Headers),
		retry:   cfg,
	}, nil
}

// Name returns the name of this renderer
func (r *Renderer) Name() string {
	return "static"
}

// SetRetry replaces the retry policy for page fetches
func (r *Renderer) SetRetry(cfg retry.Config) {
	r.retry = cfg
}

// Navigate fetches pageURL. The request is detached from ctx cancellation
// and bounded by timeout instead.
func (r *Renderer) Navigate(ctx context.Context, pageURL string, timeout time.Duration) (*models.Page, error) {
	r.mu.Lock()
	released := r.released
	r.mu.Unlock()
	if released {
		return nil, engine.ErrRendererReleased
	}

	if err := urlutil.ValidateURL(pageURL); err != nil {
		return nil, engine.NewEngineError(engine.ErrCodeValidation, "invalid navigation target", fmt.Errorf("%w: %v", engine.ErrInvalidURL, err))
	}

	start := time.Now()
	navCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), engine.Timeout(timeout))
	defer cancel()

	log.Debug().
		Str("url", pageURL).
		Str("renderer", r.Name()).
		Msg("Starting navigation")

	var partial []byte
	body, err := retry.Value(navCtx, r.retry, func() ([]byte, error) {
		if err := r.opts.Pace(navCtx, pageURL); err != nil {
			return nil, err
		}
		b, err := r.fetch(navCtx, pageURL)
		if err != nil && len(b) > 0 {
			partial = b
		}
		return b, err
	})

	timedOut := navCtx.Err() != nil
	if err != nil {
		if !timedOut {
			return nil, engine.NavigationFailed(pageURL, err)
		}
		body = partial
		if len(body) == 0 {
			log.Warn().Str("url", pageURL).Dur("timeout", engine.Timeout(timeout)).Msg("Navigation timed out before any markup")
		}
	}

	page := engine.NewPage(pageURL, string(body), "", timedOut, start)

	log.Debug().
		Str("url", pageURL).
		Bool("timed_out", page.TimedOut).
		Dur("elapsed", page.Elapsed).
		Int("bytes", len(body)).
		Msg("Navigation completed")

	return page, nil
}

// fetch returns the body read so far together with a deadline error when
// the response was cut short
func (r *Renderer) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	headers.Apply(req, r.headers)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, retry.NewHTTPError(resp.StatusCode, http.StatusText(resp.StatusCode), pageURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		if ctx.Err() != nil {
			return body, context.DeadlineExceeded
		}
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return body, nil
}

// Release marks the renderer unusable and drops idle connections
func (r *Renderer) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return nil
	}
	r.released = true
	r.client.CloseIdleConnections()
	return nil
}
