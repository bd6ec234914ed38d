// Package rodbrowser renders pages with go-rod behind a stealth page, for
// sites that fingerprint the DevTools protocol more aggressively.
package rodbrowser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/lotscout/internal/engine"
	"github.com/law-makers/lotscout/internal/retry"
	"github.com/law-makers/lotscout/internal/utils/headers"
	urlutil "github.com/law-makers/lotscout/internal/utils/url"
	"github.com/law-makers/lotscout/pkg/models"
)

const (
	defaultSettle  = 1500 * time.Millisecond
	captureTimeout = 5 * time.Second
	bodyTextJS     = `() => document.body ? document.body.innerText : ""`
)

// Renderer holds one browser and one stealth page
type Renderer struct {
	opts     engine.Options
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page

	mu       sync.Mutex
	released bool
}

// Launch starts the browser and opens a stealth page
func Launch(ctx context.Context, opts engine.Options) (*Renderer, error) {
	bin := opts.BrowserPath
	if bin == "" {
		if path, ok := launcher.LookPath(); ok {
			bin = path
		} else {
			path, err := launcher.NewBrowser().Get()
			if err != nil {
				return nil, engine.Unavailable("rod", fmt.Errorf("%w: %v", engine.ErrBrowserNotFound, err))
			}
			bin = path
		}
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = headers.DefaultUserAgent
	}

	l := launcher.New().
		Bin(bin).
		Headless(opts.Headless).
		NoSandbox(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("window-size", "1920,1080")
	if opts.Proxy != "" {
		l = l.Proxy(opts.Proxy)
	}

	// The process lives until Release, not until the caller's context ends.
	controlURL, err := l.Context(context.WithoutCancel(ctx)).Launch()
	if err != nil {
		return nil, engine.Unavailable("rod", fmt.Errorf("launch browser: %w", err))
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, engine.Unavailable("rod", fmt.Errorf("connect browser: %w", err))
	}

	page, err := stealth.Page(browser)
	if err != nil {
		browser.Close()
		l.Kill()
		return nil, engine.Unavailable("rod", fmt.Errorf("open stealth page: %w", err))
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
		log.Debug().Err(err).Msg("Setting user agent")
	}
	if len(opts.Headers) > 0 {
		dict := make([]string, 0, len(opts.Headers)*2)
		for k, v := range opts.Headers {
			dict = append(dict, k, v)
		}
		if _, err := page.SetExtraHeaders(dict); err != nil {
			log.Debug().Err(err).Msg("Setting extra headers")
		}
	}

	log.Info().
		Str("bin", bin).
		Bool("headless", opts.Headless).
		Bool("proxy", opts.Proxy != "").
		Msg("Rod renderer ready")

	return &Renderer{opts: opts, launcher: l, browser: browser, page: page}, nil
}

// Factory returns an engine.Factory that launches the browser with retry
func Factory(opts engine.Options) engine.Factory {
	return func(ctx context.Context) (engine.Renderer, error) {
		return retry.Value(ctx, retry.LaunchConfig(), func() (engine.Renderer, error) {
			r, err := Launch(ctx, opts)
			if err != nil {
				return nil, err
			}
			return r, nil
		})
	}
}

// Name returns the name of this renderer
func (r *Renderer) Name() string {
	return "rod"
}

// Navigate loads pageURL on the stealth page. ctx only paces the request;
// the navigation itself is bounded by timeout.
func (r *Renderer) Navigate(ctx context.Context, pageURL string, timeout time.Duration) (*models.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return nil, engine.ErrRendererReleased
	}

	if err := urlutil.ValidateURL(pageURL); err != nil {
		return nil, engine.NewEngineError(engine.ErrCodeValidation, "invalid navigation target", fmt.Errorf("%w: %v", engine.ErrInvalidURL, err))
	}
	if err := r.opts.Pace(context.WithoutCancel(ctx), pageURL); err != nil {
		return nil, engine.NavigationFailed(pageURL, err)
	}

	start := time.Now()
	timeout = engine.Timeout(timeout)
	settle := r.opts.Settle
	if settle <= 0 {
		settle = defaultSettle
	}

	markup, visible, err := r.load(pageURL, timeout, settle)
	timedOut := false
	if err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			return nil, engine.NavigationFailed(pageURL, err)
		}
		timedOut = true
		markup, visible = r.capture()
		log.Warn().
			Str("url", pageURL).
			Dur("timeout", timeout).
			Int("bytes", len(markup)).
			Msg("Navigation timed out, keeping partial markup")
	}

	return engine.NewPage(pageURL, markup, visible, timedOut, start), nil
}

func (r *Renderer) load(pageURL string, timeout, settle time.Duration) (string, string, error) {
	p := r.page.Timeout(timeout)
	if err := p.Navigate(pageURL); err != nil {
		return "", "", err
	}
	if err := p.WaitLoad(); err != nil {
		return "", "", err
	}
	select {
	case <-time.After(settle):
	case <-p.GetContext().Done():
		return "", "", p.GetContext().Err()
	}
	return read(p)
}

func (r *Renderer) capture() (string, string) {
	markup, visible, err := read(r.page.Timeout(captureTimeout))
	if err != nil {
		log.Debug().Err(err).Msg("Soft capture failed")
	}
	return markup, visible
}

func read(p *rod.Page) (string, string, error) {
	markup, err := p.HTML()
	if err != nil {
		return "", "", err
	}
	res, err := p.Eval(bodyTextJS)
	if err != nil {
		return markup, "", nil
	}
	return markup, res.Value.Str(), nil
}

// Release closes the page, the browser and the launched process
func (r *Renderer) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return nil
	}
	r.released = true

	if err := r.page.Close(); err != nil {
		log.Debug().Err(err).Msg("Closing page")
	}
	err := r.browser.Close()
	r.launcher.Kill()
	if err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}
