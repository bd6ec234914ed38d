// internal/engine/dynamic/renderer.go
package dynamic

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/lotscout/internal/engine"
	"github.com/law-makers/lotscout/internal/retry"
	"github.com/law-makers/lotscout/internal/utils/headers"
	urlutil "github.com/law-makers/lotscout/internal/utils/url"
	"github.com/law-makers/lotscout/pkg/models"
)

const (
	// DefaultSettle lets client-side rendering finish after the load event
	DefaultSettle = 1500 * time.Millisecond
	// captureTimeout bounds the soft capture after a navigation timeout
	captureTimeout = 5 * time.Second
)

// bodyTextJS reads the rendered visible text
const bodyTextJS = `document.body ? document.body.innerText : ""`

// Renderer drives one headless Chrome tab through chromedp. It is scoped to
// one pipeline run.
type Renderer struct {
	opts        engine.Options
	allocCancel context.CancelFunc
	tab         context.Context
	tabCancel   context.CancelFunc

	mu       sync.Mutex
	released bool
}

// Launch starts a browser and warms up its single tab
func Launch(ctx context.Context, opts engine.Options) (*Renderer, error) {
	chromePath := FindChrome(opts.BrowserPath)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(chromePath, opts)...)
	tab, tabCancel := chromedp.NewContext(allocCtx)

	abort := func() {
		tabCancel()
		allocCancel()
	}
	// The first Run on tab starts the browser, so its context must outlive Launch.
	err := startWithin(ctx, engine.Timeout(0), func() error {
		return chromedp.Run(tab, chromedp.Navigate("about:blank"))
	}, abort)
	if err != nil {
		abort()
		if chromePath == "" {
			err = fmt.Errorf("%w: %v", engine.ErrBrowserNotFound, err)
		}
		return nil, engine.Unavailable("chrome", err)
	}

	log.Info().
		Str("path", chromePath).
		Str("version", ChromeVersion(chromePath)).
		Bool("headless", opts.Headless).
		Bool("proxy", opts.Proxy != "").
		Msg("Chrome renderer ready")

	return &Renderer{
		opts:        opts,
		allocCancel: allocCancel,
		tab:         tab,
		tabCancel:   tabCancel,
	}, nil
}

// startWithin runs start and calls abort if it has not returned within
// timeout or before ctx is done. abort must make start return.
func startWithin(ctx context.Context, timeout time.Duration, start func() error, abort func()) error {
	done := make(chan error, 1)
	go func() { done <- start() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		abort()
		<-done
		return fmt.Errorf("browser start: %w", context.DeadlineExceeded)
	case <-ctx.Done():
		abort()
		<-done
		return ctx.Err()
	}
}

// Factory returns an engine.Factory that launches Chrome with retry
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

func allocatorOptions(chromePath string, opts engine.Options) []chromedp.ExecAllocatorOption {
	ua := opts.UserAgent
	if ua == "" {
		ua = headers.DefaultUserAgent
	}

	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-breakpad", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("window-size", "1920,1080"),
		chromedp.UserAgent(ua),
	}

	if chromePath != "" {
		allocOpts = append([]chromedp.ExecAllocatorOption{chromedp.ExecPath(chromePath)}, allocOpts...)
	}
	if opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	} else {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if opts.Proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.Proxy))
	}
	return allocOpts
}

// Name returns the name of this renderer
func (r *Renderer) Name() string {
	return "chrome"
}

// Navigate loads pageURL in the tab. The navigation runs on the tab's own
// context, so cancelling ctx does not abort it; timeout bounds it instead.
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
	navCtx, cancel := context.WithTimeout(r.tab, timeout)
	defer cancel()

	settle := r.opts.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}

	log.Debug().
		Str("url", pageURL).
		Str("renderer", r.Name()).
		Dur("timeout", timeout).
		Msg("Starting navigation")

	var markup, visible string
	tasks := chromedp.Tasks{network.Enable()}
	if len(r.opts.Headers) > 0 {
		h := make(network.Headers, len(r.opts.Headers))
		for k, v := range r.opts.Headers {
			h[k] = v
		}
		tasks = append(tasks, network.SetExtraHTTPHeaders(h))
	}
	tasks = append(tasks,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(settle),
		chromedp.OuterHTML("html", &markup, chromedp.ByQuery),
		chromedp.Evaluate(bodyTextJS, &visible),
	)

	err := chromedp.Run(navCtx, tasks)
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

	page := engine.NewPage(pageURL, markup, visible, timedOut, start)

	log.Debug().
		Str("url", pageURL).
		Dur("elapsed", page.Elapsed).
		Bool("timed_out", timedOut).
		Msg("Navigation completed")

	return page, nil
}

// capture reads whatever the tab holds after a timed-out navigation
func (r *Renderer) capture() (string, string) {
	ctx, cancel := context.WithTimeout(r.tab, captureTimeout)
	defer cancel()

	var markup, visible string
	if err := chromedp.Run(ctx,
		chromedp.OuterHTML("html", &markup, chromedp.ByQuery),
		chromedp.Evaluate(bodyTextJS, &visible),
	); err != nil {
		log.Debug().Err(err).Msg("Soft capture failed")
	}
	return markup, visible
}

// Release closes the tab and the browser process
func (r *Renderer) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return nil
	}
	r.released = true

	if err := chromedp.Cancel(r.tab); err != nil {
		log.Debug().Err(err).Msg("Closing Chrome tab")
	}
	r.tabCancel()
	r.allocCancel()

	log.Debug().Msg("Chrome renderer released")
	return nil
}
