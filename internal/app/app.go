// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/lotscout/internal/config"
	"github.com/law-makers/lotscout/internal/engine"
	"github.com/law-makers/lotscout/internal/engine/dynamic"
	"github.com/law-makers/lotscout/internal/engine/rodbrowser"
	"github.com/law-makers/lotscout/internal/engine/static"
	"github.com/law-makers/lotscout/internal/jurisdiction"
	"github.com/law-makers/lotscout/internal/pipeline"
	"github.com/law-makers/lotscout/internal/proxy"
	"github.com/law-makers/lotscout/internal/ratelimit"
	"github.com/law-makers/lotscout/internal/store"
	"github.com/law-makers/lotscout/pkg/models"
)

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once at startup and shared across all CLI commands.
// Renderers are not held here: each run launches its own and releases it.
type Application struct {
	Config       *config.Config
	Logger       *zerolog.Logger
	RateLimiter  *ratelimit.DomainLimiter
	Proxies      *proxy.Pool
	Orchestrator *pipeline.Orchestrator
	Store        *store.Store
	startTime    time.Time
}

// New creates and initializes a new Application with all dependencies.
//
// It performs the following initialization steps:
//   - Configures logging based on the provided config
//   - Creates the per-host rate limiter that paces navigations
//   - Builds the proxy rotation pool
//   - Selects the renderer backend and wraps it in a launching factory
//   - Creates the pipeline orchestrator and the result store
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger := SetupLogging(cfg.LogLevel, cfg.JSONLog, os.Stderr)

	limiter := ratelimit.NewDomainLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	logger.Debug().
		Float64("rps", cfg.RateLimitRPS).
		Int("burst", cfg.RateLimitBurst).
		Msg("Rate limiter initialized")

	proxies, err := proxy.NewPool(cfg.Proxies, cfg.ProxyCooldown)
	if err != nil {
		return nil, err
	}

	opts := engine.Options{
		UserAgent:   cfg.UserAgent,
		Headers:     cfg.Headers,
		Headless:    cfg.Headless,
		BrowserPath: cfg.ChromePath,
		Settle:      cfg.Settle,
		Limiter:     limiter,
	}
	factory, err := RendererFactory(cfg.Renderer, opts, proxies)
	if err != nil {
		return nil, err
	}

	orch := pipeline.New(factory, PipelineConfig(cfg))
	app := &Application{
		Config:       cfg,
		Logger:       &logger,
		RateLimiter:  limiter,
		Proxies:      proxies,
		Orchestrator: orch,
		Store:        store.New(orch.Run),
		startTime:    time.Now(),
	}

	logger.Debug().
		Str("renderer", string(cfg.Renderer)).
		Str("detail_policy", string(cfg.DetailPolicy)).
		Int("queries", len(cfg.Queries)).
		Int("proxies", proxies.Len()).
		Msg("Application initialized")
	return app, nil
}

// SetupLogging configures the global zerolog logger and returns it. Human
// output goes through a ConsoleWriter; jsonLog keeps raw JSON lines.
func SetupLogging(level string, jsonLog bool, out io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var w io.Writer = out
	if !jsonLog {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return log.Logger
}

// PipelineConfig maps application config onto the orchestrator's
func PipelineConfig(cfg *config.Config) pipeline.Config {
	return pipeline.Config{
		Queries:           cfg.Queries,
		PerQueryLimit:     cfg.PerQueryLimit,
		NavigationTimeout: cfg.NavigationTimeout,
		DetailPolicy:      cfg.DetailPolicy,
		Allowed:           jurisdiction.NewSet(cfg.AllowedStates...),
		Make:              cfg.Make,
		Model:             cfg.Model,
		YearMin:           cfg.YearMin,
		YearMax:           cfg.YearMax,
		MileageCeiling:    cfg.MileageCeiling,
		ScriptBudget:      cfg.ScriptBudget,
		MaxImages:         cfg.MaxImages,
		FallbackCount:     cfg.FallbackCount,
		PageCacheTTL:      cfg.PageCacheTTL,
		PageCacheBytes:    cfg.PageCacheBytes,
	}
}

// RendererFactory returns a factory for the selected backend. Every launch
// takes the next healthy proxy from the pool; a failed launch puts that
// proxy on cooldown.
func RendererFactory(kind models.RendererKind, opts engine.Options, proxies *proxy.Pool) (engine.Factory, error) {
	var backend func(engine.Options) engine.Factory
	switch kind {
	case models.RendererChrome, "":
		backend = dynamic.Factory
	case models.RendererRod:
		backend = rodbrowser.Factory
	case models.RendererStatic:
		backend = func(o engine.Options) engine.Factory {
			return func(context.Context) (engine.Renderer, error) {
				return static.New(nil, o)
			}
		}
	default:
		return nil, fmt.Errorf("unknown renderer %q", kind)
	}

	return func(ctx context.Context) (engine.Renderer, error) {
		o := opts
		o.Proxy = proxies.Next()
		r, err := backend(o)(ctx)
		if err != nil {
			proxies.MarkFailed(o.Proxy)
			return nil, err
		}
		proxies.MarkHealthy(o.Proxy)
		log.Debug().Str("renderer", r.Name()).Bool("proxy", o.Proxy != "").Msg("Renderer acquired")
		return r, nil
	}, nil
}

// Close releases application resources. Renderers are released by the runs
// that launched them, so only bookkeeping remains.
func (a *Application) Close(ctx context.Context) error {
	a.Logger.Debug().Dur("uptime", a.Uptime()).Msg("Application shutdown complete")
	return nil
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}
