// Package pipeline runs searches through a Renderer and turns the listings
// it finds into eligible, deduplicated vehicle records.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/law-makers/lotscout/internal/cache"
	"github.com/law-makers/lotscout/internal/discovery"
	"github.com/law-makers/lotscout/internal/eligibility"
	"github.com/law-makers/lotscout/internal/engine"
	"github.com/law-makers/lotscout/internal/extract"
	"github.com/law-makers/lotscout/internal/images"
	"github.com/law-makers/lotscout/internal/jurisdiction"
	"github.com/law-makers/lotscout/internal/location"
	"github.com/law-makers/lotscout/internal/reqctx"
	"github.com/law-makers/lotscout/internal/utils/text"
	"github.com/law-makers/lotscout/pkg/models"
)

const tracerName = "github.com/law-makers/lotscout/internal/pipeline"

// Config is everything a run needs besides the Renderer
type Config struct {
	Queries []models.Query
	// PerQueryLimit caps discovery and acceptance per query. Zero means
	// the run limit.
	PerQueryLimit     int
	NavigationTimeout time.Duration
	DetailPolicy      models.DetailPolicy

	Allowed        jurisdiction.Set
	Make           string
	Model          string
	YearMin        int
	YearMax        int
	MileageCeiling int

	ScriptBudget  time.Duration
	MaxImages     int
	FallbackCount int

	PageCacheTTL   time.Duration
	PageCacheBytes int64
}

// Orchestrator owns the stage components. It holds no per-run state, so one
// Orchestrator can serve successive runs.
type Orchestrator struct {
	factory   engine.Factory
	cfg       Config
	extractor *extract.Extractor
	resolver  *location.Resolver
	filter    *eligibility.Filter
	images    *images.Resolver
	observer  Observer
	tracer    trace.Tracer
}

// New wires the stage components from cfg
func New(factory engine.Factory, cfg Config) *Orchestrator {
	if cfg.DetailPolicy == "" {
		cfg.DetailPolicy = models.DetailAlways
	}
	img := images.New()
	if cfg.MaxImages > 0 {
		img.MaxImages = cfg.MaxImages
	}
	if cfg.FallbackCount > 0 {
		img.FallbackCount = cfg.FallbackCount
	}
	return &Orchestrator{
		factory: factory,
		cfg:     cfg,
		extractor: extract.New(extract.Options{
			Make:    cfg.Make,
			Model:   cfg.Model,
			YearMin: cfg.YearMin,
			YearMax: cfg.YearMax,
			Allowed: cfg.Allowed,
		}),
		resolver: location.New(cfg.Allowed, cfg.ScriptBudget),
		filter:   eligibility.New(cfg.Allowed, cfg.MileageCeiling),
		images:   img,
		tracer:   otel.Tracer(tracerName),
	}
}

// SetObserver installs a progress callback
func (o *Orchestrator) SetObserver(fn Observer) {
	o.observer = fn
}

// Run searches every configured query and returns at most limit eligible
// records in discovery order. Zero records is not an error; only a
// renderer that cannot be started is.
func (o *Orchestrator) Run(ctx context.Context, limit int) ([]*models.VehicleRecord, error) {
	if limit <= 0 {
		return []*models.VehicleRecord{}, nil
	}
	ctx = reqctx.WithRun(ctx)
	ctx, span := o.tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(
		attribute.Int("limit", limit),
		attribute.Int("queries", len(o.cfg.Queries)),
	))
	defer span.End()

	r, err := o.start(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer r.close()

	acc := newAccumulator(limit)
	perQuery := o.cfg.PerQueryLimit
	if perQuery <= 0 || perQuery > limit {
		perQuery = limit
	}

	for _, q := range o.cfg.Queries {
		if acc.full() {
			break
		}
		if err := ctx.Err(); err != nil {
			log.Warn().Str("run_id", r.runID).Err(err).Msg("Run cancelled between queries")
			break
		}
		r.query(ctx, q, perQuery, acc)
	}

	return r.finish(span, acc), nil
}

// ScrapeLots evaluates explicit lot ids through the detail page path only
func (o *Orchestrator) ScrapeLots(ctx context.Context, lotIDs []string) ([]*models.VehicleRecord, error) {
	if len(lotIDs) == 0 {
		return []*models.VehicleRecord{}, nil
	}
	ctx = reqctx.WithRun(ctx)
	ctx, span := o.tracer.Start(ctx, "pipeline.ScrapeLots", trace.WithAttributes(
		attribute.Int("lots", len(lotIDs)),
	))
	defer span.End()

	r, err := o.start(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer r.close()

	acc := newAccumulator(len(lotIDs))
	for _, id := range lotIDs {
		if err := ctx.Err(); err != nil {
			log.Warn().Str("run_id", r.runID).Err(err).Msg("Run cancelled between lots")
			break
		}
		id = strings.TrimPrefix(strings.TrimSpace(id), "1-")
		if id == "" || acc.has(id) {
			continue
		}
		r.lot(ctx, id, acc)
	}

	return r.finish(span, acc), nil
}

// start acquires the run's Renderer
func (o *Orchestrator) start(ctx context.Context) (*run, error) {
	runID := reqctx.RunID(ctx)
	o.emit(Event{State: Idle})

	renderer, err := o.factory(ctx)
	if err != nil {
		if !errors.Is(err, engine.ErrRendererUnavailable) {
			err = engine.Unavailable("configured", err)
		}
		log.Error().Str("run_id", runID).Err(err).Msg("Renderer unavailable")
		return nil, reqctx.NewRunError(ctx, err)
	}

	log.Info().
		Str("run_id", runID).
		Str("renderer", renderer.Name()).
		Str("detail_policy", string(o.cfg.DetailPolicy)).
		Msg("Run started")

	return &run{
		Orchestrator: o,
		runID:        runID,
		renderer:     renderer,
		pages:        cache.NewMemoryCache(o.cfg.PageCacheBytes, o.cfg.PageCacheTTL),
		started:      time.Now(),
	}, nil
}

func (o *Orchestrator) emit(ev Event) {
	if o.observer != nil {
		o.observer(ev)
	}
}

// run is the state of one Run or ScrapeLots call
type run struct {
	*Orchestrator
	runID    string
	renderer engine.Renderer
	pages    *cache.MemoryCache
	started  time.Time
}

// close releases the renderer. It runs on every exit path of a run.
func (r *run) close() {
	if err := r.renderer.Release(); err != nil {
		log.Warn().Str("run_id", r.runID).Err(err).Msg("Renderer release failed")
	}
	r.pages.Close()
}

func (r *run) finish(span trace.Span, acc *accumulator) []*models.VehicleRecord {
	out := acc.result()
	span.SetAttributes(attribute.Int("records", len(out)))
	stats := r.pages.Stats()
	log.Info().
		Str("run_id", r.runID).
		Int("records", len(out)).
		Int("detail_pages", stats.Entries).
		Dur("elapsed", time.Since(r.started)).
		Msg("Run finished")
	r.emit(Event{State: Done, Accepted: len(out)})
	return out
}

// query runs one search page through every stage. A panic abandons the
// query and the run moves on to the next one.
func (r *run) query(ctx context.Context, q models.Query, perQuery int, acc *accumulator) {
	ctx, span := r.tracer.Start(ctx, "pipeline.query", trace.WithAttributes(
		attribute.String("query", q.Name),
		attribute.String("url", q.URL),
	))
	defer span.End()

	logger := log.With().Str("run_id", r.runID).Str("query", q.Name).Logger()

	defer func() {
		if p := recover(); p != nil {
			err := engine.NewEngineError(engine.ErrCodeNavigationFailed, "query skipped", fmt.Errorf("%v", p)).
				WithDetail("url", q.URL)
			span.RecordError(err)
			logger.Error().Err(err).Msg("Query aborted")
		}
	}()

	r.emit(Event{State: Discovering, Query: q.Name, Accepted: acc.len()})

	page, err := r.renderer.Navigate(ctx, q.URL, r.cfg.NavigationTimeout)
	if err != nil {
		span.RecordError(err)
		logger.Warn().Err(err).Msg("Search page navigation failed")
		return
	}
	if page.TimedOut {
		logger.Warn().Msg("Search page timed out, using partial markup")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		logger.Warn().Err(engine.NewEngineError(engine.ErrCodeParseError, "search page", err)).Msg("Search page unparsable")
		return
	}

	candidates := discovery.Find(doc, perQuery)
	span.SetAttributes(attribute.Int("candidates", len(candidates)))
	logger.Info().Int("candidates", len(candidates)).Msg("Candidates discovered")
	r.emit(Event{State: Discovering, Query: q.Name, Candidates: len(candidates), Accepted: acc.len()})

	accepted := 0
	for _, c := range candidates {
		if acc.full() || accepted >= perQuery {
			break
		}
		if r.candidate(ctx, q, page, c, acc) {
			accepted++
		}
	}
	span.SetAttributes(attribute.Int("accepted", accepted))
}

// candidate extracts and evaluates one candidate. A panic in any stage
// skips the candidate.
func (r *run) candidate(ctx context.Context, q models.Query, results *models.Page, c discovery.Candidate, acc *accumulator) (accepted bool) {
	ctx, span := r.tracer.Start(ctx, "pipeline.candidate", trace.WithAttributes(
		attribute.String("strategy", c.Strategy),
		attribute.String("lot_id", c.LotID),
	))
	defer span.End()

	defer func() {
		if p := recover(); p != nil {
			err := engine.NewEngineError(engine.ErrCodeMalformedCandidate, "candidate skipped", fmt.Errorf("%v", p)).
				WithDetail("lot_id", c.LotID)
			span.RecordError(err)
			log.Warn().Str("run_id", r.runID).Str("query", q.Name).Err(err).Msg("Malformed candidate")
			r.emit(Event{State: Extracting, Query: q.Name, LotID: c.LotID, Reason: string(engine.ErrCodeMalformedCandidate), Accepted: acc.len()})
			accepted = false
		}
	}()

	r.emit(Event{State: Extracting, Query: q.Name, LotID: c.LotID, Accepted: acc.len()})
	rec := r.extractor.Extract(c)
	if rec == nil {
		log.Debug().Str("run_id", r.runID).Str("strategy", c.Strategy).Msg("Candidate without lot id")
		return false
	}
	span.SetAttributes(attribute.String("lot_id", rec.LotID))
	if acc.has(rec.LotID) {
		log.Debug().Str("run_id", r.runID).Str("lot_id", rec.LotID).Msg("Lot already accepted")
		return false
	}
	rec.Query = q.Name

	visit := r.cfg.DetailPolicy == models.DetailAlways || !r.cfg.Allowed.Allows(rec.LocationState)
	return r.evaluate(ctx, q.Name, rec, text.Visible(c.Selection), results, visit, acc)
}

// lot evaluates one explicit lot id
func (r *run) lot(ctx context.Context, id string, acc *accumulator) {
	ctx, span := r.tracer.Start(ctx, "pipeline.lot", trace.WithAttributes(attribute.String("lot_id", id)))
	defer span.End()

	defer func() {
		if p := recover(); p != nil {
			err := engine.NewEngineError(engine.ErrCodeMalformedCandidate, "lot skipped", fmt.Errorf("%v", p)).
				WithDetail("lot_id", id)
			span.RecordError(err)
			log.Warn().Str("run_id", r.runID).Err(err).Msg("Malformed lot page")
		}
	}()

	rec := models.NewVehicleRecord(r.cfg.Make, r.cfg.Model)
	rec.LotID = id
	rec.URL = extract.LotURL(id)
	rec.Query = "lots"
	r.evaluate(ctx, rec.Query, rec, "", nil, true, acc)
}

// evaluate confirms rec against its detail page when visit is set, filters
// it and resolves its images. fallbackText and fallbackPage stand in for
// the detail page when it is not visited.
func (r *run) evaluate(ctx context.Context, query string, rec *models.VehicleRecord, fallbackText string, fallbackPage *models.Page, visit bool, acc *accumulator) bool {
	logger := log.With().Str("run_id", r.runID).Str("query", query).Str("lot_id", rec.LotID).Logger()

	visible, imagePage := fallbackText, fallbackPage
	if visit {
		detail, err := r.detail(ctx, rec.URL)
		if err != nil {
			logger.Warn().Err(err).Msg("Detail page navigation failed")
		} else {
			r.extractor.Supplement(rec, detail)

			r.emit(Event{State: LocationResolving, Query: query, LotID: rec.LotID, Accepted: acc.len()})
			res := r.resolver.Resolve(detail)
			switch {
			case res.Rejected && res.State != "":
				logger.Debug().Str("state", res.State).Str("reason", res.Reason).Msg("Rejected by location signal")
				r.emit(Event{State: LocationResolving, Query: query, LotID: rec.LotID, Reason: eligibility.ReasonLocation, Accepted: acc.len()})
				return false
			case res.Rejected:
				logger.Debug().Str("hint", rec.LocationState).Msg("No location signal on detail page")
			default:
				location.Apply(rec, res)
			}
			visible, imagePage = detail.Text, detail
		}
	}

	r.emit(Event{State: Filtering, Query: query, LotID: rec.LotID, Accepted: acc.len()})
	if d := r.filter.Evaluate(rec, visible); !d.Eligible {
		logger.Debug().Str("reason", d.Reason).Msg("Rejected by filter")
		r.emit(Event{State: Filtering, Query: query, LotID: rec.LotID, Reason: d.Reason, Accepted: acc.len()})
		return false
	}

	r.emit(Event{State: ImageResolving, Query: query, LotID: rec.LotID, Accepted: acc.len()})
	rec.Images = r.images.Resolve(rec.LotID, imagePage)

	r.emit(Event{State: Accumulating, Query: query, LotID: rec.LotID, Accepted: acc.len()})
	if !acc.add(rec) {
		return false
	}
	logger.Info().
		Str("state", rec.LocationState).
		Str("location_source", rec.LocationSource.String()).
		Int("images", len(rec.Images)).
		Msg("Lot accepted")
	return true
}

// detail returns the lot's detail page, rendering it at most once per run
func (r *run) detail(ctx context.Context, url string) (*models.Page, error) {
	if page, ok := r.pages.Get(url); ok {
		return page, nil
	}
	page, err := r.renderer.Navigate(ctx, url, r.cfg.NavigationTimeout)
	if err != nil {
		return nil, err
	}
	r.pages.Set(url, page, 0)
	return page, nil
}
