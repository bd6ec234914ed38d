package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/lotscout/internal/engine"
	"github.com/law-makers/lotscout/internal/jurisdiction"
	"github.com/law-makers/lotscout/internal/reqctx"
	"github.com/law-makers/lotscout/pkg/models"
)

const searchURL = "https://www.copart.com/lotSearchResults?free=true&query=toyota%20corolla"

const searchPage = `<html><body><div class="results">
	<a href="/lot/11111111/salvage-2019-toyota-corolla-md-baltimore">2019 TOYOTA COROLLA</a>
	<a href="/lot/22222222/salvage-2020-toyota-corolla-pa-philadelphia">2020 TOYOTA COROLLA</a>
	<a href="/lot/33333333/salvage-2018-toyota-corolla-md-elkridge">2018 TOYOTA COROLLA</a>
</div></body></html>`

var detailPages = map[string]string{
	"https://www.copart.com/lot/11111111": `<html><head><title>2019 TOYOTA COROLLA LE</title></head><body>
		<h1>2019 TOYOTA COROLLA LE</h1>
		<p>Title Type: Salvage Certificate</p>
		<p>Odometer: 42,000 mi (Actual)</p>
		<p>Primary Damage: Front End</p>
		<p>Sale doc: MD - BALTIMORE</p>
		<img src="https://cs.copart.com/v1/AUTH_svc.pdoc00001/lpp/11111111/11111111_1_thb.jpg">
	</body></html>`,
	"https://www.copart.com/lot/22222222": `<html><head><title>2020 TOYOTA COROLLA</title></head><body>
		<p>Title Type: Salvage Certificate</p>
		<p>Odometer: 30,000 mi</p>
		<p>Sale doc: PA - PHILADELPHIA</p>
		<p>Nearby: Trenton, NJ</p>
	</body></html>`,
	"https://www.copart.com/lot/33333333": `<html><head><title>2018 TOYOTA COROLLA</title></head><body>
		<p>Salvage title</p>
		<p>Odometer: 87,500 mi</p>
		<p>Location / Lane: MD - ELKRIDGE</p>
	</body></html>`,
}

// fakeRenderer serves canned markup
type fakeRenderer struct {
	mu       sync.Mutex
	pages    map[string]string
	visits   []string
	released int
	panicOn  string
}

func newFake(extra map[string]string) *fakeRenderer {
	pages := map[string]string{searchURL: searchPage}
	for k, v := range detailPages {
		pages[k] = v
	}
	for k, v := range extra {
		pages[k] = v
	}
	return &fakeRenderer{pages: pages}
}

func (f *fakeRenderer) Navigate(ctx context.Context, url string, timeout time.Duration) (*models.Page, error) {
	f.mu.Lock()
	f.visits = append(f.visits, url)
	markup, ok := f.pages[url]
	f.mu.Unlock()
	if url == f.panicOn {
		panic("renderer exploded")
	}
	if !ok {
		return nil, engine.NavigationFailed(url, errors.New("404"))
	}
	return engine.NewPage(url, markup, "", false, time.Now()), nil
}

func (f *fakeRenderer) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
	return nil
}

func (f *fakeRenderer) Name() string { return "fake" }

func factoryFor(r engine.Renderer) engine.Factory {
	return func(context.Context) (engine.Renderer, error) { return r, nil }
}

func testConfig(queries ...models.Query) Config {
	if len(queries) == 0 {
		queries = []models.Query{{Name: "MD/DC/NJ", URL: searchURL}}
	}
	return Config{
		Queries:           queries,
		NavigationTimeout: time.Second,
		DetailPolicy:      models.DetailAlways,
		Allowed:           jurisdiction.NewSet("MD", "DC", "NJ", "NY"),
		Make:              "Toyota",
		Model:             "Corolla",
		YearMin:           2017,
		YearMax:           2023,
		MileageCeiling:    100000,
		ScriptBudget:      50 * time.Millisecond,
	}
}

func lotIDs(recs []*models.VehicleRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.LotID
	}
	return out
}

func TestRun_EndToEnd(t *testing.T) {
	fake := newFake(nil)
	o := New(factoryFor(fake), testConfig())

	var events []Event
	o.SetObserver(func(ev Event) { events = append(events, ev) })

	recs, err := o.Run(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, []string{"11111111", "33333333"}, lotIDs(recs))

	first, second := recs[0], recs[1]
	assert.Equal(t, "MD", first.LocationState)
	assert.Equal(t, models.SourceSaleDoc, first.LocationSource)
	assert.Equal(t, 42000, *first.Odometer)
	assert.Equal(t, 2019, *first.Year)
	assert.Equal(t, "Front End", first.Damage)
	assert.Equal(t, "Salvage", first.TitleStatus)
	assert.Equal(t, "https://www.copart.com/lot/11111111", first.URL)
	assert.Equal(t, []string{"https://cs.copart.com/v1/AUTH_svc.pdoc00001/lpp/11111111/11111111_1_ful.jpg"}, first.Images)
	assert.Equal(t, "MD/DC/NJ", first.Query)

	assert.Equal(t, "MD", second.LocationState)
	assert.Equal(t, models.SourceLane, second.LocationSource)
	assert.Equal(t, 87500, *second.Odometer)
	assert.NotEmpty(t, second.Images)
	for _, u := range second.Images {
		assert.Contains(t, u, "33333333")
	}

	for _, r := range recs {
		assert.True(t, jurisdiction.NewSet("MD", "DC", "NJ", "NY").Allows(r.LocationState))
		assert.Less(t, *r.Odometer, 100000)
		assert.Contains(t, r.TitleStatus, "Salvage")
	}

	assert.Equal(t, 1, fake.released)
	assert.Len(t, fake.visits, 4)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, Done, last.State)
	assert.Equal(t, 2, last.Accepted)
}

func TestRun_TruncatesToLimit(t *testing.T) {
	fake := newFake(nil)
	recs, err := New(factoryFor(fake), testConfig()).Run(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"11111111"}, lotIDs(recs))
	assert.Equal(t, 1, fake.released)
}

func TestRun_DedupAcrossQueriesAndDetailCache(t *testing.T) {
	fake := newFake(nil)
	cfg := testConfig(
		models.Query{Name: "MD/DC/NJ", URL: searchURL},
		models.Query{Name: "NY", URL: searchURL},
	)
	recs, err := New(factoryFor(fake), cfg).Run(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"11111111", "33333333"}, lotIDs(recs))
	assert.Equal(t, "MD/DC/NJ", recs[0].Query)

	// two search pages plus each detail page once
	assert.Len(t, fake.visits, 5)
}

func TestRun_RendererUnavailable(t *testing.T) {
	boom := errors.New("chrome crashed")
	o := New(func(context.Context) (engine.Renderer, error) { return nil, boom }, testConfig())

	recs, err := o.Run(context.Background(), 5)
	assert.Nil(t, recs)
	assert.ErrorIs(t, err, engine.ErrRendererUnavailable)
	assert.ErrorIs(t, err, boom)

	var runErr *reqctx.RunError
	require.True(t, errors.As(err, &runErr))
	assert.NotEqual(t, "unknown", runErr.RunID)
}

func TestRun_MalformedCandidateSkipped(t *testing.T) {
	fake := newFake(nil)
	fake.panicOn = "https://www.copart.com/lot/11111111"

	recs, err := New(factoryFor(fake), testConfig()).Run(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"33333333"}, lotIDs(recs))
	assert.Equal(t, 1, fake.released)
}

func TestRun_QueryPanicMovesToNextQuery(t *testing.T) {
	const otherSearch = "https://www.copart.com/lotSearchResults?free=true&query=corolla%20ny"
	fake := newFake(map[string]string{otherSearch: searchPage})
	fake.panicOn = searchURL

	cfg := testConfig(
		models.Query{Name: "MD/DC/NJ", URL: searchURL},
		models.Query{Name: "NY", URL: otherSearch},
	)
	recs, err := New(factoryFor(fake), cfg).Run(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"11111111", "33333333"}, lotIDs(recs))
	assert.Equal(t, 1, fake.released)
}

func TestRun_SearchNavigationFailureYieldsNothing(t *testing.T) {
	fake := newFake(nil)
	cfg := testConfig(models.Query{Name: "broken", URL: "https://www.copart.com/missing"})

	recs, err := New(factoryFor(fake), cfg).Run(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Equal(t, 1, fake.released)
}

func TestRun_CancelledBeforeFirstQuery(t *testing.T) {
	fake := newFake(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	recs, err := New(factoryFor(fake), testConfig()).Run(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Empty(t, fake.visits)
	assert.Equal(t, 1, fake.released)
}

func TestRun_ZeroLimit(t *testing.T) {
	fake := newFake(nil)
	recs, err := New(factoryFor(fake), testConfig()).Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Equal(t, 0, fake.released)
}

func TestRun_AutoPolicyTrustsAllowedHint(t *testing.T) {
	const autoURL = "https://www.copart.com/lotSearchResults?query=nj"
	fake := newFake(map[string]string{
		autoURL: `<html><body>
			<a href="/lot/44444444/salvage-2019-toyota-corolla-nj-trenton">2019 TOYOTA COROLLA Salvage title 42,000 miles</a>
		</body></html>`,
	})
	cfg := testConfig(models.Query{Name: "NJ", URL: autoURL})
	cfg.DetailPolicy = models.DetailAuto

	recs, err := New(factoryFor(fake), cfg).Run(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "NJ", recs[0].LocationState)
	assert.Equal(t, models.SourceHint, recs[0].LocationSource)
	assert.Equal(t, 42000, *recs[0].Odometer)
	assert.NotEmpty(t, recs[0].Images)
	assert.Equal(t, []string{autoURL}, fake.visits)
}

func TestScrapeLots(t *testing.T) {
	fake := newFake(nil)
	recs, err := New(factoryFor(fake), testConfig()).ScrapeLots(context.Background(),
		[]string{"11111111", "1-33333333", "22222222", "11111111", "99999999"})
	require.NoError(t, err)
	assert.Equal(t, []string{"11111111", "33333333"}, lotIDs(recs))
	assert.Equal(t, "lots", recs[0].Query)
	assert.Equal(t, 1, fake.released)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "location_resolving", LocationResolving.String())
	assert.Equal(t, "unknown", State(99).String())
}
