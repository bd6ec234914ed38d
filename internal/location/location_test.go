package location

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/lotscout/internal/jurisdiction"
	"github.com/law-makers/lotscout/pkg/models"
)

func resolve(markup string) Resolution {
	r := New(jurisdiction.NewSet("MD", "DC", "NJ", "NY"), time.Second)
	return r.Resolve(&models.Page{URL: "https://www.copart.com/lot/12345678", HTML: markup})
}

func TestResolve_SaleDocBeatsGeneralText(t *testing.T) {
	res := resolve(`<div><label>Sale doc:</label><span>NJ - TRENTON</span></div>
		<div>Location: Philadelphia, PA</div>`)

	assert.False(t, res.Rejected)
	assert.Equal(t, "NJ", res.State)
	assert.Equal(t, "NJ - TRENTON", res.Text)
	assert.Equal(t, models.SourceSaleDoc, res.Source)
	assert.Equal(t, "labels", res.Via)
}

func TestResolve_DisallowedSaleDocRejects(t *testing.T) {
	res := resolve(`<div><label>Sale doc:</label><span>PA - PHILADELPHIA</span></div>
		<div>Location: Baltimore, MD</div>`)

	assert.True(t, res.Rejected)
	assert.Equal(t, "PA", res.State)
	assert.Equal(t, ReasonSaleDoc, res.Reason)
}

func TestResolve_SpecificSaleDocLabelsWin(t *testing.T) {
	res := resolve(`<p>Title Document: PA - SALVAGE CERTIFICATE</p><p>Sale doc: MD - BALTIMORE</p>`)
	require.False(t, res.Rejected)
	assert.Equal(t, "MD", res.State)
	assert.Equal(t, models.SourceSaleDoc, res.Source)

	res = resolve(`<p>Document fee: IN advance</p><p>Sale doc: NJ - TRENTON</p>`)
	require.False(t, res.Rejected)
	assert.Equal(t, "NJ", res.State)
	assert.Equal(t, "NJ - TRENTON", res.Text)
}

func TestResolve_GenericDocumentLabel(t *testing.T) {
	res := resolve(`<p>Document: NY - NEWBURGH</p>`)
	require.False(t, res.Rejected)
	assert.Equal(t, "NY", res.State)
	assert.Equal(t, models.SourceSaleDoc, res.Source)

	// a disallowed state under the generic label does not reject
	res = resolve(`<p>Document: PA - SALVAGE CERTIFICATE</p><p>Location / Lane: NJ - TRENTON / C</p>`)
	require.False(t, res.Rejected)
	assert.Equal(t, "NJ", res.State)
	assert.Equal(t, models.SourceLane, res.Source)
}

func TestResolve_SiblingWithOwnLabelIgnored(t *testing.T) {
	res := resolve(`<p>Document: 2 keys</p><p>Location / Lane: MD - ELKRIDGE / A</p>`)
	require.False(t, res.Rejected)
	assert.Equal(t, "MD", res.State)
	assert.Equal(t, models.SourceLane, res.Source)

	res = resolve(`<div><label>Sale doc:</label><label>Location / Lane: MD - ELKRIDGE / A</label></div>`)
	require.False(t, res.Rejected)
	assert.Equal(t, models.SourceLane, res.Source)
}

func TestResolve_LaneWhenNoSaleDoc(t *testing.T) {
	res := resolve(`<p>Location / Lane: NY - LONG ISLAND / B</p>`)
	require.False(t, res.Rejected)
	assert.Equal(t, "NY", res.State)
	assert.Equal(t, "NY - LONG ISLAND / B", res.Text)
	assert.Equal(t, models.SourceLane, res.Source)

	res = resolve(`<p>Location / Lane: PA - PHILADELPHIA / A</p><p>Baltimore, MD</p>`)
	assert.True(t, res.Rejected)
	assert.Equal(t, ReasonLane, res.Reason)
}

func TestResolve_GeneralFallbacks(t *testing.T) {
	cases := []struct {
		name   string
		markup string
		state  string
		text   string
		via    string
	}{
		{"gazetteer", `<p>Baltimore, Maryland</p>`, "MD", "Baltimore, Maryland", "gazetteer"},
		{"city", `<p>Hagerstown, MD 21740</p>`, "MD", "Hagerstown, MD", "city"},
		{"bare", `<p>Seller: State Farm (MD)</p>`, "MD", "MD", "bare"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := resolve(tc.markup)
			require.False(t, res.Rejected)
			assert.Equal(t, tc.state, res.State)
			assert.Equal(t, tc.text, res.Text)
			assert.Equal(t, tc.via, res.Via)
			assert.Equal(t, models.SourceGeneral, res.Source)
		})
	}
}

func TestResolve_NoSignal(t *testing.T) {
	res := resolve(`<p>Nothing to see</p>`)
	assert.True(t, res.Rejected)
	assert.Empty(t, res.State)
	assert.Equal(t, ReasonNoJurisdiction, res.Reason)

	res = New(jurisdiction.NewSet("MD"), 0).Resolve(nil)
	assert.True(t, res.Rejected)
}

func TestResolve_MarkupAndScriptPayloads(t *testing.T) {
	res := resolve(`<div data-sale-doc="NY"></div>`)
	require.False(t, res.Rejected)
	assert.Equal(t, "NY", res.State)
	assert.Equal(t, "markup", res.Via)

	res = resolve(`<html><head><script>var s = ["N","J"].join(""); window.lot = {saleDoc: s};</script></head>
		<body><p>Lot details</p></body></html>`)
	require.False(t, res.Rejected)
	assert.Equal(t, "NJ", res.State)
	assert.Equal(t, "payload", res.Via)
	assert.Equal(t, models.SourceSaleDoc, res.Source)
}

func TestResolve_MostSpecificText(t *testing.T) {
	res := resolve(`<div><span>Sale doc:</span> <span>NJ</span></div><p>Yard: Edison, NJ</p>`)
	require.False(t, res.Rejected)
	assert.Equal(t, models.SourceSaleDoc, res.Source)
	assert.Equal(t, "Edison, NJ", res.Text)

	res = resolve(`<p>Sale document: Trenton, NJ, USA</p>`)
	require.False(t, res.Rejected)
	assert.Equal(t, "Trenton, NJ", res.Text)
}

func TestApply_RespectsPriority(t *testing.T) {
	rec := models.NewVehicleRecord("Toyota", "Corolla")
	require.True(t, rec.SetLocation("MD", "MD", models.SourceHint))

	assert.True(t, Apply(rec, Resolution{State: "NJ", Text: "Trenton, NJ", Source: models.SourceGeneral}))
	assert.Equal(t, "NJ", rec.LocationState)
	assert.Equal(t, "Trenton, NJ", rec.LocationText)

	assert.False(t, Apply(rec, Resolution{State: "MD", Source: models.SourceHint}))
	assert.False(t, Apply(rec, Resolution{Rejected: true, Reason: ReasonNoJurisdiction}))
	assert.False(t, Apply(nil, Resolution{State: "MD"}))
	assert.Equal(t, "NJ", rec.LocationState)
}
