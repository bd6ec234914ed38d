package discovery

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFind_RowsWin(t *testing.T) {
	markup := `<table>
		<tr><th>Lot</th><th>Vehicle</th></tr>
		<tr><td><a href="/lot/12345678">Lot # 12345678</a></td><td>2019 TOYOTA COROLLA</td></tr>
		<tr><td><a href="/lot/87654321">Lot # 87654321</a></td><td>2020 TOYOTA COROLLA</td></tr>
	</table>
	<div data-lot-number="11111111"></div>`

	got, err := FindHTML(markup, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, StrategyRows, got[0].Strategy)
	assert.Equal(t, "12345678", got[0].LotID)
	assert.Equal(t, "/lot/87654321", got[1].Href)
}

func TestFind_RowsKeepInnermost(t *testing.T) {
	markup := `<ul><li><article>Lot # 12345678 <a href="/lot/12345678">view</a></article></li></ul>`
	got, err := FindHTML(markup, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "article", got[0].Selection.Nodes[0].Data)
}

func TestFind_Containers(t *testing.T) {
	markup := `<div data-lot-number="1-22222222"><span>2018 COROLLA</span></div>
		<section data-lot-number="33333333"></section>`
	got, err := FindHTML(markup, 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, StrategyContainers, got[0].Strategy)
	assert.Equal(t, "22222222", got[0].LotID)
	assert.Equal(t, "33333333", got[1].LotID)
}

func TestFind_AnchorsDeduplicate(t *testing.T) {
	markup := `<a href="/lot/1"><img></a><a href="/lot/1">2019 Corolla</a>
		<a href="/about">about</a><a href="https://www.copart.com/lot/2/x">2</a>`
	got, err := FindHTML(markup, 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, StrategyAnchors, got[0].Strategy)
	assert.Equal(t, "1", got[0].LotID)
	assert.Equal(t, "2", got[1].LotID)
}

func TestFind_WideAcceptsUnhydratedLinks(t *testing.T) {
	markup := `<a ng-href="/lot/55555555">lot</a><div data-url="/search?lotId=66666666"></div>`
	got, err := FindHTML(markup, 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, StrategyWide, got[0].Strategy)
	assert.Equal(t, "55555555", got[0].LotID)
	assert.Equal(t, "66666666", got[1].LotID)
}

func TestFind_CapsAtTwiceLimit(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&b, `<div data-lot-number="%08d"></div>`, 10000000+i)
	}
	got, err := FindHTML(b.String(), 3)
	require.NoError(t, err)
	assert.Len(t, got, 6)
}

func TestFind_EmptyAndIdempotent(t *testing.T) {
	got, err := FindHTML(`<p>No results</p>`, 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	markup := `<a href="/lot/1">a</a><a href="/lot/2">b</a>`
	first, _ := FindHTML(markup, 10)
	second, _ := FindHTML(markup, 10)
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].LotID, second[i].LotID)
	}

	assert.Nil(t, Find(nil, 10))
}

func TestLotIDFromHref(t *testing.T) {
	id, ok := LotIDFromHref("https://www.copart.com/lot/12345678/clean-title-2019-toyota-corolla")
	assert.True(t, ok)
	assert.Equal(t, "12345678", id)

	id, ok = LotIDFromHref("/lotDetails?lotNumber=1-87654321")
	assert.True(t, ok)
	assert.Equal(t, "87654321", id)

	_, ok = LotIDFromHref("/vehicleFinder")
	assert.False(t, ok)
}
