package text

import (
	"regexp"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, markup string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	require.NoError(t, err)
	return doc
}

func TestDocument_LinesAndCells(t *testing.T) {
	doc := parse(t, `<html><head><title>x</title><style>.a{}</style></head><body>
		<h1>2019 TOYOTA   COROLLA</h1>
		<table><tr><td>Odometer:</td><td>42,000 mi</td></tr></table>
		<script>var hidden = 1;</script>
		<p>Sale doc:<br>NJ - TRENTON</p>
	</body></html>`)

	assert.Equal(t, "2019 TOYOTA COROLLA\nOdometer: 42,000 mi\nSale doc:\nNJ - TRENTON", Document(doc))
}

func TestLabels(t *testing.T) {
	doc := parse(t, `<div class="row"><label>Sale doc:</label><span>MD - BALTIMORE</span></div>
		<div><span>Lane: C</span></div>`)

	ctxs := Labels(doc, regexp.MustCompile(`(?i)sale\s+doc`))
	require.Len(t, ctxs, 1)
	assert.Equal(t, "Sale doc:", ctxs[0].Parent)
	assert.Equal(t, "MD - BALTIMORE", ctxs[0].Sibling)
	assert.Equal(t, "Sale doc:\nMD - BALTIMORE", ctxs[0].Grandparent)

	assert.Empty(t, Labels(doc, regexp.MustCompile(`Odometer`)))
	assert.Nil(t, Labels(nil, regexp.MustCompile(`x`)))
}

func TestCollapse(t *testing.T) {
	assert.Equal(t, "a b\nc", Collapse("  a \t b \n\n\n c  "))
}
