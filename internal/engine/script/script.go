// Package script evaluates a page's inline scripts in a sandboxed goja VM and
// exposes the globals they assign, which is where single-page apps tend to
// park their initial state.
package script

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"github.com/rs/zerolog/log"
)

// DefaultBudget caps the wall time spent running one page's scripts
const DefaultBudget = 250 * time.Millisecond

// Payload is one non-standard global left behind by inline scripts
type Payload struct {
	Key  string
	JSON string
}

// Inline returns the text of every inline script block on the page
func Inline(doc *goquery.Document) []string {
	if doc == nil {
		return nil
	}
	var out []string
	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		if _, external := sel.Attr("src"); external {
			return
		}
		if body := strings.TrimSpace(sel.Text()); body != "" {
			out = append(out, body)
		}
	})
	return out
}

// Globals runs the inline scripts of doc and returns the globals they
// assigned, serialized as JSON. Script errors are expected (there is no real
// DOM) and are ignored. Execution stops once budget is spent.
func Globals(doc *goquery.Document, pageURL string, budget time.Duration) []Payload {
	scripts := Inline(doc)
	if len(scripts) == 0 {
		return nil
	}
	if budget <= 0 {
		budget = DefaultBudget
	}

	vm := goja.New()
	mockBrowser(vm, pageURL)

	timer := time.AfterFunc(budget, func() { vm.Interrupt("script budget exceeded") })
	defer timer.Stop()

	for _, src := range scripts {
		if _, err := vm.RunString(src); err != nil {
			if _, interrupted := err.(*goja.InterruptedError); interrupted {
				log.Debug().Str("url", pageURL).Msg("Inline script budget exceeded")
				break
			}
		}
	}
	vm.ClearInterrupt()

	var out []Payload
	for _, key := range vm.GlobalObject().Keys() {
		if isStandardGlobal(key) {
			continue
		}
		val := vm.Get(key)
		if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
			continue
		}
		if _, fn := goja.AssertFunction(val); fn {
			continue
		}
		exported := val.Export()
		if exported == nil {
			continue
		}
		b, err := json.Marshal(exported)
		if err != nil {
			// cyclic or otherwise unserializable state
			log.Debug().Err(err).Str("url", pageURL).Str("global", key).Msg("Skipping script payload")
			continue
		}
		out = append(out, Payload{Key: key, JSON: string(b)})
	}
	return out
}

func mockBrowser(vm *goja.Runtime, pageURL string) {
	vm.Set("window", vm.GlobalObject())
	vm.Set("self", vm.GlobalObject())
	loc := map[string]interface{}{"href": pageURL}
	vm.Set("document", map[string]interface{}{"location": loc})
	vm.Set("location", loc)
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	vm.Set("console", map[string]interface{}{"log": noop, "error": noop, "warn": noop})
}

var standardGlobals = map[string]bool{
	"window": true, "self": true, "document": true, "location": true, "console": true,
	"Object": true, "Array": true, "String": true, "Number": true, "Boolean": true,
	"Date": true, "Math": true, "JSON": true, "RegExp": true, "Error": true,
	"Function": true, "parseInt": true, "parseFloat": true, "isNaN": true,
	"isFinite": true, "encodeURI": true, "decodeURI": true, "encodeURIComponent": true,
	"decodeURIComponent": true, "undefined": true, "NaN": true, "Infinity": true,
}

func isStandardGlobal(key string) bool {
	return standardGlobals[key]
}
