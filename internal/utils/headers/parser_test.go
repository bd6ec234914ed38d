package headers

import (
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestParseHeaders(t *testing.T) {
	in := []string{"user-agent: Bot", "Accept: text/html", "BadHeader", ": empty", "X-Token: a:b"}
	out := ParseHeaders(in)
	expected := map[string]string{"User-Agent": "Bot", "Accept": "text/html", "X-Token": "a:b"}
	if !reflect.DeepEqual(out, expected) {
		t.Fatalf("unexpected parse result: %#v", out)
	}
}

func TestBrowser(t *testing.T) {
	h := Browser("", map[string]string{"accept-language": "de-DE"})
	if h["User-Agent"] != DefaultUserAgent {
		t.Errorf("Expected default user agent, got %s", h["User-Agent"])
	}
	if h["Accept-Language"] != "de-DE" {
		t.Errorf("Expected extra header to win, got %s", h["Accept-Language"])
	}

	req := httptest.NewRequest("GET", "https://www.copart.com/", nil)
	Apply(req, Browser("lotscout-test", nil))
	if got := req.Header.Get("User-Agent"); got != "lotscout-test" {
		t.Errorf("Expected lotscout-test, got %s", got)
	}
}
