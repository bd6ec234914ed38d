package urlutil

import "testing"

func TestValidate(t *testing.T) {
	valid := []string{
		"http://example.com",
		"https://www.copart.com/lotSearchResults?free=true&query=corolla",
	}
	for _, u := range valid {
		if err := ValidateURL(u); err != nil {
			t.Fatalf("expected valid, got error: %v", err)
		}
	}

	invalid := []string{"ftp://example.com", "//example.com", "http:///"}
	for _, u := range invalid {
		if err := ValidateURL(u); err == nil {
			t.Fatalf("expected invalid for %s", u)
		}
	}
}

func TestResolveURL(t *testing.T) {
	cases := []struct{ base, href, want string }{
		{"https://www.copart.com/lot/1", "/lot/2", "https://www.copart.com/lot/2"},
		{"https://www.copart.com/lot/1", "//cs.copart.com/a.jpg", "https://cs.copart.com/a.jpg"},
		{"", "//cs.copart.com/a.jpg", "https://cs.copart.com/a.jpg"},
		{"https://www.copart.com/", "https://x.test/y", "https://x.test/y"},
		{"", "/relative", "/relative"},
	}
	for _, tc := range cases {
		if got := ResolveURL(tc.base, tc.href); got != tc.want {
			t.Errorf("ResolveURL(%q, %q): Expected %s, got %s", tc.base, tc.href, tc.want, got)
		}
	}
}

func TestDropParamsAndWithoutQuery(t *testing.T) {
	got := DropParams("https://cs.copart.com/a.jpg?w=100&H=50&token=abc", "w", "h")
	if got != "https://cs.copart.com/a.jpg?token=abc" {
		t.Errorf("Expected token only, got %s", got)
	}
	if got := DropParams("https://cs.copart.com/a.jpg?w=1", "w"); got != "https://cs.copart.com/a.jpg" {
		t.Errorf("Expected bare URL, got %s", got)
	}
	if got := WithoutQuery("https://x.test/a.jpg?v=2#f"); got != "https://x.test/a.jpg" {
		t.Errorf("Expected query stripped, got %s", got)
	}
}
