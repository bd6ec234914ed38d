package engine

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/law-makers/lotscout/internal/ratelimit"
	"github.com/law-makers/lotscout/internal/utils/text"
	"github.com/law-makers/lotscout/pkg/models"
)

// DefaultTimeout bounds one navigation when the caller passes zero
const DefaultTimeout = 30 * time.Second

// Options are shared by every Renderer backend. Backends ignore what they
// cannot use.
type Options struct {
	UserAgent   string
	Headers     map[string]string
	Proxy       string
	Headless    bool
	BrowserPath string
	// Settle is how long a browser backend lets client-side scripts run
	// after the load event before capturing.
	Settle  time.Duration
	Limiter ratelimit.Limiter
}

// Pace waits for the limiter, if any
func (o Options) Pace(ctx context.Context, url string) error {
	if o.Limiter == nil {
		return nil
	}
	return o.Limiter.Wait(ctx, url)
}

// NewPage builds a Page from captured markup. visible may be empty, in
// which case the text is derived from the markup.
func NewPage(url, markup, visible string, timedOut bool, start time.Time) *models.Page {
	p := &models.Page{
		URL:       url,
		HTML:      markup,
		Text:      visible,
		TimedOut:  timedOut,
		FetchedAt: time.Now(),
		Elapsed:   time.Since(start),
	}
	if markup == "" {
		return p
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return p
	}
	p.Title = strings.TrimSpace(doc.Find("title").First().Text())
	if strings.TrimSpace(p.Text) == "" {
		p.Text = text.Document(doc)
	}
	return p
}

// Timeout returns d, or DefaultTimeout when d is not positive
func Timeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultTimeout
	}
	return d
}
