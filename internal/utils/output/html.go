package output

import (
	"bytes"
	"html/template"
	"io"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/law-makers/lotscout/pkg/models"
)

// Report is the data behind the HTML report
type Report struct {
	Title     string
	UpdatedAt time.Time
	LastError string
	Records   []*models.VehicleRecord
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"deref": func(v *int) string {
		if v == nil {
			return "unknown"
		}
		return optInt(v)
	},
	"money": func(v *int64) string {
		if v == nil {
			return "unknown"
		}
		return "$" + optInt64(v)
	},
	"first": func(images []string) string {
		if len(images) == 0 {
			return ""
		}
		return images[0]
	},
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; vertical-align: top; }
th { background: #f0f0f0; }
img { max-width: 160px; }
.error { color: #b00; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>{{len .Records}} lots{{if not .UpdatedAt.IsZero}}, updated {{.UpdatedAt.Format "2006-01-02 15:04:05 MST"}}{{end}}</p>
{{if .LastError}}<p class="error">Last refresh failed: {{.LastError}}</p>{{end}}
{{if .Records}}
<table>
<thead>
<tr><th>Photo</th><th>Lot</th><th>Year</th><th>Vehicle</th><th>Location</th><th>Odometer</th><th>Damage</th><th>Title</th><th>Current bid</th><th>Sale</th></tr>
</thead>
<tbody>
{{range .Records}}<tr>
<td>{{with first .Images}}<img src="{{.}}" alt="lot photo">{{end}}</td>
<td><a href="{{.URL}}">{{.LotID}}</a></td>
<td>{{deref .Year}}</td>
<td>{{.Make}} {{.Model}}</td>
<td>{{.LocationState}} ({{.LocationText}})</td>
<td>{{deref .Odometer}}</td>
<td>{{.Damage}}</td>
<td>{{.TitleStatus}}</td>
<td>{{money .CurrentBid}}</td>
<td>{{.SaleInfo}}</td>
</tr>
{{end}}</tbody>
</table>
{{else}}
<p>No lots matched.</p>
{{end}}
</body>
</html>
`))

// RenderHTML writes the report to w
func RenderHTML(w io.Writer, report Report) error {
	if report.Title == "" {
		report.Title = "Salvage lots"
	}
	return reportTemplate.Execute(w, report)
}

// SaveHTML renders the report to filepath
func SaveHTML(report Report, filepath string) error {
	var buf bytes.Buffer
	if err := RenderHTML(&buf, report); err != nil {
		return err
	}
	return os.WriteFile(filepath, buf.Bytes(), 0644)
}

// CleanHTML strips non-content elements and every attribute except link
// targets and image sources
func CleanHTML(htmlContent string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}

	doc.Find("head, script, style, link, meta, noscript, iframe, svg, form").Remove()

	doc.Find("*").Each(func(i int, s *goquery.Selection) {
		node := s.Nodes[0]
		var kept []html.Attribute
		for _, attr := range node.Attr {
			switch {
			case node.Data == "a" && attr.Key == "href":
				kept = append(kept, attr)
			case node.Data == "img" && (attr.Key == "src" || attr.Key == "alt"):
				kept = append(kept, attr)
			}
		}
		node.Attr = kept
	})

	out, err := doc.Html()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
