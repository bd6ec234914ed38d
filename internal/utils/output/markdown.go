package output

import (
	"bytes"
	"fmt"
	"os"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"

	urlutil "github.com/law-makers/lotscout/internal/utils/url"
)

const siteBase = "https://www.copart.com/"

// RenderMarkdown converts the HTML report to GitHub-flavored markdown
func RenderMarkdown(report Report) (string, error) {
	var buf bytes.Buffer
	if err := RenderHTML(&buf, report); err != nil {
		return "", err
	}

	cleaned, err := CleanHTML(buf.String())
	if err != nil {
		return "", err
	}

	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	converter.AddRules(md.Rule{
		Filter: []string{"a"},
		Replacement: func(content string, selec *goquery.Selection, opt *md.Options) *string {
			href, ok := selec.Attr("href")
			if !ok {
				return nil
			}
			str := fmt.Sprintf("[%s](%s)", selec.Text(), urlutil.ResolveURL(siteBase, href))
			return &str
		},
	})

	return converter.ConvertString(cleaned)
}

// SaveMarkdown writes the markdown report to filepath
func SaveMarkdown(report Report, filepath string) error {
	out, err := RenderMarkdown(report)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath, []byte(out), 0644)
}
