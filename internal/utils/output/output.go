// Package output exports result sets as JSON, CSV, HTML or Markdown.
package output

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/law-makers/lotscout/pkg/models"
)

// Save picks the exporter from the file extension. Unknown extensions get JSON.
func Save(records []*models.VehicleRecord, path string) error {
	report := Report{UpdatedAt: time.Now(), Records: records}

	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		err = SaveCSV(records, path)
	case ".html", ".htm":
		err = SaveHTML(report, path)
	case ".md", ".markdown":
		err = SaveMarkdown(report, path)
	default:
		err = SaveJSON(records, path)
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
