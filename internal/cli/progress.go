package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"github.com/law-makers/lotscout/internal/pipeline"
	"github.com/law-makers/lotscout/pkg/models"
)

// progressObserver draws a bar counting accepted lots when stderr is a
// terminal, and logs stage events otherwise.
func progressObserver(total int, quiet bool) (pipeline.Observer, func()) {
	if total <= 0 {
		total = -1
	}
	var bar *progressbar.ProgressBar
	if !quiet && isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription("Scanning"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	observe := func(ev pipeline.Event) {
		if bar == nil {
			if ev.State == pipeline.Discovering && ev.Candidates > 0 {
				log.Info().Str("query", ev.Query).Int("candidates", ev.Candidates).Msg("Candidates found")
			}
			return
		}
		switch ev.State {
		case pipeline.Discovering:
			bar.Describe("Searching " + ev.Query)
		case pipeline.Extracting, pipeline.LocationResolving:
			if ev.LotID != "" {
				bar.Describe("Lot " + ev.LotID)
			}
		}
		_ = bar.Set(ev.Accepted)
	}
	finish := func() {
		if bar != nil {
			_ = bar.Finish()
		}
	}
	return observe, finish
}

// printRecords writes a summary table to stdout
func printRecords(records []*models.VehicleRecord) {
	if len(records) == 0 {
		fmt.Println("No lots matched.")
		return
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "LOT\tYEAR\tSTATE\tODOMETER\tDAMAGE\tTITLE\tIMAGES\tURL")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.LotID, optional(r.Year), r.LocationState, optional(r.Odometer),
			r.Damage, truncate(r.TitleStatus, 24), len(r.Images), r.URL)
	}
	_ = tw.Flush()
	fmt.Printf("\n%d lots\n", len(records))
}

func optional(v *int) string {
	if v == nil {
		return models.Unknown
	}
	return fmt.Sprint(*v)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
