package cli

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/law-makers/lotscout/internal/ui"
	"github.com/law-makers/lotscout/internal/utils/output"
)

var runOutput string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the search pipeline once",
	Long: `Runs every configured search query, confirms each candidate lot, and prints
the accepted lots. With --output the result set is written to a file whose
format follows the extension: .json, .csv, .html, or .md.`,
	Example: `  # Default searches, up to 20 lots
  lotscout run

  # Save up to 50 lots as CSV
  lotscout run --limit 50 --output lots.csv

  # Trust allowed search-level locations and skip their detail pages
  lotscout run --detail-policy auto

  # Download every accepted lot's photos
  lotscout run --photos ./photos

  # Plain HTTP instead of a browser
  lotscout run --renderer static`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntP("limit", "n", 0, "Maximum number of lots (default from config)")
	runCmd.Flags().Int("per-query", 0, "Maximum lots per search query (default: --limit)")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "File to save results to (.json, .csv, .html, .md)")
	addPhotoFlags(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	a := GetApp(cmd)
	if a == nil {
		return fmt.Errorf("application not initialized")
	}
	quiet, _ := cmd.Flags().GetBool("quiet")

	observe, finish := progressObserver(a.Config.Limit, quiet)
	a.Orchestrator.SetObserver(observe)
	defer a.Orchestrator.SetObserver(nil)

	records, err := a.Store.Refresh(cmd.Context(), a.Config.Limit)
	finish()
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	if err := savePhotos(cmd.Context(), cmd, a, records); err != nil {
		return err
	}

	if runOutput != "" {
		if err := output.Save(records, runOutput); err != nil {
			return err
		}
		log.Info().Str("file", runOutput).Int("count", len(records)).Msg("Output saved")
		fmt.Println(ui.Success(fmt.Sprintf("✓ Saved %d lots to %s", len(records), runOutput)))
		return nil
	}

	printRecords(records)
	return nil
}
