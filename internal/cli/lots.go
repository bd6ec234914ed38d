package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/law-makers/lotscout/internal/ui"
	"github.com/law-makers/lotscout/internal/utils/output"
)

var lotsOutput string

var lotsCmd = &cobra.Command{
	Use:   "lots <lot-id>...",
	Short: "Evaluate specific lots by id",
	Long: `Visits the detail page of each lot id, extracts and resolves it, and applies
the same eligibility rules as a search run. Lots that fail are omitted.`,
	Example: `  # Check two lots
  lotscout lots 45678901 1-45678902

  # Save the accepted ones as JSON
  lotscout lots 45678901 45678902 -o lots.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLots,
}

func init() {
	rootCmd.AddCommand(lotsCmd)
	lotsCmd.Flags().StringVarP(&lotsOutput, "output", "o", "", "File to save results to (.json, .csv, .html, .md)")
	addPhotoFlags(lotsCmd)
}

func runLots(cmd *cobra.Command, args []string) error {
	a := GetApp(cmd)
	if a == nil {
		return fmt.Errorf("application not initialized")
	}
	quiet, _ := cmd.Flags().GetBool("quiet")

	observe, finish := progressObserver(len(args), quiet)
	a.Orchestrator.SetObserver(observe)
	defer a.Orchestrator.SetObserver(nil)

	records, err := a.Orchestrator.ScrapeLots(cmd.Context(), args)
	finish()
	if err != nil {
		return fmt.Errorf("lots failed: %w", err)
	}

	if err := savePhotos(cmd.Context(), cmd, a, records); err != nil {
		return err
	}

	if lotsOutput != "" {
		if err := output.Save(records, lotsOutput); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("✓ Saved %d lots to %s", len(records), lotsOutput)))
		return nil
	}
	printRecords(records)
	return nil
}
