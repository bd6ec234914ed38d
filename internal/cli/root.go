// internal/cli/root.go
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/law-makers/lotscout/internal/app"
	"github.com/law-makers/lotscout/internal/config"
	"github.com/law-makers/lotscout/internal/ui"
)

// Version is set at build time with -ldflags
var Version = "0.1.0"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lotscout",
	Short: "Find salvage Toyota Corollas on Copart",
	Long: `Lotscout renders Copart search results in a real browser, extracts every lot,
confirms each one against its detail page, and keeps the salvage-title cars
located in allowed states with mileage under the ceiling.

Results can be written to JSON, CSV, HTML, or Markdown, or served from a
small dashboard with a refresh endpoint.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with ctx. It is called by main.main().
func Execute(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Command failed")
		fmt.Fprintln(os.Stderr, ui.Error("Error: "+err.Error()))
		return 1
	}
	return 0
}

func init() {
	config.RegisterFlags(rootCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, _ []string) { ui.Help(os.Stdout, cmd) })
	rootCmd.SetUsageFunc(func(cmd *cobra.Command) error { return ui.Usage(os.Stderr, cmd) })

	// Initialize the application lazily so -h and --version never load config
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if GetApp(cmd) != nil {
			return nil
		}

		cfg, err := config.Load(cmd)
		if err != nil {
			return err
		}

		a, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		SetApp(cmd, a)
		log.Debug().Str("command", cmd.Name()).Msg("Configuration loaded")
		return nil
	}

	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		a := GetApp(cmd)
		if a == nil {
			return
		}
		_ = a.Close(context.Background())
		SetApp(cmd, nil)
	}
}
