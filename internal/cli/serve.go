package cli

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/law-makers/lotscout/internal/server"
	"github.com/law-makers/lotscout/internal/utils/output"
)

var (
	serveSeed      string
	serveOrigins   []string
	serveRefreshOn bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard and refresh API",
	Long: `Starts the HTTP dashboard. POST /api/refresh runs the pipeline, GET /api/data
returns the last good result set, and GET / renders it as an HTML report.
A failed refresh keeps the previous results.`,
	Example: `  # Listen on the default address (PORT is honoured)
  lotscout serve

  # Start from a previous export and refresh immediately
  lotscout serve --seed lots.json --refresh-on-start

  # Custom address
  lotscout serve --addr 127.0.0.1:9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default from config or PORT)")
	serveCmd.Flags().IntP("limit", "n", 0, "Default refresh limit (default from config)")
	serveCmd.Flags().StringVar(&serveSeed, "seed", "", "JSON export to load before serving")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "cors-origin", nil, "Allowed CORS origin, repeatable (default any)")
	serveCmd.Flags().BoolVar(&serveRefreshOn, "refresh-on-start", false, "Run a refresh in the background at startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	a := GetApp(cmd)
	if a == nil {
		return fmt.Errorf("application not initialized")
	}

	if serveSeed != "" {
		records, err := output.LoadJSON(serveSeed)
		if err != nil {
			return fmt.Errorf("failed to load seed: %w", err)
		}
		a.Store.Replace(records)
		log.Info().Str("file", serveSeed).Int("count", len(records)).Msg("Seed loaded")
	}

	srv := server.New(a.Store, server.Options{
		DefaultLimit: a.Config.Limit,
		Title:        fmt.Sprintf("Salvage %s %s lots", a.Config.Make, a.Config.Model),
		AllowOrigins: serveOrigins,
	})

	if serveRefreshOn {
		go func() {
			if _, err := a.Store.Refresh(cmd.Context(), a.Config.Limit); err != nil {
				log.Warn().Err(err).Msg("Startup refresh failed")
			}
		}()
	}

	return srv.Run(cmd.Context(), a.Config.ListenAddr)
}
