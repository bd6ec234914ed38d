package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/law-makers/lotscout/internal/app"
	"github.com/law-makers/lotscout/internal/downloader"
	"github.com/law-makers/lotscout/internal/ui"
	"github.com/law-makers/lotscout/pkg/models"
)

func addPhotoFlags(cmd *cobra.Command) {
	cmd.Flags().String("photos", "", "Directory to download each lot's photos into")
	cmd.Flags().Int("photo-workers", downloader.DefaultConcurrency, "Concurrent photo downloads")
}

// savePhotos downloads photos when --photos is set
func savePhotos(ctx context.Context, cmd *cobra.Command, a *app.Application, records []*models.VehicleRecord) error {
	dir, _ := cmd.Flags().GetString("photos")
	if dir == "" || len(records) == 0 {
		return nil
	}
	workers, _ := cmd.Flags().GetInt("photo-workers")

	d := downloader.New(nil, downloader.Options{
		Timeout:   a.Config.NavigationTimeout,
		UserAgent: a.Config.UserAgent,
		Headers:   a.Config.Headers,
		Limiter:   a.RateLimiter,
	})
	results := downloader.NewWorkerPool(d, workers).DownloadRecords(ctx, records, dir)

	saved := 0
	for _, r := range results {
		if r.Err == nil {
			saved++
		}
	}
	msg := fmt.Sprintf("Saved %d of %d photos to %s", saved, len(results), dir)
	if saved < len(results) {
		fmt.Println(ui.Warn(msg))
	} else {
		fmt.Println(ui.Info(msg))
	}
	if saved == 0 && len(results) > 0 {
		return fmt.Errorf("no photos could be downloaded")
	}
	return nil
}
