// internal/downloader/pool.go
package downloader

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/lotscout/pkg/models"
)

// DefaultConcurrency is the worker count when none is given
const DefaultConcurrency = 4

// WorkerPool downloads the photos of many lots concurrently. Photos are
// fetched after a run completes, so the pipeline itself stays single-worker.
type WorkerPool struct {
	downloader  *Downloader
	concurrency int
}

type job struct {
	lotID string
	url   string
	dir   string
	name  string
}

// NewWorkerPool wraps d with the given concurrency, clamped to 1..16
func NewWorkerPool(d *Downloader, concurrency int) *WorkerPool {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if concurrency > 16 {
		concurrency = 16
	}
	return &WorkerPool{downloader: d, concurrency: concurrency}
}

// DownloadRecords saves each record's images to dir/<lot_id>/NN.<ext>.
// Results come back in job order.
func (wp *WorkerPool) DownloadRecords(ctx context.Context, records []*models.VehicleRecord, dir string) []*Result {
	var jobs []job
	for _, r := range records {
		if r == nil || r.LotID == "" {
			continue
		}
		for i, u := range r.Images {
			jobs = append(jobs, job{
				lotID: r.LotID,
				url:   u,
				dir:   filepath.Join(dir, sanitizeFilename(r.LotID)),
				name:  fmt.Sprintf("%02d", i+1),
			})
		}
	}
	if len(jobs) == 0 {
		return []*Result{}
	}

	results := make([]*Result, len(jobs))
	indexes := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < min(wp.concurrency, len(jobs)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				j := jobs[i]
				results[i] = wp.downloader.Download(ctx, j.lotID, j.url, j.dir, j.name)
			}
		}()
	}

	for i := range jobs {
		if ctx.Err() != nil {
			results[i] = &Result{LotID: jobs[i].lotID, URL: jobs[i].url, Err: ctx.Err()}
			continue
		}
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	log.Info().Int("photos", len(results)).Int("failed", failed).Str("dir", dir).Msg("Photo download finished")
	return results
}
