// internal/downloader/downloader.go
package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/lotscout/internal/ratelimit"
	"github.com/law-makers/lotscout/internal/retry"
	"github.com/law-makers/lotscout/internal/utils/headers"
)

// Result is the outcome of one photo download
type Result struct {
	LotID    string
	URL      string
	FilePath string
	Size     int64
	Err      error
	Duration time.Duration
}

// Options configure a Downloader
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
	Limiter   ratelimit.Limiter
}

// Downloader fetches lot photos to disk with streaming I/O
type Downloader struct {
	client  *http.Client
	headers map[string]string
	limiter ratelimit.Limiter
	retry   retry.Config
}

// New creates a Downloader. A nil client gets one bounded by opts.Timeout.
func New(client *http.Client, opts Options) *Downloader {
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	h := headers.Browser(opts.UserAgent, opts.Headers)
	h["Accept"] = "image/avif,image/webp,image/apng,image/*,*/*;q=0.8"

	cfg := retry.DefaultConfig()
	cfg.Operation = "photo download"
	cfg.InitialBackoff = 500 * time.Millisecond

	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	return &Downloader{client: client, headers: h, limiter: limiter, retry: cfg}
}

// Download saves one photo into dir as name plus the URL's extension
func (d *Downloader) Download(ctx context.Context, lotID, photoURL, dir, name string) *Result {
	start := time.Now()
	res := &Result{LotID: lotID, URL: photoURL}
	defer func() { res.Duration = time.Since(start) }()

	u, err := url.Parse(photoURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		res.Err = fmt.Errorf("invalid photo URL %q", photoURL)
		return res
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		res.Err = fmt.Errorf("failed to create output directory: %w", err)
		return res
	}
	res.FilePath = filepath.Join(dir, sanitizeFilename(name)+extension(u.Path))

	res.Err = retry.WithRetry(ctx, d.retry, func() error {
		if err := d.limiter.Wait(ctx, photoURL); err != nil {
			return err
		}
		n, err := d.fetch(ctx, photoURL, res.FilePath)
		res.Size = n
		return err
	})
	if res.Err != nil {
		os.Remove(res.FilePath)
		return res
	}

	log.Debug().
		Str("lot_id", lotID).
		Str("file", res.FilePath).
		Int64("bytes", res.Size).
		Msg("Photo saved")
	return res
}

func (d *Downloader) fetch(ctx context.Context, photoURL, filePath string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, photoURL, nil)
	if err != nil {
		return 0, err
	}
	headers.Apply(req, d.headers)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, retry.NewHTTPError(resp.StatusCode, resp.Status, photoURL)
	}

	out, err := os.Create(filePath)
	if err != nil {
		return 0, err
	}
	defer out.Close()
	return io.Copy(out, resp.Body)
}

// extension keeps common image extensions and defaults to .jpg
func extension(p string) string {
	switch ext := strings.ToLower(path.Ext(p)); ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".gif", ".avif":
		return ext
	}
	return ".jpg"
}

// sanitizeFilename prevents path traversal
func sanitizeFilename(input string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", "..", "_", ":", "_", "*", "_",
		"?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
	)
	input = strings.Trim(strings.TrimSpace(replacer.Replace(input)), ".")
	if input == "" {
		input = "photo"
	}
	if len(input) > 200 {
		input = input[:200]
	}
	return input
}
