package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/lotscout/pkg/models"
)

func TestDownload_Success(t *testing.T) {
	var ua string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		w.Write([]byte("jpeg bytes"))
	}))
	defer server.Close()

	dir := t.TempDir()
	res := New(nil, Options{UserAgent: "Test/1.0"}).Download(context.Background(), "1", server.URL+"/lpp/1/1_1_ful.JPG", dir, "01")
	require.NoError(t, res.Err)

	assert.Equal(t, filepath.Join(dir, "01.jpg"), res.FilePath)
	assert.Equal(t, int64(10), res.Size)
	assert.Equal(t, "Test/1.0", ua)

	data, err := os.ReadFile(res.FilePath)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))
}

func TestDownload_NotFoundLeavesNoFile(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	dir := t.TempDir()
	res := New(nil, Options{}).Download(context.Background(), "1", server.URL+"/missing.png", dir, "01")
	require.Error(t, res.Err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	_, err := os.Stat(filepath.Join(dir, "01.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestDownload_InvalidURL(t *testing.T) {
	res := New(nil, Options{}).Download(context.Background(), "1", "ftp://example.com/a.jpg", t.TempDir(), "01")
	assert.Error(t, res.Err)
}

func TestSanitizeFilename_Security(t *testing.T) {
	for _, input := range []string{"../../etc/passwd", "/etc/shadow", "file:with:colons", "..", ""} {
		t.Run(input, func(t *testing.T) {
			result := sanitizeFilename(input)
			assert.NotContains(t, result, "/")
			assert.NotContains(t, result, "\\")
			assert.NotContains(t, result, "..")
			assert.NotEmpty(t, result)
		})
	}
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".png", extension("/a/b.PNG"))
	assert.Equal(t, ".jpg", extension("/a/b"))
	assert.Equal(t, ".jpg", extension("/a/b.php"))
}

func TestWorkerPool_DownloadRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "broken") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte(r.URL.Path))
	}))
	defer server.Close()

	a := models.NewVehicleRecord("Toyota", "Corolla")
	a.LotID = "11111111"
	a.Images = []string{server.URL + "/a1.jpg", server.URL + "/a2.jpg"}
	b := models.NewVehicleRecord("Toyota", "Corolla")
	b.LotID = "22222222"
	b.Images = []string{server.URL + "/broken.jpg"}

	dir := t.TempDir()
	results := NewWorkerPool(New(nil, Options{}), 3).DownloadRecords(context.Background(), []*models.VehicleRecord{a, nil, b}, dir)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.Equal(t, filepath.Join(dir, "11111111", "01.jpg"), results[0].FilePath)
	assert.NoError(t, results[1].Err)
	assert.Equal(t, filepath.Join(dir, "11111111", "02.jpg"), results[1].FilePath)
	assert.Error(t, results[2].Err)
	assert.Equal(t, "22222222", results[2].LotID)

	data, err := os.ReadFile(filepath.Join(dir, "11111111", "02.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "/a2.jpg", string(data))
}

func TestWorkerPool_Empty(t *testing.T) {
	results := NewWorkerPool(New(nil, Options{}), 0).DownloadRecords(context.Background(), nil, t.TempDir())
	assert.Empty(t, results)
}

func TestWorkerPool_Cancelled(t *testing.T) {
	r := models.NewVehicleRecord("Toyota", "Corolla")
	r.LotID = "1"
	r.Images = []string{"http://127.0.0.1:1/a.jpg"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := NewWorkerPool(New(nil, Options{}), 2).DownloadRecords(ctx, []*models.VehicleRecord{r}, t.TempDir())
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}
