package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/lotscout/internal/store"
	"github.com/law-makers/lotscout/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeStore struct {
	mu        sync.Mutex
	limits    []int
	result    []*models.VehicleRecord
	err       error
	snap      store.Snapshot
	cancelled bool
}

func (f *fakeStore) Refresh(ctx context.Context, limit int) ([]*models.VehicleRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limits = append(f.limits, limit)
	f.cancelled = ctx.Err() != nil
	return f.result, f.err
}

func (f *fakeStore) Snapshot() store.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func record(id string) *models.VehicleRecord {
	r := models.NewVehicleRecord("Toyota", "Corolla")
	r.LotID = id
	r.URL = "https://www.copart.com/lot/" + id
	return r
}

func performRequest(h http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRefresh_Success(t *testing.T) {
	fs := &fakeStore{result: []*models.VehicleRecord{record("1"), record("2")}}
	h := New(fs, Options{DefaultLimit: 20}).Handler()

	rec := performRequest(h, http.MethodPost, "/api/refresh?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["count"])
	assert.Len(t, body["data"], 2)
	assert.Equal(t, []int{5}, fs.limits)
}

func TestRefresh_DefaultAndCappedLimit(t *testing.T) {
	fs := &fakeStore{}
	h := New(fs, Options{DefaultLimit: 20}).Handler()

	performRequest(h, http.MethodPost, "/api/refresh")
	performRequest(h, http.MethodPost, "/api/refresh?limit=5000")
	assert.Equal(t, []int{20, MaxRefreshLimit}, fs.limits)
}

func TestRefresh_BadLimit(t *testing.T) {
	fs := &fakeStore{}
	h := New(fs, Options{}).Handler()

	for _, q := range []string{"abc", "0", "-3"} {
		rec := performRequest(h, http.MethodPost, "/api/refresh?limit="+q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
	assert.Empty(t, fs.limits)
}

func TestRefresh_FailureReturnsLastGood(t *testing.T) {
	fs := &fakeStore{
		err:  errors.New("renderer unavailable"),
		snap: store.Snapshot{Records: []*models.VehicleRecord{record("7")}},
	}
	rec := performRequest(New(fs, Options{}).Handler(), http.MethodPost, "/api/refresh")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "renderer unavailable", body["error"])
	assert.Equal(t, float64(1), body["count"])
}

func TestRefresh_InProgress(t *testing.T) {
	fs := &fakeStore{err: store.ErrRefreshInProgress}
	rec := performRequest(New(fs, Options{}).Handler(), http.MethodPost, "/api/refresh")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRefresh_DetachedFromClient(t *testing.T) {
	fs := &fakeStore{}
	h := New(fs, Options{}).Handler()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/refresh", nil).WithContext(ctx)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.False(t, fs.cancelled)
}

func TestData(t *testing.T) {
	updated := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	fs := &fakeStore{snap: store.Snapshot{
		Records:   []*models.VehicleRecord{record("1")},
		UpdatedAt: updated,
		LastError: "timeout",
	}}
	rec := performRequest(New(fs, Options{}).Handler(), http.MethodGet, "/api/data")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, "2026-01-02T03:04:05Z", body["updated_at"])
	assert.Equal(t, "timeout", body["last_error"])
}

func TestData_Empty(t *testing.T) {
	fs := &fakeStore{snap: store.Snapshot{Records: []*models.VehicleRecord{}}}
	body := decode(t, performRequest(New(fs, Options{}).Handler(), http.MethodGet, "/api/data"))
	assert.Equal(t, float64(0), body["count"])
	assert.Nil(t, body["updated_at"])
	assert.Nil(t, body["last_error"])
}

func TestHealth(t *testing.T) {
	rec := performRequest(New(&fakeStore{}, Options{}).Handler(), http.MethodGet, "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestReport(t *testing.T) {
	fs := &fakeStore{snap: store.Snapshot{Records: []*models.VehicleRecord{record("12345678")}}}
	rec := performRequest(New(fs, Options{Title: "Corolla lots"}).Handler(), http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))
	assert.Contains(t, rec.Body.String(), "Corolla lots")
	assert.Contains(t, rec.Body.String(), "https://www.copart.com/lot/12345678")
}

func TestCORSPreflight(t *testing.T) {
	h := New(&fakeStore{}, Options{}).Handler()
	req := httptest.NewRequest(http.MethodOptions, "/api/data", nil)
	req.Header.Set("Origin", "http://dash.local")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/data", nil)
	req.Header.Set("Origin", "http://dash.local")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	s := New(&fakeStore{}, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
