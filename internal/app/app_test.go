package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlamKhalidDev/product-search/internal/catalog"
	"github.com/AlamKhalidDev/product-search/internal/config"
	"github.com/AlamKhalidDev/product-search/internal/domain"
	"github.com/AlamKhalidDev/product-search/internal/engine/bleveindex"
	esengine "github.com/AlamKhalidDev/product-search/internal/engine/elasticsearch"
	"github.com/AlamKhalidDev/product-search/internal/engine/memory"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	for k, v := range env {
		t.Setenv(k, v)
	}
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestNewEngine(t *testing.T) {
	logger := newTestLogger()

	eng, err := NewEngine(testConfig(t, map[string]string{"SEARCH_ENGINE": "memory"}), logger)
	require.NoError(t, err)
	assert.IsType(t, &memory.Engine{}, eng)

	eng, err = NewEngine(testConfig(t, map[string]string{"SEARCH_ENGINE": "bleve"}), logger)
	require.NoError(t, err)
	assert.IsType(t, &bleveindex.Engine{}, eng)
	require.NoError(t, eng.Close())

	eng, err = NewEngine(testConfig(t, map[string]string{
		"SEARCH_ENGINE":       "elasticsearch",
		"ELASTICSEARCH_INDEX": "catalog",
	}), logger)
	require.NoError(t, err)
	require.IsType(t, &esengine.Engine{}, eng)
	assert.Equal(t, "catalog", eng.(*esengine.Engine).IndexName())

	_, err = NewEngine(&config.Config{SearchEngine: "solr"}, logger)
	assert.Error(t, err)
}

func TestOpenCatalog(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()

	cat, err := OpenCatalog(ctx, testConfig(t, nil), logger)
	require.NoError(t, err)
	assert.Nil(t, cat)
	assert.Nil(t, cat.Source())
	assert.NoError(t, cat.Close())

	path := filepath.Join(t.TempDir(), "products.csv")
	cat, err = OpenCatalog(ctx, testConfig(t, map[string]string{"CATALOG_CSV_PATH": path}), logger)
	require.NoError(t, err)
	require.NotNil(t, cat)
	assert.IsType(t, &catalog.FileSource{}, cat.Source())
	assert.NoError(t, cat.Ping(ctx))
}

func TestOpenCatalog_SQLiteRestagesExport(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "products.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("ID,TITLE\n1,Blue Shirt\n2,Red Shirt\n"), 0o600))

	cat, err := OpenCatalog(ctx, testConfig(t, map[string]string{
		"CATALOG_CSV_PATH":    csvPath,
		"CATALOG_SQLITE_PATH": filepath.Join(dir, "catalog.db"),
	}), newTestLogger())
	require.NoError(t, err)
	defer cat.Close()

	require.NotNil(t, cat.SQLite)
	assert.Same(t, cat.Store, cat.Source())
	require.NoError(t, cat.Ping(ctx))

	staged, err := cat.Restage(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, staged)

	products, err := cat.Source().ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Blue Shirt", products[0].Title)
}

func TestApp_WatchReloadsCatalog(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "products.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("ID,TITLE\n1,Blue Shirt\n"), 0o600))

	cfg := testConfig(t, map[string]string{
		"SEARCH_ENGINE":       "memory",
		"SEARCH_HTTP_PORT":    "18090",
		"CATALOG_CSV_PATH":    csvPath,
		"CATALOG_SQLITE_PATH": filepath.Join(dir, "catalog.db"),
		"CATALOG_WATCH":       "true",
	})
	a, err := NewApp(context.Background(), cfg, newTestLogger())
	require.NoError(t, err)
	require.NotNil(t, a.watcher)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(csvPath, []byte("ID,TITLE\n1,Blue Shirt\n2,Green Shirt\n"), 0o600))

	assert.Eventually(t, func() bool {
		res, err := a.service.Search(context.Background(), domain.SearchRequest{Text: "green", Page: 1, PageSize: 10})
		return err == nil && res.Total == 1
	}, 10*time.Second, 100*time.Millisecond)
}

func TestApp_ServesWithMemoryBackends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.csv")
	csv := "ID,TITLE,VENDOR,TAGS\n1,Blue Shirt,Acme,blue\n2,Red Shirt,Acme,red\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o600))

	cfg := testConfig(t, map[string]string{
		"SEARCH_ENGINE":      "memory",
		"CATALOG_CSV_PATH":   path,
		"SEARCH_RATE_POINTS": "100",
	})
	a, err := NewApp(context.Background(), cfg, newTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown() })

	n, err := a.service.Reindex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	for _, path := range []string{"/health/live", "/health/ready", "/api/v1/search?q=shirt", "/api/v1/autocomplete?q=blu"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestApp_RedisGovernor(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, map[string]string{
		"SEARCH_ENGINE":      "memory",
		"RATE_LIMIT_BACKEND": "redis",
		"REDIS_HOST":         mr.Host(),
		"REDIS_PORT":         mr.Port(),
		"SEARCH_RATE_POINTS": "1",
	})
	a, err := NewApp(context.Background(), cfg, newTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown() })

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	codes := []int{}
	for i := 0; i < 2; i++ {
		resp, err := http.Get(srv.URL + "/api/v1/search")
		require.NoError(t, err)
		_ = resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.NotEmpty(t, mr.Keys(), "counters live in redis")
}

func TestApp_RedisUnavailable(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"SEARCH_ENGINE":      "memory",
		"RATE_LIMIT_BACKEND": "redis",
		"REDIS_HOST":         "127.0.0.1",
		"REDIS_PORT":         "1",
	})
	_, err := NewApp(context.Background(), cfg, newTestLogger())
	assert.ErrorContains(t, err, "init redis governor")
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t, map[string]string{"SEARCH_ENGINE": "memory", "SEARCH_HTTP_PORT": "18089"})
	a, err := NewApp(context.Background(), cfg, newTestLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
