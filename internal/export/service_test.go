package export

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luneo/canvas-engine/internal/geom"
	"github.com/luneo/canvas-engine/internal/storage"
)

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, data []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = map[string][]byte{}
	}
	c.data[key] = data
	c.sets++
	return nil
}

type countingRecorder struct {
	calls  int
	cached int
	failed int
}

func (r *countingRecorder) ObserveExport(_ string, _ time.Duration, cached bool, err error) {
	r.calls++
	if cached {
		r.cached++
	}
	if err != nil {
		r.failed++
	}
}

func TestService_CachesRenders(t *testing.T) {
	cache := &mapCache{}
	rec := &countingRecorder{}
	svc := NewService(newExporter(t), WithCache(cache, time.Minute), WithRecorder(rec))
	job := Job{Kind: KindImage, Scene: redSquareScene(t)}

	first, err := svc.Run(context.Background(), job, false)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, "image/png", first.ContentType)
	assert.True(t, strings.HasPrefix(first.ExportID, "exp_"))
	assert.Equal(t, len(first.Data), first.Size)

	second, err := svc.Run(context.Background(), job, false)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Data, second.Data)
	assert.NotEqual(t, first.ExportID, second.ExportID)
	assert.Equal(t, 1, cache.sets)

	_, err = svc.Run(context.Background(), Job{Kind: KindImage, Scene: redSquareScene(t), Options: Options{Area: &geom.Rect{Width: 0, Height: 1}}}, false)
	assert.Error(t, err)

	assert.Equal(t, 3, rec.calls)
	assert.Equal(t, 1, rec.cached)
	assert.Equal(t, 1, rec.failed)
}

func TestService_Upload(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewLocalStore(dir, "http://cdn.test")
	require.NoError(t, err)
	svc := NewService(newExporter(t), WithStore(store))

	res, err := svc.Run(context.Background(), Job{Kind: KindSVG, Scene: redSquareScene(t), DesignID: "design_1"}, true)
	require.NoError(t, err)
	assert.Equal(t, "exports/"+res.ExportID+".svg", res.Key)
	assert.Equal(t, "http://cdn.test/"+res.Key, res.URL)
	assert.Equal(t, "design_1", res.DesignID)

	stored, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(res.Key)))
	require.NoError(t, err)
	assert.Equal(t, res.Data, stored)

	_, err = NewService(newExporter(t)).Run(context.Background(), Job{Kind: KindImage, Scene: redSquareScene(t)}, true)
	assert.ErrorIs(t, err, ErrNoStore)
}

func TestService_Kinds(t *testing.T) {
	svc := NewService(newExporter(t))
	s := redSquareScene(t)

	tests := []struct {
		job  Job
		ext  string
		ct   string
		head string
	}{
		{Job{Kind: KindImage, Scene: s, Options: Options{Format: "JPG"}}, "jpg", "image/jpeg", "\xff\xd8"},
		{Job{Kind: KindPDF, Scene: s, Options: Options{Label: "Front"}}, "pdf", "application/pdf", "%PDF-"},
		{Job{Kind: KindPrint, Scene: s}, "pdf", "application/pdf", "%PDF-"},
		{Job{Kind: KindSVG, Scene: s}, "svg", "image/svg+xml", "<?xml"},
	}
	for _, tt := range tests {
		t.Run(string(tt.job.Kind)+"/"+tt.ext, func(t *testing.T) {
			res, err := svc.Run(context.Background(), tt.job, false)
			require.NoError(t, err)
			assert.Equal(t, tt.ext, res.Extension)
			assert.Equal(t, tt.ct, res.ContentType)
			assert.True(t, bytes.HasPrefix(res.Data, []byte(tt.head)))
		})
	}

	_, err := svc.Run(context.Background(), Job{Kind: "gif", Scene: s}, false)
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestCacheKey(t *testing.T) {
	s := redSquareScene(t)
	a, err := CacheKey(Job{Kind: KindImage, Scene: s})
	require.NoError(t, err)
	b, err := CacheKey(Job{Kind: KindImage, Scene: redSquareScene(t)})
	require.NoError(t, err)
	c, err := CacheKey(Job{Kind: KindImage, Scene: s, Options: Options{PixelRatio: 2}})
	require.NoError(t, err)
	d, err := CacheKey(Job{Kind: KindSVG, Scene: s})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.True(t, strings.HasPrefix(a, "export:"))
}

func newRouter(t *testing.T, opts ...ServiceOption) *mux.Router {
	t.Helper()
	h := NewHandler(NewService(newExporter(t), opts...), nil, nil)
	r := mux.NewRouter()
	r.HandleFunc("/api/export/{kind}", h.Export).Methods(http.MethodPost)
	return r
}

func exportRequest(t *testing.T, target string, job Job) *http.Request {
	t.Helper()
	body, err := json.Marshal(job)
	require.NoError(t, err)
	return httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
}

func TestHandler_Export(t *testing.T) {
	router := newRouter(t)

	t.Run("streams the file", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, exportRequest(t, "/api/export/image?name=my%20design", Job{Scene: redSquareScene(t)}))

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="my-design.png"`, rr.Header().Get("Content-Disposition"))
		assert.NotEmpty(t, rr.Header().Get("X-Export-Id"))
		assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("\x89PNG")))
	})

	t.Run("rejects unknown kind", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, exportRequest(t, "/api/export/gif", Job{Scene: redSquareScene(t)}))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("rejects missing scene", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, exportRequest(t, "/api/export/image", Job{}))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("rejects empty area", func(t *testing.T) {
		rr := httptest.NewRecorder()
		job := Job{Scene: redSquareScene(t), Options: Options{Area: &geom.Rect{Width: 0, Height: 10}}}
		router.ServeHTTP(rr, exportRequest(t, "/api/export/image", job))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "invalid export area")
	})

	t.Run("upload without store", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, exportRequest(t, "/api/export/svg?upload=true", Job{Scene: redSquareScene(t)}))
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})

	t.Run("bad json", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/export/image", strings.NewReader("{")))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestHandler_ExportUpload(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)
	router := newRouter(t, WithStore(store))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, exportRequest(t, "/api/export/pdf?upload=true", Job{Scene: redSquareScene(t)}))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var res Result
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.Equal(t, KindPDF, res.Kind)
	assert.Equal(t, "/"+res.Key, res.URL)
	assert.Positive(t, res.Size)

	data, _, err := store.Get(context.Background(), res.Key)
	require.NoError(t, err)
	assert.Len(t, data, res.Size)
}
