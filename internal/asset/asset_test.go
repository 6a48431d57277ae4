package asset

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luneo/canvas-engine/internal/document"
	"github.com/luneo/canvas-engine/internal/storage"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestResolver_Sources(t *testing.T) {
	ctx := context.Background()
	data := pngBytes(t, 40, 20)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/img.png" {
			_, _ = w.Write(data)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	store, err := storage.NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "assets/a.png", data, "image/png"))

	r := NewResolver(WithStore(store))

	sources := map[string]string{
		"data uri": "data:image/png;base64," + base64.StdEncoding.EncodeToString(data),
		"http":     srv.URL + "/img.png",
		"store":    "/assets/a.png",
		"bare key": "assets/a.png",
	}
	for name, src := range sources {
		t.Run(name, func(t *testing.T) {
			bm, err := r.Resolve(ctx, src)
			require.NoError(t, err)
			assert.Equal(t, "png", bm.Format)
			assert.Equal(t, 40, bm.Width)
			assert.Equal(t, 20, bm.Height)
			assert.Equal(t, int64(len(data)), bm.Size)
		})
	}
}

func TestResolver_Errors(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	r := NewResolver()
	for _, src := range []string{
		"",
		srv.URL + "/missing.png",
		"data:image/png;base64,bm90IGFuIGltYWdl",
		"data:broken",
		"/assets/a.png",
	} {
		_, err := r.Resolve(ctx, src)
		assert.ErrorIs(t, err, document.ErrImageLoad, src)
	}

	small := NewResolver(WithMaxBytes(10))
	big := pngBytes(t, 10, 10)
	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(big)
	}))
	defer srv2.Close()
	_, err := small.Resolve(ctx, srv2.URL)
	assert.ErrorIs(t, err, document.ErrImageLoad)
}

func upload(t *testing.T, h *Handler, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="logo.png"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/assets/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.Upload(rec, req)
	return rec
}

func TestHandler_UploadAndServe(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)
	h := NewHandler(store, 0, nil)

	rec := upload(t, h, "image/png", pngBytes(t, 64, 32))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 64, resp.Width)
	assert.Equal(t, 32, resp.Height)
	assert.Equal(t, "png", resp.Format)
	assert.Equal(t, "logo.png", resp.Name)
	assert.Equal(t, "/assets/"+resp.ID+".png", resp.Src)
	assert.Equal(t, resp.Src, resp.URL)

	get := httptest.NewRecorder()
	h.Serve(get, httptest.NewRequest(http.MethodGet, resp.Src, nil))
	require.Equal(t, http.StatusOK, get.Code)
	assert.Equal(t, "image/png", get.Header().Get("Content-Type"))
	assert.Contains(t, get.Header().Get("Cache-Control"), "immutable")

	bm, err := NewResolver(WithStore(store)).Resolve(context.Background(), resp.Src)
	require.NoError(t, err)
	assert.Equal(t, 64, bm.Width)
}

func TestHandler_Rejects(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)
	h := NewHandler(store, 0, nil)

	assert.Equal(t, http.StatusBadRequest, upload(t, h, "text/plain", []byte("hi")).Code)
	assert.Equal(t, http.StatusBadRequest, upload(t, h, "image/png", []byte("not png")).Code)

	tiny := NewHandler(store, 64, nil)
	assert.Equal(t, http.StatusBadRequest, upload(t, tiny, "image/png", pngBytes(t, 200, 200)).Code)

	rec := httptest.NewRecorder()
	h.Serve(rec, httptest.NewRequest(http.MethodGet, "/assets/missing.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.Serve(rec, httptest.NewRequest(http.MethodGet, "/private/x.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
