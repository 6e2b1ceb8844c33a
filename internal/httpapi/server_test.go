package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/bazaar/internal/feed"
	"github.com/mesh-intelligence/bazaar/internal/sqlite"
	"github.com/mesh-intelligence/bazaar/internal/uploads"
	"github.com/mesh-intelligence/bazaar/pkg/types"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fixture struct {
	server  *Server
	backend *sqlite.Backend
	uploads *uploads.Store
}

func setupServer(t *testing.T, opts Options) *fixture {
	t.Helper()
	dir := t.TempDir()

	backend := sqlite.NewBackend()
	require.NoError(t, backend.Attach(types.Config{DBPath: filepath.Join(dir, "market.db")}))
	t.Cleanup(func() { backend.Detach() })

	store, err := uploads.NewStore(filepath.Join(dir, "uploads"), 1<<10)
	require.NoError(t, err)
	opts.Uploads = store

	return &fixture{server: New(backend, opts), backend: backend, uploads: store}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *fixture) get(path string) *httptest.ResponseRecorder {
	return f.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (f *fixture) postJSON(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return f.do(req)
}

func (f *fixture) postMultipart(t *testing.T, fields map[string]string, image []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if image != nil {
		part, err := w.CreateFormFile("image", "upload.bin")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/items", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return f.do(req)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type created struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (f *fixture) uploadedFiles(t *testing.T) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(f.uploads.Dir())
	require.NoError(t, err)
	return entries
}

func TestTagsEndpoint(t *testing.T) {
	f := setupServer(t, Options{})

	rec := f.get("/api/tags")
	require.Equal(t, http.StatusOK, rec.Code)
	tags := decode[[]types.Tag](t, rec)
	require.Len(t, tags, len(types.DefaultTags))
	for i, tag := range tags {
		assert.Equal(t, int64(i+1), tag.ID)
		assert.Equal(t, types.DefaultTags[i], tag.Name)
	}
}

func TestItemsEndpoints(t *testing.T) {
	tests := []struct {
		name  string
		check func(t *testing.T, f *fixture)
	}{
		{
			name: "empty market lists an empty array",
			check: func(t *testing.T, f *fixture) {
				rec := f.get("/api/items")
				require.Equal(t, http.StatusOK, rec.Code)
				assert.JSONEq(t, "[]", rec.Body.String())
			},
		},
		{
			name: "multipart create then filtered listing",
			check: func(t *testing.T, f *fixture) {
				rec := f.postMultipart(t, map[string]string{"name": "  Sword ", "tags": "2,1"}, nil)
				require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
				body := decode[created](t, rec)
				assert.Equal(t, "Item added successfully", body.Message)
				assert.Positive(t, body.ID)

				f.postMultipart(t, map[string]string{"name": "Herb", "tags": "4"}, nil)

				rec = f.get("/api/items?tags=1,3")
				require.Equal(t, http.StatusOK, rec.Code)
				items := decode[[]types.ItemSummary](t, rec)
				require.Len(t, items, 1)
				assert.Equal(t, "Sword", items[0].Name)
				require.NotNil(t, items[0].Tags)
				assert.Equal(t, "weapon,armor", *items[0].Tags)
				assert.Nil(t, items[0].AveragePrice)
				assert.Equal(t, int64(0), items[0].TradeCount)

				rec = f.get("/api/items?tags=")
				assert.Len(t, decode[[]types.ItemSummary](t, rec), 2)
			},
		},
		{
			name: "item rows carry null statistics as JSON null",
			check: func(t *testing.T, f *fixture) {
				f.postJSON("/api/items", `{"name":"Ether"}`)
				rec := f.get("/api/items")
				var rows []map[string]any
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
				require.Len(t, rows, 1)
				for _, key := range []string{"image_url", "average_price", "min_price", "max_price", "tags"} {
					v, ok := rows[0][key]
					assert.True(t, ok, key)
					assert.Nil(t, v, key)
				}
				assert.Equal(t, float64(0), rows[0]["trade_count"])
			},
		},
		{
			name: "json create",
			check: func(t *testing.T, f *fixture) {
				rec := f.postJSON("/api/items", `{"name":"Ether","tags":[5]}`)
				require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

				items := decode[[]types.ItemSummary](t, f.get("/api/items?tags=5"))
				require.Len(t, items, 1)
				assert.Equal(t, "Ether", items[0].Name)
			},
		},
		{
			name: "urlencoded create",
			check: func(t *testing.T, f *fixture) {
				form := url.Values{"name": {"Elixir"}, "tags": {"7"}}
				req := httptest.NewRequest(http.MethodPost, "/api/items", strings.NewReader(form.Encode()))
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
				rec := f.do(req)
				require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
				assert.Len(t, decode[[]types.ItemSummary](t, f.get("/api/items?tags=7")), 1)
			},
		},
		{
			name: "blank name is a 400",
			check: func(t *testing.T, f *fixture) {
				rec := f.postMultipart(t, map[string]string{"name": "   "}, pngHeader)
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.Equal(t, "Item name is required.", decode[errorBody](t, rec).Error)
				assert.Empty(t, f.uploadedFiles(t))

				rec = f.postJSON("/api/items", `{}`)
				assert.Equal(t, http.StatusBadRequest, rec.Code)
			},
		},
		{
			name: "duplicate name is a 409",
			check: func(t *testing.T, f *fixture) {
				require.Equal(t, http.StatusCreated, f.postJSON("/api/items", `{"name":"Potion"}`).Code)
				rec := f.postMultipart(t, map[string]string{"name": "Potion"}, nil)
				assert.Equal(t, http.StatusConflict, rec.Code)
				assert.Equal(t, "This item already exists.", decode[errorBody](t, rec).Error)
				assert.Len(t, decode[[]types.ItemSummary](t, f.get("/api/items")), 1)
			},
		},
		{
			name: "image upload is stored and served",
			check: func(t *testing.T, f *fixture) {
				rec := f.postMultipart(t, map[string]string{"name": "Shield"}, pngHeader)
				require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
				id := decode[created](t, rec).ID

				detail := decode[types.ItemDetail](t, f.get(fmt.Sprintf("/api/items/%d", id)))
				require.NotNil(t, detail.Details.ImageURL)
				imageURL := *detail.Details.ImageURL
				assert.True(t, strings.HasPrefix(imageURL, "/uploads/"), imageURL)

				rec = f.get(imageURL)
				require.Equal(t, http.StatusOK, rec.Code)
				assert.Equal(t, pngHeader, rec.Body.Bytes())
			},
		},
		{
			name: "non-image upload is a 400 and creates nothing",
			check: func(t *testing.T, f *fixture) {
				rec := f.postMultipart(t, map[string]string{"name": "Scroll"}, []byte("plain text"))
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.Empty(t, f.uploadedFiles(t))
				assert.JSONEq(t, "[]", f.get("/api/items").Body.String())
			},
		},
		{
			name: "oversized upload is a 400",
			check: func(t *testing.T, f *fixture) {
				big := append(append([]byte{}, pngHeader...), make([]byte, 2<<10)...)
				rec := f.postMultipart(t, map[string]string{"name": "Boulder"}, big)
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.Empty(t, f.uploadedFiles(t))
			},
		},
		{
			name: "body over the request limit is an upload error",
			check: func(t *testing.T, f *fixture) {
				huge := append(append([]byte{}, pngHeader...), make([]byte, 2<<20)...)
				rec := f.postMultipart(t, map[string]string{"name": "Boulder"}, huge)
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.Equal(t, "Invalid image upload.", decode[errorBody](t, rec).Error)
				assert.Empty(t, f.uploadedFiles(t))
				assert.JSONEq(t, "[]", f.get("/api/items").Body.String())
			},
		},
		{
			name: "failed insert removes the stored image",
			check: func(t *testing.T, f *fixture) {
				require.Equal(t, http.StatusCreated, f.postJSON("/api/items", `{"name":"Potion"}`).Code)
				rec := f.postMultipart(t, map[string]string{"name": "Potion"}, pngHeader)
				assert.Equal(t, http.StatusConflict, rec.Code)
				assert.Empty(t, f.uploadedFiles(t))
			},
		},
		{
			name: "unknown or malformed item id is a 404",
			check: func(t *testing.T, f *fixture) {
				for _, path := range []string{"/api/items/999", "/api/items/abc", "/api/items/-1"} {
					rec := f.get(path)
					assert.Equal(t, http.StatusNotFound, rec.Code, path)
					assert.Equal(t, "Item not found", decode[errorBody](t, rec).Error, path)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, setupServer(t, Options{}))
		})
	}
}

func TestPricesEndpoint(t *testing.T) {
	f := setupServer(t, Options{})
	itemID := decode[created](t, f.postJSON("/api/items", `{"name":"Potion"}`)).ID

	t.Run("records observations", func(t *testing.T) {
		for _, p := range []int64{100, 200} {
			rec := f.postJSON("/api/prices", fmt.Sprintf(`{"itemId":%d,"price":%d}`, itemID, p))
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
			body := decode[created](t, rec)
			assert.Equal(t, "Success", body.Message)
			assert.Positive(t, body.ID)
		}

		detail := decode[types.ItemDetail](t, f.get(fmt.Sprintf("/api/items/%d", itemID)))
		assert.Equal(t, int64(2), detail.Details.TradeCount)
		require.NotNil(t, detail.Details.AveragePrice)
		assert.InDelta(t, 150.0, *detail.Details.AveragePrice, 1e-9)
		require.Len(t, detail.History, 2)
		assert.Equal(t, int64(200), detail.History[0].Price)
	})

	invalid := map[string]string{
		"missing item id": `{"price":10}`,
		"missing price":   fmt.Sprintf(`{"itemId":%d}`, itemID),
		"zero price":      fmt.Sprintf(`{"itemId":%d,"price":0}`, itemID),
		"negative price":  fmt.Sprintf(`{"itemId":%d,"price":-5}`, itemID),
		"fractional":      fmt.Sprintf(`{"itemId":%d,"price":1.5}`, itemID),
		"string price":    fmt.Sprintf(`{"itemId":%d,"price":"10"}`, itemID),
		"malformed json":  `{"itemId":`,
	}
	for name, body := range invalid {
		t.Run(name, func(t *testing.T) {
			rec := f.postJSON("/api/prices", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "Invalid input data.", decode[errorBody](t, rec).Error)
		})
	}

	t.Run("invalid requests insert nothing", func(t *testing.T) {
		detail := decode[types.ItemDetail](t, f.get(fmt.Sprintf("/api/items/%d", itemID)))
		assert.Equal(t, int64(2), detail.Details.TradeCount)
	})

	t.Run("unknown item is a server error", func(t *testing.T) {
		rec := f.postJSON("/api/prices", `{"itemId":4242,"price":10}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotEmpty(t, decode[errorBody](t, rec).Error)
	})
}

// stubMarket fails the operations the tests exercise.
type stubMarket struct {
	types.Market
	err error
}

func (s stubMarket) Ping(context.Context) error { return s.err }

func (s stubMarket) ListTags(context.Context) ([]types.Tag, error) { return nil, s.err }

func (s stubMarket) ListItems(context.Context, types.ItemFilter) ([]types.ItemSummary, error) {
	return nil, s.err
}

func (s stubMarket) GetItemDetail(context.Context, int64) (*types.ItemDetail, error) {
	return nil, s.err
}

func TestStoreFailures(t *testing.T) {
	storeErr := fmt.Errorf("querying: %w: disk I/O error", types.ErrStore)
	srv := New(stubMarket{err: storeErr}, Options{})

	for _, path := range []string{"/api/tags", "/api/items", "/api/items/1"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code, path)
		assert.Contains(t, decode[errorBody](t, rec).Error, "disk I/O error", path)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(fmt.Errorf("x: %w", types.ErrValidation)))
	assert.Equal(t, http.StatusConflict, statusFor(fmt.Errorf("x: %w", types.ErrConflict)))
	assert.Equal(t, http.StatusNotFound, statusFor(fmt.Errorf("x: %w", types.ErrNotFound)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(types.ErrStore))
	assert.Equal(t, http.StatusInternalServerError, statusFor(io.ErrUnexpectedEOF))
}

func TestHealth(t *testing.T) {
	f := setupServer(t, Options{})
	rec := f.get("/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCORS(t *testing.T) {
	t.Run("wildcard", func(t *testing.T) {
		f := setupServer(t, Options{AllowedOrigins: []string{"*"}})
		req := httptest.NewRequest(http.MethodOptions, "/api/items", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rec := f.do(req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("allowlist", func(t *testing.T) {
		f := setupServer(t, Options{AllowedOrigins: []string{"http://market.example"}})

		req := httptest.NewRequest(http.MethodGet, "/api/tags", nil)
		req.Header.Set("Origin", "http://market.example")
		rec := f.do(req)
		assert.Equal(t, "http://market.example", rec.Header().Get("Access-Control-Allow-Origin"))

		req = httptest.NewRequest(http.MethodGet, "/api/tags", nil)
		req.Header.Set("Origin", "http://evil.example")
		rec = f.do(req)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestWebDir(t *testing.T) {
	web := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(web, "index.html"), []byte("<html>market</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(web, "app.js"), []byte("console.log(1)"), 0o644))

	f := setupServer(t, Options{WebDir: web})

	rec := f.get("/app.js")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log(1)", rec.Body.String())

	rec = f.get("/items/5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html>market</html>", rec.Body.String())

	rec = f.get("/../../etc/passwd")
	assert.Equal(t, "<html>market</html>", rec.Body.String())

	rec = f.get("/api/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", decode[errorBody](t, rec).Error)
}

func TestNoWebDir(t *testing.T) {
	f := setupServer(t, Options{})
	rec := f.get("/anything")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFeedPublishesMutations(t *testing.T) {
	hub := feed.NewHub(nil, []string{"*"})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	f := setupServer(t, Options{Feed: hub})
	ts := httptest.NewServer(f.server.Handler())
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/feed", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	itemID := decode[created](t, f.postJSON("/api/items", `{"name":"Potion"}`)).ID
	priceID := decode[created](t, f.postJSON("/api/prices", fmt.Sprintf(`{"itemId":%d,"price":25}`, itemID))).ID
	f.postJSON("/api/prices", fmt.Sprintf(`{"itemId":%d,"price":0}`, itemID))

	read := func() feed.Event {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var ev feed.Event
		require.NoError(t, conn.ReadJSON(&ev))
		return ev
	}

	ev := read()
	assert.Equal(t, feed.TypeItemAdded, ev.Type)
	assert.Equal(t, itemID, ev.ItemID)
	assert.Equal(t, "Potion", ev.Name)

	ev = read()
	assert.Equal(t, feed.TypePriceAdded, ev.Type)
	assert.Equal(t, priceID, ev.PriceID)
	assert.Equal(t, int64(25), ev.Price)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	f := setupServer(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.server.ListenAndServe(ctx, "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
