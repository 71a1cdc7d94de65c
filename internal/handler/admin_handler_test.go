package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/promptbridge/promptbridge/internal/cache"
	"github.com/promptbridge/promptbridge/internal/config"
	"github.com/promptbridge/promptbridge/internal/dispatch"
	"github.com/promptbridge/promptbridge/internal/domain"
)

// cacheRouter wires the cache admin routes over a real store in a temp dir.
func cacheRouter(t *testing.T, store *cache.Store) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Configuration{}
	d := dispatch.New(cfg)
	adminHandler := NewAdminHandler(cfg, d, store, dispatch.NewUsageTally(), slog.Default())

	router := gin.New()
	router.DELETE("/v1/cache", adminHandler.HandleCacheClear)
	router.DELETE("/v1/cache/:context", adminHandler.HandleCacheClearContext)
	router.DELETE("/v1/cache/:context/:key", adminHandler.HandleCacheDeleteEntry)
	return router
}

func deleteRequest(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, path, nil))
	return w
}

func removedCount(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	var body struct {
		Removed int `json:"removed"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return body.Removed
}

func TestHandleCacheDeleteEntry(t *testing.T) {
	store, err := cache.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	o := cache.KeyOptions{Provider: domain.ProviderAnthropic}
	if err := store.Set("hello", o, domain.Succeeded("answer", domain.Usage{}, nil), "D", 7); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	router := cacheRouter(t, store)

	key := cache.Fingerprint("hello", o)
	w := deleteRequest(router, "/v1/cache/7/"+key)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := removedCount(t, w); got != 1 {
		t.Errorf("removed = %d, want 1", got)
	}

	// Same entry again: nothing left to remove.
	if got := removedCount(t, deleteRequest(router, "/v1/cache/7/"+key)); got != 0 {
		t.Errorf("removed = %d, want 0 on a repeat delete", got)
	}
}

func TestHandleCacheDeleteEntryBadContext(t *testing.T) {
	store, err := cache.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	router := cacheRouter(t, store)

	w := deleteRequest(router, "/v1/cache/page/abc123")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for a non-numeric context", w.Code)
	}
}
