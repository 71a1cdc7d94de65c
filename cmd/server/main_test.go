package main

import (
	"io"
	"log/slog"
	"testing"

	"github.com/promptbridge/promptbridge/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenCacheStoreWithDefaultPolicyOff(t *testing.T) {
	cfg := config.CacheConfig{Enabled: false, Dir: t.TempDir(), DefaultTTL: "D"}

	store, err := openCacheStore(cfg, testLogger())
	if err != nil {
		t.Fatalf("openCacheStore failed: %v", err)
	}
	if store == nil {
		t.Fatal("store must exist when a directory is configured, so per-call cache settings work with the default policy off")
	}
}

func TestOpenCacheStoreWithoutDir(t *testing.T) {
	store, err := openCacheStore(config.CacheConfig{Enabled: true}, testLogger())
	if err != nil {
		t.Fatalf("openCacheStore failed: %v", err)
	}
	if store != nil {
		t.Error("no directory means no store")
	}
}
