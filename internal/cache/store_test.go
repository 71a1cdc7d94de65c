package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/promptbridge/promptbridge/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return s
}

func sampleResult() domain.Result {
	return domain.Result{
		Success: true,
		Content: "cached answer",
		Message: "OK",
		Usage:   domain.Usage{InputTokens: 10, OutputTokens: 15, TotalTokens: 25},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	s := newTestStore(t)
	o := KeyOptions{Provider: domain.ProviderAnthropic, Model: "m"}

	if _, hit := s.Get("hello", o, 0); hit {
		t.Fatal("expected miss on empty store")
	}

	if err := s.Set("hello", o, sampleResult(), "D", 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, hit := s.Get("hello", o, 0)
	if !hit {
		t.Fatal("expected hit after Set")
	}
	if got.Content != "cached answer" {
		t.Errorf("Content = %q, want %q", got.Content, "cached answer")
	}
	if !got.Cached {
		t.Error("returned result should carry Cached=true")
	}
	if got.Usage.TotalTokens != 25 {
		t.Errorf("TotalTokens = %d, want 25", got.Usage.TotalTokens)
	}
}

func TestStoreContextPartitions(t *testing.T) {
	s := newTestStore(t)
	o := KeyOptions{Provider: domain.ProviderAnthropic}

	if err := s.Set("hello", o, sampleResult(), "D", 5); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, hit := s.Get("hello", o, 6); hit {
		t.Error("entry in context 5 must not be visible from context 6")
	}
	if _, hit := s.Get("hello", o, 0); hit {
		t.Error("entry in context 5 must not be visible from the global context")
	}
	if _, hit := s.Get("hello", o, 5); !hit {
		t.Error("entry must be visible from its own context")
	}
}

func TestStoreExpiredEntryPurgedOnGet(t *testing.T) {
	s := newTestStore(t)
	o := KeyOptions{Provider: domain.ProviderAnthropic}

	if err := s.Set("hello", o, sampleResult(), "D", 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Rewrite the entry with an expiry in the past.
	key := Fingerprint("hello", o)
	path := s.entryPath(0, key)
	e, err := readEntry(path)
	if err != nil {
		t.Fatalf("readEntry failed: %v", err)
	}
	e.ExpiresAt = time.Now().Unix() - 10
	raw, _ := json.Marshal(e)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}

	if _, hit := s.Get("hello", o, 0); hit {
		t.Error("expired entry must not be returned")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expired entry should be deleted on detection")
	}
}

func TestStoreInvalidEntryPurgedOnGet(t *testing.T) {
	s := newTestStore(t)
	o := KeyOptions{Provider: domain.ProviderAnthropic}
	key := Fingerprint("hello", o)

	partition := s.partitionPath(0)
	if err := os.MkdirAll(partition, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	path := filepath.Join(partition, key+".json")
	if err := os.WriteFile(path, []byte("not json at all"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if _, hit := s.Get("hello", o, 0); hit {
		t.Error("corrupt entry must not be returned")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("corrupt entry should be deleted on detection")
	}
}

func TestStoreSweepExpired(t *testing.T) {
	s := newTestStore(t)
	o1 := KeyOptions{Provider: domain.ProviderAnthropic}
	o2 := KeyOptions{Provider: domain.ProviderOpenAI}

	if err := s.Set("fresh", o1, sampleResult(), "D", 1); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set("stale", o2, sampleResult(), "D", 2); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Backdate the second entry.
	stalePath := s.entryPath(2, Fingerprint("stale", o2))
	e, err := readEntry(stalePath)
	if err != nil {
		t.Fatalf("readEntry failed: %v", err)
	}
	e.ExpiresAt = time.Now().Unix() - 10
	raw, _ := json.Marshal(e)
	if err := os.WriteFile(stalePath, raw, 0o644); err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}

	st := s.Stats()
	if st.Entries != 2 || st.Expired != 1 {
		t.Fatalf("Stats before sweep = %+v, want 2 entries with 1 expired", st)
	}

	if removed := s.SweepExpired(); removed != 1 {
		t.Errorf("SweepExpired removed %d, want 1", removed)
	}

	st = s.Stats()
	if st.Entries != 1 || st.Expired != 0 {
		t.Errorf("Stats after sweep = %+v, want 1 entry with 0 expired", st)
	}
	if st.Partitions != 1 {
		t.Errorf("emptied partition should be removed, got %d partitions", st.Partitions)
	}
}

func TestStoreClearContext(t *testing.T) {
	s := newTestStore(t)
	o := KeyOptions{Provider: domain.ProviderAnthropic}

	if err := s.Set("a", o, sampleResult(), "D", 7); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set("b", o, sampleResult(), "D", 7); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set("c", o, sampleResult(), "D", 8); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if removed := s.ClearContext(7); removed != 2 {
		t.Errorf("ClearContext(7) removed %d, want 2", removed)
	}
	if _, hit := s.Get("c", o, 8); !hit {
		t.Error("clearing context 7 must not touch context 8")
	}
}

func TestStoreClearAll(t *testing.T) {
	s := newTestStore(t)
	o := KeyOptions{Provider: domain.ProviderAnthropic}

	for i, msg := range []string{"a", "b", "c"} {
		if err := s.Set(msg, o, sampleResult(), "D", i); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	if removed := s.ClearAll(); removed != 3 {
		t.Errorf("ClearAll removed %d, want 3", removed)
	}
	if st := s.Stats(); st.Entries != 0 {
		t.Errorf("entries after ClearAll = %d, want 0", st.Entries)
	}
}

func TestStoreDelete(t *testing.T) {
	s := newTestStore(t)
	o := KeyOptions{Provider: domain.ProviderAnthropic}

	if err := s.Set("hello", o, sampleResult(), "D", 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	key := Fingerprint("hello", o)
	if removed := s.Delete(0, key); removed != 1 {
		t.Errorf("Delete removed %d, want 1 for an existing entry", removed)
	}
	if removed := s.Delete(0, key); removed != 0 {
		t.Errorf("Delete removed %d, want 0 for a missing entry", removed)
	}
}

func TestStoreTTLSpecResolvedOnWrite(t *testing.T) {
	s := newTestStore(t)
	o := KeyOptions{Provider: domain.ProviderAnthropic}

	before := time.Now().Unix()
	if err := s.Set("hello", o, sampleResult(), "2W", 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	e, err := readEntry(s.entryPath(0, Fingerprint("hello", o)))
	if err != nil {
		t.Fatalf("readEntry failed: %v", err)
	}
	wantMin := before + 1209600
	if e.ExpiresAt < wantMin || e.ExpiresAt > wantMin+5 {
		t.Errorf("ExpiresAt = %d, want about %d", e.ExpiresAt, wantMin)
	}
	if e.TTLSpec != "2W" {
		t.Errorf("TTLSpec = %q, want %q", e.TTLSpec, "2W")
	}
}
