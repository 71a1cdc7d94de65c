package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/promptbridge/promptbridge/internal/domain"
)

// Entry is one persisted cache record: the fingerprint key, timing metadata,
// the original TTL specification (kept for display) and the stored result.
type Entry struct {
	Key       string          `json:"key"`
	CreatedAt int64           `json:"created_at"`
	ExpiresAt int64           `json:"expires_at"`
	TTLSpec   string          `json:"ttl_spec"`
	Result    json.RawMessage `json:"result"`
}

// Expired reports whether the entry's absolute expiry has passed.
func (e *Entry) Expired(now time.Time) bool {
	return now.Unix() > e.ExpiresAt
}

// Stats summarizes the current state of the store.
type Stats struct {
	Entries    int   `json:"entries"`
	Bytes      int64 `json:"bytes"`
	Partitions int   `json:"partitions"`
	Expired    int   `json:"expired"`
}

// Store is a file-per-entry response cache rooted at a directory.
//
// Layout: <dir>/<contextID>/<fingerprint>.json. The store is self-healing:
// a structurally invalid or expired entry is purged on detection and never
// returned, so the periodic sweep only reclaims space, it is not required
// for correctness. Concurrent readers and writers are tolerated with
// last-writer-wins semantics per fingerprint+context.
type Store struct {
	dir    string
	logger *slog.Logger

	// mu serializes bulk operations (sweep, clear) against each other.
	// Individual get/set calls are single-file operations and stay lock-free.
	mu sync.Mutex
}

// StoreOption is a functional option for configuring a Store.
type StoreOption func(*Store)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a Store rooted at dir, creating the directory if needed.
func NewStore(dir string, opts ...StoreOption) (*Store, error) {
	if dir == "" {
		return nil, errors.New("cache: directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	s := &Store{
		dir:    dir,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Get looks up a cached result for the message/options fingerprint within
// the given context partition. The returned result carries Cached=true.
// Invalid and expired entries are deleted on detection and reported absent.
func (s *Store) Get(message string, o KeyOptions, contextID int) (domain.Result, bool) {
	key := Fingerprint(message, o)
	path := s.entryPath(contextID, key)

	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Result{}, false
	}

	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil || e.Key == "" || len(e.Result) == 0 {
		// Structurally invalid entry: purge, treat as absent.
		s.logger.Warn("cache entry invalid, removing",
			slog.String("key", key),
			slog.Int("context", contextID),
		)
		os.Remove(path)
		return domain.Result{}, false
	}

	if e.Expired(time.Now()) {
		// Expiry is routine, not an error.
		s.logger.Debug("cache entry expired",
			slog.String("key", key),
			slog.Int("context", contextID),
		)
		os.Remove(path)
		return domain.Result{}, false
	}

	var res domain.Result
	if err := json.Unmarshal(e.Result, &res); err != nil {
		s.logger.Warn("cache entry result invalid, removing",
			slog.String("key", key),
			slog.Int("context", contextID),
		)
		os.Remove(path)
		return domain.Result{}, false
	}

	res.Cached = true
	return res, true
}

// Set writes a result under the message/options fingerprint with the given
// TTL specification. Failure is non-fatal to callers; caching is best-effort.
func (s *Store) Set(message string, o KeyOptions, res domain.Result, ttlSpec string, contextID int) error {
	key := Fingerprint(message, o)

	partition := s.partitionPath(contextID)
	if err := os.MkdirAll(partition, 0o755); err != nil {
		return err
	}

	resRaw, err := json.Marshal(res)
	if err != nil {
		return err
	}

	now := time.Now()
	e := Entry{
		Key:       key,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Unix() + int64(ParseTTL(ttlSpec)),
		TTLSpec:   ttlSpec,
		Result:    resRaw,
	}

	raw, err := json.Marshal(&e)
	if err != nil {
		return err
	}
	return os.WriteFile(s.entryPath(contextID, key), raw, 0o644)
}

// Delete removes a single entry by key. Returns the number of entries
// removed, 0 or 1, matching the other removal operations.
func (s *Store) Delete(contextID int, key string) int {
	if os.Remove(s.entryPath(contextID, key)) == nil {
		return 1
	}
	return 0
}

// ClearContext removes every entry in one context partition and the
// partition directory itself. Returns the number of entries removed.
func (s *Store) ClearContext(contextID int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	partition := s.partitionPath(contextID)
	entries, err := os.ReadDir(partition)
	if err != nil {
		return 0
	}

	removed := 0
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		if os.Remove(filepath.Join(partition, de.Name())) == nil {
			removed++
		}
	}
	os.Remove(partition)
	return removed
}

// ClearAll removes every entry in every partition. Returns the count removed.
func (s *Store) ClearAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, partition := range s.partitions() {
		entries, err := os.ReadDir(partition)
		if err != nil {
			continue
		}
		for _, de := range entries {
			if de.IsDir() {
				continue
			}
			if os.Remove(filepath.Join(partition, de.Name())) == nil {
				removed++
			}
		}
		os.Remove(partition)
	}
	return removed
}

// SweepExpired scans all partitions, removes every expired entry and any
// partition left empty, and returns the count removed. Designed to run on a
// periodic schedule independent of reads.
func (s *Store) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0

	for _, partition := range s.partitions() {
		entries, err := os.ReadDir(partition)
		if err != nil {
			continue
		}
		remaining := 0
		for _, de := range entries {
			if de.IsDir() {
				continue
			}
			path := filepath.Join(partition, de.Name())
			e, err := readEntry(path)
			if err != nil || e.Expired(now) {
				if os.Remove(path) == nil {
					removed++
				}
				continue
			}
			remaining++
		}
		if remaining == 0 {
			os.Remove(partition)
		}
	}

	if removed > 0 {
		s.logger.Info("cache sweep completed", slog.Int("removed", removed))
	}
	return removed
}

// Stats reports entry count, byte size, partition count and how many
// entries are expired but not yet swept.
func (s *Store) Stats() Stats {
	var st Stats
	now := time.Now()

	for _, partition := range s.partitions() {
		entries, err := os.ReadDir(partition)
		if err != nil {
			continue
		}
		st.Partitions++
		for _, de := range entries {
			if de.IsDir() {
				continue
			}
			path := filepath.Join(partition, de.Name())
			info, err := de.Info()
			if err != nil {
				continue
			}
			st.Entries++
			st.Bytes += info.Size()
			if e, err := readEntry(path); err == nil && e.Expired(now) {
				st.Expired++
			}
		}
	}
	return st
}

// partitions returns the absolute paths of all context partition directories.
func (s *Store) partitions() []string {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, de := range entries {
		if !de.IsDir() {
			continue
		}
		// Partition names are numeric context ids; skip foreign dirs.
		if _, err := strconv.Atoi(de.Name()); err != nil {
			continue
		}
		out = append(out, filepath.Join(s.dir, de.Name()))
	}
	return out
}

func (s *Store) partitionPath(contextID int) string {
	return filepath.Join(s.dir, strconv.Itoa(contextID))
}

func (s *Store) entryPath(contextID int, key string) string {
	return filepath.Join(s.partitionPath(contextID), key+".json")
}

func readEntry(path string) (*Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, err
	}
	if e.Key == "" {
		return nil, fs.ErrInvalid
	}
	return &e, nil
}
