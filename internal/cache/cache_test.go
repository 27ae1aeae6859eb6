package cache_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/scribeq/scribeq/internal/cache"
)

func writeAudioFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, 2048), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return path
}

func TestStoreLookupRoundTrip(t *testing.T) {
	dir := t.TempDir()
	file := writeAudioFile(t, dir, "a.mp3")

	c, err := cache.New(dir, time.Hour, nil)
	if err != nil {
		t.Fatalf("Expected no error creating cache, got %v", err)
	}

	if err := c.Store("https://example.com/a", file); err != nil {
		t.Fatalf("Expected no error storing, got %v", err)
	}

	got, ok := c.Lookup(context.Background(), "https://example.com/a")
	if !ok || got != file {
		t.Fatalf("Expected lookup hit with %s, got %q ok=%v", file, got, ok)
	}
}

func TestRoundTripSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	file := writeAudioFile(t, dir, "a.mp3")

	c1, _ := cache.New(dir, time.Hour, nil)
	if err := c1.Store("https://example.com/a", file); err != nil {
		t.Fatalf("store failed: %v", err)
	}

	// A fresh instance over the same dir must see the persisted index
	c2, err := cache.New(dir, time.Hour, nil)
	if err != nil {
		t.Fatalf("Expected no error re-opening cache, got %v", err)
	}
	if got, ok := c2.Lookup(context.Background(), "https://example.com/a"); !ok || got != file {
		t.Fatalf("Expected hit after restart, got %q ok=%v", got, ok)
	}
}

func TestLookupEvictsMissingFile(t *testing.T) {
	dir := t.TempDir()
	file := writeAudioFile(t, dir, "a.mp3")

	c, _ := cache.New(dir, time.Hour, nil)
	_ = c.Store("u", file)
	os.Remove(file)

	if _, ok := c.Lookup(context.Background(), "u"); ok {
		t.Fatalf("Expected miss after file deletion")
	}
	if c.Len() != 0 {
		t.Errorf("Expected entry evicted, len=%d", c.Len())
	}
}

func TestLookupEvictsOnValidationFailure(t *testing.T) {
	dir := t.TempDir()
	file := writeAudioFile(t, dir, "a.mp3")

	failing := func(ctx context.Context, path string) error {
		return errors.New("corrupted")
	}

	c, _ := cache.New(dir, time.Hour, failing)
	_ = c.Store("u", file)

	if _, ok := c.Lookup(context.Background(), "u"); ok {
		t.Fatalf("Expected miss when validation fails")
	}
	if c.Len() != 0 {
		t.Errorf("Expected entry evicted after failed validation, len=%d", c.Len())
	}
	if _, err := os.Stat(file); !os.IsNotExist(err) {
		t.Errorf("Expected the corrupt file deleted alongside its entry")
	}
}

func TestLookupEvictsExpiredEntry(t *testing.T) {
	dir := t.TempDir()
	file := writeAudioFile(t, dir, "a.mp3")

	c, _ := cache.New(dir, 50*time.Millisecond, nil)
	_ = c.Store("u", file)

	time.Sleep(80 * time.Millisecond)

	if _, ok := c.Lookup(context.Background(), "u"); ok {
		t.Fatalf("Expected miss after expiry")
	}
	if _, exists := c.Entries()["u"]; exists {
		t.Errorf("Expected expired entry gone from the index dump")
	}
	if _, err := os.Stat(file); !os.IsNotExist(err) {
		t.Errorf("Expected the expired file reclaimed on lookup")
	}
}

func TestLoadPrunesStaleIndex(t *testing.T) {
	dir := t.TempDir()
	live := writeAudioFile(t, dir, "live.mp3")

	// Hand-craft an index with one live entry, one expired and one whose
	// file no longer exists.
	aged := writeAudioFile(t, dir, "old.mp3")
	idx := map[string]cache.Entry{
		"live":    {Path: live, DownloadedAt: time.Now()},
		"expired": {Path: aged, DownloadedAt: time.Now().Add(-2 * time.Hour)},
		"missing": {Path: filepath.Join(dir, "gone.mp3"), DownloadedAt: time.Now()},
	}
	data, _ := json.Marshal(idx)
	if err := os.WriteFile(filepath.Join(dir, "index.json"), data, 0644); err != nil {
		t.Fatalf("failed to seed index: %v", err)
	}

	c, err := cache.New(dir, time.Hour, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if c.Len() != 1 {
		t.Fatalf("Expected only the live entry to survive load, len=%d", c.Len())
	}
	if _, ok := c.Lookup(context.Background(), "live"); !ok {
		t.Errorf("Expected live entry to survive load")
	}
	if _, err := os.Stat(aged); !os.IsNotExist(err) {
		t.Errorf("Expected the aged-out file reclaimed during load")
	}
}

func TestCorruptIndexIsEmptyCache(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.json"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("failed to write corrupt index: %v", err)
	}

	c, err := cache.New(dir, time.Hour, nil)
	if err != nil {
		t.Fatalf("Expected corrupt index to be treated as empty, got error %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Expected empty cache, len=%d", c.Len())
	}
}

func TestSweepExpiredDeletesAgedFiles(t *testing.T) {
	dir := t.TempDir()
	file := writeAudioFile(t, dir, "a.mp3")

	c, _ := cache.New(dir, 50*time.Millisecond, nil)
	_ = c.Store("u", file)

	time.Sleep(80 * time.Millisecond)
	c.SweepExpired()

	if c.Len() != 0 {
		t.Errorf("Expected sweep to drop the entry, len=%d", c.Len())
	}
	if _, err := os.Stat(file); !os.IsNotExist(err) {
		t.Errorf("Expected sweep to delete the aged-out file")
	}
}

func TestPurgeAll(t *testing.T) {
	dir := t.TempDir()
	a := writeAudioFile(t, dir, "a.mp3")
	b := writeAudioFile(t, dir, "b.mp3")

	c, _ := cache.New(dir, time.Hour, nil)
	_ = c.Store("a", a)
	_ = c.Store("b", b)

	if err := c.PurgeAll(); err != nil {
		t.Fatalf("Expected no error purging, got %v", err)
	}

	if c.Len() != 0 {
		t.Errorf("Expected empty index after purge, len=%d", c.Len())
	}
	for _, f := range []string{a, b} {
		if _, err := os.Stat(f); !os.IsNotExist(err) {
			t.Errorf("Expected %s deleted by purge", f)
		}
	}

	// The on-disk index must be empty as well
	c2, _ := cache.New(dir, time.Hour, nil)
	if c2.Len() != 0 {
		t.Errorf("Expected purged index to persist empty, len=%d", c2.Len())
	}
}
