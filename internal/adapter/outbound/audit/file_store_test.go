package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Stream-Gate/Streamgate/internal/domain/audit"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func makeRecord(ts time.Time, sessionID string) audit.Record {
	rec := audit.NewRecord(audit.EventSessionClosed)
	rec.Timestamp = ts
	rec.SessionID = sessionID
	rec.RemoteAddr = "192.0.2.1:1000"
	rec.TokenFingerprint = "deadbeefdeadbeef"
	return rec
}

func newTestStore(t *testing.T, cfg FileStoreConfig) *FileStore {
	t.Helper()
	if cfg.Dir == "" {
		cfg.Dir = t.TempDir()
	}
	store, err := NewFileStore(cfg, testLogger())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestFileStoreCreatesDirectory(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "audit")
	newTestStore(t, FileStoreConfig{Dir: dir})

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("directory not created: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("expected directory")
	}
	if perm := info.Mode().Perm(); perm != 0700 {
		t.Errorf("directory permissions = %o, want 0700", perm)
	}
}

func TestFileStoreAppendWritesJSONLines(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := newTestStore(t, FileStoreConfig{Dir: dir})

	now := time.Now().UTC()
	if err := store.Append(context.Background(),
		makeRecord(now, "sess-1"),
		makeRecord(now, "sess-2"),
	); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	path := filepath.Join(dir, logFileName(now.Format(dateLayout), 0))
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("audit file not written: %v", err)
	}
	defer f.Close()

	var got []audit.Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec audit.Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("line is not valid JSON: %v", err)
		}
		got = append(got, rec)
	}
	if len(got) != 2 {
		t.Fatalf("file holds %d records, want 2", len(got))
	}
	if got[0].SessionID != "sess-1" || got[1].SessionID != "sess-2" {
		t.Errorf("records out of order: %v, %v", got[0].SessionID, got[1].SessionID)
	}
	if got[0].TokenFingerprint != "deadbeefdeadbeef" {
		t.Errorf("fingerprint lost on round trip: %q", got[0].TokenFingerprint)
	}
}

func TestFileStoreDateRotation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := newTestStore(t, FileStoreConfig{Dir: dir})

	day1 := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	if err := store.Append(context.Background(), makeRecord(day1, "a")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Append(context.Background(), makeRecord(day2, "b")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	for _, name := range []string{"audit-2026-08-29.log", "audit-2026-08-30.log"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected file %s: %v", name, err)
		}
	}
}

func TestFileStoreSizeRotation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := newTestStore(t, FileStoreConfig{Dir: dir, MaxFileSizeMB: 1})
	// Force an immediate size rotation on the next append.
	store.mu.Lock()
	store.size = store.maxFileSize
	store.mu.Unlock()

	now := time.Now().UTC()
	if err := store.Append(context.Background(), makeRecord(now, "rotated")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	path := filepath.Join(dir, logFileName(now.Format(dateLayout), 1))
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected suffixed file after size rotation: %v", err)
	}
}

func TestFileStoreResumesHighestSuffix(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	today := time.Now().UTC().Format(dateLayout)
	for _, name := range []string{
		logFileName(today, 0),
		logFileName(today, 3),
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}\n"), 0600); err != nil {
			t.Fatalf("seed file: %v", err)
		}
	}

	store := newTestStore(t, FileStoreConfig{Dir: dir})
	store.mu.Lock()
	suffix := store.suffix
	store.mu.Unlock()
	if suffix != 3 {
		t.Errorf("store resumed at suffix %d, want 3", suffix)
	}
}

func TestFileStoreRecentNewestFirst(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, FileStoreConfig{Dir: t.TempDir(), CacheSize: 10})

	now := time.Now().UTC()
	for _, id := range []string{"a", "b", "c"} {
		if err := store.Append(context.Background(), makeRecord(now, id)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	recent := store.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("Recent(2) returned %d records", len(recent))
	}
	if recent[0].SessionID != "c" || recent[1].SessionID != "b" {
		t.Errorf("recent order = %v, %v; want c, b", recent[0].SessionID, recent[1].SessionID)
	}
}

func TestFileStoreCacheEvictsOldest(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, FileStoreConfig{Dir: t.TempDir(), CacheSize: 2})

	now := time.Now().UTC()
	for _, id := range []string{"a", "b", "c"} {
		if err := store.Append(context.Background(), makeRecord(now, id)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	recent := store.Recent(10)
	if len(recent) != 2 {
		t.Fatalf("cache holds %d records, want 2", len(recent))
	}
	if recent[0].SessionID != "c" || recent[1].SessionID != "b" {
		t.Errorf("cache contents = %v, %v; want c, b", recent[0].SessionID, recent[1].SessionID)
	}
}

func TestFileStoreWarmCacheAcrossRestart(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := newTestStore(t, FileStoreConfig{Dir: dir})
	now := time.Now().UTC()
	for _, id := range []string{"old-1", "old-2"} {
		if err := store.Append(context.Background(), makeRecord(now, id)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := newTestStore(t, FileStoreConfig{Dir: dir})
	recent := reopened.Recent(10)
	if len(recent) != 2 {
		t.Fatalf("reopened cache holds %d records, want 2", len(recent))
	}
	if recent[0].SessionID != "old-2" {
		t.Errorf("newest after restart = %q, want old-2", recent[0].SessionID)
	}
}

func TestFileStoreRetentionCleanup(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	stale := filepath.Join(dir, "audit-2020-01-01.log")
	if err := os.WriteFile(stale, []byte("{}\n"), 0600); err != nil {
		t.Fatalf("seed stale file: %v", err)
	}
	unrelated := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(unrelated, []byte("keep"), 0600); err != nil {
		t.Fatalf("seed unrelated file: %v", err)
	}

	newTestStore(t, FileStoreConfig{Dir: dir, RetentionDays: 7})

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale audit file survived retention cleanup")
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Error("cleanup removed a non-audit file")
	}
}

func TestFileStoreQueryFilters(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, FileStoreConfig{Dir: t.TempDir()})
	now := time.Now().UTC()

	started := audit.NewRecord(audit.EventSessionStarted)
	started.Timestamp = now
	started.SessionID = "sess-x"
	failed := audit.NewRecord(audit.EventAuthFailed)
	failed.Timestamp = now
	failed.Reason = audit.ReasonMalformed
	if err := store.Append(context.Background(), started, failed); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := store.Query(audit.Filter{Event: audit.EventAuthFailed})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 1 || got[0].Reason != audit.ReasonMalformed {
		t.Errorf("event filter returned %v", got)
	}

	got, err = store.Query(audit.Filter{SessionID: "sess-x"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 1 || got[0].Event != audit.EventSessionStarted {
		t.Errorf("session filter returned %v", got)
	}
}

func TestFileStoreCloseIdempotent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, FileStoreConfig{Dir: t.TempDir()})
	if err := store.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
}

func TestParseLogFileName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		date   string
		suffix int
		ok     bool
	}{
		{"audit-2026-08-30.log", "2026-08-30", 0, true},
		{"audit-2026-08-30-2.log", "2026-08-30", 2, true},
		{"audit-2026-08-30.txt", "", 0, false},
		{"other-2026-08-30.log", "", 0, false},
		{"audit-20260830.log", "", 0, false},
	}
	for _, tt := range tests {
		meta, ok := parseLogFileName(tt.name)
		if ok != tt.ok {
			t.Errorf("parseLogFileName(%q) ok = %v, want %v", tt.name, ok, tt.ok)
			continue
		}
		if ok && (meta.date != tt.date || meta.suffix != tt.suffix) {
			t.Errorf("parseLogFileName(%q) = %+v", tt.name, meta)
		}
	}
}
