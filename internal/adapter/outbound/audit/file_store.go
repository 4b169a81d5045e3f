// Package audit provides file-based persistence for the relay's audit
// trail: JSON Lines output with daily rotation, size caps, retention
// cleanup, and an in-memory cache serving the admin API.
package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Stream-Gate/Streamgate/internal/domain/audit"
)

// logFilePattern matches relay audit filenames:
// audit-YYYY-MM-DD.log or audit-YYYY-MM-DD-N.log
var logFilePattern = regexp.MustCompile(`^audit-(\d{4}-\d{2}-\d{2})(?:-(\d+))?\.log$`)

const dateLayout = "2006-01-02"

// FileStoreConfig holds configuration for the file-based audit store.
type FileStoreConfig struct {
	// Dir is the directory where audit files are stored.
	Dir string
	// RetentionDays is the number of days to keep audit files (default 30).
	RetentionDays int
	// MaxFileSizeMB is the maximum file size before rotation (default 100).
	MaxFileSizeMB int
	// CacheSize is the number of recent records kept in memory (default 1000).
	CacheSize int
}

// FileStore implements audit.AuditStore with rotation, retention, and a
// recent-records cache.
type FileStore struct {
	dir           string
	maxFileSize   int64
	retentionDays int
	logger        *slog.Logger
	cache         *recordCache
	cancelCleanup context.CancelFunc

	mu     sync.Mutex
	file   *os.File
	date   string
	size   int64
	suffix int
	closed bool
}

// NewFileStore creates the audit directory if needed, opens today's log
// file, runs retention cleanup, warms the cache from the newest file on
// disk, and starts the hourly cleanup loop.
func NewFileStore(cfg FileStoreConfig, logger *slog.Logger) (*FileStore, error) {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	if cfg.MaxFileSizeMB <= 0 {
		cfg.MaxFileSizeMB = 100
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1000
	}

	// Audit records carry addresses and token fingerprints; keep the
	// directory private to the relay's user.
	if err := os.MkdirAll(cfg.Dir, 0700); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &FileStore{
		dir:           cfg.Dir,
		maxFileSize:   int64(cfg.MaxFileSizeMB) * 1024 * 1024,
		retentionDays: cfg.RetentionDays,
		logger:        logger,
		cache:         newRecordCache(cfg.CacheSize),
		cancelCleanup: cancel,
	}

	today := time.Now().UTC().Format(dateLayout)
	if err := s.rotateLocked(today, s.highestSuffix(today)); err != nil {
		cancel()
		return nil, fmt.Errorf("open audit file: %w", err)
	}

	s.removeExpired()
	s.warmCache()
	go s.cleanupLoop(ctx)

	return s, nil
}

// Append writes records as JSON lines to the current file, rotating on
// date change or size overflow, and mirrors them into the cache.
func (s *FileStore) Append(_ context.Context, records ...audit.Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		date := rec.Timestamp.UTC().Format(dateLayout)
		if date != s.date {
			if err := s.rotateLocked(date, 0); err != nil {
				return fmt.Errorf("date rotation: %w", err)
			}
		}
		if s.size >= s.maxFileSize {
			if err := s.rotateLocked(s.date, s.suffix+1); err != nil {
				return fmt.Errorf("size rotation: %w", err)
			}
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal audit record: %w", err)
		}
		n, err := s.file.Write(append(data, '\n'))
		if err != nil {
			return fmt.Errorf("write audit record: %w", err)
		}
		s.size += int64(n)
		s.cache.add(rec)
	}

	return nil
}

// Flush syncs the current file to disk.
func (s *FileStore) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		return s.file.Sync()
	}
	return nil
}

// Close stops the cleanup loop and closes the current file. Idempotent.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.cancelCleanup()

	if s.file != nil {
		_ = s.file.Sync()
		err := s.file.Close()
		s.file = nil
		return err
	}
	return nil
}

// Recent returns up to n of the most recent records, newest first.
func (s *FileStore) Recent(n int) []audit.Record {
	return s.cache.recent(n)
}

// Query retrieves cached records matching the filter, newest first. Only
// the cached window is searched; older records live in the log files.
func (s *FileStore) Query(filter audit.Filter) ([]audit.Record, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	var result []audit.Record
	for _, rec := range s.cache.recent(s.cache.capacity) {
		if len(result) >= limit {
			break
		}
		if !filter.StartTime.IsZero() && rec.Timestamp.Before(filter.StartTime) {
			continue
		}
		if !filter.EndTime.IsZero() && rec.Timestamp.After(filter.EndTime) {
			continue
		}
		if filter.Event != "" && !strings.EqualFold(rec.Event, filter.Event) {
			continue
		}
		if filter.SessionID != "" && rec.SessionID != filter.SessionID {
			continue
		}
		result = append(result, rec)
	}
	return result, nil
}

// rotateLocked closes the current file (if any) and opens the file for
// the given date and suffix. Must be called with s.mu held, except from
// the constructor.
func (s *FileStore) rotateLocked(date string, suffix int) error {
	if s.file != nil {
		_ = s.file.Sync()
		_ = s.file.Close()
		s.file = nil
	}

	path := filepath.Join(s.dir, logFileName(date, suffix))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat %s: %w", path, err)
	}

	s.file = f
	s.date = date
	s.suffix = suffix
	s.size = info.Size()
	return nil
}

// logFileName builds the audit filename for a date and rotation suffix.
func logFileName(date string, suffix int) string {
	if suffix == 0 {
		return fmt.Sprintf("audit-%s.log", date)
	}
	return fmt.Sprintf("audit-%s-%d.log", date, suffix)
}

// logFileMeta describes one audit file found on disk.
type logFileMeta struct {
	name   string
	date   string
	suffix int
}

// parseLogFileName extracts date and suffix from an audit filename.
func parseLogFileName(name string) (logFileMeta, bool) {
	m := logFilePattern.FindStringSubmatch(name)
	if m == nil {
		return logFileMeta{}, false
	}
	meta := logFileMeta{name: name, date: m[1]}
	if m[2] != "" {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return logFileMeta{}, false
		}
		meta.suffix = n
	}
	return meta, true
}

// listLogFiles returns all audit files in the directory, oldest first.
func (s *FileStore) listLogFiles() []logFileMeta {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil
	}

	var files []logFileMeta
	for _, e := range entries {
		if meta, ok := parseLogFileName(e.Name()); ok {
			files = append(files, meta)
		}
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].date != files[j].date {
			return files[i].date < files[j].date
		}
		return files[i].suffix < files[j].suffix
	})
	return files
}

// highestSuffix returns the highest rotation suffix on disk for a date.
func (s *FileStore) highestSuffix(date string) int {
	highest := 0
	for _, meta := range s.listLogFiles() {
		if meta.date == date && meta.suffix > highest {
			highest = meta.suffix
		}
	}
	return highest
}

// removeExpired deletes audit files older than the retention period.
func (s *FileStore) removeExpired() {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.retentionDays)
	deleted := 0

	for _, meta := range s.listLogFiles() {
		fileDate, err := time.Parse(dateLayout, meta.date)
		if err != nil {
			continue
		}
		if !fileDate.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, meta.name)); err != nil {
			s.logger.Error("audit cleanup: failed to delete file",
				"file", meta.name, "error", err)
		} else {
			deleted++
		}
	}

	if deleted > 0 {
		s.logger.Info("audit cleanup completed", "deleted", deleted)
	}
}

// cleanupLoop runs retention cleanup hourly until the store is closed.
func (s *FileStore) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.removeExpired()
		}
	}
}

// warmCache fills the recent-records cache from the newest non-empty
// audit file so admin queries work across restarts.
func (s *FileStore) warmCache() {
	newest := ""
	for _, meta := range s.listLogFiles() {
		info, err := os.Stat(filepath.Join(s.dir, meta.name))
		if err != nil || info.Size() == 0 {
			continue
		}
		newest = meta.name
	}
	if newest == "" {
		return
	}

	f, err := os.Open(filepath.Join(s.dir, newest))
	if err != nil {
		s.logger.Error("audit cache: failed to open file", "file", newest, "error", err)
		return
	}
	defer func() { _ = f.Close() }()

	var records []audit.Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 256*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec audit.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			s.logger.Warn("audit cache: skipping malformed line",
				"file", newest, "error", err)
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		s.logger.Error("audit cache: error reading file", "file", newest, "error", err)
	}

	if len(records) > s.cache.capacity {
		records = records[len(records)-s.cache.capacity:]
	}
	for _, rec := range records {
		s.cache.add(rec)
	}
}

// recordCache is a fixed-size ring buffer of recent audit records.
type recordCache struct {
	mu       sync.RWMutex
	entries  []audit.Record
	capacity int
	head     int
	count    int
}

func newRecordCache(capacity int) *recordCache {
	if capacity <= 0 {
		capacity = 1000
	}
	return &recordCache{
		entries:  make([]audit.Record, capacity),
		capacity: capacity,
	}
}

// add stores a record, overwriting the oldest entry when full.
func (c *recordCache) add(rec audit.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[c.head] = rec
	c.head = (c.head + 1) % c.capacity
	if c.count < c.capacity {
		c.count++
	}
}

// recent returns up to n entries, newest first.
func (c *recordCache) recent(n int) []audit.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if n <= 0 || c.count == 0 {
		return nil
	}
	if n > c.count {
		n = c.count
	}

	result := make([]audit.Record, n)
	for i := 0; i < n; i++ {
		// head is the next write slot, so head-1 is the newest entry.
		idx := (c.head - 1 - i + c.capacity) % c.capacity
		result[i] = c.entries[idx]
	}
	return result
}

// Compile-time interface verification.
var (
	_ audit.AuditStore   = (*FileStore)(nil)
	_ audit.RecentSource = (*FileStore)(nil)
)
