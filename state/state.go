// Package state remembers what earlier scans extracted, keyed by content
// hash, so unchanged documents are not extracted twice.
package state

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type Tracker interface {
	Lookup(hash string) (Entry, bool)
	Record(hash string, entry Entry) error
	Snapshot() Snapshot
}

// Entry is what was extracted from one document. Date is nil when no date
// could be found.
type Entry struct {
	Name string
	Date *string
}

type Snapshot struct {
	Processed int
	Dated     int
}

type MemoryTracker struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{entries: make(map[string]Entry)}
}

func (m *MemoryTracker) Lookup(hash string) (Entry, bool) {
	if hash == "" {
		return Entry{}, false
	}

	m.mu.RLock()
	e, ok := m.entries[hash]
	m.mu.RUnlock()
	return e, ok
}

func (m *MemoryTracker) Record(hash string, entry Entry) error {
	if hash == "" {
		return nil
	}

	m.mu.Lock()
	m.entries[hash] = entry
	m.mu.Unlock()
	return nil
}

func (m *MemoryTracker) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Snapshot{Processed: len(m.entries)}
	for _, e := range m.entries {
		if e.Date != nil {
			s.Dated++
		}
	}
	return s
}

// FileTracker persists extraction results so future runs can reuse them.
// The cache is an append-only JSONL file, one record per document hash.
type FileTracker struct {
	*MemoryTracker
	path    string
	persist bool
	corrupt int
	// unterminated is set when the last line on disk lacks a newline.
	unterminated bool

	writeMu sync.Mutex
	file    *os.File
	buf     *bufio.Writer
	enc     *json.Encoder
}

type fileRecord struct {
	Hash string  `json:"hash"`
	Name string  `json:"name"`
	Date *string `json:"date"`
}

// NewFileTracker loads the cache in stateDir. With persist unset nothing is
// written back, which is how dry runs behave.
func NewFileTracker(stateDir string, persist bool) (*FileTracker, error) {
	if strings.TrimSpace(stateDir) == "" {
		return nil, fmt.Errorf("state directory is empty")
	}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	tracker := &FileTracker{
		MemoryTracker: NewMemoryTracker(),
		path:          filepath.Join(stateDir, "extracted.jsonl"),
		persist:       persist,
	}
	if err := tracker.load(); err != nil {
		return nil, err
	}
	if !persist {
		return tracker, nil
	}

	file, err := os.OpenFile(tracker.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open state file for append: %w", err)
	}
	tracker.file = file
	tracker.buf = bufio.NewWriterSize(file, 64*1024)
	tracker.enc = json.NewEncoder(tracker.buf)
	if tracker.unterminated {
		_ = tracker.buf.WriteByte('\n')
	}
	return tracker, nil
}

// load reads every record into memory. Lines that do not decode, such as a
// record cut short when a scan was killed, are counted and skipped.
func (f *FileTracker) load() error {
	file, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open state file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	f.mu.Lock()
	defer f.mu.Unlock()
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec fileRecord
		if err := json.Unmarshal(line, &rec); err != nil || rec.Hash == "" {
			f.corrupt++
			continue
		}
		if _, dup := f.entries[rec.Hash]; !dup {
			f.entries[rec.Hash] = Entry{Name: rec.Name, Date: rec.Date}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read state file: %w", err)
	}

	if info, err := file.Stat(); err == nil && info.Size() > 0 {
		last := make([]byte, 1)
		if _, err := file.ReadAt(last, info.Size()-1); err == nil {
			f.unterminated = last[0] != '\n'
		}
	}
	return nil
}

// Corrupt is the number of cache lines skipped while loading.
func (f *FileTracker) Corrupt() int {
	return f.corrupt
}

// Record keeps the first result seen for a hash.
func (f *FileTracker) Record(hash string, entry Entry) error {
	if hash == "" {
		return nil
	}

	f.mu.Lock()
	_, exists := f.entries[hash]
	if !exists {
		f.entries[hash] = entry
	}
	f.mu.Unlock()
	if exists || !f.persist {
		return nil
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	if err := f.enc.Encode(fileRecord{Hash: hash, Name: entry.Name, Date: entry.Date}); err != nil {
		return fmt.Errorf("write state record for %s: %w", entry.Name, err)
	}
	return nil
}

// Flush writes buffered records through to disk.
func (f *FileTracker) Flush() error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	if f.file == nil {
		return nil
	}
	return f.flushLocked()
}

func (f *FileTracker) flushLocked() error {
	if err := f.buf.Flush(); err != nil {
		return fmt.Errorf("flush state file: %w", err)
	}
	if err := f.file.Sync(); err != nil {
		return fmt.Errorf("sync state file: %w", err)
	}
	return nil
}

// Close flushes and closes the state file. It is safe to call more than once.
func (f *FileTracker) Close() error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	if f.file == nil {
		return nil
	}

	err := f.flushLocked()
	if cerr := f.file.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("close state file: %w", cerr))
	}
	f.file = nil
	return err
}
