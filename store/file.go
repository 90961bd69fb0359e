package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Jacob-Makopo/FileWhatwhat/model"
)

const fileName = "uploads.jsonl"

// FileStore keeps uploads in memory and appends every change to a JSONL
// log. Deleting a record rewrites the log without it.
type FileStore struct {
	mu      sync.RWMutex
	uploads map[string]model.Upload
	path    string
	file    *os.File
	writer  *bufio.Writer
	corrupt int
	// unterminated is set when the last line on disk lacks a newline.
	unterminated bool
}

type fileRecord struct {
	Op     string        `json:"op"`
	ID     string        `json:"id"`
	Upload *model.Upload `json:"upload"`
}

const opPut = "put"

func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("store directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	s := &FileStore{
		uploads: make(map[string]model.Upload),
		path:    filepath.Join(dir, fileName),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	if err := s.openAppend(); err != nil {
		return nil, err
	}
	return s, nil
}

// load replays the log. Lines that do not decode, such as a record cut short
// when the process was killed mid-write, are counted and skipped.
func (s *FileStore) load() error {
	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open store file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}

		var record fileRecord
		if err := json.Unmarshal(text, &record); err != nil {
			s.corrupt++
			continue
		}

		if record.Op == opPut && record.Upload != nil {
			s.uploads[record.Upload.ID] = *record.Upload
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read store file: %w", err)
	}

	if info, err := file.Stat(); err == nil && info.Size() > 0 {
		last := make([]byte, 1)
		if _, err := file.ReadAt(last, info.Size()-1); err == nil {
			s.unterminated = last[0] != '\n'
		}
	}
	return nil
}

// Corrupt is the number of log lines skipped while loading.
func (s *FileStore) Corrupt() int {
	return s.corrupt
}

func (s *FileStore) openAppend() error {
	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open store file for append: %w", err)
	}
	s.file = file
	s.writer = bufio.NewWriter(file)
	if s.unterminated {
		if err := s.writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("terminate store file: %w", err)
		}
		s.unterminated = false
	}
	return nil
}

func (s *FileStore) Save(_ context.Context, u model.Upload) error {
	if u.ID == "" {
		return fmt.Errorf("upload id is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.append(fileRecord{Op: opPut, ID: u.ID, Upload: &u}); err != nil {
		return err
	}
	s.uploads[u.ID] = u
	return nil
}

func (s *FileStore) Get(_ context.Context, id string) (model.Upload, error) {
	s.mu.RLock()
	u, ok := s.uploads[id]
	s.mu.RUnlock()
	if !ok {
		return model.Upload{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return u, nil
}

func (s *FileStore) List(_ context.Context, f Filter) ([]model.Upload, error) {
	s.mu.RLock()
	all := make([]model.Upload, 0, len(s.uploads))
	for _, u := range s.uploads {
		all = append(all, u)
	}
	s.mu.RUnlock()
	return f.apply(all), nil
}

func (s *FileStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.uploads[id]; !ok {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	live := make(map[string]model.Upload, len(s.uploads))
	for k, u := range s.uploads {
		if k != id {
			live[k] = u
		}
	}
	return s.rewrite(live)
}

// rewrite replaces the log with one put record per upload in live and then
// makes live the in-memory state. Until the new log is renamed over the old
// one, a failure leaves the store as it was.
func (s *FileStore) rewrite(live map[string]model.Upload) error {
	tmp := s.path + ".tmp"
	if err := writeLog(tmp, live); err != nil {
		return err
	}
	if s.writer != nil {
		if err := s.writer.Flush(); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("flush store file: %w", err)
		}
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace store file: %w", err)
	}
	s.uploads = live

	// The old handle points at the replaced log. If reopening fails, append
	// retries on the next save.
	_ = s.closeFile()
	return s.openAppend()
}

// writeLog writes uploads to a new file at path and syncs it. The file is
// removed again if any write fails.
func writeLog(path string, uploads map[string]model.Upload) (err error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create store rewrite: %w", err)
	}
	defer func() {
		if err != nil {
			_ = file.Close()
			_ = os.Remove(path)
		}
	}()

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	for _, u := range uploads {
		u := u
		if err := enc.Encode(fileRecord{Op: opPut, ID: u.ID, Upload: &u}); err != nil {
			return fmt.Errorf("encode store record: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush store rewrite: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync store rewrite: %w", err)
	}
	return file.Close()
}

func (s *FileStore) append(record fileRecord) error {
	if s.writer == nil {
		if err := s.openAppend(); err != nil {
			return err
		}
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode store record: %w", err)
	}
	if _, err := s.writer.Write(data); err != nil {
		return fmt.Errorf("write store record: %w", err)
	}
	if err := s.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	if err := s.writer.Flush(); err != nil {
		return fmt.Errorf("flush store file: %w", err)
	}
	return nil
}

// Close flushes and closes the log.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeFile()
}

func (s *FileStore) closeFile() error {
	if s.file == nil {
		return nil
	}

	var firstErr error
	if err := s.writer.Flush(); err != nil {
		firstErr = fmt.Errorf("flush store file: %w", err)
	}
	if err := s.file.Sync(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("sync store file: %w", err)
	}
	if err := s.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close store file: %w", err)
	}
	s.file = nil
	s.writer = nil
	return firstErr
}
