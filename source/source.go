// Package source streams email documents from a directory tree, a single
// file or an mbox archive.
package source

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Jacob-Makopo/FileWhatwhat/extract"
	"github.com/Jacob-Makopo/FileWhatwhat/model"
)

var ErrUnsupported = errors.New("unsupported input")

type Reader interface {
	Stream(ctx context.Context, out chan<- model.Envelope) error
}

// Kind of input a path refers to.
type Kind string

const (
	KindDir  Kind = "dir"
	KindFile Kind = "file"
	KindMbox Kind = "mbox"
)

// Detect classifies path: a directory, a single .eml or .msg file, or an
// mbox archive (.mbox, .mbx or no extension).
func Detect(path string) (Kind, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return KindDir, nil
	}
	switch extract.ExtensionOf(path) {
	case extract.ExtEML, extract.ExtMSG:
		return KindFile, nil
	case "mbox", "mbx", "":
		return KindMbox, nil
	}
	return "", fmt.Errorf("%s: %w", path, ErrUnsupported)
}

// NewReader returns the reader matching the input at path.
func NewReader(path string, logger *slog.Logger) (Reader, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("source path is empty")
	}
	kind, err := Detect(path)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindDir:
		return &dirReader{root: path, logger: logger}, nil
	case KindFile:
		return &fileReader{path: path}, nil
	default:
		return &mboxReader{path: path, logger: logger}, nil
	}
}

// dirReader walks a tree in lexical order and emits every regular file.
type dirReader struct {
	root   string
	logger *slog.Logger
}

func (d *dirReader) Stream(ctx context.Context, out chan<- model.Envelope) error {
	return filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if d.logger != nil {
				d.logger.Warn("walk error", "path", path, "err", err)
			}
			return emit(ctx, out, model.Envelope{Err: fmt.Errorf("walk %s: %w", path, err)})
		}
		if entry.IsDir() {
			if path != d.root && strings.HasPrefix(entry.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}

		doc, err := readDocument(path)
		if err != nil {
			return emit(ctx, out, model.Envelope{Err: err})
		}
		return emit(ctx, out, model.Envelope{Document: doc})
	})
}

type fileReader struct {
	path string
}

func (f *fileReader) Stream(ctx context.Context, out chan<- model.Envelope) error {
	doc, err := readDocument(f.path)
	if err != nil {
		return emit(ctx, out, model.Envelope{Err: err})
	}
	return emit(ctx, out, model.Envelope{Document: doc})
}

func readDocument(path string) (model.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return model.Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	name := filepath.Base(path)
	return model.Document{
		Name:      name,
		Extension: extract.ExtensionOf(name),
		Source:    path,
		Hash:      Hash(raw),
		Size:      int64(len(raw)),
		Raw:       raw,
	}, nil
}

// Hash identifies document content across runs.
func Hash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func emit(ctx context.Context, out chan<- model.Envelope, env model.Envelope) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- env:
		return nil
	}
}

// Total counts the documents path would produce, for progress reporting.
func Total(path string) (int, error) {
	kind, err := Detect(path)
	if err != nil {
		return 0, err
	}
	switch kind {
	case KindFile:
		return 1, nil
	case KindMbox:
		return Count(path)
	}

	total := 0
	err = filepath.WalkDir(path, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if entry.IsDir() {
			if p != path && strings.HasPrefix(entry.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.Type().IsRegular() {
			total++
		}
		return nil
	})
	return total, err
}
