package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	mboxlib "github.com/emersion/go-mbox"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/Jacob-Makopo/FileWhatwhat/extract"
	"github.com/Jacob-Makopo/FileWhatwhat/model"
)

// mboxReader emits each archived message as an .eml document.
type mboxReader struct {
	path   string
	logger *slog.Logger
}

func (m *mboxReader) Stream(ctx context.Context, out chan<- model.Envelope) error {
	file, err := os.Open(m.path)
	if err != nil {
		return fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	return m.stream(ctx, mboxlib.NewReader(file), out)
}

func (m *mboxReader) stream(ctx context.Context, reader *mboxlib.Reader, out chan<- model.Envelope) error {
	for idx := 0; ; idx++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return m.emitError(ctx, out, fmt.Errorf("message %d: %w", idx, err))
		}

		raw, err := io.ReadAll(msgReader)
		if err != nil {
			return m.emitError(ctx, out, fmt.Errorf("message %d read: %w", idx, err))
		}

		name := messageName(raw, idx)
		doc := model.Document{
			Name:      name,
			Extension: extract.ExtEML,
			Source:    fmt.Sprintf("%s#%d", m.path, idx),
			Hash:      Hash(raw),
			Size:      int64(len(raw)),
			Raw:       raw,
		}
		if err := emit(ctx, out, model.Envelope{Document: doc}); err != nil {
			return err
		}
	}
}

func (m *mboxReader) emitError(ctx context.Context, out chan<- model.Envelope, err error) error {
	if m.logger != nil {
		m.logger.Error("mbox stream error", "path", m.path, "err", err)
	}
	return emit(ctx, out, model.Envelope{Err: err})
}

var nameReplacer = strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")

// messageName is "<message-id>.eml", or a positional name when the message
// has no usable Message-Id.
func messageName(raw []byte, idx int) string {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return fmt.Sprintf("message-%05d.eml", idx)
	}

	header := mail.Header{Header: entity.Header}
	id, err := header.MessageID()
	if err != nil || strings.TrimSpace(id) == "" {
		return fmt.Sprintf("message-%05d.eml", idx)
	}
	return nameReplacer.Replace(id) + ".eml"
}

// Count returns the number of messages in an mbox archive.
func Count(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	reader := mboxlib.NewReader(file)
	count := 0
	for {
		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return count, nil
			}
			return count, err
		}
		if _, err := io.Copy(io.Discard, msgReader); err != nil {
			return count, fmt.Errorf("message %d: %w", count, err)
		}
		count++
	}
}
