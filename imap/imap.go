// Package imap archives extracted .eml documents into an IMAP folder, with
// the extracted date as the message's internal date.
package imap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/Jacob-Makopo/FileWhatwhat/extract"
	"github.com/Jacob-Makopo/FileWhatwhat/model"
	"github.com/Jacob-Makopo/FileWhatwhat/stats"
)

var ErrEmptyDocument = errors.New("document has no content")

type Options struct {
	Host               string
	Port               int
	Username           string
	Password           string
	UseTLS             bool
	InsecureSkipVerify bool
	TargetFolder       string
	DryRun             bool
}

// EventEmitter receives archive events.
type EventEmitter interface {
	EmitEvent(stats.Event)
}

// Archiver is a runner sink. It connects on the first document it has to
// append and logs out in Finish.
type Archiver struct {
	opts    Options
	events  EventEmitter
	logger  *slog.Logger
	client  *imapclient.Client
	cleanup func()
}

func NewArchiver(opts Options, events EventEmitter, logger *slog.Logger) (*Archiver, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("imap host is empty")
	}
	if opts.Port <= 0 {
		return nil, fmt.Errorf("imap port must be positive")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter must not be nil")
	}
	return &Archiver{opts: opts, events: events, logger: logger}, nil
}

// Handle appends res when it is a freshly extracted .eml document. Cached
// results were archived by the run that extracted them.
func (a *Archiver) Handle(ctx context.Context, res model.Result) error {
	doc := res.Document
	if doc.Extension != extract.ExtEML || res.Cached {
		if a.logger != nil {
			a.logger.Debug("not archived", "document", doc.Name, "extension", doc.Extension, "cached", res.Cached)
		}
		return nil
	}
	if len(doc.Raw) == 0 {
		a.events.EmitEvent(stats.Event{Stage: stats.StageIMAP, Type: stats.EventTypeError, Document: doc.Name, Err: ErrEmptyDocument})
		return nil
	}

	if a.opts.DryRun {
		a.events.EmitEvent(stats.Event{Stage: stats.StageIMAP, Type: stats.EventTypeDryRunArchive, Document: doc.Name})
		if a.logger != nil {
			a.logger.Debug("dry-run archive", "document", doc.Name, "target", a.targetFolder(), "date", res.DateString())
		}
		return nil
	}

	if a.client == nil {
		client, cleanup, err := a.dial(ctx)
		if err != nil {
			a.events.EmitEvent(stats.Event{Stage: stats.StageIMAP, Type: stats.EventTypeError, Document: doc.Name, Err: err})
			return err
		}
		a.client, a.cleanup = client, cleanup
	}

	if err := a.appendDocument(a.client, res); err != nil {
		err = fmt.Errorf("archive %s: %w", doc.Name, err)
		a.events.EmitEvent(stats.Event{Stage: stats.StageIMAP, Type: stats.EventTypeError, Document: doc.Name, Err: err})
		return err
	}

	a.events.EmitEvent(stats.Event{Stage: stats.StageIMAP, Type: stats.EventTypeArchived, Document: doc.Name})
	if a.logger != nil {
		a.logger.Debug("archived document", "document", doc.Name, "target", a.targetFolder())
	}
	return nil
}

// Finish closes the connection, if one was opened.
func (a *Archiver) Finish(context.Context) error {
	if a.cleanup != nil {
		a.cleanup()
		a.cleanup = nil
		a.client = nil
	}
	return nil
}

func (a *Archiver) dial(ctx context.Context) (*imapclient.Client, func(), error) {
	address := net.JoinHostPort(a.opts.Host, strconv.Itoa(a.opts.Port))
	options := &imapclient.Options{}

	if a.opts.UseTLS {
		options.TLSConfig = &tls.Config{
			ServerName:         a.opts.Host,
			InsecureSkipVerify: a.opts.InsecureSkipVerify,
		}
	}

	var (
		client *imapclient.Client
		err    error
	)

	if a.opts.UseTLS {
		client, err = imapclient.DialTLS(address, options)
	} else {
		client, err = imapclient.DialInsecure(address, options)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("dial imap %s: %w", address, err)
	}

	if err := client.Login(a.opts.Username, a.opts.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("imap login failed: %w", err)
	}

	if err := a.ensureMailbox(client); err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	if a.logger != nil {
		a.logger.Debug("imap connection established", "address", address, "user", a.opts.Username, "target", a.targetFolder(), "tls", a.opts.UseTLS)
	}

	stopClose := context.AfterFunc(ctx, func() {
		_ = client.Close()
	})

	cleanup := func() {
		stopClose()
		if ctx.Err() == nil {
			if err := client.Logout().Wait(); err != nil && a.logger != nil {
				a.logger.Warn("imap logout failed", "err", err)
			}
		}
		if err := client.Close(); err != nil && a.logger != nil {
			a.logger.Debug("imap connection closed", "err", err)
		}
	}

	return client, cleanup, nil
}

// appendOptions sets INTERNALDATE to the extracted date. Undated documents
// get the server's arrival time.
func appendOptions(res model.Result) *imapv2.AppendOptions {
	if !res.Found || res.Date.IsZero() {
		return nil
	}
	return &imapv2.AppendOptions{Time: res.Date}
}

func (a *Archiver) appendDocument(client *imapclient.Client, res model.Result) error {
	raw := res.Document.Raw
	cmd := client.Append(a.targetFolder(), int64(len(raw)), appendOptions(res))

	remaining := raw
	for len(remaining) > 0 {
		n, err := cmd.Write(remaining)
		if err != nil {
			_ = cmd.Close()
			return fmt.Errorf("append write: %w", err)
		}
		if n == 0 {
			_ = cmd.Close()
			return fmt.Errorf("append write: wrote 0 bytes")
		}
		remaining = remaining[n:]
	}

	if err := cmd.Close(); err != nil {
		return fmt.Errorf("append close: %w", err)
	}

	if _, err := cmd.Wait(); err != nil {
		return fmt.Errorf("append wait: %w", err)
	}

	return nil
}

func (a *Archiver) targetFolder() string {
	if a.opts.TargetFolder == "" {
		return "INBOX"
	}
	return a.opts.TargetFolder
}

func (a *Archiver) ensureMailbox(client *imapclient.Client) error {
	target := a.targetFolder()
	if err := client.Create(target, nil).Wait(); err != nil {
		var respErr *imapv2.Error
		if errors.As(err, &respErr) && respErr.Code == imapv2.ResponseCodeAlreadyExists {
			if a.logger != nil {
				a.logger.Debug("imap mailbox already exists", "mailbox", target)
			}
			return nil
		}
		return fmt.Errorf("ensure mailbox %s: %w", target, err)
	}

	if a.logger != nil {
		a.logger.Info("imap mailbox created", "mailbox", target)
	}
	return nil
}
