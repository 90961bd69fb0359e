package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	mboxlib "github.com/emersion/go-mbox"

	"github.com/Jacob-Makopo/FileWhatwhat/model"
)

const sampleMbox = "From clerk@example.org Tue Mar  7 10:15:00 2023\n" +
	"Message-ID: <return-1@example.org>\n" +
	"Date: Tue, 07 Mar 2023 10:15:00 +0000\n" +
	"Subject: March return\n" +
	"\n" +
	"first body\n" +
	"\n" +
	"From clerk@example.org Wed Mar  8 11:00:00 2023\n" +
	"Date: Wed, 08 Mar 2023 11:00:00 +0000\n" +
	"Subject: no id\n" +
	"\n" +
	"second body\n"

func collect(t *testing.T, stream func(context.Context, chan<- model.Envelope) error) []model.Envelope {
	t.Helper()
	out := make(chan model.Envelope, 16)
	done := make(chan error, 1)
	go func() {
		done <- stream(context.Background(), out)
		close(out)
	}()

	var envs []model.Envelope
	for env := range out {
		envs = append(envs, env)
	}
	if err := <-done; err != nil {
		t.Fatalf("stream error = %v", err)
	}
	return envs
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDirReader(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.msg"), "Sent: 03/04/2023 14:30")
	writeFile(t, filepath.Join(root, "a.EML"), "Date: Tue, 07 Mar 2023 10:15:00 +0000\n\n")
	writeFile(t, filepath.Join(root, "nested", "c.txt"), "plain")
	writeFile(t, filepath.Join(root, ".git", "config"), "ignored")

	reader, err := NewReader(root, nil)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	envs := collect(t, reader.Stream)

	var names []string
	for _, env := range envs {
		if env.Err != nil {
			t.Fatalf("unexpected envelope error: %v", env.Err)
		}
		names = append(names, env.Document.Name)
	}
	want := []string{"a.EML", "b.msg", "c.txt"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("names = %v, want %v", names, want)
	}

	first := envs[0].Document
	if first.Extension != "eml" {
		t.Errorf("extension = %q, want eml", first.Extension)
	}
	if first.Hash == "" || first.Size == 0 || len(first.Raw) == 0 {
		t.Errorf("document not populated: %+v", first)
	}

	total, err := Total(root)
	if err != nil {
		t.Fatalf("Total() error = %v", err)
	}
	if total != 3 {
		t.Errorf("Total() = %d, want 3", total)
	}
}

func TestSingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one.msg")
	writeFile(t, path, "Sent: 03/04/2023 14:30")

	reader, err := NewReader(path, nil)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	envs := collect(t, reader.Stream)
	if len(envs) != 1 || envs[0].Document.Extension != "msg" {
		t.Fatalf("envelopes = %+v", envs)
	}
}

func TestMboxReader(t *testing.T) {
	m := &mboxReader{path: "inline"}
	envs := collect(t, func(ctx context.Context, out chan<- model.Envelope) error {
		return m.stream(ctx, mboxlib.NewReader(strings.NewReader(sampleMbox)), out)
	})

	if len(envs) != 2 {
		t.Fatalf("got %d envelopes, want 2", len(envs))
	}
	if got := envs[0].Document.Name; got != "return-1@example.org.eml" {
		t.Errorf("name = %q", got)
	}
	if got := envs[1].Document.Name; got != "message-00001.eml" {
		t.Errorf("name = %q", got)
	}
	for _, env := range envs {
		if env.Document.Extension != "eml" {
			t.Errorf("extension = %q, want eml", env.Document.Extension)
		}
	}
	if envs[0].Document.Hash == envs[1].Document.Hash {
		t.Error("distinct messages should hash differently")
	}
}

func TestMboxCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.mbox")
	writeFile(t, path, sampleMbox)

	n, err := Count(path)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}
}

func TestDetect(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "scan.pdf")
	writeFile(t, pdf, "%PDF")

	if _, err := Detect(pdf); err == nil {
		t.Error("expected unsupported error for pdf")
	}
	if kind, err := Detect(dir); err != nil || kind != KindDir {
		t.Errorf("Detect(dir) = %q, %v", kind, err)
	}
	if _, err := NewReader("  ", nil); err == nil {
		t.Error("expected error for empty path")
	}
}
