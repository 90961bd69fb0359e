package filter

import (
	"testing"

	"github.com/Jacob-Makopo/FileWhatwhat/model"
)

func eml(raw string) model.Document {
	return model.Document{Name: "message.eml", Extension: "eml", Raw: []byte(raw)}
}

func TestFilter_Allows_IncludeMode(t *testing.T) {
	f, err := New(Options{IncludeHeader: []string{"Subject: Test"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if ok, _ := f.Allows(eml("Subject: Test Message\nFrom: sender@example.com\n\nbody")); !ok {
		t.Error("Expected document to be allowed (header matches)")
	}

	ok, reason := f.Allows(eml("Subject: Other\nFrom: sender@example.com\n\nbody"))
	if ok || reason != ReasonInclude {
		t.Errorf("Allows() = %v, %q; want false, %q", ok, reason, ReasonInclude)
	}
}

func TestFilter_Allows_ExcludeMode(t *testing.T) {
	f, err := New(Options{ExcludeHeader: []string{"spam"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if ok, _ := f.Allows(eml("Subject: Normal Message\n\nbody")); !ok {
		t.Error("Expected document to be allowed (no spam)")
	}

	ok, reason := f.Allows(eml("Subject: This is spam\n\nbody"))
	if ok || reason != ReasonExclude {
		t.Errorf("Allows() = %v, %q; want false, %q", ok, reason, ReasonExclude)
	}
}

func TestFilter_MutuallyExclusive(t *testing.T) {
	_, err := New(Options{IncludeName: []string{"test"}, ExcludeHeader: []string{"spam"}})
	if err == nil {
		t.Error("Expected error when both include and exclude are specified")
	}
}

func TestFilter_InvalidPattern(t *testing.T) {
	if _, err := New(Options{ExcludeBody: []string{"("}}); err == nil {
		t.Error("Expected error for invalid regex")
	}
}

func TestFilter_NoFilters(t *testing.T) {
	f, err := New(Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if ok, _ := f.Allows(eml("Subject: Any\n\nbody")); !ok {
		t.Error("Expected document to be allowed when no filters are active")
	}
	msg := model.Document{Name: "a.msg", Extension: "msg"}
	if ok, _ := f.Allows(msg); !ok {
		t.Error("Expected .msg to be allowed by default")
	}
}

func TestFilter_Extensions(t *testing.T) {
	f, err := New(Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ok, reason := f.Allows(model.Document{Name: "scan.pdf", Extension: "pdf"})
	if ok || reason != ReasonExtension {
		t.Errorf("Allows(pdf) = %v, %q", ok, reason)
	}

	only, err := New(Options{Extensions: []string{".MSG"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if ok, _ := only.Allows(eml("Subject: x\n\n")); ok {
		t.Error("Expected .eml to be rejected when only msg is enabled")
	}
}

func TestFilter_NameAndMsgBody(t *testing.T) {
	f, err := New(Options{IncludeName: []string{`(?i)^return`}, IncludeBody: []string{"municipality"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if ok, _ := f.Allows(model.Document{Name: "Return-March.eml", Extension: "eml"}); !ok {
		t.Error("Expected name match to allow")
	}
	msg := model.Document{Name: "x.msg", Extension: "msg", Raw: []byte("binary municipality junk")}
	if ok, _ := f.Allows(msg); !ok {
		t.Error("Expected .msg body match over whole content")
	}

	stats := f.GetStats()
	if got := stats.Include["name:(?i)^return"]; got != 1 {
		t.Errorf("name hits = %d, want 1", got)
	}
	if got := stats.Include["body:municipality"]; got != 1 {
		t.Errorf("body hits = %d, want 1", got)
	}
	if len(stats.Exclude) != 0 {
		t.Errorf("exclude stats = %v, want empty", stats.Exclude)
	}
}

func TestSplitRawMessage(t *testing.T) {
	tests := []struct {
		name       string
		raw        []byte
		wantHeader []byte
		wantBody   []byte
	}{
		{
			name:       "CRLF separator",
			raw:        []byte("Header: value\r\n\r\nBody content"),
			wantHeader: []byte("Header: value"),
			wantBody:   []byte("Body content"),
		},
		{
			name:       "LF separator",
			raw:        []byte("Header: value\n\nBody content"),
			wantHeader: []byte("Header: value"),
			wantBody:   []byte("Body content"),
		},
		{
			name:       "No separator",
			raw:        []byte("All header content"),
			wantHeader: []byte("All header content"),
			wantBody:   nil,
		},
		{
			name:       "Empty message",
			raw:        []byte{},
			wantHeader: nil,
			wantBody:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotHeader, gotBody := SplitRawMessage(tt.raw)
			if string(gotHeader) != string(tt.wantHeader) {
				t.Errorf("SplitRawMessage() header = %q, want %q", gotHeader, tt.wantHeader)
			}
			if string(gotBody) != string(tt.wantBody) {
				t.Errorf("SplitRawMessage() body = %q, want %q", gotBody, tt.wantBody)
			}
		})
	}
}
