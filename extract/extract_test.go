package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func utc(y int, m time.Month, d, hh, mm, ss int) time.Time {
	return time.Date(y, m, d, hh, mm, ss, 0, time.UTC)
}

func TestExtract_EML(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    time.Time
		wantOK  bool
	}{
		{
			name:    "rfc 5322 date header",
			content: "From: clerk@example.org\r\nDate: Tue, 07 Mar 2023 10:15:00 +0100\r\nSubject: Return\r\n\r\nbody",
			want:    time.Date(2023, time.March, 7, 10, 15, 0, 0, time.FixedZone("", 3600)),
			wantOK:  true,
		},
		{
			name:    "trailing zone comment",
			content: "Date: Mon, 5 Jan 2024 10:00:00 +0200 (SAST)\n\nbody",
			want:    utc(2024, time.January, 5, 8, 0, 0),
			wantOK:  true,
		},
		{
			name:    "comment in the middle is cleaned but still unparseable",
			content: "Date: 5 Jan 2024 (SAST) 10:00\n\nbody",
			wantOK:  false,
		},
		{
			name:    "day first numeric date",
			content: "Subject: x\nDate: 03/04/2023 14:30\n\n",
			want:    utc(2023, time.April, 3, 14, 30, 0),
			wantOK:  true,
		},
		{
			name:    "last duplicate wins",
			content: "Date: Tue, 07 Mar 2023 10:15:00 +0000\nDate: Wed, 08 Mar 2023 11:00:00 +0000\n\n",
			want:    utc(2023, time.March, 8, 11, 0, 0),
			wantOK:  true,
		},
		{
			name:    "carriage return line endings",
			content: "Subject: x\rDate: Tue, 07 Mar 2023 10:15:00 +0000\r\rbody",
			want:    utc(2023, time.March, 7, 10, 15, 0),
			wantOK:  true,
		},
		{
			name:    "date only in body",
			content: "Subject: x\n\nDate: Tue, 07 Mar 2023 10:15:00 +0000\n",
			wantOK:  false,
		},
		{
			name:    "no date header",
			content: "From: a@example.org\nSubject: x\n\nbody",
			wantOK:  false,
		},
		{
			name:    "empty content",
			content: "",
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Extract([]byte(tt.content), ExtEML)
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.True(t, tt.want.Equal(got), "got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtract_MSGLabels(t *testing.T) {
	const value = "Tue, 07 Mar 2023 10:15:00 +0000"
	want := utc(2023, time.March, 7, 10, 15, 0)

	for _, label := range []string{"Date", "Sent", "Creation-Date", "Delivery-Date", "Received"} {
		t.Run(label, func(t *testing.T) {
			content := "binary junk\x01\x02 " + label + ": " + value + "\r\nmore junk"
			got, ok := Extract([]byte(content), ExtMSG)
			require.True(t, ok)
			assert.True(t, want.Equal(got), "got %v", got)
		})
	}
}

func TestExtract_MSGPriority(t *testing.T) {
	content := "Sent: 03/04/2023 14:30\nsome text\nDate: 2023-05-01 09:00:00\n"
	got, ok := Extract([]byte(content), ExtMSG)
	require.True(t, ok)
	assert.Equal(t, utc(2023, time.May, 1, 9, 0, 0), got)
}

func TestExtract_MSGSentDayFirst(t *testing.T) {
	got, ok := Extract([]byte("Sent: 03/04/2023 14:30"), ExtMSG)
	require.True(t, ok)
	assert.Equal(t, utc(2023, time.April, 3, 14, 30, 0), got)
}

func TestExtract_MSGFallsThroughToContent(t *testing.T) {
	content := "Subject: quarterly return\nCreation-Date: garbled\n\nGenerated 2023-05-01 09:00:00 by the ledger.\n"
	got, ok := Extract([]byte(content), ExtMSG)
	require.True(t, ok)
	assert.Equal(t, utc(2023, time.May, 1, 9, 0, 0), got)
}

func TestExtract_MSGContentPatterns(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    time.Time
	}{
		{"dotted numeric", "Report dated 15.06.2023 for the municipality", utc(2023, time.June, 15, 0, 0, 0)},
		{"slashed two digit year", "valid until 03/04/23 only", utc(2023, time.April, 3, 0, 0, 0)},
		{"day month year", "submitted on 5 March 2024 as agreed", utc(2024, time.March, 5, 0, 0, 0)},
		{"month day year", "received Mar 5, 2024 at the office", utc(2024, time.March, 5, 0, 0, 0)},
		{"iso beats numeric", "07/08/2022 and 2023-05-01 09:00:00", utc(2023, time.May, 1, 9, 0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Extract([]byte(tt.content), ExtMSG)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtract_MSGNoDate(t *testing.T) {
	_, ok := Extract([]byte("hello world, nothing to see here"), ExtMSG)
	assert.False(t, ok)
}

func TestExtract_MSGUTF16(t *testing.T) {
	var wide []byte
	for _, b := range []byte("Sent: 03/04/2023 14:30\r\n") {
		wide = append(wide, b, 0)
	}
	content := append([]byte{0xd0, 0xcf, 0x11, 0xe0}, wide...)

	got, ok := Extract(content, ExtMSG)
	require.True(t, ok)
	assert.Equal(t, utc(2023, time.April, 3, 14, 30, 0), got)
}

func TestExtract_UnsupportedExtension(t *testing.T) {
	content := []byte("Date: Tue, 07 Mar 2023 10:15:00 +0000\n\n")
	for _, ext := range []string{"txt", "pdf", "", ".eml"} {
		_, ok := Extract(content, ext)
		assert.False(t, ok, "extension %q", ext)
	}
}

func TestExtract_Idempotent(t *testing.T) {
	e := New(nil)
	inputs := []struct {
		content string
		ext     string
	}{
		{"Date: Tue, 07 Mar 2023 10:15:00 +0000\n\n", ExtEML},
		{"Creation-Date: garbled\n2023-05-01 09:00:00", ExtMSG},
		{"nothing", ExtMSG},
	}
	for _, in := range inputs {
		t1, ok1 := e.Extract([]byte(in.content), in.ext)
		t2, ok2 := e.Extract([]byte(in.content), in.ext)
		assert.Equal(t, ok1, ok2)
		assert.True(t, t1.Equal(t2))
	}
}

func TestExtensionOf(t *testing.T) {
	assert.Equal(t, "eml", ExtensionOf("Return March.EML"))
	assert.Equal(t, "msg", ExtensionOf("archive.tar.msg"))
	assert.Equal(t, "", ExtensionOf("README"))
}

func BenchmarkExtract_MSG(b *testing.B) {
	content := []byte(strings.Repeat("filler text without dates\n", 200) + "Generated 2023-05-01 09:00:00\n")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Extract(content, ExtMSG)
	}
}

func TestParseDirect_ObsoleteZones(t *testing.T) {
	tests := []struct {
		zone  string
		hours int
	}{
		{"UT", 0}, {"GMT", 0}, {"Z", 0},
		{"EST", -5}, {"EDT", -4},
		{"CST", -6}, {"CDT", -5},
		{"MST", -7}, {"MDT", -6},
		{"PST", -8}, {"PDT", -7},
		{"A", 0}, {"M", 0}, {"N", 0}, {"Y", 0},
	}

	for _, tt := range tests {
		t.Run(tt.zone, func(t *testing.T) {
			got, ok := ParseDirect("Fri, 5 Jan 2024 10:00:00 " + tt.zone)
			require.True(t, ok)
			want := utc(2024, time.January, 5, 10-tt.hours, 0, 0)
			assert.True(t, want.Equal(got), "got %v, want %v", got, want)
			assert.Equal(t, "2024-01-05 10:00:00", got.Format("2006-01-02 15:04:05"))
		})
	}
}

func TestParseDirect_IndependentOfLocalZone(t *testing.T) {
	saved := time.Local
	t.Cleanup(func() { time.Local = saved })

	inputs := []string{
		"Fri, 5 Jan 2024 10:00:00 EST",
		"Fri, 5 Jan 2024 10:00:00 -0500",
		"Fri, 5 Jan 2024 10:00:00 SAST",
		"2024-01-05 10:00:00 SAST",
		"Fri Jan  5 10:00:00 PDT 2024",
		"Mon Jan  8 10:00:00 +0200 2024",
	}

	results := make(map[string][]time.Time)
	for _, loc := range []*time.Location{
		time.UTC,
		time.FixedZone("EST", -5*3600),
		time.FixedZone("SAST", 2*3600),
		time.FixedZone("PDT", -7*3600),
	} {
		time.Local = loc
		for _, in := range inputs {
			got, ok := ParseDirect(in)
			require.True(t, ok, "%s under %s", in, loc)
			assert.NotSame(t, time.Local, got.Location(), "%s under %s", in, loc)
			results[in] = append(results[in], got)
		}
	}

	for in, got := range results {
		for _, g := range got[1:] {
			assert.True(t, got[0].Equal(g), "%s: %v != %v", in, got[0], g)
		}
	}

	time.Local = time.FixedZone("SAST", 2*3600)
	got, _ := Extract([]byte("Date: Fri, 5 Jan 2024 10:00:00 EST\n\n"), ExtEML)
	assert.True(t, utc(2024, time.January, 5, 15, 0, 0).Equal(got), "got %v", got)
	got, _ = ParseDirect("Fri, 5 Jan 2024 10:00:00 SAST")
	assert.True(t, utc(2024, time.January, 5, 10, 0, 0).Equal(got), "unknown abbreviations read as offset zero, got %v", got)
}
