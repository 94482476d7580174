package mail

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/garyjia/timesheet-prove/internal/application/port"
	"github.com/garyjia/timesheet-prove/internal/infrastructure/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// "hello" and "logo" base64 encoded
const (
	helloB64 = "aGVsbG8="
	logoB64  = "bG9nbw=="
)

func buildMessage(subject string, parts ...string) []byte {
	var b strings.Builder
	b.WriteString("From: finance@example.com\n")
	b.WriteString("To: payroll@example.com\n")
	b.WriteString("Subject: " + subject + "\n")
	b.WriteString("Date: Mon, 02 Mar 2026 10:00:00 +0100\n")
	b.WriteString("MIME-Version: 1.0\n")
	b.WriteString("Content-Type: multipart/mixed; boundary=\"BOUNDARY\"\n\n")
	b.WriteString("--BOUNDARY\nContent-Type: text/plain; charset=utf-8\n\nSee attached timesheets.\n")
	for _, p := range parts {
		b.WriteString("--BOUNDARY\n" + p)
	}
	b.WriteString("--BOUNDARY--\n")
	return []byte(strings.ReplaceAll(b.String(), "\n", "\r\n"))
}

func attachmentPart(contentType, filename, payload string) string {
	return "Content-Type: " + contentType + "\n" +
		"Content-Disposition: attachment; filename=\"" + filename + "\"\n" +
		"Content-Transfer-Encoding: base64\n\n" + payload + "\n"
}

func TestParseMessage(t *testing.T) {
	raw := buildMessage("Timesheets March",
		attachmentPart("image/png", "jon.png", helloB64),
		attachmentPart("application/msword", "notes.doc", helloB64),
		attachmentPart("image/jpeg", "empty.jpg", ""),
		attachmentPart("image/png", "logo.png", logoB64),
	)

	tests := []struct {
		name      string
		opts      ParseOptions
		wantFiles []string
	}{
		{name: "keeps allowed extensions", opts: ParseOptions{}, wantFiles: []string{"jon.png", "logo.png"}},
		{name: "drops last attachment", opts: ParseOptions{DropLast: true}, wantFiles: []string{"jon.png"}},
		{name: "custom extensions", opts: ParseOptions{Extensions: []string{".DOC"}}, wantFiles: []string{"notes.doc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseMessage(strings.NewReader(string(raw)), tt.opts)
			require.NoError(t, err)

			assert.Equal(t, "Timesheets March", msg.Subject)
			assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), msg.Date.UTC())
			var names []string
			for _, a := range msg.Attachments {
				names = append(names, a.Filename)
			}
			assert.Equal(t, tt.wantFiles, names)
		})
	}
}

func TestParseMessage_SingleAttachmentKeptWithDropLast(t *testing.T) {
	raw := buildMessage("One", attachmentPart("image/png", "jon.png", helloB64))

	msg, err := ParseMessage(strings.NewReader(string(raw)), ParseOptions{DropLast: true})

	require.NoError(t, err)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, []byte("hello"), msg.Attachments[0].Content)
}

func TestUniqueName(t *testing.T) {
	date := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, "20260302-090000__Timesheets_March__jon.png", UniqueName(date, "Timesheets March", "jon.png"))
	assert.Equal(t, "20260302-090000__ab__c_d.png", UniqueName(date, "a/b", "c d.png"))
	assert.Equal(t, "undated__x__y.pdf", UniqueName(time.Time{}, "x", "y.pdf"))
}

type fakeSource struct {
	raws [][]byte
	err  error
}

func (f *fakeSource) Messages(ctx context.Context, q port.MailQuery) ([][]byte, error) {
	return f.raws, f.err
}

func TestDownloader_Download(t *testing.T) {
	dir := t.TempDir()
	fs := storage.NewLocalFileStorage(dir, zap.NewNop())
	src := &fakeSource{raws: [][]byte{
		buildMessage("Timesheets March",
			attachmentPart("image/png", "jon.png", helloB64),
			attachmentPart("image/png", "logo.png", logoB64)),
		[]byte("not a mime message"),
	}}
	d := NewDownloader(src, fs, ParseOptions{DropLast: true}, zap.NewNop())
	q := port.MailQuery{Sender: "finance@example.com"}

	saved, err := d.Download(context.Background(), q)
	require.NoError(t, err)
	want := filepath.Join(dir, "20260302-090000__Timesheets_March__jon.png")
	assert.Equal(t, []string{want}, saved)

	content, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), content)

	// second run finds the file already present
	saved, err = d.Download(context.Background(), q)
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestDownloader_SourceError(t *testing.T) {
	boom := errors.New("login failed")
	d := NewDownloader(&fakeSource{err: boom}, storage.NewLocalFileStorage(t.TempDir(), zap.NewNop()), ParseOptions{}, zap.NewNop())

	_, err := d.Download(context.Background(), port.MailQuery{})

	assert.ErrorIs(t, err, boom)
}

func TestSearchCriteria(t *testing.T) {
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	before := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	c := searchCriteria(port.MailQuery{Sender: "finance@example.com", Since: since, Before: before})

	assert.Equal(t, "finance@example.com", c.Header.Get("From"))
	assert.Equal(t, since, c.Since)
	assert.Equal(t, before, c.Before)
}
