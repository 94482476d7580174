// Package mail downloads timesheet attachments sent by the finance office.
package mail

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"
	"github.com/garyjia/timesheet-prove/pkg/utils"
)

// DefaultExtensions are the attachment types kept when none are configured.
var DefaultExtensions = []string{".png", ".jpg", ".jpeg", ".pdf"}

// Attachment is a kept attachment of a message.
type Attachment struct {
	Filename string
	Content  []byte
}

// Message is the part of a mail needed to store its attachments.
type Message struct {
	Subject     string
	Date        time.Time
	Attachments []Attachment
}

// ParseOptions controls which attachments ParseMessage keeps.
type ParseOptions struct {
	Extensions []string
	// DropLast discards the final kept attachment when there is more than
	// one. Finance mails tend to end with a signature image.
	DropLast bool
}

// ParseMessage reads an RFC 822 message and returns its subject, date and
// the attachments whose extension is allowed. Empty payloads are skipped.
func ParseMessage(r io.Reader, opts ParseOptions) (*Message, error) {
	mr, err := gomail.CreateReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	defer mr.Close()

	msg := &Message{}
	if msg.Subject, err = mr.Header.Subject(); err != nil || msg.Subject == "" {
		msg.Subject = "no-subject"
	}
	if msg.Date, err = mr.Header.Date(); err != nil {
		msg.Date = time.Time{}
	}

	exts := opts.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}

	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read message part: %w", err)
		}

		filename := partFilename(p.Header)
		if filename == "" || !hasExtension(filename, exts) {
			continue
		}
		content, err := io.ReadAll(p.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read attachment %s: %w", filename, err)
		}
		if len(content) == 0 {
			continue
		}
		msg.Attachments = append(msg.Attachments, Attachment{Filename: filename, Content: content})
	}

	if opts.DropLast && len(msg.Attachments) > 1 {
		msg.Attachments = msg.Attachments[:len(msg.Attachments)-1]
	}
	return msg, nil
}

// UniqueName builds the stored file name <date>__<subject>__<filename>.
func UniqueName(date time.Time, subject, filename string) string {
	stamp := "undated"
	if !date.IsZero() {
		stamp = date.UTC().Format("20060102-150405")
	}
	return utils.SanitizeFilename(fmt.Sprintf("%s__%s__%s", stamp, subject, filename))
}

func partFilename(h gomail.PartHeader) string {
	switch h := h.(type) {
	case *gomail.AttachmentHeader:
		name, _ := h.Filename()
		return name
	case *gomail.InlineHeader:
		// inline images still count when they carry a file name
		_, params, err := h.ContentDisposition()
		if err != nil {
			return ""
		}
		return params["filename"]
	}
	return ""
}

func hasExtension(filename string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range exts {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}
