package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/timesheet-prove/internal/application/port"
	"github.com/garyjia/timesheet-prove/internal/infrastructure/storage"
	"go.uber.org/zap"
)

// Source returns the raw RFC 822 bodies of the mails matching q.
type Source interface {
	Messages(ctx context.Context, q port.MailQuery) ([][]byte, error)
}

// Downloader stores the attachments of matching mails.
type Downloader struct {
	source  Source
	storage port.FileStorage
	opts    ParseOptions
	logger  *zap.Logger
}

var _ port.MailDownloader = (*Downloader)(nil)

// NewDownloader creates a new Downloader
func NewDownloader(source Source, fs port.FileStorage, opts ParseOptions, logger *zap.Logger) *Downloader {
	return &Downloader{source: source, storage: fs, opts: opts, logger: logger}
}

// Download fetches the mails matching q and saves each kept attachment once.
// It returns the full paths of newly written files. A broken message is
// logged and skipped.
func (d *Downloader) Download(ctx context.Context, q port.MailQuery) ([]string, error) {
	raws, err := d.source.Messages(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	d.logger.Info("Messages found",
		zap.String("sender", q.Sender),
		zap.Time("since", q.Since),
		zap.Time("before", q.Before),
		zap.Int("count", len(raws)))

	var saved []string
	for i, raw := range raws {
		if err := ctx.Err(); err != nil {
			return saved, err
		}

		msg, err := ParseMessage(bytes.NewReader(raw), d.opts)
		if err != nil {
			d.logger.Warn("Skipping unreadable message", zap.Int("index", i), zap.Error(err))
			continue
		}

		for _, a := range msg.Attachments {
			name := UniqueName(msg.Date, msg.Subject, a.Filename)
			err := d.storage.SaveNew(ctx, name, a.Content)
			switch {
			case errors.Is(err, storage.ErrExists):
				d.logger.Info("Skipping existing attachment", zap.String("file", name))
			case err != nil:
				d.logger.Error("Failed to save attachment", zap.String("file", name), zap.Error(err))
			default:
				saved = append(saved, d.storage.GetFullPath(name))
				d.logger.Info("Attachment downloaded",
					zap.String("file", name),
					zap.Int("size", len(a.Content)))
			}
		}
	}

	return saved, nil
}
