package mail

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/garyjia/timesheet-prove/internal/application/port"
	"go.uber.org/zap"
)

// IMAPConfig holds connection settings for IMAPSource.
type IMAPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Mailbox  string
	Timeout  time.Duration
}

// IMAPSource reads messages from an IMAP mailbox over TLS.
type IMAPSource struct {
	config IMAPConfig
	logger *zap.Logger
}

var _ Source = (*IMAPSource)(nil)

// NewIMAPSource creates a new IMAPSource
func NewIMAPSource(cfg IMAPConfig, logger *zap.Logger) *IMAPSource {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	return &IMAPSource{config: cfg, logger: logger}
}

// Messages logs in, selects the mailbox read-only and returns the bodies of
// messages from q.Sender received in [q.Since, q.Before). Messages are not
// marked as seen.
func (s *IMAPSource) Messages(ctx context.Context, q port.MailQuery) ([][]byte, error) {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	if s.config.Timeout > 0 {
		c.Timeout = s.config.Timeout
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.Terminate()
		case <-done:
		}
	}()
	defer c.Logout()

	if err := c.Login(s.config.Username, s.config.Password); err != nil {
		return nil, fmt.Errorf("failed to login: %w", err)
	}
	if _, err := c.Select(s.config.Mailbox, true); err != nil {
		return nil, fmt.Errorf("failed to select mailbox %s: %w", s.config.Mailbox, err)
	}

	uids, err := c.UidSearch(searchCriteria(q))
	if err != nil {
		return nil, fmt.Errorf("failed to search mailbox: %w", err)
	}
	s.logger.Debug("Mailbox searched", zap.String("mailbox", s.config.Mailbox), zap.Int("matches", len(uids)))
	if len(uids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	section := &imap.BodySectionName{Peek: true}

	messages := make(chan *imap.Message, 10)
	fetchErr := make(chan error, 1)
	go func() {
		fetchErr <- c.UidFetch(seqset, []imap.FetchItem{section.FetchItem()}, messages)
	}()

	var bodies [][]byte
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			s.logger.Warn("Message has no body", zap.Uint32("uid", msg.Uid))
			continue
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			s.logger.Warn("Failed to read message body", zap.Uint32("uid", msg.Uid), zap.Error(err))
			continue
		}
		bodies = append(bodies, raw)
	}
	if err := <-fetchErr; err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	return bodies, nil
}

func searchCriteria(q port.MailQuery) *imap.SearchCriteria {
	criteria := imap.NewSearchCriteria()
	if q.Sender != "" {
		criteria.Header.Add("From", q.Sender)
	}
	criteria.Since = q.Since
	criteria.Before = q.Before
	return criteria
}
