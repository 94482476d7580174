package port

import (
	"context"
	"time"
)

// MailQuery selects the finance mails to download.
type MailQuery struct {
	Sender string
	Since  time.Time
	Before time.Time // exclusive
}

// MailDownloader fetches timesheet attachments from a mailbox into storage
// and returns the full paths of the newly written files.
type MailDownloader interface {
	Download(ctx context.Context, q MailQuery) ([]string, error)
}

// VerifyTask is the queue payload for one image.
type VerifyTask struct {
	RunID     string `json:"run_id"`
	ImagePath string `json:"image_path"`
}

// TaskEnqueuer pushes images onto the verification queue.
type TaskEnqueuer interface {
	EnqueueVerify(ctx context.Context, task VerifyTask) error
}
