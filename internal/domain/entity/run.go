package entity

import "time"

// Run status constants
const (
	RunStatusRunning   = "RUNNING"
	RunStatusCompleted = "COMPLETED"
	RunStatusFailed    = "FAILED"
)

// Run source constants
const (
	RunSourceCLI   = "CLI"
	RunSourceHTTP  = "HTTP"
	RunSourceQueue = "QUEUE"
	RunSourceMail  = "MAIL"
)

// VerificationRun groups the results of one batch.
type VerificationRun struct {
	ID                  string     `json:"id"`
	Source              string     `json:"source"`
	ReferencePath       string     `json:"reference_path"`
	Status              string     `json:"status"`
	Total               int        `json:"total"`
	Approved            int        `json:"approved"`
	Rejected            int        `json:"rejected"`
	NameNotFound        int        `json:"name_not_found"`
	HoursNotExtractable int        `json:"hours_not_extractable"`
	StartedAt           time.Time  `json:"started_at"`
	FinishedAt          *time.Time `json:"finished_at,omitempty"`
}

// IsFinished returns true once the run has been closed.
func (r *VerificationRun) IsFinished() bool {
	return r.Status != RunStatusRunning
}

// VerificationRecord is a persisted verification result.
type VerificationRecord struct {
	ID            int64     `json:"id"`
	RunID         string    `json:"run_id"`
	ImagePath     string    `json:"image_path"`
	ExtractedName string    `json:"extracted_name"`
	MatchedName   *string   `json:"matched_name,omitempty"`
	ReportedHours *float64  `json:"reported_hours,omitempty"`
	AgreedHours   *float64  `json:"agreed_hours,omitempty"`
	Status        string    `json:"status"`
	Difference    float64   `json:"difference"`
	Rationale     string    `json:"rationale"`
	Failure       string    `json:"failure,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	DurationMs    int64     `json:"duration_ms"`
	CreatedAt     time.Time `json:"created_at"`
}
