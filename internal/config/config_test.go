package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/garyjia/timesheet-prove/internal/extraction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))

	require.NoError(t, err)
	assert.Equal(t, "sum timer til utbetaling", cfg.Matching.AnchorPhrase)
	assert.Equal(t, 0.6, cfg.Matching.AnchorThreshold)
	assert.Equal(t, 30.0, cfg.Matching.RowTolerance)
	assert.Equal(t, 0.1, cfg.Approval.Tolerance)
	assert.Equal(t, 60*time.Second, cfg.OCR.Timeout)
	assert.Equal(t, []string{"nor", "eng"}, cfg.OCR.Languages)
	assert.True(t, cfg.Mail.DropLastAttachment)
	assert.Equal(t, "INBOX", cfg.Mail.Mailbox)
	assert.Equal(t, "0.0.0.0:8080", cfg.ServerAddr())
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
matching:
  anchor_mode: word
  row_tolerance: 20
approval:
  tolerance: 0.25
mail:
  drop_last_attachment: false
logger:
  format: console
`)
	t.Setenv("PROVE_OCR_TIMEOUT", "15s")
	t.Setenv("IMAP_USER", "payroll@example.com")
	t.Setenv("FINANCE_SENDER", "finance@example.com")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "word", cfg.Matching.AnchorMode)
	assert.Equal(t, 20.0, cfg.Matching.RowTolerance)
	assert.Equal(t, 0.25, cfg.Approval.Tolerance)
	assert.False(t, cfg.Mail.DropLastAttachment)
	assert.Equal(t, 15*time.Second, cfg.OCR.Timeout)
	assert.Equal(t, "payroll@example.com", cfg.Mail.Username)
	assert.Equal(t, "finance@example.com", cfg.Mail.Sender)

	vc := cfg.VerifierConfig()
	assert.Equal(t, extraction.MatchWord, vc.AnchorMode)
	assert.Equal(t, 15*time.Second, vc.Timeout)

	assert.False(t, cfg.MailParseOptions().DropLast)
	assert.Equal(t, "finance@example.com", cfg.MailWorkerConfig().Sender)
	assert.Equal(t, "timesheets", cfg.ProducerConfig().Queue)
	assert.Equal(t, int64(20), cfg.HTTPServerConfig().MaxUploadMB)
	assert.Equal(t, []string{"raw_pictures", "uploads"}, cfg.HTTPServerConfig().ImageRoots)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{name: "anchor threshold above one", yaml: "matching:\n  anchor_threshold: 1.5\n", wantErr: "matching.anchor_threshold"},
		{name: "unknown anchor mode", yaml: "matching:\n  anchor_mode: fuzzy\n", wantErr: "matching.anchor_mode"},
		{name: "zero row tolerance", yaml: "matching:\n  row_tolerance: 0\n", wantErr: "matching.row_tolerance"},
		{name: "negative tolerance", yaml: "approval:\n  tolerance: -1\n", wantErr: "approval.tolerance"},
		{name: "bad log format", yaml: "logger:\n  format: xml\n", wantErr: "logger.format"},
		{name: "negative poll interval", yaml: "mail:\n  poll_interval: -1m\n", wantErr: "mail.poll_interval"},
		{name: "malformed yaml", yaml: "matching: [", wantErr: "failed to read config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateMail(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Mail.Username = "payroll@example.com"
	cfg.Mail.Password = "secret"
	cfg.Mail.Sender = "finance@example.com"
	assert.NoError(t, cfg.ValidateMail())

	cfg.Mail.Sender = "not-an-email"
	assert.ErrorContains(t, cfg.ValidateMail(), "FINANCE_SENDER")

	cfg.Mail.Sender = "finance@example.com"
	cfg.Mail.Password = ""
	assert.ErrorContains(t, cfg.ValidateMail(), "IMAP_PASSWORD")
}
