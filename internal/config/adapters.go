package config

import (
	"fmt"
	"strings"

	"github.com/garyjia/timesheet-prove/internal/extraction"
	"github.com/garyjia/timesheet-prove/internal/infrastructure/worker"
	httpapi "github.com/garyjia/timesheet-prove/internal/interfaces/http"
	"github.com/garyjia/timesheet-prove/internal/mail"
	"github.com/garyjia/timesheet-prove/internal/ocr"
	"github.com/garyjia/timesheet-prove/internal/queue"
	"github.com/garyjia/timesheet-prove/internal/verification"
	"github.com/garyjia/timesheet-prove/pkg/database"
	"github.com/garyjia/timesheet-prove/pkg/utils"
)

// TesseractConfig converts the OCR section for ocr.NewTesseractEngine.
func (c *Config) TesseractConfig() ocr.TesseractConfig {
	return ocr.TesseractConfig{
		Languages:      c.OCR.Languages,
		TessdataPrefix: c.OCR.TessdataPrefix,
		TokenPSM:       c.OCR.TokenPSM,
		TextPSM:        c.OCR.TextPSM,
		PhraseGap:      c.OCR.PhraseGap,
		MaxConcurrent:  c.Verification.Workers,
	}
}

// VerifierConfig converts the matching, OCR and verification sections for
// verification.NewVerifier.
func (c *Config) VerifierConfig() verification.Config {
	return verification.Config{
		AnchorPhrase:    c.Matching.AnchorPhrase,
		AnchorThreshold: c.Matching.AnchorThreshold,
		AnchorMode:      extraction.MatchMode(c.Matching.AnchorMode),
		RowTolerance:    c.Matching.RowTolerance,
		Timeout:         c.OCR.Timeout,
		Workers:         c.Verification.Workers,
		Load: ocr.LoadOptions{
			Binarize: c.OCR.Preprocess,
			MinWidth: c.OCR.MinWidth,
		},
	}
}

// DatabaseOptions converts the database section for database.Open.
func (c *Config) DatabaseOptions() database.Config {
	return database.Config{
		Path:            c.Database.Path,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
	}
}

// LoggerOptions converts the logger section for utils.NewLogger.
func (c *Config) LoggerOptions() utils.LoggerConfig {
	return utils.LoggerConfig{
		Level:      c.Logger.Level,
		OutputPath: c.Logger.OutputPath,
		Format:     c.Logger.Format,
	}
}

// ServerAddr returns host:port for the HTTP server.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ValidateMail checks the settings needed to download from IMAP.
func (c *Config) ValidateMail() error {
	if strings.TrimSpace(c.Mail.Host) == "" {
		return fmt.Errorf("mail.host (IMAP_HOST) is required")
	}
	if c.Mail.Username == "" {
		return fmt.Errorf("mail.username (IMAP_USER) is required")
	}
	if c.Mail.Password == "" {
		return fmt.Errorf("mail.password (IMAP_PASSWORD) is required")
	}
	if err := utils.ValidateEmail(c.Mail.Sender); err != nil {
		return fmt.Errorf("mail.sender (FINANCE_SENDER): %w", err)
	}
	if c.Mail.Port <= 0 {
		return fmt.Errorf("mail.port must be positive")
	}
	return nil
}

// IMAPConfig converts the mail section for mail.NewIMAPSource.
func (c *Config) IMAPConfig() mail.IMAPConfig {
	return mail.IMAPConfig{
		Host:     c.Mail.Host,
		Port:     c.Mail.Port,
		Username: c.Mail.Username,
		Password: c.Mail.Password,
		Mailbox:  c.Mail.Mailbox,
		Timeout:  c.Mail.Timeout,
	}
}

// MailParseOptions returns the attachment filter for mail.NewDownloader.
func (c *Config) MailParseOptions() mail.ParseOptions {
	return mail.ParseOptions{
		Extensions: c.Mail.Extensions,
		DropLast:   c.Mail.DropLastAttachment,
	}
}

// MailWorkerConfig converts the mail section for worker.NewMailWorker.
func (c *Config) MailWorkerConfig() worker.MailWorkerConfig {
	cfg := worker.DefaultMailWorkerConfig()
	cfg.PollInterval = c.Mail.PollInterval
	cfg.Lookback = c.Mail.Lookback
	cfg.Sender = c.Mail.Sender
	return cfg
}

// RedisOpt returns the Redis connection for the queue.
func (c *Config) RedisOpt() queue.RedisOpt {
	return queue.RedisOpt{
		Addr:     c.Queue.RedisAddr,
		Password: c.Queue.RedisPassword,
		DB:       c.Queue.RedisDB,
	}
}

// ProducerConfig converts the queue section for queue.NewProducer.
func (c *Config) ProducerConfig() queue.ProducerConfig {
	return queue.ProducerConfig{
		Queue:    c.Queue.Name,
		MaxRetry: c.Queue.MaxRetry,
		Timeout:  c.Queue.TaskTimeout,
	}
}

// ConsumerConfig converts the queue section for queue.NewConsumer.
func (c *Config) ConsumerConfig() queue.ConsumerConfig {
	return queue.ConsumerConfig{
		Queue:       c.Queue.Name,
		Concurrency: c.Queue.Concurrency,
		TaskTimeout: c.Queue.TaskTimeout,
	}
}

// HTTPServerConfig converts the server section for the HTTP API.
func (c *Config) HTTPServerConfig() httpapi.ServerConfig {
	return httpapi.ServerConfig{
		Host:         c.Server.Host,
		Port:         c.Server.Port,
		ReadTimeout:  c.Server.ReadTimeout,
		WriteTimeout: c.Server.WriteTimeout,
		MaxUploadMB:  c.Server.MaxUploadMB,
		ImageRoots:   []string{c.Verification.ImagesDir, c.Storage.UploadDir},
	}
}
