package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	OCR          OCRConfig          `mapstructure:"ocr"`
	Matching     MatchingConfig     `mapstructure:"matching"`
	Approval     ApprovalConfig     `mapstructure:"approval"`
	Reference    ReferenceConfig    `mapstructure:"reference"`
	Verification VerificationConfig `mapstructure:"verification"`
	Mail         MailConfig         `mapstructure:"mail"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Queue        QueueConfig        `mapstructure:"queue"`
	Server       ServerConfig       `mapstructure:"server"`
	Logger       LoggerConfig       `mapstructure:"logger"`
}

// OCRConfig holds Tesseract and image loading settings
type OCRConfig struct {
	Languages      []string      `mapstructure:"languages"`
	TessdataPrefix string        `mapstructure:"tessdata_prefix"`
	TokenPSM       int           `mapstructure:"token_psm"`
	TextPSM        int           `mapstructure:"text_psm"`
	PhraseGap      float64       `mapstructure:"phrase_gap"`
	Preprocess     bool          `mapstructure:"preprocess"`
	MinWidth       int           `mapstructure:"min_width"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// MatchingConfig holds anchor, row and name matching settings
type MatchingConfig struct {
	AnchorPhrase    string  `mapstructure:"anchor_phrase"`
	AnchorThreshold float64 `mapstructure:"anchor_threshold"`
	AnchorMode      string  `mapstructure:"anchor_mode"` // token or word
	RowTolerance    float64 `mapstructure:"row_tolerance"`
	NameThreshold   float64 `mapstructure:"name_threshold"`
}

// ApprovalConfig holds the hours tolerance
type ApprovalConfig struct {
	Tolerance float64 `mapstructure:"tolerance"`
}

// ReferenceConfig points at the payroll reference table (.csv or .xlsx)
type ReferenceConfig struct {
	Path string `mapstructure:"path"`
}

// VerificationConfig holds batch settings
type VerificationConfig struct {
	Workers   int    `mapstructure:"workers"` // 0 means one per CPU
	ImagesDir string `mapstructure:"images_dir"`
}

// MailConfig holds IMAP settings for downloading timesheets
type MailConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Mailbox  string        `mapstructure:"mailbox"`
	Sender   string        `mapstructure:"sender"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// DropLastAttachment skips the final attachment of multi-attachment
	// mails, which is usually a signature logo. Unverified; see DESIGN.md.
	DropLastAttachment bool     `mapstructure:"drop_last_attachment"`
	Extensions         []string `mapstructure:"extensions"`
	// PollInterval enables the mailbox poller in serve mode when positive.
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Lookback     time.Duration `mapstructure:"lookback"`
}

// StorageConfig holds local directories
type StorageConfig struct {
	UploadDir string `mapstructure:"upload_dir"`
	ReportDir string `mapstructure:"report_dir"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// QueueConfig holds Redis and asynq worker settings
type QueueConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	Name          string        `mapstructure:"name"`
	Concurrency   int           `mapstructure:"concurrency"`
	MaxRetry      int           `mapstructure:"max_retry"`
	TaskTimeout   time.Duration `mapstructure:"task_timeout"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxUploadMB  int64         `mapstructure:"max_upload_mb"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load reads configuration from an optional YAML file, then PROVE_* and
// credential environment variables. A missing file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// OCR defaults: PSM 11 sparse text for tokens, PSM 6 single block for the name pass
	v.SetDefault("ocr.languages", []string{"nor", "eng"})
	v.SetDefault("ocr.tessdata_prefix", "")
	v.SetDefault("ocr.token_psm", 11)
	v.SetDefault("ocr.text_psm", 6)
	v.SetDefault("ocr.phrase_gap", 1.0)
	v.SetDefault("ocr.preprocess", false)
	v.SetDefault("ocr.min_width", 0)
	v.SetDefault("ocr.timeout", 60*time.Second)

	v.SetDefault("matching.anchor_phrase", "sum timer til utbetaling")
	v.SetDefault("matching.anchor_threshold", 0.6)
	v.SetDefault("matching.anchor_mode", "token")
	v.SetDefault("matching.row_tolerance", 30.0)
	v.SetDefault("matching.name_threshold", 0.6)

	v.SetDefault("approval.tolerance", 0.1)

	v.SetDefault("reference.path", "reference_data/reference.csv")

	v.SetDefault("verification.workers", 0)
	v.SetDefault("verification.images_dir", "raw_pictures")

	v.SetDefault("mail.host", "imap.gmail.com")
	v.SetDefault("mail.port", 993)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.mailbox", "INBOX")
	v.SetDefault("mail.sender", "")
	v.SetDefault("mail.timeout", 30*time.Second)
	v.SetDefault("mail.drop_last_attachment", true)
	v.SetDefault("mail.extensions", []string{".png", ".jpg", ".jpeg", ".pdf"})
	v.SetDefault("mail.poll_interval", 0)
	v.SetDefault("mail.lookback", 7*24*time.Hour)

	v.SetDefault("storage.upload_dir", "uploads")
	v.SetDefault("storage.report_dir", "reports")

	v.SetDefault("database.path", "data/prove.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_password", "")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.name", "timesheets")
	v.SetDefault("queue.concurrency", 2)
	v.SetDefault("queue.max_retry", 3)
	v.SetDefault("queue.task_timeout", 2*time.Minute)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.max_upload_mb", 20)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars maps PROVE_SECTION_KEY onto section.key and binds credentials
// to their conventional names.
func bindEnvVars(v *viper.Viper) {
	v.SetEnvPrefix("PROVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv("mail.host", "PROVE_MAIL_HOST", "IMAP_HOST")
	v.BindEnv("mail.username", "PROVE_MAIL_USERNAME", "IMAP_USER")
	v.BindEnv("mail.password", "PROVE_MAIL_PASSWORD", "IMAP_PASSWORD")
	v.BindEnv("mail.sender", "PROVE_MAIL_SENDER", "FINANCE_SENDER")
	v.BindEnv("queue.redis_password", "PROVE_QUEUE_REDIS_PASSWORD", "REDIS_PASSWORD")
}

// Validate checks settings every command relies on. Mail credentials are
// checked separately by ValidateMail.
func (c *Config) Validate() error {
	if c.Matching.AnchorThreshold <= 0 || c.Matching.AnchorThreshold > 1 {
		return fmt.Errorf("matching.anchor_threshold must be in (0, 1], got %.2f", c.Matching.AnchorThreshold)
	}
	if c.Matching.NameThreshold <= 0 || c.Matching.NameThreshold > 1 {
		return fmt.Errorf("matching.name_threshold must be in (0, 1], got %.2f", c.Matching.NameThreshold)
	}
	if c.Matching.AnchorMode != "token" && c.Matching.AnchorMode != "word" {
		return fmt.Errorf("matching.anchor_mode must be token or word, got %q", c.Matching.AnchorMode)
	}
	if strings.TrimSpace(c.Matching.AnchorPhrase) == "" {
		return fmt.Errorf("matching.anchor_phrase is required")
	}
	if c.Matching.RowTolerance <= 0 {
		return fmt.Errorf("matching.row_tolerance must be positive, got %.1f", c.Matching.RowTolerance)
	}
	if c.Approval.Tolerance < 0 {
		return fmt.Errorf("approval.tolerance must not be negative, got %.2f", c.Approval.Tolerance)
	}
	if c.OCR.Timeout <= 0 {
		return fmt.Errorf("ocr.timeout must be positive")
	}
	if len(c.OCR.Languages) == 0 {
		return fmt.Errorf("ocr.languages must name at least one language")
	}
	if c.Mail.PollInterval < 0 {
		return fmt.Errorf("mail.poll_interval must not be negative")
	}
	if c.Verification.Workers < 0 {
		return fmt.Errorf("verification.workers must not be negative")
	}
	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("logger.format must be json or console, got %q", c.Logger.Format)
	}
	return nil
}
