package main

import (
	"context"
	"fmt"

	"github.com/garyjia/timesheet-prove/internal/application/service"
	"github.com/garyjia/timesheet-prove/internal/approval"
	"github.com/garyjia/timesheet-prove/internal/config"
	"github.com/garyjia/timesheet-prove/internal/infrastructure/persistence/repository"
	"github.com/garyjia/timesheet-prove/internal/infrastructure/storage"
	"github.com/garyjia/timesheet-prove/internal/mail"
	"github.com/garyjia/timesheet-prove/internal/ocr"
	"github.com/garyjia/timesheet-prove/internal/reference"
	"github.com/garyjia/timesheet-prove/internal/verification"
	"github.com/garyjia/timesheet-prove/pkg/database"
	"github.com/garyjia/timesheet-prove/pkg/utils"
	"go.uber.org/zap"
)

// app holds the components shared by the commands. Fields are filled on
// demand so download never starts Tesseract and verify never dials IMAP.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	engine  ocr.Engine
	db      *database.DB
	service service.VerificationService
}

func newApp(flags commonFlags) (*app, error) {
	if err := flags.loadEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	logger, err := utils.NewLogger(cfg.LoggerOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) close() {
	if a.engine != nil {
		a.engine.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	a.logger.Sync()
}

// verificationService builds the OCR engine, reference table, verifier and
// persistence. OCR or reference failures abort before any image is read.
func (a *app) verificationService(ctx context.Context) (service.VerificationService, error) {
	if a.service != nil {
		return a.service, nil
	}

	engine, err := ocr.NewTesseractEngine(a.cfg.TesseractConfig(), a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OCR engine: %w", err)
	}
	a.engine = engine

	table, err := reference.Load(a.cfg.Reference.Path, a.cfg.Matching.NameThreshold, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load reference table: %w", err)
	}

	verifier := verification.NewVerifier(engine, table, approval.NewEngine(a.cfg.Approval.Tolerance), a.cfg.VerifierConfig(), a.logger)

	db, err := database.Open(a.cfg.DatabaseOptions(), a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.db = db
	if err := database.NewMigrator(db, a.logger).Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	a.service = service.NewVerificationService(
		verifier,
		repository.NewRunRepository(db, a.logger),
		repository.NewResultRepository(db, a.logger),
		db,
		a.cfg.Reference.Path,
		a.logger.Sugar(),
	)
	return a.service, nil
}

// mailDownloader saves attachments into dir.
func (a *app) mailDownloader(dir string) (*mail.Downloader, error) {
	if err := a.cfg.ValidateMail(); err != nil {
		return nil, err
	}
	source := mail.NewIMAPSource(a.cfg.IMAPConfig(), a.logger)
	fs := storage.NewLocalFileStorage(dir, a.logger)
	return mail.NewDownloader(source, fs, a.cfg.MailParseOptions(), a.logger), nil
}
