package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/garyjia/timesheet-prove/internal/application/port"
	"github.com/garyjia/timesheet-prove/internal/domain/entity"
	"github.com/garyjia/timesheet-prove/internal/infrastructure/storage"
	"github.com/garyjia/timesheet-prove/internal/infrastructure/worker"
	httpapi "github.com/garyjia/timesheet-prove/internal/interfaces/http"
	"github.com/garyjia/timesheet-prove/internal/queue"
	"github.com/garyjia/timesheet-prove/internal/report"
	"github.com/garyjia/timesheet-prove/internal/verification"
	"github.com/garyjia/timesheet-prove/pkg/utils"
	"go.uber.org/zap"
)

// dateRange parses --start-date and --end-date into an IMAP query window.
// The end date is inclusive.
type dateRange struct {
	start string
	end   string
}

func (d *dateRange) register(fs *flag.FlagSet) {
	fs.StringVar(&d.start, "start-date", "", "first day to fetch (YYYY-MM-DD)")
	fs.StringVar(&d.end, "end-date", "", "last day to fetch (YYYY-MM-DD)")
}

func (d *dateRange) query(sender string) (port.MailQuery, error) {
	start, err := utils.ParseDate(d.start)
	if err != nil {
		return port.MailQuery{}, fmt.Errorf("--start-date: %w", err)
	}
	end, err := utils.ParseDate(d.end)
	if err != nil {
		return port.MailQuery{}, fmt.Errorf("--end-date: %w", err)
	}
	if err := utils.ValidateDateRange(start, end); err != nil {
		return port.MailQuery{}, err
	}
	return port.MailQuery{Sender: sender, Since: start, Before: end.AddDate(0, 0, 1)}, nil
}

func runDownload(ctx context.Context, args []string) error {
	var (
		common commonFlags
		dates  dateRange
		images string
	)
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	common.register(fs)
	dates.register(fs)
	fs.StringVar(&images, "images", "", "download folder (default verification.images_dir)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(common)
	if err != nil {
		return err
	}
	defer a.close()

	_, err = a.download(ctx, dates, a.imagesDir(images))
	return err
}

func runVerify(ctx context.Context, args []string) error {
	var (
		common      commonFlags
		images      string
		ref         string
		writeReport bool
	)
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	common.register(fs)
	fs.StringVar(&images, "images", "", "image folder (default verification.images_dir)")
	fs.StringVar(&ref, "reference", "", "reference table (default reference.path)")
	fs.BoolVar(&writeReport, "report", false, "also write an XLSX report to storage.report_dir")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(common)
	if err != nil {
		return err
	}
	defer a.close()
	if ref != "" {
		a.cfg.Reference.Path = ref
	}

	return a.verifyFolder(ctx, a.imagesDir(images), writeReport)
}

func runDownloadAndVerify(ctx context.Context, args []string) error {
	var (
		common      commonFlags
		dates       dateRange
		images      string
		writeReport bool
	)
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	common.register(fs)
	dates.register(fs)
	fs.StringVar(&images, "images", "", "image folder (default verification.images_dir)")
	fs.BoolVar(&writeReport, "report", false, "also write an XLSX report to storage.report_dir")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(common)
	if err != nil {
		return err
	}
	defer a.close()

	dir := a.imagesDir(images)
	if _, err := a.download(ctx, dates, dir); err != nil {
		return err
	}
	return a.verifyFolder(ctx, dir, writeReport)
}

func runServe(ctx context.Context, args []string) error {
	var (
		common  commonFlags
		noQueue bool
	)
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	common.register(fs)
	fs.BoolVar(&noQueue, "no-queue", false, "run without the Redis queue")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(common)
	if err != nil {
		return err
	}
	defer a.close()

	svc, err := a.verificationService(ctx)
	if err != nil {
		return err
	}

	manager := worker.NewWorkerManager(a.logger)
	var enqueuer port.TaskEnqueuer
	if !noQueue {
		producer := queue.NewProducer(a.cfg.RedisOpt(), a.cfg.ProducerConfig(), a.logger)
		defer producer.Close()
		enqueuer = producer
		manager.Register(queue.NewConsumer(a.cfg.RedisOpt(), a.cfg.ConsumerConfig(), svc, a.logger))
	}
	if a.cfg.Mail.PollInterval > 0 {
		downloader, err := a.mailDownloader(a.cfg.Verification.ImagesDir)
		if err != nil {
			return err
		}
		manager.Register(worker.NewMailWorker(a.cfg.MailWorkerConfig(), downloader, svc, a.logger))
	}

	if err := manager.StartAll(ctx); err != nil {
		a.logger.Warn("Some workers failed to start", zap.Error(err))
	}
	defer manager.StopAll()

	uploads := storage.NewLocalFileStorage(a.cfg.Storage.UploadDir, a.logger)
	server := httpapi.NewServer(a.cfg.HTTPServerConfig(), svc, uploads, enqueuer, a.logger.Sugar())
	return server.Start(ctx)
}

func runEnqueue(ctx context.Context, args []string) error {
	var (
		common commonFlags
		images string
	)
	fs := flag.NewFlagSet("enqueue", flag.ContinueOnError)
	common.register(fs)
	fs.StringVar(&images, "images", "", "image folder (default verification.images_dir)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(common)
	if err != nil {
		return err
	}
	defer a.close()

	paths, err := verification.ListImages(a.imagesDir(images), a.logger)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return nil
	}

	svc, err := a.verificationService(ctx)
	if err != nil {
		return err
	}
	run, err := svc.StartRun(ctx, entity.RunSourceQueue)
	if err != nil {
		return err
	}

	producer := queue.NewProducer(a.cfg.RedisOpt(), a.cfg.ProducerConfig(), a.logger)
	defer producer.Close()

	enqueued := 0
	for _, p := range paths {
		if err := producer.EnqueueVerify(ctx, port.VerifyTask{RunID: run.ID, ImagePath: p}); err != nil {
			a.logger.Error("Failed to enqueue image", zap.String("path", p), zap.Error(err))
			continue
		}
		enqueued++
	}

	fmt.Printf("run %s: enqueued %d of %d images\n", run.ID, enqueued, len(paths))
	return nil
}

func (a *app) imagesDir(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return a.cfg.Verification.ImagesDir
}

func (a *app) download(ctx context.Context, dates dateRange, dir string) ([]string, error) {
	q, err := dates.query(a.cfg.Mail.Sender)
	if err != nil {
		return nil, err
	}
	downloader, err := a.mailDownloader(dir)
	if err != nil {
		return nil, err
	}

	saved, err := downloader.Download(ctx, q)
	if err != nil {
		return nil, err
	}
	a.logger.Info("Download finished", zap.String("dir", dir), zap.Int("files", len(saved)))
	return saved, nil
}

// verifyFolder verifies every image in dir as one CLI run and prints a
// report line per image followed by the totals.
func (a *app) verifyFolder(ctx context.Context, dir string, writeReport bool) error {
	paths, err := verification.ListImages(dir, a.logger)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return nil
	}

	svc, err := a.verificationService(ctx)
	if err != nil {
		return err
	}

	start := time.Now()
	run, results, err := svc.VerifyBatch(ctx, entity.RunSourceCLI, paths)
	for _, r := range results {
		fmt.Fprintln(os.Stdout, r.String())
	}
	fmt.Fprintln(os.Stdout, verification.Summarize(results).String())
	if err != nil {
		return err
	}
	a.logger.Info("Verification finished",
		zap.String("run_id", run.ID),
		zap.Int("images", len(paths)),
		zap.Duration("elapsed", time.Since(start)))

	if !writeReport {
		return nil
	}
	records, err := svc.GetResults(ctx, run.ID)
	if err != nil {
		return err
	}
	path, err := report.NewExcelWriter(a.cfg.Storage.ReportDir, a.logger).Write(run, records)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "report: %s\n", path)
	return nil
}
