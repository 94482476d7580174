// Command prove checks timesheet images against the agreed hours in the
// payroll reference table.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
)

const usage = `usage: prove <command> [flags]

commands:
  download  --start-date YYYY-MM-DD --end-date YYYY-MM-DD   fetch timesheets from the finance mailbox
  verify    [--images DIR] [--reference FILE] [--report]     verify every image in a folder
  run       --start-date ... --end-date ... [--report]       download, then verify the folder
  serve                                                      HTTP API, queue consumer and mail poller
  enqueue   [--images DIR]                                   push folder images onto the queue

common flags:
  --config FILE   YAML config (default configs/config.yaml, optional)
  --env FILE      dotenv file (default .env, optional)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := dispatch(ctx, os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "prove %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "download":
		return runDownload(ctx, args)
	case "verify":
		return runVerify(ctx, args)
	case "run":
		return runDownloadAndVerify(ctx, args)
	case "serve":
		return runServe(ctx, args)
	case "enqueue":
		return runEnqueue(ctx, args)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// commonFlags are accepted by every command.
type commonFlags struct {
	configPath string
	envPath    string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "configs/config.yaml", "path to YAML config")
	fs.StringVar(&c.envPath, "env", ".env", "path to dotenv file")
}

// loadEnv applies the dotenv file without overriding variables already set.
func (c *commonFlags) loadEnv() error {
	if c.envPath == "" {
		return nil
	}
	if err := gotenv.Load(c.envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", c.envPath, err)
	}
	return nil
}
