// Command bikeshare-train trains the trip-duration model and publishes it.
//
// Usage:
//
//	bikeshare-train <name> <input> <output>
//
// <input> holds rides/ and stations/ CSV files; the model is written to
// <output>/<name>.v1/. Further settings come from bikeshare.yaml and
// BIKESHARE_* environment variables.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/YuminosukeSato/bikeshare/config"
	"github.com/YuminosukeSato/bikeshare/job"
	"github.com/YuminosukeSato/bikeshare/pkg/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout io.Writer) int {
	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprintf(stdout, "failed: %v\n", err)
		fmt.Fprintln(stdout, "usage: bikeshare-train <name> <input> <output>")
		return 1
	}
	if err := log.SetupLogger(cfg.Log.Level, cfg.Log.Format); err != nil {
		fmt.Fprintf(stdout, "failed: %v\n", err)
		return 1
	}
	logger := log.GetLoggerWithName("main")

	sum, err := job.Run(ctx, cfg, job.Deps{Logger: logger})
	if err != nil {
		logger.Error("run failed", log.ErrAttrKey, err, log.RunNameKey, cfg.Run.Name)
		fmt.Fprintf(stdout, "failed: %v\n", err)
		return 1
	}
	logger.Info("summary",
		log.RunIDKey, sum.RunID,
		log.LocationKey, cfg.Run.Output+"/"+sum.ArtifactDir,
		log.HyperParamsKey, sum.Params.String(),
		log.RMSEKey, sum.HoldoutRMSE,
	)
	fmt.Fprintln(stdout, "succeeded")
	return 0
}
