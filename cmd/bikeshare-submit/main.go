// Command bikeshare-submit submits a training run as a step to a WAITING
// cluster.
//
// Usage:
//
//	bikeshare-submit <name> <input> <output>
//
// The step runs cluster.binary with the same positional arguments. This
// build drives the in-process cluster client: it starts a keep-alive
// cluster and runs the step on the local machine.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/YuminosukeSato/bikeshare/cluster"
	"github.com/YuminosukeSato/bikeshare/config"
	"github.com/YuminosukeSato/bikeshare/pkg/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, cluster.NewLocalClient(cluster.ExecRunner))
	stop()
	os.Exit(code)
}

// localSpec describes the cluster started for a local submission.
func localSpec(name string) cluster.Spec {
	return cluster.Spec{
		Name:         name + "-local",
		ReleaseLabel: "local",
		MasterType:   "local",
		WorkerType:   "local",
		WorkerCount:  1,
		KeepAlive:    true,
	}
}

func run(ctx context.Context, args []string, stdout io.Writer, client *cluster.LocalClient) int {
	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprintf(stdout, "failed: %v\n", err)
		fmt.Fprintln(stdout, "usage: bikeshare-submit <name> <input> <output>")
		return 1
	}
	if err := log.SetupLogger(cfg.Log.Level, cfg.Log.Format); err != nil {
		fmt.Fprintf(stdout, "failed: %v\n", err)
		return 1
	}
	logger := log.GetLoggerWithName("submit")

	if _, err := client.Create(ctx, localSpec(cfg.Run.Name)); err != nil {
		fmt.Fprintf(stdout, "failed: %v\n", err)
		return 1
	}
	cl, status, err := cluster.Submit(ctx, client, cfg.Cluster.Strict, cluster.Job{
		Binary: cfg.Cluster.Binary,
		Name:   cfg.Run.Name,
		Input:  cfg.Run.Input,
		Output: cfg.Run.Output,
	})
	if err != nil {
		fmt.Fprintf(stdout, "failed: %v\n", err)
		return 1
	}
	logger.Info("step finished", "cluster.id", cl.ID, "step.id", status.ID, "step.state", status.State)
	if status.Err != nil {
		fmt.Fprintf(stdout, "failed: step %s: %v\n", status.ID, status.Err)
		return 1
	}
	fmt.Fprintf(stdout, "submitted step %s to cluster %s\n", status.ID, cl.ID)
	return 0
}
