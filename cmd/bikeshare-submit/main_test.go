package main

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/YuminosukeSato/bikeshare/cluster"
)

func TestSubmitRunsTrainingStep(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BIKESHARE_CLUSTER_BINARY", "/opt/bikeshare-train")
	t.Setenv("BIKESHARE_LOG_LEVEL", "error")

	var got []string
	client := cluster.NewLocalClient(func(_ context.Context, args []string) error {
		got = args
		return nil
	})
	var out bytes.Buffer
	code := run(context.Background(), []string{"bikeshare-ml", "s3://bucket/bike-share-data", "s3://bucket/models"}, &out, client)

	assert.Equal(t, 0, code, out.String())
	assert.Equal(t, []string{"/opt/bikeshare-train", "bikeshare-ml", "s3://bucket/bike-share-data", "s3://bucket/models"}, got)
	assert.Contains(t, out.String(), "submitted step")
}

func TestSubmitReportsFailedStep(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BIKESHARE_LOG_LEVEL", "error")
	client := cluster.NewLocalClient(func(context.Context, []string) error { return fmt.Errorf("exit status 1") })

	var out bytes.Buffer
	code := run(context.Background(), []string{"n", "i", "o"}, &out, client)
	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "failed: step")
}
