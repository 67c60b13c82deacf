package cluster

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/bikeshare/pkg/errors"
)

func spec(name string) Spec {
	return Spec{
		Name:         name,
		ReleaseLabel: "emr-5.27.0",
		MasterType:   "m5.xlarge",
		WorkerType:   "m5.xlarge",
		WorkerCount:  2,
		KeepAlive:    true,
	}
}

func TestSpecValidate(t *testing.T) {
	assert.NoError(t, spec("a").Validate())
	bad := spec("")
	bad.WorkerCount = 0
	err := bad.Validate()
	var verr *errors.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestSelectWaiting(t *testing.T) {
	ctx := context.Background()
	c := NewLocalClient(func(context.Context, []string) error { return nil })

	_, err := SelectWaiting(ctx, c, false)
	assert.True(t, errors.Is(err, ErrNoWaitingCluster))

	first, err := c.Create(ctx, spec("first"))
	require.NoError(t, err)
	second, err := c.Create(ctx, spec("second"))
	require.NoError(t, err)

	cl, err := SelectWaiting(ctx, c, false)
	require.NoError(t, err)
	assert.Equal(t, first, cl.ID)

	_, err = SelectWaiting(ctx, c, true)
	assert.True(t, errors.Is(err, ErrMultipleWaitingClusters))

	require.NoError(t, c.SetState(first, StateTerminated))
	cl, err = SelectWaiting(ctx, c, true)
	require.NoError(t, err)
	assert.Equal(t, second, cl.ID)
}

func TestTrainingStep(t *testing.T) {
	step := TrainingStep(Job{Binary: "/opt/bikeshare/bikeshare-train", Name: "bikeshare-ml", Input: "s3://b/bike-share-data", Output: "s3://b/models"})
	assert.Equal(t, []string{"/opt/bikeshare/bikeshare-train", "bikeshare-ml", "s3://b/bike-share-data", "s3://b/models"}, step.Args)
	assert.Equal(t, ActionContinue, step.ActionOnFailure)
	assert.Equal(t, "/opt/bikeshare/bikeshare-train bikeshare-ml s3://b/bike-share-data s3://b/models", step.CommandLine())
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()
	var ran [][]string
	c := NewLocalClient(func(_ context.Context, args []string) error {
		ran = append(ran, args)
		if args[1] == "broken" {
			return fmt.Errorf("exit status 1")
		}
		return nil
	})
	id, err := c.Create(ctx, spec("ml"))
	require.NoError(t, err)

	cl, status, err := Submit(ctx, c, true, Job{Binary: "train", Name: "nightly", Input: "in", Output: "out"})
	require.NoError(t, err)
	assert.Equal(t, id, cl.ID)
	assert.Equal(t, StepCompleted, status.State)
	assert.Equal(t, [][]string{{"train", "nightly", "in", "out"}}, ran)

	clusters, _ := c.List(ctx)
	assert.Equal(t, StateWaiting, clusters[0].State, "keep-alive cluster returns to WAITING")

	_, status, err = Submit(ctx, c, true, Job{Binary: "train", Name: "broken", Input: "in", Output: "out"})
	require.NoError(t, err)
	assert.Equal(t, StepFailed, status.State)
	assert.Error(t, status.Err)
	assert.Len(t, c.Steps(id), 2)

	_, _, err = Submit(ctx, c, true, Job{Name: "x"})
	assert.Error(t, err)
}

func TestSubmitWithoutWaitingCluster(t *testing.T) {
	ctx := context.Background()
	c := NewLocalClient(func(context.Context, []string) error { return nil })
	s := spec("once")
	s.KeepAlive = false
	_, err := c.Create(ctx, s)
	require.NoError(t, err)

	_, _, err = Submit(ctx, c, false, Job{Binary: "b", Name: "n", Input: "i", Output: "o"})
	assert.True(t, errors.Is(err, ErrNoWaitingCluster))
}
