package cluster

import (
	"context"
	"os"
	"os/exec"
	"sync"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/bikeshare/pkg/errors"
	"github.com/YuminosukeSato/bikeshare/pkg/log"
)

// Step states reported by LocalClient.
const (
	StepCompleted = "COMPLETED"
	StepFailed    = "FAILED"
)

// Runner executes the arguments of a step.
type Runner func(ctx context.Context, args []string) error

// ExecRunner runs args as a child process sharing the caller's stdout
// and stderr.
func ExecRunner(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.NewValueError("ExecRunner", "empty command")
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// LocalClient is an in-process Client. Clusters become WAITING as soon as
// they are created and steps run synchronously through the Runner.
type LocalClient struct {
	mu       sync.Mutex
	clusters []*localCluster
	run      Runner
	logger   log.Logger
}

type localCluster struct {
	Cluster
	spec  Spec
	steps []StepStatus
}

// NewLocalClient creates a LocalClient that executes steps with run.
func NewLocalClient(run Runner) *LocalClient {
	if run == nil {
		run = ExecRunner
	}
	return &LocalClient{run: run, logger: log.GetLoggerWithName("cluster")}
}

// Create implements Client.
func (c *LocalClient) Create(ctx context.Context, spec Spec) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := spec.Validate(); err != nil {
		return "", err
	}
	state := StateWaiting
	if !spec.KeepAlive {
		state = StateRunning
	}
	cl := &localCluster{
		Cluster: Cluster{ID: "j-" + uuid.NewString()[:13], Name: spec.Name, State: state},
		spec:    spec,
	}
	c.mu.Lock()
	c.clusters = append(c.clusters, cl)
	c.mu.Unlock()
	c.logger.Info("cluster created", "cluster.id", cl.ID, "cluster.name", spec.Name, "cluster.state", string(state))
	return cl.ID, nil
}

// SetState changes the state of a cluster.
func (c *LocalClient) SetState(id string, s State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cl := c.find(id)
	if cl == nil {
		return errors.NewValidationError("cluster id", "unknown cluster", id)
	}
	cl.State = s
	return nil
}

// List implements Client.
func (c *LocalClient) List(ctx context.Context, states ...State) ([]Cluster, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Cluster
	for _, cl := range c.clusters {
		if len(states) == 0 || contains(states, cl.State) {
			out = append(out, cl.Cluster)
		}
	}
	return out, nil
}

// SubmitStep implements Client. The step runs before SubmitStep returns;
// a failing step is reported in the status, not as an error.
func (c *LocalClient) SubmitStep(ctx context.Context, id string, step Step) (StepStatus, error) {
	c.mu.Lock()
	cl := c.find(id)
	if cl == nil {
		c.mu.Unlock()
		return StepStatus{}, errors.NewValidationError("cluster id", "unknown cluster", id)
	}
	if cl.State != StateWaiting && cl.State != StateRunning {
		c.mu.Unlock()
		return StepStatus{}, errors.NewValidationError("cluster state", "cluster cannot accept steps", string(cl.State))
	}
	cl.State = StateRunning
	c.mu.Unlock()

	status := StepStatus{ID: "s-" + uuid.NewString()[:13], State: StepCompleted}
	c.logger.Info("step started", "cluster.id", id, "step.name", step.Name, "step.command", step.CommandLine())
	if err := c.run(ctx, step.Args); err != nil {
		status.State = StepFailed
		status.Err = err
		c.logger.Warn("step failed", "cluster.id", id, "step.name", step.Name, log.ErrAttrKey, err)
	}

	c.mu.Lock()
	cl.steps = append(cl.steps, status)
	switch {
	case status.State == StepFailed && step.ActionOnFailure == ActionTerminate:
		cl.State = StateTerminated
	case cl.spec.KeepAlive:
		cl.State = StateWaiting
	default:
		cl.State = StateTerminated
	}
	c.mu.Unlock()
	return status, nil
}

// Steps returns the statuses of every step run on id.
func (c *LocalClient) Steps(id string) []StepStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl := c.find(id); cl != nil {
		return append([]StepStatus(nil), cl.steps...)
	}
	return nil
}

func (c *LocalClient) find(id string) *localCluster {
	for _, cl := range c.clusters {
		if cl.ID == id {
			return cl
		}
	}
	return nil
}

func contains(states []State, s State) bool {
	for _, st := range states {
		if st == s {
			return true
		}
	}
	return false
}
