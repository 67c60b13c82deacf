// Package cluster describes the compute clusters the training job is
// submitted to and the selection of a cluster that is ready for work.
package cluster

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/YuminosukeSato/bikeshare/pkg/errors"
)

// State is the lifecycle state of a cluster.
type State string

// Cluster states.
const (
	StateStarting      State = "STARTING"
	StateBootstrapping State = "BOOTSTRAPPING"
	StateRunning       State = "RUNNING"
	StateWaiting       State = "WAITING"
	StateTerminating   State = "TERMINATING"
	StateTerminated    State = "TERMINATED"
)

// Step failure actions.
const (
	ActionContinue  = "CONTINUE"
	ActionTerminate = "TERMINATE_CLUSTER"
)

var (
	// ErrNoWaitingCluster is returned when no cluster can accept a step.
	ErrNoWaitingCluster = errors.New("no cluster in WAITING state")

	// ErrMultipleWaitingClusters is returned by a strict selection that
	// finds more than one candidate.
	ErrMultipleWaitingClusters = errors.New("more than one cluster in WAITING state")
)

// Spec describes a cluster to create.
type Spec struct {
	Name          string   `validate:"required"`
	ReleaseLabel  string   `validate:"required"`
	MasterType    string   `validate:"required"`
	WorkerType    string   `validate:"required"`
	WorkerCount   int      `validate:"min=1"`
	KeyName       string
	BootstrapPath string
	BootstrapArgs []string
	// KeepAlive leaves the cluster WAITING once it has no steps left.
	KeepAlive bool
}

var validate = validator.New()

// Validate checks the required fields of s.
func (s Spec) Validate() error {
	if err := validate.Struct(s); err != nil {
		return errors.NewValidationError("cluster spec", err.Error(), s.Name)
	}
	return nil
}

// Cluster is a cluster as reported by List.
type Cluster struct {
	ID    string
	Name  string
	State State
}

// Step is a unit of work submitted to a cluster.
type Step struct {
	Name            string
	ActionOnFailure string
	Args            []string
}

// CommandLine renders the step arguments for display.
func (s Step) CommandLine() string {
	return strings.Join(s.Args, " ")
}

// StepStatus is the state of a submitted step.
type StepStatus struct {
	ID    string
	State string
	// Err is the failure of a finished step, if any.
	Err error
}

// Client manages clusters.
type Client interface {
	// Create starts a cluster and returns its id.
	Create(ctx context.Context, spec Spec) (string, error)

	// List returns the clusters in any of states, in creation order. No
	// states means every cluster.
	List(ctx context.Context, states ...State) ([]Cluster, error)

	// SubmitStep queues step on the cluster id.
	SubmitStep(ctx context.Context, id string, step Step) (StepStatus, error)
}

// SelectWaiting returns the first WAITING cluster reported by c. With
// strict, more than one WAITING cluster is an error instead.
func SelectWaiting(ctx context.Context, c Client, strict bool) (Cluster, error) {
	clusters, err := c.List(ctx, StateWaiting)
	if err != nil {
		return Cluster{}, errors.Wrap(err, "list clusters")
	}
	if len(clusters) == 0 {
		return Cluster{}, errors.WithStack(ErrNoWaitingCluster)
	}
	if strict && len(clusters) > 1 {
		ids := make([]string, len(clusters))
		for i, cl := range clusters {
			ids[i] = cl.ID
		}
		return Cluster{}, errors.Wrapf(ErrMultipleWaitingClusters, "candidates %s", strings.Join(ids, ", "))
	}
	return clusters[0], nil
}

// Job is a training run to submit.
type Job struct {
	// Binary is the path of the training executable on the cluster.
	Binary string
	Name   string
	Input  string
	Output string
}

// TrainingStep builds the step that runs job. The executable takes the run
// name, input and output locations as positional arguments.
func TrainingStep(job Job) Step {
	return Step{
		Name:            job.Name,
		ActionOnFailure: ActionContinue,
		Args:            []string{job.Binary, job.Name, job.Input, job.Output},
	}
}

// Submit selects a WAITING cluster and submits the training step for job.
func Submit(ctx context.Context, c Client, strict bool, job Job) (Cluster, StepStatus, error) {
	if job.Binary == "" || job.Name == "" || job.Input == "" || job.Output == "" {
		return Cluster{}, StepStatus{}, errors.NewValidationError("job", "binary, name, input and output are required", fmt.Sprintf("%+v", job))
	}
	cl, err := SelectWaiting(ctx, c, strict)
	if err != nil {
		return Cluster{}, StepStatus{}, err
	}
	status, err := c.SubmitStep(ctx, cl.ID, TrainingStep(job))
	if err != nil {
		return cl, StepStatus{}, errors.Wrapf(err, "submit step to %s", cl.ID)
	}
	return cl, status, nil
}
