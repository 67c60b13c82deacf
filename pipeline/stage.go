package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/YuminosukeSato/bikeshare/core/model"
	"github.com/YuminosukeSato/bikeshare/pkg/errors"
	"github.com/YuminosukeSato/bikeshare/pkg/log"
)

// Transformer is a fitted stage. Fitted stages are JSON-serialisable and
// identify themselves with a registered Kind.
type Transformer interface {
	Kind() string
	Transform(f *Frame) (*Frame, error)
}

// Estimator learns a Transformer from a Frame.
type Estimator interface {
	Fit(ctx context.Context, f *Frame) (Transformer, error)
}

// Pipeline is an ordered chain of estimators. Every stage is fitted on the
// output of the stages before it.
type Pipeline struct {
	Stages []Estimator
	logger log.Logger
}

// New creates a Pipeline.
func New(stages ...Estimator) *Pipeline {
	return &Pipeline{Stages: stages, logger: log.GetLoggerWithName("pipeline")}
}

// WithLogger sets the logger used for per-stage timings.
func (p *Pipeline) WithLogger(l log.Logger) *Pipeline {
	p.logger = l
	return p
}

// Fit fits every stage in order and returns the fitted chain.
func (p *Pipeline) Fit(ctx context.Context, f *Frame) (m *Model, err error) {
	defer errors.Recover(&err, "Pipeline.Fit")

	if f.Len() == 0 {
		return nil, errors.NewModelError("Pipeline.Fit", "empty data", errors.ErrEmptyData)
	}
	fitted := make([]Transformer, 0, len(p.Stages))
	cur := f
	for i, stage := range p.Stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		t, err := stage.Fit(ctx, cur)
		if err != nil {
			return nil, errors.Wrapf(err, "fit stage %d", i)
		}
		fitted = append(fitted, t)
		if i < len(p.Stages)-1 {
			if cur, err = t.Transform(cur); err != nil {
				return nil, errors.Wrapf(err, "transform stage %d (%s)", i, t.Kind())
			}
		}
		p.logger.Debug("stage fitted",
			log.ModelNameKey, t.Kind(),
			log.SamplesKey, cur.Len(),
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}
	return &Model{Stages: fitted}, nil
}

// Model is a fitted stage chain.
type Model struct {
	Stages []Transformer
}

// Transform applies every stage in order.
func (m *Model) Transform(f *Frame) (out *Frame, err error) {
	defer errors.Recover(&err, "Model.Transform")

	out = f
	for i, t := range m.Stages {
		if out, err = t.Transform(out); err != nil {
			return nil, errors.Wrapf(err, "stage %d (%s)", i, t.Kind())
		}
	}
	return out, nil
}

// Kinds returns the kind of every stage.
func (m *Model) Kinds() []string {
	kinds := make([]string, len(m.Stages))
	for i, t := range m.Stages {
		kinds[i] = t.Kind()
	}
	return kinds
}

var (
	registryMu sync.RWMutex
	registry   = map[string]func() Transformer{}
)

// Register makes a fitted stage kind decodable by Decode. It panics on a
// duplicate kind.
func Register(kind string, factory func() Transformer) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[kind]; dup {
		panic(fmt.Sprintf("pipeline: stage kind %q registered twice", kind))
	}
	registry[kind] = factory
}

// Encode serialises a fitted stage into a versioned envelope.
func Encode(t Transformer) ([]byte, error) {
	return model.Marshal(t.Kind(), t)
}

// Decode restores a stage written by Encode.
func Decode(data []byte) (Transformer, error) {
	env, err := model.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	registryMu.RLock()
	factory, ok := registry[env.Kind]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.NewValidationError("kind", "unknown stage kind", env.Kind)
	}
	t := factory()
	if err := json.Unmarshal(env.Params, t); err != nil {
		return nil, errors.Wrapf(err, "decode %s", env.Kind)
	}
	return t, nil
}
