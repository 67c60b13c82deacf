// Package artifact publishes a trained model to an object store and loads
// it back for scoring.
//
// A published model lives under <name>.v1/:
//
//	stages/<run_id>/00_string_indexer.json ... 04_random_forest_regressor.json
//	report/<run_id>/cv_rmse.png
//	metadata.json
//
// metadata.json is written last and is the only entry point: it names the
// run's stage files together with their SHA-256 digests. A directory
// without it is an incomplete publish and is refused by Load. A failed
// republish leaves the previous metadata.json and the files it names
// untouched.
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/YuminosukeSato/bikeshare/pipeline"
	"github.com/YuminosukeSato/bikeshare/pkg/errors"
	"github.com/YuminosukeSato/bikeshare/pkg/log"
	"github.com/YuminosukeSato/bikeshare/report"
	"github.com/YuminosukeSato/bikeshare/sklearn/ensemble"
	"github.com/YuminosukeSato/bikeshare/storage"
	"github.com/YuminosukeSato/bikeshare/training"
)

// Version is the literal version suffix of a published model directory.
const Version = "v1"

// Layout names inside a model directory.
const (
	MetadataFile = "metadata.json"
	StagesDir    = "stages"
	ReportDir    = "report"
)

const (
	contentTypeJSON = "application/json"
	contentTypePNG  = "image/png"
)

// Dir returns the model directory of a run name.
func Dir(name string) string {
	return name + "." + Version
}

// StageFile returns the stage file name of the i-th stage.
func StageFile(i int, kind string) string {
	return fmt.Sprintf("%02d_%s.json", i, kind)
}

// StagePath returns the path of a stage file relative to the model directory.
func StagePath(runID string, i int, kind string) string {
	return storage.Join(StagesDir, runID, StageFile(i, kind))
}

// ReportPath returns the path of the CV chart relative to the model directory.
func ReportPath(runID string) string {
	return storage.Join(ReportDir, runID, report.ChartFileName)
}

// StageEntry describes one persisted stage.
type StageEntry struct {
	Index  int    `json:"index"`
	Kind   string `json:"kind"`
	File   string `json:"file"`
	SHA256 string `json:"sha256"`
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// RowCounts are the row counts of the training protocol.
type RowCounts struct {
	Total int `json:"total"`
	Train int `json:"train"`
	Test  int `json:"test"`
}

// CVSummary is the persisted grid search outcome.
type CVSummary struct {
	Metric      string                  `json:"metric"`
	NumFolds    int                     `json:"num_folds"`
	Grid        []ensemble.ForestParams `json:"grid"`
	AvgMetrics  []float64               `json:"avg_metrics"`
	FoldMetrics [][]float64             `json:"fold_metrics"`
	BestIndex   int                     `json:"best_index"`
	Fits        int                     `json:"fits"`
}

// Metadata is the content of metadata.json.
type Metadata struct {
	RunID       string                `json:"run_id"`
	Name        string                `json:"name"`
	Version     string                `json:"version"`
	CreatedAt   time.Time             `json:"created_at"`
	Stages      []StageEntry          `json:"stages"`
	Params      ensemble.ForestParams `json:"params"`
	CV          CVSummary             `json:"cv"`
	HoldoutRMSE float64               `json:"holdout_rmse"`
	Rows        RowCounts             `json:"rows"`
	Report      string                `json:"report,omitempty"`
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithReport enables or disables the CV chart.
func WithReport(enabled bool) Option {
	return func(p *Publisher) { p.report = enabled }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

// Publisher writes trained models to a Store.
type Publisher struct {
	store  storage.Store
	report bool
	now    func() time.Time
	logger log.Logger
}

// NewPublisher creates a Publisher writing to store.
func NewPublisher(store storage.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		report: true,
		now:    time.Now,
		logger: log.GetLoggerWithName("artifact"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish writes res under Dir(name). Stage and report files go under
// run-scoped prefixes, so they never overwrite a previous publish. Every
// object is written once; the first failed write stops the publish and is
// returned as ErrArtifactWriteFailed.
func (p *Publisher) Publish(ctx context.Context, name string, numFolds int, res *training.Result) (*Metadata, error) {
	if name == "" {
		return nil, errors.NewValidationError("name", "must not be empty", name)
	}
	dir := Dir(name)
	meta := &Metadata{
		RunID:     uuid.NewString(),
		Name:      name,
		Version:   Version,
		CreatedAt: p.now().UTC(),
		Params:    res.Params,
		CV: CVSummary{
			Metric:      "rmse",
			NumFolds:    numFolds,
			Grid:        res.CV.Params,
			AvgMetrics:  res.CV.AvgMetrics,
			FoldMetrics: res.CV.FoldMetrics,
			BestIndex:   res.CV.BestIndex,
			Fits:        res.CV.Fits,
		},
		HoldoutRMSE: res.HoldoutRMSE,
		Rows:        RowCounts{Total: res.TotalRows, Train: res.TrainRows, Test: res.TestRows},
	}
	logger := p.logger.With(log.RunNameKey, name, log.RunIDKey, meta.RunID)

	for i, st := range res.Model.Stages {
		data, err := pipeline.Encode(st)
		if err != nil {
			return nil, errors.Wrapf(err, "encode stage %d", i)
		}
		file := StagePath(meta.RunID, i, st.Kind())
		if err := p.put(ctx, storage.Join(dir, file), data, contentTypeJSON); err != nil {
			return nil, err
		}
		meta.Stages = append(meta.Stages, StageEntry{Index: i, Kind: st.Kind(), File: file, SHA256: digest(data)})
	}

	if p.report {
		labels := make([]string, len(res.CV.Params))
		for i, params := range res.CV.Params {
			labels[i] = fmt.Sprintf("d%d/t%d", params.MaxDepth, params.NumTrees)
		}
		png, err := report.CVChart(report.CVSummary{
			Labels:      labels,
			AvgMetrics:  res.CV.AvgMetrics,
			FoldMetrics: res.CV.FoldMetrics,
			BestIndex:   res.CV.BestIndex,
			Metric:      meta.CV.Metric,
		})
		if err != nil {
			return nil, errors.Wrap(err, "render cv chart")
		}
		meta.Report = ReportPath(meta.RunID)
		if err := p.put(ctx, storage.Join(dir, meta.Report), png, contentTypePNG); err != nil {
			return nil, err
		}
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encode metadata")
	}
	if err := p.put(ctx, storage.Join(dir, MetadataFile), data, contentTypeJSON); err != nil {
		return nil, err
	}

	logger.Info("model published",
		log.OperationKey, log.OperationPublish,
		log.PhaseKey, log.PhasePublishing,
		log.LocationKey, dir,
		log.HyperParamsKey, res.Params.String(),
	)
	return meta, nil
}

func (p *Publisher) put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := p.store.Put(ctx, key, data, contentType); err != nil {
		return errors.NewArtifactWriteFailedError(key, err)
	}
	return nil
}

// Load reads the model published under dir. Each stage file must match the
// digest recorded in metadata.json.
func Load(ctx context.Context, store storage.Store, dir string) (*pipeline.Model, *Metadata, error) {
	data, err := store.Get(ctx, storage.Join(dir, MetadataFile))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, errors.NewValueError("artifact.Load", fmt.Sprintf("%s has no %s; the publish did not complete", dir, MetadataFile))
		}
		return nil, nil, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, nil, errors.Wrap(err, "decode metadata")
	}
	if meta.Version != Version {
		return nil, nil, errors.NewValidationError("version", "unsupported artifact version", meta.Version)
	}

	m := &pipeline.Model{}
	for _, entry := range meta.Stages {
		data, err := store.Get(ctx, storage.Join(dir, entry.File))
		if err != nil {
			return nil, nil, errors.Wrapf(err, "read stage %d", entry.Index)
		}
		if got := digest(data); got != entry.SHA256 {
			return nil, nil, errors.NewValidationError("sha256", fmt.Sprintf("stage %d does not match metadata", entry.Index), got)
		}
		st, err := pipeline.Decode(data)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "decode stage %d", entry.Index)
		}
		if st.Kind() != entry.Kind {
			return nil, nil, errors.NewValidationError("kind", "stage file does not match metadata", st.Kind())
		}
		m.Stages = append(m.Stages, st)
	}
	return m, &meta, nil
}
