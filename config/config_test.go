package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/bikeshare/pkg/errors"
	"github.com/YuminosukeSato/bikeshare/sklearn/ensemble"
)

func TestLoadDefaultsAndArgs(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load([]string{"bikeshare-ml", "data/bike-share-data", "models"})
	require.NoError(t, err)

	assert.Equal(t, "bikeshare-ml", cfg.Run.Name)
	assert.Equal(t, "data/bike-share-data", cfg.Run.Input)
	assert.Equal(t, "models", cfg.Run.Output)
	assert.Equal(t, 0.7, cfg.Training.TrainRatio)
	assert.Equal(t, 7, cfg.Training.NumFolds)
	assert.Equal(t, ensemble.DefaultGrid(), cfg.Training.Grid)
	assert.Equal(t, "Start date", cfg.Source.Columns.StartDate)
	assert.True(t, cfg.Artifact.Report)
}

func TestLoadRequiresRun(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load(nil)
	var verr *errors.ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.Contains(t, verr.ParamName, "Run.Name")

	_, err = Load([]string{"a/b", "in", "out"})
	assert.Error(t, err)

	_, err = Load([]string{"a", "b", "c", "d"})
	assert.Error(t, err)
}

func TestLoadFileEnvArgsPrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
run:
  name: from-file
  input: file-input
  output: file-output
training:
  num_folds: 5
  seed: 7
  grid:
    - max_depth: 4
      num_trees: 10
source:
  columns:
    duration: Trip Duration
log:
  level: debug
`), 0o644))

	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("BIKESHARE_TRAINING_SEED", "99")
	t.Setenv("BIKESHARE_RUN_OUTPUT", "env-output")
	t.Setenv("BIKESHARE_SOURCE_COLUMNS_MEMBER_TYPE", "Rider type")

	cfg, err := Load([]string{"from-args"})
	require.NoError(t, err)

	assert.Equal(t, "from-args", cfg.Run.Name)
	assert.Equal(t, "file-input", cfg.Run.Input)
	assert.Equal(t, "env-output", cfg.Run.Output)
	assert.Equal(t, 5, cfg.Training.NumFolds)
	assert.Equal(t, uint64(99), cfg.Training.Seed)
	assert.Equal(t, []ensemble.ForestParams{{MaxDepth: 4, NumTrees: 10}}, cfg.Training.Grid)
	assert.Equal(t, "Trip Duration", cfg.Source.Columns.Duration)
	assert.Equal(t, "Rider type", cfg.Source.Columns.MemberType)
	assert.Equal(t, "Start date", cfg.Source.Columns.StartDate)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadGridFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BIKESHARE_TRAINING_GRID", "2:5, 6:20")

	cfg, err := Load([]string{"n", "i", "o"})
	require.NoError(t, err)
	assert.Equal(t, []ensemble.ForestParams{{MaxDepth: 2, NumTrees: 5}, {MaxDepth: 6, NumTrees: 20}}, cfg.Training.Grid)
	assert.Equal(t, "2:5,6:20", cfg.Training.String())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"train ratio of one", func(c *Config) { c.Training.TrainRatio = 1 }},
		{"single fold", func(c *Config) { c.Training.NumFolds = 1 }},
		{"empty grid", func(c *Config) { c.Training.Grid = nil }},
		{"zero depth", func(c *Config) { c.Training.Grid = []ensemble.ForestParams{{MaxDepth: 0, NumTrees: 5}} }},
		{"unknown subset", func(c *Config) { c.Training.FeatureSubset = "half" }},
		{"too many bins", func(c *Config) { c.Training.MaxBins = 1000 }},
		{"missing column", func(c *Config) { c.Source.Columns.Latitude = "" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Run = RunConfig{Name: "n", Input: "i", Output: "o"}
			require.NoError(t, cfg.Validate())
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseGrid(t *testing.T) {
	grid, err := ParseGrid("3:50,3:100,5:50,5:100")
	require.NoError(t, err)
	assert.Equal(t, ensemble.DefaultGrid(), grid)

	for _, bad := range []string{"", "3", "x:5", "3:y"} {
		_, err := ParseGrid(bad)
		assert.Error(t, err, bad)
	}
}

func TestEnvTransform(t *testing.T) {
	assert.Equal(t, "training.num_folds", envTransformFunc("BIKESHARE_TRAINING_NUM_FOLDS"))
	assert.Equal(t, "source.columns.start_date", envTransformFunc("BIKESHARE_SOURCE_COLUMNS_START_DATE"))
	assert.Equal(t, "source.concurrency", envTransformFunc("BIKESHARE_SOURCE_CONCURRENCY"))
	assert.Equal(t, "", envTransformFunc("BIKESHARE_CONFIG"))
	assert.Equal(t, "", envTransformFunc("BIKESHARE_TRAINING"))
}
