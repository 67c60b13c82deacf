// Package config loads the training job configuration.
//
// Sources are layered, later ones overriding earlier ones:
//
//  1. Defaults: the protocol of the production job
//  2. Config file: optional YAML named by BIKESHARE_CONFIG, else ./bikeshare.yaml
//  3. Environment: BIKESHARE_<SECTION>_<KEY>, e.g. BIKESHARE_TRAINING_NUM_FOLDS
//  4. Positional arguments: <name> <input> <output>
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/YuminosukeSato/bikeshare/pkg/errors"
	"github.com/YuminosukeSato/bikeshare/sklearn/ensemble"
	"github.com/YuminosukeSato/bikeshare/sklearn/tree"
	"github.com/YuminosukeSato/bikeshare/source"
)

const (
	// EnvPrefix prefixes every configuration environment variable.
	EnvPrefix = "BIKESHARE_"

	// ConfigPathEnvVar names the YAML file to load.
	ConfigPathEnvVar = "BIKESHARE_CONFIG"
)

// DefaultConfigPaths are searched when ConfigPathEnvVar is unset.
var DefaultConfigPaths = []string{"bikeshare.yaml", "bikeshare.yml"}

// Config is the complete job configuration.
type Config struct {
	Run      RunConfig      `koanf:"run"`
	Source   SourceConfig   `koanf:"source"`
	Training TrainingConfig `koanf:"training"`
	Artifact ArtifactConfig `koanf:"artifact"`
	Log      LogConfig      `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Cluster  ClusterConfig  `koanf:"cluster"`
}

// RunConfig identifies one run. Usually set from the command line.
type RunConfig struct {
	Name   string `koanf:"name" validate:"required,excludesall=/\\"`
	Input  string `koanf:"input" validate:"required"`
	Output string `koanf:"output" validate:"required"`
}

// SourceConfig configures the input reader.
type SourceConfig struct {
	Columns     source.Columns `koanf:"columns"`
	Concurrency int            `koanf:"concurrency" validate:"min=0"`
}

// TrainingConfig configures the split, the grid search and the forest.
type TrainingConfig struct {
	TrainRatio    float64                 `koanf:"train_ratio" validate:"gt=0,lt=1"`
	NumFolds      int                     `koanf:"num_folds" validate:"min=2"`
	Seed          uint64                  `koanf:"seed"`
	Parallelism   int                     `koanf:"parallelism" validate:"min=0"`
	Grid          []ensemble.ForestParams `koanf:"grid" validate:"min=1,dive"`
	MaxBins       int                     `koanf:"max_bins" validate:"min=2,max=256"`
	FeatureSubset string                  `koanf:"feature_subset" validate:"oneof=all onethird sqrt log2"`
	Workers       int                     `koanf:"workers" validate:"min=0"`
}

// ArtifactConfig configures the publisher.
type ArtifactConfig struct {
	Report bool `koanf:"report"`
}

// LogConfig configures pkg/log.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn warning error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// MetricsConfig configures the Prometheus textfile export.
type MetricsConfig struct {
	// Textfile is written after every run when set.
	Textfile string `koanf:"textfile"`
}

// ClusterConfig configures step submission.
type ClusterConfig struct {
	// Binary is the training executable on the cluster.
	Binary string `koanf:"binary"`
	// Strict rejects more than one WAITING cluster.
	Strict bool `koanf:"strict"`
}

func defaultConfig() *Config {
	return &Config{
		Source: SourceConfig{Columns: source.DefaultColumns()},
		Training: TrainingConfig{
			TrainRatio:    0.7,
			NumFolds:      7,
			Seed:          42,
			Grid:          ensemble.DefaultGrid(),
			MaxBins:       32,
			FeatureSubset: tree.FeatureSubsetOneThird,
		},
		Artifact: ArtifactConfig{Report: true},
		Log:      LogConfig{Level: "info", Format: "json"},
		Cluster:  ClusterConfig{Binary: "/usr/local/bin/bikeshare-train"},
	}
}

// Default returns the defaults without reading any source.
func Default() *Config {
	return defaultConfig()
}

// Load builds the configuration from every layer. args are the positional
// arguments <name> <input> <output>; missing ones leave the lower layers
// in place.
func Load(args []string) (*Config, error) {
	if len(args) > 3 {
		return nil, errors.NewValidationError("args", "expected <name> <input> <output>", strings.Join(args, " "))
	}
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, errors.Wrap(err, "load defaults")
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "load config file %s", path)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, errors.Wrap(err, "load environment")
	}
	if err := processGrid(k); err != nil {
		return nil, err
	}

	for i, key := range []string{"run.name", "run.input", "run.output"} {
		if i < len(args) {
			if err := k.Set(key, args[i]); err != nil {
				return nil, errors.Wrapf(err, "set %s", key)
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field constraint.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return errors.NewValidationError(fe.Namespace(), "failed '"+fe.Tag()+"' check", fe.Value())
		}
		return errors.Wrap(err, "validate configuration")
	}
	return nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sections are the top-level keys; the first underscore after a section
// name separates it from the field.
var sections = []string{"run", "source_columns", "source", "training", "artifact", "log", "metrics", "cluster"}

// envTransformFunc maps BIKESHARE_TRAINING_NUM_FOLDS to training.num_folds
// and BIKESHARE_SOURCE_COLUMNS_START_DATE to source.columns.start_date.
// Unknown variables are dropped.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	for _, s := range sections {
		if rest, ok := strings.CutPrefix(key, s+"_"); ok && rest != "" {
			return strings.ReplaceAll(s, "_", ".") + "." + rest
		}
	}
	return ""
}

// processGrid accepts training.grid as "depth:trees,depth:trees" when it
// arrives as a string from the environment.
func processGrid(k *koanf.Koanf) error {
	raw, ok := k.Get("training.grid").(string)
	if !ok {
		return nil
	}
	grid, err := ParseGrid(raw)
	if err != nil {
		return err
	}
	items := make([]map[string]interface{}, len(grid))
	for i, p := range grid {
		items[i] = map[string]interface{}{"max_depth": p.MaxDepth, "num_trees": p.NumTrees}
	}
	// Delete first so the merge does not keep the string value.
	k.Delete("training.grid")
	return k.Set("training.grid", items)
}

// ParseGrid parses "3:50,3:100" into forest parameters.
func ParseGrid(s string) ([]ensemble.ForestParams, error) {
	var grid []ensemble.ForestParams
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		depth, trees, ok := strings.Cut(item, ":")
		if !ok {
			return nil, errors.NewValidationError("training.grid", "expected depth:trees", item)
		}
		d, err := strconv.Atoi(strings.TrimSpace(depth))
		if err != nil {
			return nil, errors.NewValidationError("training.grid", "depth is not an integer", item)
		}
		n, err := strconv.Atoi(strings.TrimSpace(trees))
		if err != nil {
			return nil, errors.NewValidationError("training.grid", "tree count is not an integer", item)
		}
		grid = append(grid, ensemble.ForestParams{MaxDepth: d, NumTrees: n})
	}
	if len(grid) == 0 {
		return nil, errors.NewValidationError("training.grid", "empty grid", s)
	}
	return grid, nil
}

// String renders the grid for logs.
func (t TrainingConfig) String() string {
	parts := make([]string, len(t.Grid))
	for i, p := range t.Grid {
		parts[i] = fmt.Sprintf("%d:%d", p.MaxDepth, p.NumTrees)
	}
	return strings.Join(parts, ",")
}
