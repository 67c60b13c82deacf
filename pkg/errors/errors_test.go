package errors

import (
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		wantMsg  string
	}{
		{
			name:     "source unavailable",
			err:      NewSourceUnavailableError("data/rides"),
			sentinel: ErrSourceUnavailable,
			wantMsg:  `bikeshare: no input files found under "data/rides"`,
		},
		{
			name:     "training data insufficient",
			err:      NewTrainingDataInsufficientError("Trainer.Train", 0, "empty feature table"),
			sentinel: ErrTrainingDataInsufficient,
			wantMsg:  "bikeshare: Trainer.Train: training data insufficient (0 rows): empty feature table",
		},
		{
			name:     "artifact write failed",
			err:      NewArtifactWriteFailedError("models/bikeshare.v1/metadata.json", fmt.Errorf("disk full")),
			sentinel: ErrArtifactWriteFailed,
			wantMsg:  `bikeshare: failed to write artifact "models/bikeshare.v1/metadata.json": disk full`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
			assert.True(t, Is(tt.err, tt.sentinel))

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", tt.err)
			assert.True(t, strings.Contains(formatted, "errors_test.go"), "stack trace should mention the test file")

			// ラップ後も判定できること
			wrapped := Wrap(tt.err, "job failed")
			assert.True(t, Is(wrapped, tt.sentinel))
		})
	}

	t.Run("sentinels do not cross-match", func(t *testing.T) {
		err := NewSourceUnavailableError("x")
		assert.False(t, Is(err, ErrArtifactWriteFailed))
		assert.False(t, Is(err, ErrTrainingDataInsufficient))
	})

	t.Run("artifact error unwraps to cause", func(t *testing.T) {
		cause := fmt.Errorf("permission denied")
		err := NewArtifactWriteFailedError("p", cause)
		assert.True(t, Is(err, cause))

		var writeErr *ArtifactWriteFailedError
		require.True(t, As(err, &writeErr))
		assert.Equal(t, "p", writeErr.Path)
	})
}

func TestNewModelError(t *testing.T) {
	err := NewModelError("Fit", "invalid input", fmt.Errorf("test error"))
	assert.Equal(t, "bikeshare: Fit: invalid input: test error", err.Error())

	err = NewModelError("Predict", "not fitted", nil)
	assert.Equal(t, "bikeshare: Predict: not fitted", err.Error())

	var modelErr *ModelError
	assert.True(t, As(err, &modelErr))
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 13, 12, 1)
	assert.Equal(t, "bikeshare: Predict: dimension mismatch on axis 1 (features). Expected 13, got 12", err.Error())

	var dimErr *DimensionError
	require.True(t, As(err, &dimErr))
	assert.Equal(t, 13, dimErr.Expected)
}

func TestNotFittedAndValidationErrors(t *testing.T) {
	err := NewNotFittedError("StandardScaler", "Transform")
	assert.Contains(t, err.Error(), "StandardScaler: this model is not fitted yet")

	err = NewValidationError("train_ratio", "must be in (0, 1)", 1.5)
	assert.Equal(t, "bikeshare: validation failed for parameter 'train_ratio': must be in (0, 1) (got: 1.5)", err.Error())
}

func TestZerologMarshalling(t *testing.T) {
	var sb strings.Builder
	logger := zerolog.New(&sb)

	logger.Error().Object("detail", &TrainingDataInsufficientError{Op: "KFold", Rows: 3, Reason: "fold 2 is empty"}).Msg("abort")
	out := sb.String()

	assert.Contains(t, out, `"type":"TrainingDataInsufficient"`)
	assert.Contains(t, out, `"rows":3`)
	assert.Contains(t, out, `"operation":"KFold"`)
}

func TestWarn(t *testing.T) {
	var got []error
	SetWarningHandler(func(w error) { got = append(got, w) })
	defer SetWarningHandler(func(error) {})

	Warn(NewDataConversionWarning("Duration", 4, "not a number"))
	require.Len(t, got, 1)
	assert.Equal(t, `4 rows excluded: field "Duration" could not be converted (not a number)`, got[0].Error())
}

func TestCheckFinite(t *testing.T) {
	assert.NoError(t, CheckFinite("label", []float64{0, 1.5, 8.6}))
	assert.Error(t, CheckScalar("label", nanValue()))

	err := CheckFinite("label", []float64{1, 2, infValue()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index 2")
}

func nanValue() float64 {
	zero := 0.0
	return zero / zero
}

func infValue() float64 {
	zero := 0.0
	return 1 / zero
}
