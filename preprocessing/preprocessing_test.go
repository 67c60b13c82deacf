package preprocessing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bikeshare/pipeline"
	"github.com/YuminosukeSato/bikeshare/pkg/errors"
)

func memberFrame(t *testing.T, members ...string) *pipeline.Frame {
	t.Helper()
	f, err := pipeline.NewFrame(len(members)).WithStrings("member_type", members)
	require.NoError(t, err)
	return f
}

func TestStringIndexerFrequencyOrder(t *testing.T) {
	f := memberFrame(t, "Casual", "Member", "Member", "Member", "Casual", "Guest", "Alpha")
	st, err := NewStringIndexer("member_type", "member_idx").Fit(context.Background(), f)
	require.NoError(t, err)

	m := st.(*StringIndexerModel)
	assert.Equal(t, []string{"Member", "Casual", "Alpha", "Guest"}, m.Labels, "ties are ordered alphabetically")

	out, err := m.Transform(f)
	require.NoError(t, err)
	idx, err := out.Floats("member_idx")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0, 0, 1, 3, 2}, idx)
}

func TestStringIndexerUnseenLabel(t *testing.T) {
	train := memberFrame(t, "Member", "Casual")
	st, err := NewStringIndexer("member_type", "member_idx").Fit(context.Background(), train)
	require.NoError(t, err)

	_, err = st.Transform(memberFrame(t, "Guest"))
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))

	keep := NewStringIndexer("member_type", "member_idx")
	keep.HandleInvalid = HandleInvalidKeep
	st, err = keep.Fit(context.Background(), train)
	require.NoError(t, err)
	out, err := st.Transform(memberFrame(t, "Guest"))
	require.NoError(t, err)
	idx, _ := out.Floats("member_idx")
	assert.Equal(t, []float64{2}, idx)
	assert.Equal(t, 3, st.(*StringIndexerModel).NumCategories())
}

func TestOneHotEncoderDropLast(t *testing.T) {
	f, err := pipeline.NewFrame(4).WithFloats("idx", []float64{0, 1, 2, 1})
	require.NoError(t, err)

	st, err := NewOneHotEncoder("idx", "enc").Fit(context.Background(), f)
	require.NoError(t, err)
	m := st.(*OneHotEncoderModel)
	assert.Equal(t, 3, m.NumCategories)
	assert.Equal(t, 2, m.Width())

	out, err := m.Transform(f)
	require.NoError(t, err)
	enc, err := out.Vector("enc")
	require.NoError(t, err)
	assert.Equal(t, []float64{
		1, 0,
		0, 1,
		0, 0,
		0, 1,
	}, enc.RawMatrix().Data)

	_, err = m.Transform(mustFloats(t, "idx", 3))
	assert.Error(t, err)
	_, err = m.Transform(mustFloats(t, "idx", 0.5))
	assert.Error(t, err)
}

func TestOneHotEncoderSingleCategory(t *testing.T) {
	f := mustFloats(t, "idx", 0, 0)
	st, err := NewOneHotEncoder("idx", "enc").Fit(context.Background(), f)
	require.NoError(t, err)

	out, err := st.Transform(f)
	require.NoError(t, err)
	w, err := out.Width("enc")
	require.NoError(t, err)
	assert.Equal(t, 0, w)
}

func mustFloats(t *testing.T, name string, values ...float64) *pipeline.Frame {
	t.Helper()
	f, err := pipeline.NewFrame(len(values)).WithFloats(name, values)
	require.NoError(t, err)
	return f
}

func TestVectorAssemblerImputesMean(t *testing.T) {
	nan := pipeline.NullValue()
	f := pipeline.NewFrame(3)
	f, _ = f.WithVector("enc", mat.NewDense(3, 1, []float64{1, 0, 1}))
	f, _ = f.WithFloats("lat", []float64{38.0, nan, 40.0})
	f, _ = f.WithFloats("sin_hour", []float64{0.5, 0.25, 0})

	st, err := NewVectorAssembler([]string{"enc", "lat", "sin_hour"}, "features").Fit(context.Background(), f)
	require.NoError(t, err)
	m := st.(*VectorAssemblerModel)
	assert.Equal(t, []int{1, 1, 1}, m.Widths)
	assert.Equal(t, 39.0, m.FillValues["lat"])

	out, err := m.Transform(f)
	require.NoError(t, err)
	X, _ := out.Vector("features")
	assert.Equal(t, []float64{
		1, 38, 0.5,
		0, 39, 0.25,
		1, 40, 0,
	}, X.RawMatrix().Data)

	// scoring rows use the fill value learned at fit time
	g := pipeline.NewFrame(1)
	g, _ = g.WithVector("enc", mat.NewDense(1, 1, []float64{0}))
	g, _ = g.WithFloats("lat", []float64{nan})
	g, _ = g.WithFloats("sin_hour", []float64{1})
	out, err = m.Transform(g)
	require.NoError(t, err)
	X, _ = out.Vector("features")
	assert.Equal(t, 39.0, X.At(0, 1))
}

func TestVectorAssemblerAllMissingAndSchemaMismatch(t *testing.T) {
	nan := pipeline.NullValue()
	f := mustFloats(t, "lat", nan, nan)
	st, err := NewVectorAssembler([]string{"lat"}, "features").Fit(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, 0.0, st.(*VectorAssemblerModel).FillValues["lat"])

	wide := pipeline.NewFrame(2)
	wide, _ = wide.WithVector("lat", mat.NewDense(2, 2, nil))
	_, err = st.Transform(wide)
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))

	_, err = NewVectorAssembler([]string{"missing"}, "features").Fit(context.Background(), f)
	assert.Error(t, err)
}

func TestStandardScaler(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 10,
		3, 10,
		4, 10,
	})
	s := NewStandardScalerDefault()
	_, err := s.Transform(X)
	var nf *errors.NotFittedError
	require.True(t, errors.As(err, &nf))

	Xs, err := s.FitTransform(X)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, s.Mean[0], 1e-12)
	assert.InDelta(t, math.Sqrt(5.0/3.0), s.Scale[0], 1e-12)
	assert.Equal(t, 1.0, s.Scale[1], "constant columns keep scale 1")

	col := mat.Col(nil, 0, Xs)
	sum := 0.0
	for _, v := range col {
		sum += v
	}
	assert.InDelta(t, 0, sum, 1e-12)
	assert.Equal(t, 0.0, Xs.At(0, 1))

	back, err := s.InverseTransform(Xs)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(X, back, 1e-12))

	_, err = s.Transform(mat.NewDense(1, 3, nil))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))
}

func TestStandardScalerRejectsNonFinite(t *testing.T) {
	err := NewStandardScalerDefault().Fit(mat.NewDense(2, 1, []float64{1, math.NaN()}))
	assert.Error(t, err)
}

func TestScalerStageFitsOnItsOwnFrame(t *testing.T) {
	train := pipeline.NewFrame(2)
	train, _ = train.WithVector("features", mat.NewDense(2, 1, []float64{0, 2}))
	test := pipeline.NewFrame(1)
	test, _ = test.WithVector("features", mat.NewDense(1, 1, []float64{100}))

	st, err := NewScalerStage("features", "scaled").Fit(context.Background(), train)
	require.NoError(t, err)

	out, err := st.Transform(test)
	require.NoError(t, err)
	scaled, _ := out.Vector("scaled")
	assert.InDelta(t, (100-1)/math.Sqrt2, scaled.At(0, 0), 1e-9)
}

func TestStageEncodeDecode(t *testing.T) {
	ctx := context.Background()
	f := memberFrame(t, "Member", "Casual", "Member")
	f, _ = f.WithFloats("lat", []float64{1, pipeline.NullValue(), 3})

	p := pipeline.New(
		NewStringIndexer("member_type", "member_idx"),
		NewOneHotEncoder("member_idx", "member_enc"),
		NewVectorAssembler([]string{"member_enc", "lat"}, "features"),
		NewScalerStage("features", "scaled"),
	)
	fitted, err := p.Fit(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, []string{KindStringIndexer, KindOneHotEncoder, KindVectorAssembler, KindStandardScaler}, fitted.Kinds())

	restored := &pipeline.Model{}
	for _, st := range fitted.Stages {
		data, err := pipeline.Encode(st)
		require.NoError(t, err)
		back, err := pipeline.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, st.Kind(), back.Kind())
		restored.Stages = append(restored.Stages, back)
	}

	want, err := fitted.Transform(f)
	require.NoError(t, err)
	got, err := restored.Transform(f)
	require.NoError(t, err)
	w, _ := want.Vector("scaled")
	g, _ := got.Vector("scaled")
	assert.True(t, mat.EqualApprox(w, g, 1e-12))
}
