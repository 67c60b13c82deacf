package features

import (
	"database/sql"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/bikeshare/cleaning"
	"github.com/YuminosukeSato/bikeshare/dataset"
	"github.com/YuminosukeSato/bikeshare/pipeline"
	"github.com/YuminosukeSato/bikeshare/pkg/log"
	"github.com/YuminosukeSato/bikeshare/source"
)

func joined(duration float64, start string, lat *float64) cleaning.JoinedTrip {
	j := cleaning.JoinedTrip{TripRecord: source.TripRecord{
		Duration:       duration,
		StartDate:      start,
		StartStationID: 31000,
		MemberType:     "Member",
	}}
	if lat != nil {
		j.StartStationLat = sql.NullFloat64{Float64: *lat, Valid: true}
		j.StartStationLong = sql.NullFloat64{Float64: -77, Valid: true}
	}
	return j
}

func quiet() log.Logger {
	l, _ := log.NewTestLogger(log.LevelError)
	return l
}

func TestLabelRoundTrip(t *testing.T) {
	for _, d := range []float64{0, 1, 59.5, 600, 5400} {
		assert.InDelta(t, d, math.Expm1(Label(d)), 1e-9*math.Max(1, d))
	}
	assert.Equal(t, 0.0, Label(0))
}

func TestExtractTimeFields(t *testing.T) {
	// 2017-01-01 was a Sunday and falls in ISO week 52 of 2016.
	ts, err := ParseStartDate("2017-01-01 23:59:41")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, ts.Location())

	f := ExtractTimeFields(ts)
	assert.Equal(t, TimeFields{DayOfWeek: 1, WeekOfYear: 52, Month: 1, Minute: 59, Hour: 23}, f)

	ts, _ = ParseStartDate("2015-12-31 06:05:00")
	f = ExtractTimeFields(ts)
	assert.Equal(t, 5, f.DayOfWeek, "Thursday")
	assert.Equal(t, 53, f.WeekOfYear)
	assert.Equal(t, 12, f.Month)
}

func TestCyclicalPeriodicity(t *testing.T) {
	periods := map[string]float64{
		"day_of_week":  PeriodDayOfWeek,
		"week_of_year": PeriodWeekOfYear,
		"month":        PeriodMonth,
		"minute":       PeriodMinute,
		"hour":         PeriodHour,
	}
	for name, p := range periods {
		for v := 0; v < 2*int(p); v++ {
			s1, c1 := SinCos(float64(v), p)
			s2, c2 := SinCos(float64(v)+p, p)
			assert.InDelta(t, s1, s2, 1e-9, "%s sin(%d)", name, v)
			assert.InDelta(t, c1, c2, 1e-9, "%s cos(%d)", name, v)
		}
	}
}

func TestCyclicalAdjacency(t *testing.T) {
	s23, c23 := SinCos(23, PeriodHour)
	s0, c0 := SinCos(0, PeriodHour)
	s12, c12 := SinCos(12, PeriodHour)
	near := math.Hypot(s23-s0, c23-c0)
	far := math.Hypot(s12-s0, c12-c0)
	assert.Less(t, near, far)
}

func TestJanuaryMapsToZeroAngle(t *testing.T) {
	c := EncodeCyclical(TimeFields{DayOfWeek: 1, WeekOfYear: 1, Month: 1})
	assert.InDelta(t, 0, c.SinMonth, 1e-12)
	assert.InDelta(t, 1, c.CosMonth, 1e-12)
	assert.InDelta(t, 1, c.CosMinute, 1e-12)
	assert.InDelta(t, 1, c.CosHour, 1e-12)
	assert.Len(t, c.Values(), len(CyclicalColumns))
}

func TestTransform(t *testing.T) {
	lat := 38.9
	in := dataset.FromSlice([]cleaning.JoinedTrip{
		joined(600, "2017-06-15 08:30:00", &lat),
		joined(300, "15/06/2017 08:30", &lat),
		joined(120, "2017-06-15 18:00:00", nil),
		joined(math.Inf(1), "2017-06-15 18:00:00", nil),
	})

	out, stats := Transform(in, quiet())
	assert.Equal(t, Stats{Input: 4, Output: 2, Unparseable: 1, NonFinite: 1}, stats)
	require.Equal(t, 2, out.Count())

	first := out.At(0)
	assert.InDelta(t, math.Log1p(600), first.Label, 1e-12)
	assert.Equal(t, "Member", first.MemberType)
	assert.True(t, first.StartStationLat.Valid)

	second := out.At(1)
	assert.False(t, second.StartStationLat.Valid, "unmatched stations keep null coordinates")
	assert.False(t, second.StartStationLong.Valid)

	for r := range out.All() {
		assert.False(t, math.IsNaN(r.Label) || math.IsInf(r.Label, 0))
	}
}

func TestToFrame(t *testing.T) {
	lat := 38.9
	rows, _ := Transform(dataset.FromSlice([]cleaning.JoinedTrip{
		joined(600, "2017-06-15 08:30:00", &lat),
		joined(120, "2017-06-15 18:00:00", nil),
	}), quiet())

	f, err := ToFrame(rows)
	require.NoError(t, err)
	assert.Equal(t, 2, f.Len())
	assert.Len(t, f.Columns(), 4+len(CyclicalColumns))

	lats, err := f.Floats(LatitudeColumn)
	require.NoError(t, err)
	assert.Equal(t, 38.9, lats[0])
	assert.True(t, pipeline.Null(lats[1]))

	for _, forbidden := range []string{"duration", "start_date", "start_station_id", "hour", "day_of_week"} {
		_, ok := f.Type(forbidden)
		assert.False(t, ok, forbidden)
	}
}
