package cleaning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/bikeshare/dataset"
	"github.com/YuminosukeSato/bikeshare/pkg/log"
	"github.com/YuminosukeSato/bikeshare/source"
)

func trip(duration float64, station int, member string) source.TripRecord {
	return source.TripRecord{
		Duration:       duration,
		StartDate:      "2017-06-15 08:30:00",
		StartStationID: station,
		MemberType:     member,
	}
}

func stations() *dataset.Table[source.StationRecord] {
	return dataset.FromSlice([]source.StationRecord{
		{ID: 31000, Latitude: 38.85, Longitude: -77.05},
		{ID: 32051, Latitude: 38.90, Longitude: -77.00},
	})
}

func quiet() log.Logger {
	l, _ := log.NewTestLogger(log.LevelError)
	return l
}

func TestDurationBoundary(t *testing.T) {
	tests := []struct {
		duration float64
		keep     bool
	}{
		{0, true},
		{1, true},
		{5400, true},
		{5400.0001, false},
		{-1, false},
		{-0.0001, false},
		{86400, false},
	}
	for _, tt := range tests {
		out, _ := Clean(dataset.FromSlice([]source.TripRecord{trip(tt.duration, 31000, "Member")}), stations(), quiet())
		assert.Equal(t, tt.keep, out.Count() == 1, "duration %v", tt.duration)
	}
}

func TestLongRidesRemoved(t *testing.T) {
	rows := make([]source.TripRecord, 0, 100)
	for i := 0; i < 90; i++ {
		rows = append(rows, trip(float64(60+i*50), 31000, "Member"))
	}
	for i := 0; i < 10; i++ {
		rows = append(rows, trip(5401+float64(i*1000), 31000, "Casual"))
	}

	out, stats := Clean(dataset.FromSlice(rows), stations(), quiet())
	assert.Equal(t, 90, out.Count())
	assert.Equal(t, Stats{Input: 100, AfterDuration: 90, AfterMember: 90, AfterJoin: 90, AfterExclude: 90}, stats)
}

func TestUnknownMemberRemoved(t *testing.T) {
	in := dataset.FromSlice([]source.TripRecord{
		trip(100, 31000, "Unknown"),
		trip(9999, 31000, "Unknown"),
		trip(100, 31000, "Member"),
		trip(100, 31000, "unknown"),
	})
	out, stats := Clean(in, stations(), quiet())
	assert.Equal(t, 2, out.Count())
	assert.Equal(t, 3, stats.AfterDuration)
	assert.Equal(t, 2, stats.AfterMember)
	for j := range out.All() {
		assert.NotEqual(t, UnknownMemberType, j.MemberType)
	}
}

func TestExcludedStationRemovedAfterJoin(t *testing.T) {
	in := dataset.FromSlice([]source.TripRecord{
		trip(100, 32051, "Member"),
		trip(100, 31008, "Member"),
		trip(100, 31000, "Member"),
	})
	out, stats := Clean(in, stations(), quiet())
	assert.Equal(t, 3, stats.AfterJoin, "excluded stations are still present after the join")
	assert.Equal(t, 1, stats.AfterExclude)
	require.Equal(t, 1, out.Count())
	assert.Equal(t, 31000, out.At(0).StartStationID)
}

func TestUnmatchedStationKeepsNullGeo(t *testing.T) {
	in := dataset.FromSlice([]source.TripRecord{
		trip(100, 40000, "Member"),
		trip(100, 31000, "Casual"),
		trip(100, 32034, "Member"),
	})
	out, stats := Clean(in, stations(), quiet())
	require.Equal(t, 2, out.Count())
	assert.Equal(t, 2, stats.Unmatched)

	unmatched := out.At(0)
	assert.Equal(t, 40000, unmatched.StartStationID)
	assert.False(t, unmatched.StartStationLat.Valid)
	assert.False(t, unmatched.StartStationLong.Valid)

	matched := out.At(1)
	assert.True(t, matched.StartStationLat.Valid)
	assert.Equal(t, 38.85, matched.StartStationLat.Float64)
	assert.Equal(t, -77.05, matched.StartStationLong.Float64)
}

func TestCleanLogsCounts(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelInfo)
	in := dataset.FromSlice([]source.TripRecord{trip(100, 31000, "Member"), trip(6000, 31000, "Member")})

	Clean(in, stations(), logger)
	assert.True(t, logger.ContainsMessage("duration filter applied"))
	assert.True(t, logger.ContainsMessage("stations joined"))
	assert.True(t, logger.ContainsField(log.InputSamplesKey, 2.0))
	assert.True(t, logger.ContainsField(log.SamplesKey, 1.0))
}

func TestExclusionSetIsFixed(t *testing.T) {
	assert.Len(t, ExcludedStationIDs, 3)
	for _, id := range []int{31008, 32051, 32034} {
		assert.True(t, IsExcludedStation(id))
	}
	assert.False(t, IsExcludedStation(31000))
}
