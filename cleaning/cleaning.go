// Package cleaning filters raw trips and joins them with station
// coordinates.
package cleaning

import (
	"database/sql"

	"github.com/YuminosukeSato/bikeshare/dataset"
	"github.com/YuminosukeSato/bikeshare/pkg/log"
	"github.com/YuminosukeSato/bikeshare/source"
)

// Domain constants. They are deliberately not configurable.
const (
	// MaxDurationSeconds is the longest accepted trip, inclusive (1.5 hours).
	MaxDurationSeconds = 5400.0
	// UnknownMemberType is the member category that is dropped.
	UnknownMemberType = "Unknown"
)

// ExcludedStationIDs are retired or invalid station codes.
var ExcludedStationIDs = map[int]struct{}{
	31008: {},
	32051: {},
	32034: {},
}

// IsExcludedStation reports whether id is in ExcludedStationIDs.
func IsExcludedStation(id int) bool {
	_, ok := ExcludedStationIDs[id]
	return ok
}

// JoinedTrip is a trip with the coordinates of its start station. Trips whose
// station is missing from the reference data carry null coordinates.
type JoinedTrip struct {
	source.TripRecord
	StartStationLat  sql.NullFloat64
	StartStationLong sql.NullFloat64
}

// Stats holds the row counts after each cleaning step.
type Stats struct {
	Input         int
	AfterDuration int
	AfterMember   int
	AfterJoin     int
	Unmatched     int
	AfterExclude  int
}

// Clean applies, in order: the duration filter, the member-type filter, the
// left join with stations, and the station exclusion list.
func Clean(trips *dataset.Table[source.TripRecord], stations *dataset.Table[source.StationRecord], logger log.Logger) (*dataset.Table[JoinedTrip], Stats) {
	if logger == nil {
		logger = log.GetLoggerWithName("cleaning")
	}
	logger = logger.With(log.PhaseKey, log.PhasePreprocessing)
	stats := Stats{Input: trips.Count()}

	trips = dataset.Filter(trips, func(t source.TripRecord) bool {
		return t.Duration >= 0 && t.Duration <= MaxDurationSeconds
	})
	stats.AfterDuration = trips.Count()
	logger.Info("duration filter applied",
		log.OperationKey, log.OperationFilter,
		log.InputSamplesKey, stats.Input,
		log.SamplesKey, stats.AfterDuration,
	)

	trips = dataset.Filter(trips, func(t source.TripRecord) bool {
		return t.MemberType != UnknownMemberType
	})
	stats.AfterMember = trips.Count()
	logger.Info("member type filter applied",
		log.OperationKey, log.OperationFilter,
		log.SamplesKey, stats.AfterMember,
	)

	joined := dataset.LeftJoin(trips, stations,
		func(t source.TripRecord) int { return t.StartStationID },
		func(s source.StationRecord) int { return s.ID },
		func(t source.TripRecord, s source.StationRecord, matched bool) JoinedTrip {
			j := JoinedTrip{TripRecord: t}
			if matched {
				j.StartStationLat = sql.NullFloat64{Float64: s.Latitude, Valid: true}
				j.StartStationLong = sql.NullFloat64{Float64: s.Longitude, Valid: true}
			}
			return j
		},
	)
	stats.AfterJoin = joined.Count()
	for j := range joined.All() {
		if !j.StartStationLat.Valid {
			stats.Unmatched++
		}
	}
	logger.Info("stations joined",
		log.OperationKey, log.OperationJoin,
		log.SamplesKey, stats.AfterJoin,
		"unmatched", stats.Unmatched,
	)

	joined = dataset.Filter(joined, func(j JoinedTrip) bool {
		return !IsExcludedStation(j.StartStationID)
	})
	stats.AfterExclude = joined.Count()
	logger.Info("excluded stations removed",
		log.OperationKey, log.OperationFilter,
		log.SamplesKey, stats.AfterExclude,
		log.ExcludedKey, stats.AfterJoin-stats.AfterExclude,
	)
	return joined, stats
}
