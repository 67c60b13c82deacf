// Package features derives the model-ready FeatureRow from a cleaned trip:
// the log1p label, the station coordinates and ten cyclical time features.
// Raw timestamps, station ids, durations and the integer time fields do not
// survive the transform.
package features

import (
	"database/sql"
	"math"
	"time"

	"github.com/YuminosukeSato/bikeshare/cleaning"
	"github.com/YuminosukeSato/bikeshare/dataset"
	"github.com/YuminosukeSato/bikeshare/pkg/errors"
	"github.com/YuminosukeSato/bikeshare/pkg/log"
)

// StartDateLayout is the textual form of a trip start time
// (yyyy-MM-dd HH:mm:ss). Times are read as UTC.
const StartDateLayout = "2006-01-02 15:04:05"

// Column names used once rows become a pipeline.Frame.
const (
	LabelColumn      = "label"
	MemberTypeColumn = "member_type"
	LatitudeColumn   = "start_station_lat"
	LongitudeColumn  = "start_station_long"
)

// CyclicalColumns lists the cyclical feature columns in assembly order.
var CyclicalColumns = []string{
	"sin_day_of_week", "cos_day_of_week",
	"sin_week_of_year", "cos_week_of_year",
	"sin_month", "cos_month",
	"sin_minute", "cos_minute",
	"sin_hour", "cos_hour",
}

// FeatureRow is one unit of training data.
type FeatureRow struct {
	Label            float64         `json:"label"`
	MemberType       string          `json:"member_type"`
	StartStationLat  sql.NullFloat64 `json:"start_station_lat"`
	StartStationLong sql.NullFloat64 `json:"start_station_long"`
	Cyclical
}

// Stats counts the rows the transform saw and dropped.
type Stats struct {
	Input       int
	Output      int
	Unparseable int
	NonFinite   int
}

// Label is ln(1 + duration).
func Label(duration float64) float64 {
	return math.Log1p(duration)
}

// ParseStartDate parses a start timestamp in StartDateLayout as UTC.
func ParseStartDate(s string) (time.Time, error) {
	return time.ParseInLocation(StartDateLayout, s, time.UTC)
}

// FromTrip derives a FeatureRow. parsed reports whether the start date could
// be read and finite whether the label is a finite number; the row is only
// valid when both hold.
func FromTrip(t cleaning.JoinedTrip) (row FeatureRow, parsed bool, finite bool) {
	start, err := ParseStartDate(t.StartDate)
	if err != nil {
		return FeatureRow{}, false, true
	}
	label := Label(t.Duration)
	if math.IsNaN(label) || math.IsInf(label, 0) {
		return FeatureRow{}, true, false
	}
	return FeatureRow{
		Label:            label,
		MemberType:       t.MemberType,
		StartStationLat:  t.StartStationLat,
		StartStationLong: t.StartStationLong,
		Cyclical:         EncodeCyclical(ExtractTimeFields(start)),
	}, true, true
}

// Transform converts cleaned trips into FeatureRows. Rows that cannot be
// converted are excluded and counted rather than failing the run.
func Transform(in *dataset.Table[cleaning.JoinedTrip], logger log.Logger) (*dataset.Table[FeatureRow], Stats) {
	if logger == nil {
		logger = log.GetLoggerWithName("features")
	}
	stats := Stats{Input: in.Count()}

	type result struct {
		row            FeatureRow
		parsed, finite bool
	}
	results := dataset.Map(in, func(t cleaning.JoinedTrip) result {
		row, parsed, finite := FromTrip(t)
		return result{row, parsed, finite}
	})

	rows := make([]FeatureRow, 0, results.Count())
	for r := range results.All() {
		switch {
		case !r.parsed:
			stats.Unparseable++
		case !r.finite:
			stats.NonFinite++
		default:
			rows = append(rows, r.row)
		}
	}
	stats.Output = len(rows)

	if stats.Unparseable > 0 {
		errors.Warn(errors.NewDataConversionWarning("start_date", stats.Unparseable, "does not match "+StartDateLayout))
	}
	if stats.NonFinite > 0 {
		errors.Warn(errors.NewDataConversionWarning("duration", stats.NonFinite, "label is not finite"))
	}
	logger.Info("features derived",
		log.OperationKey, log.OperationTransform,
		log.PhaseKey, log.PhasePreprocessing,
		log.InputSamplesKey, stats.Input,
		log.SamplesKey, stats.Output,
		log.ExcludedKey, stats.Unparseable+stats.NonFinite,
	)
	return dataset.FromSlice(rows), stats
}
