package features

import (
	"math"
	"time"
)

// Periods of the cyclical time fields.
const (
	PeriodDayOfWeek  = 7
	PeriodWeekOfYear = 53
	PeriodMonth      = 12
	PeriodMinute     = 60
	PeriodHour       = 24
)

// SinCos maps value onto the unit circle with the given period.
func SinCos(value, period float64) (sin, cos float64) {
	angle := 2 * math.Pi * value / period
	return math.Sin(angle), math.Cos(angle)
}

// TimeFields are the integer calendar fields extracted from a start time.
type TimeFields struct {
	DayOfWeek  int // 1 = Sunday ... 7 = Saturday
	WeekOfYear int // ISO 8601, 1..53
	Month      int // 1..12
	Minute     int
	Hour       int
}

// ExtractTimeFields returns the calendar fields of t in its own location.
func ExtractTimeFields(t time.Time) TimeFields {
	_, week := t.ISOWeek()
	return TimeFields{
		DayOfWeek:  int(t.Weekday()) + 1,
		WeekOfYear: week,
		Month:      int(t.Month()),
		Minute:     t.Minute(),
		Hour:       t.Hour(),
	}
}

// Cyclical holds the sine/cosine pairs of the five time fields.
type Cyclical struct {
	SinDayOfWeek  float64 `json:"sin_day_of_week"`
	CosDayOfWeek  float64 `json:"cos_day_of_week"`
	SinWeekOfYear float64 `json:"sin_week_of_year"`
	CosWeekOfYear float64 `json:"cos_week_of_year"`
	SinMonth      float64 `json:"sin_month"`
	CosMonth      float64 `json:"cos_month"`
	SinMinute     float64 `json:"sin_minute"`
	CosMinute     float64 `json:"cos_minute"`
	SinHour       float64 `json:"sin_hour"`
	CosHour       float64 `json:"cos_hour"`
}

// EncodeCyclical encodes f. Month is shifted to zero-based so January maps
// to angle 0.
func EncodeCyclical(f TimeFields) Cyclical {
	var c Cyclical
	c.SinDayOfWeek, c.CosDayOfWeek = SinCos(float64(f.DayOfWeek), PeriodDayOfWeek)
	c.SinWeekOfYear, c.CosWeekOfYear = SinCos(float64(f.WeekOfYear), PeriodWeekOfYear)
	c.SinMonth, c.CosMonth = SinCos(float64(f.Month-1), PeriodMonth)
	c.SinMinute, c.CosMinute = SinCos(float64(f.Minute), PeriodMinute)
	c.SinHour, c.CosHour = SinCos(float64(f.Hour), PeriodHour)
	return c
}

// Values returns the features in CyclicalColumns order.
func (c Cyclical) Values() []float64 {
	return []float64{
		c.SinDayOfWeek, c.CosDayOfWeek,
		c.SinWeekOfYear, c.CosWeekOfYear,
		c.SinMonth, c.CosMonth,
		c.SinMinute, c.CosMinute,
		c.SinHour, c.CosHour,
	}
}
