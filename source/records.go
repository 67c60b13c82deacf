package source

// TripRecord is one row of trip history as read from the rides files.
type TripRecord struct {
	// Duration in seconds.
	Duration float64 `json:"duration"`
	// StartDate is kept in its textual form; the feature stage parses it.
	StartDate      string `json:"start_date"`
	StartStationID int    `json:"start_station_id"`
	MemberType     string `json:"member_type"`
}

// StationRecord is one row of station reference data.
type StationRecord struct {
	ID        int     `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Columns maps canonical fields to the header names of the input files.
type Columns struct {
	Duration     string `koanf:"duration" validate:"required"`
	StartDate    string `koanf:"start_date" validate:"required"`
	StartStation string `koanf:"start_station" validate:"required"`
	MemberType   string `koanf:"member_type" validate:"required"`

	StationID string `koanf:"station_id" validate:"required"`
	Latitude  string `koanf:"latitude" validate:"required"`
	Longitude string `koanf:"longitude" validate:"required"`
}

// DefaultColumns returns the header names used by the Capital Bikeshare
// trip history and station exports.
func DefaultColumns() Columns {
	return Columns{
		Duration:     "Duration",
		StartDate:    "Start date",
		StartStation: "Start station number",
		MemberType:   "Member type",
		StationID:    "TERMINAL_NUMBER",
		Latitude:     "LATITUDE",
		Longitude:    "LONGITUDE",
	}
}

// ReadStats describes one read.
type ReadStats struct {
	Files     int
	Rows      int
	Malformed int
}
