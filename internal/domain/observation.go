package domain

import (
	"time"
)

// Observation is one decoded surface weather report.
type Observation struct {
	StationID  string    `json:"station_id"`
	ObservedAt time.Time `json:"observed_at"`
	ReportTime time.Time `json:"report_time"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	Elevation  int       `json:"elevation_m"`

	AirTemperature *float64 `json:"air_temperature,omitempty"`        // degC
	DewPoint       *float64 `json:"dew_point_temperature,omitempty"`  // degC
	Altimeter      *float64 `json:"altimeter,omitempty"`              // inHg
	WindDirection  *float64 `json:"wind_direction,omitempty"`         // degrees true, nil when variable
	WindSpeed      *float64 `json:"wind_speed,omitempty"`             // knots
	WindGust       *float64 `json:"wind_gust,omitempty"`              // knots
	EastwardWind   *float64 `json:"eastward_wind,omitempty"`          // knots
	NorthwardWind  *float64 `json:"northward_wind,omitempty"`         // knots
	CloudCoverage  *int     `json:"cloud_coverage,omitempty"`         // sky cover code 0-9

	Raw string `json:"raw"`
}

// ObservationKey identifies exact duplicates.
type ObservationKey struct {
	StationID  string
	ReportTime int64
	Raw        string
}

// Key returns the deduplication key: station, report time and raw text.
func (o Observation) Key() ObservationKey {
	return ObservationKey{
		StationID:  o.StationID,
		ReportTime: o.ReportTime.UnixNano(),
		Raw:        o.Raw,
	}
}

// ParseOutcome classifies the result of decoding one report block.
type ParseOutcome int

const (
	OutcomeDecoded ParseOutcome = iota
	OutcomeSkippedMalformed
)

func (o ParseOutcome) String() string {
	switch o {
	case OutcomeDecoded:
		return "decoded"
	case OutcomeSkippedMalformed:
		return "skipped_malformed"
	default:
		return "unknown"
	}
}

// ParseResult is the per-block outcome produced by the parser pool. Only
// results with OutcomeDecoded carry an Observation.
type ParseResult struct {
	Index       int
	Observation Observation
	Outcome     ParseOutcome
	Err         error
}

// StationLookup resolves station metadata by ICAO identifier.
type StationLookup interface {
	LookupStation(icao string) (StationRecord, bool)
}

// ReportDecoder decodes one encoded report line. stamp is the block's
// timestamp line and becomes the observation's ReportTime.
type ReportDecoder interface {
	DecodeReport(report string, stamp time.Time) (Observation, error)
}
