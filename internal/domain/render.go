package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FieldStationID is the station-id label entry removed when a plan drops labels.
const FieldStationID = "station_id"

// FieldFormat names how a field value is rendered next to the station mark.
type FieldFormat string

const (
	FormatText          FieldFormat = "text"
	FormatFahrenheit    FieldFormat = "degF"
	FormatAltimeterCode FieldFormat = "altimeter_code"
	FormatSkyCover      FieldFormat = "sky_cover"
)

// FieldSpec places one observation field around the station mark.
type FieldSpec struct {
	Field     string      `json:"field"`
	Placement string      `json:"placement"`
	Color     string      `json:"color"`
	Format    FieldFormat `json:"format"`
}

// DefaultFields is the fixed station-model layout.
func DefaultFields() []FieldSpec {
	return []FieldSpec{
		{Field: "air_temperature", Placement: "NW", Color: "tab:red", Format: FormatFahrenheit},
		{Field: "dew_point_temperature", Placement: "SW", Color: "tab:green", Format: FormatFahrenheit},
		{Field: "altimeter", Placement: "NE", Color: "black", Format: FormatAltimeterCode},
		{Field: "cloud_coverage", Placement: "C", Color: "black", Format: FormatSkyCover},
		{Field: FieldStationID, Placement: "SE", Color: "black", Format: FormatText},
	}
}

// WindVector names the barb components.
var WindVector = [2]string{"eastward_wind", "northward_wind"}

// StationMark is one station's formatted values, keyed by field name.
type StationMark struct {
	StationID string            `json:"station_id"`
	Lat       float64           `json:"lat"`
	Lon       float64           `json:"lon"`
	Values    map[string]string `json:"values"`
	U         *float64          `json:"u,omitempty"`
	V         *float64          `json:"v,omitempty"`
}

// RenderPayload is handed to the rendering collaborator.
type RenderPayload struct {
	Region       string         `json:"region"`
	Box          BoundingRegion `json:"box"`
	ReportTime   time.Time      `json:"report_time"`
	Plan         RenderPlan     `json:"plan"`
	Fields       []FieldSpec    `json:"fields"`
	Vector       [2]string      `json:"vector"`
	Observations []Observation  `json:"observations"`
	Marks        []StationMark  `json:"marks"`
	Image        string         `json:"image"`
}

// BuildRenderPayload combines observations with the field layout, removing
// the station-id entry when the plan drops labels. The report time is the
// earliest observation's, or cycle when there are none.
func BuildRenderPayload(regionID string, box BoundingRegion, plan RenderPlan, observations []Observation, cycle time.Time) RenderPayload {
	fields := DefaultFields()
	if plan.DropStationLabels {
		kept := fields[:0]
		for _, f := range fields {
			if f.Field != FieldStationID {
				kept = append(kept, f)
			}
		}
		fields = kept
	}

	marks := make([]StationMark, 0, len(observations))
	for _, o := range observations {
		mark := StationMark{
			StationID: o.StationID,
			Lat:       o.Lat,
			Lon:       o.Lon,
			Values:    make(map[string]string, len(fields)),
			U:         o.EastwardWind,
			V:         o.NorthwardWind,
		}
		for _, f := range fields {
			if v, ok := formatField(o, f); ok {
				mark.Values[f.Field] = v
			}
		}
		marks = append(marks, mark)
	}

	reportTime := EarliestReportTime(observations)
	if reportTime.IsZero() {
		reportTime = cycle.UTC()
	}
	return RenderPayload{
		Region:       regionID,
		Box:          box,
		ReportTime:   reportTime,
		Plan:         plan,
		Fields:       fields,
		Vector:       WindVector,
		Observations: observations,
		Marks:        marks,
		Image:        ImageFileName(regionID, reportTime),
	}
}

func formatField(o Observation, f FieldSpec) (string, bool) {
	switch f.Field {
	case "air_temperature":
		return formatFloat(o.AirTemperature, f.Format)
	case "dew_point_temperature":
		return formatFloat(o.DewPoint, f.Format)
	case "altimeter":
		return formatFloat(o.Altimeter, f.Format)
	case "cloud_coverage":
		if o.CloudCoverage == nil {
			return "", false
		}
		return strconv.Itoa(*o.CloudCoverage), true
	case FieldStationID:
		return o.StationID, o.StationID != ""
	}
	return "", false
}

func formatFloat(v *float64, format FieldFormat) (string, bool) {
	if v == nil {
		return "", false
	}
	switch format {
	case FormatFahrenheit:
		return strconv.FormatFloat(*v*9/5+32, 'f', 0, 64), true
	case FormatAltimeterCode:
		s := strconv.FormatFloat(10**v, 'f', 0, 64)
		if len(s) > 3 {
			s = s[len(s)-3:]
		}
		return s, true
	default:
		return strconv.FormatFloat(*v, 'f', -1, 64), true
	}
}

// EarliestReportTime returns the minimum report time, or the zero time for
// an empty set.
func EarliestReportTime(observations []Observation) time.Time {
	var earliest time.Time
	for _, o := range observations {
		if earliest.IsZero() || o.ReportTime.Before(earliest) {
			earliest = o.ReportTime
		}
	}
	return earliest
}

// ImageFileName names the rendered image for a region and report time.
func ImageFileName(regionID string, reportTime time.Time) string {
	t := reportTime.UTC()
	return fmt.Sprintf("metar_obs_%s_%02d00_%s.png", t.Format("2006-01-02"), t.Hour(), NormalizeRegionKey(regionID))
}

// CSVFileName names the tabular export for a region and report time.
func CSVFileName(regionID string, reportTime time.Time) string {
	t := reportTime.UTC()
	return fmt.Sprintf("metar_data_%s_%s_%02d00.csv", NormalizeRegionKey(regionID), t.Format("2006-01-02"), t.Hour())
}

// GeoJSONFileName names the GeoJSON export for a region and report time.
func GeoJSONFileName(regionID string, reportTime time.Time) string {
	return strings.TrimSuffix(CSVFileName(regionID, reportTime), ".csv") + ".geojson"
}
