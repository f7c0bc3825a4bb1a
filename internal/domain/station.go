package domain

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// RegionNames maps the two-letter region codes accepted by the station
// catalog to their full names.
var RegionNames = map[string]string{
	"AK": "Alaska", "AL": "Alabama", "AR": "Arkansas", "AZ": "Arizona",
	"CA": "California", "CO": "Colorado", "CT": "Connecticut", "DE": "Delaware",
	"FL": "Florida", "GA": "Georgia", "HI": "Hawaii", "IA": "Iowa",
	"ID": "Idaho", "IL": "Illinois", "IN": "Indiana", "KS": "Kansas",
	"KY": "Kentucky", "LA": "Louisiana", "MA": "Massachusetts", "MD": "Maryland",
	"ME": "Maine", "MI": "Michigan", "MN": "Minnesota", "MO": "Missouri",
	"MS": "Mississippi", "MT": "Montana", "NC": "North Carolina", "ND": "North Dakota",
	"NE": "Nebraska", "NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico",
	"NV": "Nevada", "NY": "New York", "OH": "Ohio", "OK": "Oklahoma",
	"OR": "Oregon", "PA": "Pennsylvania", "RI": "Rhode Island", "SC": "South Carolina",
	"SD": "South Dakota", "TN": "Tennessee", "TX": "Texas", "UT": "Utah",
	"VA": "Virginia", "VT": "Vermont", "WA": "Washington", "WI": "Wisconsin",
	"WV": "West Virginia", "WY": "Wyoming", "DC": "District of Columbia",
	"AS": "American Samoa", "GU": "Guam", "MP": "Northern Mariana Islands",
	"PR": "Puerto Rico", "VI": "U.S. Virgin Islands",
}

// domesticMarker is the last token of every station line kept by the loader.
const domesticMarker = "US"

// column is a half-open character range within a station table line.
type column struct{ start, end int }

// Fixed columns of the reference table. Names contain spaces, so fields are
// cut by position rather than split on whitespace.
var (
	colRegion    = column{0, 2}
	colName      = column{3, 19}
	colICAO      = column{20, 24}
	colIATA      = column{25, 30}
	colSynoptic  = column{31, 37}
	colLat       = column{37, 45}
	colLon       = column{45, 54}
	colElevation = column{54, 60}
	colMETAR     = column{61, 64}
	colRadar     = column{64, 67}
	colAviation  = column{67, 70}
	colUpperAir  = column{70, 73}
	colAuto      = column{73, 76}
	colOffice    = column{76, 79}
	colPriority  = column{79, 81}
)

func (c column) cut(line string) string {
	if c.start >= len(line) {
		return ""
	}
	end := c.end
	if end > len(line) {
		end = len(line)
	}
	return strings.TrimSpace(line[c.start:end])
}

// SoundingType classifies a station's upper-air program.
type SoundingType string

const (
	SoundingNone         SoundingType = "none"
	SoundingRawinsonde   SoundingType = "rawinsonde"
	SoundingWindProfiler SoundingType = "wind-profiler"
)

// OfficeType is the office classification filter value.
type OfficeType string

const (
	OfficeAny  OfficeType = ""
	OfficeWFO  OfficeType = "wfo"
	OfficeRFC  OfficeType = "rfc"
	OfficeNCEP OfficeType = "ncep"
)

// Capabilities are the independent boolean flags decoded from the
// single-character columns. Unrecognized codes decode to false.
type Capabilities struct {
	METAR bool `json:"metar"`
	Radar bool `json:"radar"`

	Rawinsonde   bool `json:"rawinsonde"`
	WindProfiler bool `json:"wind_profiler"`

	SIGMET           bool `json:"sigmet"`
	CenterWeather    bool `json:"center_weather"`
	TerminalForecast bool `json:"terminal_forecast"`

	ASOS      bool `json:"asos"`
	AWOS      bool `json:"awos"`
	Mesonet   bool `json:"mesonet"`
	Human     bool `json:"human"`
	Augmented bool `json:"augmented"`

	ForecastOffice      bool `json:"forecast_office"`
	RiverForecastCenter bool `json:"river_forecast_center"`
	NationalCenter      bool `json:"national_center"`
}

// Sounding reports the upper-air program as a single value.
func (c Capabilities) Sounding() SoundingType {
	switch {
	case c.Rawinsonde:
		return SoundingRawinsonde
	case c.WindProfiler:
		return SoundingWindProfiler
	default:
		return SoundingNone
	}
}

// StationRecord is one decoded line of the station reference table.
// Records are immutable once loaded.
type StationRecord struct {
	Region       string       `json:"region"`
	RegionName   string       `json:"region_name"`
	Name         string       `json:"name"`
	ICAO         string       `json:"icao,omitempty"`
	IATA         string       `json:"iata,omitempty"`
	Synoptic     string       `json:"synoptic,omitempty"`
	Lat          float64      `json:"lat"`
	Lon          float64      `json:"lon"`
	Elevation    int          `json:"elevation_m"`
	PlotPriority int          `json:"plot_priority"`
	Capabilities Capabilities `json:"capabilities"`
}

// DecodeStationTable reads a station reference table and returns the domestic
// station records. Comment, blank, header, foreign and malformed lines are
// skipped; the returned skipped count covers only candidate lines that failed
// to decode.
func DecodeStationTable(r io.Reader) ([]StationRecord, int, error) {
	var (
		records []StationRecord
		skipped int
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if !isStationLine(line) {
			continue
		}
		rec, err := DecodeStationLine(line)
		if err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, err
	}
	return records, skipped, nil
}

// isStationLine applies the data-quality filter: a recognized region code
// first and the domestic marker last.
func isStationLine(line string) bool {
	if strings.HasPrefix(line, "!") || strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
		return false
	}
	fields := strings.Fields(line)
	if len(fields) <= 2 || fields[0] == "CD" {
		return false
	}
	if _, ok := RegionNames[fields[0]]; !ok {
		return false
	}
	return fields[len(fields)-1] == domesticMarker
}

// DecodeStationLine decodes a single fixed-column station line.
func DecodeStationLine(line string) (StationRecord, error) {
	lat, err := ParseCoordinate(colLat.cut(line))
	if err != nil {
		return StationRecord{}, err
	}
	lon, err := ParseCoordinate(colLon.cut(line))
	if err != nil {
		return StationRecord{}, err
	}

	elevation := 0
	if s := colElevation.cut(line); s != "" {
		elevation, err = strconv.Atoi(s)
		if err != nil {
			return StationRecord{}, &FormatError{Field: "elevation", Value: s, Err: err}
		}
	}

	priority, _ := strconv.Atoi(colPriority.cut(line))

	region := colRegion.cut(line)
	return StationRecord{
		Region:       region,
		RegionName:   RegionNames[region],
		Name:         colName.cut(line),
		ICAO:         colICAO.cut(line),
		IATA:         colIATA.cut(line),
		Synoptic:     colSynoptic.cut(line),
		Lat:          lat,
		Lon:          lon,
		Elevation:    elevation,
		PlotPriority: priority,
		Capabilities: decodeCapabilities(line),
	}, nil
}

func decodeCapabilities(line string) Capabilities {
	aviation := colAviation.cut(line)
	upper := colUpperAir.cut(line)
	auto := colAuto.cut(line)
	office := colOffice.cut(line)

	return Capabilities{
		METAR: colMETAR.cut(line) == "X",
		Radar: colRadar.cut(line) == "X",

		Rawinsonde:   upper == "X",
		WindProfiler: upper == "W",

		SIGMET:           aviation == "V" || aviation == "U",
		CenterWeather:    aviation == "A",
		TerminalForecast: aviation == "T" || aviation == "U",

		ASOS:      auto == "A",
		AWOS:      auto == "W",
		Mesonet:   auto == "M",
		Human:     auto == "H",
		Augmented: auto == "G",

		ForecastOffice:      office == "F",
		RiverForecastCenter: office == "R",
		NationalCenter:      office == "C",
	}
}
