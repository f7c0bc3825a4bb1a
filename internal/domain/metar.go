package domain

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrUnknownStation is wrapped when a report names a station the catalog does not know.
var ErrUnknownStation = errors.New("station not in catalog")

// ErrNilReport is wrapped for reports explicitly marked NIL.
var ErrNilReport = errors.New("nil report")

var (
	metarStationRe  = regexp.MustCompile(`^[A-Z][A-Z0-9]{3}$`)
	metarTimeRe     = regexp.MustCompile(`^(\d{2})(\d{2})(\d{2})Z$`)
	metarWindRe     = regexp.MustCompile(`^(\d{3}|VRB)(\d{2,3})(?:G(\d{2,3}))?(KT|MPS|KMH)$`)
	metarTempRe     = regexp.MustCompile(`^(M?\d{2})/(M?\d{2})?$`)
	metarAltimeterA = regexp.MustCompile(`^A(\d{4})$`)
	metarAltimeterQ = regexp.MustCompile(`^Q(\d{4})$`)
	metarCloudRe    = regexp.MustCompile(`^(FEW|SCT|BKN|OVC|VV)(\d{3}|///)`)
)

// skyCover maps cloud amounts to the station-model sky cover code.
var skyCover = map[string]int{
	"SKC": 0, "CLR": 0, "NSC": 0, "NCD": 0, "CAVOK": 0,
	"FEW": 2, "SCT": 4, "BKN": 6, "OVC": 8, "VV": 9,
}

const (
	hPaToInHg = 0.0295299830714
	mpsToKnot = 1.943844
	kmhToKnot = 0.539957
)

// METARDecoder decodes METAR/SPECI report lines and places them with
// coordinates from the station catalog.
type METARDecoder struct {
	stations StationLookup
}

// NewMETARDecoder creates a decoder backed by the given station lookup.
func NewMETARDecoder(stations StationLookup) *METARDecoder {
	return &METARDecoder{stations: stations}
}

// DecodeReport decodes a single report. A missing or malformed station or
// time group, a NIL report, or a station unknown to the catalog is an error.
// Weather groups that are absent leave the corresponding fields nil.
func (d *METARDecoder) DecodeReport(report string, stamp time.Time) (Observation, error) {
	raw := strings.TrimSpace(report)
	tokens := strings.Fields(strings.TrimSuffix(raw, "="))
	if len(tokens) > 0 && (tokens[0] == "METAR" || tokens[0] == "SPECI") {
		tokens = tokens[1:]
	}
	if len(tokens) < 2 {
		return Observation{}, &FormatError{Field: "report", Value: raw}
	}

	station := tokens[0]
	if !metarStationRe.MatchString(station) {
		return Observation{}, &FormatError{Field: "station", Value: station}
	}

	observedAt, err := resolveObservationTime(tokens[1], stamp)
	if err != nil {
		return Observation{}, err
	}

	meta, ok := d.stations.LookupStation(station)
	if !ok {
		return Observation{}, &FormatError{Field: "station", Value: station, Err: ErrUnknownStation}
	}

	obs := Observation{
		StationID:  station,
		ObservedAt: observedAt,
		ReportTime: stamp,
		Lat:        meta.Lat,
		Lon:        meta.Lon,
		Elevation:  meta.Elevation,
		Raw:        raw,
	}

	for _, tok := range tokens[2:] {
		if tok == "RMK" {
			break
		}
		if tok == "NIL" {
			return Observation{}, &FormatError{Field: "report", Value: raw, Err: ErrNilReport}
		}
		decodeGroup(&obs, tok)
	}
	return obs, nil
}

// decodeGroup applies one body group to the observation. Unrecognized groups
// (visibility, present weather, runway visual range) are ignored.
func decodeGroup(obs *Observation, tok string) {
	if m := metarWindRe.FindStringSubmatch(tok); m != nil {
		decodeWind(obs, m)
		return
	}
	if m := metarTempRe.FindStringSubmatch(tok); m != nil {
		obs.AirTemperature = ptr(parseSignedTemp(m[1]))
		if m[2] != "" {
			obs.DewPoint = ptr(parseSignedTemp(m[2]))
		}
		return
	}
	if m := metarAltimeterA.FindStringSubmatch(tok); m != nil {
		v, _ := strconv.Atoi(m[1])
		obs.Altimeter = ptr(float64(v) / 100.0)
		return
	}
	if m := metarAltimeterQ.FindStringSubmatch(tok); m != nil {
		v, _ := strconv.Atoi(m[1])
		obs.Altimeter = ptr(math.Round(float64(v)*hPaToInHg*100) / 100)
		return
	}
	if code, ok := skyCover[tok]; ok {
		raiseCloudCover(obs, code)
		return
	}
	if m := metarCloudRe.FindStringSubmatch(tok); m != nil {
		raiseCloudCover(obs, skyCover[m[1]])
	}
}

func decodeWind(obs *Observation, m []string) {
	factor := 1.0
	switch m[4] {
	case "MPS":
		factor = mpsToKnot
	case "KMH":
		factor = kmhToKnot
	}

	speedRaw, _ := strconv.Atoi(m[2])
	speed := float64(speedRaw) * factor
	obs.WindSpeed = ptr(speed)
	if m[3] != "" {
		gust, _ := strconv.Atoi(m[3])
		obs.WindGust = ptr(float64(gust) * factor)
	}

	if m[1] == "VRB" {
		return
	}
	dir, _ := strconv.Atoi(m[1])
	obs.WindDirection = ptr(float64(dir))

	if speed == 0 {
		obs.EastwardWind = ptr(0.0)
		obs.NorthwardWind = ptr(0.0)
		return
	}
	rad := float64(dir) * math.Pi / 180
	obs.EastwardWind = ptr(-speed * math.Sin(rad))
	obs.NorthwardWind = ptr(-speed * math.Cos(rad))
}

// raiseCloudCover keeps the highest sky cover reported across layers.
func raiseCloudCover(obs *Observation, code int) {
	if obs.CloudCoverage == nil || code > *obs.CloudCoverage {
		obs.CloudCoverage = ptr(code)
	}
}

func parseSignedTemp(s string) float64 {
	neg := strings.HasPrefix(s, "M")
	v, _ := strconv.Atoi(strings.TrimPrefix(s, "M"))
	if neg {
		return -float64(v)
	}
	return float64(v)
}

// resolveObservationTime combines a DDHHMMZ group with the year and month of
// the block stamp. A day after the stamp's day belongs to the previous month
// and must exist in it.
func resolveObservationTime(group string, stamp time.Time) (time.Time, error) {
	m := metarTimeRe.FindStringSubmatch(group)
	if m == nil {
		return time.Time{}, &FormatError{Field: "time", Value: group}
	}
	day, _ := strconv.Atoi(m[1])
	hour, _ := strconv.Atoi(m[2])
	minute, _ := strconv.Atoi(m[3])
	if day < 1 || day > 31 || hour > 23 || minute > 59 {
		return time.Time{}, &FormatError{Field: "time", Value: group}
	}

	stamp = stamp.UTC()
	month := stamp.Month()
	if day > stamp.Day() {
		month--
	}
	t := time.Date(stamp.Year(), month, day, hour, minute, 0, 0, time.UTC)
	// time.Date normalizes a day past the month's end into the next month.
	if t.Day() != day {
		return time.Time{}, &FormatError{Field: "time", Value: group}
	}
	return t, nil
}

func ptr[T any](v T) *T { return &v }
