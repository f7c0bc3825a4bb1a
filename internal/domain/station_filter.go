package domain

import (
	"slices"
	"strconv"
	"strings"
)

// Filter parameter names, shared by the HTTP and CLI surfaces.
const (
	FilterParamMETAR      = "metar"
	FilterParamRadar      = "nexrad"
	FilterParamRawinsonde = "rawinsonde"
	FilterParamOffice     = "office"
	FilterParamSounding   = "sounding"
	FilterParamRegions    = "states"
)

// StationFilter selects catalog records. Nil pointers and empty values mean
// "any"; every set field must match.
type StationFilter struct {
	METAR      *bool
	Radar      *bool
	Rawinsonde *bool
	Sounding   SoundingType
	Office     OfficeType
	Regions    []string
}

// ParseOfficeType accepts wfo, rfc or ncep in any case.
func ParseOfficeType(s string) (OfficeType, error) {
	switch OfficeType(strings.ToLower(strings.TrimSpace(s))) {
	case OfficeWFO:
		return OfficeWFO, nil
	case OfficeRFC:
		return OfficeRFC, nil
	case OfficeNCEP:
		return OfficeNCEP, nil
	default:
		return OfficeAny, &ValidationError{Param: FilterParamOffice, Reason: "must be one of: wfo, rfc, ncep"}
	}
}

// ParseSoundingType accepts none, rawinsonde or wind-profiler in any case.
func ParseSoundingType(s string) (SoundingType, error) {
	switch v := SoundingType(strings.ToLower(strings.TrimSpace(s))); v {
	case SoundingNone, SoundingRawinsonde, SoundingWindProfiler:
		return v, nil
	default:
		return "", &ValidationError{Param: FilterParamSounding, Reason: "must be one of: none, rawinsonde, wind-profiler"}
	}
}

// NewStationFilter builds a filter from textual parameters. Absent or empty
// parameters are left unset; malformed ones fail with a ValidationError naming
// the parameter.
func NewStationFilter(params map[string]string) (StationFilter, error) {
	var f StationFilter

	for _, b := range []struct {
		param string
		dst   **bool
	}{
		{FilterParamMETAR, &f.METAR},
		{FilterParamRadar, &f.Radar},
		{FilterParamRawinsonde, &f.Rawinsonde},
	} {
		raw, ok := params[b.param]
		if !ok || raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return StationFilter{}, &ValidationError{Param: b.param, Reason: "must be a boolean value (true/false)"}
		}
		*b.dst = &v
	}

	if raw := params[FilterParamOffice]; raw != "" {
		office, err := ParseOfficeType(raw)
		if err != nil {
			return StationFilter{}, err
		}
		f.Office = office
	}

	if raw := params[FilterParamSounding]; raw != "" {
		sounding, err := ParseSoundingType(raw)
		if err != nil {
			return StationFilter{}, err
		}
		f.Sounding = sounding
	}

	if raw := params[FilterParamRegions]; raw != "" {
		for _, code := range strings.Split(raw, ",") {
			f.Regions = append(f.Regions, strings.ToUpper(strings.TrimSpace(code)))
		}
	}

	if err := f.Validate(); err != nil {
		return StationFilter{}, err
	}
	return f, nil
}

// Validate checks the sounding type, office classification and region codes.
func (f StationFilter) Validate() error {
	switch f.Sounding {
	case "", SoundingNone, SoundingRawinsonde, SoundingWindProfiler:
	default:
		return &ValidationError{Param: FilterParamSounding, Reason: "must be one of: none, rawinsonde, wind-profiler"}
	}
	switch f.Office {
	case OfficeAny, OfficeWFO, OfficeRFC, OfficeNCEP:
	default:
		return &ValidationError{Param: FilterParamOffice, Reason: "must be one of: wfo, rfc, ncep"}
	}
	for _, code := range f.Regions {
		if _, ok := RegionNames[code]; !ok {
			return &ValidationError{Param: FilterParamRegions, Reason: "unknown region code " + strconv.Quote(code)}
		}
	}
	return nil
}

// Match reports whether a record satisfies every set field.
func (f StationFilter) Match(rec StationRecord) bool {
	c := rec.Capabilities
	if f.METAR != nil && c.METAR != *f.METAR {
		return false
	}
	if f.Radar != nil && c.Radar != *f.Radar {
		return false
	}
	if f.Rawinsonde != nil && c.Rawinsonde != *f.Rawinsonde {
		return false
	}
	if f.Sounding != "" && c.Sounding() != f.Sounding {
		return false
	}
	switch f.Office {
	case OfficeWFO:
		if !c.ForecastOffice {
			return false
		}
	case OfficeRFC:
		if !c.RiverForecastCenter {
			return false
		}
	case OfficeNCEP:
		if !c.NationalCenter {
			return false
		}
	}
	if len(f.Regions) > 0 {
		if !slices.Contains(f.Regions, rec.Region) {
			return false
		}
	}
	return true
}

// FilterStations returns the records matching f without mutating the input.
func FilterStations(records []StationRecord, f StationFilter) []StationRecord {
	out := make([]StationRecord, 0, len(records))
	for _, rec := range records {
		if f.Match(rec) {
			out = append(out, rec)
		}
	}
	return out
}
