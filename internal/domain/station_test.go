package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lineSpec describes one station line; stationLine lays it out in the fixed columns.
type lineSpec struct {
	region, name, icao, iata, synoptic string
	lat, lon, elevation                string
	metar, radar, aviation, upper      string
	auto, office, priority, country    string
}

func stationLine(s lineSpec) string {
	buf := []byte(strings.Repeat(" ", 84))
	put := func(col int, v string) { copy(buf[col:], v) }
	put(0, s.region)
	put(3, s.name)
	put(20, s.icao)
	put(25, s.iata)
	put(31, s.synoptic)
	put(39, s.lat)
	put(47, s.lon)
	put(55, s.elevation)
	put(62, s.metar)
	put(65, s.radar)
	put(68, s.aviation)
	put(71, s.upper)
	put(74, s.auto)
	put(77, s.office)
	put(79, s.priority)
	put(82, s.country)
	return strings.TrimRight(string(buf), " ")
}

func newarkLine() lineSpec {
	return lineSpec{
		region: "NJ", name: "NEWARK", icao: "KEWR", iata: "EWR", synoptic: "72502",
		lat: "40 42N", lon: "074 10W", elevation: "9",
		metar: "X", aviation: "U", auto: "A", priority: "6", country: "US",
	}
}

func TestDecodeStationLine(t *testing.T) {
	rec, err := DecodeStationLine(stationLine(newarkLine()))
	require.NoError(t, err)

	assert.Equal(t, "NJ", rec.Region)
	assert.Equal(t, "New Jersey", rec.RegionName)
	assert.Equal(t, "NEWARK", rec.Name)
	assert.Equal(t, "KEWR", rec.ICAO)
	assert.Equal(t, "EWR", rec.IATA)
	assert.Equal(t, "72502", rec.Synoptic)
	assert.InDelta(t, 40.7, rec.Lat, 1e-9)
	assert.InDelta(t, -(74 + 10.0/60), rec.Lon, 1e-9)
	assert.Equal(t, 9, rec.Elevation)
	assert.Equal(t, 6, rec.PlotPriority)

	c := rec.Capabilities
	assert.True(t, c.METAR)
	assert.False(t, c.Radar)
	assert.True(t, c.SIGMET)
	assert.True(t, c.TerminalForecast)
	assert.False(t, c.CenterWeather)
	assert.True(t, c.ASOS)
	assert.False(t, c.AWOS)
	assert.Equal(t, SoundingNone, c.Sounding())
}

func TestDecodeStationLine_NameWithSpaces(t *testing.T) {
	spec := newarkLine()
	spec.name = "ATLANTIC CITY"
	spec.icao = "KACY"
	rec, err := DecodeStationLine(stationLine(spec))
	require.NoError(t, err)
	assert.Equal(t, "ATLANTIC CITY", rec.Name)
	assert.Equal(t, "KACY", rec.ICAO)
}

func TestDecodeStationLine_CapabilityCodes(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*lineSpec)
		check func(*testing.T, Capabilities)
	}{
		{"radar", func(s *lineSpec) { s.radar = "X" }, func(t *testing.T, c Capabilities) { assert.True(t, c.Radar) }},
		{"rawinsonde", func(s *lineSpec) { s.upper = "X" }, func(t *testing.T, c Capabilities) {
			assert.True(t, c.Rawinsonde)
			assert.Equal(t, SoundingRawinsonde, c.Sounding())
		}},
		{"wind profiler", func(s *lineSpec) { s.upper = "W" }, func(t *testing.T, c Capabilities) {
			assert.True(t, c.WindProfiler)
			assert.Equal(t, SoundingWindProfiler, c.Sounding())
		}},
		{"center weather", func(s *lineSpec) { s.aviation = "A" }, func(t *testing.T, c Capabilities) {
			assert.True(t, c.CenterWeather)
			assert.False(t, c.SIGMET)
		}},
		{"sigmet only", func(s *lineSpec) { s.aviation = "V" }, func(t *testing.T, c Capabilities) {
			assert.True(t, c.SIGMET)
			assert.False(t, c.TerminalForecast)
		}},
		{"awos", func(s *lineSpec) { s.auto = "W" }, func(t *testing.T, c Capabilities) { assert.True(t, c.AWOS) }},
		{"mesonet", func(s *lineSpec) { s.auto = "M" }, func(t *testing.T, c Capabilities) { assert.True(t, c.Mesonet) }},
		{"human", func(s *lineSpec) { s.auto = "H" }, func(t *testing.T, c Capabilities) { assert.True(t, c.Human) }},
		{"augmented", func(s *lineSpec) { s.auto = "G" }, func(t *testing.T, c Capabilities) { assert.True(t, c.Augmented) }},
		{"forecast office", func(s *lineSpec) { s.office = "F" }, func(t *testing.T, c Capabilities) { assert.True(t, c.ForecastOffice) }},
		{"river forecast center", func(s *lineSpec) { s.office = "R" }, func(t *testing.T, c Capabilities) { assert.True(t, c.RiverForecastCenter) }},
		{"national center", func(s *lineSpec) { s.office = "C" }, func(t *testing.T, c Capabilities) { assert.True(t, c.NationalCenter) }},
		{"unrecognized codes decode false", func(s *lineSpec) {
			s.metar, s.radar, s.upper, s.auto, s.office = "Z", "?", "Q", "Z", "Y"
		}, func(t *testing.T, c Capabilities) {
			assert.Equal(t, Capabilities{SIGMET: true, TerminalForecast: true}, c)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := newarkLine()
			tt.edit(&spec)
			rec, err := DecodeStationLine(stationLine(spec))
			require.NoError(t, err)
			tt.check(t, rec.Capabilities)
		})
	}
}

func TestDecodeStationLine_BadCoordinate(t *testing.T) {
	spec := newarkLine()
	spec.lat = "40 42"
	_, err := DecodeStationLine(stationLine(spec))
	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "coordinate", fe.Field)
}

func TestDecodeStationTable_ThreeLines(t *testing.T) {
	foreign := newarkLine()
	foreign.region = "NY"
	foreign.name = "TORONTO"
	foreign.icao = "CYYZ"
	foreign.country = "CA"

	table := strings.Join([]string{
		"! Station table, comment line",
		stationLine(newarkLine()),
		stationLine(foreign),
	}, "\n")

	records, skipped, err := DecodeStationTable(strings.NewReader(table))
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	require.Len(t, records, 1)
	assert.Equal(t, "KEWR", records[0].ICAO)
	assert.True(t, records[0].Capabilities.METAR)
	assert.True(t, records[0].Capabilities.ASOS)
	assert.False(t, records[0].Capabilities.Radar)
}

func TestDecodeStationTable_SkipsNoise(t *testing.T) {
	badCoord := newarkLine()
	badCoord.icao = "KBAD"
	badCoord.lon = "074 99W"

	unknownRegion := newarkLine()
	unknownRegion.region = "ZZ"

	table := strings.Join([]string{
		"# header comment",
		"",
		"CD  STATION         ICAO  IATA  SYNOP   LAT     LONG   ELEV   M  N  V  U  A  C",
		"NJ US",
		stationLine(badCoord),
		stationLine(unknownRegion),
		stationLine(newarkLine()) + "\r",
	}, "\n")

	records, skipped, err := DecodeStationTable(strings.NewReader(table))
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, records, 1)
	assert.Equal(t, "KEWR", records[0].ICAO)
}

func TestNewStationFilter(t *testing.T) {
	t.Run("empty params", func(t *testing.T) {
		f, err := NewStationFilter(nil)
		require.NoError(t, err)
		assert.Equal(t, StationFilter{}, f)
	})

	t.Run("all params", func(t *testing.T) {
		f, err := NewStationFilter(map[string]string{
			FilterParamMETAR:      "true",
			FilterParamRadar:      "0",
			FilterParamRawinsonde: "false",
			FilterParamSounding:   "Wind-Profiler",
			FilterParamOffice:     "WFO",
			FilterParamRegions:    "nj, pa",
		})
		require.NoError(t, err)
		require.NotNil(t, f.METAR)
		assert.True(t, *f.METAR)
		require.NotNil(t, f.Radar)
		assert.False(t, *f.Radar)
		assert.Equal(t, SoundingWindProfiler, f.Sounding)
		assert.Equal(t, OfficeWFO, f.Office)
		assert.Equal(t, []string{"NJ", "PA"}, f.Regions)
	})

	invalid := []struct {
		name   string
		params map[string]string
		param  string
	}{
		{"non-boolean metar", map[string]string{FilterParamMETAR: "yes please"}, FilterParamMETAR},
		{"non-boolean radar", map[string]string{FilterParamRadar: "sometimes"}, FilterParamRadar},
		{"free-text office", map[string]string{FilterParamOffice: "weather office"}, FilterParamOffice},
		{"unknown sounding", map[string]string{FilterParamSounding: "dropsonde"}, FilterParamSounding},
		{"unknown region", map[string]string{FilterParamRegions: "NJ,XX"}, FilterParamRegions},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStationFilter(tt.params)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.param, ve.Param)
		})
	}
}

func TestFilterStations(t *testing.T) {
	newark, err := DecodeStationLine(stationLine(newarkLine()))
	require.NoError(t, err)

	radarSpec := newarkLine()
	radarSpec.region = "PA"
	radarSpec.icao = "KCCX"
	radarSpec.metar = ""
	radarSpec.radar = "X"
	radarSpec.office = "F"
	radarSpec.upper = "X"
	radar, err := DecodeStationLine(stationLine(radarSpec))
	require.NoError(t, err)

	profilerSpec := newarkLine()
	profilerSpec.icao = "KPRF"
	profilerSpec.upper = "W"
	profiler, err := DecodeStationLine(stationLine(profilerSpec))
	require.NoError(t, err)

	records := []StationRecord{newark, radar}
	yes, no := true, false

	withProfiler := []StationRecord{newark, radar, profiler}
	assert.Equal(t, []StationRecord{profiler}, FilterStations(withProfiler, StationFilter{Sounding: SoundingWindProfiler}))
	assert.Equal(t, []StationRecord{radar}, FilterStations(withProfiler, StationFilter{Sounding: SoundingRawinsonde}))
	assert.Equal(t, []StationRecord{newark}, FilterStations(withProfiler, StationFilter{Sounding: SoundingNone}))
	assert.Error(t, StationFilter{Sounding: "kite"}.Validate())

	assert.Len(t, FilterStations(records, StationFilter{}), 2)
	assert.Equal(t, []StationRecord{newark}, FilterStations(records, StationFilter{METAR: &yes}))
	assert.Equal(t, []StationRecord{radar}, FilterStations(records, StationFilter{METAR: &no}))
	assert.Equal(t, []StationRecord{radar}, FilterStations(records, StationFilter{Radar: &yes}))
	assert.Equal(t, []StationRecord{radar}, FilterStations(records, StationFilter{Rawinsonde: &yes}))
	assert.Equal(t, []StationRecord{radar}, FilterStations(records, StationFilter{Office: OfficeWFO}))
	assert.Empty(t, FilterStations(records, StationFilter{Office: OfficeRFC}))
	assert.Equal(t, []StationRecord{newark}, FilterStations(records, StationFilter{Regions: []string{"NJ"}}))
	assert.Empty(t, FilterStations(records, StationFilter{Regions: []string{"NJ"}, Radar: &yes}))
}
