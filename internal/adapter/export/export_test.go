package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/metar-etl/internal/domain"
)

func f64(v float64) *float64 { return &v }
func intp(v int) *int        { return &v }

func testPayload() *domain.RenderPayload {
	reportTime := time.Date(2024, 4, 26, 2, 56, 0, 0, time.UTC)
	obs := []domain.Observation{
		{
			StationID: "KTEB", ReportTime: reportTime, ObservedAt: reportTime.Add(-5 * time.Minute),
			Lat: 40.85, Lon: -74.06, Elevation: 3,
			Raw: "KTEB 260251Z VRB03KT 10SM CLR 15/02 A3001",
		},
		{
			StationID: "KEWR", ReportTime: reportTime, ObservedAt: reportTime.Add(-5 * time.Minute),
			Lat: 40.7, Lon: -74.1667, Elevation: 9,
			AirTemperature: f64(15), DewPoint: f64(2), Altimeter: f64(30.01),
			WindDirection: f64(270), WindSpeed: f64(10), EastwardWind: f64(10), NorthwardWind: f64(0),
			CloudCoverage: intp(4),
			Raw:           "KEWR 260251Z 27010KT 10SM SCT050 15/02 A3001",
		},
	}
	box := domain.BoundingRegion{West: -75.56, East: -73.89, South: 38.93, North: 41.36}
	payload := domain.BuildRenderPayload("NJ", box, domain.PlanDensity(box), obs, time.Date(2024, time.April, 26, 2, 0, 0, 0, time.UTC))
	return &payload
}

func TestWriteObservationsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteObservationsCSV(&buf, testPayload().Observations))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, ObservationColumns, rows[0])

	// Sorted by station.
	assert.Equal(t, "KEWR", rows[1][0])
	assert.Equal(t, "KTEB", rows[2][0])

	assert.Equal(t, "2024-04-26T02:51:00Z", rows[1][1])
	assert.Equal(t, "15", rows[1][6])
	assert.Equal(t, "30.01", rows[1][8])
	assert.Equal(t, "4", rows[1][14])

	// Missing values are empty cells.
	assert.Empty(t, rows[2][6])
	assert.Empty(t, rows[2][14])
	assert.Equal(t, "KTEB 260251Z VRB03KT 10SM CLR 15/02 A3001", rows[2][15])
}

func TestWriteStationsCSV(t *testing.T) {
	records := []domain.StationRecord{
		{Region: "NJ", Name: "NEWARK", ICAO: "KEWR", Lat: 40.7, Lon: -74.1667, Elevation: 9,
			Capabilities: domain.Capabilities{METAR: true}},
		{Region: "NY", Name: "UPTON", ICAO: "KOKX", Lat: 40.87, Lon: -72.87, Elevation: 20,
			Capabilities: domain.Capabilities{Radar: true, Rawinsonde: true, ForecastOffice: true}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteStationsCSV(&buf, records))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, StationColumns, rows[0])
	assert.Equal(t, []string{"NJ", "NEWARK", "KEWR", "", "", "40.7", "-74.1667", "9", "true", "false", "false", "false", "", "0"}, rows[1])
	assert.Equal(t, "wfo", rows[2][12])
}

func TestFeatureCollection(t *testing.T) {
	payload := testPayload()
	fc := FeatureCollection(payload)

	require.Len(t, fc.Features, 2)
	assert.Equal(t, payload.Box.Bound(), fc.BBox.Bound())
	assert.Equal(t, "large", fc.ExtraMembers["font_scale"])

	ewr := fc.Features[1]
	assert.Equal(t, orb.Point{-74.1667, 40.7}, ewr.Point())
	assert.Equal(t, "KEWR", ewr.Properties["station_id"])
	assert.Equal(t, "59", ewr.Properties["air_temperature"])
	assert.Equal(t, 10.0, ewr.Properties["eastward_wind"])

	data, err := fc.MarshalJSON()
	require.NoError(t, err)
	decoded, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	assert.Len(t, decoded.Features, 2)
	assert.Equal(t, "NJ", decoded.ExtraMembers["region"])
}

func TestExporter_Export(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	e := NewExporter(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, e.Export(context.Background(), testPayload()))

	csvData, err := os.ReadFile(filepath.Join(dir, "metar_data_nj_2024-04-26_0200.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(csvData), "KEWR")

	geoData, err := os.ReadFile(filepath.Join(dir, "metar_data_nj_2024-04-26_0200.geojson"))
	require.NoError(t, err)
	assert.Contains(t, string(geoData), `"FeatureCollection"`)
}
