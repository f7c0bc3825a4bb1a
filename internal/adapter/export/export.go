// Package export writes render payloads to CSV and GeoJSON files.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/metar-etl/internal/domain"
)

// ObservationColumns is the CSV header for observation exports.
var ObservationColumns = []string{
	"station_id", "observed_at", "report_time", "lat", "lon", "elevation_m",
	"air_temperature", "dew_point_temperature", "altimeter",
	"wind_direction", "wind_speed", "wind_gust", "eastward_wind", "northward_wind",
	"cloud_coverage", "raw",
}

// StationColumns is the CSV header for station catalog exports.
var StationColumns = []string{
	"region", "name", "icao", "iata", "synoptic", "lat", "lon", "elevation_m",
	"metar", "nexrad", "rawinsonde", "wind_profiler", "office", "plot_priority",
}

// Exporter writes each payload as <dir>/metar_data_<region>_<date>_<HH>00.csv
// and a GeoJSON FeatureCollection alongside it.
// It implements pipeline.Exporter.
type Exporter struct {
	dir    string
	logger *slog.Logger
}

// NewExporter creates an Exporter writing into dir.
func NewExporter(dir string, logger *slog.Logger) *Exporter {
	return &Exporter{dir: dir, logger: logger}
}

// Export writes the CSV and GeoJSON files for payload.
func (e *Exporter) Export(_ context.Context, payload *domain.RenderPayload) error {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	csvPath := filepath.Join(e.dir, domain.CSVFileName(payload.Region, payload.ReportTime))
	if err := writeFile(csvPath, func(w io.Writer) error {
		return WriteObservationsCSV(w, payload.Observations)
	}); err != nil {
		return err
	}

	geoPath := filepath.Join(e.dir, domain.GeoJSONFileName(payload.Region, payload.ReportTime))
	if err := writeFile(geoPath, func(w io.Writer) error {
		data, err := FeatureCollection(payload).MarshalJSON()
		if err != nil {
			return fmt.Errorf("marshal geojson: %w", err)
		}
		_, err = w.Write(data)
		return err
	}); err != nil {
		return err
	}

	e.logger.Info("plan exported", "region", payload.Region, "csv", csvPath, "geojson", geoPath)
	return nil
}

func writeFile(path string, fill func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fill(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// SortObservations orders observations by station then report time.
func SortObservations(obs []domain.Observation) {
	slices.SortFunc(obs, func(a, b domain.Observation) int {
		if c := strings.Compare(a.StationID, b.StationID); c != 0 {
			return c
		}
		return a.ReportTime.Compare(b.ReportTime)
	})
}

// WriteObservationsCSV writes a header row and one row per observation,
// sorted by station and report time. Missing values are empty cells.
func WriteObservationsCSV(w io.Writer, observations []domain.Observation) error {
	sorted := slices.Clone(observations)
	SortObservations(sorted)

	cw := csv.NewWriter(w)
	if err := cw.Write(ObservationColumns); err != nil {
		return err
	}
	for _, o := range sorted {
		if err := cw.Write([]string{
			o.StationID,
			o.ObservedAt.UTC().Format(time.RFC3339),
			o.ReportTime.UTC().Format(time.RFC3339),
			formatFloat(o.Lat),
			formatFloat(o.Lon),
			strconv.Itoa(o.Elevation),
			optFloat(o.AirTemperature),
			optFloat(o.DewPoint),
			optFloat(o.Altimeter),
			optFloat(o.WindDirection),
			optFloat(o.WindSpeed),
			optFloat(o.WindGust),
			optFloat(o.EastwardWind),
			optFloat(o.NorthwardWind),
			optInt(o.CloudCoverage),
			o.Raw,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteStationsCSV writes station records in catalog order.
func WriteStationsCSV(w io.Writer, records []domain.StationRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(StationColumns); err != nil {
		return err
	}
	for _, r := range records {
		c := r.Capabilities
		if err := cw.Write([]string{
			r.Region,
			r.Name,
			r.ICAO,
			r.IATA,
			r.Synoptic,
			formatFloat(r.Lat),
			formatFloat(r.Lon),
			strconv.Itoa(r.Elevation),
			strconv.FormatBool(c.METAR),
			strconv.FormatBool(c.Radar),
			strconv.FormatBool(c.Rawinsonde),
			strconv.FormatBool(c.WindProfiler),
			officeLabel(c),
			strconv.Itoa(r.PlotPriority),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func officeLabel(c domain.Capabilities) string {
	switch {
	case c.ForecastOffice:
		return string(domain.OfficeWFO)
	case c.RiverForecastCenter:
		return string(domain.OfficeRFC)
	case c.NationalCenter:
		return string(domain.OfficeNCEP)
	default:
		return ""
	}
}

// FeatureCollection renders the payload's observations as point features,
// with the region box as the collection bbox and the density plan as extra
// members.
func FeatureCollection(payload *domain.RenderPayload) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.BBox = geojson.NewBBox(payload.Box.Bound())
	fc.ExtraMembers = geojson.Properties{
		"region":              payload.Region,
		"report_time":         payload.ReportTime.UTC().Format(time.RFC3339),
		"area_sq_mi":          payload.Plan.AreaSquareMiles,
		"reduction":           payload.Plan.Reduction,
		"font_scale":          payload.Plan.FontScale.String(),
		"drop_station_labels": payload.Plan.DropStationLabels,
	}

	for _, m := range payload.Marks {
		f := geojson.NewFeature(orb.Point{m.Lon, m.Lat})
		f.ID = m.StationID
		f.Properties["station_id"] = m.StationID
		for field, v := range m.Values {
			f.Properties[field] = v
		}
		if m.U != nil && m.V != nil {
			f.Properties[domain.WindVector[0]] = *m.U
			f.Properties[domain.WindVector[1]] = *m.V
		}
		fc.Append(f)
	}
	return fc
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
