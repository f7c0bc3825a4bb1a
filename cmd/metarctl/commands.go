package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/metar-etl/internal/adapter/export"
	"github.com/couchcryptid/metar-etl/internal/app"
	"github.com/couchcryptid/metar-etl/internal/config"
	"github.com/couchcryptid/metar-etl/internal/domain"
	"github.com/couchcryptid/metar-etl/internal/observability"
)

// env is what every subcommand needs before it runs.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

func newRootCmd(metrics *observability.Metrics) *cobra.Command {
	e := &env{metrics: metrics}

	root := &cobra.Command{
		Use:           "metarctl",
		Short:         "Plan METAR station plots and query the station catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.logger = observability.NewCLILogger(cmd.ErrOrStderr(), cfg.LogLevel)
			return nil
		},
	}

	root.AddCommand(newPlanCmd(e), newStationsCmd(e), newRegionCmd(e))
	return root
}

func newPlanCmd(e *env) *cobra.Command {
	var (
		hour    int
		csvOut  bool
		geoOut  bool
		outDir  string
		summary bool
	)

	cmd := &cobra.Command{
		Use:   "plan <region>",
		Short: "Resolve a region, fetch a cycle and print its render payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("hour") {
				hour = domain.CurrentCycleHour()
			}
			a, err := app.Build(cmd.Context(), e.cfg, app.Options{}, e.logger, e.metrics)
			if err != nil {
				return err
			}
			payload, err := a.Pipeline.Plan(cmd.Context(), args[0], hour)
			if err != nil {
				return err
			}

			if csvOut {
				path := filepath.Join(outDir, domain.CSVFileName(payload.Region, payload.ReportTime))
				if err := writeFile(path, func(w io.Writer) error {
					return export.WriteObservationsCSV(w, payload.Observations)
				}); err != nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "wrote", path)
			}
			if geoOut {
				path := filepath.Join(outDir, domain.GeoJSONFileName(payload.Region, payload.ReportTime))
				if err := writeFile(path, func(w io.Writer) error {
					data, err := export.FeatureCollection(payload).MarshalJSON()
					if err != nil {
						return err
					}
					_, err = w.Write(data)
					return err
				}); err != nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "wrote", path)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if summary {
				return enc.Encode(map[string]any{
					"region":       payload.Region,
					"box":          payload.Box,
					"report_time":  payload.ReportTime,
					"plan":         payload.Plan,
					"observations": len(payload.Observations),
					"image":        payload.Image,
				})
			}
			return enc.Encode(payload)
		},
	}

	cmd.Flags().IntVar(&hour, "hour", 0, "UTC cycle hour 0-23 (default: current hour)")
	cmd.Flags().BoolVar(&csvOut, "csv", false, "write the observations as CSV")
	cmd.Flags().BoolVar(&geoOut, "geojson", false, "write the observations as GeoJSON")
	cmd.Flags().StringVar(&outDir, "out", ".", "directory for --csv and --geojson files")
	cmd.Flags().BoolVar(&summary, "summary", false, "print only the plan summary")
	return cmd
}

func newStationsCmd(e *env) *cobra.Command {
	var (
		metar, nexrad, rawinsonde bool
		sounding, office, states  string
	)

	cmd := &cobra.Command{
		Use:   "stations",
		Short: "Filter the station catalog and print it as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := make(map[string]string)
			for name, v := range map[string]bool{
				domain.FilterParamMETAR:      metar,
				domain.FilterParamRadar:      nexrad,
				domain.FilterParamRawinsonde: rawinsonde,
			} {
				if cmd.Flags().Changed(name) {
					params[name] = strconv.FormatBool(v)
				}
			}
			params[domain.FilterParamSounding] = sounding
			params[domain.FilterParamOffice] = office
			params[domain.FilterParamRegions] = states

			filter, err := domain.NewStationFilter(params)
			if err != nil {
				return err
			}
			cat, err := app.LoadCatalog(cmd.Context(), e.cfg, e.logger)
			if err != nil {
				return err
			}
			return export.WriteStationsCSV(cmd.OutOrStdout(), cat.Filter(filter))
		},
	}

	cmd.Flags().BoolVar(&metar, domain.FilterParamMETAR, false, "surface report capability")
	cmd.Flags().BoolVar(&nexrad, domain.FilterParamRadar, false, "radar capability")
	cmd.Flags().BoolVar(&rawinsonde, domain.FilterParamRawinsonde, false, "rawinsonde upper-air soundings")
	cmd.Flags().StringVar(&sounding, domain.FilterParamSounding, "", "upper-air program: none, rawinsonde or wind-profiler")
	cmd.Flags().StringVar(&office, domain.FilterParamOffice, "", "office classification: wfo, rfc or ncep")
	cmd.Flags().StringVar(&states, domain.FilterParamRegions, "", "comma-separated region codes, e.g. NJ,PA")
	return cmd
}

func newRegionCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "region <identifier>",
		Short: "Resolve a region identifier to west,east,south,north",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := app.NewResolver(cmd.Context(), e.cfg, e.logger, e.metrics)
			if err != nil {
				return err
			}
			box, err := resolver.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), box.String())
			return nil
		},
	}
}

func writeFile(path string, fill func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fill(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
