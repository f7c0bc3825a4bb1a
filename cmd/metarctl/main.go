// Command metarctl plans a single region or queries the station catalog from
// the command line. It reads the same environment as the service.
//
// Usage:
//
//	metarctl plan NJ --hour 2 --csv --geojson --out ./plots
//	metarctl stations --metar --office wfo --states NJ,PA
//	metarctl region "new jersey"
package main

import (
	"fmt"
	"os"

	"github.com/couchcryptid/metar-etl/internal/observability"
)

func main() {
	if err := newRootCmd(observability.NewMetrics()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
