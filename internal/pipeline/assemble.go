package pipeline

import (
	"github.com/couchcryptid/metar-etl/internal/domain"
)

// AssembleStats counts what happened to each parse result.
type AssembleStats struct {
	Decoded       int
	Skipped       int
	Duplicates    int
	OutsideRegion int
	Emitted       int
}

// Assemble merges parse results into the observations inside region.
// Skipped results contribute nothing, exact duplicates (same Key) collapse to
// one, and bounds are inclusive. The returned order is unspecified; callers
// needing a stable order sort explicitly.
func Assemble(results []domain.ParseResult, region domain.BoundingRegion) ([]domain.Observation, AssembleStats) {
	var stats AssembleStats
	seen := make(map[domain.ObservationKey]struct{}, len(results))
	out := make([]domain.Observation, 0, len(results))

	for _, r := range results {
		if r.Outcome != domain.OutcomeDecoded {
			stats.Skipped++
			continue
		}
		stats.Decoded++

		key := r.Observation.Key()
		if _, dup := seen[key]; dup {
			stats.Duplicates++
			continue
		}
		seen[key] = struct{}{}

		if !region.Contains(r.Observation.Lat, r.Observation.Lon) {
			stats.OutsideRegion++
			continue
		}
		out = append(out, r.Observation)
	}

	stats.Emitted = len(out)
	return out, stats
}
