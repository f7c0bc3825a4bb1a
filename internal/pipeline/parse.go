package pipeline

import (
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/metar-etl/internal/domain"
)

// StampLayout is the timestamp line that opens every report block.
const StampLayout = "2006/01/02 15:04"

// DefaultWorkers is the parser pool size when none is configured.
const DefaultWorkers = 8

// ParseBlock decodes one report block: the first line is the block stamp and
// the second holds the encoded report.
func ParseBlock(decoder domain.ReportDecoder, block string) (domain.Observation, error) {
	lines := make([]string, 0, 2)
	for _, line := range strings.Split(block, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < 2 {
		return domain.Observation{}, &domain.FormatError{Field: "block", Value: strings.TrimSpace(block)}
	}

	stamp, err := time.ParseInLocation(StampLayout, lines[0], time.UTC)
	if err != nil {
		return domain.Observation{}, &domain.FormatError{Field: "stamp", Value: lines[0], Err: err}
	}
	return decoder.DecodeReport(lines[1], stamp)
}

// ParseBlocks decodes blocks on a pool of workers goroutines. Each worker
// writes only its block's slot, so results[i] always describes blocks[i]
// whatever the pool size. A block that fails to decode yields
// OutcomeSkippedMalformed and never affects its siblings.
func ParseBlocks(decoder domain.ReportDecoder, blocks []string, workers int) []domain.ParseResult {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	results := make([]domain.ParseResult, len(blocks))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, block := range blocks {
		g.Go(func() error {
			obs, err := ParseBlock(decoder, block)
			if err != nil {
				results[i] = domain.ParseResult{Index: i, Outcome: domain.OutcomeSkippedMalformed, Err: err}
				return nil
			}
			results[i] = domain.ParseResult{Index: i, Observation: obs, Outcome: domain.OutcomeDecoded}
			return nil
		})
	}
	// Workers record failures in their slot and always return nil.
	_ = g.Wait()
	return results
}
