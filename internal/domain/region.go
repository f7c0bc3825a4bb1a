package domain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// regionPromptTemplate is the fixed request sent to the geocoding collaborator.
const regionPromptTemplate = "Provide the bounding box coordinates (west, east, south, north) for %s region/state of the United States. " +
	"The response should be in a comma separated format: `west,east,south,north`. Include no additional text."

// RegionSystemPrompt primes chat-style collaborators.
const RegionSystemPrompt = "You are a helpful assistant that provides bounding box coordinates."

// BoundingRegion is a rectangular area in decimal degrees, ordered
// west, east, south, north.
type BoundingRegion struct {
	West  float64 `json:"west"`
	East  float64 `json:"east"`
	South float64 `json:"south"`
	North float64 `json:"north"`
}

// Validate enforces west < east and south < north.
func (r BoundingRegion) Validate() error {
	for _, v := range []float64{r.West, r.East, r.South, r.North} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("bounding region contains a non-finite value")
		}
	}
	if r.West >= r.East {
		return fmt.Errorf("west %g must be less than east %g", r.West, r.East)
	}
	if r.South >= r.North {
		return fmt.Errorf("south %g must be less than north %g", r.South, r.North)
	}
	return nil
}

// Contains reports whether the point lies inside the region. Bounds are inclusive.
func (r BoundingRegion) Contains(lat, lon float64) bool {
	return lat >= r.South && lat <= r.North && lon >= r.West && lon <= r.East
}

// Bound converts the region to an orb.Bound (min = south-west corner).
func (r BoundingRegion) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{r.West, r.South},
		Max: orb.Point{r.East, r.North},
	}
}

// String renders the region in the collaborator reply format.
func (r BoundingRegion) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", r.West, r.East, r.South, r.North)
}

// NormalizeRegionKey case-folds a region identifier for cache lookups.
func NormalizeRegionKey(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// RegionPrompt fills the fixed request template for an identifier.
func RegionPrompt(identifier string) string {
	return fmt.Sprintf(regionPromptTemplate, strings.ToUpper(strings.TrimSpace(identifier)))
}

// ParseRegionReply parses a "west,east,south,north" reply into a validated
// region. Anything other than exactly four finite, correctly ordered numbers
// is a ResolutionError.
func ParseRegionReply(identifier, reply string) (BoundingRegion, error) {
	trimmed := strings.Trim(strings.TrimSpace(reply), "`")
	parts := strings.Split(trimmed, ",")
	if len(parts) != 4 {
		return BoundingRegion{}, &ResolutionError{
			Identifier: identifier,
			Reply:      reply,
			Reason:     fmt.Sprintf("expected 4 comma-separated values, got %d", len(parts)),
		}
	}

	var values [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BoundingRegion{}, &ResolutionError{
				Identifier: identifier,
				Reply:      reply,
				Reason:     fmt.Sprintf("value %d is not a number", i+1),
				Err:        err,
			}
		}
		values[i] = v
	}

	region := BoundingRegion{West: values[0], East: values[1], South: values[2], North: values[3]}
	if err := region.Validate(); err != nil {
		return BoundingRegion{}, &ResolutionError{Identifier: identifier, Reply: reply, Reason: err.Error()}
	}
	return region, nil
}

// RegionGeocoder is the external collaborator that turns a free-text region
// identifier into a "west,east,south,north" reply.
type RegionGeocoder interface {
	GeocodeRegion(ctx context.Context, identifier string) (string, error)
}

// RegionStore is the durable key→region mapping. Merge must only touch the
// given key; other entries are never overwritten.
type RegionStore interface {
	Load(ctx context.Context, key string) (BoundingRegion, bool, error)
	Merge(ctx context.Context, key string, region BoundingRegion) error
}
