package domain

import (
	"math"

	"github.com/tidwall/geodesic"
)

// squareMetersPerSquareMile converts geodesic area (m²) to square statute miles.
const squareMetersPerSquareMile = 2_589_988.110336

// FontScale is the relative label size on the rendered plot.
type FontScale int

const (
	FontSmall FontScale = iota
	FontSmallPlus
	FontMedium
	FontLargeMinus
	FontLarge
)

func (f FontScale) String() string {
	switch f {
	case FontSmall:
		return "small"
	case FontSmallPlus:
		return "small+1"
	case FontMedium:
		return "medium"
	case FontLargeMinus:
		return "large-1"
	case FontLarge:
		return "large"
	default:
		return "unknown"
	}
}

// Points returns the label font size in points.
func (f FontScale) Points() int {
	return 8 + int(f)
}

// MarshalText renders the scale by name in JSON payloads.
func (f FontScale) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText parses a scale name produced by MarshalText.
func (f *FontScale) UnmarshalText(text []byte) error {
	for s := FontSmall; s <= FontLarge; s++ {
		if s.String() == string(text) {
			*f = s
			return nil
		}
	}
	return &FormatError{Field: "font_scale", Value: string(text)}
}

// RenderPlan is the per-region rendering policy derived from the region's area.
type RenderPlan struct {
	AreaSquareMiles   float64   `json:"area_sq_mi"`
	Reduction         float64   `json:"reduction"`
	FontScale         FontScale `json:"font_scale"`
	DropStationLabels bool      `json:"drop_station_labels"`
}

type densityTier struct {
	maxArea    float64
	reduction  float64
	font       FontScale
	dropLabels bool
}

// densityTiers is ordered by maxArea; the first tier whose bound is >= area wins.
var densityTiers = []densityTier{
	{20_000, 0.00, FontLarge, false},
	{50_000, 0.20, FontLargeMinus, false},
	{200_000, 0.50, FontMedium, false},
	{500_000, 0.60, FontMedium, true},
	{900_000, 0.70, FontSmallPlus, true},
	{1_500_000, 0.80, FontSmall, true},
	{math.Inf(1), 1.00, FontSmall, true},
}

// GeodesicArea returns the WGS84 ellipsoidal area of the region's corner
// polygon in square statute miles. Each edge contributes the area between its
// geodesic and the equator; summed around the closed ring this is the enclosed area.
func GeodesicArea(r BoundingRegion) float64 {
	lats := [4]float64{r.South, r.South, r.North, r.North}
	lons := [4]float64{r.West, r.East, r.East, r.West}

	var sum float64
	for i := range lats {
		j := (i + 1) % len(lats)
		var s12 float64
		geodesic.WGS84.GenInverse(lats[i], lons[i], lats[j], lons[j], nil, nil, nil, nil, nil, nil, &s12)
		sum += s12
	}
	return math.Abs(sum) / squareMetersPerSquareMile
}

// PlanDensity computes the region's area and maps it to a RenderPlan.
func PlanDensity(r BoundingRegion) RenderPlan {
	return PlanForArea(GeodesicArea(r))
}

// PlanForArea maps an area in square miles to its tier.
func PlanForArea(area float64) RenderPlan {
	for _, t := range densityTiers {
		if area <= t.maxArea {
			return RenderPlan{
				AreaSquareMiles:   area,
				Reduction:         t.reduction,
				FontScale:         t.font,
				DropStationLabels: t.dropLabels,
			}
		}
	}
	// Unreachable for finite areas; NaN falls through every comparison.
	last := densityTiers[len(densityTiers)-1]
	return RenderPlan{AreaSquareMiles: area, Reduction: last.reduction, FontScale: last.font, DropStationLabels: last.dropLabels}
}
