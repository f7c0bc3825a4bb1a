// Package domain models surface weather observations, the station reference
// catalog, and the region-based plotting policy built on top of them.
//
// # Data Sources
//
// Hourly METAR cycle bulletins are published by the NWS at
// https://tgftp.nws.noaa.gov/data/observations/metar/cycles/HHZ.TXT. A
// bulletin is a sequence of blocks separated by a blank line:
//
//	2024/04/26 01:53
//	KEWR 260153Z 22008KT 10SM FEW250 18/07 A2998 RMK AO2 SLP152
//
// The first line is the block stamp (UTC) and becomes the observation's
// report time. The second line is the encoded report, decoded by
// [METARDecoder]. The report carries only day-of-month, so the year and month
// are taken from the stamp.
//
// The station reference table (https://weather.rap.ucar.edu/surface/stations.txt)
// is fixed-width. Station names contain spaces, so every field is cut by
// character column, never split on whitespace. Coordinates are written as
// degrees, minutes and hemisphere:
//
//	"40 42N"  →  40.7
//	"74 10W"  → -74.1666…
//
// Capability columns hold single-character codes; any unrecognized code
// decodes to false instead of failing the line.
//
// # Regions
//
// A [BoundingRegion] is always west,east,south,north in decimal degrees, with
// west < east and south < north. Containment is inclusive on every edge.
// Region identifiers are case-folded before they are used as cache keys.
//
// # Density Policy
//
// The plotting density is a discrete function of the region's WGS84 geodesic
// area in square statute miles (see [PlanForArea]):
//
//	≤ 20,000     0.00  large    labels
//	≤ 50,000     0.20  large-1  labels
//	≤ 200,000    0.50  medium   labels
//	≤ 500,000    0.60  medium   no labels
//	≤ 900,000    0.70  small+1  no labels
//	≤ 1,500,000  0.80  small    no labels
//	otherwise    1.00  small    no labels
//
// # Duplicates
//
// Two observations are duplicates when station, report time and raw text
// match exactly (see [Observation.Key]).
package domain
