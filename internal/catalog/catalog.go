// Package catalog loads and indexes the station reference table.
package catalog

import (
	"github.com/couchcryptid/metar-etl/internal/domain"
)

// Catalog is an immutable index of domestic station records.
type Catalog struct {
	records []domain.StationRecord
	byICAO  map[string]domain.StationRecord
}

// New indexes records by ICAO identifier. Records without an ICAO identifier
// are kept for filtering but cannot be looked up.
func New(records []domain.StationRecord) *Catalog {
	c := &Catalog{
		records: make([]domain.StationRecord, len(records)),
		byICAO:  make(map[string]domain.StationRecord, len(records)),
	}
	copy(c.records, records)
	for _, rec := range records {
		if rec.ICAO == "" {
			continue
		}
		// First occurrence wins; the reference table lists primary entries first.
		if _, dup := c.byICAO[rec.ICAO]; !dup {
			c.byICAO[rec.ICAO] = rec
		}
	}
	return c
}

// LookupStation implements domain.StationLookup.
func (c *Catalog) LookupStation(icao string) (domain.StationRecord, bool) {
	rec, ok := c.byICAO[icao]
	return rec, ok
}

// Len returns the number of records.
func (c *Catalog) Len() int { return len(c.records) }

// Records returns a copy of every record in table order.
func (c *Catalog) Records() []domain.StationRecord {
	out := make([]domain.StationRecord, len(c.records))
	copy(out, c.records)
	return out
}

// Filter returns the records matching f in table order.
func (c *Catalog) Filter(f domain.StationFilter) []domain.StationRecord {
	return domain.FilterStations(c.records, f)
}
