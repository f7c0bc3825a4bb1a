package pipeline_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/metar-etl/internal/domain"
)

// --- fakes ---

type stationMap map[string]domain.StationRecord

func (m stationMap) LookupStation(icao string) (domain.StationRecord, bool) {
	rec, ok := m[icao]
	return rec, ok
}

type fakeResolver struct {
	box   domain.BoundingRegion
	err   error
	calls atomic.Int32
}

func (f *fakeResolver) Resolve(_ context.Context, _ string) (domain.BoundingRegion, error) {
	f.calls.Add(1)
	return f.box, f.err
}

type fakeFetcher struct {
	blocks []string
	err    error
	calls  atomic.Int32
	hours  []int
	mu     sync.Mutex
}

func (f *fakeFetcher) Fetch(_ context.Context, hour int) ([]string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.hours = append(f.hours, hour)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.blocks, nil
}

type recordingSink struct {
	mu       sync.Mutex
	payloads []*domain.RenderPayload
	err      error
}

func (r *recordingSink) Publish(_ context.Context, payload *domain.RenderPayload) error {
	return r.record(payload)
}

func (r *recordingSink) Export(_ context.Context, payload *domain.RenderPayload) error {
	return r.record(payload)
}

func (r *recordingSink) record(payload *domain.RenderPayload) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, payload)
	return nil
}

// --- fixtures ---

const testStamp = "2024/04/26 02:56"

var wideBox = domain.BoundingRegion{West: -76, East: -74, South: 38, North: 42}

func testStationID(i int) string {
	return fmt.Sprintf("KA%02d", i)
}

// testStations places n stations on a north-south line at lon -75.
func testStations(n int) stationMap {
	m := make(stationMap, n)
	for i := range n {
		id := testStationID(i)
		m[id] = domain.StationRecord{ICAO: id, Region: "NJ", Lat: 39 + float64(i)*0.05, Lon: -75, Elevation: 10}
	}
	return m
}

func reportBlock(stationID string) string {
	return fmt.Sprintf("%s\n%s 260251Z 31012KT 10SM FEW250 M03/M12 A3012 RMK AO2\n", testStamp, stationID)
}

// fiftyBlocks returns 50 report blocks; blocks 7 and 31 are malformed.
func fiftyBlocks() []string {
	blocks := make([]string, 50)
	for i := range blocks {
		blocks[i] = reportBlock(testStationID(i))
	}
	blocks[7] = testStamp + "\nGARBAGE IN THE BULLETIN"
	blocks[31] = testStamp + "\n"
	return blocks
}
