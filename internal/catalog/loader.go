package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/metar-etl/internal/domain"
)

// DefaultTableURL is the published station reference table.
const DefaultTableURL = "https://weather.rap.ucar.edu/surface/stations.txt"

// SnapshotStore persists decoded records so restarts can skip the download.
// Load returns (nil, nil) when no fresh snapshot exists.
type SnapshotStore interface {
	Load(ctx context.Context) ([]domain.StationRecord, error)
	Save(ctx context.Context, records []domain.StationRecord) error
}

// Loader fetches and decodes the station reference table.
type Loader struct {
	url        string
	httpClient *http.Client
	snapshot   SnapshotStore
	logger     *slog.Logger
}

// NewLoader creates a Loader. Pass a nil snapshot store to always download.
func NewLoader(url string, timeout time.Duration, snapshot SnapshotStore, logger *slog.Logger) *Loader {
	return &Loader{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		snapshot:   snapshot,
		logger:     logger,
	}
}

// Load returns the catalog from a fresh snapshot when available, otherwise
// downloads and decodes the table. Network failures surface as *domain.FetchError.
func (l *Loader) Load(ctx context.Context) (*Catalog, error) {
	if l.snapshot != nil {
		records, err := l.snapshot.Load(ctx)
		switch {
		case err != nil:
			l.logger.Warn("station snapshot unavailable, downloading table", "error", err)
		case len(records) > 0:
			l.logger.Info("station catalog loaded from snapshot", "stations", len(records))
			return New(records), nil
		}
	}

	records, err := l.download(ctx)
	if err != nil {
		return nil, err
	}

	if l.snapshot != nil {
		if err := l.snapshot.Save(ctx, records); err != nil {
			l.logger.Warn("save station snapshot failed", "error", err)
		}
	}
	return New(records), nil
}

func (l *Loader) download(ctx context.Context) ([]domain.StationRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, &domain.FetchError{URL: l.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.FetchError{URL: l.url, StatusCode: resp.StatusCode}
	}

	records, skipped, err := domain.DecodeStationTable(resp.Body)
	if err != nil {
		return nil, &domain.FetchError{URL: l.url, Err: fmt.Errorf("read station table: %w", err)}
	}
	l.logger.Info("station table decoded", "stations", len(records), "skipped", skipped)
	return records, nil
}
