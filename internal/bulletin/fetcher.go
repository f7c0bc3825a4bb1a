// Package bulletin retrieves hourly METAR cycle bulletins.
package bulletin

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/couchcryptid/metar-etl/internal/domain"
)

// DefaultBaseURL serves one <HH>Z.TXT document per UTC hour.
const DefaultBaseURL = "https://tgftp.nws.noaa.gov/data/observations/metar/cycles"

// blockSeparator is a blank line, tolerating trailing whitespace.
var blockSeparator = regexp.MustCompile(`\n[ \t]*\n`)

// Fetcher downloads a cycle bulletin and splits it into report blocks.
type Fetcher struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher for the given base URL.
func NewFetcher(baseURL string, timeout time.Duration, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// URL returns the bulletin address for a cycle hour.
func (f *Fetcher) URL(hour int) string {
	return fmt.Sprintf("%s/%02dZ.TXT", f.baseURL, hour)
}

// Fetch retrieves the bulletin for hour (0-23) and returns its blocks.
// Failures are not retried here.
func (f *Fetcher) Fetch(ctx context.Context, hour int) ([]string, error) {
	if hour < 0 || hour > 23 {
		return nil, &domain.ValidationError{Param: "hour", Reason: "must be between 0 and 23"}
	}
	u := f.URL(hour)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &domain.FetchError{URL: u, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.FetchError{URL: u, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.FetchError{URL: u, Err: fmt.Errorf("read body: %w", err)}
	}

	blocks := SplitBlocks(string(body))
	f.logger.Debug("bulletin fetched", "url", u, "bytes", len(body), "blocks", len(blocks))
	return blocks, nil
}

// SplitBlocks splits bulletin text on blank lines, dropping empty blocks.
func SplitBlocks(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := blockSeparator.Split(text, -1)
	blocks := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			blocks = append(blocks, p)
		}
	}
	return blocks
}
