package repository

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gocarina/gocsv"
)

// ConstituentRepository fetches the official member list of a sector index.
type ConstituentRepository interface {
	GetConstituents(ctx context.Context, sectorKey string) ([]string, error)
}

type constituentRepositoryHandler struct {
	Client     *http.Client
	SectorUrls map[string]string
	Suffix     string
}

func NewConstituentRepository(client *http.Client, sectorUrls map[string]string, suffix string) ConstituentRepository {
	return constituentRepositoryHandler{
		Client:     client,
		SectorUrls: sectorUrls,
		Suffix:     suffix,
	}
}

type constituentRow struct {
	CompanyName string `csv:"Company Name"`
	Industry    string `csv:"Industry"`
	Symbol      string `csv:"Symbol"`
	Series      string `csv:"Series"`
	ISIN        string `csv:"ISIN Code"`
}

func (h constituentRepositoryHandler) GetConstituents(ctx context.Context, sectorKey string) ([]string, error) {
	url, ok := h.SectorUrls[sectorKey]
	if !ok {
		return nil, fmt.Errorf("no constituent source for sector %s", sectorKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	// the exchange rejects requests without a browser-like agent
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) sectorscan")
	req.Header.Set("Accept", "text/csv")

	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch constituents for %s: %w", sectorKey, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("constituents for %s returned status %d", sectorKey, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read constituents body: %w", err)
	}

	rows := []constituentRow{}
	if err := gocsv.UnmarshalBytes(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse constituents csv: %w", err)
	}

	out := []string{}
	for _, row := range rows {
		symbol := strings.TrimSpace(row.Symbol)
		if symbol == "" {
			continue
		}
		out = append(out, symbol+h.Suffix)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("constituents csv for %s had no symbols", sectorKey)
	}

	return out, nil
}
