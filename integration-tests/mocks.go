package integration_tests

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"sectorscan/internal/domain"
	"sectorscan/internal/repository"
)

// NewOracleForTests answers each contract with a canned payload. Analyst and
// risk answers are keyed by the instrument named in the request context.
func NewOracleForTests(picks map[string]float64, portfolio string) repository.OracleRepository {
	return oracleForTestsHandler{
		Picks:     picks,
		Portfolio: portfolio,
	}
}

type oracleForTestsHandler struct {
	// Picks maps instrument to the entry price the analyst should quote.
	Picks     map[string]float64
	Portfolio string
}

func (h oracleForTestsHandler) Complete(ctx context.Context, req repository.OracleRequest) (string, error) {
	switch req.Contract {
	case "analyst":
		for instrument, entry := range h.Picks {
			if strings.Contains(req.Context, instrument) {
				return fmt.Sprintf(`Here is my view:
{"thesis": "%s trend intact", "conviction_score": 82, "entry_price": %v,
 "target_price": %v, "stop_loss": %v, "total_score": 0.8, "tier": "STRONG_BUY"}`,
					instrument, entry, entry*1.1, entry*0.95), nil
			}
		}
		return `{"thesis": "nothing here", "conviction_score": 10, "tier": "REJECT"}`, nil
	case "risk":
		for instrument, entry := range h.Picks {
			if strings.Contains(req.Context, instrument) {
				return fmt.Sprintf(`{"status": "APPROVED", "criticism": "acceptable", "adjusted_stop": %v}`, entry*0.96), nil
			}
		}
		return `{"status": "REJECTED", "criticism": "weak setup", "adjusted_stop": 1}`, nil
	case "portfolio":
		return h.Portfolio, nil
	}
	return "", fmt.Errorf("unknown contract %s", req.Contract)
}

// NewPriceHistoryForTests serves a fixed number of daily bars per
// instrument, rising linearly to lastClose.
func NewPriceHistoryForTests(barCounts map[string]int, lastClose float64) repository.PriceHistoryRepository {
	return priceHistoryForTestsHandler{
		BarCounts: barCounts,
		LastClose: lastClose,
	}
}

type priceHistoryForTestsHandler struct {
	BarCounts map[string]int
	LastClose float64
}

func (h priceHistoryForTestsHandler) GetPriceHistory(ctx context.Context, instruments []string, period time.Duration) (map[string][]domain.PriceBar, error) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := map[string][]domain.PriceBar{}
	for _, instrument := range instruments {
		n, ok := h.BarCounts[instrument]
		if !ok {
			continue
		}
		bars := make([]domain.PriceBar, n)
		for i := range bars {
			price := h.LastClose - float64(n-1-i)
			bars[i] = domain.PriceBar{
				Date:   start.AddDate(0, 0, i),
				Open:   price,
				High:   price,
				Low:    price,
				Close:  price,
				Volume: 10_000,
			}
		}
		out[instrument] = bars
	}
	return out, nil
}

const constituentsCsv = "Company Name,Industry,Symbol,Series,ISIN Code\n" +
	"Tata Motors Ltd.,Automobile,TATAMOTORS,EQ,INE155A01022\n" +
	"Maruti Suzuki India Ltd.,Automobile,MARUTI,EQ,INE585B01010\n"

const headlinesRss = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>news</title>
<item><title>Automakers report strong monthly dispatches</title><link>https://example.com/1</link></item>
<item><title>EV demand lifts sector outlook</title><link>https://example.com/2</link></item>
</channel></rss>`

// NewMarketServerForTests serves the AUTO constituent csv at /csv/auto and
// an rss feed at /rss.
func NewMarketServerForTests() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/csv/auto", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(constituentsCsv))
	})
	mux.HandleFunc("/rss", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(headlinesRss))
	})
	return httptest.NewServer(mux)
}
