package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"sectorscan/internal/domain"
	"sectorscan/internal/logger"
	"sectorscan/internal/metrics"
	"sectorscan/internal/util"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
)

// PriceHistoryRepository returns daily bars per instrument, oldest first.
// Instruments the provider could not serve are absent from the result.
type PriceHistoryRepository interface {
	GetPriceHistory(ctx context.Context, instruments []string, period time.Duration) (map[string][]domain.PriceBar, error)
}

type yahooPriceHistoryHandler struct {
	Clock       util.Clock
	Metrics     *metrics.Recorder
	Concurrency int

	fetch func(symbol string, start, end time.Time) ([]domain.PriceBar, error)
}

func NewYahooPriceHistoryRepository(clock util.Clock, recorder *metrics.Recorder) PriceHistoryRepository {
	return yahooPriceHistoryHandler{
		Clock:       clock,
		Metrics:     recorder,
		Concurrency: 8,
		fetch:       fetchYahooChart,
	}
}

func fetchYahooChart(symbol string, start, end time.Time) ([]domain.PriceBar, error) {
	params := &chart.Params{
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Symbol:   symbol,
		Interval: datetime.OneDay,
	}
	iter := chart.Get(params)

	out := []domain.PriceBar{}
	for iter.Next() {
		bar := iter.Bar()
		out = append(out, domain.PriceBar{
			Date:   time.Unix(int64(bar.Timestamp), 0).UTC(),
			Open:   bar.Open.InexactFloat64(),
			High:   bar.High.InexactFloat64(),
			Low:    bar.Low.InexactFloat64(),
			Close:  bar.AdjClose.InexactFloat64(),
			Volume: int64(bar.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to get chart for %s: %w", symbol, err)
	}

	return out, nil
}

func (h yahooPriceHistoryHandler) GetPriceHistory(ctx context.Context, instruments []string, period time.Duration) (map[string][]domain.PriceBar, error) {
	log := logger.FromContext(ctx)
	end := h.Clock.Now()
	start := end.Add(-period)

	concurrency := h.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	semaphore := make(chan struct{}, concurrency)

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = map[string][]domain.PriceBar{}
	)
	for _, symbol := range instruments {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			bars, err := h.fetch(symbol, start, end)
			if err != nil {
				h.Metrics.RecordProviderError("yahoo")
				log.Warnw("failed to fetch price history", "instrument", symbol, "error", err)
				return
			}
			sortBars(bars)

			mu.Lock()
			out[symbol] = bars
			mu.Unlock()
		}(symbol)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("price history fetch interrupted: %w", err)
	}
	return out, nil
}

type alpacaPriceHistoryHandler struct {
	MdClient *marketdata.Client
	Clock    util.Clock
	Metrics  *metrics.Recorder
}

func NewAlpacaPriceHistoryRepository(apiKey, apiSecret, endpoint string, clock util.Clock, recorder *metrics.Recorder) PriceHistoryRepository {
	mdClient := marketdata.NewClient(marketdata.ClientOpts{
		BaseURL:   endpoint,
		APIKey:    apiKey,
		APISecret: apiSecret,
	})

	return alpacaPriceHistoryHandler{
		MdClient: mdClient,
		Clock:    clock,
		Metrics:  recorder,
	}
}

func (h alpacaPriceHistoryHandler) GetPriceHistory(ctx context.Context, instruments []string, period time.Duration) (map[string][]domain.PriceBar, error) {
	if len(instruments) == 0 {
		return map[string][]domain.PriceBar{}, nil
	}
	end := h.Clock.Now()

	results, err := h.MdClient.GetMultiBars(instruments, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Adjustment: marketdata.All,
		Start:      end.Add(-period),
		End:        end,
	})
	if err != nil {
		h.Metrics.RecordProviderError("alpaca")
		return nil, fmt.Errorf("failed to get bars from alpaca: %w", err)
	}

	out := map[string][]domain.PriceBar{}
	for symbol, bars := range results {
		converted := make([]domain.PriceBar, 0, len(bars))
		for _, bar := range bars {
			converted = append(converted, domain.PriceBar{
				Date:   bar.Timestamp.UTC(),
				Open:   bar.Open,
				High:   bar.High,
				Low:    bar.Low,
				Close:  bar.Close,
				Volume: int64(bar.Volume),
			})
		}
		sortBars(converted)
		out[symbol] = converted
	}

	return out, nil
}

func sortBars(bars []domain.PriceBar) {
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Date.Before(bars[j].Date)
	})
}
