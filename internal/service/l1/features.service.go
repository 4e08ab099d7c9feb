package l1_service

import (
	"math"

	"sectorscan/internal/domain"
	"sectorscan/internal/util"

	"github.com/montanaflynn/stats"
)

const (
	shortSmaWindow = 50
	longSmaWindow  = 200
	rsiWindow      = domain.RsiWindow
)

// ExtractFeatures derives the feature snapshot from daily bars ordered oldest
// first. It returns nil when fewer than minHistory usable closes exist.
func ExtractFeatures(instrument string, bars []domain.PriceBar, minHistory int) *domain.FeatureSnapshot {
	closes := make([]float64, 0, len(bars))
	for _, bar := range bars {
		if math.IsNaN(bar.Close) || math.IsInf(bar.Close, 0) || bar.Close <= 0 {
			continue
		}
		closes = append(closes, bar.Close)
	}
	if len(closes) == 0 || len(closes) < minHistory {
		return nil
	}

	snapshot := &domain.FeatureSnapshot{
		Instrument: instrument,
		Price:      util.Round2(closes[len(closes)-1]),
		Sma50:      util.Round2(trailingMean(closes, shortSmaWindow)),
		Sma200:     util.Round2(trailingMean(closes, longSmaWindow)),
		Rsi14:      util.Round2(RelativeStrengthIndex(closes, rsiWindow)),
		Closes:     len(closes),
	}
	if len(bars) > 0 {
		snapshot.AsOf = bars[len(bars)-1].Date
	}

	return snapshot
}

// trailingMean is 0 when the series is shorter than window.
func trailingMean(series []float64, window int) float64 {
	if len(series) < window {
		return 0
	}
	mean, err := stats.Mean(series[len(series)-window:])
	if err != nil {
		return 0
	}
	return mean
}

// RelativeStrengthIndex compares the average gain to the average loss over
// the trailing window of deltas. It needs window+1 closes and returns 0
// otherwise. No losses yields 100; a flat window yields 50.
func RelativeStrengthIndex(closes []float64, window int) float64 {
	if window < 1 || len(closes) < window+1 {
		return 0
	}

	tail := closes[len(closes)-window-1:]
	gains := make([]float64, 0, window)
	losses := make([]float64, 0, window)
	for i := 1; i < len(tail); i++ {
		delta := tail[i] - tail[i-1]
		gains = append(gains, math.Max(delta, 0))
		losses = append(losses, math.Max(-delta, 0))
	}

	avgGain, _ := stats.Mean(gains)
	avgLoss, _ := stats.Mean(losses)

	switch {
	case avgLoss == 0 && avgGain == 0:
		return 50
	case avgLoss == 0:
		return 100
	}

	rsi := 100 - 100/(1+avgGain/avgLoss)
	return math.Min(100, math.Max(0, rsi))
}
