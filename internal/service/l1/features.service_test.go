package l1_service

import (
	"math"
	"testing"
	"time"

	"sectorscan/internal/domain"

	"github.com/stretchr/testify/require"
)

func barsFromCloses(closes []float64) []domain.PriceBar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.PriceBar, len(closes))
	for i, c := range closes {
		out[i] = domain.PriceBar{Date: start.AddDate(0, 0, i), Close: c}
	}
	return out
}

func linear(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func TestExtractFeatures(t *testing.T) {
	t.Run("short history is absent", func(t *testing.T) {
		require.Nil(t, ExtractFeatures("B", barsFromCloses(linear(49, 100, 1)), 50))
		require.Nil(t, ExtractFeatures("B", nil, 50))
	})

	t.Run("60 bars computes sma50 but not sma200", func(t *testing.T) {
		closes := linear(60, 100, 1)
		got := ExtractFeatures("A", barsFromCloses(closes), 50)
		require.NotNil(t, got)

		require.Equal(t, "A", got.Instrument)
		require.Equal(t, 159.0, got.Price)
		// mean of 110..159
		require.Equal(t, 134.5, got.Sma50)
		require.Equal(t, 0.0, got.Sma200)
		require.False(t, got.HasSma200())
		// only gains
		require.Equal(t, 100.0, got.Rsi14)
		require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 59), got.AsOf)
	})

	t.Run("200 bars computes sma200", func(t *testing.T) {
		got := ExtractFeatures("A", barsFromCloses(linear(200, 1, 1)), 50)
		require.NotNil(t, got)
		require.Equal(t, 100.5, got.Sma200)
	})

	t.Run("strictly falling window still has an rsi", func(t *testing.T) {
		got := ExtractFeatures("A", barsFromCloses(linear(20, 100, -1)), 15)
		require.NotNil(t, got)
		require.Equal(t, 20, got.Closes)
		require.Equal(t, 0.0, got.Rsi14)
		require.True(t, got.HasRsi14())
		require.False(t, got.HasSma50())
	})

	t.Run("too few closes for rsi", func(t *testing.T) {
		got := ExtractFeatures("A", barsFromCloses(linear(10, 100, 1)), 5)
		require.NotNil(t, got)
		require.False(t, got.HasRsi14())
	})

	t.Run("unusable closes do not count toward history", func(t *testing.T) {
		closes := linear(50, 100, 1)
		closes[10] = math.NaN()
		require.Nil(t, ExtractFeatures("A", barsFromCloses(closes), 50))
	})
}

func TestRelativeStrengthIndex(t *testing.T) {
	t.Run("falling series", func(t *testing.T) {
		require.Equal(t, 0.0, RelativeStrengthIndex(linear(20, 100, -1), 14))
	})

	t.Run("flat series", func(t *testing.T) {
		require.Equal(t, 50.0, RelativeStrengthIndex(linear(20, 100, 0), 14))
	})

	t.Run("balanced moves", func(t *testing.T) {
		closes := []float64{}
		for i := 0; i < 15; i++ {
			if i%2 == 0 {
				closes = append(closes, 100)
			} else {
				closes = append(closes, 101)
			}
		}
		require.InDelta(t, 50.0, RelativeStrengthIndex(closes, 14), 1e-9)
	})

	t.Run("insufficient closes", func(t *testing.T) {
		require.Equal(t, 0.0, RelativeStrengthIndex(linear(14, 100, 1), 14))
	})

	t.Run("always within bounds", func(t *testing.T) {
		series := []float64{100, 250, 3, 80, 1000, 1, 2, 900, 5, 5, 5, 70, 71, 0.5, 400, 3}
		rsi := RelativeStrengthIndex(series, 14)
		require.False(t, math.IsNaN(rsi))
		require.GreaterOrEqual(t, rsi, 0.0)
		require.LessOrEqual(t, rsi, 100.0)
	})
}
