package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"sectorscan/internal/domain"
	"sectorscan/internal/util"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestYahooPriceHistory_GetPriceHistory(t *testing.T) {
	now := util.NewDate(2024, 6, 1)

	t.Run("skips failed symbols and sorts bars", func(t *testing.T) {
		h := yahooPriceHistoryHandler{
			Clock:       util.NewManualClock(now),
			Concurrency: 2,
			fetch: func(symbol string, start, end time.Time) ([]domain.PriceBar, error) {
				require.Equal(t, now, end)
				require.Equal(t, now.Add(-48*time.Hour), start)
				if symbol == "BAD.NS" {
					return nil, errors.New("404")
				}
				return []domain.PriceBar{
					{Date: util.NewDate(2024, 5, 31), Close: 2},
					{Date: util.NewDate(2024, 5, 30), Close: 1},
				}, nil
			},
		}

		got, err := h.GetPriceHistory(context.Background(), []string{"GOOD.NS", "BAD.NS"}, 48*time.Hour)
		require.NoError(t, err)

		expected := map[string][]domain.PriceBar{
			"GOOD.NS": {
				{Date: util.NewDate(2024, 5, 30), Close: 1},
				{Date: util.NewDate(2024, 5, 31), Close: 2},
			},
		}
		require.Equal(t, "", cmp.Diff(expected, got))
	})

	t.Run("bounded fan-out", func(t *testing.T) {
		var inFlight, peak int32
		h := yahooPriceHistoryHandler{
			Clock:       util.NewManualClock(now),
			Concurrency: 3,
			fetch: func(symbol string, start, end time.Time) ([]domain.PriceBar, error) {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return []domain.PriceBar{}, nil
			},
		}

		symbols := []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"}
		got, err := h.GetPriceHistory(context.Background(), symbols, time.Hour)
		require.NoError(t, err)
		require.Len(t, got, len(symbols))
		require.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
	})
}
