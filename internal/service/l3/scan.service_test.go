package l3_service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"sectorscan/internal/domain"
	"sectorscan/internal/repository"
	mock_repository "sectorscan/internal/repository/mocks"
	l1_service "sectorscan/internal/service/l1"
	l2_service "sectorscan/internal/service/l2"
	"sectorscan/internal/util"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type noNews struct{}

func (noNews) Fetch(ctx context.Context, instrument string) []domain.NewsItem {
	return []domain.NewsItem{}
}

func flatBars(n int, close float64) []domain.PriceBar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.PriceBar, n)
	for i := range bars {
		bars[i] = domain.PriceBar{
			Date:   start.AddDate(0, 0, i),
			Open:   close,
			High:   close,
			Low:    close,
			Close:  close,
			Volume: 1000,
		}
	}
	return bars
}

func tierPtr(t domain.Tier) *domain.Tier {
	return &t
}

type scanFixture struct {
	service      ScanService
	constituents *mock_repository.MockConstituentRepository
	prices       *mock_repository.MockPriceHistoryRepository
	oracle       *mock_repository.MockOracleRepository
}

func newScanFixture(t *testing.T) scanFixture {
	ctrl := gomock.NewController(t)
	clock := util.NewManualClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))

	constituents := mock_repository.NewMockConstituentRepository(ctrl)
	prices := mock_repository.NewMockPriceHistoryRepository(ctrl)
	oracle := mock_repository.NewMockOracleRepository(ctrl)

	resolver := l1_service.NewUniverseResolver(constituents, nil, nil, clock, nil)
	research := l2_service.NewResearchPipeline(oracle, noNews{}, l2_service.ResearchConfig{
		Workers:           4,
		AnalysisTTL:       time.Hour,
		CacheCapacity:     10,
		InstrumentTimeout: time.Second,
		BatchTimeout:      10 * time.Second,
		TopHeadlines:      5,
		Capital:           10000,
		RiskPerTradePct:   1,
	}, clock, nil)
	allocator := l2_service.NewAllocationAggregator(oracle, 0.4)

	service := NewScanService(resolver, prices, nil, research, allocator, ScanConfig{
		HistoryPeriod: 365 * 24 * time.Hour,
		MinHistory:    50,
		TotalCapital:  10000,
	}, nil)

	return scanFixture{
		service:      service,
		constituents: constituents,
		prices:       prices,
		oracle:       oracle,
	}
}

func TestScanService_Scan(t *testing.T) {
	ctx := context.Background()

	t.Run("short history is skipped and never researched", func(t *testing.T) {
		f := newScanFixture(t)

		f.constituents.EXPECT().
			GetConstituents(gomock.Any(), "AUTO").
			Return([]string{"AAA.NS", "BBB.NS"}, nil)
		f.prices.EXPECT().
			GetPriceHistory(gomock.Any(), []string{"AAA.NS", "BBB.NS"}, 365*24*time.Hour).
			Return(map[string][]domain.PriceBar{
				"AAA.NS": flatBars(60, 100),
				"BBB.NS": flatBars(30, 50),
			}, nil)

		f.oracle.EXPECT().
			Complete(gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, req repository.OracleRequest) (string, error) {
				require.NotContains(t, req.Context, "BBB.NS")
				switch req.Contract {
				case l2_service.ContractAnalyst:
					return `{"thesis": "steady uptrend", "conviction_score": 80, "entry_price": 100,
						"target_price": 110, "stop_loss": 95, "tier": "BUY"}`, nil
				case l2_service.ContractRisk:
					return `{"status": "APPROVED", "criticism": "fine", "adjusted_stop": 96}`, nil
				case l2_service.ContractPortfolio:
					return `{"allocations": [{"instrument": "AAA.NS", "shares": 30, "weight_percent": 30,
						"rationale": "only pick"}], "remaining_cash": 7000}`, nil
				}
				return "", errors.New("unexpected contract " + req.Contract)
			}).
			Times(3)

		result, err := f.service.Scan(ctx, "auto")
		require.NoError(t, err)

		require.Equal(t, "AUTO", result.Sector)
		require.Equal(t, []string{"AAA.NS", "BBB.NS"}, result.Universe)
		require.Len(t, result.Skipped, 1)
		require.Equal(t, "BBB.NS", result.Skipped[0].Instrument)
		require.Empty(t, result.Failed)

		require.Len(t, result.Analyses, 1)
		require.Equal(t, "AAA.NS", result.Analyses[0].Instrument)
		require.True(t, result.Analyses[0].IsApproved())
		require.Equal(t, 96.0, result.Analyses[0].AdjustedStop)

		require.Len(t, result.Portfolio, 1)
		require.Equal(t, "AAA.NS", result.Portfolio[0].Instrument)
		require.Equal(t, int64(30), result.Portfolio[0].ShareCount)
		require.Equal(t, 7000.0, result.RemainingCash)
		require.Equal(t, 10000.0, result.TotalCapital)
		require.NotNil(t, result.Profile.TotalMs)
	})

	t.Run("price provider outage degrades to an empty scan", func(t *testing.T) {
		f := newScanFixture(t)

		f.constituents.EXPECT().
			GetConstituents(gomock.Any(), "BANK").
			Return([]string{"HDFCBANK.NS"}, nil)
		f.prices.EXPECT().
			GetPriceHistory(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, errors.New("yahoo down"))

		result, err := f.service.Scan(ctx, "BANK")
		require.NoError(t, err)
		require.Len(t, result.Skipped, 1)
		require.Empty(t, result.Analyses)
		require.Empty(t, result.Portfolio)
		require.Equal(t, 10000.0, result.RemainingCash)
	})

	t.Run("blank sector", func(t *testing.T) {
		f := newScanFixture(t)
		_, err := f.service.Scan(ctx, "  ")
		require.Error(t, err)
	})
}

func TestRankResults(t *testing.T) {
	vetted := func(instrument string, conviction float64, tier *domain.Tier) domain.VettedResult {
		return domain.VettedResult{AnalysisResult: domain.AnalysisResult{
			Instrument:      instrument,
			ConvictionScore: conviction,
			Tier:            tier,
		}}
	}

	in := []domain.VettedResult{
		vetted("NOTIER.NS", 99, nil),
		vetted("WATCH.NS", 90, tierPtr(domain.Tier_Watchlist)),
		vetted("BUYB.NS", 70, tierPtr(domain.Tier_Buy)),
		vetted("BUYA.NS", 70, tierPtr(domain.Tier_Buy)),
		vetted("STRONG.NS", 60, tierPtr(domain.Tier_StrongBuy)),
		vetted("BUYC.NS", 75, tierPtr(domain.Tier_Buy)),
	}

	ranked := RankResults(in)
	names := []string{}
	for _, r := range ranked {
		names = append(names, r.Instrument)
	}
	require.Equal(t, "STRONG.NS,BUYC.NS,BUYA.NS,BUYB.NS,WATCH.NS,NOTIER.NS", strings.Join(names, ","))
	require.Equal(t, "NOTIER.NS", in[0].Instrument)
}
