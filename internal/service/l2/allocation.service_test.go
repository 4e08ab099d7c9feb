package l2_service

import (
	"context"
	"errors"
	"testing"

	"sectorscan/internal/domain"
	"sectorscan/internal/repository"
	mock_repository "sectorscan/internal/repository/mocks"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func vettedResult(instrument string, entry float64, status *domain.RiskStatus) domain.VettedResult {
	return domain.VettedResult{
		AnalysisResult: domain.AnalysisResult{
			Instrument: instrument,
			Price:      entry,
			EntryPrice: entry,
			StopLoss:   entry * 0.95,
		},
		RiskStatus:   status,
		AdjustedStop: entry * 0.95,
	}
}

func statusPtr(s domain.RiskStatus) *domain.RiskStatus {
	return &s
}

func TestAllocationAggregator_Allocate(t *testing.T) {
	ctx := context.Background()
	approved := statusPtr(domain.RiskStatus_Approved)
	rejected := statusPtr(domain.RiskStatus_Rejected)

	t.Run("no approved results skips oracle", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		oracleRepository := mock_repository.NewMockOracleRepository(ctrl)

		h := NewAllocationAggregator(oracleRepository, 0.4)
		got := h.Allocate(ctx, []domain.VettedResult{
			vettedResult("A", 100, rejected),
			vettedResult("B", 100, nil),
		}, 10000)

		require.Equal(t, "", cmp.Diff(emptyAllocation(10000), got))
	})

	t.Run("happy path recomputes weights and cash", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		oracleRepository := mock_repository.NewMockOracleRepository(ctrl)

		oracleRepository.EXPECT().
			Complete(gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, req repository.OracleRequest) (string, error) {
				require.Equal(t, ContractPortfolio, req.Contract)
				require.Contains(t, req.Context, `"instrument":"A"`)
				require.NotContains(t, req.Context, `"instrument":"B"`)
				return `{"allocations": [
					{"instrument": "A", "shares": 30, "weight_percent": 99, "rationale": "strong"},
					{"instrument": "C", "shares": 0, "rationale": "skip"}
				], "remaining_cash": 7000}`, nil
			})

		h := NewAllocationAggregator(oracleRepository, 0.4)
		got := h.Allocate(ctx, []domain.VettedResult{
			vettedResult("A", 100, approved),
			vettedResult("B", 100, rejected),
			vettedResult("C", 50, approved),
		}, 10000)

		expected := domain.Allocation{
			Lines: []domain.AllocationLine{
				{Instrument: "A", ShareCount: 30, WeightPercent: 30, Rationale: "strong"},
			},
			RemainingCash: 7000,
			TotalCapital:  10000,
		}
		require.Equal(t, "", cmp.Diff(expected, got))
	})

	rejectCases := map[string]string{
		"unknown instrument":  `{"allocations": [{"instrument": "B", "shares": 1}]}`,
		"cap violation":       `{"allocations": [{"instrument": "A", "shares": 41}]}`,
		"over budget":         `{"allocations": [{"instrument": "A", "shares": 40}, {"instrument": "C", "shares": 80}, {"instrument": "D", "shares": 40}]}`,
		"duplicate line":      `{"allocations": [{"instrument": "A", "shares": 1}, {"instrument": "A", "shares": 2}]}`,
		"fractional shares":   `{"allocations": [{"instrument": "A", "shares": 1.5}]}`,
		"shares beyond int64": `{"allocations": [{"instrument": "A", "shares": 1e19}]}`,
		"not json":            `I'd put it all in A`,
	}
	for name, raw := range rejectCases {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			oracleRepository := mock_repository.NewMockOracleRepository(ctrl)
			oracleRepository.EXPECT().
				Complete(gomock.Any(), gomock.Any()).
				Return(raw, nil)

			h := NewAllocationAggregator(oracleRepository, 0.4)
			got := h.Allocate(ctx, []domain.VettedResult{
				vettedResult("A", 100, approved),
				vettedResult("C", 50, approved),
				vettedResult("D", 100, approved),
			}, 10000)
			require.Equal(t, "", cmp.Diff(emptyAllocation(10000), got))
		})
	}

	t.Run("negative share count never reaches the allocation", func(t *testing.T) {
		h := allocationAggregatorHandler{ConcentrationCap: 0.4}
		_, err := h.validate(&ParsedAllocation{
			Lines: []domain.AllocationLine{{Instrument: "A", ShareCount: -5}},
		}, []domain.VettedResult{vettedResult("A", 100, approved)}, 10000)
		require.ErrorContains(t, err, "negative share count")
	})

	t.Run("oracle error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		oracleRepository := mock_repository.NewMockOracleRepository(ctrl)
		oracleRepository.EXPECT().
			Complete(gomock.Any(), gomock.Any()).
			Return("", errors.New("503"))

		h := NewAllocationAggregator(oracleRepository, 0.4)
		got := h.Allocate(ctx, []domain.VettedResult{vettedResult("A", 100, approved)}, 10000)
		require.Equal(t, "", cmp.Diff(emptyAllocation(10000), got))
	})
}
