package l2_service

import (
	"context"
	"fmt"

	"sectorscan/internal/domain"
	"sectorscan/internal/logger"
	"sectorscan/internal/repository"

	"github.com/shopspring/decimal"
)

type AllocationAggregator interface {
	// Allocate never returns a partial allocation: when the oracle fails or
	// answers with anything that breaks the budget, the result is empty with
	// all capital left as cash.
	Allocate(ctx context.Context, vetted []domain.VettedResult, totalCapital float64) domain.Allocation
}

type allocationAggregatorHandler struct {
	OracleRepository repository.OracleRepository
	ConcentrationCap float64
}

func NewAllocationAggregator(oracleRepository repository.OracleRepository, concentrationCap float64) AllocationAggregator {
	return allocationAggregatorHandler{
		OracleRepository: oracleRepository,
		ConcentrationCap: concentrationCap,
	}
}

func emptyAllocation(totalCapital float64) domain.Allocation {
	return domain.Allocation{
		Lines:         []domain.AllocationLine{},
		RemainingCash: totalCapital,
		TotalCapital:  totalCapital,
	}
}

func (h allocationAggregatorHandler) Allocate(ctx context.Context, vetted []domain.VettedResult, totalCapital float64) domain.Allocation {
	log := logger.FromContext(ctx)

	approved := []domain.VettedResult{}
	for _, v := range vetted {
		if v.IsApproved() {
			approved = append(approved, v)
		}
	}
	if len(approved) == 0 {
		return emptyAllocation(totalCapital)
	}

	instruction, input, err := NewPortfolioRequest(approved, totalCapital, h.ConcentrationCap)
	if err != nil {
		log.Errorw("failed to build portfolio request", "error", err)
		return emptyAllocation(totalCapital)
	}

	raw, err := h.OracleRepository.Complete(ctx, repository.OracleRequest{
		Contract:    ContractPortfolio,
		Instruction: instruction,
		Context:     input,
	})
	if err != nil {
		log.Warnw("portfolio oracle call failed", "error", err)
		return emptyAllocation(totalCapital)
	}

	parsed, err := ParsePortfolio(raw)
	if err != nil {
		log.Warnw("discarding malformed allocation", "error", err)
		return emptyAllocation(totalCapital)
	}

	allocation, err := h.validate(parsed, approved, totalCapital)
	if err != nil {
		log.Warnw("discarding allocation that breaks limits", "error", err)
		return emptyAllocation(totalCapital)
	}

	if parsed.RemainingCash != nil {
		diff := decimal.NewFromFloat(*parsed.RemainingCash).Sub(decimal.NewFromFloat(allocation.RemainingCash)).Abs()
		if diff.GreaterThan(decimal.NewFromInt(1)) {
			log.Infow("oracle remaining cash disagrees with line totals, using recomputed value",
				"reported", *parsed.RemainingCash,
				"recomputed", allocation.RemainingCash,
			)
		}
	}

	return allocation
}

// validate checks every line against the approved set, the concentration cap
// and the budget, and recomputes weights and remaining cash from entry
// prices.
func (h allocationAggregatorHandler) validate(parsed *ParsedAllocation, approved []domain.VettedResult, totalCapital float64) (domain.Allocation, error) {
	prices := map[string]decimal.Decimal{}
	for _, v := range approved {
		prices[v.Instrument] = decimal.NewFromFloat(v.EntryPrice)
	}

	capital := decimal.NewFromFloat(totalCapital)
	capLimit := capital.Mul(decimal.NewFromFloat(h.ConcentrationCap))
	spent := decimal.Zero
	seen := map[string]bool{}
	lines := []domain.AllocationLine{}

	for _, line := range parsed.Lines {
		price, ok := prices[line.Instrument]
		if !ok {
			return domain.Allocation{}, fmt.Errorf("allocation references %s, which is not an approved instrument", line.Instrument)
		}
		if seen[line.Instrument] {
			return domain.Allocation{}, fmt.Errorf("allocation lists %s twice", line.Instrument)
		}
		seen[line.Instrument] = true

		if line.ShareCount < 0 {
			return domain.Allocation{}, fmt.Errorf("%s allocation has negative share count %d", line.Instrument, line.ShareCount)
		}
		if line.ShareCount == 0 {
			continue
		}
		value := price.Mul(decimal.NewFromInt(line.ShareCount))
		if value.GreaterThan(capLimit) {
			return domain.Allocation{}, fmt.Errorf("%s allocation %s exceeds concentration cap %s", line.Instrument, value.StringFixed(2), capLimit.StringFixed(2))
		}
		spent = spent.Add(value)

		line.WeightPercent = value.Div(capital).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
		lines = append(lines, line)
	}

	if spent.GreaterThan(capital) {
		return domain.Allocation{}, fmt.Errorf("allocation spends %s of %s capital", spent.StringFixed(2), capital.StringFixed(2))
	}

	return domain.Allocation{
		Lines:         lines,
		RemainingCash: capital.Sub(spent).Round(2).InexactFloat64(),
		TotalCapital:  totalCapital,
	}, nil
}
