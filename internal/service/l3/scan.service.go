package l3_service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"sectorscan/internal/domain"
	"sectorscan/internal/logger"
	"sectorscan/internal/metrics"
	"sectorscan/internal/repository"
	l1_service "sectorscan/internal/service/l1"
	l2_service "sectorscan/internal/service/l2"

	"github.com/google/uuid"
)

type SkippedInstrument struct {
	Instrument string `json:"instrument"`
	Reason     string `json:"reason"`
}

type ScanResult struct {
	ScanID        uuid.UUID                  `json:"scanId"`
	Sector        string                     `json:"sector"`
	Universe      []string                   `json:"universe"`
	Skipped       []SkippedInstrument        `json:"skipped"`
	Failed        []domain.InstrumentFailure `json:"failed"`
	Analyses      []domain.VettedResult      `json:"analyses"`
	Portfolio     []domain.AllocationLine    `json:"portfolio"`
	RemainingCash float64                    `json:"remainingCash"`
	TotalCapital  float64                    `json:"totalCapital"`
	Profile       *domain.Profile            `json:"profile,omitempty"`
}

// ScanService runs one sector through resolve, extract, research and
// allocate.
type ScanService interface {
	Scan(ctx context.Context, sector string) (*ScanResult, error)
}

type ScanConfig struct {
	HistoryPeriod time.Duration
	MinHistory    int
	TotalCapital  float64
}

type scanServiceHandler struct {
	UniverseResolver       l1_service.UniverseResolver
	PriceHistoryRepository repository.PriceHistoryRepository
	FeatureScreen          *l2_service.FeatureScreen
	ResearchPipeline       l2_service.ResearchPipeline
	AllocationAggregator   l2_service.AllocationAggregator
	Config                 ScanConfig
	Metrics                *metrics.Recorder
}

func NewScanService(
	universeResolver l1_service.UniverseResolver,
	priceHistoryRepository repository.PriceHistoryRepository,
	featureScreen *l2_service.FeatureScreen,
	researchPipeline l2_service.ResearchPipeline,
	allocationAggregator l2_service.AllocationAggregator,
	cfg ScanConfig,
	recorder *metrics.Recorder,
) ScanService {
	return scanServiceHandler{
		UniverseResolver:       universeResolver,
		PriceHistoryRepository: priceHistoryRepository,
		FeatureScreen:          featureScreen,
		ResearchPipeline:       researchPipeline,
		AllocationAggregator:   allocationAggregator,
		Config:                 cfg,
		Metrics:                recorder,
	}
}

func (h scanServiceHandler) Scan(ctx context.Context, sector string) (*ScanResult, error) {
	tag := l1_service.NormalizeSectorTag(sector)
	if tag == "" {
		return nil, fmt.Errorf("sector is required")
	}

	scanID := uuid.New()
	ctx = logger.With(ctx, "scanID", scanID.String(), "sector", tag)
	log := logger.FromContext(ctx)

	profile, endProfile := domain.NewProfile()
	ctx = domain.WithProfile(ctx, profile)

	result := &ScanResult{
		ScanID:       scanID,
		Sector:       tag,
		Skipped:      []SkippedInstrument{},
		Failed:       []domain.InstrumentFailure{},
		Analyses:     []domain.VettedResult{},
		Portfolio:    []domain.AllocationLine{},
		TotalCapital: h.Config.TotalCapital,
		Profile:      profile,
	}

	_, endSpan := profile.StartNewSpan("resolve universe")
	result.Universe = h.UniverseResolver.Resolve(ctx, tag)
	endSpan()
	log.Infof("resolved %d instruments", len(result.Universe))

	_, endSpan = profile.StartNewSpan("load price history")
	history, err := h.PriceHistoryRepository.GetPriceHistory(ctx, result.Universe, h.Config.HistoryPeriod)
	endSpan()
	if err != nil {
		log.Warnw("price history unavailable, every instrument will be skipped", "error", err)
		history = map[string][]domain.PriceBar{}
	}

	_, endSpan = profile.StartNewSpan("extract features")
	candidates := []domain.FeatureSnapshot{}
	for _, instrument := range result.Universe {
		bars := history[instrument]
		snapshot := l1_service.ExtractFeatures(instrument, bars, h.Config.MinHistory)
		if snapshot == nil {
			result.Skipped = append(result.Skipped, SkippedInstrument{
				Instrument: instrument,
				Reason:     fmt.Sprintf("insufficient history: %d bars", len(bars)),
			})
			continue
		}
		if h.FeatureScreen != nil {
			pass, err := h.FeatureScreen.Pass(*snapshot)
			if err != nil {
				log.Warnw("feature screen failed", "instrument", instrument, "error", err)
			}
			if !pass {
				result.Skipped = append(result.Skipped, SkippedInstrument{
					Instrument: instrument,
					Reason:     "screened out",
				})
				continue
			}
		}
		candidates = append(candidates, *snapshot)
	}
	endSpan()
	for range result.Skipped {
		h.Metrics.RecordInstrumentOutcome("SKIPPED")
	}

	batch := h.ResearchPipeline.Research(ctx, candidates)
	result.Failed = append(result.Failed, batch.Failures...)
	result.Analyses = RankResults(batch.Results)

	_, endSpan = profile.StartNewSpan("allocate")
	allocation := h.AllocationAggregator.Allocate(ctx, result.Analyses, h.Config.TotalCapital)
	endSpan()
	result.Portfolio = allocation.Lines
	result.RemainingCash = allocation.RemainingCash
	endProfile()

	log.Infow("scan complete",
		"universe", len(result.Universe),
		"skipped", len(result.Skipped),
		"failed", len(result.Failed),
		"analyses", len(result.Analyses),
		"positions", len(result.Portfolio),
	)
	return result, nil
}

// RankResults orders results by tier, then conviction, then instrument.
// Results without a tier rank last.
func RankResults(results []domain.VettedResult) []domain.VettedResult {
	out := make([]domain.VettedResult, len(results))
	copy(out, results)

	tierPriority := func(v domain.VettedResult) int {
		if v.Tier == nil {
			return 0
		}
		return v.Tier.Priority()
	}
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := tierPriority(out[i]), tierPriority(out[j])
		if pi != pj {
			return pi > pj
		}
		if out[i].ConvictionScore != out[j].ConvictionScore {
			return out[i].ConvictionScore > out[j].ConvictionScore
		}
		return out[i].Instrument < out[j].Instrument
	})
	return out
}
