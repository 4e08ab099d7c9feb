package l2_service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"sectorscan/internal/domain"
	"sectorscan/internal/logger"
	"sectorscan/internal/metrics"
	"sectorscan/internal/repository"
	l1_service "sectorscan/internal/service/l1"
	"sectorscan/internal/util"
)

type ResearchBatch struct {
	// Results holds every instrument that finished analysis, sorted by
	// instrument. RiskStatus is nil where the risk review failed.
	Results  []domain.VettedResult
	Failures []domain.InstrumentFailure
}

type ResearchPipeline interface {
	Research(ctx context.Context, features []domain.FeatureSnapshot) ResearchBatch
}

type ResearchConfig struct {
	Workers           int
	AnalysisTTL       time.Duration
	CacheCapacity     int
	InstrumentTimeout time.Duration
	BatchTimeout      time.Duration
	TopHeadlines      int
	Capital           float64
	RiskPerTradePct   float64
}

type researchPipelineHandler struct {
	OracleRepository repository.OracleRepository
	NewsAggregator   l1_service.NewsAggregator
	Config           ResearchConfig
	Metrics          *metrics.Recorder

	analysisCache *l1_service.TTLCache[string, domain.AnalysisResult]
}

func NewResearchPipeline(
	oracleRepository repository.OracleRepository,
	newsAggregator l1_service.NewsAggregator,
	cfg ResearchConfig,
	clock util.Clock,
	recorder *metrics.Recorder,
) ResearchPipeline {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return researchPipelineHandler{
		OracleRepository: oracleRepository,
		NewsAggregator:   newsAggregator,
		Config:           cfg,
		Metrics:          recorder,
		analysisCache:    l1_service.NewTTLCache[string, domain.AnalysisResult](clock, cfg.AnalysisTTL, cfg.CacheCapacity),
	}
}

type researchInput struct {
	Features domain.FeatureSnapshot
}

type researchResult struct {
	Instrument string
	Vetted     *domain.VettedResult
	Failure    *domain.InstrumentFailure
	span       *domain.Span
}

type stageError struct {
	stage string
	err   error
}

func (e stageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.stage, e.err)
}

func (e stageError) Unwrap() error {
	return e.err
}

// Research runs analysis then risk review for every instrument on a bounded
// pool of workers. One instrument's failure never affects the others;
// instruments still queued when the batch deadline passes are reported as
// failures.
func (h researchPipelineHandler) Research(ctx context.Context, features []domain.FeatureSnapshot) ResearchBatch {
	profile, _ := domain.GetProfile(ctx)
	log := logger.FromContext(ctx)

	batch := ResearchBatch{
		Results:  []domain.VettedResult{},
		Failures: []domain.InstrumentFailure{},
	}
	if len(features) == 0 {
		return batch
	}

	batchCtx := ctx
	if h.Config.BatchTimeout > 0 {
		var cancel context.CancelFunc
		batchCtx, cancel = context.WithTimeout(ctx, h.Config.BatchTimeout)
		defer cancel()
	}

	inputCh := make(chan researchInput, len(features))
	resultCh := make(chan researchResult, len(features))
	for _, f := range features {
		inputCh <- researchInput{Features: f}
	}
	close(inputCh)

	numGoroutines := h.Config.Workers
	if numGoroutines > len(features) {
		numGoroutines = len(features)
	}

	span, endSpan := profile.StartNewSpan("research instruments")
	subProfile, endSubProfile := span.NewSubProfile()

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-batchCtx.Done():
					return
				case input, ok := <-inputCh:
					if !ok {
						return
					}
					resultCh <- h.researchOne(batchCtx, input)
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	seen := map[string]bool{}
	for res := range resultCh {
		seen[res.Instrument] = true
		if res.span != nil {
			subProfile.AddSpan(res.span)
		}
		if res.Failure != nil {
			batch.Failures = append(batch.Failures, *res.Failure)
			continue
		}
		batch.Results = append(batch.Results, *res.Vetted)
	}
	endSubProfile()
	endSpan()

	for _, f := range features {
		if !seen[f.Instrument] {
			h.Metrics.RecordInstrumentOutcome(string(domain.InstrumentState_Failed))
			batch.Failures = append(batch.Failures, domain.InstrumentFailure{
				Instrument: f.Instrument,
				Stage:      "queue",
				Reason:     "batch deadline exceeded before instrument was processed",
			})
		}
	}

	sort.Slice(batch.Results, func(i, j int) bool {
		return batch.Results[i].Instrument < batch.Results[j].Instrument
	})
	sort.Slice(batch.Failures, func(i, j int) bool {
		return batch.Failures[i].Instrument < batch.Failures[j].Instrument
	})

	log.Infow("research batch complete",
		"instruments", len(features),
		"results", len(batch.Results),
		"failures", len(batch.Failures),
	)

	return batch
}

func (h researchPipelineHandler) researchOne(ctx context.Context, input researchInput) (out researchResult) {
	instrument := input.Features.Instrument
	out.Instrument = instrument
	span, endSpan := domain.NewSpan("research " + instrument)
	out.span = span
	defer endSpan()

	log := logger.FromContext(ctx).With("instrument", instrument)
	ctx = logger.WithContext(ctx, log)

	fail := func(stage string, err error) researchResult {
		h.Metrics.RecordInstrumentOutcome(string(domain.InstrumentState_Failed))
		log.Warnw("instrument failed", "stage", stage, "error", err)
		out.Failure = &domain.InstrumentFailure{
			Instrument: instrument,
			Stage:      stage,
			Reason:     err.Error(),
		}
		return out
	}

	defer func() {
		if r := recover(); r != nil {
			out.Vetted = nil
			out = fail("panic", fmt.Errorf("%v", r))
		}
	}()

	if h.Config.InstrumentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Config.InstrumentTimeout)
		defer cancel()
	}

	analysis, cacheHit, err := h.analyze(ctx, input.Features)
	if err != nil {
		return fail("analysis", err)
	}

	vetted := domain.VettedResult{
		AnalysisResult: *analysis,
		AdjustedStop:   analysis.StopLoss,
		CacheHit:       cacheHit,
	}

	verdict, err := h.review(ctx, *analysis)
	if err != nil {
		// analysis stays usable, but without a verdict it is never allocated
		h.Metrics.RecordInstrumentOutcome(string(domain.InstrumentState_Analyzed))
		log.Warnw("risk review failed", "error", err)
		vetted.SuggestedShares = l1_service.PositionSize(h.Config.Capital, h.Config.RiskPerTradePct, analysis.EntryPrice, analysis.StopLoss)
		out.Vetted = &vetted
		return out
	}

	status := verdict.Status
	vetted.RiskStatus = &status
	vetted.RiskCriticism = verdict.Criticism
	if status == domain.RiskStatus_Approved && verdict.AdjustedStop != nil {
		if *verdict.AdjustedStop < vetted.EntryPrice {
			vetted.AdjustedStop = *verdict.AdjustedStop
		} else {
			log.Warnw("ignoring adjusted stop at or above entry",
				"adjustedStop", *verdict.AdjustedStop,
				"entryPrice", vetted.EntryPrice,
			)
		}
	}
	vetted.SuggestedShares = l1_service.PositionSize(h.Config.Capital, h.Config.RiskPerTradePct, vetted.EntryPrice, vetted.AdjustedStop)

	h.Metrics.RecordInstrumentOutcome(string(status))
	out.Vetted = &vetted
	return out
}

func (h researchPipelineHandler) analyze(ctx context.Context, features domain.FeatureSnapshot) (*domain.AnalysisResult, bool, error) {
	if cached, ok := h.analysisCache.Get(features.Instrument); ok {
		return &cached, true, nil
	}

	news := h.NewsAggregator.Fetch(ctx, features.Instrument)
	instruction, input, err := NewAnalystRequest(features, l1_service.TopHeadlines(news, h.Config.TopHeadlines))
	if err != nil {
		return nil, false, err
	}

	raw, err := h.OracleRepository.Complete(ctx, repository.OracleRequest{
		Contract:    ContractAnalyst,
		Instruction: instruction,
		Context:     input,
	})
	if err != nil {
		return nil, false, stageError{stage: ContractAnalyst, err: err}
	}

	analysis, err := ParseAnalysis(raw, features)
	if err != nil {
		return nil, false, stageError{stage: ContractAnalyst, err: err}
	}

	// stored before risk review so a review failure keeps the analysis
	h.analysisCache.Set(features.Instrument, *analysis)
	return analysis, false, nil
}

func (h researchPipelineHandler) review(ctx context.Context, analysis domain.AnalysisResult) (*RiskVerdict, error) {
	instruction, input, err := NewRiskRequest(analysis)
	if err != nil {
		return nil, err
	}

	raw, err := h.OracleRepository.Complete(ctx, repository.OracleRequest{
		Contract:    ContractRisk,
		Instruction: instruction,
		Context:     input,
	})
	if err != nil {
		return nil, stageError{stage: ContractRisk, err: err}
	}

	verdict, err := ParseRisk(raw)
	if err != nil {
		return nil, stageError{stage: ContractRisk, err: err}
	}
	return verdict, nil
}
