package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"sectorscan/api"
	"sectorscan/internal/logger"
	"sectorscan/internal/metrics"
	"sectorscan/internal/repository"
	l1_service "sectorscan/internal/service/l1"
	l2_service "sectorscan/internal/service/l2"
	l3_service "sectorscan/internal/service/l3"
	"sectorscan/internal/util"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
)

func CloseDependencies(handler *api.ApiHandler) {
	for _, closer := range handler.Closers {
		if err := closer(); err != nil {
			logger.FromContext(context.Background()).Errorw("failed to close dependency", "error", err)
		}
	}
}

// InitializeDependencies wires every repository and service from the config
// at util.ConfigPath().
func InitializeDependencies() (*api.ApiHandler, *util.Config, error) {
	cfg, err := util.LoadConfig(util.ConfigPath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	handler, err := NewApiHandler(context.Background(), cfg, prometheus.DefaultRegisterer)
	if err != nil {
		return nil, nil, err
	}
	return handler, cfg, nil
}

func NewApiHandler(ctx context.Context, cfg *util.Config, reg prometheus.Registerer) (*api.ApiHandler, error) {
	clock := util.NewClock()
	recorder := metrics.New(reg)
	httpClient := &http.Client{Timeout: 30 * time.Second}
	closers := []func() error{}

	oracleRepository, err := repository.NewOracleRepository(cfg.Secrets.OpenAIApiKey, repository.OracleConfig{
		Model:      cfg.Oracle.Model,
		Timeout:    cfg.Oracle.Timeout,
		MaxRetries: cfg.Oracle.MaxRetries,
	}, recorder)
	if err != nil {
		return nil, err
	}

	sectorUrls := cfg.Market.SectorUrls
	if len(sectorUrls) == 0 {
		sectorUrls = l1_service.DefaultSectorUrls
	}
	constituentRepository := repository.NewConstituentRepository(httpClient, sectorUrls, cfg.Market.Suffix)

	var priceHistoryRepository repository.PriceHistoryRepository
	switch cfg.Market.Provider {
	case "alpaca":
		priceHistoryRepository = repository.NewAlpacaPriceHistoryRepository(
			cfg.Secrets.AlpacaApiKey,
			cfg.Secrets.AlpacaApiSecret,
			cfg.Secrets.AlpacaEndpoint,
			clock,
			recorder,
		)
	default:
		priceHistoryRepository = repository.NewYahooPriceHistoryRepository(clock, recorder)
	}

	newsRepository := repository.NewNewsRepository(httpClient)

	ledgerRepository, ledgerClosers, err := newLedgerRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}
	closers = append(closers, ledgerClosers...)

	universeResolver := l1_service.NewUniverseResolver(
		constituentRepository,
		cfg.Market.Fallback,
		cfg.Market.Remap,
		clock,
		recorder,
	)
	newsAggregator := l1_service.NewNewsAggregator(newsRepository, l1_service.NewsAggregatorConfig{
		Sources:        cfg.News.Sources,
		Fallback:       cfg.News.Fallback,
		TTL:            cfg.News.TTL,
		PerSourceLimit: cfg.News.PerSourceLimit,
		FallbackLimit:  cfg.News.FallbackLimit,
		Capacity:       cfg.Research.CacheCapacity,
	}, clock, recorder)

	featureScreen, err := l2_service.NewFeatureScreen(cfg.Research.Screen)
	if err != nil {
		return nil, err
	}
	researchPipeline := l2_service.NewResearchPipeline(oracleRepository, newsAggregator, l2_service.ResearchConfig{
		Workers:           cfg.Research.Workers,
		AnalysisTTL:       cfg.Research.AnalysisTTL,
		CacheCapacity:     cfg.Research.CacheCapacity,
		InstrumentTimeout: cfg.Research.InstrumentTimeout,
		BatchTimeout:      cfg.Research.BatchTimeout,
		TopHeadlines:      cfg.Research.TopHeadlines,
		Capital:           cfg.Portfolio.Capital,
		RiskPerTradePct:   cfg.Portfolio.RiskPerTradePct,
	}, clock, recorder)
	allocationAggregator := l2_service.NewAllocationAggregator(oracleRepository, cfg.Portfolio.ConcentrationCap)

	scanService := l3_service.NewScanService(
		universeResolver,
		priceHistoryRepository,
		featureScreen,
		researchPipeline,
		allocationAggregator,
		l3_service.ScanConfig{
			HistoryPeriod: cfg.Market.Period,
			MinHistory:    cfg.Market.MinHistory,
			TotalCapital:  cfg.Portfolio.Capital,
		},
		recorder,
	)
	paperTradeLedger := l3_service.NewPaperTradeLedger(ledgerRepository, clock, recorder)

	var gatherer prometheus.Gatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	return &api.ApiHandler{
		ScanService:      scanService,
		UniverseResolver: universeResolver,
		PaperTradeLedger: paperTradeLedger,
		Gatherer:         gatherer,
		Closers:          closers,
	}, nil
}

// NewLedgerOnly builds just the paper-trade ledger, for commands that never
// reach the oracle or market data.
func NewLedgerOnly(ctx context.Context, cfg *util.Config) (l3_service.PaperTradeLedger, func(), error) {
	ledgerRepository, closers, err := newLedgerRepository(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	closeAll := func() {
		CloseDependencies(&api.ApiHandler{Closers: closers})
	}
	return l3_service.NewPaperTradeLedger(ledgerRepository, util.NewClock(), nil), closeAll, nil
}

func newLedgerRepository(ctx context.Context, cfg *util.Config) (repository.LedgerRepository, []func() error, error) {
	if cfg.Ledger.Backend != "postgres" {
		return repository.NewFileLedgerRepository(cfg.Ledger.Path), nil, nil
	}
	if cfg.Secrets.LedgerDSN == "" {
		return nil, nil, fmt.Errorf("ledger backend is postgres but LEDGER_DSN is not set")
	}
	dbConn, err := sql.Open("postgres", cfg.Secrets.LedgerDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to ledger db: %w", err)
	}
	ledgerRepository, err := repository.NewPostgresLedgerRepository(ctx, dbConn)
	if err != nil {
		dbConn.Close()
		return nil, nil, err
	}
	return ledgerRepository, []func() error{dbConn.Close}, nil
}
