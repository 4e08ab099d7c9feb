package l1_service

import (
	"context"
	"sort"
	"time"

	"sectorscan/internal/domain"
	"sectorscan/internal/logger"
	"sectorscan/internal/metrics"
	"sectorscan/internal/repository"
	"sectorscan/internal/util"
)

type NewsAggregator interface {
	// Fetch returns deduplicated headlines ordered by authenticity weight,
	// highest first. Source faults are logged and yield fewer (or no) items,
	// never an error.
	Fetch(ctx context.Context, instrument string) []domain.NewsItem
}

type NewsAggregatorConfig struct {
	Sources        []domain.NewsSource
	Fallback       *domain.NewsSource
	TTL            time.Duration
	PerSourceLimit int
	FallbackLimit  int
	Capacity       int
}

type newsAggregatorHandler struct {
	NewsRepository repository.NewsRepository
	Sources        []domain.NewsSource
	Fallback       *domain.NewsSource
	PerSourceLimit int
	FallbackLimit  int
	Metrics        *metrics.Recorder

	cache *TTLCache[string, []domain.NewsItem]
}

func NewNewsAggregator(newsRepository repository.NewsRepository, cfg NewsAggregatorConfig, clock util.Clock, recorder *metrics.Recorder) NewsAggregator {
	// most authoritative first, so its copy of a duplicate title survives
	sources := append([]domain.NewsSource{}, cfg.Sources...)
	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].AuthenticityWeight > sources[j].AuthenticityWeight
	})

	return newsAggregatorHandler{
		NewsRepository: newsRepository,
		Sources:        sources,
		Fallback:       cfg.Fallback,
		PerSourceLimit: cfg.PerSourceLimit,
		FallbackLimit:  cfg.FallbackLimit,
		Metrics:        recorder,
		cache:          NewTTLCache[string, []domain.NewsItem](clock, cfg.TTL, cfg.Capacity),
	}
}

func (h newsAggregatorHandler) Fetch(ctx context.Context, instrument string) []domain.NewsItem {
	if cached, ok := h.cache.Get(instrument); ok {
		return append([]domain.NewsItem{}, cached...)
	}

	log := logger.FromContext(ctx).With("instrument", instrument)
	query := util.BareSymbol(instrument)

	out := []domain.NewsItem{}
	seen := map[string]struct{}{}
	failed := false
	collect := func(source domain.NewsSource, q string, limit int) {
		items, err := h.NewsRepository.Search(ctx, source, q, limit)
		if err != nil {
			failed = true
			h.Metrics.RecordProviderError("news")
			log.Warnw("news source failed", "source", source.Name, "error", err)
			return
		}
		for _, item := range items {
			if _, ok := seen[item.Title]; ok {
				continue
			}
			seen[item.Title] = struct{}{}
			item.SourceName = source.Name
			item.AuthenticityWeight = source.AuthenticityWeight
			out = append(out, item)
		}
	}

	for _, source := range h.Sources {
		collect(source, query, h.PerSourceLimit)
	}
	if len(out) == 0 && !failed && h.Fallback != nil {
		collect(*h.Fallback, query, h.FallbackLimit)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AuthenticityWeight > out[j].AuthenticityWeight
	})

	if !failed {
		h.cache.Set(instrument, out)
	}

	return append([]domain.NewsItem{}, out...)
}

// TopHeadlines returns the first n titles.
func TopHeadlines(items []domain.NewsItem, n int) []string {
	out := []string{}
	for _, item := range items {
		if len(out) >= n {
			break
		}
		out = append(out, item.Title)
	}
	return out
}
