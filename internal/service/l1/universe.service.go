package l1_service

import (
	"context"
	"errors"
	"strings"

	"sectorscan/internal/logger"
	"sectorscan/internal/metrics"
	"sectorscan/internal/repository"
	"sectorscan/internal/util"
)

// UniverseResolver maps a sector tag to its candidate instruments.
type UniverseResolver interface {
	// Resolve never fails: provider faults degrade to the static fallback
	// list, which may be empty.
	Resolve(ctx context.Context, sectorTag string) []string
}

var DefaultSectorUrls = map[string]string{
	"AUTO":   "https://archives.nseindia.com/content/indices/ind_niftyautolist.csv",
	"IT":     "https://archives.nseindia.com/content/indices/ind_niftyitlist.csv",
	"BANK":   "https://archives.nseindia.com/content/indices/ind_niftybanklist.csv",
	"PHARMA": "https://archives.nseindia.com/content/indices/ind_niftypharmalist.csv",
	"FMCG":   "https://archives.nseindia.com/content/indices/ind_niftyfmcglist.csv",
}

var DefaultSectorFallback = map[string][]string{
	"AI":     {"TATAELXSI.NS", "PERSISTENT.NS", "OFSS.NS", "CYIENT.NS", "HAPPSTMNDS.NS", "KPITTECH.NS", "ZENTEC.NS"},
	"AUTO":   {"TATAMOTORS.NS", "M&M.NS", "MARUTI.NS", "HEROMOTOCO.NS", "EICHERMOT.NS", "BAJAJ-AUTO.NS", "ASHOKLEY.NS"},
	"BANK":   {"HDFCBANK.NS", "ICICIBANK.NS", "SBIN.NS", "KOTAKBANK.NS", "AXISBANK.NS"},
	"PHARMA": {"SUNPHARMA.NS", "CIPLA.NS", "DRREDDY.NS", "DIVISLAB.NS", "TORNTPHARM.NS"},
	"FMCG":   {"HUL.NS", "ITC.NS", "NESTLEIND.NS", "BRITANNIA.NS", "VBL.NS"},
}

// thematic tags that have no index of their own
var DefaultSectorRemap = map[string]string{
	"AI": "IT",
}

type universeServiceHandler struct {
	ConstituentRepository repository.ConstituentRepository
	Fallback              map[string][]string
	Remap                 map[string]string
	Metrics               *metrics.Recorder

	cache *TTLCache[string, []string]
}

func NewUniverseResolver(
	constituentRepository repository.ConstituentRepository,
	fallback map[string][]string,
	remap map[string]string,
	clock util.Clock,
	recorder *metrics.Recorder,
) UniverseResolver {
	if fallback == nil {
		fallback = DefaultSectorFallback
	}
	if remap == nil {
		remap = DefaultSectorRemap
	}
	return universeServiceHandler{
		ConstituentRepository: constituentRepository,
		Fallback:              fallback,
		Remap:                 remap,
		Metrics:               recorder,
		cache:                 NewTTLCache[string, []string](clock, 0, 0),
	}
}

func NormalizeSectorTag(tag string) string {
	return strings.ToUpper(strings.TrimSpace(tag))
}

func (h universeServiceHandler) Resolve(ctx context.Context, sectorTag string) []string {
	tag := NormalizeSectorTag(sectorTag)
	if cached, ok := h.cache.Get(tag); ok {
		return append([]string{}, cached...)
	}

	log := logger.FromContext(ctx).With("sector", tag)
	key := tag
	if mapped, ok := h.Remap[tag]; ok {
		key = mapped
	}

	instruments, err := h.ConstituentRepository.GetConstituents(ctx, key)
	if err == nil && len(instruments) == 0 {
		err = errEmptyConstituents
	}
	if err != nil {
		h.Metrics.RecordProviderError("constituents")
		instruments = h.fallbackFor(key, tag)
		log.Warnw("constituent fetch failed, using fallback list", "key", key, "error", err, "fallbackSize", len(instruments))
	}

	instruments = dedupe(instruments)
	h.cache.Set(tag, instruments)

	return append([]string{}, instruments...)
}

func (h universeServiceHandler) fallbackFor(key, tag string) []string {
	if list, ok := h.Fallback[key]; ok && len(list) > 0 {
		return list
	}
	return h.Fallback[tag]
}

var errEmptyConstituents = errors.New("provider returned no constituents")

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
