package l1_service

import (
	"context"
	"errors"
	"testing"
	"time"

	"sectorscan/internal/domain"
	mock_repository "sectorscan/internal/repository/mocks"
	"sectorscan/internal/util"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	officialSource = domain.NewsSource{Name: "official", QueryTemplate: "o?q={query}", AuthenticityWeight: 1}
	wireSource     = domain.NewsSource{Name: "wire", QueryTemplate: "w?q={query}", AuthenticityWeight: 0.8}
	genericSource  = domain.NewsSource{Name: "generic", QueryTemplate: "g?q={query}", AuthenticityWeight: 0.5}
	fallbackSource = domain.NewsSource{Name: "generic", QueryTemplate: "f?q={query}", AuthenticityWeight: 0.5}
)

func newTestNewsAggregator(repo *mock_repository.MockNewsRepository, clock util.Clock) NewsAggregator {
	return NewNewsAggregator(repo, NewsAggregatorConfig{
		// deliberately unordered
		Sources:        []domain.NewsSource{genericSource, officialSource, wireSource},
		Fallback:       &fallbackSource,
		TTL:            time.Hour,
		PerSourceLimit: 10,
		FallbackLimit:  5,
	}, clock, nil)
}

func TestNewsAggregator_Fetch(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	t.Run("dedupes by title and orders by authenticity", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		newsRepository := mock_repository.NewMockNewsRepository(ctrl)

		gomock.InOrder(
			newsRepository.EXPECT().
				Search(gomock.Any(), officialSource, "TCS", 10).
				Return([]domain.NewsItem{{Title: "Board meeting", Link: "o1"}}, nil),
			newsRepository.EXPECT().
				Search(gomock.Any(), wireSource, "TCS", 10).
				Return([]domain.NewsItem{{Title: "Q1 results beat", Link: "w1"}, {Title: "Board meeting", Link: "w2"}}, nil),
			newsRepository.EXPECT().
				Search(gomock.Any(), genericSource, "TCS", 10).
				Return([]domain.NewsItem{{Title: "Q1 results beat", Link: "g1"}, {Title: "Analysts upbeat", Link: "g2"}}, nil),
		)

		h := newTestNewsAggregator(newsRepository, util.NewManualClock(start))
		got := h.Fetch(ctx, "TCS.NS")

		expected := []domain.NewsItem{
			{Title: "Board meeting", Link: "o1", SourceName: "official", AuthenticityWeight: 1},
			{Title: "Q1 results beat", Link: "w1", SourceName: "wire", AuthenticityWeight: 0.8},
			{Title: "Analysts upbeat", Link: "g2", SourceName: "generic", AuthenticityWeight: 0.5},
		}
		require.Equal(t, "", cmp.Diff(expected, got))
	})

	t.Run("cache hit skips network until ttl", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		newsRepository := mock_repository.NewMockNewsRepository(ctrl)
		clock := util.NewManualClock(start)

		newsRepository.EXPECT().
			Search(gomock.Any(), gomock.Any(), "INFY", 10).
			Return([]domain.NewsItem{{Title: "x"}}, nil).
			Times(6)

		h := newTestNewsAggregator(newsRepository, clock)
		first := h.Fetch(ctx, "INFY.NS")
		clock.Advance(30 * time.Minute)
		require.Equal(t, "", cmp.Diff(first, h.Fetch(ctx, "INFY.NS")))

		clock.Advance(30 * time.Minute)
		h.Fetch(ctx, "INFY.NS")
	})

	t.Run("source failure is skipped and not cached", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		newsRepository := mock_repository.NewMockNewsRepository(ctrl)

		newsRepository.EXPECT().
			Search(gomock.Any(), officialSource, "SBIN", 10).
			Return(nil, errors.New("timeout")).
			Times(2)
		newsRepository.EXPECT().
			Search(gomock.Any(), wireSource, "SBIN", 10).
			Return([]domain.NewsItem{{Title: "w"}}, nil).
			Times(2)
		newsRepository.EXPECT().
			Search(gomock.Any(), genericSource, "SBIN", 10).
			Return(nil, nil).
			Times(2)

		h := newTestNewsAggregator(newsRepository, util.NewManualClock(start))
		got := h.Fetch(ctx, "SBIN.NS")
		require.Len(t, got, 1)
		require.Equal(t, "wire", got[0].SourceName)

		h.Fetch(ctx, "SBIN.NS")
	})

	t.Run("every source failing yields empty", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		newsRepository := mock_repository.NewMockNewsRepository(ctrl)

		newsRepository.EXPECT().
			Search(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, errors.New("offline")).
			Times(3)

		h := newTestNewsAggregator(newsRepository, util.NewManualClock(start))
		require.Empty(t, h.Fetch(ctx, "ITC.NS"))
	})

	t.Run("empty result runs fallback query", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		newsRepository := mock_repository.NewMockNewsRepository(ctrl)

		newsRepository.EXPECT().
			Search(gomock.Any(), gomock.Not(fallbackSource), "VBL", 10).
			Return([]domain.NewsItem{}, nil).
			Times(3)
		newsRepository.EXPECT().
			Search(gomock.Any(), fallbackSource, "VBL", 5).
			Return([]domain.NewsItem{{Title: "VBL expands"}}, nil)

		h := newTestNewsAggregator(newsRepository, util.NewManualClock(start))
		got := h.Fetch(ctx, "VBL.NS")
		require.Len(t, got, 1)
		require.Equal(t, 0.5, got[0].AuthenticityWeight)
	})
}

func TestTopHeadlines(t *testing.T) {
	items := []domain.NewsItem{{Title: "a"}, {Title: "b"}, {Title: "c"}}
	require.Equal(t, []string{"a", "b"}, TopHeadlines(items, 2))
	require.Equal(t, []string{"a", "b", "c"}, TopHeadlines(items, 10))
}
