package repository

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"sectorscan/internal/domain"

	"github.com/stretchr/testify/require"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>news</title>
<item><title>Tata Motors posts record EV sales</title><link>https://example.com/1</link>
<pubDate>Mon, 03 Jun 2024 10:00:00 GMT</pubDate><description>&lt;a href="x"&gt;Tata Motors&lt;/a&gt; &lt;b&gt;posts&lt;/b&gt; sales</description></item>
<item><title>  </title><link>https://example.com/blank</link></item>
<item><title>Second headline</title><link>https://example.com/2</link></item>
<item><title>Third headline</title><link>https://example.com/3</link></item>
</channel></rss>`

func TestNewsRepository_Search(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(testFeed))
	}))
	defer srv.Close()

	source := domain.NewsSource{
		Name:               "aggregator",
		QueryTemplate:      srv.URL + "/rss?q={query}+stock",
		AuthenticityWeight: 0.5,
	}

	t.Run("happy path", func(t *testing.T) {
		h := NewNewsRepository(srv.Client())
		items, err := h.Search(context.Background(), source, "M&M", 2)
		require.NoError(t, err)
		require.Equal(t, "M&M stock", gotQuery)

		require.Len(t, items, 2)
		require.Equal(t, "Tata Motors posts record EV sales", items[0].Title)
		require.Equal(t, "Tata Motors posts sales", items[0].Summary)
		require.Equal(t, "aggregator", items[0].SourceName)
		require.NotNil(t, items[0].PublishedAt)
		require.Equal(t, "Second headline", items[1].Title)
	})

	t.Run("unreachable source", func(t *testing.T) {
		h := NewNewsRepository(srv.Client())
		_, err := h.Search(context.Background(), domain.NewsSource{
			Name:          "down",
			QueryTemplate: "http://127.0.0.1:1/rss?q={query}",
		}, "TCS", 10)
		require.Error(t, err)
	})
}
