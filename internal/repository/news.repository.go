package repository

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"sectorscan/internal/domain"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

type NewsRepository interface {
	// Search returns at most limit headlines for query from one source, in
	// the source's own order.
	Search(ctx context.Context, source domain.NewsSource, query string, limit int) ([]domain.NewsItem, error)
}

type newsRepositoryHandler struct {
	Parser *gofeed.Parser
}

func NewNewsRepository(client *http.Client) NewsRepository {
	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = "sectorscan/1.0"
	return newsRepositoryHandler{
		Parser: parser,
	}
}

func (h newsRepositoryHandler) Search(ctx context.Context, source domain.NewsSource, query string, limit int) ([]domain.NewsItem, error) {
	feedUrl := strings.ReplaceAll(source.QueryTemplate, "{query}", url.QueryEscape(query))

	feed, err := h.Parser.ParseURLWithContext(feedUrl, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s feed for %s: %w", source.Name, query, err)
	}

	out := []domain.NewsItem{}
	for _, item := range feed.Items {
		if len(out) >= limit {
			break
		}
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}
		out = append(out, domain.NewsItem{
			Title:       title,
			Link:        item.Link,
			Summary:     stripHtml(item.Description),
			PublishedAt: item.PublishedParsed,
			SourceName:  source.Name,
		})
	}

	return out, nil
}

// stripHtml flattens an RSS description into plain text.
func stripHtml(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
