package domain

import "time"

type NewsItem struct {
	Title              string     `json:"title"`
	Link               string     `json:"link"`
	Summary            string     `json:"summary,omitempty"`
	PublishedAt        *time.Time `json:"publishedAt,omitempty"`
	SourceName         string     `json:"sourceName"`
	AuthenticityWeight float64    `json:"authenticityWeight"`
}

// NewsSource describes one configured headline source and how much its
// headlines are trusted relative to the others.
type NewsSource struct {
	Name               string  `yaml:"name" json:"name"`
	QueryTemplate      string  `yaml:"queryTemplate" json:"queryTemplate"`
	AuthenticityWeight float64 `yaml:"authenticityWeight" json:"authenticityWeight" validate:"gte=0,lte=1"`
}
