package util

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"sectorscan/internal/domain"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Oracle    OracleConfig    `yaml:"oracle"`
	Research  ResearchConfig  `yaml:"research"`
	News      NewsConfig      `yaml:"news"`
	Market    MarketConfig    `yaml:"market"`
	Portfolio PortfolioConfig `yaml:"portfolio"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Api       ApiConfig       `yaml:"api"`

	Secrets Secrets `yaml:"-"`
}

type OracleConfig struct {
	Model      string        `yaml:"model" default:"gpt-4" validate:"required"`
	Timeout    time.Duration `yaml:"timeout" default:"60s" validate:"gt=0"`
	MaxRetries int           `yaml:"maxRetries" default:"1" validate:"gte=0,lte=5"`
}

type ResearchConfig struct {
	Workers           int           `yaml:"workers" default:"20" validate:"gte=1,lte=256"`
	AnalysisTTL       time.Duration `yaml:"analysisTTL" default:"2h" validate:"gt=0"`
	CacheCapacity     int           `yaml:"cacheCapacity" default:"1000" validate:"gte=1"`
	InstrumentTimeout time.Duration `yaml:"instrumentTimeout" default:"90s" validate:"gt=0"`
	BatchTimeout      time.Duration `yaml:"batchTimeout" default:"15m" validate:"gt=0"`
	TopHeadlines      int           `yaml:"topHeadlines" default:"5" validate:"gte=0"`
	// Screen is an optional boolean expression over price, sma50, sma200
	// and rsi14; instruments for which it is false skip research.
	Screen string `yaml:"screen"`
}

type NewsConfig struct {
	TTL            time.Duration       `yaml:"ttl" default:"1h" validate:"gt=0"`
	PerSourceLimit int                 `yaml:"perSourceLimit" default:"10" validate:"gte=1"`
	FallbackLimit  int                 `yaml:"fallbackLimit" default:"5" validate:"gte=1"`
	Sources        []domain.NewsSource `yaml:"sources" validate:"dive"`
	// Fallback is queried with the bare symbol when every source answered
	// but none had headlines.
	Fallback *domain.NewsSource `yaml:"fallback"`
}

type MarketConfig struct {
	Provider   string              `yaml:"provider" default:"yahoo" validate:"oneof=yahoo alpaca"`
	Period     time.Duration       `yaml:"period" default:"9600h" validate:"gt=0"`
	MinHistory int                 `yaml:"minHistory" default:"50" validate:"gte=1"`
	SectorUrls map[string]string   `yaml:"sectorUrls"`
	Fallback   map[string][]string `yaml:"fallback"`
	Remap      map[string]string   `yaml:"remap"`
	Suffix     string              `yaml:"suffix" default:".NS"`
}

type PortfolioConfig struct {
	Capital          float64 `yaml:"capital" default:"10000" validate:"gt=0"`
	ConcentrationCap float64 `yaml:"concentrationCap" default:"0.4" validate:"gt=0,lte=1"`
	RiskPerTradePct  float64 `yaml:"riskPerTradePct" default:"1" validate:"gt=0,lte=100"`
}

type LedgerConfig struct {
	Backend string `yaml:"backend" default:"file" validate:"oneof=file postgres"`
	Path    string `yaml:"path" default:"paper_trades.json" validate:"required"`
}

type ApiConfig struct {
	Port int `yaml:"port" default:"3009" validate:"gte=1,lte=65535"`
}

// Secrets are read from the environment (optionally populated from .env),
// never from the YAML file.
type Secrets struct {
	OpenAIApiKey    string
	AlpacaApiKey    string
	AlpacaApiSecret string
	AlpacaEndpoint  string
	LedgerDSN       string
}

var validate = validator.New()

// ConfigPath picks the config file for the current ALPHA_ENV unless
// SECTORSCAN_CONFIG names one explicitly.
func ConfigPath() string {
	if p := os.Getenv("SECTORSCAN_CONFIG"); p != "" {
		return p
	}
	switch strings.ToLower(os.Getenv("ALPHA_ENV")) {
	case "dev":
		return "config-dev.yaml"
	case "test":
		return "config-test.yaml"
	}
	return "config.yaml"
}

// LoadConfig loads .env, then the YAML config at path. A missing config file
// is not an error; defaults apply.
func LoadConfig(path string) (*Config, error) {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Config{}
	bytes, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err == nil {
		if err := yaml.Unmarshal(bytes, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	cfg.Secrets = secretsFromEnv()

	return &cfg, nil
}

// ParseConfig builds a config from YAML bytes without touching the
// environment.
func ParseConfig(bytes []byte) (*Config, error) {
	cfg := Config{}
	if err := yaml.Unmarshal(bytes, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) finalize() error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("failed to set config defaults: %w", err)
	}
	if len(c.News.Sources) == 0 {
		c.News.Sources = DefaultNewsSources()
	}
	if c.News.Fallback == nil {
		c.News.Fallback = DefaultNewsFallback()
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func secretsFromEnv() Secrets {
	return Secrets{
		OpenAIApiKey:    os.Getenv("OPENAI_API_KEY"),
		AlpacaApiKey:    os.Getenv("APCA_API_KEY_ID"),
		AlpacaApiSecret: os.Getenv("APCA_API_SECRET_KEY"),
		AlpacaEndpoint:  os.Getenv("APCA_API_DATA_URL"),
		LedgerDSN:       os.Getenv("LEDGER_DSN"),
	}
}

func DefaultNewsFallback() *domain.NewsSource {
	return &domain.NewsSource{
		Name:               "aggregator",
		QueryTemplate:      "https://news.google.com/rss/search?hl=en-IN&gl=IN&ceid=IN:en&q={query}",
		AuthenticityWeight: 0.5,
	}
}

// DefaultNewsSources queries Google News three ways, from most to least
// authoritative. {query} is replaced with the bare symbol.
func DefaultNewsSources() []domain.NewsSource {
	base := "https://news.google.com/rss/search?hl=en-IN&gl=IN&ceid=IN:en&q="
	return []domain.NewsSource{
		{
			Name:               "exchange-filings",
			QueryTemplate:      base + "{query}+site:nseindia.com+OR+site:bseindia.com",
			AuthenticityWeight: 1.0,
		},
		{
			Name:               "wire",
			QueryTemplate:      base + "{query}+stock+site:reuters.com+OR+site:ptinews.com",
			AuthenticityWeight: 0.8,
		},
		{
			Name:               "aggregator",
			QueryTemplate:      base + "{query}+stock+news+India",
			AuthenticityWeight: 0.5,
		},
	}
}
