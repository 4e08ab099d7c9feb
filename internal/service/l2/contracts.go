package l2_service

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"sectorscan/internal/domain"
	"sectorscan/internal/util"

	"github.com/kaptinlin/jsonrepair"
)

const (
	ContractAnalyst   = "analyst"
	ContractRisk      = "risk"
	ContractPortfolio = "portfolio"
)

const analystInstruction = `You are a conservative swing-trading analyst covering Indian equities.
You receive one instrument's latest price, moving averages, RSI and recent headlines.
A moving average or RSI given as null was not computed; do not infer it.
Score the technical setup and news sentiment, then assign a tier:
STRONG_BUY, BUY, WATCHLIST, MONITOR or REJECT.
Respond with a single JSON object:
{"thesis": string, "conviction_score": number 0-100, "entry_price": number,
 "target_price": number, "stop_loss": number, "total_score": number 0-1,
 "tier": string, "tech_score": number 0-1, "sentiment_score": number 0-1}`

const riskInstruction = `You are the risk desk. You receive one trade pitch and look for what could go wrong:
stop placement, reward to risk, news or trend contradicting the thesis.
Respond with a single JSON object:
{"status": "APPROVED" | "REJECTED", "criticism": string, "adjusted_stop": number}
adjusted_stop is your recommended stop loss if the trade is taken.`

const portfolioInstruction = `You are the portfolio manager. Allocate the given capital across the approved trades.
Share counts are whole numbers. No single instrument may exceed the concentration cap
(a fraction of total capital) at its entry price. Unspent capital stays as cash.
Respond with a single JSON object:
{"allocations": [{"instrument": string, "shares": integer, "weight_percent": number, "rationale": string}],
 "remaining_cash": number}`

// ParseError describes why an oracle payload was rejected.
type ParseError struct {
	Contract string
	Field    string
	Reason   string
}

func (e ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid %s response: %s", e.Contract, e.Reason)
	}
	return fmt.Sprintf("invalid %s response: field %s: %s", e.Contract, e.Field, e.Reason)
}

// flexNumber accepts a JSON number, a numeric string, or null.
type flexNumber struct {
	Set   bool
	Value float64
}

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		return nil
	}
	s = strings.Trim(s, `"`)
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", string(b))
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("not a finite number: %s", string(b))
	}
	n.Set = true
	n.Value = v
	return nil
}

func (n flexNumber) ptr() *float64 {
	if !n.Set {
		return nil
	}
	return util.FloatPointer(n.Value)
}

// decodePayload extracts the JSON object from raw oracle text, repairing
// common damage (code fences, trailing commas, single quotes) if needed.
func decodePayload(contract, raw string, out interface{}) error {
	text := extractObject(raw)
	if text == "" {
		return ParseError{Contract: contract, Reason: "no JSON object in response"}
	}

	err := json.Unmarshal([]byte(text), out)
	if err == nil {
		return nil
	}
	repaired, repairErr := jsonrepair.JSONRepair(text)
	if repairErr != nil {
		return ParseError{Contract: contract, Reason: err.Error()}
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return ParseError{Contract: contract, Reason: err.Error()}
	}
	return nil
}

func extractObject(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	end := strings.LastIndex(s, "}")
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}

type analystInput struct {
	Instrument string   `json:"instrument"`
	Price      float64  `json:"price"`
	Sma50      *float64 `json:"sma50"`
	Sma200     *float64 `json:"sma200"`
	Rsi14      *float64 `json:"rsi14"`
	Headlines  []string `json:"headlines"`
}

func optional(f float64, computed bool) *float64 {
	if !computed {
		return nil
	}
	return util.FloatPointer(f)
}

func NewAnalystRequest(features domain.FeatureSnapshot, headlines []string) (string, string, error) {
	if headlines == nil {
		headlines = []string{}
	}
	bytes, err := json.Marshal(analystInput{
		Instrument: features.Instrument,
		Price:      features.Price,
		Sma50:      optional(features.Sma50, features.HasSma50()),
		Sma200:     optional(features.Sma200, features.HasSma200()),
		Rsi14:      optional(features.Rsi14, features.HasRsi14()),
		Headlines:  headlines,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal analyst input: %w", err)
	}
	return analystInstruction, string(bytes), nil
}

type analystOutput struct {
	Thesis          *string    `json:"thesis"`
	Reasoning       *string    `json:"reasoning"`
	ConvictionScore flexNumber `json:"conviction_score"`
	Confidence      flexNumber `json:"confidence"`
	EntryPrice      flexNumber `json:"entry_price"`
	TargetPrice     flexNumber `json:"target_price"`
	StopLoss        flexNumber `json:"stop_loss"`
	TotalScore      flexNumber `json:"total_score"`
	Tier            *string    `json:"tier"`
	TechScore       flexNumber `json:"tech_score"`
	SentimentScore  flexNumber `json:"sentiment_score"`
}

// ParseAnalysis validates an analyst payload. Missing entry, stop or target
// default to the latest price, 5% below it and 10% above it.
func ParseAnalysis(raw string, features domain.FeatureSnapshot) (*domain.AnalysisResult, error) {
	out := analystOutput{}
	if err := decodePayload(ContractAnalyst, raw, &out); err != nil {
		return nil, err
	}
	fail := func(field, reason string) (*domain.AnalysisResult, error) {
		return nil, ParseError{Contract: ContractAnalyst, Field: field, Reason: reason}
	}

	thesis := ""
	if out.Thesis != nil {
		thesis = strings.TrimSpace(*out.Thesis)
	}
	if thesis == "" && out.Reasoning != nil {
		thesis = strings.TrimSpace(*out.Reasoning)
	}
	if thesis == "" {
		return fail("thesis", "missing")
	}

	var conviction float64
	switch {
	case out.ConvictionScore.Set:
		conviction = out.ConvictionScore.Value
	case out.Confidence.Set && out.Confidence.Value >= 0 && out.Confidence.Value <= 1:
		conviction = out.Confidence.Value * 100
	default:
		return fail("conviction_score", "missing")
	}
	if conviction < 0 || conviction > 100 {
		return fail("conviction_score", fmt.Sprintf("%v outside [0,100]", conviction))
	}

	entry := features.Price
	if out.EntryPrice.Set {
		entry = out.EntryPrice.Value
	}
	stop := util.Round2(entry * 0.95)
	if out.StopLoss.Set {
		stop = out.StopLoss.Value
	}
	target := util.Round2(entry * 1.1)
	if out.TargetPrice.Set {
		target = out.TargetPrice.Value
	}
	prices := []struct {
		field string
		value float64
	}{
		{"entry_price", entry},
		{"stop_loss", stop},
		{"target_price", target},
	}
	for _, p := range prices {
		if p.value <= 0 {
			return fail(p.field, "must be positive")
		}
	}
	if stop >= entry {
		return fail("stop_loss", fmt.Sprintf("%v is not below entry %v", stop, entry))
	}

	result := &domain.AnalysisResult{
		Instrument:      features.Instrument,
		Price:           features.Price,
		Thesis:          thesis,
		ConvictionScore: conviction,
		EntryPrice:      entry,
		TargetPrice:     target,
		StopLoss:        stop,
		TechScore:       out.TechScore.ptr(),
		SentimentScore:  out.SentimentScore.ptr(),
	}

	if out.TotalScore.Set {
		if out.TotalScore.Value < 0 || out.TotalScore.Value > 1 {
			return fail("total_score", "outside [0,1]")
		}
		result.TotalScore = out.TotalScore.ptr()
	}
	if out.Tier != nil {
		// an unrecognized tier is dropped, not fatal
		if tier, ok := domain.ParseTier(strings.ToUpper(strings.TrimSpace(*out.Tier))); ok {
			result.Tier = &tier
		}
	}

	return result, nil
}

func NewRiskRequest(analysis domain.AnalysisResult) (string, string, error) {
	bytes, err := json.Marshal(analysis)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal risk input: %w", err)
	}
	return riskInstruction, string(bytes), nil
}

type riskOutput struct {
	Status       *string    `json:"status"`
	Criticism    *string    `json:"criticism"`
	AdjustedStop flexNumber `json:"adjusted_stop"`
}

type RiskVerdict struct {
	Status       domain.RiskStatus
	Criticism    string
	AdjustedStop *float64
}

func ParseRisk(raw string) (*RiskVerdict, error) {
	out := riskOutput{}
	if err := decodePayload(ContractRisk, raw, &out); err != nil {
		return nil, err
	}
	if out.Status == nil {
		return nil, ParseError{Contract: ContractRisk, Field: "status", Reason: "missing"}
	}

	verdict := &RiskVerdict{}
	switch domain.RiskStatus(strings.ToUpper(strings.TrimSpace(*out.Status))) {
	case domain.RiskStatus_Approved:
		verdict.Status = domain.RiskStatus_Approved
	case domain.RiskStatus_Rejected:
		verdict.Status = domain.RiskStatus_Rejected
	default:
		return nil, ParseError{Contract: ContractRisk, Field: "status", Reason: fmt.Sprintf("unknown status %q", *out.Status)}
	}
	if out.Criticism != nil {
		verdict.Criticism = strings.TrimSpace(*out.Criticism)
	}
	if out.AdjustedStop.Set && out.AdjustedStop.Value > 0 {
		verdict.AdjustedStop = out.AdjustedStop.ptr()
	}

	return verdict, nil
}

type portfolioCandidate struct {
	Instrument      string       `json:"instrument"`
	EntryPrice      float64      `json:"entryPrice"`
	StopLoss        float64      `json:"stopLoss"`
	TargetPrice     float64      `json:"targetPrice"`
	ConvictionScore float64      `json:"convictionScore"`
	Tier            *domain.Tier `json:"tier,omitempty"`
	Thesis          string       `json:"thesis"`
}

type portfolioInput struct {
	TotalCapital     float64              `json:"totalCapital"`
	ConcentrationCap float64              `json:"concentrationCap"`
	Candidates       []portfolioCandidate `json:"candidates"`
}

func NewPortfolioRequest(approved []domain.VettedResult, totalCapital, concentrationCap float64) (string, string, error) {
	candidates := make([]portfolioCandidate, 0, len(approved))
	for _, v := range approved {
		candidates = append(candidates, portfolioCandidate{
			Instrument:      v.Instrument,
			EntryPrice:      v.EntryPrice,
			StopLoss:        v.AdjustedStop,
			TargetPrice:     v.TargetPrice,
			ConvictionScore: v.ConvictionScore,
			Tier:            v.Tier,
			Thesis:          v.Thesis,
		})
	}
	bytes, err := json.Marshal(portfolioInput{
		TotalCapital:     totalCapital,
		ConcentrationCap: concentrationCap,
		Candidates:       candidates,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal portfolio input: %w", err)
	}
	return portfolioInstruction, string(bytes), nil
}

type portfolioLineOutput struct {
	Instrument    *string    `json:"instrument"`
	Shares        flexNumber `json:"shares"`
	WeightPercent flexNumber `json:"weight_percent"`
	Rationale     *string    `json:"rationale"`
}

type portfolioOutput struct {
	Allocations   []portfolioLineOutput `json:"allocations"`
	RemainingCash flexNumber            `json:"remaining_cash"`
}

const maxShareCount = float64(1 << 63)

type ParsedAllocation struct {
	Lines         []domain.AllocationLine
	RemainingCash *float64
}

// ParsePortfolio checks the shape of each line. Budget and concentration
// limits are checked by the aggregator, which knows the prices.
func ParsePortfolio(raw string) (*ParsedAllocation, error) {
	out := portfolioOutput{}
	if err := decodePayload(ContractPortfolio, raw, &out); err != nil {
		return nil, err
	}
	if out.Allocations == nil {
		return nil, ParseError{Contract: ContractPortfolio, Field: "allocations", Reason: "missing"}
	}

	lines := make([]domain.AllocationLine, 0, len(out.Allocations))
	for i, line := range out.Allocations {
		field := fmt.Sprintf("allocations[%d]", i)
		if line.Instrument == nil || strings.TrimSpace(*line.Instrument) == "" {
			return nil, ParseError{Contract: ContractPortfolio, Field: field + ".instrument", Reason: "missing"}
		}
		if !line.Shares.Set {
			return nil, ParseError{Contract: ContractPortfolio, Field: field + ".shares", Reason: "missing"}
		}
		if line.Shares.Value < 0 || line.Shares.Value != math.Trunc(line.Shares.Value) {
			return nil, ParseError{Contract: ContractPortfolio, Field: field + ".shares", Reason: fmt.Sprintf("%v is not a non-negative integer", line.Shares.Value)}
		}
		// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold
		if line.Shares.Value >= maxShareCount {
			return nil, ParseError{Contract: ContractPortfolio, Field: field + ".shares", Reason: fmt.Sprintf("%v is out of range", line.Shares.Value)}
		}
		rationale := ""
		if line.Rationale != nil {
			rationale = strings.TrimSpace(*line.Rationale)
		}
		lines = append(lines, domain.AllocationLine{
			Instrument:    strings.TrimSpace(*line.Instrument),
			ShareCount:    int64(line.Shares.Value),
			WeightPercent: line.WeightPercent.Value,
			Rationale:     rationale,
		})
	}

	return &ParsedAllocation{
		Lines:         lines,
		RemainingCash: out.RemainingCash.ptr(),
	}, nil
}
