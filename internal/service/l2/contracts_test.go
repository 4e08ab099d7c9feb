package l2_service

import (
	"encoding/json"
	"errors"
	"testing"

	"sectorscan/internal/domain"
	"sectorscan/internal/util"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var testFeatures = domain.FeatureSnapshot{
	Instrument: "TCS.NS",
	Price:      100,
	Sma50:      95.5,
	Rsi14:      61.2,
}

func TestParseAnalysis(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		raw := "```json\n" + `{"thesis": "breakout above sma50", "conviction_score": 72, "entry_price": 101,
			"target_price": 115, "stop_loss": 96, "total_score": 0.7, "tier": "strong_buy",
			"tech_score": 0.8, "sentiment_score": "0.4"}` + "\n```"

		got, err := ParseAnalysis(raw, testFeatures)
		require.NoError(t, err)

		tier := domain.Tier_StrongBuy
		expected := &domain.AnalysisResult{
			Instrument:      "TCS.NS",
			Price:           100,
			Thesis:          "breakout above sma50",
			ConvictionScore: 72,
			EntryPrice:      101,
			TargetPrice:     115,
			StopLoss:        96,
			TotalScore:      util.FloatPointer(0.7),
			Tier:            &tier,
			TechScore:       util.FloatPointer(0.8),
			SentimentScore:  util.FloatPointer(0.4),
		}
		require.Equal(t, "", cmp.Diff(expected, got))
	})

	t.Run("defaults prices and maps confidence and skip", func(t *testing.T) {
		got, err := ParseAnalysis(`{"reasoning": "weak", "confidence": 0.35, "tier": "SKIP"}`, testFeatures)
		require.NoError(t, err)
		require.Equal(t, 35.0, got.ConvictionScore)
		require.Equal(t, 100.0, got.EntryPrice)
		require.Equal(t, 95.0, got.StopLoss)
		require.Equal(t, 110.0, got.TargetPrice)
		require.Equal(t, domain.Tier_Reject, *got.Tier)
	})

	t.Run("repairs damaged json", func(t *testing.T) {
		got, err := ParseAnalysis(`Here you go: {'thesis': 'ok', 'conviction_score': 50,}`, testFeatures)
		require.NoError(t, err)
		require.Equal(t, "ok", got.Thesis)
		require.Equal(t, 50.0, got.ConvictionScore)
	})

	t.Run("unknown tier is dropped", func(t *testing.T) {
		got, err := ParseAnalysis(`{"thesis": "x", "conviction_score": 10, "tier": "YOLO"}`, testFeatures)
		require.NoError(t, err)
		require.Nil(t, got.Tier)
	})

	errorCases := map[string]string{
		"no json":             "I cannot help with that",
		"missing thesis":      `{"conviction_score": 50}`,
		"missing conviction":  `{"thesis": "x"}`,
		"conviction too high": `{"thesis": "x", "conviction_score": 150}`,
		"negative stop":       `{"thesis": "x", "conviction_score": 50, "stop_loss": -1}`,
		"stop above entry":    `{"thesis": "x", "conviction_score": 50, "entry_price": 100, "stop_loss": 150}`,
		"stop at entry":       `{"thesis": "x", "conviction_score": 50, "entry_price": 100, "stop_loss": 100}`,
		"bad total score":     `{"thesis": "x", "conviction_score": 50, "total_score": 3}`,
		"non numeric":         `{"thesis": "x", "conviction_score": "high"}`,
	}
	for name, raw := range errorCases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseAnalysis(raw, testFeatures)
			require.Error(t, err)
			var parseErr ParseError
			require.True(t, errors.As(err, &parseErr))
			require.Equal(t, ContractAnalyst, parseErr.Contract)
		})
	}
}

func TestParseRisk(t *testing.T) {
	t.Run("approved with adjusted stop", func(t *testing.T) {
		got, err := ParseRisk(`{"status": "approved", "criticism": "tight stop", "adjusted_stop": 93.5}`)
		require.NoError(t, err)
		require.Equal(t, domain.RiskStatus_Approved, got.Status)
		require.Equal(t, "tight stop", got.Criticism)
		require.Equal(t, 93.5, *got.AdjustedStop)
	})

	t.Run("rejected without stop", func(t *testing.T) {
		got, err := ParseRisk(`{"status": "REJECTED", "criticism": "against trend"}`)
		require.NoError(t, err)
		require.Equal(t, domain.RiskStatus_Rejected, got.Status)
		require.Nil(t, got.AdjustedStop)
	})

	t.Run("missing status", func(t *testing.T) {
		_, err := ParseRisk(`{"criticism": "?"}`)
		require.Error(t, err)
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := ParseRisk(`{"status": "MAYBE"}`)
		require.Error(t, err)
	})
}

func TestParsePortfolio(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		got, err := ParsePortfolio(`{"allocations": [{"instrument": "A", "shares": 10, "weight_percent": 10, "rationale": "best"}], "remaining_cash": 9000}`)
		require.NoError(t, err)
		require.Equal(t, "", cmp.Diff([]domain.AllocationLine{{Instrument: "A", ShareCount: 10, WeightPercent: 10, Rationale: "best"}}, got.Lines))
		require.Equal(t, 9000.0, *got.RemainingCash)
	})

	t.Run("fractional shares", func(t *testing.T) {
		_, err := ParsePortfolio(`{"allocations": [{"instrument": "A", "shares": 2.5}]}`)
		require.Error(t, err)
	})

	t.Run("negative shares", func(t *testing.T) {
		_, err := ParsePortfolio(`{"allocations": [{"instrument": "A", "shares": -1}]}`)
		require.Error(t, err)
	})

	t.Run("missing instrument", func(t *testing.T) {
		_, err := ParsePortfolio(`{"allocations": [{"shares": 1}]}`)
		require.Error(t, err)
	})

	t.Run("missing allocations", func(t *testing.T) {
		_, err := ParsePortfolio(`{"remaining_cash": 1}`)
		require.Error(t, err)
	})
}

func TestNewAnalystRequest(t *testing.T) {
	_, input, err := NewAnalystRequest(testFeatures, nil)
	require.NoError(t, err)

	decoded := map[string]interface{}{}
	require.NoError(t, json.Unmarshal([]byte(input), &decoded))
	require.Equal(t, 95.5, decoded["sma50"])
	require.Nil(t, decoded["sma200"], "uncomputed averages are sent as null")
	require.Equal(t, []interface{}{}, decoded["headlines"])
}

func TestNewAnalystRequest_FallingRsi(t *testing.T) {
	falling := domain.FeatureSnapshot{Instrument: "TCS.NS", Price: 80, Rsi14: 0, Closes: 60}
	_, input, err := NewAnalystRequest(falling, []string{"weak results"})
	require.NoError(t, err)

	decoded := map[string]interface{}{}
	require.NoError(t, json.Unmarshal([]byte(input), &decoded))
	require.Equal(t, 0.0, decoded["rsi14"])
	require.Nil(t, decoded["sma50"])
}
