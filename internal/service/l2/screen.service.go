package l2_service

import (
	"fmt"
	"math"

	"sectorscan/internal/domain"

	"github.com/maja42/goval"
)

// FeatureScreen is a boolean expression over a FeatureSnapshot, e.g.
// "defined(sma50) && price > sma50 && rsi14 < 70". An empty expression
// passes everything.
type FeatureScreen struct {
	expression string
}

func NewFeatureScreen(expression string) (*FeatureScreen, error) {
	screen := &FeatureScreen{expression: expression}
	if expression == "" {
		return screen, nil
	}
	// dry run so typos fail at startup instead of mid-scan
	if _, err := screen.Pass(domain.FeatureSnapshot{Price: 1, Sma50: 1, Sma200: 1, Rsi14: 50}); err != nil {
		return nil, fmt.Errorf("invalid screen expression: %w", err)
	}
	return screen, nil
}

func (s *FeatureScreen) Pass(features domain.FeatureSnapshot) (bool, error) {
	if s == nil || s.expression == "" {
		return true, nil
	}

	eval := goval.NewEvaluator()
	variables := map[string]interface{}{
		"price":  features.Price,
		"sma50":  indicator(features.Sma50, features.HasSma50()),
		"sma200": indicator(features.Sma200, features.HasSma200()),
		"rsi14":  indicator(features.Rsi14, features.HasRsi14()),
	}
	result, err := eval.Evaluate(s.expression, variables, screenFunctions())
	if err != nil {
		return false, fmt.Errorf("failed to evaluate screen for %s: %w", features.Instrument, err)
	}

	pass, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("screen expression returned %T, not bool", result)
	}
	return pass, nil
}

// indicator is NaN when not computed, so any comparison against it is false.
func indicator(v float64, computed bool) float64 {
	if !computed {
		return math.NaN()
	}
	return v
}

func screenFunctions() map[string]goval.ExpressionFunction {
	return map[string]goval.ExpressionFunction{
		// defined reports whether an indicator was computed
		"defined": func(args ...interface{}) (interface{}, error) {
			v, err := floatArg("defined", args, 0, 1)
			if err != nil {
				return nil, err
			}
			return !math.IsNaN(v), nil
		},
		"pctAbove": func(args ...interface{}) (interface{}, error) {
			a, err := floatArg("pctAbove", args, 0, 2)
			if err != nil {
				return nil, err
			}
			b, err := floatArg("pctAbove", args, 1, 2)
			if err != nil {
				return nil, err
			}
			if b == 0 {
				return 0.0, nil
			}
			return (a/b - 1) * 100, nil
		},
		"abs": func(args ...interface{}) (interface{}, error) {
			v, err := floatArg("abs", args, 0, 1)
			if err != nil {
				return nil, err
			}
			return math.Abs(v), nil
		},
	}
}

func floatArg(fn string, args []interface{}, i, want int) (float64, error) {
	if len(args) != want {
		return 0, fmt.Errorf("%s expects %d args, got %d", fn, want, len(args))
	}
	switch v := args[i].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	}
	return 0, fmt.Errorf("%s arg %d is %T, not a number", fn, i, args[i])
}
