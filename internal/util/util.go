package util

import (
	"math"
	"strings"
	"time"
)

func NewDate(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func FloatPointer(f float64) *float64 {
	return &f
}

func TimePointer(t time.Time) *time.Time {
	return &t
}

// Round2 rounds half away from zero to two decimals.
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// BareSymbol drops an exchange suffix such as ".NS".
func BareSymbol(instrument string) string {
	if i := strings.LastIndex(instrument, "."); i > 0 {
		return instrument[:i]
	}
	return instrument
}
