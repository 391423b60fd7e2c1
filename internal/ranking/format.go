package ranking

import (
	"math"
	"strconv"
	"time"
)

// Placeholder is rendered for values that cannot be formatted.
const Placeholder = "-"

const timestampLayout = "2006-01-02 15:04"

// 9999-12-31T23:59:59Z
const maxEpochSeconds = 253402300799

// FormatTimestamp renders epoch seconds as "YYYY-MM-DD HH:MM" in the
// aggregator's location.
func (a Aggregator) FormatTimestamp(epochSeconds float64) string {
	if math.IsNaN(epochSeconds) || math.Abs(epochSeconds) > maxEpochSeconds {
		return Placeholder
	}
	sec, frac := math.Modf(epochSeconds)
	return time.Unix(int64(sec), int64(frac*1e9)).In(a.location()).Format(timestampLayout)
}

// FormatEfficiency renders a [0,1] ratio as a percentage with one decimal,
// e.g. 0.805 -> "80.5%".
func FormatEfficiency(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Placeholder
	}
	percent := math.Round(clamp01(v)*1000) / 10
	return strconv.FormatFloat(percent, 'f', -1, 64) + "%"
}

func formatPoints(p float64) string {
	return strconv.FormatFloat(math.Round(p*100)/100, 'f', -1, 64)
}
