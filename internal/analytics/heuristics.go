package analytics

// TrendWindow is the size of the recent and older groups compared by Trend.
const TrendWindow = 3

// trendDelta is the mean difference that counts as a real change.
const trendDelta = 10.0

// Trend compares the mean of the most recent three scores against the
// next three. scores are most recent first.
func Trend(scores []float64) string {
	if len(scores) < TrendWindow {
		return TrendStable
	}
	recent := scores[:TrendWindow]
	older := scores[TrendWindow:min(len(scores), 2*TrendWindow)]
	if len(older) == 0 {
		return TrendStable
	}

	diff := mean(recent) - mean(older)
	switch {
	case diff >= trendDelta:
		return TrendImproving
	case diff <= -trendDelta:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// WeaknessFor grades a skill. prior is the number of completions older
// than the recent trend window; a low average with little earlier history
// is treated as critical.
func WeaknessFor(avg float64, trend string, prior int) string {
	switch {
	case avg < 50 && (trend == TrendDeclining || prior < TrendWindow):
		return WeaknessCritical
	case avg < 60, avg < 70 && trend == TrendDeclining:
		return WeaknessModerate
	case avg < 75:
		return WeaknessMinor
	default:
		return WeaknessNone
	}
}

// OverallLevel maps the mean skill average to a proficiency tier.
func OverallLevel(avg float64) string {
	switch {
	case avg >= 75:
		return LevelAdvanced
	case avg >= 50:
		return LevelIntermediate
	default:
		return LevelBeginner
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
