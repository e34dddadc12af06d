package calculator

import "math"

// 全层气压插值规则
type FullLevelRule int

const (
	// ArithmeticMean averages the two bounding half-level pressures.
	ArithmeticMean FullLevelRule = iota
	// LogPressure is exact for the log-pressure vertical finite-element
	// discretization: ln p = (p_l ln p_l - p_u ln p_u)/(p_l - p_u) - 1.
	LogPressure
)

// identric mean switches to its series below this half relative spread
const seriesThreshold = 1e-2

func RuleOf(arithmetic bool) FullLevelRule {
	if arithmetic {
		return ArithmeticMean
	}
	return LogPressure
}

func (r FullLevelRule) String() string {
	if r == ArithmeticMean {
		return "arithmetic-mean"
	}
	return "log-pressure"
}

// FullPressure returns the full-level pressure of the layer bounded by the
// half-level pressures upper <= lower.
func (r FullLevelRule) FullPressure(upper, lower float64) float64 {
	if r == ArithmeticMean {
		return 0.5 * (upper + lower)
	}
	return identricMean(upper, lower)
}

func identricMean(a, b float64) float64 {
	switch {
	case a == b:
		return a
	case a <= 0:
		return b / math.E
	}
	m := 0.5 * (a + b)
	u := 0.5 * (b - a) / m
	if math.Abs(u) < seriesThreshold {
		u2 := u * u
		return m * math.Exp(-u2*(1.0/6+u2*(1.0/20+u2/42)))
	}
	return math.Exp((b*math.Log(b)-a*math.Log(a))/(b-a) - 1)
}
