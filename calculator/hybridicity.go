package calculator

import "math"

// Hybridicity is the shape of B across the hybrid band, x^(-alpha) for the
// normalised position x in [0, 1] (0 at the pure-pressure side). alpha <= -1;
// the more negative, the closer to the surface the transition to sigma.
func Hybridicity(x, alpha float64) float64 {
	switch {
	case x <= 0:
		return 0
	case x >= 1:
		return 1
	}
	return math.Pow(x, -alpha)
}
