package dict

import "math"

// --------------------------------------------------------------------------
// Weight Dynamics
// --------------------------------------------------------------------------

// FormulaD combines a base weight d at time t with another weight da measured
// at time ta: the contribution of da decays exponentially with the elapsed
// clock distance t - ta.
func FormulaD(d, t, da, ta float64) float64 {
	return d + da*math.Exp(ta-t)
}

// Rescale re-expresses a weight measured at clock value from as if it had
// been measured at clock value to. It is the identity when from == to and
// strictly decreasing in to - from.
//
// Callers apply it only to records whose own stamp is strictly older than
// the comparison baseline.
func Rescale(dee float64, from, to uint64) float64 {
	return FormulaD(0, float64(to), dee, float64(from))
}
