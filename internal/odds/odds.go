package odds

import "math"

// StandardJuice is the decimal price assigned to both sides of spread and
// totals markets when the source only carries the line (American -110).
const StandardJuice = 1.909

// ToDecimal converts American odds to decimal odds
// American +150 → Decimal 2.50
// American -150 → Decimal 1.67
//
// Zero is not a valid American price; callers must filter it out.
func ToDecimal(american int) float64 {
	if american > 0 {
		return (float64(american) / 100.0) + 1.0
	}

	return (100.0 / math.Abs(float64(american))) + 1.0
}
