package calls

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// billingFor computes the charge for a connected interval.
//
// Duration is the answer-to-end wall time rounded to the nearest whole
// second. Billing is per started minute: any partial minute counts as a
// full one, so 61s bills 2 minutes. A zero-second call bills nothing.
func billingFor(startedAt, endedAt time.Time, rate decimal.Decimal) (durationSeconds, billedMinutes int, total decimal.Decimal) {
	durationSeconds = int(math.Round(endedAt.Sub(startedAt).Seconds()))
	if durationSeconds < 0 {
		durationSeconds = 0
	}
	billedMinutes = (durationSeconds + 59) / 60
	total = rate.Mul(decimal.NewFromInt(int64(billedMinutes)))
	return durationSeconds, billedMinutes, total
}
