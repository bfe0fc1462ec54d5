// Package scoring computes the points a player earns for one answer.
package scoring

import (
	"github.com/shopspring/decimal"
)

// SpeedBonus is the bonus awarded for answering the instant a question opens.
const SpeedBonus = 500

var (
	half  = decimal.NewFromFloat(0.5)
	bonus = decimal.NewFromInt(SpeedBonus)
)

// Points returns the points earned for one answer. A correct answer is worth
// half of basePoints plus up to SpeedBonus scaled by the share of time left.
// A nil timeRemaining means the player's timer never started and earns no
// bonus.
func Points(isCorrect bool, timeRemaining *int, timeLimit, basePoints int) int {
	if !isCorrect {
		return 0
	}

	base := decimal.NewFromInt(int64(max(basePoints, 0))).Mul(half).Floor()

	return int(base.Add(speed(timeRemaining, timeLimit)).IntPart())
}

// MaxPoints is the most a single answer to a question can be worth.
func MaxPoints(basePoints int) int {
	rem := 1
	return Points(true, &rem, 1, basePoints)
}

func speed(timeRemaining *int, timeLimit int) decimal.Decimal {
	if timeRemaining == nil || timeLimit <= 0 {
		return decimal.Zero
	}

	rem := min(max(*timeRemaining, 0), timeLimit)

	return decimal.NewFromInt(int64(rem)).
		Div(decimal.NewFromInt(int64(timeLimit))).
		Mul(bonus).
		Floor()
}
