package estimate

import (
	"fmt"
	"math"
)

// amountTolerance is the accepted relative deviation between a reported
// amount and person_days x unit cost.
const amountTolerance = 0.10

// ValidateAmount checks that an amount is within tolerance of the product of
// person-days and the daily unit cost.
func ValidateAmount(amount, personDays, unitCost float64) error {
	expected := personDays * unitCost
	if expected <= 0 {
		return nil
	}

	deviation := math.Abs(amount-expected) / expected
	if deviation > amountTolerance {
		return fmt.Errorf("amount %.2f deviates %.1f%% from expected %.2f (tolerance %.0f%%)",
			amount, deviation*100, expected, amountTolerance*100)
	}
	return nil
}
