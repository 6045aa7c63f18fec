package billing

import (
	"fmt"
	"math"
)

// splitFee returns the platform fee (rounded half up) and the creator's net
// for a gross amount. bps is the fee rate in basis points.
func splitFee(grossCents, bps int64) (fee, net int64) {
	fee = (grossCents*bps + 5000) / 10000
	return fee, grossCents - fee
}

func usdToCents(usd float64) int64 {
	return int64(math.Round(usd * 100))
}

func centsToUSD(cents int64) float64 {
	return float64(cents) / 100
}

// formatWholeUSD renders "$50" for whole dollars and "$50.50" otherwise.
func formatWholeUSD(cents int64) string {
	if cents%100 == 0 {
		return fmt.Sprintf("$%d", cents/100)
	}
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
