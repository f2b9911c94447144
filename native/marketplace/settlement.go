package marketplace

import (
	"fmt"
	"math"
	"math/big"

	"github.com/gagliardetto/solana-go"
)

// Distribution is the computed split of a payment between the seller and the
// marketplace treasury before any transfer executes.
type Distribution struct {
	// Total is the gross price of the purchase (unit price × quantity).
	Total uint64
	// Fee is the marketplace cut routed to the treasury vault.
	Fee uint64
	// SellerAmount is what the seller vault receives.
	SellerAmount uint64
	// BuyerCharge is what leaves the buyer vault across both legs.
	BuyerCharge uint64
}

// CalculateDistribution resolves the effective fee for a payment and splits
// the amount according to the configured fee payer. Paying with the discount
// mint subtracts the reduction from the fee in absolute basis points,
// flooring at zero. A nil fee config yields a single full-amount leg.
func CalculateDistribution(fees *FeesConfig, paymentMint solana.PublicKey, amount uint64) (Distribution, error) {
	if fees == nil || fees.Fee == 0 {
		return Distribution{Total: amount, SellerAmount: amount, BuyerCharge: amount}, nil
	}

	effectiveBps := fees.Fee
	if paymentMint.Equals(fees.DiscountMint) {
		// Intentional floor-at-zero; the reduction never flips the fee
		// into a subsidy.
		if fees.FeeReduction > effectiveBps {
			effectiveBps = 0
		} else {
			effectiveBps -= fees.FeeReduction
		}
	}

	fee := new(big.Int).SetUint64(uint64(effectiveBps))
	fee.Mul(fee, new(big.Int).SetUint64(amount))
	fee.Quo(fee, big.NewInt(BpsDenominator))
	if !fee.IsUint64() {
		return Distribution{}, fmt.Errorf("%w: fee", ErrNumericalOverflow)
	}
	totalFee := fee.Uint64()

	dist := Distribution{Total: amount, Fee: totalFee}
	switch fees.FeePayer {
	case FeePayerBuyer:
		// The fee is charged on top of the price as a separate leg.
		if totalFee > math.MaxUint64-amount {
			return Distribution{}, fmt.Errorf("%w: buyer charge", ErrNumericalOverflow)
		}
		dist.SellerAmount = amount
		dist.BuyerCharge = amount + totalFee
	case FeePayerSeller:
		if totalFee > amount {
			return Distribution{}, fmt.Errorf("%w: fee exceeds amount", ErrNumericalOverflow)
		}
		dist.SellerAmount = amount - totalFee
		dist.BuyerCharge = amount
	default:
		return Distribution{}, fmt.Errorf("%w: unknown fee payer %d", ErrInvalidFee, fees.FeePayer)
	}
	return dist, nil
}
