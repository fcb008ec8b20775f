package protocol

import "fmt"

type Settlement struct {
	BuySideFee uint64
	// BuySideAmount is what the buy-side recipient is paid. It is zero when
	// there is no recipient and the fee stays with the fee collector.
	BuySideAmount      uint64
	FeeCollectorAmount uint64
	TargetAmount       uint64
}

// Settle derives the buy-side fee, the fee collector's residual and the
// amount owed to the payment target:
//
//	buy_side      = floor(amount*buySideShare/10_000)
//	fee_collector = total_fees + buy_side - fees_paid_out [- buy_side if paid out]
//	target        = amount + taker_fee - total_fees - buy_side
//
// totalFees must already include the seller fee.
func Settle(amount, takerFee, totalFees, feesPaidOut uint64, hasBuySideRecipient bool, buySideShare uint64) (Settlement, error) {
	buySide, err := applyBps(amount, buySideShare)
	if err != nil {
		return Settlement{}, fmt.Errorf("buy side fee: %w", err)
	}

	collector, err := checkedAdd(totalFees, buySide)
	if err != nil {
		return Settlement{}, fmt.Errorf("fee collector fee: %w", err)
	}
	if collector, err = checkedSub(collector, feesPaidOut); err != nil {
		return Settlement{}, fmt.Errorf("fee collector fee: %w", err)
	}

	var buySidePaid uint64
	if hasBuySideRecipient {
		if collector, err = checkedSub(collector, buySide); err != nil {
			return Settlement{}, fmt.Errorf("fee collector fee: %w", err)
		}
		buySidePaid = buySide
	}

	target, err := checkedAdd(amount, takerFee)
	if err != nil {
		return Settlement{}, fmt.Errorf("target amount: %w", err)
	}
	if target, err = checkedSub(target, totalFees); err != nil {
		return Settlement{}, fmt.Errorf("target amount: %w", err)
	}
	if target, err = checkedSub(target, buySide); err != nil {
		return Settlement{}, fmt.Errorf("target amount: %w", err)
	}

	return Settlement{
		BuySideFee:         buySide,
		BuySideAmount:      buySidePaid,
		FeeCollectorAmount: collector,
		TargetAmount:       target,
	}, nil
}
