package protocol

import (
	"fmt"
	"math/bits"
)

type FeeBps uint16

const (
	BasisPointsDivisor uint64 = 10_000

	DefaultRoyaltyFeeShare uint64 = 5_000
	DefaultBuySideFeeShare uint64 = 50

	creatorShareDivisor uint64 = 100
)

func (bps FeeBps) IsValid() bool {
	return uint64(bps) <= BasisPointsDivisor
}

type FeeSchedule struct {
	MakerFee  uint64
	TakerFee  uint64
	TotalFees uint64
}

// ComputeFeeSchedule returns floor(amount*bps/10_000) for the maker and taker
// rates and their sum. Fees always round down.
func ComputeFeeSchedule(amount uint64, makerBps, takerBps FeeBps) (FeeSchedule, error) {
	maker, err := applyBps(amount, uint64(makerBps))
	if err != nil {
		return FeeSchedule{}, fmt.Errorf("maker fee: %w", err)
	}
	taker, err := applyBps(amount, uint64(takerBps))
	if err != nil {
		return FeeSchedule{}, fmt.Errorf("taker fee: %w", err)
	}
	total, err := checkedAdd(maker, taker)
	if err != nil {
		return FeeSchedule{}, fmt.Errorf("total fees: %w", err)
	}
	return FeeSchedule{MakerFee: maker, TakerFee: taker, TotalFees: total}, nil
}

func applyBps(amount uint64, bps uint64) (uint64, error) {
	return mulDiv(amount, bps, BasisPointsDivisor)
}

// mulDiv returns floor(a*b/denom). The product must fit in 64 bits; a
// non-zero high word is reported as overflow rather than carried into a
// 128-bit division.
func mulDiv(a, b, denom uint64) (uint64, error) {
	p, err := checkedMul(a, b)
	if err != nil {
		return 0, err
	}
	return p / denom, nil
}

func checkedMul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrArithmeticOverflow
	}
	return lo, nil
}

func checkedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrArithmeticOverflow
	}
	return sum, nil
}

func checkedSub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrArithmeticUnderflow
	}
	return diff, nil
}
