package protocol

import (
	"errors"
	"testing"
)

func TestSettle(t *testing.T) {
	type testCase struct {
		name        string
		amount      uint64
		takerFee    uint64
		totalFees   uint64
		feesPaidOut uint64
		hasBuySide  bool
		share       uint64
		want        Settlement
		wantErrIs   error
	}

	cases := []testCase{
		{
			name:   "no_buy_side_recipient_zero_share",
			amount: 1_000_000, takerFee: 10_000, totalFees: 30_000,
			share: 0,
			want:  Settlement{FeeCollectorAmount: 30_000, TargetAmount: 980_000},
		},
		{
			name:   "no_buy_side_recipient_folds_fee_into_collector",
			amount: 1_000_000, takerFee: 10_000, totalFees: 30_000,
			share: DefaultBuySideFeeShare,
			want:  Settlement{BuySideFee: 5_000, FeeCollectorAmount: 35_000, TargetAmount: 975_000},
		},
		{
			name:   "buy_side_recipient_carved_out_of_collector",
			amount: 1000, takerFee: 30, totalFees: 90, feesPaidOut: 44,
			hasBuySide: true, share: DefaultBuySideFeeShare,
			want: Settlement{BuySideFee: 5, BuySideAmount: 5, FeeCollectorAmount: 46, TargetAmount: 935},
		},
		{
			name:   "paid_out_exceeds_fees",
			amount: 1000, takerFee: 0, totalFees: 10, feesPaidOut: 11,
			share:     0,
			wantErrIs: ErrArithmeticUnderflow,
		},
		{
			name:   "fees_exceed_amount",
			amount: 100, takerFee: 0, totalFees: 90,
			share:     BasisPointsDivisor,
			wantErrIs: ErrArithmeticUnderflow,
		},
		{
			name:   "buy_side_overflow",
			amount: ^uint64(0), share: 2,
			wantErrIs: ErrArithmeticOverflow,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Settle(tc.amount, tc.takerFee, tc.totalFees, tc.feesPaidOut, tc.hasBuySide, tc.share)
			if tc.wantErrIs != nil {
				if !errors.Is(err, tc.wantErrIs) {
					t.Fatalf("err=%v, want %v", err, tc.wantErrIs)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %+v want %+v", got, tc.want)
			}
		})
	}
}
