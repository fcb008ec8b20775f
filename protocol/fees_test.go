package protocol

import (
	"errors"
	"math/bits"
	"testing"
)

func TestComputeFeeSchedule(t *testing.T) {
	type testCase struct {
		name      string
		amount    uint64
		maker     FeeBps
		taker     FeeBps
		want      FeeSchedule
		wantErrIs error
	}

	cases := []testCase{
		{name: "zero", amount: 0, maker: 200, taker: 100, want: FeeSchedule{}},
		{name: "zero_bps", amount: 123, maker: 0, taker: 0, want: FeeSchedule{}},
		{name: "rounds_down", amount: 99, maker: 100, taker: 1, want: FeeSchedule{MakerFee: 0, TakerFee: 0, TotalFees: 0}},
		{name: "one_bps_rounding", amount: 10_000, maker: 1, taker: 1, want: FeeSchedule{MakerFee: 1, TakerFee: 1, TotalFees: 2}},
		{name: "example", amount: 1_000_000, maker: 200, taker: 100, want: FeeSchedule{MakerFee: 20_000, TakerFee: 10_000, TotalFees: 30_000}},
		{name: "small_payment", amount: 1000, maker: 500, taker: 300, want: FeeSchedule{MakerFee: 50, TakerFee: 30, TotalFees: 80}},
		{name: "full_fee", amount: 777, maker: 10_000, taker: 0, want: FeeSchedule{MakerFee: 777, TotalFees: 777}},
		{name: "maker_overflow", amount: ^uint64(0), maker: 200, taker: 0, wantErrIs: ErrArithmeticOverflow},
		{name: "taker_overflow", amount: ^uint64(0) / 2, maker: 0, taker: 3, wantErrIs: ErrArithmeticOverflow},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ComputeFeeSchedule(tc.amount, tc.maker, tc.taker)
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

func TestComputeFeeSchedule_NeverRoundsUp(t *testing.T) {
	rates := []FeeBps{0, 1, 3, 7, 99, 200, 333, 9_999, 10_000}
	for amount := uint64(0); amount < 20_000; amount += 37 {
		for _, bps := range rates {
			got, err := ComputeFeeSchedule(amount, bps, 0)
			if err != nil {
				t.Fatalf("amount=%d bps=%d: %v", amount, bps, err)
			}
			exact := amount * uint64(bps)
			if got.MakerFee*BasisPointsDivisor > exact {
				t.Fatalf("amount=%d bps=%d: fee %d rounds up", amount, bps, got.MakerFee)
			}
			if (got.MakerFee+1)*BasisPointsDivisor <= exact {
				t.Fatalf("amount=%d bps=%d: fee %d rounds down too far", amount, bps, got.MakerFee)
			}
		}
	}
}

func TestCheckedHelpers(t *testing.T) {
	if _, err := checkedAdd(^uint64(0), 1); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("add: err=%v", err)
	}
	if _, err := checkedSub(1, 2); !errors.Is(err, ErrArithmeticUnderflow) {
		t.Fatalf("sub: err=%v", err)
	}
	if _, err := checkedMul(1<<32, 1<<32); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("mul: err=%v", err)
	}
	hi, lo := bits.Mul64(1<<32-1, 1<<32+1)
	got, err := checkedMul(1<<32-1, 1<<32+1)
	if err != nil || hi != 0 || got != lo {
		t.Fatalf("mul: got %d err=%v", got, err)
	}
}

func TestFeeConfigValidate(t *testing.T) {
	over := BasisPointsDivisor + 1
	cases := []struct {
		name    string
		cfg     FeeConfig
		wantErr bool
	}{
		{name: "defaults", cfg: FeeConfig{MakerFeeBps: 500, TakerFeeBps: 300}},
		{name: "maker_too_large", cfg: FeeConfig{MakerFeeBps: 10_001}, wantErr: true},
		{name: "taker_too_large", cfg: FeeConfig{TakerFeeBps: 65_535}, wantErr: true},
		{name: "royalty_share_too_large", cfg: FeeConfig{RoyaltyFeeShare: &over}, wantErr: true},
		{name: "buy_side_share_too_large", cfg: FeeConfig{BuySideFeeShare: &over}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidFeeBps) {
					t.Fatalf("err=%v, want ErrInvalidFeeBps", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestFeeConfigShareDefaults(t *testing.T) {
	var cfg FeeConfig
	if cfg.RoyaltyShare() != DefaultRoyaltyFeeShare {
		t.Fatalf("royalty share=%d", cfg.RoyaltyShare())
	}
	if cfg.BuySideShare() != DefaultBuySideFeeShare {
		t.Fatalf("buy side share=%d", cfg.BuySideShare())
	}
	zero := uint64(0)
	cfg.RoyaltyFeeShare = &zero
	cfg.BuySideFeeShare = &zero
	if cfg.RoyaltyShare() != 0 || cfg.BuySideShare() != 0 {
		t.Fatalf("overrides ignored")
	}
}
