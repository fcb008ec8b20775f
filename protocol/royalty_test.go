package protocol

import (
	"errors"
	"strings"
	"testing"

	"github.com/mr-tron/base58"
)

func key(b byte) SolanaPubkey {
	var k SolanaPubkey
	for i := range k {
		k[i] = b
	}
	return k
}

func u64p(v uint64) *uint64 { return &v }

func TestApportionRoyalties_NoMetadata(t *testing.T) {
	cfg := FeeConfig{IncludeSellerFee: true}
	got, err := ApportionRoyalties(1_000_000, 30_000, cfg, nil, []SolanaPubkey{key(1)})
	if err != nil {
		t.Fatalf("ApportionRoyalties: %v", err)
	}
	if got.SellerFee != 0 || got.TotalCreatorsFee != 0 || got.FeesPaidOut != 0 || len(got.Payouts) != 0 {
		t.Fatalf("unexpected royalties: %+v", got)
	}
	if got.TotalFees != 30_000 {
		t.Fatalf("total fees=%d, want 30000", got.TotalFees)
	}
}

func TestApportionRoyalties_TwoCreators(t *testing.T) {
	cfg := FeeConfig{RoyaltyFeeShare: u64p(BasisPointsDivisor)}
	meta := &RoyaltyMetadata{Creators: []Creator{{Address: key(0xA), Share: 60}, {Address: key(0xB), Share: 40}}}
	recipients := []SolanaPubkey{key(0x1A), key(0x1B)}

	got, err := ApportionRoyalties(50_000, 1000, cfg, meta, recipients)
	if err != nil {
		t.Fatalf("ApportionRoyalties: %v", err)
	}
	if got.TotalCreatorsFee != 1000 {
		t.Fatalf("total creators fee=%d, want 1000", got.TotalCreatorsFee)
	}
	want := []CreatorPayout{
		{Creator: key(0xA), Recipient: key(0x1A), Share: 60, Amount: 600},
		{Creator: key(0xB), Recipient: key(0x1B), Share: 40, Amount: 400},
	}
	if len(got.Payouts) != len(want) {
		t.Fatalf("payouts=%d, want %d", len(got.Payouts), len(want))
	}
	for i := range want {
		if got.Payouts[i] != want[i] {
			t.Fatalf("payout[%d]=%+v want %+v", i, got.Payouts[i], want[i])
		}
	}
	if got.FeesPaidOut != 1000 {
		t.Fatalf("fees paid out=%d, want 1000", got.FeesPaidOut)
	}
}

func TestApportionRoyalties_SellerFeeFoldsIntoTotals(t *testing.T) {
	// maker 500 + taker 300 bps on 1000 => 80 total fees.
	cfg := FeeConfig{IncludeSellerFee: true, RoyaltyFeeShare: u64p(4500)}
	meta := &RoyaltyMetadata{
		SellerFeeBps: 100,
		Creators: []Creator{
			{Address: key(0xC0), Share: 0},
			{Address: key(0xC1), Share: 15},
			{Address: key(0xC2), Share: 30},
			{Address: key(0xC3), Share: 55},
		},
	}
	recipients := []SolanaPubkey{key(1), key(2), key(3)}

	got, err := ApportionRoyalties(1000, 80, cfg, meta, recipients)
	if err != nil {
		t.Fatalf("ApportionRoyalties: %v", err)
	}
	if got.SellerFee != 10 {
		t.Fatalf("seller fee=%d, want 10", got.SellerFee)
	}
	if got.TotalCreatorsFee != 46 {
		t.Fatalf("total creators fee=%d, want 46", got.TotalCreatorsFee)
	}
	if got.TotalFees != 90 {
		t.Fatalf("total fees=%d, want 90", got.TotalFees)
	}
	wantAmounts := []uint64{6, 13, 25}
	if len(got.Payouts) != len(wantAmounts) {
		t.Fatalf("payouts=%+v", got.Payouts)
	}
	for i, amt := range wantAmounts {
		if got.Payouts[i].Amount != amt || got.Payouts[i].Recipient != recipients[i] {
			t.Fatalf("payout[%d]=%+v want amount %d to %s", i, got.Payouts[i], amt, recipients[i])
		}
	}
	// Floors leave 46-44 = 2 units behind; they stay with the fee collector.
	if got.FeesPaidOut != 44 {
		t.Fatalf("fees paid out=%d, want 44", got.FeesPaidOut)
	}
}

func TestApportionRoyalties_SellerFeeExcluded(t *testing.T) {
	cfg := FeeConfig{IncludeSellerFee: false, RoyaltyFeeShare: u64p(5000)}
	meta := &RoyaltyMetadata{SellerFeeBps: 1000, Creators: []Creator{{Address: key(1), Share: 100}}}

	got, err := ApportionRoyalties(1000, 80, cfg, meta, []SolanaPubkey{key(2)})
	if err != nil {
		t.Fatalf("ApportionRoyalties: %v", err)
	}
	if got.SellerFee != 0 || got.TotalCreatorsFee != 40 || got.TotalFees != 80 || got.FeesPaidOut != 40 {
		t.Fatalf("unexpected royalties: %+v", got)
	}
}

func TestApportionRoyalties_ZeroShareSkipped(t *testing.T) {
	cfg := FeeConfig{RoyaltyFeeShare: u64p(BasisPointsDivisor)}
	meta := &RoyaltyMetadata{Creators: []Creator{
		{Address: key(0xA), Share: 0},
		{Address: key(0xB), Share: 100},
		{Address: key(0xC), Share: 0},
	}}

	got, err := ApportionRoyalties(0, 500, cfg, meta, []SolanaPubkey{key(0x1B)})
	if err != nil {
		t.Fatalf("ApportionRoyalties: %v", err)
	}
	if len(got.Payouts) != 1 {
		t.Fatalf("payouts=%+v", got.Payouts)
	}
	p := got.Payouts[0]
	if p.Creator != key(0xB) || p.Recipient != key(0x1B) || p.Amount != 500 {
		t.Fatalf("unexpected payout: %+v", p)
	}
}

func TestApportionRoyalties_RemainderOnlyWhenSharesBelowHundred(t *testing.T) {
	cfg := FeeConfig{RoyaltyFeeShare: u64p(BasisPointsDivisor)}
	meta := &RoyaltyMetadata{Creators: []Creator{
		{Address: key(1), Share: 33},
		{Address: key(2), Share: 33},
		{Address: key(3), Share: 33},
	}}
	recipients := []SolanaPubkey{key(11), key(12), key(13)}

	// pool=10: floor(990/100)=9, so one unit of remainder goes to the first creator.
	got, err := ApportionRoyalties(0, 10, cfg, meta, recipients)
	if err != nil {
		t.Fatalf("ApportionRoyalties: %v", err)
	}
	wantAmounts := []uint64{4, 3, 3}
	for i, amt := range wantAmounts {
		if got.Payouts[i].Amount != amt {
			t.Fatalf("payout[%d]=%d, want %d", i, got.Payouts[i].Amount, amt)
		}
	}
	if got.FeesPaidOut != 10 {
		t.Fatalf("fees paid out=%d, want 10", got.FeesPaidOut)
	}
}

func TestApportionRoyalties_SharesAboveHundredUnderflow(t *testing.T) {
	cfg := FeeConfig{RoyaltyFeeShare: u64p(BasisPointsDivisor)}
	meta := &RoyaltyMetadata{Creators: []Creator{{Address: key(1), Share: 60}, {Address: key(2), Share: 60}}}

	_, err := ApportionRoyalties(0, 100, cfg, meta, []SolanaPubkey{key(11), key(12)})
	if !errors.Is(err, ErrArithmeticUnderflow) {
		t.Fatalf("err=%v, want ErrArithmeticUnderflow", err)
	}
}

func TestApportionRoyalties_MissingRecipient(t *testing.T) {
	cfg := FeeConfig{RoyaltyFeeShare: u64p(BasisPointsDivisor)}
	meta := &RoyaltyMetadata{Creators: []Creator{{Address: key(1), Share: 50}, {Address: key(2), Share: 50}}}

	_, err := ApportionRoyalties(0, 100, cfg, meta, []SolanaPubkey{key(11)})
	if !errors.Is(err, ErrMissingAccount) {
		t.Fatalf("err=%v, want ErrMissingAccount", err)
	}
	creator := key(2)
	if want := base58.Encode(creator[:]); !strings.Contains(err.Error(), want) {
		t.Fatalf("err=%q, want creator %s", err, want)
	}
}

func TestApportionRoyalties_ZeroFeeConsumesRecipientWithoutPayout(t *testing.T) {
	cfg := FeeConfig{RoyaltyFeeShare: u64p(BasisPointsDivisor)}
	meta := &RoyaltyMetadata{Creators: []Creator{{Address: key(1), Share: 1}, {Address: key(2), Share: 99}}}

	// pool=50: creator 1 gets floor(50/100)=0, creator 2 gets floor(4950/100)=49.
	got, err := ApportionRoyalties(0, 50, cfg, meta, []SolanaPubkey{key(11), key(12)})
	if err != nil {
		t.Fatalf("ApportionRoyalties: %v", err)
	}
	if len(got.Payouts) != 1 || got.Payouts[0].Recipient != key(12) || got.Payouts[0].Amount != 49 {
		t.Fatalf("unexpected payouts: %+v", got.Payouts)
	}
}

func TestApportionRoyalties_Overflow(t *testing.T) {
	cfg := FeeConfig{IncludeSellerFee: true, RoyaltyFeeShare: u64p(0)}
	meta := &RoyaltyMetadata{SellerFeeBps: 500, Creators: []Creator{{Address: key(1), Share: 100}}}

	_, err := ApportionRoyalties(^uint64(0), 0, cfg, meta, []SolanaPubkey{key(11)})
	if !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("err=%v, want ErrArithmeticOverflow", err)
	}
}
