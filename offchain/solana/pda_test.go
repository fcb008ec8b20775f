package solana

import (
	"errors"
	"strings"
	"testing"
)

func TestCreateProgramAddress_RejectsInvalidSeeds(t *testing.T) {
	_, err := CreateProgramAddress(make([][]byte, 17), SystemProgramID)
	if err != ErrInvalidSeeds {
		t.Fatalf("want ErrInvalidSeeds, got %v", err)
	}

	seed := make([]byte, 33)
	_, err = CreateProgramAddress([][]byte{seed}, SystemProgramID)
	if err != ErrInvalidSeeds {
		t.Fatalf("want ErrInvalidSeeds, got %v", err)
	}
}

func TestFindProgramAddress_ReturnsOffCurve(t *testing.T) {
	pda, _, err := FindProgramAddress([][]byte{[]byte("payment-manager"), []byte("foobar")}, SystemProgramID)
	if err != nil {
		t.Fatalf("FindProgramAddress: %v", err)
	}
	if isOnCurve(pda) {
		t.Fatalf("expected off-curve PDA")
	}
}

func TestFindProgramAddress_DoesNotMutateSeeds(t *testing.T) {
	seeds := make([][]byte, 1, 4)
	seeds[0] = []byte("metadata")
	if _, _, err := FindProgramAddress(seeds, SystemProgramID); err != nil {
		t.Fatalf("FindProgramAddress: %v", err)
	}
	if len(seeds) != 1 || string(seeds[0]) != "metadata" {
		t.Fatalf("seeds mutated: %q", seeds)
	}
}

func TestAssertDerivation(t *testing.T) {
	seeds := [][]byte{[]byte("metadata"), SystemProgramID[:]}
	pda, bump, err := FindProgramAddress(seeds, SystemProgramID)
	if err != nil {
		t.Fatalf("FindProgramAddress: %v", err)
	}

	gotBump, err := AssertDerivation(SystemProgramID, pda, seeds)
	if err != nil {
		t.Fatalf("AssertDerivation: %v", err)
	}
	if gotBump != bump {
		t.Fatalf("bump=%d want %d", gotBump, bump)
	}

	other := pda
	other[0] ^= 0xFF
	if _, err := AssertDerivation(SystemProgramID, other, seeds); !errors.Is(err, ErrDerivedKeyInvalid) {
		t.Fatalf("err=%v, want ErrDerivedKeyInvalid", err)
	}
}

func TestParsePubkey(t *testing.T) {
	pk, err := ParsePubkey("11111111111111111111111111111111")
	if err != nil {
		t.Fatalf("ParsePubkey: %v", err)
	}
	if !pk.IsZero() {
		t.Fatalf("system program id should be all zeros: %x", pk)
	}

	hexForm := "0x01" + strings.Repeat("00", 31)
	pk, err = ParsePubkey(hexForm)
	if err != nil {
		t.Fatalf("ParsePubkey(hex): %v", err)
	}
	if pk[0] != 1 {
		t.Fatalf("hex decode mismatch: %x", pk)
	}

	var back Pubkey
	if err := back.UnmarshalText([]byte(pk.Base58())); err != nil || back != pk {
		t.Fatalf("UnmarshalText: %v %x", err, back)
	}
	if _, err := ParsePubkey("not a key"); !errors.Is(err, ErrInvalidPubkey) {
		t.Fatalf("err=%v, want ErrInvalidPubkey", err)
	}
}
