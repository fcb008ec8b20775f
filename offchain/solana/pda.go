package solana

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

var (
	ErrInvalidSeeds      = errors.New("invalid seeds")
	ErrOnCurve           = errors.New("derived address is on-curve")
	ErrDerivedKeyInvalid = errors.New("derived key invalid")
)

const (
	maxSeeds   = 16
	maxSeedLen = 32
)

func FindProgramAddress(seeds [][]byte, programID Pubkey) (Pubkey, uint8, error) {
	for bump := uint8(255); ; bump-- {
		withBump := append(append(make([][]byte, 0, len(seeds)+1), seeds...), []byte{bump})
		pda, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return pda, bump, nil
		}
		if errors.Is(err, ErrInvalidSeeds) {
			return Pubkey{}, 0, err
		}
		if bump == 0 {
			return Pubkey{}, 0, fmt.Errorf("no viable program address found")
		}
	}
}

func CreateProgramAddress(seeds [][]byte, programID Pubkey) (Pubkey, error) {
	if len(seeds) > maxSeeds {
		return Pubkey{}, ErrInvalidSeeds
	}

	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > maxSeedLen {
			return Pubkey{}, ErrInvalidSeeds
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte("ProgramDerivedAddress"))

	var out Pubkey
	copy(out[:], h.Sum(nil))
	if isOnCurve(out) {
		return Pubkey{}, ErrOnCurve
	}
	return out, nil
}

// AssertDerivation checks that account is the canonical program address for
// seeds under programID and returns its bump.
func AssertDerivation(programID Pubkey, account Pubkey, seeds [][]byte) (uint8, error) {
	want, bump, err := FindProgramAddress(seeds, programID)
	if err != nil {
		return 0, err
	}
	if want != account {
		return 0, fmt.Errorf("%w: got %s want %s", ErrDerivedKeyInvalid, account.Base58(), want.Base58())
	}
	return bump, nil
}

func isOnCurve(pk Pubkey) bool {
	_, err := new(edwards25519.Point).SetBytes(pk[:])
	return err == nil
}
