package protocol

import (
	"fmt"

	"github.com/mr-tron/base58"
)

type SolanaPubkey [32]byte

// String renders the key in base58, the form wallets and explorers show.
func (k SolanaPubkey) String() string { return base58.Encode(k[:]) }

func (k SolanaPubkey) IsZero() bool { return k == SolanaPubkey{} }

// FeeConfig is the payment manager configuration. It is owned by the
// operator and read-only for the duration of a payment.
type FeeConfig struct {
	MakerFeeBps      FeeBps
	TakerFeeBps      FeeBps
	FeeCollector     SolanaPubkey
	IncludeSellerFee bool

	// RoyaltyFeeShare is the bps of maker+taker fees earmarked for creators.
	// Nil means DefaultRoyaltyFeeShare.
	RoyaltyFeeShare *uint64
	// BuySideFeeShare is the bps of the gross amount carved out for a
	// buy-side recipient. Nil means DefaultBuySideFeeShare.
	BuySideFeeShare *uint64
}

func (c FeeConfig) RoyaltyShare() uint64 {
	if c.RoyaltyFeeShare == nil {
		return DefaultRoyaltyFeeShare
	}
	return *c.RoyaltyFeeShare
}

func (c FeeConfig) BuySideShare() uint64 {
	if c.BuySideFeeShare == nil {
		return DefaultBuySideFeeShare
	}
	return *c.BuySideFeeShare
}

// Validate bounds every rate by BasisPointsDivisor. With rates bounded the
// only overflow source left is the payment amount itself.
func (c FeeConfig) Validate() error {
	if !c.MakerFeeBps.IsValid() {
		return fmt.Errorf("%w: maker fee %d", ErrInvalidFeeBps, c.MakerFeeBps)
	}
	if !c.TakerFeeBps.IsValid() {
		return fmt.Errorf("%w: taker fee %d", ErrInvalidFeeBps, c.TakerFeeBps)
	}
	if s := c.RoyaltyShare(); s > BasisPointsDivisor {
		return fmt.Errorf("%w: royalty fee share %d", ErrInvalidFeeBps, s)
	}
	if s := c.BuySideShare(); s > BasisPointsDivisor {
		return fmt.Errorf("%w: buy side fee share %d", ErrInvalidFeeBps, s)
	}
	return nil
}

type Creator struct {
	Address SolanaPubkey
	// Share is a percentage of the royalty pool. Shares are expected to sum
	// to 100 but are not re-validated here.
	Share uint8
}

// RoyaltyMetadata is the royalty part of an asset's metadata account.
type RoyaltyMetadata struct {
	SellerFeeBps uint16
	Creators     []Creator
}

type PaymentRequest struct {
	Amount        uint64
	Payer         SolanaPubkey
	PaymentTarget SolanaPubkey
	FeeCollector  SolanaPubkey

	BuySideRecipient *SolanaPubkey

	// CreatorRecipients lines up one-to-one with the creators that have a
	// non-zero share, in metadata order.
	CreatorRecipients []SolanaPubkey
}
