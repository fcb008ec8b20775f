package payments

import (
	"fmt"

	"github.com/Abdullah1738/payment-manager/offchain/metaplex"
	"github.com/Abdullah1738/payment-manager/offchain/solana"
	"github.com/Abdullah1738/payment-manager/protocol"
)

// MetadataAccount is the raw token-metadata account handed in by the caller.
// Empty Data means no metadata is registered for the mint.
type MetadataAccount struct {
	Address solana.Pubkey
	Owner   solana.Pubkey
	Data    []byte
}

type MetadataResolver interface {
	Resolve(mint solana.Pubkey, acct MetadataAccount) (*protocol.RoyaltyMetadata, error)
}

// MetaplexResolver trusts a metadata account only if it is the canonical
// metadata PDA for the mint, is owned by the token-metadata program and
// names the same mint.
type MetaplexResolver struct{}

var _ MetadataResolver = MetaplexResolver{}

func (MetaplexResolver) Resolve(mint solana.Pubkey, acct MetadataAccount) (*protocol.RoyaltyMetadata, error) {
	if _, err := solana.AssertDerivation(metaplex.ProgramID, acct.Address, metaplex.Seeds(mint)); err != nil {
		return nil, fmt.Errorf("%w: %w", protocol.ErrInvalidMintMetadata, err)
	}
	if len(acct.Data) == 0 {
		return nil, nil
	}
	if acct.Owner != metaplex.ProgramID {
		return nil, fmt.Errorf("%w: owner %s", protocol.ErrInvalidMintMetadataOwner, acct.Owner)
	}
	md, err := metaplex.Decode(acct.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", protocol.ErrInvalidMintMetadata, err)
	}
	if md.Mint != mint {
		return nil, fmt.Errorf("%w: metadata is for mint %s", protocol.ErrInvalidMintMetadata, md.Mint)
	}
	return md.Royalty(), nil
}
