package solana

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	TokenProgramID           = MustParsePubkey("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	AssociatedTokenProgramID = MustParsePubkey("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
)

const (
	tokenTransferTag       byte = 3
	ataCreateIdempotentTag byte = 1
)

const (
	mintAccountLen     = 82
	mintDecimalsOffset = 44

	TokenAccountLen          = 165
	tokenAccountOwnerOffset  = 32
	tokenAccountAmountOffset = 64
)

var (
	ErrNotTokenTransfer    = errors.New("not a token transfer")
	ErrInvalidMintAccount  = errors.New("invalid mint account")
	ErrInvalidTokenAccount = errors.New("invalid token account")
)

// FindAssociatedTokenAddress derives the canonical token account holding
// mint for wallet.
func FindAssociatedTokenAddress(wallet, mint Pubkey) (Pubkey, error) {
	addr, _, err := FindProgramAddress([][]byte{wallet[:], TokenProgramID[:], mint[:]}, AssociatedTokenProgramID)
	return addr, err
}

// TokenTransfer moves amount base units between two token accounts of the
// same mint. owner signs for source.
//
// Layout: u8(3) || u64_le(amount).
func TokenTransfer(source, destination, owner Pubkey, amount uint64) Instruction {
	data := make([]byte, 9)
	data[0] = tokenTransferTag
	binary.LittleEndian.PutUint64(data[1:], amount)
	return Instruction{
		ProgramID: TokenProgramID,
		Accounts: []AccountMeta{
			{Pubkey: source, IsWritable: true},
			{Pubkey: destination, IsWritable: true},
			{Pubkey: owner, IsSigner: true},
		},
		Data: data,
	}
}

// CreateAssociatedTokenAccountIdempotent creates wallet's token account for
// mint, funded by funder. It succeeds without changes if the account already
// exists.
func CreateAssociatedTokenAccountIdempotent(funder, wallet, mint Pubkey) (Instruction, error) {
	ata, err := FindAssociatedTokenAddress(wallet, mint)
	if err != nil {
		return Instruction{}, err
	}
	return Instruction{
		ProgramID: AssociatedTokenProgramID,
		Accounts: []AccountMeta{
			{Pubkey: funder, IsSigner: true, IsWritable: true},
			{Pubkey: ata, IsWritable: true},
			{Pubkey: wallet},
			{Pubkey: mint},
			{Pubkey: SystemProgramID},
			{Pubkey: TokenProgramID},
		},
		Data: []byte{ataCreateIdempotentTag},
	}, nil
}

func decodeTokenTransferData(data []byte) (uint64, error) {
	if len(data) != 9 || data[0] != tokenTransferTag {
		return 0, ErrNotTokenTransfer
	}
	return binary.LittleEndian.Uint64(data[1:]), nil
}

// MintDecimals reads the decimals of an SPL mint account.
func MintDecimals(data []byte) (uint8, error) {
	if len(data) != mintAccountLen {
		return 0, fmt.Errorf("%w: %d bytes", ErrInvalidMintAccount, len(data))
	}
	return data[mintDecimalsOffset], nil
}

type TokenAccount struct {
	Mint   Pubkey
	Owner  Pubkey
	Amount uint64
}

func DecodeTokenAccount(data []byte) (TokenAccount, error) {
	if len(data) != TokenAccountLen {
		return TokenAccount{}, fmt.Errorf("%w: %d bytes", ErrInvalidTokenAccount, len(data))
	}
	var out TokenAccount
	copy(out.Mint[:], data[:tokenAccountOwnerOffset])
	copy(out.Owner[:], data[tokenAccountOwnerOffset:tokenAccountAmountOffset])
	out.Amount = binary.LittleEndian.Uint64(data[tokenAccountAmountOffset:])
	return out, nil
}
