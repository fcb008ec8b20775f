package payments

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/Abdullah1738/payment-manager/offchain/solana"
	"github.com/Abdullah1738/payment-manager/offchain/solanafees"
)

var (
	ErrUnexpectedPayer = errors.New("transfer source is not the transaction payer")
	ErrNoTransfers     = errors.New("no transfers to build")
)

// TxBuilder collects the transfers of one payment into a single legacy
// transaction so they commit or fail together. A native builder moves
// lamports with system transfers. A token builder moves an SPL mint between
// the associated token accounts of the payer and each recipient.
type TxBuilder struct {
	payer  solana.Pubkey
	budget ComputeBudget
	token  *tokenLeg
	ixs    []solana.Instruction
}

type tokenLeg struct {
	mint   solana.Pubkey
	source solana.Pubkey
	create bool

	accounts []TokenAccountRef
	seen     map[solana.Pubkey]bool
}

// TokenAccountRef names a recipient wallet and its token account for the
// payment mint.
type TokenAccountRef struct {
	Owner   solana.Pubkey
	Address solana.Pubkey
}

// ComputeBudget sets the optional compute budget instructions. Zero fields
// are left out of the transaction.
type ComputeBudget struct {
	UnitLimit uint32
	// UnitPrice is in micro-lamports per compute unit.
	UnitPrice uint64
}

var _ Transferer = (*TxBuilder)(nil)

// NewTxBuilder starts a native SOL transaction paid for and signed by payer.
func NewTxBuilder(payer solana.Pubkey, budget ComputeBudget) *TxBuilder {
	return &TxBuilder{payer: payer, budget: budget}
}

// NewTokenTxBuilder starts a transaction paying in mint from the payer's
// associated token account. With createAccounts set, each recipient's
// associated token account is created (idempotently, funded by the payer)
// ahead of its first transfer.
func NewTokenTxBuilder(payer, mint solana.Pubkey, budget ComputeBudget, createAccounts bool) (*TxBuilder, error) {
	source, err := solana.FindAssociatedTokenAddress(payer, mint)
	if err != nil {
		return nil, fmt.Errorf("payer token account: %w", err)
	}
	return &TxBuilder{
		payer:  payer,
		budget: budget,
		token: &tokenLeg{
			mint:   mint,
			source: source,
			create: createAccounts,
			seen:   map[solana.Pubkey]bool{},
		},
	}, nil
}

func (b *TxBuilder) Transfer(ctx context.Context, from, to solana.Pubkey, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if from != b.payer {
		return fmt.Errorf("%w: %s", ErrUnexpectedPayer, from)
	}
	if b.token == nil {
		b.ixs = append(b.ixs, solana.SystemTransfer(from, to, amount))
		return nil
	}

	dst, err := solana.FindAssociatedTokenAddress(to, b.token.mint)
	if err != nil {
		return fmt.Errorf("token account for %s: %w", to, err)
	}
	if !b.token.seen[to] {
		b.token.seen[to] = true
		b.token.accounts = append(b.token.accounts, TokenAccountRef{Owner: to, Address: dst})
		if b.token.create {
			create, err := solana.CreateAssociatedTokenAccountIdempotent(b.payer, to, b.token.mint)
			if err != nil {
				return err
			}
			b.ixs = append(b.ixs, create)
		}
	}
	b.ixs = append(b.ixs, solana.TokenTransfer(b.token.source, dst, b.payer, amount))
	return nil
}

// PaymentMint reports the SPL mint the builder pays in, if any.
func (b *TxBuilder) PaymentMint() (solana.Pubkey, bool) {
	if b.token == nil {
		return solana.Pubkey{}, false
	}
	return b.token.mint, true
}

// SourceTokenAccount is the payer's token account debited by a token
// builder.
func (b *TxBuilder) SourceTokenAccount() (solana.Pubkey, bool) {
	if b.token == nil {
		return solana.Pubkey{}, false
	}
	return b.token.source, true
}

// TokenAccounts lists the recipient token accounts in order of first
// transfer. It is empty for a native builder.
func (b *TxBuilder) TokenAccounts() []TokenAccountRef {
	if b.token == nil {
		return nil
	}
	return append([]TokenAccountRef(nil), b.token.accounts...)
}

// SetComputeUnitPrice prices the transaction once its accounts are known.
func (b *TxBuilder) SetComputeUnitPrice(microLamports uint64) {
	b.budget.UnitPrice = microLamports
}

func (b *TxBuilder) Instructions() []solana.Instruction {
	var out []solana.Instruction
	if b.budget.UnitLimit > 0 {
		out = append(out, solana.ComputeBudgetSetComputeUnitLimit(b.budget.UnitLimit))
	}
	if b.budget.UnitPrice > 0 {
		out = append(out, solana.ComputeBudgetSetComputeUnitPrice(b.budget.UnitPrice))
	}
	return append(out, b.ixs...)
}

// ComputeUnitLimit is the limit the runtime applies to the transaction: the
// explicit limit if set, otherwise the default for each non-budget
// instruction.
func (b *TxBuilder) ComputeUnitLimit() uint32 {
	if b.budget.UnitLimit > 0 {
		return b.budget.UnitLimit
	}
	return uint32(min(len(b.ixs)*solanafees.DefaultComputeUnitsPerInstruction, solanafees.MaxComputeUnitLimit))
}

// WritableAccounts lists the accounts the transaction writes to, payer
// first.
func (b *TxBuilder) WritableAccounts() []solana.Pubkey {
	out := []solana.Pubkey{b.payer}
	seen := map[solana.Pubkey]bool{b.payer: true}
	for _, ix := range b.ixs {
		for _, a := range ix.Accounts {
			if a.IsWritable && !seen[a.Pubkey] {
				seen[a.Pubkey] = true
				out = append(out, a.Pubkey)
			}
		}
	}
	return out
}

func (b *TxBuilder) Message(recentBlockhash [32]byte) (solana.Message, error) {
	if len(b.ixs) == 0 {
		return solana.Message{}, ErrNoTransfers
	}
	return solana.Message{
		Payer:           b.payer,
		RecentBlockhash: recentBlockhash,
		Instructions:    b.Instructions(),
	}, nil
}

// Build signs the transaction with the payer's key.
func (b *TxBuilder) Build(recentBlockhash [32]byte, payerKey ed25519.PrivateKey) ([]byte, error) {
	msg, err := b.Message(recentBlockhash)
	if err != nil {
		return nil, err
	}
	return msg.Sign(payerKey)
}
