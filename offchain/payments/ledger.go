package payments

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"sync"

	"github.com/Abdullah1738/payment-manager/offchain/solana"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBalanceOverflow   = errors.New("balance overflow")
)

// Ledger is an in-memory balance ledger for a single currency. Each
// Transfer is atomic.
type Ledger struct {
	mu       sync.Mutex
	balances map[solana.Pubkey]uint64
}

var _ Transferer = (*Ledger)(nil)

func NewLedger(balances map[solana.Pubkey]uint64) *Ledger {
	l := &Ledger{balances: make(map[solana.Pubkey]uint64, len(balances))}
	for k, v := range balances {
		l.balances[k] = v
	}
	return l
}

func (l *Ledger) Transfer(ctx context.Context, from, to solana.Pubkey, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	have := l.balances[from]
	if have < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, from, have, amount)
	}
	if from == to {
		return nil
	}
	sum, carry := bits.Add64(l.balances[to], amount, 0)
	if carry != 0 {
		return fmt.Errorf("%w: %s", ErrBalanceOverflow, to)
	}
	l.balances[from] = have - amount
	l.balances[to] = sum
	return nil
}

func (l *Ledger) Balance(pk solana.Pubkey) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[pk]
}
