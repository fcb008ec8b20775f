package solana

import (
	"crypto/ed25519"
	"errors"
	"fmt"
)

var (
	ErrSignerMismatch   = errors.New("signing key does not match the fee payer")
	ErrUnexpectedSigner = errors.New("instruction requires a signer other than the fee payer")
	ErrTooManyAccounts  = errors.New("too many accounts for a legacy message")
)

// maxLegacyAccounts bounds account indexes to a single byte.
const maxLegacyAccounts = 256

type AccountMeta struct {
	Pubkey     Pubkey
	IsSigner   bool
	IsWritable bool
}

type Instruction struct {
	ProgramID Pubkey
	Accounts  []AccountMeta
	Data      []byte
}

// Message is a legacy transaction message signed by its fee payer alone.
// Every payout transaction has that shape: the payer funds the fee and
// authorizes each transfer.
type Message struct {
	Payer           Pubkey
	RecentBlockhash [32]byte
	Instructions    []Instruction
}

// AccountKeys returns the message's account table: the payer, then writable
// accounts, then read-only accounts, each group in order of first use.
func (m Message) AccountKeys() ([]Pubkey, int, error) {
	writable := map[Pubkey]bool{m.Payer: true}
	order := []Pubkey{m.Payer}
	use := func(pk Pubkey, w bool) {
		if prev, ok := writable[pk]; ok {
			writable[pk] = prev || w
			return
		}
		writable[pk] = w
		order = append(order, pk)
	}
	for i, ix := range m.Instructions {
		use(ix.ProgramID, false)
		for _, a := range ix.Accounts {
			if a.IsSigner && a.Pubkey != m.Payer {
				return nil, 0, fmt.Errorf("%w: instruction %d account %s", ErrUnexpectedSigner, i, a.Pubkey)
			}
			use(a.Pubkey, a.IsWritable)
		}
	}
	if len(order) > maxLegacyAccounts {
		return nil, 0, ErrTooManyAccounts
	}

	keys := make([]Pubkey, 0, len(order))
	var readonly []Pubkey
	for _, pk := range order {
		if writable[pk] {
			keys = append(keys, pk)
		} else {
			readonly = append(readonly, pk)
		}
	}
	return append(keys, readonly...), len(readonly), nil
}

// Compile serializes the message. The header always reports one required
// signature and no read-only signers.
func (m Message) Compile() ([]byte, error) {
	keys, readonly, err := m.AccountKeys()
	if err != nil {
		return nil, err
	}
	index := make(map[Pubkey]byte, len(keys))
	for i, pk := range keys {
		index[pk] = byte(i)
	}

	out := make([]byte, 0, 3+len(keys)*32+32+64*len(m.Instructions))
	out = append(out, 1, 0, byte(readonly))
	out = appendShortVec(out, len(keys))
	for _, pk := range keys {
		out = append(out, pk[:]...)
	}
	out = append(out, m.RecentBlockhash[:]...)
	out = appendShortVec(out, len(m.Instructions))
	for _, ix := range m.Instructions {
		out = append(out, index[ix.ProgramID])
		out = appendShortVec(out, len(ix.Accounts))
		for _, a := range ix.Accounts {
			out = append(out, index[a.Pubkey])
		}
		out = appendShortVec(out, len(ix.Data))
		out = append(out, ix.Data...)
	}
	return out, nil
}

// Sign compiles the message and prefixes the payer's signature, producing
// a wire transaction ready for sendTransaction.
func (m Message) Sign(key ed25519.PrivateKey) ([]byte, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, ErrSignerMismatch
	}
	if pub, ok := key.Public().(ed25519.PublicKey); !ok || Pubkey(pub) != m.Payer {
		return nil, ErrSignerMismatch
	}
	msg, err := m.Compile()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 1+ed25519.SignatureSize+len(msg))
	out = appendShortVec(out, 1)
	out = append(out, ed25519.Sign(key, msg)...)
	return append(out, msg...), nil
}

// appendShortVec appends n in Solana's compact-u16 encoding.
func appendShortVec(dst []byte, n int) []byte {
	v := uint(n)
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}
