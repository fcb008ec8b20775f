package solana

import (
	"errors"
	"fmt"
)

type ParsedInstruction struct {
	ProgramID Pubkey
	Accounts  []uint8
	Data      []byte
}

type ParsedLegacyMessage struct {
	AccountKeys     []Pubkey
	RecentBlockhash [32]byte
	Instructions    []ParsedInstruction
}

func ParseLegacyTransaction(tx []byte) (ParsedLegacyMessage, error) {
	var out ParsedLegacyMessage
	if len(tx) == 0 {
		return out, errors.New("empty tx")
	}

	off := 0
	sigCount, newOff, err := decodeShortVecLenAt(tx, off)
	if err != nil {
		return out, fmt.Errorf("decode signature count: %w", err)
	}
	off = newOff
	sigBytes := sigCount * 64
	if sigCount < 0 || sigBytes < 0 || off+sigBytes > len(tx) {
		return out, errors.New("invalid signature section")
	}
	off += sigBytes

	if off+3 > len(tx) {
		return out, errors.New("message header truncated")
	}
	off += 3

	nKeys, newOff, err := decodeShortVecLenAt(tx, off)
	if err != nil {
		return out, fmt.Errorf("decode account keys count: %w", err)
	}
	off = newOff
	if nKeys < 0 || off+(nKeys*32) > len(tx) {
		return out, errors.New("account keys truncated")
	}
	out.AccountKeys = make([]Pubkey, 0, nKeys)
	for i := 0; i < nKeys; i++ {
		var pk Pubkey
		copy(pk[:], tx[off:off+32])
		out.AccountKeys = append(out.AccountKeys, pk)
		off += 32
	}

	if off+32 > len(tx) {
		return out, errors.New("recent blockhash truncated")
	}
	copy(out.RecentBlockhash[:], tx[off:off+32])
	off += 32

	nIxs, newOff, err := decodeShortVecLenAt(tx, off)
	if err != nil {
		return out, fmt.Errorf("decode instruction count: %w", err)
	}
	off = newOff
	if nIxs < 0 {
		return out, errors.New("negative instruction count")
	}

	out.Instructions = make([]ParsedInstruction, 0, nIxs)
	for i := 0; i < nIxs; i++ {
		if off >= len(tx) {
			return out, errors.New("instruction truncated")
		}
		pidIndex := int(tx[off])
		off++
		if pidIndex < 0 || pidIndex >= len(out.AccountKeys) {
			return out, errors.New("invalid program id index")
		}

		acctCount, newOff, err := decodeShortVecLenAt(tx, off)
		if err != nil {
			return out, fmt.Errorf("decode instruction accounts count: %w", err)
		}
		off = newOff
		if acctCount < 0 || off+acctCount > len(tx) {
			return out, errors.New("instruction accounts truncated")
		}
		accounts := make([]uint8, acctCount)
		copy(accounts, tx[off:off+acctCount])
		off += acctCount

		dataLen, newOff, err := decodeShortVecLenAt(tx, off)
		if err != nil {
			return out, fmt.Errorf("decode instruction data len: %w", err)
		}
		off = newOff
		if dataLen < 0 || off+dataLen > len(tx) {
			return out, errors.New("instruction data truncated")
		}
		data := make([]byte, dataLen)
		copy(data, tx[off:off+dataLen])
		off += dataLen

		out.Instructions = append(out.Instructions, ParsedInstruction{
			ProgramID: out.AccountKeys[pidIndex],
			Accounts:  accounts,
			Data:      data,
		})
	}

	return out, nil
}

type ParsedTransfer struct {
	From     Pubkey
	To       Pubkey
	Lamports uint64
}

// SystemTransfers returns the system-program transfers in instruction
// order. Instructions for other programs are skipped.
func (m ParsedLegacyMessage) SystemTransfers() ([]ParsedTransfer, error) {
	var out []ParsedTransfer
	for i, ix := range m.Instructions {
		if ix.ProgramID != SystemProgramID {
			continue
		}
		lamports, err := decodeSystemTransferData(ix.Data)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		if len(ix.Accounts) != 2 {
			return nil, fmt.Errorf("instruction %d: transfer has %d accounts", i, len(ix.Accounts))
		}
		from, to := int(ix.Accounts[0]), int(ix.Accounts[1])
		if from >= len(m.AccountKeys) || to >= len(m.AccountKeys) {
			return nil, fmt.Errorf("instruction %d: account index out of range", i)
		}
		out = append(out, ParsedTransfer{
			From:     m.AccountKeys[from],
			To:       m.AccountKeys[to],
			Lamports: lamports,
		})
	}
	return out, nil
}

type ParsedTokenTransfer struct {
	Source      Pubkey
	Destination Pubkey
	Authority   Pubkey
	Amount      uint64
}

// TokenTransfers returns the token-program Transfer instructions in order.
// Other token instructions and other programs are skipped.
func (m ParsedLegacyMessage) TokenTransfers() ([]ParsedTokenTransfer, error) {
	var out []ParsedTokenTransfer
	for i, ix := range m.Instructions {
		if ix.ProgramID != TokenProgramID {
			continue
		}
		amount, err := decodeTokenTransferData(ix.Data)
		if errors.Is(err, ErrNotTokenTransfer) {
			continue
		}
		if len(ix.Accounts) < 3 {
			return nil, fmt.Errorf("instruction %d: token transfer has %d accounts", i, len(ix.Accounts))
		}
		var keys [3]Pubkey
		for j := range keys {
			k := int(ix.Accounts[j])
			if k >= len(m.AccountKeys) {
				return nil, fmt.Errorf("instruction %d: account index out of range", i)
			}
			keys[j] = m.AccountKeys[k]
		}
		out = append(out, ParsedTokenTransfer{
			Source:      keys[0],
			Destination: keys[1],
			Authority:   keys[2],
			Amount:      amount,
		})
	}
	return out, nil
}

func decodeShortVecLenAt(b []byte, off int) (int, int, error) {
	if off < 0 || off >= len(b) {
		return 0, off, errors.New("shortvec: out of bounds")
	}
	var out uint64
	var shift uint
	i := 0
	for {
		if off+i >= len(b) {
			return 0, off, errors.New("shortvec: truncated")
		}
		bt := b[off+i]
		out |= uint64(bt&0x7f) << shift
		i++
		if (bt & 0x80) == 0 {
			break
		}
		shift += 7
		if shift > 28 {
			return 0, off, errors.New("shortvec: too long")
		}
	}
	if out > uint64(^uint(0)>>1) {
		return 0, off, errors.New("shortvec: length overflows int")
	}
	return int(out), off + i, nil
}
