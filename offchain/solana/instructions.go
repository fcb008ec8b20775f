package solana

import (
	"encoding/binary"
	"errors"
)

var (
	SystemProgramID        = MustParsePubkey("11111111111111111111111111111111")
	ComputeBudgetProgramID = MustParsePubkey("ComputeBudget111111111111111111111111111111")
)

const systemTransferTag uint32 = 2

var ErrNotSystemTransfer = errors.New("not a system transfer")

func ComputeBudgetSetComputeUnitLimit(limit uint32) Instruction {
	var data [5]byte
	data[0] = 2
	binary.LittleEndian.PutUint32(data[1:], limit)
	return Instruction{
		ProgramID: ComputeBudgetProgramID,
		Accounts:  nil,
		Data:      data[:],
	}
}

func ComputeBudgetSetComputeUnitPrice(microLamports uint64) Instruction {
	var data [9]byte
	data[0] = 3
	binary.LittleEndian.PutUint64(data[1:], microLamports)
	return Instruction{
		ProgramID: ComputeBudgetProgramID,
		Accounts:  nil,
		Data:      data[:],
	}
}

// SystemTransfer moves lamports from a signing account to any account.
//
// Layout: u32_le(2) || u64_le(lamports).
func SystemTransfer(from, to Pubkey, lamports uint64) Instruction {
	var data [12]byte
	binary.LittleEndian.PutUint32(data[0:4], systemTransferTag)
	binary.LittleEndian.PutUint64(data[4:], lamports)
	return Instruction{
		ProgramID: SystemProgramID,
		Accounts: []AccountMeta{
			{Pubkey: from, IsSigner: true, IsWritable: true},
			{Pubkey: to, IsSigner: false, IsWritable: true},
		},
		Data: data[:],
	}
}

func decodeSystemTransferData(data []byte) (uint64, error) {
	if len(data) != 12 || binary.LittleEndian.Uint32(data[0:4]) != systemTransferTag {
		return 0, ErrNotSystemTransfer
	}
	return binary.LittleEndian.Uint64(data[4:]), nil
}
