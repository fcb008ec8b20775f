package solana

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"testing"
)

func testKeypair(seedByte byte) (ed25519.PrivateKey, Pubkey) {
	priv := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{seedByte}, 32))
	return priv, Pubkey(priv.Public().(ed25519.PublicKey))
}

func filled(b byte) Pubkey {
	var pk Pubkey
	for i := range pk {
		pk[i] = b
	}
	return pk
}

func TestAppendShortVec_Golden(t *testing.T) {
	tests := []struct {
		n    int
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{16383, []byte{0xff, 0x7f}},
		{16384, []byte{0x80, 0x80, 0x01}},
	}
	for _, tt := range tests {
		got := appendShortVec([]byte{0xEE}, tt.n)
		if !bytes.Equal(got[1:], tt.want) || got[0] != 0xEE {
			t.Fatalf("appendShortVec(%d) = %x, want ee%x", tt.n, got, tt.want)
		}
		n, off, err := decodeShortVecLenAt(got, 1)
		if err != nil || n != tt.n || off != len(got) {
			t.Fatalf("decode(%x) = %d,%d,%v", got, n, off, err)
		}
	}
}

func TestMessage_AccountKeys(t *testing.T) {
	_, payer := testKeypair(1)
	a, b := filled(0xA0), filled(0xB0)
	m := Message{
		Payer: payer,
		Instructions: []Instruction{
			ComputeBudgetSetComputeUnitPrice(5),
			SystemTransfer(payer, a, 1),
			TokenTransfer(b, a, payer, 2),
		},
	}
	keys, readonly, err := m.AccountKeys()
	if err != nil {
		t.Fatalf("AccountKeys: %v", err)
	}
	want := []Pubkey{payer, a, b, ComputeBudgetProgramID, SystemProgramID, TokenProgramID}
	if len(keys) != len(want) || readonly != 3 {
		t.Fatalf("keys=%v readonly=%d", keys, readonly)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys[%d]=%s, want %s", i, keys[i], want[i])
		}
	}
}

func TestMessage_SignVerifies(t *testing.T) {
	priv, payer := testKeypair(1)
	m := Message{
		Payer:           payer,
		RecentBlockhash: [32]byte{0x42},
		Instructions:    []Instruction{SystemTransfer(payer, filled(0x44), 10)},
	}
	tx, err := m.Sign(priv)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if tx[0] != 1 {
		t.Fatalf("signature count=%d, want 1", tx[0])
	}
	sig, msg := tx[1:65], tx[65:]
	if !ed25519.Verify(priv.Public().(ed25519.PublicKey), msg, sig) {
		t.Fatalf("signature did not verify")
	}
	if msg[0] != 1 || msg[1] != 0 || msg[2] != 1 {
		t.Fatalf("header=%v, want [1 0 1]", msg[:3])
	}
}

func TestMessage_Rejects(t *testing.T) {
	priv, payer := testKeypair(1)
	other, otherPub := testKeypair(2)

	m := Message{Payer: payer, Instructions: []Instruction{SystemTransfer(payer, SystemProgramID, 1)}}
	if _, err := m.Sign(other); !errors.Is(err, ErrSignerMismatch) {
		t.Fatalf("err=%v, want ErrSignerMismatch", err)
	}
	if _, err := m.Sign(nil); !errors.Is(err, ErrSignerMismatch) {
		t.Fatalf("err=%v, want ErrSignerMismatch", err)
	}

	cosigned := Message{Payer: payer, Instructions: []Instruction{SystemTransfer(otherPub, payer, 1)}}
	if _, err := cosigned.Sign(priv); !errors.Is(err, ErrUnexpectedSigner) {
		t.Fatalf("err=%v, want ErrUnexpectedSigner", err)
	}

	var many []Instruction
	for i := 0; i < maxLegacyAccounts; i++ {
		var to Pubkey
		to[0], to[1] = byte(i), 0x77
		many = append(many, SystemTransfer(payer, to, 1))
	}
	if _, err := (Message{Payer: payer, Instructions: many}).Compile(); !errors.Is(err, ErrTooManyAccounts) {
		t.Fatalf("err=%v, want ErrTooManyAccounts", err)
	}
}

func TestParseLegacyTransaction_SystemTransfers(t *testing.T) {
	priv, payer := testKeypair(7)
	a, b := filled(0xA0), filled(0xB0)
	blockhash := [32]byte{0x11}

	m := Message{
		Payer:           payer,
		RecentBlockhash: blockhash,
		Instructions: []Instruction{
			ComputeBudgetSetComputeUnitPrice(5),
			SystemTransfer(payer, a, 6),
			SystemTransfer(payer, b, 13),
			SystemTransfer(payer, a, 935),
		},
	}
	tx, err := m.Sign(priv)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	parsed, err := ParseLegacyTransaction(tx)
	if err != nil {
		t.Fatalf("ParseLegacyTransaction: %v", err)
	}
	if parsed.RecentBlockhash != blockhash {
		t.Fatalf("blockhash mismatch")
	}
	if len(parsed.Instructions) != len(m.Instructions) {
		t.Fatalf("instructions=%d", len(parsed.Instructions))
	}
	if parsed.AccountKeys[0] != payer {
		t.Fatalf("fee payer must be first account")
	}

	transfers, err := parsed.SystemTransfers()
	if err != nil {
		t.Fatalf("SystemTransfers: %v", err)
	}
	want := []ParsedTransfer{
		{From: payer, To: a, Lamports: 6},
		{From: payer, To: b, Lamports: 13},
		{From: payer, To: a, Lamports: 935},
	}
	if len(transfers) != len(want) {
		t.Fatalf("transfers=%+v", transfers)
	}
	for i := range want {
		if transfers[i] != want[i] {
			t.Fatalf("transfer[%d]=%+v want %+v", i, transfers[i], want[i])
		}
	}
}

func TestParseLegacyTransaction_Truncated(t *testing.T) {
	if _, err := ParseLegacyTransaction(nil); err == nil {
		t.Fatalf("expected error for empty tx")
	}
	if _, err := ParseLegacyTransaction([]byte{1, 0, 0}); err == nil {
		t.Fatalf("expected error for truncated tx")
	}
}
