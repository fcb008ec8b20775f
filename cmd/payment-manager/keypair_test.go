package main

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mr-tron/base58"

	"github.com/Abdullah1738/payment-manager/offchain/solana"
)

func writeFile(t *testing.T, body []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "id.json")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadSigner_Formats(t *testing.T) {
	priv := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{3}, 32))
	want := solana.Pubkey(priv[32:])

	paths := map[string]string{
		"json":   writeKeypair(t, priv),
		"base58": writeFile(t, []byte(base58.Encode(priv)+"\n")),
	}
	for name, path := range paths {
		got, pub, err := loadSigner(path)
		if err != nil {
			t.Fatalf("%s: loadSigner: %v", name, err)
		}
		if pub != want || !bytes.Equal(got, priv) {
			t.Fatalf("%s: pubkey=%s, want %s", name, pub, want)
		}
	}
}

func TestLoadSigner_Rejects(t *testing.T) {
	priv := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{3}, 32))
	mismatched := append([]byte(nil), priv...)
	mismatched[63] ^= 0xFF
	outOfRange := "[256" + strings.Repeat(",0", 63) + "]"

	tests := map[string][]byte{
		"mismatched public half": []byte(base58.Encode(mismatched)),
		"short":                  []byte("[1,2,3]"),
		"byte out of range":      []byte(outOfRange),
		"not base58":             []byte("0OIl"),
	}
	for name, body := range tests {
		if _, _, err := loadSigner(writeFile(t, body)); !errors.Is(err, errInvalidKeypair) {
			t.Fatalf("%s: err=%v, want errInvalidKeypair", name, err)
		}
	}
	if _, _, err := loadSigner(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
