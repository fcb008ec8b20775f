package main

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/Abdullah1738/payment-manager/offchain/solana"
)

var errInvalidKeypair = errors.New("invalid keypair file")

func defaultKeypairPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, ".config", "solana", "id.json")
}

// loadSigner reads a 64-byte secret key, either as the CLI's JSON byte array
// or as a base58 string. The public half must match the seed.
func loadSigner(path string) (ed25519.PrivateKey, solana.Pubkey, error) {
	if strings.TrimSpace(path) == "" {
		return nil, solana.Pubkey{}, errors.New("--keypair required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, solana.Pubkey{}, err
	}
	secret, err := decodeSecret(bytes.TrimSpace(raw))
	if err != nil {
		return nil, solana.Pubkey{}, fmt.Errorf("%s: %w", path, err)
	}

	priv := ed25519.NewKeyFromSeed(secret[:ed25519.SeedSize])
	if !bytes.Equal(priv[ed25519.SeedSize:], secret[ed25519.SeedSize:]) {
		return nil, solana.Pubkey{}, fmt.Errorf("%s: %w: public key does not match seed", path, errInvalidKeypair)
	}
	return priv, solana.Pubkey(priv[ed25519.SeedSize:]), nil
}

func decodeSecret(raw []byte) ([]byte, error) {
	var secret []byte
	if len(raw) > 0 && raw[0] == '[' {
		var ints []int
		if err := json.Unmarshal(raw, &ints); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidKeypair, err)
		}
		secret = make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("%w: byte %d out of range", errInvalidKeypair, i)
			}
			secret[i] = byte(v)
		}
	} else {
		var err error
		if secret, err = base58.Decode(string(raw)); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidKeypair, err)
		}
	}
	if len(secret) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: %d bytes", errInvalidKeypair, len(secret))
	}
	return secret, nil
}
