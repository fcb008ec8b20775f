package main

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Abdullah1738/payment-manager/offchain/solana"
)

const lamportsPerSOLExp = 9

var errInvalidAmount = errors.New("invalid amount")

// unit is the currency a payment settles in: native SOL, or an SPL mint.
type unit struct {
	Mint     *solana.Pubkey
	Symbol   string
	Decimals int32
}

var solUnit = unit{Symbol: "SOL", Decimals: lamportsPerSOLExp}

func tokenUnit(mint solana.Pubkey, decimals uint8) unit {
	return unit{Mint: &mint, Decimals: int32(decimals)}
}

func (u unit) name() string {
	if u.Mint != nil {
		return u.Mint.String()
	}
	return u.Symbol
}

func (u unit) format(raw uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(raw), -u.Decimals).String()
}

func (u unit) parse(s string) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errInvalidAmount, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: negative", errInvalidAmount)
	}
	l := d.Shift(u.Decimals)
	if !l.IsInteger() {
		return 0, fmt.Errorf("%w: %s %s is finer than %d decimals", errInvalidAmount, s, u.name(), u.Decimals)
	}
	bi := l.BigInt()
	if !bi.IsUint64() {
		return 0, fmt.Errorf("%w: %s %s overflows u64", errInvalidAmount, s, u.name())
	}
	return bi.Uint64(), nil
}

func formatSOL(lamports uint64) string { return solUnit.format(lamports) }

func parseSOL(s string) (uint64, error) { return solUnit.parse(s) }

// resolveAmount takes exactly one of a raw base-unit count or a decimal
// amount in u.
func resolveAmount(raw, ui string, u unit) (uint64, error) {
	raw = strings.TrimSpace(raw)
	ui = strings.TrimSpace(ui)
	switch {
	case raw != "" && ui != "":
		return 0, errors.New("use one of --amount or --amount-ui")
	case raw != "":
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", errInvalidAmount, err)
		}
		return v, nil
	case ui != "":
		return u.parse(ui)
	default:
		return 0, errors.New("--amount or --amount-ui required")
	}
}

type amountJSON struct {
	Raw uint64 `json:"raw"`
	UI  string `json:"ui"`
}

func (u unit) amount(raw uint64) amountJSON {
	return amountJSON{Raw: raw, UI: u.format(raw)}
}

type currencyJSON struct {
	Symbol   string         `json:"symbol,omitempty"`
	Mint     *solana.Pubkey `json:"mint,omitempty"`
	Decimals int32          `json:"decimals"`
}

func (u unit) currency() currencyJSON {
	return currencyJSON{Symbol: u.Symbol, Mint: u.Mint, Decimals: u.Decimals}
}
