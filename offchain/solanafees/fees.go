package solanafees

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"slices"

	"github.com/Abdullah1738/payment-manager/offchain/solana"
)

var ErrOverflow = errors.New("overflow")

const (
	// DefaultComputeUnitsPerInstruction is what the runtime budgets for each
	// non-budget instruction when the transaction sets no explicit limit.
	DefaultComputeUnitsPerInstruction = 200_000
	MaxComputeUnitLimit               = 1_400_000
)

// Source is the cluster the fees are quoted from.
type Source interface {
	LamportsPerSignature(ctx context.Context) (uint64, error)
	RecentPrioritizationFees(ctx context.Context, accounts []solana.Pubkey) ([]uint64, error)
}

type TxFeeEstimate struct {
	LamportsPerSignature uint64 `json:"lamports_per_signature"`
	Signatures           uint64 `json:"signatures"`
	BaseFeeLamports      uint64 `json:"base_fee_lamports"`

	ComputeUnitLimit    uint32 `json:"compute_unit_limit"`
	MicroLamportsPerCU  uint64 `json:"micro_lamports_per_cu"`
	PriorityFeeLamports uint64 `json:"priority_fee_lamports"`

	TotalLamports uint64 `json:"total_lamports"`
}

func PriorityFeeLamports(computeUnitLimit uint32, microLamportsPerCU uint64) (uint64, error) {
	if computeUnitLimit == 0 || microLamportsPerCU == 0 {
		return 0, nil
	}
	hi, lo := bits.Mul64(uint64(computeUnitLimit), microLamportsPerCU)
	if hi != 0 {
		return 0, ErrOverflow
	}
	const denom = uint64(1_000_000)
	return lo/denom + min(lo%denom, 1), nil
}

func BaseFeeLamports(lamportsPerSignature uint64, signatures uint64) (uint64, error) {
	hi, lo := bits.Mul64(lamportsPerSignature, signatures)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}

// Percentile picks the p-th percentile (0-100) of recent compute unit
// prices. An empty sample prices at zero.
func Percentile(fees []uint64, p int) uint64 {
	if len(fees) == 0 {
		return 0
	}
	sorted := slices.Clone(fees)
	slices.Sort(sorted)
	p = max(0, min(p, 100))
	return sorted[(len(sorted)-1)*p/100]
}

// SuggestComputeUnitPrice prices a transaction writing to accounts at the
// p-th percentile of what recently landed against them.
func SuggestComputeUnitPrice(ctx context.Context, src Source, accounts []solana.Pubkey, p int) (uint64, error) {
	if src == nil {
		return 0, errors.New("nil fee source")
	}
	fees, err := src.RecentPrioritizationFees(ctx, accounts)
	if err != nil {
		return 0, fmt.Errorf("recent prioritization fees: %w", err)
	}
	return Percentile(fees, p), nil
}

func Estimate(
	ctx context.Context,
	src Source,
	signatures uint64,
	computeUnitLimit uint32,
	microLamportsPerCU uint64,
) (TxFeeEstimate, error) {
	if src == nil {
		return TxFeeEstimate{}, errors.New("nil fee source")
	}
	feePerSig, err := src.LamportsPerSignature(ctx)
	if err != nil {
		return TxFeeEstimate{}, err
	}
	base, err := BaseFeeLamports(feePerSig, signatures)
	if err != nil {
		return TxFeeEstimate{}, err
	}
	priority, err := PriorityFeeLamports(computeUnitLimit, microLamportsPerCU)
	if err != nil {
		return TxFeeEstimate{}, err
	}
	total, carry := bits.Add64(base, priority, 0)
	if carry != 0 {
		return TxFeeEstimate{}, ErrOverflow
	}

	return TxFeeEstimate{
		LamportsPerSignature: feePerSig,
		Signatures:           signatures,
		BaseFeeLamports:      base,
		ComputeUnitLimit:     computeUnitLimit,
		MicroLamportsPerCU:   microLamportsPerCU,
		PriorityFeeLamports:  priority,
		TotalLamports:        total,
	}, nil
}

func (e TxFeeEstimate) String() string {
	return fmt.Sprintf("total=%d lamports (base=%d, priority=%d @ %d microLamports/CU, limit=%d)",
		e.TotalLamports,
		e.BaseFeeLamports,
		e.PriorityFeeLamports,
		e.MicroLamportsPerCU,
		e.ComputeUnitLimit,
	)
}
