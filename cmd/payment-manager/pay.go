package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Abdullah1738/payment-manager/offchain/payments"
	"github.com/Abdullah1738/payment-manager/offchain/solana"
	"github.com/Abdullah1738/payment-manager/offchain/solanafees"
	"github.com/Abdullah1738/payment-manager/offchain/solanarpc"
	"github.com/Abdullah1738/payment-manager/protocol"
)

const autoPricePercentile = 75

var errMissingTokenAccount = errors.New("recipient token account does not exist")

type payResult struct {
	Plan        planJSON    `json:"plan"`
	NetworkFee  amountJSON  `json:"network_fee"`
	AccountRent *amountJSON `json:"account_rent,omitempty"`
	Signature   string      `json:"signature,omitempty"`
	Transaction string      `json:"transaction_base64,omitempty"`
}

// computeUnitPrice resolves --cu-price: a micro-lamport count, or "auto" for
// the recent price paid against accounts.
func computeUnitPrice(ctx context.Context, flag string, src solanafees.Source, accounts []solana.Pubkey) (uint64, error) {
	flag = strings.TrimSpace(flag)
	if flag != "auto" {
		v, err := strconv.ParseUint(flag, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("--cu-price: %w", err)
		}
		return v, nil
	}
	return solanafees.SuggestComputeUnitPrice(ctx, src, accounts, autoPricePercentile)
}

func addLamports(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, protocol.ErrArithmeticOverflow
	}
	return sum, nil
}

// tokenFunding checks the payer's token account covers debit and returns the
// rent for recipient token accounts the transaction creates.
func tokenFunding(ctx context.Context, rpc *solanarpc.Client, b *payments.TxBuilder, u unit, debit uint64, create bool, log *zap.Logger) (uint64, error) {
	source, _ := b.SourceTokenAccount()
	info, err := rpc.AccountInfo(ctx, source)
	if err != nil {
		return 0, fmt.Errorf("payer token account %s: %w", source, err)
	}
	var held uint64
	if info.Exists {
		acct, err := solana.DecodeTokenAccount(info.Data)
		if err != nil {
			return 0, fmt.Errorf("payer token account %s: %w", source, err)
		}
		if acct.Mint != *u.Mint {
			return 0, fmt.Errorf("%w: %s holds mint %s", solana.ErrInvalidTokenAccount, source, acct.Mint)
		}
		held = acct.Amount
	}
	if held < debit {
		return 0, fmt.Errorf("%w: payer token account %s has %s, payment needs %s",
			payments.ErrInsufficientFunds, source, u.format(held), u.format(debit))
	}

	var missing int
	for _, ref := range b.TokenAccounts() {
		info, err := rpc.AccountInfo(ctx, ref.Address)
		if err != nil {
			return 0, fmt.Errorf("token account %s: %w", ref.Address, err)
		}
		if info.Exists {
			continue
		}
		if !create {
			return 0, fmt.Errorf("%w: %s for %s (pass --create-token-accounts)", errMissingTokenAccount, ref.Address, ref.Owner)
		}
		log.Debug("pay.create_token_account", zap.Stringer("owner", ref.Owner), zap.Stringer("address", ref.Address))
		missing++
	}
	if missing == 0 {
		return 0, nil
	}
	rent, err := rpc.MinimumBalanceForRentExemption(ctx, solana.TokenAccountLen)
	if err != nil {
		return 0, fmt.Errorf("token account rent: %w", err)
	}
	hi, total := bits.Mul64(rent, uint64(missing))
	if hi != 0 {
		return 0, protocol.ErrArithmeticOverflow
	}
	return total, nil
}

func (a *app) payCmd() *cobra.Command {
	var (
		f             paymentFlags
		keypairPath   string
		cuPrice       string
		cuLimit       uint32
		createATAs    bool
		dryRun        bool
		skipPreflight bool
	)
	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Pay through the manager in one signed transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, m, err := a.feeConfig()
			if err != nil {
				return err
			}
			priv, payer, err := loadSigner(keypairPath)
			if err != nil {
				return err
			}
			rpc, err := rpcClient(f.rpcURL, m)
			if err != nil {
				return err
			}
			u, err := f.currency(ctx, rpc)
			if err != nil {
				return err
			}
			p, err := f.build(ctx, cfg, payer, u, rpc)
			if err != nil {
				return err
			}
			log := a.log.With(logFields(p)...).With(zap.String("currency", u.name()))

			budget := payments.ComputeBudget{UnitLimit: cuLimit}
			b := payments.NewTxBuilder(payer, budget)
			if u.Mint != nil {
				if b, err = payments.NewTokenTxBuilder(payer, *u.Mint, budget, createATAs); err != nil {
					return err
				}
			} else if createATAs {
				return errors.New("--create-token-accounts requires --payment-mint")
			}
			ex, err := payments.NewExecutor(cfg, b, payments.WithLogger(a.log))
			if err != nil {
				return err
			}
			plan, err := f.apply(ctx, ex, p)
			if err != nil {
				return err
			}
			price, err := computeUnitPrice(ctx, cuPrice, rpc, b.WritableAccounts())
			if err != nil {
				return err
			}
			b.SetComputeUnitPrice(price)

			fee, err := solanafees.Estimate(ctx, rpc, 1, b.ComputeUnitLimit(), price)
			if err != nil {
				return fmt.Errorf("estimate network fee: %w", err)
			}
			debit, err := plan.Debit()
			if err != nil {
				return err
			}

			// Lamports the payer spends: the network fee, plus the payment
			// itself or the rent for new token accounts.
			extra := debit
			var rent uint64
			if u.Mint != nil {
				if rent, err = tokenFunding(ctx, rpc, b, u, debit, createATAs, log); err != nil {
					return err
				}
				extra = rent
			}
			need, err := addLamports(extra, fee.TotalLamports)
			if err != nil {
				return err
			}
			bal, err := rpc.BalanceLamports(ctx, payer)
			if err != nil {
				return fmt.Errorf("payer balance: %w", err)
			}
			if bal < need {
				return fmt.Errorf("%w: payer %s has %s SOL, payment needs %s SOL (%s)",
					payments.ErrInsufficientFunds, payer, formatSOL(bal), formatSOL(need), fee)
			}
			log.Debug("pay.fee", zap.Stringer("fee", fee), zap.Uint64("account_rent", rent))

			blockhash, err := rpc.LatestBlockhash(ctx)
			if err != nil {
				return err
			}
			tx, err := b.Build(blockhash, priv)
			if err != nil {
				return err
			}

			view, err := newPlanJSON(managerName(m), f.mode(), u, plan)
			if err != nil {
				return err
			}
			res := payResult{Plan: view, NetworkFee: solUnit.amount(fee.TotalLamports)}
			if rent > 0 {
				r := solUnit.amount(rent)
				res.AccountRent = &r
			}
			if dryRun {
				res.Transaction = base64.StdEncoding.EncodeToString(tx)
				log.Info("pay.dry_run", zap.Int("tx_bytes", len(tx)))
				return writeJSON(a.stdout, res)
			}
			sig, err := rpc.SendTransaction(ctx, tx, skipPreflight)
			if err != nil {
				return fmt.Errorf("send: %w", err)
			}
			if sig == "" {
				return errors.New("send: empty signature")
			}
			res.Signature = sig
			log.Info("pay.sent", zap.String("signature", sig))
			return writeJSON(a.stdout, res)
		},
	}
	f.register(cmd, true)
	fs := cmd.Flags()
	fs.StringVar(&keypairPath, "keypair", defaultKeypairPath(), "Payer keypair (JSON byte array or base58 secret)")
	fs.StringVar(&cuPrice, "cu-price", "0", "Compute unit price in micro-lamports, or auto")
	fs.Uint32Var(&cuLimit, "cu-limit", 0, "Compute unit limit (0 keeps the runtime default)")
	fs.BoolVar(&createATAs, "create-token-accounts", false, "Create missing recipient token accounts, paying their rent")
	fs.BoolVar(&dryRun, "dry-run", false, "Print the signed transaction instead of sending it")
	fs.BoolVar(&skipPreflight, "skip-preflight", false, "Skip RPC preflight simulation")
	return cmd
}
