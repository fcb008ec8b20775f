package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Abdullah1738/payment-manager/offchain/payments"
	"github.com/Abdullah1738/payment-manager/offchain/solana"
	"github.com/Abdullah1738/payment-manager/offchain/solanarpc"
	"github.com/Abdullah1738/payment-manager/protocol"
)

func (a *app) quoteCmd() *cobra.Command {
	var f paymentFlags
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Print the payout plan for a payment and check it against a simulated ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, m, err := a.feeConfig()
			if err != nil {
				return err
			}
			var payer solana.Pubkey
			if f.payer != "" {
				if payer, err = parsePubkeyFlag("payer", f.payer); err != nil {
					return err
				}
			}
			var rpc *solanarpc.Client
			if f.needsRPC() {
				if rpc, err = rpcClient(f.rpcURL, m); err != nil {
					return err
				}
			}
			u, err := f.currency(ctx, rpc)
			if err != nil {
				return err
			}
			p, err := f.build(ctx, cfg, payer, u, rpc)
			if err != nil {
				return err
			}

			plan, err := simulate(ctx, a, cfg, &f, p)
			if err != nil {
				return err
			}
			out, err := newPlanJSON(managerName(m), f.mode(), u, plan)
			if err != nil {
				return err
			}
			return writeJSON(a.stdout, out)
		},
	}
	f.register(cmd, false)
	return cmd
}

// simulate runs the payment against a ledger that funds the payer with
// exactly the planned debit and checks every base unit lands.
func simulate(ctx context.Context, a *app, cfg protocol.FeeConfig, f *paymentFlags, p payments.Payment) (protocol.PayoutPlan, error) {
	planner, err := payments.NewExecutor(cfg, payments.NewLedger(nil), payments.WithLogger(a.log))
	if err != nil {
		return protocol.PayoutPlan{}, err
	}
	planFn := planner.Plan
	if f.withoutRoyalties {
		planFn = planner.PlanManaged
	}
	plan, err := planFn(p)
	if err != nil {
		return protocol.PayoutPlan{}, err
	}
	debit, err := plan.Debit()
	if err != nil {
		return protocol.PayoutPlan{}, err
	}

	ledger := payments.NewLedger(map[solana.Pubkey]uint64{p.Payer: debit})
	ex, err := payments.NewExecutor(cfg, ledger, payments.WithLogger(a.log))
	if err != nil {
		return protocol.PayoutPlan{}, err
	}
	got, err := f.apply(ctx, ex, p)
	if err != nil {
		return protocol.PayoutPlan{}, err
	}
	if left := ledger.Balance(p.Payer); left != 0 && !selfPaid(got, p.Payer) {
		return protocol.PayoutPlan{}, fmt.Errorf("%w: payer left with %d base units", protocol.ErrConservationViolated, left)
	}
	return got, nil
}

func selfPaid(plan protocol.PayoutPlan, payer solana.Pubkey) bool {
	for _, t := range plan.Transfers() {
		if solana.Pubkey(t.To) == payer {
			return true
		}
	}
	return false
}
