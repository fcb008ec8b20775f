package main

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Abdullah1738/payment-manager/offchain/deployments"
	"github.com/Abdullah1738/payment-manager/offchain/metaplex"
	"github.com/Abdullah1738/payment-manager/offchain/solana"
)

type pdaJSON struct {
	Address solana.Pubkey `json:"address"`
	Bump    uint8         `json:"bump"`
	Program solana.Pubkey `json:"program"`
}

func (a *app) pdaCmd() *cobra.Command {
	var (
		name      string
		programID string
		mint      string
	)
	cmd := &cobra.Command{
		Use:   "pda",
		Short: "Derive the manager account (--name) or a mint's metadata account (--mint)",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			switch {
			case name != "" && mint != "":
				return errors.New("use one of --name or --mint")
			case mint != "":
				mk, err := parsePubkeyFlag("mint", mint)
				if err != nil {
					return err
				}
				addr, bump, err := metaplex.FindMetadataAddress(mk)
				if err != nil {
					return err
				}
				return writeJSON(a.stdout, pdaJSON{Address: addr, Bump: bump, Program: metaplex.ProgramID})
			case name != "":
				m := deployments.Manager{Name: name, ProgramID: programID}
				program, err := m.Program()
				if err != nil {
					return err
				}
				addr, bump, err := m.Address()
				if err != nil {
					return err
				}
				return writeJSON(a.stdout, pdaJSON{Address: addr, Bump: bump, Program: program})
			default:
				return errors.New("--name or --mint required")
			}
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Payment manager name")
	cmd.Flags().StringVar(&programID, "program-id", "", "Payment manager program (default "+deployments.DefaultProgramID.String()+")")
	cmd.Flags().StringVar(&mint, "mint", "", "Asset mint")
	return cmd
}

type managerJSON struct {
	Name             string        `json:"name"`
	Cluster          string        `json:"cluster,omitempty"`
	Address          solana.Pubkey `json:"address"`
	FeeCollector     solana.Pubkey `json:"fee_collector"`
	MakerFeeBps      uint16        `json:"maker_fee_bps"`
	TakerFeeBps      uint16        `json:"taker_fee_bps"`
	IncludeSellerFee bool          `json:"include_seller_fee"`
	RoyaltyFeeShare  uint64        `json:"royalty_fee_share"`
	BuySideFeeShare  uint64        `json:"buy_side_fee_share"`
}

func (a *app) managersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "managers",
		Short: "List the payment managers in the registry",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if strings.TrimSpace(a.registry) == "" {
				return errors.New("--registry required")
			}
			reg, err := deployments.Load(a.registry)
			if err != nil {
				return err
			}
			out := make([]managerJSON, 0, len(reg.Managers))
			for _, m := range reg.Managers {
				cfg, err := m.FeeConfig()
				if err != nil {
					return err
				}
				addr, _, err := m.Address()
				if err != nil {
					return err
				}
				out = append(out, managerJSON{
					Name:             m.Name,
					Cluster:          m.Cluster,
					Address:          addr,
					FeeCollector:     solana.Pubkey(cfg.FeeCollector),
					MakerFeeBps:      uint16(cfg.MakerFeeBps),
					TakerFeeBps:      uint16(cfg.TakerFeeBps),
					IncludeSellerFee: cfg.IncludeSellerFee,
					RoyaltyFeeShare:  cfg.RoyaltyShare(),
					BuySideFeeShare:  cfg.BuySideShare(),
				})
			}
			return writeJSON(a.stdout, out)
		},
	}
}

type inspectJSON struct {
	FeePayer       solana.Pubkey        `json:"fee_payer"`
	Transfers      []parsedTransferJSON `json:"transfers"`
	Total          amountJSON           `json:"total"`
	TokenTransfers []tokenTransferJSON  `json:"token_transfers"`
}

type parsedTransferJSON struct {
	From   solana.Pubkey `json:"from"`
	To     solana.Pubkey `json:"to"`
	Amount amountJSON    `json:"amount"`
}

// Token amounts are raw: decimals live on the mint, which the transaction
// does not name.
type tokenTransferJSON struct {
	Source      solana.Pubkey `json:"source"`
	Destination solana.Pubkey `json:"destination"`
	Authority   solana.Pubkey `json:"authority"`
	Amount      uint64        `json:"amount"`
}

func (a *app) inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <tx-base64>",
		Short: "List the lamport and token transfers in a signed payment transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			msg, err := solana.ParseLegacyTransaction(raw)
			if err != nil {
				return err
			}
			transfers, err := msg.SystemTransfers()
			if err != nil {
				return err
			}
			tokenTransfers, err := msg.TokenTransfers()
			if err != nil {
				return err
			}
			out := inspectJSON{Transfers: []parsedTransferJSON{}, TokenTransfers: []tokenTransferJSON{}}
			if len(msg.AccountKeys) > 0 {
				out.FeePayer = msg.AccountKeys[0]
			}
			var total uint64
			for _, t := range transfers {
				if total+t.Lamports < total {
					return errors.New("transfer total overflows u64")
				}
				total += t.Lamports
				out.Transfers = append(out.Transfers, parsedTransferJSON{From: t.From, To: t.To, Amount: solUnit.amount(t.Lamports)})
			}
			out.Total = solUnit.amount(total)
			for _, t := range tokenTransfers {
				out.TokenTransfers = append(out.TokenTransfers, tokenTransferJSON{
					Source:      t.Source,
					Destination: t.Destination,
					Authority:   t.Authority,
					Amount:      t.Amount,
				})
			}
			return writeJSON(a.stdout, out)
		},
	}
}
