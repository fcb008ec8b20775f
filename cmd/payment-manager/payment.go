package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Abdullah1738/payment-manager/offchain/deployments"
	"github.com/Abdullah1738/payment-manager/offchain/metaplex"
	"github.com/Abdullah1738/payment-manager/offchain/payments"
	"github.com/Abdullah1738/payment-manager/offchain/solana"
	"github.com/Abdullah1738/payment-manager/offchain/solanarpc"
	"github.com/Abdullah1738/payment-manager/protocol"
)

type paymentFlags struct {
	amount    string
	amountSOL string
	amountUI  string
	payer     string
	target    string
	mint      string
	buySide   string
	creators  []string

	metadataB64   string
	fetchMetadata bool
	rpcURL        string

	paymentMint      string
	paymentDecimals  int
	withoutRoyalties bool
}

// register adds the payment flags. Online commands sign as the payer and
// always read metadata from the cluster.
func (f *paymentFlags) register(cmd *cobra.Command, online bool) {
	fs := cmd.Flags()
	fs.StringVar(&f.amount, "amount", "", "Payment amount in base units (lamports, or token base units with --payment-mint)")
	fs.StringVar(&f.amountUI, "amount-ui", "", "Payment amount in whole units of the payment currency")
	fs.StringVar(&f.amountSOL, "amount-sol", "", "Payment amount in SOL (native payments only)")
	fs.StringVar(&f.paymentMint, "payment-mint", "", "SPL mint to pay in (default native SOL)")
	fs.IntVar(&f.paymentDecimals, "payment-decimals", -1, "Decimals of --payment-mint; read from the mint account when unset")
	fs.BoolVar(&f.withoutRoyalties, "without-royalties", false, "Split the maker and taker fees only: no creator or buy-side payouts")
	if !online {
		fs.StringVar(&f.payer, "payer", "", "Payer pubkey")
	}
	fs.StringVar(&f.target, "target", "", "Payment target (seller) pubkey")
	fs.StringVar(&f.mint, "mint", "", "Asset mint; enables royalties")
	fs.StringVar(&f.buySide, "buy-side", "", "Buy-side fee recipient")
	fs.StringArrayVar(&f.creators, "creator-recipient", nil, "Recipient for each creator with a non-zero share, in metadata order (repeatable; defaults to the creators)")
	fs.StringVar(&f.metadataB64, "metadata", "", "Base64 metadata account data for --mint (offline)")
	fs.BoolVar(&f.fetchMetadata, "fetch-metadata", online, "Fetch the --mint metadata account over RPC")
	fs.StringVar(&f.rpcURL, "rpc-url", "", "Solana RPC URL (defaults to the manager rpc_url, then SOLANA_RPC_URL)")
}

func rpcClient(flagURL string, m *deployments.Manager) (*solanarpc.Client, error) {
	if u := strings.TrimSpace(flagURL); u != "" {
		return solanarpc.New(u, nil), nil
	}
	if m != nil && strings.TrimSpace(m.RPCURL) != "" {
		return solanarpc.New(m.RPCURL, nil), nil
	}
	return solanarpc.ClientFromEnv()
}

// needsRPC reports whether building the payment reads from the cluster.
func (f *paymentFlags) needsRPC() bool {
	return f.fetchMetadata || (strings.TrimSpace(f.paymentMint) != "" && f.paymentDecimals < 0)
}

// currency resolves the payment unit. Without --payment-decimals the mint
// account is read over rpc.
func (f *paymentFlags) currency(ctx context.Context, rpc *solanarpc.Client) (unit, error) {
	if strings.TrimSpace(f.paymentMint) == "" {
		if f.paymentDecimals >= 0 {
			return unit{}, errors.New("--payment-decimals requires --payment-mint")
		}
		return solUnit, nil
	}
	mint, err := parsePubkeyFlag("payment-mint", f.paymentMint)
	if err != nil {
		return unit{}, err
	}
	switch {
	case f.paymentDecimals > 255:
		return unit{}, fmt.Errorf("--payment-decimals: %d out of range", f.paymentDecimals)
	case f.paymentDecimals >= 0:
		return tokenUnit(mint, uint8(f.paymentDecimals)), nil
	case rpc == nil:
		return unit{}, errors.New("--payment-mint requires --payment-decimals or an RPC URL")
	}
	info, err := rpc.AccountInfo(ctx, mint)
	if err != nil {
		return unit{}, fmt.Errorf("fetch payment mint %s: %w", mint, err)
	}
	if !info.Exists || info.Owner != solana.TokenProgramID {
		return unit{}, fmt.Errorf("%w: %s is not an SPL token mint", solana.ErrInvalidMintAccount, mint)
	}
	decimals, err := solana.MintDecimals(info.Data)
	if err != nil {
		return unit{}, err
	}
	return tokenUnit(mint, decimals), nil
}

func (f *paymentFlags) uiAmount(u unit) (string, error) {
	sol, ui := strings.TrimSpace(f.amountSOL), strings.TrimSpace(f.amountUI)
	switch {
	case sol != "" && ui != "":
		return "", errors.New("use one of --amount-sol or --amount-ui")
	case sol != "" && u.Mint != nil:
		return "", errors.New("--amount-sol is for native payments; use --amount-ui with --payment-mint")
	case sol != "":
		return sol, nil
	default:
		return ui, nil
	}
}

// build assembles a Payment in u from flags. rpc may be nil unless metadata
// has to be fetched.
func (f *paymentFlags) build(ctx context.Context, cfg protocol.FeeConfig, payer solana.Pubkey, u unit, rpc *solanarpc.Client) (payments.Payment, error) {
	ui, err := f.uiAmount(u)
	if err != nil {
		return payments.Payment{}, err
	}
	amt, err := resolveAmount(f.amount, ui, u)
	if err != nil {
		return payments.Payment{}, err
	}
	if f.withoutRoyalties {
		switch {
		case f.buySide != "":
			return payments.Payment{}, errors.New("--buy-side has no effect with --without-royalties")
		case f.mint != "" || f.metadataB64 != "" || len(f.creators) > 0:
			return payments.Payment{}, errors.New("royalty flags have no effect with --without-royalties")
		}
	}
	target, err := parsePubkeyFlag("target", f.target)
	if err != nil {
		return payments.Payment{}, err
	}
	p := payments.Payment{
		Amount:        amt,
		Payer:         payer,
		PaymentTarget: target,
		FeeCollector:  solana.Pubkey(cfg.FeeCollector),
	}
	if strings.TrimSpace(f.buySide) != "" {
		bs, err := parsePubkeyFlag("buy-side", f.buySide)
		if err != nil {
			return payments.Payment{}, err
		}
		p.BuySideRecipient = &bs
	}

	if strings.TrimSpace(f.mint) != "" {
		if p.Mint, err = parsePubkeyFlag("mint", f.mint); err != nil {
			return payments.Payment{}, err
		}
	}
	addr, _, err := metaplex.FindMetadataAddress(p.Mint)
	if err != nil {
		return payments.Payment{}, err
	}
	p.Metadata.Address = addr

	switch {
	case f.metadataB64 != "" && f.fetchMetadata:
		return payments.Payment{}, fmt.Errorf("use one of --metadata or --fetch-metadata")
	case f.metadataB64 != "":
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(f.metadataB64))
		if err != nil {
			return payments.Payment{}, fmt.Errorf("--metadata: %w", err)
		}
		p.Metadata.Owner = metaplex.ProgramID
		p.Metadata.Data = data
	case f.fetchMetadata && !p.Mint.IsZero():
		if rpc == nil {
			return payments.Payment{}, fmt.Errorf("--fetch-metadata requires an RPC URL")
		}
		info, err := rpc.AccountInfo(ctx, addr)
		if err != nil {
			return payments.Payment{}, fmt.Errorf("fetch metadata %s: %w", addr, err)
		}
		if info.Exists {
			p.Metadata.Owner = info.Owner
			p.Metadata.Data = info.Data
		}
	}

	if len(f.creators) > 0 {
		if p.CreatorRecipients, err = parsePubkeyList("creator-recipient", f.creators); err != nil {
			return payments.Payment{}, err
		}
	} else if len(p.Metadata.Data) > 0 {
		// Undecodable data is reported by the resolver.
		if md, err := metaplex.Decode(p.Metadata.Data); err == nil {
			p.CreatorRecipients = md.CreatorRecipients()
		}
	}
	return p, nil
}

type transferJSON struct {
	Kind   protocol.TransferKind `json:"kind"`
	To     solana.Pubkey         `json:"to"`
	Amount amountJSON            `json:"amount"`
}

type planJSON struct {
	Manager  string       `json:"manager,omitempty"`
	Mode     string       `json:"mode"`
	Currency currencyJSON `json:"currency"`

	Amount           amountJSON `json:"amount"`
	MakerFee         amountJSON `json:"maker_fee"`
	TakerFee         amountJSON `json:"taker_fee"`
	SellerFee        amountJSON `json:"seller_fee"`
	TotalCreatorsFee amountJSON `json:"total_creators_fee"`
	FeesPaidOut      amountJSON `json:"fees_paid_out"`
	BuySideFee       amountJSON `json:"buy_side_fee"`
	FeeCollector     amountJSON `json:"fee_collector"`
	Target           amountJSON `json:"target"`
	PayerDebit       amountJSON `json:"payer_debit"`

	Transfers []transferJSON `json:"transfers"`
}

const (
	modeRoyalties = "royalties"
	modeManaged   = "managed"
)

func (f *paymentFlags) mode() string {
	if f.withoutRoyalties {
		return modeManaged
	}
	return modeRoyalties
}

// apply runs the payment through ex in the mode the flags select.
func (f *paymentFlags) apply(ctx context.Context, ex *payments.Executor, p payments.Payment) (protocol.PayoutPlan, error) {
	if f.withoutRoyalties {
		return ex.ApplyManagedPayment(ctx, p)
	}
	return ex.ApplyPayment(ctx, p)
}

func newPlanJSON(manager, mode string, u unit, plan protocol.PayoutPlan) (planJSON, error) {
	debit, err := plan.Debit()
	if err != nil {
		return planJSON{}, err
	}
	out := planJSON{
		Manager:          manager,
		Mode:             mode,
		Currency:         u.currency(),
		Amount:           u.amount(plan.Amount),
		MakerFee:         u.amount(plan.Fees.MakerFee),
		TakerFee:         u.amount(plan.Fees.TakerFee),
		SellerFee:        u.amount(plan.SellerFee),
		TotalCreatorsFee: u.amount(plan.TotalCreatorsFee),
		FeesPaidOut:      u.amount(plan.FeesPaidOut),
		BuySideFee:       u.amount(plan.BuySideFee),
		FeeCollector:     u.amount(plan.FeeCollectorAmount),
		Target:           u.amount(plan.TargetAmount),
		PayerDebit:       u.amount(debit),
		Transfers:        []transferJSON{},
	}
	for _, t := range plan.Transfers() {
		out.Transfers = append(out.Transfers, transferJSON{
			Kind:   t.Kind,
			To:     solana.Pubkey(t.To),
			Amount: u.amount(t.Amount),
		})
	}
	return out, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func managerName(m *deployments.Manager) string {
	if m == nil {
		return ""
	}
	return m.Name
}

func logFields(p payments.Payment) []zap.Field {
	return []zap.Field{
		zap.Stringer("payer", p.Payer),
		zap.Stringer("target", p.PaymentTarget),
		zap.Stringer("mint", p.Mint),
		zap.Uint64("amount", p.Amount),
	}
}
