package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Abdullah1738/payment-manager/offchain/deployments"
	"github.com/Abdullah1738/payment-manager/offchain/solana"
	"github.com/Abdullah1738/payment-manager/protocol"
)

const registryEnv = "PAYMENT_MANAGER_REGISTRY"

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type app struct {
	stdout io.Writer
	stderr io.Writer

	logLevel string
	dev      bool
	log      *zap.Logger

	registry string
	manager  string

	feeCollector     string
	makerBps         uint16
	takerBps         uint16
	includeSellerFee bool
	royaltyFeeShare  int64
	buySideFeeShare  int64
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "payment-manager",
		Short:         "Compute and execute marketplace fee and royalty payouts on Solana",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log, err := newLogger(a.logLevel, a.dev, a.stderr)
			if err != nil {
				return err
			}
			a.log = log
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.logLevel, "log-level", "warn", "debug|info|warn|error")
	pf.BoolVar(&a.dev, "dev", false, "Human-readable development logs")
	pf.StringVar(&a.registry, "registry", os.Getenv(registryEnv), "Payment manager registry JSON (env "+registryEnv+")")
	pf.StringVar(&a.manager, "manager", "", "Manager name in the registry")
	pf.StringVar(&a.feeCollector, "fee-collector", "", "Fee collector (used without --manager)")
	pf.Uint16Var(&a.makerBps, "maker-bps", 0, "Maker fee in basis points (used without --manager)")
	pf.Uint16Var(&a.takerBps, "taker-bps", 0, "Taker fee in basis points (used without --manager)")
	pf.BoolVar(&a.includeSellerFee, "include-seller-fee", false, "Add the asset seller fee to the royalty pool (used without --manager)")
	pf.Int64Var(&a.royaltyFeeShare, "royalty-fee-share", -1, "Bps of maker+taker fees paid to creators; -1 keeps the default")
	pf.Int64Var(&a.buySideFeeShare, "buy-side-fee-share", -1, "Bps of the amount carved out for the buy side; -1 keeps the default")

	root.AddCommand(
		a.quoteCmd(),
		a.payCmd(),
		a.pdaCmd(),
		a.managersCmd(),
		a.inspectCmd(),
	)
	return root
}

func newLogger(level string, dev bool, w io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("--log-level: %w", err)
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	enc := zapcore.NewJSONEncoder(encCfg)
	if dev {
		devCfg := zap.NewDevelopmentEncoderConfig()
		devCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(devCfg)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(w), lvl)
	return zap.New(core).With(zap.String("service", "payment-manager")), nil
}

// loadManager returns the named registry entry, or nil when no --manager was
// given.
func (a *app) loadManager() (*deployments.Manager, error) {
	if strings.TrimSpace(a.manager) == "" {
		return nil, nil
	}
	if strings.TrimSpace(a.registry) == "" {
		return nil, errors.New("--manager requires --registry")
	}
	reg, err := deployments.Load(a.registry)
	if err != nil {
		return nil, err
	}
	m, err := reg.FindByName(a.manager)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (a *app) feeConfig() (protocol.FeeConfig, *deployments.Manager, error) {
	m, err := a.loadManager()
	if err != nil {
		return protocol.FeeConfig{}, nil, err
	}
	if m != nil {
		cfg, err := m.FeeConfig()
		return cfg, m, err
	}

	if strings.TrimSpace(a.feeCollector) == "" {
		return protocol.FeeConfig{}, nil, errors.New("--fee-collector or --manager required")
	}
	collector, err := solana.ParsePubkey(a.feeCollector)
	if err != nil {
		return protocol.FeeConfig{}, nil, fmt.Errorf("--fee-collector: %w", err)
	}
	cfg := protocol.FeeConfig{
		MakerFeeBps:      protocol.FeeBps(a.makerBps),
		TakerFeeBps:      protocol.FeeBps(a.takerBps),
		FeeCollector:     protocol.SolanaPubkey(collector),
		IncludeSellerFee: a.includeSellerFee,
	}
	if a.royaltyFeeShare >= 0 {
		v := uint64(a.royaltyFeeShare)
		cfg.RoyaltyFeeShare = &v
	}
	if a.buySideFeeShare >= 0 {
		v := uint64(a.buySideFeeShare)
		cfg.BuySideFeeShare = &v
	}
	if err := cfg.Validate(); err != nil {
		return protocol.FeeConfig{}, nil, err
	}
	return cfg, nil, nil
}

func parsePubkeyFlag(name, v string) (solana.Pubkey, error) {
	if strings.TrimSpace(v) == "" {
		return solana.Pubkey{}, fmt.Errorf("--%s required", name)
	}
	pk, err := solana.ParsePubkey(v)
	if err != nil {
		return solana.Pubkey{}, fmt.Errorf("--%s: %w", name, err)
	}
	return pk, nil
}

func parsePubkeyList(name string, vs []string) ([]solana.Pubkey, error) {
	out := make([]solana.Pubkey, 0, len(vs))
	for _, v := range vs {
		pk, err := parsePubkeyFlag(name, v)
		if err != nil {
			return nil, err
		}
		out = append(out, pk)
	}
	return out, nil
}
