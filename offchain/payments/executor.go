package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Abdullah1738/payment-manager/offchain/solana"
	"github.com/Abdullah1738/payment-manager/protocol"
)

// Transferer moves amount base units of the payment currency (lamports, or
// token units for an SPL payment) from one account to another. Each call is
// atomic on its own; atomicity across calls is the caller's transaction
// boundary.
type Transferer interface {
	Transfer(ctx context.Context, from, to solana.Pubkey, amount uint64) error
}

type Payment struct {
	Amount        uint64
	Payer         solana.Pubkey
	PaymentTarget solana.Pubkey
	FeeCollector  solana.Pubkey

	Mint     solana.Pubkey
	Metadata MetadataAccount

	BuySideRecipient *solana.Pubkey
	// CreatorRecipients lines up with the metadata creators that have a
	// non-zero share.
	CreatorRecipients []solana.Pubkey
}

type TransferError struct {
	Index  int
	Kind   protocol.TransferKind
	To     solana.Pubkey
	Amount uint64
	Err    error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s: transfer %d (%s) of %d to %s: %v",
		protocol.ErrTransferFailed, e.Index, e.Kind, e.Amount, e.To, e.Err)
}

func (e *TransferError) Unwrap() []error { return []error{protocol.ErrTransferFailed, e.Err} }

type Executor struct {
	cfg      protocol.FeeConfig
	transfer Transferer
	resolver MetadataResolver
	log      *zap.Logger
}

type Option func(*Executor)

func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.log = l
		}
	}
}

func WithResolver(r MetadataResolver) Option {
	return func(e *Executor) {
		if r != nil {
			e.resolver = r
		}
	}
}

func NewExecutor(cfg protocol.FeeConfig, t Transferer, opts ...Option) (*Executor, error) {
	if t == nil {
		return nil, errors.New("nil transferer")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Executor{
		cfg:      cfg,
		transfer: t,
		resolver: MetaplexResolver{},
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Plan verifies the fee collector and metadata and computes the payout plan
// without moving funds.
func (e *Executor) Plan(p Payment) (protocol.PayoutPlan, error) {
	if protocol.SolanaPubkey(p.FeeCollector) != e.cfg.FeeCollector {
		return protocol.PayoutPlan{}, fmt.Errorf("%w: got %s", protocol.ErrInvalidFeeCollector, p.FeeCollector)
	}
	meta, err := e.resolver.Resolve(p.Mint, p.Metadata)
	if err != nil {
		return protocol.PayoutPlan{}, err
	}
	return protocol.BuildPayoutPlan(e.cfg, toRequest(p), meta)
}

// PlanManaged computes a plain maker/taker split for p. Metadata, creator
// and buy-side fields are ignored.
func (e *Executor) PlanManaged(p Payment) (protocol.PayoutPlan, error) {
	return protocol.BuildManagedPayoutPlan(e.cfg, toRequest(p))
}

// ApplyPayment computes the plan for p and issues its transfers in order.
// Nothing moves unless the whole plan computes and conserves funds. The
// first failed transfer aborts the rest; earlier transfers are not undone.
func (e *Executor) ApplyPayment(ctx context.Context, p Payment) (protocol.PayoutPlan, error) {
	return e.apply(ctx, p, "royalties", e.Plan)
}

// ApplyManagedPayment is ApplyPayment for the plain maker/taker split.
func (e *Executor) ApplyManagedPayment(ctx context.Context, p Payment) (protocol.PayoutPlan, error) {
	return e.apply(ctx, p, "managed", e.PlanManaged)
}

func (e *Executor) apply(ctx context.Context, p Payment, mode string, plan func(Payment) (protocol.PayoutPlan, error)) (protocol.PayoutPlan, error) {
	log := e.log.With(
		zap.String("invocation_id", uuid.NewString()),
		zap.String("mode", mode),
		zap.Stringer("payer", p.Payer),
		zap.Stringer("mint", p.Mint),
	)
	log.Debug("payment.start", zap.Uint64("amount", p.Amount))

	pl, err := plan(p)
	if err != nil {
		log.Warn("payment.rejected", zap.Error(err))
		return protocol.PayoutPlan{}, err
	}

	for i, t := range pl.Transfers() {
		to := solana.Pubkey(t.To)
		if err := e.transfer.Transfer(ctx, p.Payer, to, t.Amount); err != nil {
			terr := &TransferError{Index: i, Kind: t.Kind, To: to, Amount: t.Amount, Err: err}
			log.Error("payment.aborted",
				zap.Int("index", i),
				zap.String("kind", string(t.Kind)),
				zap.Stringer("to", to),
				zap.Uint64("amount", t.Amount),
				zap.Error(err),
			)
			return protocol.PayoutPlan{}, terr
		}
		log.Info("payment.transfer",
			zap.Int("index", i),
			zap.String("kind", string(t.Kind)),
			zap.Stringer("to", to),
			zap.Uint64("amount", t.Amount),
		)
	}

	log.Info("payment.done",
		zap.Uint64("amount", pl.Amount),
		zap.Uint64("taker_fee", pl.Fees.TakerFee),
		zap.Uint64("fees_paid_out", pl.FeesPaidOut),
		zap.Uint64("fee_collector", pl.FeeCollectorAmount),
		zap.Uint64("target", pl.TargetAmount),
	)
	return pl, nil
}

func toRequest(p Payment) protocol.PaymentRequest {
	req := protocol.PaymentRequest{
		Amount:        p.Amount,
		Payer:         protocol.SolanaPubkey(p.Payer),
		PaymentTarget: protocol.SolanaPubkey(p.PaymentTarget),
		FeeCollector:  protocol.SolanaPubkey(p.FeeCollector),
	}
	if p.BuySideRecipient != nil {
		b := protocol.SolanaPubkey(*p.BuySideRecipient)
		req.BuySideRecipient = &b
	}
	for _, r := range p.CreatorRecipients {
		req.CreatorRecipients = append(req.CreatorRecipients, protocol.SolanaPubkey(r))
	}
	return req
}
