package protocol

import "fmt"

type TransferKind string

const (
	TransferCreator      TransferKind = "creator"
	TransferBuySide      TransferKind = "buy_side"
	TransferFeeCollector TransferKind = "fee_collector"
	TransferTarget       TransferKind = "target"
)

type Transfer struct {
	Kind   TransferKind
	To     SolanaPubkey
	Amount uint64
}

// PayoutPlan is the fully computed outcome of one payment. Every amount is
// final before the first transfer is issued.
type PayoutPlan struct {
	Amount uint64
	Fees   FeeSchedule

	SellerFee        uint64
	TotalCreatorsFee uint64
	TotalFees        uint64
	CreatorPayouts   []CreatorPayout
	FeesPaidOut      uint64

	BuySideFee       uint64
	BuySideRecipient *SolanaPubkey
	BuySideAmount    uint64

	FeeCollector       SolanaPubkey
	FeeCollectorAmount uint64

	PaymentTarget SolanaPubkey
	TargetAmount  uint64
}

// BuildPayoutPlan runs the fee schedule, royalty apportionment and
// settlement for req. It performs no side effects, so any error means
// nothing has moved.
func BuildPayoutPlan(cfg FeeConfig, req PaymentRequest, meta *RoyaltyMetadata) (PayoutPlan, error) {
	if err := checkRequest(cfg, req); err != nil {
		return PayoutPlan{}, err
	}

	fees, err := ComputeFeeSchedule(req.Amount, cfg.MakerFeeBps, cfg.TakerFeeBps)
	if err != nil {
		return PayoutPlan{}, err
	}
	roy, err := ApportionRoyalties(req.Amount, fees.TotalFees, cfg, meta, req.CreatorRecipients)
	if err != nil {
		return PayoutPlan{}, err
	}
	st, err := Settle(req.Amount, fees.TakerFee, roy.TotalFees, roy.FeesPaidOut, req.BuySideRecipient != nil, cfg.BuySideShare())
	if err != nil {
		return PayoutPlan{}, err
	}

	plan := PayoutPlan{
		Amount:             req.Amount,
		Fees:               fees,
		SellerFee:          roy.SellerFee,
		TotalCreatorsFee:   roy.TotalCreatorsFee,
		TotalFees:          roy.TotalFees,
		CreatorPayouts:     roy.Payouts,
		FeesPaidOut:        roy.FeesPaidOut,
		BuySideFee:         st.BuySideFee,
		BuySideAmount:      st.BuySideAmount,
		FeeCollector:       cfg.FeeCollector,
		FeeCollectorAmount: st.FeeCollectorAmount,
		PaymentTarget:      req.PaymentTarget,
		TargetAmount:       st.TargetAmount,
	}
	if req.BuySideRecipient != nil {
		r := *req.BuySideRecipient
		plan.BuySideRecipient = &r
	}
	if err := plan.CheckConservation(); err != nil {
		return PayoutPlan{}, err
	}
	return plan, nil
}

// Transfers lists the plan's fund movements in execution order: creators in
// metadata order, buy-side, fee collector, target. Creator and fee collector
// transfers of zero are omitted. The buy-side transfer is issued whenever a
// recipient is set and the target transfer always, even when they carry zero.
func (p PayoutPlan) Transfers() []Transfer {
	out := make([]Transfer, 0, len(p.CreatorPayouts)+3)
	for _, c := range p.CreatorPayouts {
		out = append(out, Transfer{Kind: TransferCreator, To: c.Recipient, Amount: c.Amount})
	}
	if p.BuySideRecipient != nil {
		out = append(out, Transfer{Kind: TransferBuySide, To: *p.BuySideRecipient, Amount: p.BuySideAmount})
	}
	if p.FeeCollectorAmount > 0 {
		out = append(out, Transfer{Kind: TransferFeeCollector, To: p.FeeCollector, Amount: p.FeeCollectorAmount})
	}
	return append(out, Transfer{Kind: TransferTarget, To: p.PaymentTarget, Amount: p.TargetAmount})
}

// BuildManagedPayoutPlan splits a payment by maker and taker fee alone:
// total_fees to the fee collector and amount + taker_fee - total_fees to
// the target. There are no royalties and no buy-side fee, so creator and
// buy-side recipients on req are ignored.
func BuildManagedPayoutPlan(cfg FeeConfig, req PaymentRequest) (PayoutPlan, error) {
	if err := checkRequest(cfg, req); err != nil {
		return PayoutPlan{}, err
	}
	fees, err := ComputeFeeSchedule(req.Amount, cfg.MakerFeeBps, cfg.TakerFeeBps)
	if err != nil {
		return PayoutPlan{}, err
	}
	target, err := checkedAdd(req.Amount, fees.TakerFee)
	if err != nil {
		return PayoutPlan{}, fmt.Errorf("target amount: %w", err)
	}
	if target, err = checkedSub(target, fees.TotalFees); err != nil {
		return PayoutPlan{}, fmt.Errorf("target amount: %w", err)
	}

	plan := PayoutPlan{
		Amount:             req.Amount,
		Fees:               fees,
		TotalFees:          fees.TotalFees,
		FeeCollector:       cfg.FeeCollector,
		FeeCollectorAmount: fees.TotalFees,
		PaymentTarget:      req.PaymentTarget,
		TargetAmount:       target,
	}
	if err := plan.CheckConservation(); err != nil {
		return PayoutPlan{}, err
	}
	return plan, nil
}

func checkRequest(cfg FeeConfig, req PaymentRequest) error {
	if req.FeeCollector != cfg.FeeCollector {
		return fmt.Errorf("%w: got %s want %s", ErrInvalidFeeCollector, req.FeeCollector, cfg.FeeCollector)
	}
	return cfg.Validate()
}

// Debit is the total the payer is charged across all transfers.
func (p PayoutPlan) Debit() (uint64, error) {
	var total uint64
	for _, t := range p.Transfers() {
		var err error
		if total, err = checkedAdd(total, t.Amount); err != nil {
			return 0, fmt.Errorf("plan debit: %w", err)
		}
	}
	return total, nil
}

// CheckConservation verifies that the transfers debit the payer exactly
// amount + taker_fee.
func (p PayoutPlan) CheckConservation() error {
	want, err := checkedAdd(p.Amount, p.Fees.TakerFee)
	if err != nil {
		return fmt.Errorf("plan debit: %w", err)
	}
	got, err := p.Debit()
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: transfers=%d want=%d", ErrConservationViolated, got, want)
	}
	return nil
}
