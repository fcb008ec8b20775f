package protocol

import "fmt"

type CreatorPayout struct {
	Creator   SolanaPubkey
	Recipient SolanaPubkey
	Share     uint8
	Amount    uint64
}

type Royalties struct {
	SellerFee        uint64
	TotalCreatorsFee uint64
	// TotalFees is maker+taker plus the seller fee.
	TotalFees   uint64
	Payouts     []CreatorPayout
	FeesPaidOut uint64
}

// ApportionRoyalties computes the seller fee and the creator pool and splits
// the pool across creators in metadata order.
//
// Each creator with a non-zero share gets floor(pool*share/100), plus one
// unit while the shared remainder counter lasts. The counter starts at
// pool - floor(sum(pool*share)/100), so it is zero whenever shares sum to
// 100 and only hands out units for metadata whose shares sum below 100.
// Units the floors leave behind stay with the fee collector.
//
// Zero-share creators are skipped: they consume neither a recipient nor a
// remainder unit. A nil meta yields zero royalties.
func ApportionRoyalties(amount, totalFees uint64, cfg FeeConfig, meta *RoyaltyMetadata, recipients []SolanaPubkey) (Royalties, error) {
	out := Royalties{TotalFees: totalFees}
	if meta == nil {
		return out, nil
	}

	var sellerFee uint64
	if cfg.IncludeSellerFee {
		fee, err := applyBps(amount, uint64(meta.SellerFeeBps))
		if err != nil {
			return Royalties{}, fmt.Errorf("seller fee: %w", err)
		}
		sellerFee = fee
	}

	pool, err := applyBps(totalFees, cfg.RoyaltyShare())
	if err != nil {
		return Royalties{}, fmt.Errorf("creators fee: %w", err)
	}
	if pool, err = checkedAdd(pool, sellerFee); err != nil {
		return Royalties{}, fmt.Errorf("creators fee: %w", err)
	}
	if out.TotalFees, err = checkedAdd(totalFees, sellerFee); err != nil {
		return Royalties{}, fmt.Errorf("total fees: %w", err)
	}
	out.SellerFee = sellerFee
	out.TotalCreatorsFee = pool

	var productSum uint64
	for _, c := range meta.Creators {
		p, err := checkedMul(pool, uint64(c.Share))
		if err != nil {
			return Royalties{}, fmt.Errorf("creator product: %w", err)
		}
		if productSum, err = checkedAdd(productSum, p); err != nil {
			return Royalties{}, fmt.Errorf("creator product sum: %w", err)
		}
	}
	remainder, err := checkedSub(pool, productSum/creatorShareDivisor)
	if err != nil {
		return Royalties{}, fmt.Errorf("creators remainder: %w", err)
	}

	next := 0
	for i, c := range meta.Creators {
		if c.Share == 0 {
			continue
		}
		if next >= len(recipients) {
			return Royalties{}, fmt.Errorf("%w: recipient for creator %d (%s)", ErrMissingAccount, i, c.Address)
		}
		recipient := recipients[next]
		next++

		fee, err := mulDiv(pool, uint64(c.Share), creatorShareDivisor)
		if err != nil {
			return Royalties{}, fmt.Errorf("creator %d fee: %w", i, err)
		}
		if remainder > 0 {
			if fee, err = checkedAdd(fee, 1); err != nil {
				return Royalties{}, fmt.Errorf("creator %d fee: %w", i, err)
			}
			remainder--
		}
		if fee == 0 {
			continue
		}
		if out.FeesPaidOut, err = checkedAdd(out.FeesPaidOut, fee); err != nil {
			return Royalties{}, fmt.Errorf("fees paid out: %w", err)
		}
		out.Payouts = append(out.Payouts, CreatorPayout{
			Creator:   c.Address,
			Recipient: recipient,
			Share:     c.Share,
			Amount:    fee,
		})
	}
	return out, nil
}
