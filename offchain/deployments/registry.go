package deployments

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Abdullah1738/payment-manager/offchain/solana"
	"github.com/Abdullah1738/payment-manager/protocol"
)

var ErrNotFound = errors.New("payment manager not found")

// DefaultProgramID owns the payment-manager accounts.
var DefaultProgramID = solana.MustParsePubkey("pmvYY6Wgvpe3DEj3UX1FcRpMx43sMLYLJrFTVGcqpdn")

const managerSeed = "payment-manager"

const SchemaVersion = 1

type Registry struct {
	SchemaVersion int       `json:"schema_version"`
	Managers      []Manager `json:"managers"`
}

type Manager struct {
	Name    string `json:"name"`
	Cluster string `json:"cluster,omitempty"`
	RPCURL  string `json:"rpc_url,omitempty"`

	// ProgramID defaults to DefaultProgramID.
	ProgramID string `json:"program_id,omitempty"`

	FeeCollector     string `json:"fee_collector"`
	MakerFeeBps      uint16 `json:"maker_fee_bps"`
	TakerFeeBps      uint16 `json:"taker_fee_bps"`
	IncludeSellerFee bool   `json:"include_seller_fee,omitempty"`

	RoyaltyFeeShare *uint64 `json:"royalty_fee_share,omitempty"`
	BuySideFeeShare *uint64 `json:"buy_side_fee_share,omitempty"`
}

func Load(path string) (Registry, error) {
	var out Registry
	path = strings.TrimSpace(path)
	if path == "" {
		return Registry{}, errors.New("path required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Registry{}, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return Registry{}, err
	}
	if out.SchemaVersion != SchemaVersion {
		return Registry{}, fmt.Errorf("unsupported schema_version %d", out.SchemaVersion)
	}
	return out, nil
}

func (r Registry) FindByName(name string) (Manager, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Manager{}, errors.New("name required")
	}
	for _, m := range r.Managers {
		if m.Name == name {
			return m, nil
		}
	}
	return Manager{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}

func (m Manager) Program() (solana.Pubkey, error) {
	if strings.TrimSpace(m.ProgramID) == "" {
		return DefaultProgramID, nil
	}
	pk, err := solana.ParsePubkey(m.ProgramID)
	if err != nil {
		return solana.Pubkey{}, fmt.Errorf("program_id: %w", err)
	}
	return pk, nil
}

// Address is the manager account PDA, seeded by the manager name.
func (m Manager) Address() (solana.Pubkey, uint8, error) {
	program, err := m.Program()
	if err != nil {
		return solana.Pubkey{}, 0, err
	}
	return solana.FindProgramAddress([][]byte{[]byte(managerSeed), []byte(m.Name)}, program)
}

func (m Manager) FeeConfig() (protocol.FeeConfig, error) {
	collector, err := solana.ParsePubkey(m.FeeCollector)
	if err != nil {
		return protocol.FeeConfig{}, fmt.Errorf("fee_collector: %w", err)
	}
	cfg := protocol.FeeConfig{
		MakerFeeBps:      protocol.FeeBps(m.MakerFeeBps),
		TakerFeeBps:      protocol.FeeBps(m.TakerFeeBps),
		FeeCollector:     protocol.SolanaPubkey(collector),
		IncludeSellerFee: m.IncludeSellerFee,
		RoyaltyFeeShare:  m.RoyaltyFeeShare,
		BuySideFeeShare:  m.BuySideFeeShare,
	}
	if err := cfg.Validate(); err != nil {
		return protocol.FeeConfig{}, fmt.Errorf("manager %s: %w", m.Name, err)
	}
	return cfg, nil
}
