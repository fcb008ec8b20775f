package metaplex

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/Abdullah1738/payment-manager/offchain/solana"
	"github.com/Abdullah1738/payment-manager/protocol"
)

var ProgramID = solana.MustParsePubkey("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")

const (
	Prefix = "metadata"

	KeyMetadataV1 uint8 = 4

	maxCreators = 5
	// Borsh strings are length-prefixed; Metaplex caps uri at 200 bytes.
	maxStringLen = 256
)

var (
	ErrMetadataTruncated = errors.New("metadata truncated")
	ErrInvalidMetadata   = errors.New("invalid metadata")
)

type Creator struct {
	Address  solana.Pubkey
	Verified bool
	Share    uint8
}

// Metadata is the prefix of a token-metadata account up to and including
// the creator list. Trailing fields are ignored.
type Metadata struct {
	Key                  uint8
	UpdateAuthority      solana.Pubkey
	Mint                 solana.Pubkey
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	// Creators is nil when the account stores None.
	Creators []Creator
}

func Seeds(mint solana.Pubkey) [][]byte {
	return [][]byte{[]byte(Prefix), ProgramID[:], mint[:]}
}

func FindMetadataAddress(mint solana.Pubkey) (solana.Pubkey, uint8, error) {
	return solana.FindProgramAddress(Seeds(mint), ProgramID)
}

type reader struct {
	b   []byte
	off int
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.b) {
		return nil, fmt.Errorf("%w at offset %d", ErrMetadataTruncated, r.off)
	}
	out := r.b[r.off : r.off+n]
	r.off += n
	return out, nil
}

func (r *reader) u8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) bool() (bool, error) {
	v, err := r.u8()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: bool byte %d", ErrInvalidMetadata, v)
	}
}

func (r *reader) u16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) u32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) pubkey() (solana.Pubkey, error) {
	var pk solana.Pubkey
	b, err := r.take(32)
	if err != nil {
		return pk, err
	}
	copy(pk[:], b)
	return pk, nil
}

func (r *reader) str() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	if n > maxStringLen {
		return "", fmt.Errorf("%w: string length %d", ErrInvalidMetadata, n)
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	// On-chain strings are padded with NULs to their max length.
	return strings.TrimRight(string(b), "\x00"), nil
}

// Decode parses a token-metadata account.
func Decode(data []byte) (Metadata, error) {
	var m Metadata
	r := &reader{b: data}
	var err error

	if m.Key, err = r.u8(); err != nil {
		return Metadata{}, err
	}
	if m.Key != KeyMetadataV1 {
		return Metadata{}, fmt.Errorf("%w: account key %d", ErrInvalidMetadata, m.Key)
	}
	if m.UpdateAuthority, err = r.pubkey(); err != nil {
		return Metadata{}, err
	}
	if m.Mint, err = r.pubkey(); err != nil {
		return Metadata{}, err
	}
	if m.Name, err = r.str(); err != nil {
		return Metadata{}, err
	}
	if m.Symbol, err = r.str(); err != nil {
		return Metadata{}, err
	}
	if m.URI, err = r.str(); err != nil {
		return Metadata{}, err
	}
	if m.SellerFeeBasisPoints, err = r.u16(); err != nil {
		return Metadata{}, err
	}

	hasCreators, err := r.bool()
	if err != nil {
		return Metadata{}, err
	}
	if !hasCreators {
		return m, nil
	}
	n, err := r.u32()
	if err != nil {
		return Metadata{}, err
	}
	if n > maxCreators {
		return Metadata{}, fmt.Errorf("%w: %d creators", ErrInvalidMetadata, n)
	}
	m.Creators = make([]Creator, 0, n)
	for i := uint32(0); i < n; i++ {
		var c Creator
		if c.Address, err = r.pubkey(); err != nil {
			return Metadata{}, err
		}
		if c.Verified, err = r.bool(); err != nil {
			return Metadata{}, err
		}
		if c.Share, err = r.u8(); err != nil {
			return Metadata{}, err
		}
		m.Creators = append(m.Creators, c)
	}
	return m, nil
}

// Encode writes m in the layout Decode reads. Fields past the creator list
// are written as a non-mutable, unsold primary sale.
func Encode(m Metadata) []byte {
	out := make([]byte, 0, 1+32+32+4*3+len(m.Name)+len(m.Symbol)+len(m.URI)+2+1+4+len(m.Creators)*34+2)
	out = append(out, m.Key)
	out = append(out, m.UpdateAuthority[:]...)
	out = append(out, m.Mint[:]...)
	for _, s := range []string{m.Name, m.Symbol, m.URI} {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(s)))
		out = append(out, s...)
	}
	out = binary.LittleEndian.AppendUint16(out, m.SellerFeeBasisPoints)
	if m.Creators == nil {
		out = append(out, 0)
	} else {
		out = append(out, 1)
		out = binary.LittleEndian.AppendUint32(out, uint32(len(m.Creators)))
		for _, c := range m.Creators {
			out = append(out, c.Address[:]...)
			if c.Verified {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
			out = append(out, c.Share)
		}
	}
	// primary_sale_happened, is_mutable
	out = append(out, 0, 0)
	return out
}

// Royalty projects the metadata onto the fields the fee computation reads.
func (m Metadata) Royalty() *protocol.RoyaltyMetadata {
	out := &protocol.RoyaltyMetadata{SellerFeeBps: m.SellerFeeBasisPoints}
	for _, c := range m.Creators {
		out.Creators = append(out.Creators, protocol.Creator{
			Address: protocol.SolanaPubkey(c.Address),
			Share:   c.Share,
		})
	}
	return out
}

// CreatorRecipients lists the creators that take part in the royalty split:
// those with a non-zero share, in metadata order.
func (m Metadata) CreatorRecipients() []solana.Pubkey {
	var out []solana.Pubkey
	for _, c := range m.Creators {
		if c.Share != 0 {
			out = append(out, c.Address)
		}
	}
	return out
}
