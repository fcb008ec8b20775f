package protocol

import "errors"

var (
	ErrArithmeticOverflow  = errors.New("arithmetic overflow")
	ErrArithmeticUnderflow = errors.New("arithmetic underflow")

	ErrInvalidMintMetadataOwner = errors.New("invalid mint metadata owner")
	ErrInvalidMintMetadata      = errors.New("invalid mint metadata")
	ErrInvalidFeeCollector      = errors.New("invalid fee collector")
	ErrMissingAccount           = errors.New("missing account")
	ErrTransferFailed           = errors.New("transfer failed")

	ErrInvalidFeeBps = errors.New("invalid fee bps")
)

var ErrConservationViolated = errors.New("payout plan does not conserve funds")
