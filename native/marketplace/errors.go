package marketplace

import "errors"

var (
	ErrNilState             = errors.New("marketplace: state not configured")
	ErrNilLedger            = errors.New("marketplace: token ledger not configured")
	ErrNotFound             = errors.New("marketplace: entity not found")
	ErrAlreadyExists        = errors.New("marketplace: entity already exists")
	ErrWrongAuthority       = errors.New("marketplace: wrong authority")
	ErrWrongMint            = errors.New("marketplace: wrong mint")
	ErrWrongATA             = errors.New("marketplace: wrong associated token account")
	ErrWrongInstruction     = errors.New("marketplace: instruction does not match marketplace configuration")
	ErrNumericalOverflow    = errors.New("marketplace: numerical overflow")
	ErrInvalidFee           = errors.New("marketplace: fee above allowed maximum")
	ErrInvalidFeeReduction  = errors.New("marketplace: fee reduction above fee")
	ErrInvalidReward        = errors.New("marketplace: reward above allowed maximum")
	ErrMissingAccount       = errors.New("marketplace: optional account not provided")
	ErrVaultsFull           = errors.New("marketplace: vault list is at capacity")
	ErrRewardsNotConfigured = errors.New("marketplace: rewards are not configured")
	ErrOpenPromotion        = errors.New("marketplace: promotion still open, withdrawal not allowed")
	ErrNotWhitelisted       = errors.New("marketplace: wallet does not hold the listing access token")
	ErrTransfer             = errors.New("marketplace: transfer failed")
	ErrMintTo               = errors.New("marketplace: mint failed")
	ErrCloseAccount         = errors.New("marketplace: close account failed")
)
