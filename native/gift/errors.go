package gift

import "errors"

var (
	ErrNilState          = errors.New("gift: state not configured")
	ErrContentNotFound   = errors.New("gift: content not registered")
	ErrNotOwner          = errors.New("gift: caller is not the content owner")
	ErrNotBound          = errors.New("gift: content not bound to this strategy")
	ErrAlreadyConfigured = errors.New("gift: economy already configured")
	ErrNotConfigured     = errors.New("gift: economy not configured")
	ErrMultiplierTooLow  = errors.New("gift: repeat multiplier must be at least 10000 bps")
	ErrStreamNotFree     = errors.New("gift: streams are free, use a tip to send value")
	ErrZeroTip           = errors.New("gift: tip amount must be positive")
	ErrTipsDisabled      = errors.New("gift: tips are disabled for this content")
	ErrTipBelowMinimum   = errors.New("gift: tip below the configured minimum")
	ErrUnsupportedType   = errors.New("gift: unsupported payment type")
)
