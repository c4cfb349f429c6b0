package payperstream

import "errors"

var (
	ErrNilState          = errors.New("payperstream: state not configured")
	ErrContentNotFound   = errors.New("payperstream: content not registered")
	ErrNotOwner          = errors.New("payperstream: caller is not the content owner")
	ErrNotBound          = errors.New("payperstream: content not bound to this strategy")
	ErrAlreadyConfigured = errors.New("payperstream: royalty split already configured")
	ErrNotConfigured     = errors.New("payperstream: royalty split not configured")
	ErrZeroAmount        = errors.New("payperstream: amount must be positive")
)
