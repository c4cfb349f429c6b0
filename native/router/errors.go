package router

import "errors"

var (
	ErrNilState              = errors.New("router: state not configured")
	ErrNilSettler            = errors.New("router: settlement ledger not configured")
	ErrNilStrategy           = errors.New("router: strategy must not be nil")
	ErrEmptyStrategyID       = errors.New("router: strategy id must not be empty")
	ErrStrategyExists        = errors.New("router: strategy id already registered")
	ErrUnknownStrategy       = errors.New("router: strategy not registered")
	ErrContentNotRegistered  = errors.New("router: content not registered")
	ErrStrategyNotConfigured = errors.New("router: strategy not configured for content")
	ErrPaymentInFlight       = errors.New("router: payment already in flight for content")
	ErrInvalidTip            = errors.New("router: tip amount must be positive")
	ErrInvalidAmount         = errors.New("router: payment amount must not be negative")
	ErrConservation          = errors.New("router: distributed total does not equal gross amount")
	ErrSettlementFailed      = errors.New("router: ledger settlement failed")
	ErrNotAdmin              = errors.New("router: caller is not the settlement admin")
	ErrPreviewUnsupported    = errors.New("router: strategy does not support split preview")
	ErrPatronageUnavailable  = errors.New("router: patronage engine not wired")
	ErrAuctionUnavailable    = errors.New("router: auction engine not wired")
)
