package auction

import "errors"

var (
	ErrNilState           = errors.New("auction: state not configured")
	ErrContentNotFound    = errors.New("auction: content not registered")
	ErrNotOwner           = errors.New("auction: caller is not the content owner")
	ErrNotBound           = errors.New("auction: content not bound to this strategy")
	ErrAlreadyCreated     = errors.New("auction: auction already created")
	ErrNotCreated         = errors.New("auction: auction not created")
	ErrInvalidBeneficiary = errors.New("auction: beneficiary address must not be zero")
	ErrInvalidPrices      = errors.New("auction: start price must be at least the floor price")
	ErrInvalidDuration    = errors.New("auction: duration must be positive")
	ErrInvalidSupply      = errors.New("auction: total supply must be positive")
	ErrAuctionClosed      = errors.New("auction: auction is not open")
	ErrAlreadyPurchased   = errors.New("auction: buyer already holds access")
	ErrPriceAboveLimit    = errors.New("auction: current price exceeds the stated maximum")
	ErrNoAccess           = errors.New("auction: buyer has not purchased access")
	ErrStreamNotFree      = errors.New("auction: streams carry no payment, access is via purchase")
	ErrTipsUnsupported    = errors.New("auction: tips are not supported")
	ErrUnsupportedType    = errors.New("auction: unsupported payment type")
)
