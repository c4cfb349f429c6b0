package patronage

import "errors"

var (
	ErrNilState              = errors.New("patronage: state not configured")
	ErrContentNotFound       = errors.New("patronage: content not registered")
	ErrNotOwner              = errors.New("patronage: caller is not the content owner")
	ErrNotBound              = errors.New("patronage: content not bound to this strategy")
	ErrAlreadyConfigured     = errors.New("patronage: already configured")
	ErrNotConfigured         = errors.New("patronage: not configured")
	ErrInvalidBeneficiary    = errors.New("patronage: beneficiary address must not be zero")
	ErrInvalidFee            = errors.New("patronage: monthly fee must be positive")
	ErrInvalidTierBonus      = errors.New("patronage: tier bonus exceeds 10000 bps")
	ErrAlreadySubscribed     = errors.New("patronage: subscription already active")
	ErrNoActiveSubscription  = errors.New("patronage: no active subscription")
	ErrRenewTooEarly         = errors.New("patronage: too early to renew")
	ErrMinimumDurationNotMet = errors.New("patronage: minimum support duration not met")
	ErrFeeBelowConfigured    = errors.New("patronage: offered fee below the configured monthly fee")
	ErrStreamNotFree         = errors.New("patronage: streams carry no payment, access is via subscription")
	ErrTipsUnsupported       = errors.New("patronage: tips are not supported")
	ErrUnsupportedType       = errors.New("patronage: unsupported payment type")
)
