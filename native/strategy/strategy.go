package strategy

import (
	"math/big"

	"splitstream/core/types"
	"splitstream/native/split"
)

// PaymentType distinguishes metered plays from voluntary tips.
type PaymentType uint8

const (
	// PaymentStream is a metered play. Free-listening strategies accept a
	// zero amount here.
	PaymentStream PaymentType = iota
	// PaymentTip is a voluntary contribution and must carry a positive amount.
	PaymentTip
)

// String returns the canonical name for the payment type.
func (t PaymentType) String() string {
	switch t {
	case PaymentStream:
		return "stream"
	case PaymentTip:
		return "tip"
	default:
		return "unknown"
	}
}

// Payment carries the authenticated payer, the target content and the gross
// amount of a single payment. ListenedSeconds and DurationSeconds are optional
// play-quality hints; both zero means a full play.
type Payment struct {
	ContentID       string
	Payer           types.Address
	Amount          *big.Int
	Type            PaymentType
	ListenedSeconds uint32
	DurationSeconds uint32
}

// AmountValue returns a copy of the payment amount, treating nil as zero.
func (p Payment) AmountValue() *big.Int {
	if p.Amount == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(p.Amount)
}

// Qualified reports whether the play metadata meets the accrual threshold:
// at least 30 seconds listened or half of the track completed. Payments
// without play metadata count as full plays.
func (p Payment) Qualified() bool {
	if p.ListenedSeconds == 0 && p.DurationSeconds == 0 {
		return true
	}
	if p.ListenedSeconds >= 30 {
		return true
	}
	return p.DurationSeconds > 0 && uint64(p.ListenedSeconds)*2 >= uint64(p.DurationSeconds)
}

// Reward is a computed reward-point accrual reported to the external reward
// ledger. Strategies never move reward tokens themselves.
type Reward struct {
	Account types.Address
	Amount  *big.Int
}

// Outcome is the result of delegating a payment to a strategy: the monetary
// splits over the net amount plus any reward accrual.
type Outcome struct {
	Splits []split.Distribution
	Reward *Reward
}

// Charge is a value-moving obligation produced by a strategy action outside
// the plain payment path (subscription charges, auction purchases). The
// router runs it through the ordinary fee and settlement pipeline with the
// beneficiary as the sole recipient.
type Charge struct {
	Payer       types.Address
	Amount      *big.Int
	Beneficiary types.Address
	Role        string
}

// Strategy is the router-facing surface every economic strategy implements.
type Strategy interface {
	// ID returns the stable strategy identifier ("pay-per-stream-v1").
	ID() string
	// DefaultFeeBps is the protocol fee the strategy catalogue recommends.
	DefaultFeeBps() uint32
	// Configured reports whether the content has a live configuration for
	// this strategy.
	Configured(contentID string) (bool, error)
	// ProcessPayment validates the payment and computes the splits over the
	// supplied net amount. Implementations must validate fully before
	// mutating any state.
	ProcessPayment(p Payment, net *big.Int) (*Outcome, error)
}
