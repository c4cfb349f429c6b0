package router

import (
	"math/big"

	"splitstream/core/types"
	"splitstream/native/split"
	"splitstream/native/strategy"
)

// FeeLegRole labels the protocol-fee distribution appended to every settled
// payment with a positive fee.
const FeeLegRole = "protocol-fee"

// Settler is the external value ledger. The router hands it the payer and the
// full set of distributions for one payment; the ledger either moves all of
// the value or returns an error, in which case the router rolls the payment
// back.
type Settler interface {
	Settle(payer types.Address, legs []split.Distribution) error
}

// SplitPreviewer is implemented by strategies whose splits can be computed
// ahead of payment without touching state.
type SplitPreviewer interface {
	CalculateSplits(contentID string, net *big.Int) ([]split.Distribution, error)
}

// Receipt is the immutable record of one settled payment.
type Receipt struct {
	ID          string               `json:"id"`
	ContentID   string               `json:"contentId"`
	StrategyID  string               `json:"strategyId"`
	Payer       types.Address        `json:"payer"`
	Type        strategy.PaymentType `json:"type"`
	Gross       *big.Int             `json:"gross"`
	Fee         *big.Int             `json:"fee"`
	Net         *big.Int             `json:"net"`
	Legs        []split.Distribution `json:"legs"`
	Reward      *strategy.Reward     `json:"reward,omitempty"`
	ProcessedAt int64                `json:"processedAt"`
}

// Preview shows how a hypothetical payment would be divided without settling
// anything.
type Preview struct {
	ContentID  string               `json:"contentId"`
	StrategyID string               `json:"strategyId"`
	Gross      *big.Int             `json:"gross"`
	Fee        *big.Int             `json:"fee"`
	Net        *big.Int             `json:"net"`
	Splits     []split.Distribution `json:"splits"`
}

// ContentStats aggregates settlement activity per content id.
type ContentStats struct {
	ContentID      string   `json:"contentId"`
	Payments       uint64   `json:"payments"`
	Streams        uint64   `json:"streams"`
	Tips           uint64   `json:"tips"`
	GrossVolume    *big.Int `json:"grossVolume"`
	FeesCollected  *big.Int `json:"feesCollected"`
	NetDistributed *big.Int `json:"netDistributed"`
	LastPaymentAt  int64    `json:"lastPaymentAt"`
}

// Clone returns a deep copy of the stats record.
func (s *ContentStats) Clone() *ContentStats {
	if s == nil {
		return nil
	}
	clone := *s
	if s.GrossVolume != nil {
		clone.GrossVolume = new(big.Int).Set(s.GrossVolume)
	}
	if s.FeesCollected != nil {
		clone.FeesCollected = new(big.Int).Set(s.FeesCollected)
	}
	if s.NetDistributed != nil {
		clone.NetDistributed = new(big.Int).Set(s.NetDistributed)
	}
	return &clone
}

func (s *ContentStats) normalize() {
	if s.GrossVolume == nil {
		s.GrossVolume = big.NewInt(0)
	}
	if s.FeesCollected == nil {
		s.FeesCollected = big.NewInt(0)
	}
	if s.NetDistributed == nil {
		s.NetDistributed = big.NewInt(0)
	}
}
