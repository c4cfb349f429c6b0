package patronage

import (
	"math/big"

	"splitstream/core/types"
)

// StrategyID is the catalogue identifier for the patronage strategy.
const StrategyID = "patronage-v1"

// DefaultFeeBps is the catalogue-recommended protocol fee (1%).
const DefaultFeeBps = 100

const day = int64(24 * 60 * 60)

// BillingPeriodSeconds is the fixed subscription billing period.
const BillingPeriodSeconds = 30 * day

// GracePeriodSeconds is the fixed extra access window after nominal expiry.
const GracePeriodSeconds = 7 * day

// TierCount is the number of loyalty tiers; boundaries sit at 3, 6 and 12
// months of active support.
const TierCount = 4

var tierBoundaries = [TierCount - 1]int64{90 * day, 180 * day, 360 * day}

// Config parameterises patronage for one piece of content.
type Config struct {
	ContentID         string            `json:"contentId"`
	Beneficiary       types.Address     `json:"beneficiary"`
	MonthlyFee        *big.Int          `json:"monthlyFee"`
	MinimumDuration   int64             `json:"minimumDurationSeconds"`
	AllowCancellation bool              `json:"allowCancellation"`
	TierBonusesBps    [TierCount]uint32 `json:"tierBonusesBps"`
	Epoch             uint64            `json:"epoch"`
	ConfiguredAt      int64             `json:"configuredAt"`
}

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	if c.MonthlyFee != nil {
		clone.MonthlyFee = new(big.Int).Set(c.MonthlyFee)
	}
	return &clone
}

// Subscription is the recurring-support state between one patron and one
// beneficiary. Subscriptions never get deleted; cancellation flips Active off
// while paid-for access persists through the grace window.
type Subscription struct {
	Patron      types.Address `json:"patron"`
	Beneficiary types.Address `json:"beneficiary"`
	MonthlyFee  *big.Int      `json:"monthlyFee"`
	StartedAt   int64         `json:"startedAt"`
	LastPayment int64         `json:"lastPayment"`
	Active      bool          `json:"active"`
	CancelledAt int64         `json:"cancelledAt"`
}

// Clone returns a deep copy of the subscription.
func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	clone := *s
	if s.MonthlyFee != nil {
		clone.MonthlyFee = new(big.Int).Set(s.MonthlyFee)
	}
	return &clone
}

// AccessUntil returns the instant the paid-for access window closes,
// including the grace period.
func (s *Subscription) AccessUntil() int64 {
	if s == nil {
		return 0
	}
	return s.LastPayment + BillingPeriodSeconds + GracePeriodSeconds
}

// elapsedActive reports how long the subscription has been actively held at
// the supplied instant; for cancelled subscriptions the clock stops at the
// cancellation time.
func (s *Subscription) elapsedActive(now int64) int64 {
	if s == nil {
		return 0
	}
	end := now
	if !s.Active && s.CancelledAt > 0 && s.CancelledAt < end {
		end = s.CancelledAt
	}
	if end < s.StartedAt {
		return 0
	}
	return end - s.StartedAt
}

// TierAt derives the loyalty tier from the elapsed active duration.
func (s *Subscription) TierAt(now int64) int {
	elapsed := s.elapsedActive(now)
	tier := 0
	for _, boundary := range tierBoundaries {
		if elapsed >= boundary {
			tier++
		}
	}
	return tier
}
