package gift

import (
	"math/big"

	"splitstream/core/types"
	"splitstream/native/split"
)

// StrategyID is the catalogue identifier for the gift economy strategy.
const StrategyID = "gift-economy-v1"

// DefaultFeeBps is the catalogue-recommended protocol fee (1%).
const DefaultFeeBps = 100

// DefaultRepeatInterval periodically boosts a listener's reward; every
// interval-th listen gets the repeat multiplier applied.
const DefaultRepeatInterval = 6

// Config parameterises the gift economy for one piece of content: free
// listening accrues reward points, optional tips split over the royalty table.
type Config struct {
	ContentID           string       `json:"contentId"`
	Table               *split.Table `json:"table"`
	AllowTip            bool         `json:"allowTip"`
	TipMinimum          *big.Int     `json:"tipMinimum"`
	RewardPerListen     *big.Int     `json:"rewardPerListen"`
	EarlyBonus          *big.Int     `json:"earlyBonus"`
	EarlyThreshold      uint64       `json:"earlyThreshold"`
	RepeatMultiplierBps uint32       `json:"repeatMultiplierBps"`
	RepeatInterval      uint64       `json:"repeatInterval"`
	Epoch               uint64       `json:"epoch"`
	ConfiguredAt        int64        `json:"configuredAt"`
}

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Table = c.Table.Clone()
	if c.TipMinimum != nil {
		clone.TipMinimum = new(big.Int).Set(c.TipMinimum)
	}
	if c.RewardPerListen != nil {
		clone.RewardPerListen = new(big.Int).Set(c.RewardPerListen)
	}
	if c.EarlyBonus != nil {
		clone.EarlyBonus = new(big.Int).Set(c.EarlyBonus)
	}
	return &clone
}

// ListenerProfile tracks the cumulative relationship between one listener and
// one piece of content. Profiles are created lazily on first interaction and
// never deleted.
type ListenerProfile struct {
	ContentID     string        `json:"contentId"`
	Listener      types.Address `json:"listener"`
	StreamCount   uint64        `json:"streamCount"`
	RewardBalance *big.Int      `json:"rewardBalance"`
	LastStreamAt  int64         `json:"lastStreamAt"`
	// Early is set once when the listener qualifies as one of the first K
	// distinct listeners and never cleared.
	Early bool `json:"early"`
}

// Clone returns a deep copy of the profile.
func (p *ListenerProfile) Clone() *ListenerProfile {
	if p == nil {
		return nil
	}
	clone := *p
	if p.RewardBalance != nil {
		clone.RewardBalance = new(big.Int).Set(p.RewardBalance)
	}
	return &clone
}
