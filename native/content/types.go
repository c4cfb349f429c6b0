package content

import "splitstream/core/types"

// Registration binds a piece of content to its owning actor and the economic
// strategy that settles payments for it. The content id is immutable once
// registered; only the strategy binding may change, and only by the owner.
type Registration struct {
	ID           string        `json:"id"`
	Owner        types.Address `json:"owner"`
	StrategyID   string        `json:"strategyId"`
	RegisteredAt int64         `json:"registeredAt"`
	// ConfigEpoch increments every time the strategy binding changes.
	// Strategy configurations record the epoch they were written under;
	// a mismatch means the config predates a rebind and is void.
	ConfigEpoch uint64 `json:"configEpoch"`
}

// Clone returns a copy of the registration.
func (r *Registration) Clone() *Registration {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}
