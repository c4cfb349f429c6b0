package payperstream

import "splitstream/native/split"

// StrategyID is the catalogue identifier for the pay-per-stream strategy.
const StrategyID = "pay-per-stream-v1"

// DefaultFeeBps is the catalogue-recommended protocol fee (1%).
const DefaultFeeBps = 100

// Config is the royalty split configuration for one piece of content. It is
// written once per config epoch; reconfiguration requires a strategy rebind.
type Config struct {
	ContentID    string       `json:"contentId"`
	Table        *split.Table `json:"table"`
	Epoch        uint64       `json:"epoch"`
	ConfiguredAt int64        `json:"configuredAt"`
}

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Table = c.Table.Clone()
	return &clone
}
