package auction

import (
	"math/big"

	"splitstream/core/types"
)

// StrategyID is the catalogue identifier for the Dutch auction strategy.
const StrategyID = "auction-v1"

// DefaultFeeBps is the catalogue-recommended protocol fee (5%).
const DefaultFeeBps = 500

// Book is the Dutch auction state for one piece of content. The price decays
// linearly from StartPrice to FloorPrice across the duration; each buyer may
// purchase permanent access exactly once.
type Book struct {
	ContentID   string        `json:"contentId"`
	Beneficiary types.Address `json:"beneficiary"`
	StartPrice  *big.Int      `json:"startPrice"`
	FloorPrice  *big.Int      `json:"floorPrice"`
	StartedAt   int64         `json:"startedAt"`
	Duration    int64         `json:"durationSeconds"`
	TotalSupply uint64        `json:"totalSupply"`
	Sold        uint64        `json:"sold"`
	Revenue     *big.Int      `json:"revenue"`
	Active      bool          `json:"active"`
	Epoch       uint64        `json:"epoch"`
}

// Clone returns a deep copy of the book.
func (b *Book) Clone() *Book {
	if b == nil {
		return nil
	}
	clone := *b
	if b.StartPrice != nil {
		clone.StartPrice = new(big.Int).Set(b.StartPrice)
	}
	if b.FloorPrice != nil {
		clone.FloorPrice = new(big.Int).Set(b.FloorPrice)
	}
	if b.Revenue != nil {
		clone.Revenue = new(big.Int).Set(b.Revenue)
	}
	return &clone
}

// PriceAt computes the linearly decayed price at the supplied instant,
// clamped to [floor, start].
func (b *Book) PriceAt(now int64) *big.Int {
	if b == nil || b.StartPrice == nil {
		return big.NewInt(0)
	}
	elapsed := now - b.StartedAt
	if elapsed <= 0 {
		return new(big.Int).Set(b.StartPrice)
	}
	if b.Duration <= 0 || elapsed >= b.Duration {
		return new(big.Int).Set(b.FloorPrice)
	}
	spread := new(big.Int).Sub(b.StartPrice, b.FloorPrice)
	decay := new(big.Int).Mul(spread, big.NewInt(elapsed))
	decay = decay.Quo(decay, big.NewInt(b.Duration))
	return new(big.Int).Sub(b.StartPrice, decay)
}

// Open reports whether the book still accepts purchases at the instant:
// active flag set, time window open and supply remaining.
func (b *Book) Open(now int64) bool {
	if b == nil || !b.Active {
		return false
	}
	if b.Duration > 0 && now-b.StartedAt > b.Duration {
		return false
	}
	return b.Sold < b.TotalSupply
}

// Purchase records one buyer's permanent access grant.
type Purchase struct {
	ContentID   string        `json:"contentId"`
	Buyer       types.Address `json:"buyer"`
	Price       *big.Int      `json:"price"`
	PurchasedAt int64         `json:"purchasedAt"`
}

// Clone returns a deep copy of the purchase.
func (p *Purchase) Clone() *Purchase {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Price != nil {
		clone.Price = new(big.Int).Set(p.Price)
	}
	return &clone
}

// Stats summarises the auction for queries.
type Stats struct {
	CurrentPrice *big.Int `json:"currentPrice"`
	Sold         uint64   `json:"sold"`
	Remaining    uint64   `json:"remaining"`
	TotalRevenue *big.Int `json:"totalRevenue"`
	AveragePrice *big.Int `json:"averagePrice"`
	Active       bool     `json:"active"`
}
