package split

import (
	"errors"
	"math/big"
	"strings"

	"splitstream/core/types"
)

// BpsDenominator is the fixed-point denominator for basis-point arithmetic.
// 100 bps equal 1%.
const BpsDenominator = 10_000

var (
	ErrLengthMismatch  = errors.New("split: recipients, basis points and roles must align")
	ErrNoRecipients    = errors.New("split: at least one recipient required")
	ErrZeroRecipient   = errors.New("split: recipient address must not be zero")
	ErrBasisPointTotal = errors.New("split: basis points must sum to exactly 10000")
	ErrNilAmount       = errors.New("split: amount must be set")
	ErrNegativeAmount  = errors.New("split: amount must not be negative")
)

// Entry assigns a recipient a fixed share of every payment, expressed in
// basis points, together with a free-form role label ("artist", "producer").
type Entry struct {
	Recipient   types.Address `json:"recipient"`
	BasisPoints uint32        `json:"basisPoints"`
	Role        string        `json:"role"`
}

// Table is an ordered royalty split. Order matters: residual dust from floor
// division is always attributed to the first entry.
type Table struct {
	Entries []Entry `json:"entries"`
}

// Distribution is a concrete (recipient, amount) pair computed for one payment.
type Distribution struct {
	Recipient types.Address `json:"recipient"`
	Role      string        `json:"role"`
	Amount    *big.Int      `json:"amount"`
}

// NewTable builds and validates a split table from parallel slices.
func NewTable(recipients []types.Address, basisPoints []uint32, roles []string) (*Table, error) {
	if len(recipients) != len(basisPoints) || len(recipients) != len(roles) {
		return nil, ErrLengthMismatch
	}
	table := &Table{Entries: make([]Entry, 0, len(recipients))}
	for i := range recipients {
		table.Entries = append(table.Entries, Entry{
			Recipient:   recipients[i],
			BasisPoints: basisPoints[i],
			Role:        strings.TrimSpace(roles[i]),
		})
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// Validate checks the table invariants: at least one recipient, no zero
// recipient and basis points summing to exactly the denominator.
func (t *Table) Validate() error {
	if t == nil || len(t.Entries) == 0 {
		return ErrNoRecipients
	}
	var total uint64
	for _, entry := range t.Entries {
		if types.ZeroAddress(entry.Recipient) {
			return ErrZeroRecipient
		}
		total += uint64(entry.BasisPoints)
	}
	if total != BpsDenominator {
		return ErrBasisPointTotal
	}
	return nil
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	clone := &Table{Entries: make([]Entry, len(t.Entries))}
	copy(clone.Entries, t.Entries)
	return clone
}

// Allocate distributes the supplied amount over the table using floor
// division. The residual dust left by flooring is added to the first entry so
// that the distributed total always equals the input exactly.
func (t *Table) Allocate(amount *big.Int) ([]Distribution, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if amount == nil {
		return nil, ErrNilAmount
	}
	if amount.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	denominator := big.NewInt(BpsDenominator)
	distributions := make([]Distribution, 0, len(t.Entries))
	allocated := big.NewInt(0)
	for _, entry := range t.Entries {
		share := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(entry.BasisPoints)))
		share = share.Quo(share, denominator)
		allocated = allocated.Add(allocated, share)
		distributions = append(distributions, Distribution{
			Recipient: entry.Recipient,
			Role:      entry.Role,
			Amount:    share,
		})
	}
	dust := new(big.Int).Sub(amount, allocated)
	if dust.Sign() > 0 {
		distributions[0].Amount = new(big.Int).Add(distributions[0].Amount, dust)
	}
	return distributions, nil
}

// Sum totals the amounts across the supplied distributions.
func Sum(distributions []Distribution) *big.Int {
	total := big.NewInt(0)
	for _, dist := range distributions {
		if dist.Amount != nil {
			total = total.Add(total, dist.Amount)
		}
	}
	return total
}
