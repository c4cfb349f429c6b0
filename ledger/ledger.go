package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"splitstream/core/types"
	"splitstream/native/split"
	"splitstream/storage"
)

const balancePrefix = "balance/"

var (
	ErrNegativeAmount      = errors.New("ledger: amount cannot be negative")
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	ErrNilAmount           = errors.New("ledger: amount must be set")
)

// Ledger is a persisted account balance book. It implements the settlement
// surface the payment router expects: one debit against the payer covering
// every distribution leg, applied only after the full transfer has been
// validated.
type Ledger struct {
	mu sync.Mutex
	db storage.Database
}

// NewLedger wraps the supplied backend.
func NewLedger(db storage.Database) *Ledger {
	return &Ledger{db: db}
}

func balanceKey(addr types.Address) []byte {
	return []byte(balancePrefix + types.FormatAddress(addr))
}

func (l *Ledger) load(addr types.Address) (*big.Int, error) {
	raw, err := l.db.Get(balanceKey(addr))
	if errors.Is(err, storage.ErrNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	balance := new(big.Int)
	if err := json.Unmarshal(raw, balance); err != nil {
		return nil, fmt.Errorf("ledger: decode balance for %s: %w", types.FormatAddress(addr), err)
	}
	return balance, nil
}

func (l *Ledger) store(addr types.Address, balance *big.Int) error {
	raw, err := json.Marshal(balance)
	if err != nil {
		return err
	}
	return l.db.Put(balanceKey(addr), raw)
}

// Balance returns the current balance for the account, zero if unseen.
func (l *Ledger) Balance(addr types.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(addr)
}

// Mint credits the account. Used to fund accounts from external deposits.
func (l *Ledger) Mint(addr types.Address, amount *big.Int) error {
	if amount == nil {
		return ErrNilAmount
	}
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	balance, err := l.load(addr)
	if err != nil {
		return err
	}
	return l.store(addr, balance.Add(balance, amount))
}

// Settle debits the payer by the total of all legs and credits each
// recipient. The transfer is validated in full before any balance changes.
func (l *Ledger) Settle(payer types.Address, legs []split.Distribution) error {
	total := big.NewInt(0)
	for _, leg := range legs {
		if leg.Amount == nil {
			return ErrNilAmount
		}
		if leg.Amount.Sign() < 0 {
			return ErrNegativeAmount
		}
		total = total.Add(total, leg.Amount)
	}
	if total.Sign() == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	payerBalance, err := l.load(payer)
	if err != nil {
		return err
	}
	if payerBalance.Cmp(total) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, payerBalance, total)
	}
	if err := l.store(payer, payerBalance.Sub(payerBalance, total)); err != nil {
		return err
	}
	for _, leg := range legs {
		if leg.Amount.Sign() == 0 {
			continue
		}
		balance, err := l.load(leg.Recipient)
		if err != nil {
			return err
		}
		if err := l.store(leg.Recipient, balance.Add(balance, leg.Amount)); err != nil {
			return err
		}
	}
	return nil
}
