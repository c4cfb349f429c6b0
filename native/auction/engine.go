package auction

import (
	"errors"
	"math/big"
	"time"

	"splitstream/core/events"
	"splitstream/core/types"
	"splitstream/native/content"
	"splitstream/native/strategy"
)

type engineState interface {
	RegistrationGet(id string) (*content.Registration, bool, error)
	AuctionBookGet(contentID string) (*Book, bool, error)
	AuctionBookPut(book *Book) error
	AuctionPurchaseGet(contentID string, buyer types.Address) (*Purchase, bool, error)
	AuctionPurchasePut(purchase *Purchase) error
}

// Engine implements the Dutch auction strategy: a linearly decaying price,
// one permanent purchase per buyer, automatic deactivation on sellout.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine constructs an auction engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn: func() int64 {
			return time.Now().Unix()
		},
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(WrapEvent(evt))
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// ID implements strategy.Strategy.
func (e *Engine) ID() string { return StrategyID }

// DefaultFeeBps implements strategy.Strategy.
func (e *Engine) DefaultFeeBps() uint32 { return DefaultFeeBps }

func (e *Engine) registration(contentID string) (*content.Registration, error) {
	reg, ok, err := e.state.RegistrationGet(contentID)
	if err != nil {
		return nil, err
	}
	if !ok || reg == nil {
		return nil, ErrContentNotFound
	}
	if reg.StrategyID != StrategyID {
		return nil, ErrNotBound
	}
	return reg, nil
}

func (e *Engine) book(contentID string) (*Book, error) {
	reg, err := e.registration(contentID)
	if err != nil {
		return nil, err
	}
	book, ok, err := e.state.AuctionBookGet(contentID)
	if err != nil {
		return nil, err
	}
	if !ok || book == nil || book.Epoch != reg.ConfigEpoch {
		return nil, ErrNotCreated
	}
	return book, nil
}

// CreateDutchAuction opens the auction for the content. Owner-only, at most
// once per config epoch.
func (e *Engine) CreateDutchAuction(caller types.Address, contentID string, beneficiary types.Address, startPrice, floorPrice *big.Int, durationSeconds int64, totalSupply uint64) (*Book, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	reg, err := e.registration(contentID)
	if err != nil {
		return nil, err
	}
	if reg.Owner != caller {
		return nil, ErrNotOwner
	}
	if existing, ok, err := e.state.AuctionBookGet(contentID); err != nil {
		return nil, err
	} else if ok && existing != nil && existing.Epoch == reg.ConfigEpoch {
		return nil, ErrAlreadyCreated
	}
	if types.ZeroAddress(beneficiary) {
		return nil, ErrInvalidBeneficiary
	}
	if startPrice == nil || floorPrice == nil || floorPrice.Sign() < 0 || startPrice.Cmp(floorPrice) < 0 {
		return nil, ErrInvalidPrices
	}
	if durationSeconds <= 0 {
		return nil, ErrInvalidDuration
	}
	if totalSupply == 0 {
		return nil, ErrInvalidSupply
	}
	book := &Book{
		ContentID:   contentID,
		Beneficiary: beneficiary,
		StartPrice:  new(big.Int).Set(startPrice),
		FloorPrice:  new(big.Int).Set(floorPrice),
		StartedAt:   e.now(),
		Duration:    durationSeconds,
		TotalSupply: totalSupply,
		Revenue:     big.NewInt(0),
		Active:      true,
		Epoch:       reg.ConfigEpoch,
	}
	if err := e.state.AuctionBookPut(book); err != nil {
		return nil, err
	}
	e.emit(CreatedEvent(contentID, book.StartPrice.String(), book.FloorPrice.String(), totalSupply))
	return book.Clone(), nil
}

// Configured implements strategy.Strategy.
func (e *Engine) Configured(contentID string) (bool, error) {
	if e == nil || e.state == nil {
		return false, ErrNilState
	}
	_, err := e.book(contentID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotCreated) {
		return false, nil
	}
	return false, err
}

// CurrentPrice returns the decayed price at the current instant.
func (e *Engine) CurrentPrice(contentID string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	book, err := e.book(contentID)
	if err != nil {
		return nil, err
	}
	return book.PriceAt(e.now()), nil
}

// PurchaseAccess grants the buyer permanent access at the current price. The
// buyer states the maximum price they accept; the purchase fails if the
// current price is above it. The returned charge settles through the
// ordinary fee path.
func (e *Engine) PurchaseAccess(buyer types.Address, contentID string, maxAcceptablePrice *big.Int) (*Purchase, *strategy.Charge, error) {
	if e == nil || e.state == nil {
		return nil, nil, ErrNilState
	}
	book, err := e.book(contentID)
	if err != nil {
		return nil, nil, err
	}
	now := e.now()
	if !book.Open(now) {
		return nil, nil, ErrAuctionClosed
	}
	if existing, ok, err := e.state.AuctionPurchaseGet(contentID, buyer); err != nil {
		return nil, nil, err
	} else if ok && existing != nil {
		return nil, nil, ErrAlreadyPurchased
	}
	price := book.PriceAt(now)
	if maxAcceptablePrice == nil || price.Cmp(maxAcceptablePrice) > 0 {
		return nil, nil, ErrPriceAboveLimit
	}

	purchase := &Purchase{
		ContentID:   contentID,
		Buyer:       buyer,
		Price:       new(big.Int).Set(price),
		PurchasedAt: now,
	}
	if err := e.state.AuctionPurchasePut(purchase); err != nil {
		return nil, nil, err
	}
	book.Sold++
	book.Revenue = new(big.Int).Add(book.Revenue, price)
	if book.Sold >= book.TotalSupply {
		book.Active = false
	}
	if err := e.state.AuctionBookPut(book); err != nil {
		return nil, nil, err
	}
	charge := &strategy.Charge{
		Payer:       buyer,
		Amount:      new(big.Int).Set(price),
		Beneficiary: book.Beneficiary,
		Role:        "beneficiary",
	}
	e.emit(PurchasedEvent(contentID, types.FormatAddress(buyer), price.String(), book.Sold))
	if !book.Active {
		e.emit(EndedEvent(contentID, "sold_out"))
	}
	return purchase.Clone(), charge, nil
}

// EndAuction deactivates the auction. Owner-only, permanent.
func (e *Engine) EndAuction(caller types.Address, contentID string) (*Book, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	reg, err := e.registration(contentID)
	if err != nil {
		return nil, err
	}
	if reg.Owner != caller {
		return nil, ErrNotOwner
	}
	book, err := e.book(contentID)
	if err != nil {
		return nil, err
	}
	if !book.Active {
		return nil, ErrAuctionClosed
	}
	book.Active = false
	if err := e.state.AuctionBookPut(book); err != nil {
		return nil, err
	}
	e.emit(EndedEvent(contentID, "manual"))
	return book.Clone(), nil
}

// Stats summarises the auction book.
func (e *Engine) Stats(contentID string) (*Stats, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	book, err := e.book(contentID)
	if err != nil {
		return nil, err
	}
	stats := &Stats{
		CurrentPrice: book.PriceAt(e.now()),
		Sold:         book.Sold,
		Remaining:    book.TotalSupply - book.Sold,
		TotalRevenue: new(big.Int).Set(book.Revenue),
		AveragePrice: big.NewInt(0),
		Active:       book.Open(e.now()),
	}
	if book.Sold > 0 {
		stats.AveragePrice = new(big.Int).Quo(book.Revenue, new(big.Int).SetUint64(book.Sold))
	}
	return stats, nil
}

// HasAccess reports whether the buyer holds a purchase for the content.
func (e *Engine) HasAccess(buyer types.Address, contentID string) (bool, error) {
	if e == nil || e.state == nil {
		return false, ErrNilState
	}
	if _, err := e.book(contentID); err != nil {
		return false, err
	}
	_, ok, err := e.state.AuctionPurchaseGet(contentID, buyer)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// ProcessPayment implements strategy.Strategy. Streams carry no payment and
// require a prior purchase; tips are not part of this strategy.
func (e *Engine) ProcessPayment(p strategy.Payment, net *big.Int) (*strategy.Outcome, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if _, err := e.book(p.ContentID); err != nil {
		return nil, err
	}
	switch p.Type {
	case strategy.PaymentStream:
		if p.AmountValue().Sign() != 0 {
			return nil, ErrStreamNotFree
		}
		ok, err := e.HasAccess(p.Payer, p.ContentID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrNoAccess
		}
		return &strategy.Outcome{}, nil
	case strategy.PaymentTip:
		return nil, ErrTipsUnsupported
	default:
		return nil, ErrUnsupportedType
	}
}
