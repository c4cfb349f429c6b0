package patronage

import (
	"errors"
	"math/big"
	"time"

	"splitstream/core/events"
	"splitstream/core/types"
	"splitstream/native/content"
	"splitstream/native/split"
	"splitstream/native/strategy"
)

type engineState interface {
	RegistrationGet(id string) (*content.Registration, bool, error)
	PatronageConfigGet(contentID string) (*Config, bool, error)
	PatronageConfigPut(cfg *Config) error
	SubscriptionGet(patron, beneficiary types.Address) (*Subscription, bool, error)
	SubscriptionPut(sub *Subscription) error
}

// Engine implements the patronage strategy: recurring monthly support with a
// fixed billing period, a grace window on access, and loyalty tiers derived
// from the elapsed active duration.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine constructs a patronage engine with default dependencies.
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

func (e *Engine) config(contentID string) (*Config, error) {
	reg, err := e.registration(contentID)
	if err != nil {
		return nil, err
	}
	cfg, ok, err := e.state.PatronageConfigGet(contentID)
	if err != nil {
		return nil, err
	}
	if !ok || cfg == nil || cfg.Epoch != reg.ConfigEpoch {
		return nil, ErrNotConfigured
	}
	return cfg, nil
}

// ConfigurePatronage installs the patronage terms for the content. Owner-only,
// at most once per config epoch.
func (e *Engine) ConfigurePatronage(caller types.Address, contentID string, beneficiary types.Address, monthlyFee *big.Int, minimumDurationSeconds int64, allowCancellation bool, tierBonusesBps [TierCount]uint32) (*Config, error) {
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
	if existing, ok, err := e.state.PatronageConfigGet(contentID); err != nil {
		return nil, err
	} else if ok && existing != nil && existing.Epoch == reg.ConfigEpoch {
		return nil, ErrAlreadyConfigured
	}
	if types.ZeroAddress(beneficiary) {
		return nil, ErrInvalidBeneficiary
	}
	if monthlyFee == nil || monthlyFee.Sign() <= 0 {
		return nil, ErrInvalidFee
	}
	for _, bonus := range tierBonusesBps {
		if bonus > split.BpsDenominator {
			return nil, ErrInvalidTierBonus
		}
	}
	if minimumDurationSeconds < 0 {
		minimumDurationSeconds = 0
	}
	cfg := &Config{
		ContentID:         contentID,
		Beneficiary:       beneficiary,
		MonthlyFee:        new(big.Int).Set(monthlyFee),
		MinimumDuration:   minimumDurationSeconds,
		AllowCancellation: allowCancellation,
		TierBonusesBps:    tierBonusesBps,
		Epoch:             reg.ConfigEpoch,
		ConfiguredAt:      e.now(),
	}
	if err := e.state.PatronageConfigPut(cfg); err != nil {
		return nil, err
	}
	e.emit(ConfiguredEvent(contentID, types.FormatAddress(beneficiary), cfg.MonthlyFee.String()))
	return cfg.Clone(), nil
}

// Configured implements strategy.Strategy.
func (e *Engine) Configured(contentID string) (bool, error) {
	if e == nil || e.state == nil {
		return false, ErrNilState
	}
	_, err := e.config(contentID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotConfigured) {
		return false, nil
	}
	return false, err
}

// Subscribe opens (or reactivates) the subscription between the patron and
// the content's beneficiary and charges the first period immediately. The
// returned charge is settled by the router; the patron may offer more than
// the configured monthly fee, never less.
func (e *Engine) Subscribe(patron types.Address, contentID string, offeredFee *big.Int) (*Subscription, *strategy.Charge, error) {
	if e == nil || e.state == nil {
		return nil, nil, ErrNilState
	}
	cfg, err := e.config(contentID)
	if err != nil {
		return nil, nil, err
	}
	fee := cfg.MonthlyFee
	if offeredFee != nil {
		if offeredFee.Cmp(cfg.MonthlyFee) < 0 {
			return nil, nil, ErrFeeBelowConfigured
		}
		fee = offeredFee
	}
	sub, ok, err := e.state.SubscriptionGet(patron, cfg.Beneficiary)
	if err != nil {
		return nil, nil, err
	}
	if ok && sub != nil && sub.Active {
		return nil, nil, ErrAlreadySubscribed
	}
	now := e.now()
	sub = &Subscription{
		Patron:      patron,
		Beneficiary: cfg.Beneficiary,
		MonthlyFee:  new(big.Int).Set(fee),
		StartedAt:   now,
		LastPayment: now,
		Active:      true,
	}
	if err := e.state.SubscriptionPut(sub); err != nil {
		return nil, nil, err
	}
	charge := &strategy.Charge{
		Payer:       patron,
		Amount:      new(big.Int).Set(fee),
		Beneficiary: cfg.Beneficiary,
		Role:        "beneficiary",
	}
	e.emit(SubscribedEvent(contentID, types.FormatAddress(patron), types.FormatAddress(cfg.Beneficiary), fee.String()))
	return sub.Clone(), charge, nil
}

// Renew charges one further billing period. Renewal advances the payment
// anchor by exactly one period rather than to the current time, so late
// renewals do not drift the schedule.
func (e *Engine) Renew(patron types.Address, contentID string) (*Subscription, *strategy.Charge, error) {
	if e == nil || e.state == nil {
		return nil, nil, ErrNilState
	}
	cfg, err := e.config(contentID)
	if err != nil {
		return nil, nil, err
	}
	sub, ok, err := e.state.SubscriptionGet(patron, cfg.Beneficiary)
	if err != nil {
		return nil, nil, err
	}
	if !ok || sub == nil || !sub.Active {
		return nil, nil, ErrNoActiveSubscription
	}
	now := e.now()
	if now < sub.LastPayment+BillingPeriodSeconds {
		return nil, nil, ErrRenewTooEarly
	}
	sub.LastPayment += BillingPeriodSeconds
	if err := e.state.SubscriptionPut(sub); err != nil {
		return nil, nil, err
	}
	charge := &strategy.Charge{
		Payer:       patron,
		Amount:      new(big.Int).Set(sub.MonthlyFee),
		Beneficiary: cfg.Beneficiary,
		Role:        "beneficiary",
	}
	e.emit(RenewedEvent(contentID, types.FormatAddress(patron), sub.MonthlyFee.String()))
	return sub.Clone(), charge, nil
}

// Cancel stops auto-renewal. If cancellation is disallowed by the config the
// patron must first serve the minimum support duration. Paid-for access
// persists through the grace window; there are no refunds.
func (e *Engine) Cancel(patron types.Address, contentID string) (*Subscription, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	cfg, err := e.config(contentID)
	if err != nil {
		return nil, err
	}
	sub, ok, err := e.state.SubscriptionGet(patron, cfg.Beneficiary)
	if err != nil {
		return nil, err
	}
	if !ok || sub == nil || !sub.Active {
		return nil, ErrNoActiveSubscription
	}
	now := e.now()
	if !cfg.AllowCancellation && now-sub.StartedAt < cfg.MinimumDuration {
		return nil, ErrMinimumDurationNotMet
	}
	sub.Active = false
	sub.CancelledAt = now
	if err := e.state.SubscriptionPut(sub); err != nil {
		return nil, err
	}
	e.emit(CancelledEvent(contentID, types.FormatAddress(patron)))
	return sub.Clone(), nil
}

// HasAccess reports whether the patron's paid-for window, including the grace
// period, still covers the current instant. The active flag is deliberately
// ignored: cancellation stops auto-renewal, not access already paid for.
func (e *Engine) HasAccess(patron types.Address, contentID string) (bool, error) {
	if e == nil || e.state == nil {
		return false, ErrNilState
	}
	cfg, err := e.config(contentID)
	if err != nil {
		return false, err
	}
	sub, ok, err := e.state.SubscriptionGet(patron, cfg.Beneficiary)
	if err != nil {
		return false, err
	}
	if !ok || sub == nil {
		return false, nil
	}
	return e.now() <= sub.AccessUntil(), nil
}

// Tier returns the patron's loyalty tier and the configured bonus for it.
func (e *Engine) Tier(patron types.Address, contentID string) (int, uint32, error) {
	if e == nil || e.state == nil {
		return 0, 0, ErrNilState
	}
	cfg, err := e.config(contentID)
	if err != nil {
		return 0, 0, err
	}
	sub, ok, err := e.state.SubscriptionGet(patron, cfg.Beneficiary)
	if err != nil {
		return 0, 0, err
	}
	if !ok || sub == nil {
		return 0, 0, ErrNoActiveSubscription
	}
	tier := sub.TierAt(e.now())
	return tier, cfg.TierBonusesBps[tier], nil
}

// Subscription returns the stored subscription state for the pair.
func (e *Engine) Subscription(patron types.Address, contentID string) (*Subscription, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	cfg, err := e.config(contentID)
	if err != nil {
		return nil, err
	}
	sub, ok, err := e.state.SubscriptionGet(patron, cfg.Beneficiary)
	if err != nil {
		return nil, err
	}
	if !ok || sub == nil {
		return nil, ErrNoActiveSubscription
	}
	return sub.Clone(), nil
}

// ProcessPayment implements strategy.Strategy. Streams carry no payment (the
// subscription already collected the value) and require a live access window;
// tips are not part of this strategy.
func (e *Engine) ProcessPayment(p strategy.Payment, net *big.Int) (*strategy.Outcome, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if _, err := e.config(p.ContentID); err != nil {
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
			return nil, ErrNoActiveSubscription
		}
		return &strategy.Outcome{}, nil
	case strategy.PaymentTip:
		return nil, ErrTipsUnsupported
	default:
		return nil, ErrUnsupportedType
	}
}
