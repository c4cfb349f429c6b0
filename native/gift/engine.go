package gift

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
	GiftConfigGet(contentID string) (*Config, bool, error)
	GiftConfigPut(cfg *Config) error
	ListenerProfileGet(contentID string, listener types.Address) (*ListenerProfile, bool, error)
	ListenerProfilePut(profile *ListenerProfile) error
	ListenerCount(contentID string) (uint64, error)
	SetListenerCount(contentID string, count uint64) error
}

// Engine implements the gift economy strategy: listening is free and accrues
// reward points, optional tips flow through the royalty table. Reward points
// are computed here and reported outward; the engine never mints or moves
// reward tokens.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine constructs a gift economy engine with default dependencies.
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
	cfg, ok, err := e.state.GiftConfigGet(contentID)
	if err != nil {
		return nil, err
	}
	if !ok || cfg == nil || cfg.Epoch != reg.ConfigEpoch {
		return nil, ErrNotConfigured
	}
	return cfg, nil
}

// ConfigParams bundles the tunables accepted by ConfigureGiftEconomy.
type ConfigParams struct {
	Recipients          []types.Address
	BasisPoints         []uint32
	Roles               []string
	AllowTip            bool
	TipMinimum          *big.Int
	RewardPerListen     *big.Int
	EarlyBonus          *big.Int
	EarlyThreshold      uint64
	RepeatMultiplierBps uint32
	// RepeatInterval defaults to DefaultRepeatInterval when zero.
	RepeatInterval uint64
}

// ConfigureGiftEconomy installs the gift economy parameters for the content.
// Owner-only, at most once per config epoch. The repeat multiplier must never
// be punitive: anything below 10000 bps (1x) is rejected.
func (e *Engine) ConfigureGiftEconomy(caller types.Address, contentID string, params ConfigParams) (*Config, error) {
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
	if existing, ok, err := e.state.GiftConfigGet(contentID); err != nil {
		return nil, err
	} else if ok && existing != nil && existing.Epoch == reg.ConfigEpoch {
		return nil, ErrAlreadyConfigured
	}
	if params.RepeatMultiplierBps < split.BpsDenominator {
		return nil, ErrMultiplierTooLow
	}
	table, err := split.NewTable(params.Recipients, params.BasisPoints, params.Roles)
	if err != nil {
		return nil, err
	}
	interval := params.RepeatInterval
	if interval == 0 {
		interval = DefaultRepeatInterval
	}
	cfg := &Config{
		ContentID:           contentID,
		Table:               table,
		AllowTip:            params.AllowTip,
		TipMinimum:          bigOrZero(params.TipMinimum),
		RewardPerListen:     bigOrZero(params.RewardPerListen),
		EarlyBonus:          bigOrZero(params.EarlyBonus),
		EarlyThreshold:      params.EarlyThreshold,
		RepeatMultiplierBps: params.RepeatMultiplierBps,
		RepeatInterval:      interval,
		Epoch:               reg.ConfigEpoch,
		ConfiguredAt:        e.now(),
	}
	if err := e.state.GiftConfigPut(cfg); err != nil {
		return nil, err
	}
	e.emit(EconomyConfiguredEvent(contentID, cfg.RepeatInterval, cfg.RepeatMultiplierBps))
	return cfg.Clone(), nil
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
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

// CalculateSplits computes the tip distribution for the supplied net amount
// without touching state.
func (e *Engine) CalculateSplits(contentID string, net *big.Int) ([]split.Distribution, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	cfg, err := e.config(contentID)
	if err != nil {
		return nil, err
	}
	return cfg.Table.Allocate(net)
}

// Profile returns the listener profile, or an empty profile if the listener
// has never interacted with the content.
func (e *Engine) Profile(contentID string, listener types.Address) (*ListenerProfile, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	profile, ok, err := e.state.ListenerProfileGet(contentID, listener)
	if err != nil {
		return nil, err
	}
	if !ok || profile == nil {
		return &ListenerProfile{ContentID: contentID, Listener: listener, RewardBalance: big.NewInt(0)}, nil
	}
	return profile.Clone(), nil
}

// accrueListen advances the listener profile by one listen and returns the
// reward earned. The repeat multiplier applies to the base reward of every
// interval-th listen only; the early bonus is granted once, on the first
// interaction while the distinct-listener count is under the threshold.
func (e *Engine) accrueListen(cfg *Config, contentID string, listener types.Address) (*big.Int, *ListenerProfile, error) {
	profile, ok, err := e.state.ListenerProfileGet(contentID, listener)
	if err != nil {
		return nil, nil, err
	}
	first := !ok || profile == nil
	if first {
		profile = &ListenerProfile{ContentID: contentID, Listener: listener, RewardBalance: big.NewInt(0)}
	}
	if profile.RewardBalance == nil {
		profile.RewardBalance = big.NewInt(0)
	}

	reward := bigOrZero(cfg.RewardPerListen)
	profile.StreamCount++
	if cfg.RepeatInterval > 0 && profile.StreamCount%cfg.RepeatInterval == 0 {
		reward = reward.Mul(reward, new(big.Int).SetUint64(uint64(cfg.RepeatMultiplierBps)))
		reward = reward.Quo(reward, big.NewInt(split.BpsDenominator))
	}
	if first {
		count, err := e.state.ListenerCount(contentID)
		if err != nil {
			return nil, nil, err
		}
		if count < cfg.EarlyThreshold {
			reward = reward.Add(reward, bigOrZero(cfg.EarlyBonus))
			profile.Early = true
		}
		if err := e.state.SetListenerCount(contentID, count+1); err != nil {
			return nil, nil, err
		}
	}

	profile.RewardBalance = new(big.Int).Add(profile.RewardBalance, reward)
	profile.LastStreamAt = e.now()
	if err := e.state.ListenerProfilePut(profile); err != nil {
		return nil, nil, err
	}
	return reward, profile, nil
}

// ProcessPayment implements strategy.Strategy.
//
// Streams must carry a zero amount: listening is free and only accrues reward
// points, and plays below the qualification threshold accrue nothing. Tips
// must be positive, clear the configured minimum, and additionally credit the
// tipper with one listen's worth of reward.
func (e *Engine) ProcessPayment(p strategy.Payment, net *big.Int) (*strategy.Outcome, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	cfg, err := e.config(p.ContentID)
	if err != nil {
		return nil, err
	}
	amount := p.AmountValue()

	switch p.Type {
	case strategy.PaymentStream:
		if amount.Sign() != 0 {
			return nil, ErrStreamNotFree
		}
		if !p.Qualified() {
			return &strategy.Outcome{}, nil
		}
		reward, profile, err := e.accrueListen(cfg, p.ContentID, p.Payer)
		if err != nil {
			return nil, err
		}
		e.emit(RewardAccruedEvent(p.ContentID, types.FormatAddress(p.Payer), reward.String(), profile.Early))
		return &strategy.Outcome{Reward: &strategy.Reward{Account: p.Payer, Amount: reward}}, nil

	case strategy.PaymentTip:
		if amount.Sign() <= 0 {
			return nil, ErrZeroTip
		}
		if !cfg.AllowTip {
			return nil, ErrTipsDisabled
		}
		if cfg.TipMinimum != nil && cfg.TipMinimum.Sign() > 0 && amount.Cmp(cfg.TipMinimum) < 0 {
			return nil, ErrTipBelowMinimum
		}
		splits, err := cfg.Table.Allocate(net)
		if err != nil {
			return nil, err
		}
		reward, profile, err := e.accrueListen(cfg, p.ContentID, p.Payer)
		if err != nil {
			return nil, err
		}
		e.emit(RewardAccruedEvent(p.ContentID, types.FormatAddress(p.Payer), reward.String(), profile.Early))
		return &strategy.Outcome{
			Splits: splits,
			Reward: &strategy.Reward{Account: p.Payer, Amount: reward},
		}, nil

	default:
		return nil, ErrUnsupportedType
	}
}
