package payperstream

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
	RoyaltyConfigGet(contentID string) (*Config, bool, error)
	RoyaltyConfigPut(cfg *Config) error
}

// Engine implements the pay-per-stream strategy: a static royalty table that
// splits every stream or tip payment among the configured recipients.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine constructs a pay-per-stream engine with default dependencies.
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

// config returns the live configuration for the content, treating configs
// written under a stale epoch as absent.
func (e *Engine) config(contentID string) (*Config, error) {
	reg, err := e.registration(contentID)
	if err != nil {
		return nil, err
	}
	cfg, ok, err := e.state.RoyaltyConfigGet(contentID)
	if err != nil {
		return nil, err
	}
	if !ok || cfg == nil || cfg.Epoch != reg.ConfigEpoch {
		return nil, ErrNotConfigured
	}
	return cfg, nil
}

// ConfigureRoyaltySplit installs the split table for the content. Owner-only,
// at most once per config epoch.
func (e *Engine) ConfigureRoyaltySplit(caller types.Address, contentID string, recipients []types.Address, basisPoints []uint32, roles []string) (*Config, error) {
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
	if existing, ok, err := e.state.RoyaltyConfigGet(contentID); err != nil {
		return nil, err
	} else if ok && existing != nil && existing.Epoch == reg.ConfigEpoch {
		return nil, ErrAlreadyConfigured
	}
	table, err := split.NewTable(recipients, basisPoints, roles)
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		ContentID:    contentID,
		Table:        table,
		Epoch:        reg.ConfigEpoch,
		ConfiguredAt: e.now(),
	}
	if err := e.state.RoyaltyConfigPut(cfg); err != nil {
		return nil, err
	}
	e.emit(SplitConfiguredEvent(contentID, len(table.Entries)))
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

// CalculateSplits computes the floor-division distribution of the net amount
// over the configured table. Residual dust goes to the first recipient so the
// distributed total always equals the input.
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

// ProcessPayment implements strategy.Strategy. Both streams and tips must
// carry a positive amount; there is no free listening in this strategy.
func (e *Engine) ProcessPayment(p strategy.Payment, net *big.Int) (*strategy.Outcome, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if p.AmountValue().Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	splits, err := e.CalculateSplits(p.ContentID, net)
	if err != nil {
		return nil, err
	}
	return &strategy.Outcome{Splits: splits}, nil
}
