package content

import (
	"strings"
	"time"

	"splitstream/core/events"
	"splitstream/core/types"
)

type engineState interface {
	RegistrationGet(id string) (*Registration, bool, error)
	RegistrationPut(reg *Registration) error
}

// Engine manages the content registry: who owns a piece of content and which
// strategy settles payments for it.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine constructs a content engine with default dependencies.
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

func sanitizeContentID(id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", ErrInvalidID
	}
	return trimmed, nil
}

func sanitizeStrategyID(id string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(id))
	if trimmed == "" {
		return "", ErrInvalidStrategy
	}
	return trimmed, nil
}

// Register records a new piece of content bound to the supplied strategy.
// Registration happens exactly once per content id.
func (e *Engine) Register(owner types.Address, id string, strategyID string) (*Registration, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if types.ZeroAddress(owner) {
		return nil, ErrInvalidOwner
	}
	sanitized, err := sanitizeContentID(id)
	if err != nil {
		return nil, err
	}
	strategy, err := sanitizeStrategyID(strategyID)
	if err != nil {
		return nil, err
	}
	if existing, ok, err := e.state.RegistrationGet(sanitized); err != nil {
		return nil, err
	} else if ok && existing != nil {
		return nil, ErrContentExists
	}
	reg := &Registration{
		ID:           sanitized,
		Owner:        owner,
		StrategyID:   strategy,
		RegisteredAt: e.now(),
	}
	if err := e.state.RegistrationPut(reg); err != nil {
		return nil, err
	}
	e.emit(RegisteredEvent(reg.ID, types.FormatAddress(reg.Owner), reg.StrategyID))
	return reg.Clone(), nil
}

// Rebind switches the content to a different strategy. Only the owner may do
// this; the config epoch bumps so any strategy-specific configuration written
// under the previous binding becomes void and must be reconfigured.
func (e *Engine) Rebind(caller types.Address, id string, strategyID string) (*Registration, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	sanitized, err := sanitizeContentID(id)
	if err != nil {
		return nil, err
	}
	strategy, err := sanitizeStrategyID(strategyID)
	if err != nil {
		return nil, err
	}
	reg, ok, err := e.state.RegistrationGet(sanitized)
	if err != nil {
		return nil, err
	}
	if !ok || reg == nil {
		return nil, ErrContentNotFound
	}
	if reg.Owner != caller {
		return nil, ErrNotOwner
	}
	reg.StrategyID = strategy
	reg.ConfigEpoch++
	if err := e.state.RegistrationPut(reg); err != nil {
		return nil, err
	}
	e.emit(ReboundEvent(reg.ID, reg.StrategyID, reg.ConfigEpoch))
	return reg.Clone(), nil
}

// Get returns the registration for the supplied content id.
func (e *Engine) Get(id string) (*Registration, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	sanitized, err := sanitizeContentID(id)
	if err != nil {
		return nil, err
	}
	reg, ok, err := e.state.RegistrationGet(sanitized)
	if err != nil {
		return nil, err
	}
	if !ok || reg == nil {
		return nil, ErrContentNotFound
	}
	return reg.Clone(), nil
}
