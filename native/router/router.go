package router

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"splitstream/core/events"
	"splitstream/core/types"
	"splitstream/native/auction"
	"splitstream/native/content"
	"splitstream/native/fees"
	"splitstream/native/patronage"
	"splitstream/native/split"
	"splitstream/native/strategy"
	"splitstream/observability"
)

type engineState interface {
	RegistrationGet(id string) (*content.Registration, bool, error)
	ContentStatsGet(id string) (*ContentStats, bool, error)
	ContentStatsPut(stats *ContentStats) error
	FeePolicyGet() (*fees.Policy, bool, error)
	FeePolicyPut(policy *fees.Policy) error
	Snapshot() int
	RevertToSnapshot(revision int)
	DiscardSnapshot(revision int)
}

// Router is the single entry point for payments. It resolves the content's
// strategy, takes the protocol fee, delegates split computation, verifies
// conservation and hands the final distributions to the settlement ledger.
// Any ledger failure rolls the whole payment back.
type Router struct {
	mu       sync.Mutex
	inFlight map[string]struct{}

	state     engineState
	registry  *Registry
	settler   Settler
	emitter   events.Emitter
	metrics   *observability.PaymentMetrics
	admin     types.Address
	patronage *patronage.Engine
	auction   *auction.Engine
	nowFn     func() int64
}

// NewRouter constructs a router around the supplied strategy registry.
func NewRouter(registry *Registry) *Router {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Router{
		inFlight: make(map[string]struct{}),
		registry: registry,
		emitter:  events.NoopEmitter{},
		nowFn: func() int64 {
			return time.Now().Unix()
		},
	}
}

// SetState configures the state backend used by the router.
func (r *Router) SetState(state engineState) { r.state = state }

// SetSettler configures the external value ledger.
func (r *Router) SetSettler(settler Settler) { r.settler = settler }

// SetEmitter configures the event emitter used by the router.
func (r *Router) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetMetrics wires the payment metrics registry. A nil registry disables
// metric collection.
func (r *Router) SetMetrics(metrics *observability.PaymentMetrics) { r.metrics = metrics }

// SetAdmin configures the address allowed to replace the fee policy.
func (r *Router) SetAdmin(admin types.Address) { r.admin = admin }

// SetPatronageEngine wires the patronage engine used by the subscription
// actions.
func (r *Router) SetPatronageEngine(engine *patronage.Engine) { r.patronage = engine }

// SetAuctionEngine wires the auction engine used by the purchase actions.
func (r *Router) SetAuctionEngine(engine *auction.Engine) { r.auction = engine }

// SetNowFunc overrides the time source used for deterministic testing.
func (r *Router) SetNowFunc(now func() int64) {
	if now == nil {
		r.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	r.nowFn = now
}

func (r *Router) emit(evt *types.Event) {
	if r == nil || evt == nil || r.emitter == nil {
		return
	}
	r.emitter.Emit(WrapEvent(evt))
}

func (r *Router) now() int64 {
	if r == nil || r.nowFn == nil {
		return time.Now().Unix()
	}
	return r.nowFn()
}

// acquire marks the content id as in flight. Every operation against the
// same content is serialized behind this marker; a second entry is rejected
// rather than queued because the settlement ledger may call back into the
// router and queueing would deadlock.
func (r *Router) acquire(key string) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.inFlight[key]; ok {
		return nil, ErrPaymentInFlight
	}
	r.inFlight[key] = struct{}{}
	return func() {
		r.mu.Lock()
		delete(r.inFlight, key)
		r.mu.Unlock()
	}, nil
}

// FeePolicy returns the active protocol fee policy. Before the admin sets
// one, the zero policy applies and no fee is taken.
func (r *Router) FeePolicy() (fees.Policy, error) {
	if r == nil || r.state == nil {
		return fees.Policy{}, ErrNilState
	}
	policy, ok, err := r.state.FeePolicyGet()
	if err != nil {
		return fees.Policy{}, err
	}
	if !ok || policy == nil {
		return fees.Policy{}, nil
	}
	return *policy, nil
}

// SetFeePolicy replaces the protocol fee policy. Only the settlement admin
// may call this; the version increments on every accepted update.
func (r *Router) SetFeePolicy(caller types.Address, feeBps uint32, collector types.Address) (fees.Policy, error) {
	if r == nil || r.state == nil {
		return fees.Policy{}, ErrNilState
	}
	if types.ZeroAddress(r.admin) || caller != r.admin {
		return fees.Policy{}, ErrNotAdmin
	}
	current, err := r.FeePolicy()
	if err != nil {
		return fees.Policy{}, err
	}
	next := fees.Policy{FeeBps: feeBps, Collector: collector, Version: current.Version + 1}
	if err := next.Validate(); err != nil {
		return fees.Policy{}, err
	}
	if err := r.state.FeePolicyPut(&next); err != nil {
		return fees.Policy{}, err
	}
	r.emit(FeePolicyUpdatedEvent(next.FeeBps, types.FormatAddress(next.Collector), next.Version))
	return next, nil
}

// resolve loads the registration and the strategy bound to the content.
func (r *Router) resolve(contentID string) (*content.Registration, strategy.Strategy, error) {
	reg, ok, err := r.state.RegistrationGet(contentID)
	if err != nil {
		return nil, nil, err
	}
	if !ok || reg == nil {
		return nil, nil, ErrContentNotRegistered
	}
	strat, err := r.registry.Get(reg.StrategyID)
	if err != nil {
		return nil, nil, err
	}
	return reg, strat, nil
}

// ProcessPayment settles one payment end to end. Validation happens before
// any state is touched; once the strategy has run, the distributed total plus
// the protocol fee must equal the gross amount exactly or the payment is
// rolled back. A ledger rejection likewise reverts every state change made
// for this payment.
func (r *Router) ProcessPayment(p strategy.Payment) (*Receipt, error) {
	if r == nil || r.state == nil {
		return nil, ErrNilState
	}
	if r.settler == nil {
		return nil, ErrNilSettler
	}
	gross := p.AmountValue()
	if gross.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	if p.Type == strategy.PaymentTip && gross.Sign() <= 0 {
		return nil, ErrInvalidTip
	}
	release, err := r.acquire(p.ContentID)
	if err != nil {
		return nil, err
	}
	defer release()

	reg, strat, err := r.resolve(p.ContentID)
	if err != nil {
		return nil, err
	}
	if configured, err := strat.Configured(p.ContentID); err != nil {
		return nil, err
	} else if !configured {
		return nil, ErrStrategyNotConfigured
	}

	policy, err := r.FeePolicy()
	if err != nil {
		return nil, err
	}
	fee, net := policy.Apply(gross)

	revision := r.state.Snapshot()
	outcome, err := strat.ProcessPayment(p, net)
	if err != nil {
		r.state.RevertToSnapshot(revision)
		r.observeError(reg.StrategyID, "strategy")
		return nil, err
	}
	if outcome == nil {
		outcome = &strategy.Outcome{}
	}

	distributed := split.Sum(outcome.Splits)
	distributed = distributed.Add(distributed, fee)
	if distributed.Cmp(gross) != 0 {
		r.state.RevertToSnapshot(revision)
		r.observeError(reg.StrategyID, "conservation")
		return nil, fmt.Errorf("%w: distributed %s gross %s", ErrConservation, distributed, gross)
	}

	// Every internal write happens before the ledger call so a settlement
	// failure can revert them all and a stats failure aborts before any
	// value moves.
	if err := r.recordStats(p.ContentID, p.Type, gross, fee, net); err != nil {
		r.state.RevertToSnapshot(revision)
		return nil, err
	}

	legs := make([]split.Distribution, 0, len(outcome.Splits)+1)
	legs = append(legs, outcome.Splits...)
	if fee.Sign() > 0 {
		legs = append(legs, split.Distribution{
			Recipient: policy.Collector,
			Role:      FeeLegRole,
			Amount:    new(big.Int).Set(fee),
		})
	}
	if len(legs) > 0 {
		started := time.Now()
		if err := r.settler.Settle(p.Payer, legs); err != nil {
			r.state.RevertToSnapshot(revision)
			r.observeError(reg.StrategyID, "ledger")
			r.emit(RevertedEvent(p.ContentID, types.FormatAddress(p.Payer), err.Error()))
			return nil, fmt.Errorf("%w: %w", ErrSettlementFailed, err)
		}
		r.observeSettle(reg.StrategyID, time.Since(started).Seconds())
	}
	r.state.DiscardSnapshot(revision)

	receipt := &Receipt{
		ID:          uuid.NewString(),
		ContentID:   p.ContentID,
		StrategyID:  reg.StrategyID,
		Payer:       p.Payer,
		Type:        p.Type,
		Gross:       gross,
		Fee:         fee,
		Net:         net,
		Legs:        legs,
		Reward:      outcome.Reward,
		ProcessedAt: r.now(),
	}
	r.observePayment(reg.StrategyID, p.Type.String(), "settled")
	r.observeValue(reg.StrategyID, gross)
	r.emit(SettledEvent(receipt))
	return receipt, nil
}

// PreviewSplits computes the fee and splits a hypothetical payment would
// produce without settling anything.
func (r *Router) PreviewSplits(contentID string, amount *big.Int) (*Preview, error) {
	if r == nil || r.state == nil {
		return nil, ErrNilState
	}
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	reg, strat, err := r.resolve(contentID)
	if err != nil {
		return nil, err
	}
	previewer, ok := strat.(SplitPreviewer)
	if !ok {
		return nil, ErrPreviewUnsupported
	}
	policy, err := r.FeePolicy()
	if err != nil {
		return nil, err
	}
	gross := new(big.Int).Set(amount)
	fee, net := policy.Apply(gross)
	splits, err := previewer.CalculateSplits(contentID, net)
	if err != nil {
		return nil, err
	}
	return &Preview{
		ContentID:  contentID,
		StrategyID: reg.StrategyID,
		Gross:      gross,
		Fee:        fee,
		Net:        net,
		Splits:     splits,
	}, nil
}

// settleCharge pushes a strategy-produced charge through the ordinary fee and
// settlement pipeline with the beneficiary as the sole recipient.
func (r *Router) settleCharge(contentID, strategyID string, paymentType strategy.PaymentType, charge *strategy.Charge) (*Receipt, error) {
	gross := big.NewInt(0)
	if charge != nil && charge.Amount != nil {
		gross = new(big.Int).Set(charge.Amount)
	}
	if gross.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	policy, err := r.FeePolicy()
	if err != nil {
		return nil, err
	}
	fee, net := policy.Apply(gross)
	legs := []split.Distribution{{
		Recipient: charge.Beneficiary,
		Role:      charge.Role,
		Amount:    net,
	}}
	if fee.Sign() > 0 {
		legs = append(legs, split.Distribution{
			Recipient: policy.Collector,
			Role:      FeeLegRole,
			Amount:    new(big.Int).Set(fee),
		})
	}
	// Stats are written before the ledger call; the caller's snapshot
	// reverts them together with the charge if settlement fails.
	if err := r.recordStats(contentID, paymentType, gross, fee, net); err != nil {
		return nil, err
	}
	started := time.Now()
	if err := r.settler.Settle(charge.Payer, legs); err != nil {
		r.observeError(strategyID, "ledger")
		r.emit(RevertedEvent(contentID, types.FormatAddress(charge.Payer), err.Error()))
		return nil, fmt.Errorf("%w: %w", ErrSettlementFailed, err)
	}
	r.observeSettle(strategyID, time.Since(started).Seconds())
	receipt := &Receipt{
		ID:          uuid.NewString(),
		ContentID:   contentID,
		StrategyID:  strategyID,
		Payer:       charge.Payer,
		Type:        paymentType,
		Gross:       gross,
		Fee:         fee,
		Net:         net,
		Legs:        legs,
		ProcessedAt: r.now(),
	}
	r.observePayment(strategyID, paymentType.String(), "settled")
	r.observeValue(strategyID, gross)
	r.emit(SettledEvent(receipt))
	return receipt, nil
}

// Subscribe opens a patronage subscription and settles the first billing
// period. A ledger rejection rolls the subscription record back.
func (r *Router) Subscribe(patron types.Address, contentID string, offeredFee *big.Int) (*patronage.Subscription, *Receipt, error) {
	if r == nil || r.state == nil {
		return nil, nil, ErrNilState
	}
	if r.settler == nil {
		return nil, nil, ErrNilSettler
	}
	if r.patronage == nil {
		return nil, nil, ErrPatronageUnavailable
	}
	release, err := r.acquire(contentID)
	if err != nil {
		return nil, nil, err
	}
	defer release()
	revision := r.state.Snapshot()
	sub, charge, err := r.patronage.Subscribe(patron, contentID, offeredFee)
	if err != nil {
		r.state.RevertToSnapshot(revision)
		return nil, nil, err
	}
	receipt, err := r.settleCharge(contentID, patronage.StrategyID, strategy.PaymentStream, charge)
	if err != nil {
		r.state.RevertToSnapshot(revision)
		return nil, nil, err
	}
	r.state.DiscardSnapshot(revision)
	return sub, receipt, nil
}

// Renew settles one further billing period for an active subscription.
func (r *Router) Renew(patron types.Address, contentID string) (*patronage.Subscription, *Receipt, error) {
	if r == nil || r.state == nil {
		return nil, nil, ErrNilState
	}
	if r.settler == nil {
		return nil, nil, ErrNilSettler
	}
	if r.patronage == nil {
		return nil, nil, ErrPatronageUnavailable
	}
	release, err := r.acquire(contentID)
	if err != nil {
		return nil, nil, err
	}
	defer release()
	revision := r.state.Snapshot()
	sub, charge, err := r.patronage.Renew(patron, contentID)
	if err != nil {
		r.state.RevertToSnapshot(revision)
		return nil, nil, err
	}
	receipt, err := r.settleCharge(contentID, patronage.StrategyID, strategy.PaymentStream, charge)
	if err != nil {
		r.state.RevertToSnapshot(revision)
		return nil, nil, err
	}
	r.state.DiscardSnapshot(revision)
	return sub, receipt, nil
}

// CancelSubscription stops auto-renewal for the patron. No value moves.
func (r *Router) CancelSubscription(patron types.Address, contentID string) (*patronage.Subscription, error) {
	if r == nil {
		return nil, ErrNilState
	}
	if r.patronage == nil {
		return nil, ErrPatronageUnavailable
	}
	return r.patronage.Cancel(patron, contentID)
}

// PurchaseAccess buys one access unit from a running Dutch auction at the
// current price and settles the purchase. A ledger rejection rolls the
// purchase record back.
func (r *Router) PurchaseAccess(buyer types.Address, contentID string, maxAcceptablePrice *big.Int) (*auction.Purchase, *Receipt, error) {
	if r == nil || r.state == nil {
		return nil, nil, ErrNilState
	}
	if r.settler == nil {
		return nil, nil, ErrNilSettler
	}
	if r.auction == nil {
		return nil, nil, ErrAuctionUnavailable
	}
	release, err := r.acquire(contentID)
	if err != nil {
		return nil, nil, err
	}
	defer release()
	revision := r.state.Snapshot()
	purchase, charge, err := r.auction.PurchaseAccess(buyer, contentID, maxAcceptablePrice)
	if err != nil {
		r.state.RevertToSnapshot(revision)
		return nil, nil, err
	}
	receipt, err := r.settleCharge(contentID, auction.StrategyID, strategy.PaymentStream, charge)
	if err != nil {
		r.state.RevertToSnapshot(revision)
		return nil, nil, err
	}
	r.state.DiscardSnapshot(revision)
	return purchase, receipt, nil
}

// EndAuction closes a running auction early. Only the content owner may do
// this; no value moves.
func (r *Router) EndAuction(caller types.Address, contentID string) (*auction.Book, error) {
	if r == nil {
		return nil, ErrNilState
	}
	if r.auction == nil {
		return nil, ErrAuctionUnavailable
	}
	return r.auction.EndAuction(caller, contentID)
}

// Stats returns the aggregated settlement statistics for the content id.
func (r *Router) Stats(contentID string) (*ContentStats, error) {
	if r == nil || r.state == nil {
		return nil, ErrNilState
	}
	stats, ok, err := r.state.ContentStatsGet(contentID)
	if err != nil {
		return nil, err
	}
	if !ok || stats == nil {
		empty := &ContentStats{ContentID: contentID}
		empty.normalize()
		return empty, nil
	}
	clone := stats.Clone()
	clone.normalize()
	return clone, nil
}

func (r *Router) recordStats(contentID string, paymentType strategy.PaymentType, gross, fee, net *big.Int) error {
	stats, ok, err := r.state.ContentStatsGet(contentID)
	if err != nil {
		return err
	}
	if !ok || stats == nil {
		stats = &ContentStats{ContentID: contentID}
	}
	stats.normalize()
	stats.Payments++
	switch paymentType {
	case strategy.PaymentTip:
		stats.Tips++
	default:
		stats.Streams++
	}
	stats.GrossVolume = new(big.Int).Add(stats.GrossVolume, gross)
	stats.FeesCollected = new(big.Int).Add(stats.FeesCollected, fee)
	stats.NetDistributed = new(big.Int).Add(stats.NetDistributed, net)
	stats.LastPaymentAt = r.now()
	return r.state.ContentStatsPut(stats)
}

func (r *Router) observePayment(strategyID, paymentType, outcome string) {
	if r.metrics != nil {
		r.metrics.ObservePayment(strategyID, paymentType, outcome)
	}
}

func (r *Router) observeError(strategyID, reason string) {
	if r.metrics != nil {
		r.metrics.ObserveError(strategyID, reason)
	}
}

func (r *Router) observeValue(strategyID string, amount *big.Int) {
	if r.metrics != nil {
		r.metrics.ObserveValue(strategyID, amount)
	}
}

func (r *Router) observeSettle(strategyID string, seconds float64) {
	if r.metrics != nil {
		r.metrics.ObserveSettleSeconds(strategyID, seconds)
	}
}
