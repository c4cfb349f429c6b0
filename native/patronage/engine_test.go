package patronage

import (
	"errors"
	"math/big"
	"testing"

	"splitstream/core/types"
	"splitstream/native/content"
	"splitstream/native/strategy"
)

type mockState struct {
	registrations map[string]*content.Registration
	configs       map[string]*Config
	subscriptions map[string]*Subscription
}

func newMockState() *mockState {
	return &mockState{
		registrations: make(map[string]*content.Registration),
		configs:       make(map[string]*Config),
		subscriptions: make(map[string]*Subscription),
	}
}

func (m *mockState) RegistrationGet(id string) (*content.Registration, bool, error) {
	reg, ok := m.registrations[id]
	if !ok {
		return nil, false, nil
	}
	return reg.Clone(), true, nil
}

func (m *mockState) PatronageConfigGet(contentID string) (*Config, bool, error) {
	cfg, ok := m.configs[contentID]
	if !ok {
		return nil, false, nil
	}
	return cfg.Clone(), true, nil
}

func (m *mockState) PatronageConfigPut(cfg *Config) error {
	m.configs[cfg.ContentID] = cfg.Clone()
	return nil
}

func subKey(patron, beneficiary types.Address) string {
	return string(patron[:]) + "/" + string(beneficiary[:])
}

func (m *mockState) SubscriptionGet(patron, beneficiary types.Address) (*Subscription, bool, error) {
	sub, ok := m.subscriptions[subKey(patron, beneficiary)]
	if !ok {
		return nil, false, nil
	}
	return sub.Clone(), true, nil
}

func (m *mockState) SubscriptionPut(sub *Subscription) error {
	m.subscriptions[subKey(sub.Patron, sub.Beneficiary)] = sub.Clone()
	return nil
}

func testAddr(b byte) types.Address {
	var a types.Address
	a[0] = b
	return a
}

type clock struct{ now int64 }

func (c *clock) advance(seconds int64) { c.now += seconds }

func newConfiguredEngine(t *testing.T, allowCancellation bool, minimumDuration int64) (*Engine, *mockState, *clock, types.Address) {
	t.Helper()
	state := newMockState()
	engine := NewEngine()
	engine.SetState(state)
	clk := &clock{now: 1_700_000_000}
	engine.SetNowFunc(func() int64 { return clk.now })

	owner := testAddr(1)
	beneficiary := testAddr(2)
	state.registrations["album-1"] = &content.Registration{ID: "album-1", Owner: owner, StrategyID: StrategyID}
	_, err := engine.ConfigurePatronage(owner, "album-1", beneficiary, big.NewInt(100), minimumDuration, allowCancellation, [TierCount]uint32{0, 500, 1000, 2000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return engine, state, clk, beneficiary
}

func TestConfigureValidation(t *testing.T) {
	state := newMockState()
	engine := NewEngine()
	engine.SetState(state)
	owner := testAddr(1)
	state.registrations["album-1"] = &content.Registration{ID: "album-1", Owner: owner, StrategyID: StrategyID}

	var zero types.Address
	if _, err := engine.ConfigurePatronage(owner, "album-1", zero, big.NewInt(100), 0, true, [TierCount]uint32{}); !errors.Is(err, ErrInvalidBeneficiary) {
		t.Fatalf("expected beneficiary error, got %v", err)
	}
	if _, err := engine.ConfigurePatronage(owner, "album-1", testAddr(2), big.NewInt(0), 0, true, [TierCount]uint32{}); !errors.Is(err, ErrInvalidFee) {
		t.Fatalf("expected fee error, got %v", err)
	}
	if _, err := engine.ConfigurePatronage(owner, "album-1", testAddr(2), big.NewInt(100), 0, true, [TierCount]uint32{0, 0, 0, 10001}); !errors.Is(err, ErrInvalidTierBonus) {
		t.Fatalf("expected tier bonus error, got %v", err)
	}
	if _, err := engine.ConfigurePatronage(testAddr(9), "album-1", testAddr(2), big.NewInt(100), 0, true, [TierCount]uint32{}); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected owner error, got %v", err)
	}
}

func TestSubscribeChargesOnePeriod(t *testing.T) {
	engine, _, clk, beneficiary := newConfiguredEngine(t, true, 0)
	patron := testAddr(3)

	sub, charge, err := engine.Subscribe(patron, "album-1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if charge.Amount.Int64() != 100 || charge.Beneficiary != beneficiary {
		t.Fatalf("unexpected charge: %+v", charge)
	}
	if sub.StartedAt != clk.now || sub.LastPayment != clk.now || !sub.Active {
		t.Fatalf("unexpected subscription: %+v", sub)
	}

	if _, _, err := engine.Subscribe(patron, "album-1", nil); !errors.Is(err, ErrAlreadySubscribed) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestSubscribeRejectsUnderpayment(t *testing.T) {
	engine, _, _, _ := newConfiguredEngine(t, true, 0)
	if _, _, err := engine.Subscribe(testAddr(3), "album-1", big.NewInt(99)); !errors.Is(err, ErrFeeBelowConfigured) {
		t.Fatalf("expected underpayment error, got %v", err)
	}
}

func TestRenewTooEarlyAndAnchorAdvance(t *testing.T) {
	engine, _, clk, _ := newConfiguredEngine(t, true, 0)
	patron := testAddr(3)
	if _, _, err := engine.Subscribe(patron, "album-1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	started := clk.now

	if _, _, err := engine.Renew(patron, "album-1"); !errors.Is(err, ErrRenewTooEarly) {
		t.Fatalf("expected too early, got %v", err)
	}

	// Renew five days late: the anchor advances by exactly one period, not
	// to the renewal instant.
	clk.advance(BillingPeriodSeconds + 5*24*3600)
	sub, charge, err := engine.Renew(patron, "album-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if charge.Amount.Int64() != 100 {
		t.Fatalf("unexpected charge: %+v", charge)
	}
	if sub.LastPayment != started+BillingPeriodSeconds {
		t.Fatalf("anchor must advance by one period: got %d want %d", sub.LastPayment, started+BillingPeriodSeconds)
	}
}

func TestAccessWindowWithGrace(t *testing.T) {
	engine, _, clk, _ := newConfiguredEngine(t, true, 0)
	patron := testAddr(3)
	if _, _, err := engine.Subscribe(patron, "album-1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ok, err := engine.HasAccess(patron, "album-1")
	if err != nil || !ok {
		t.Fatalf("access must begin immediately: ok=%v err=%v", ok, err)
	}

	// Still inside the grace window.
	clk.advance(BillingPeriodSeconds + GracePeriodSeconds)
	if ok, _ := engine.HasAccess(patron, "album-1"); !ok {
		t.Fatal("access must persist through the grace window")
	}

	// One second past the grace window.
	clk.advance(1)
	if ok, _ := engine.HasAccess(patron, "album-1"); ok {
		t.Fatal("access must lapse once the grace window closes")
	}
}

func TestCancelKeepsPaidAccess(t *testing.T) {
	engine, _, clk, _ := newConfiguredEngine(t, true, 0)
	patron := testAddr(3)
	if _, _, err := engine.Subscribe(patron, "album-1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sub, err := engine.Cancel(patron, "album-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.Active {
		t.Fatal("cancel must clear the active flag")
	}
	if ok, _ := engine.HasAccess(patron, "album-1"); !ok {
		t.Fatal("paid-for access must survive cancellation")
	}
	clk.advance(BillingPeriodSeconds + GracePeriodSeconds + 1)
	if ok, _ := engine.HasAccess(patron, "album-1"); ok {
		t.Fatal("access must lapse after the paid window")
	}

	if _, err := engine.Cancel(patron, "album-1"); !errors.Is(err, ErrNoActiveSubscription) {
		t.Fatalf("double cancel must fail, got %v", err)
	}
	if _, _, err := engine.Renew(patron, "album-1"); !errors.Is(err, ErrNoActiveSubscription) {
		t.Fatalf("renewing a cancelled subscription must fail, got %v", err)
	}
}

func TestCancelMinimumDuration(t *testing.T) {
	minimum := int64(60 * 24 * 3600)
	engine, _, clk, _ := newConfiguredEngine(t, false, minimum)
	patron := testAddr(3)
	if _, _, err := engine.Subscribe(patron, "album-1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := engine.Cancel(patron, "album-1"); !errors.Is(err, ErrMinimumDurationNotMet) {
		t.Fatalf("expected minimum duration error, got %v", err)
	}
	clk.advance(minimum)
	if _, err := engine.Cancel(patron, "album-1"); err != nil {
		t.Fatalf("cancel after minimum duration must succeed: %v", err)
	}
}

func TestResubscribeAfterCancellation(t *testing.T) {
	engine, _, clk, _ := newConfiguredEngine(t, true, 0)
	patron := testAddr(3)
	if _, _, err := engine.Subscribe(patron, "album-1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := engine.Cancel(patron, "album-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clk.advance(100 * 24 * 3600)

	sub, _, err := engine.Subscribe(patron, "album-1", nil)
	if err != nil {
		t.Fatalf("resubscribe must succeed: %v", err)
	}
	if !sub.Active || sub.StartedAt != clk.now {
		t.Fatalf("resubscribe must restart the clock: %+v", sub)
	}
}

func TestTierBoundaries(t *testing.T) {
	engine, _, clk, _ := newConfiguredEngine(t, true, 0)
	patron := testAddr(3)
	if _, _, err := engine.Subscribe(patron, "album-1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	steps := []struct {
		advanceDays int64
		wantTier    int
		wantBonus   uint32
	}{
		{0, 0, 0},
		{90, 1, 500},
		{90, 2, 1000},
		{180, 3, 2000},
	}
	for _, step := range steps {
		clk.advance(step.advanceDays * 24 * 3600)
		tier, bonus, err := engine.Tier(patron, "album-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tier != step.wantTier || bonus != step.wantBonus {
			t.Fatalf("after +%dd: got tier=%d bonus=%d, want %d/%d", step.advanceDays, tier, bonus, step.wantTier, step.wantBonus)
		}
	}
}

func TestStreamRequiresAccess(t *testing.T) {
	engine, _, _, _ := newConfiguredEngine(t, true, 0)
	patron := testAddr(3)

	p := strategy.Payment{ContentID: "album-1", Payer: patron, Amount: big.NewInt(0), Type: strategy.PaymentStream}
	if _, err := engine.ProcessPayment(p, big.NewInt(0)); !errors.Is(err, ErrNoActiveSubscription) {
		t.Fatalf("expected no subscription error, got %v", err)
	}

	if _, _, err := engine.Subscribe(patron, "album-1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	outcome, err := engine.ProcessPayment(p, big.NewInt(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcome.Splits) != 0 {
		t.Fatalf("stream must produce no splits, got %+v", outcome.Splits)
	}
}

func TestTipsUnsupported(t *testing.T) {
	engine, _, _, _ := newConfiguredEngine(t, true, 0)
	p := strategy.Payment{ContentID: "album-1", Payer: testAddr(3), Amount: big.NewInt(10), Type: strategy.PaymentTip}
	if _, err := engine.ProcessPayment(p, big.NewInt(9)); !errors.Is(err, ErrTipsUnsupported) {
		t.Fatalf("expected tips unsupported, got %v", err)
	}
}
