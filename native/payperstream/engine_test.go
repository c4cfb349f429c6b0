package payperstream

import (
	"errors"
	"math/big"
	"testing"

	"splitstream/core/types"
	"splitstream/native/content"
	"splitstream/native/split"
	"splitstream/native/strategy"
)

type mockState struct {
	registrations map[string]*content.Registration
	configs       map[string]*Config
}

func newMockState() *mockState {
	return &mockState{
		registrations: make(map[string]*content.Registration),
		configs:       make(map[string]*Config),
	}
}

func (m *mockState) RegistrationGet(id string) (*content.Registration, bool, error) {
	reg, ok := m.registrations[id]
	if !ok {
		return nil, false, nil
	}
	return reg.Clone(), true, nil
}

func (m *mockState) RoyaltyConfigGet(contentID string) (*Config, bool, error) {
	cfg, ok := m.configs[contentID]
	if !ok {
		return nil, false, nil
	}
	return cfg.Clone(), true, nil
}

func (m *mockState) RoyaltyConfigPut(cfg *Config) error {
	if cfg == nil {
		return nil
	}
	m.configs[cfg.ContentID] = cfg.Clone()
	return nil
}

func testAddr(b byte) types.Address {
	var a types.Address
	a[0] = b
	return a
}

func newTestEngine(state *mockState) *Engine {
	engine := NewEngine()
	engine.SetState(state)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	return engine
}

func registerContent(state *mockState, owner types.Address, id string) {
	state.registrations[id] = &content.Registration{ID: id, Owner: owner, StrategyID: StrategyID}
}

func TestConfigureRoyaltySplit(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	owner := testAddr(1)
	registerContent(state, owner, "song-1")

	cfg, err := engine.ConfigureRoyaltySplit(owner, "song-1",
		[]types.Address{testAddr(2), testAddr(3)},
		[]uint32{7000, 3000},
		[]string{"artist", "producer"},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Table.Entries) != 2 {
		t.Fatalf("unexpected table: %+v", cfg.Table)
	}

	if _, err := engine.ConfigureRoyaltySplit(owner, "song-1",
		[]types.Address{testAddr(2)}, []uint32{10000}, []string{"artist"},
	); !errors.Is(err, ErrAlreadyConfigured) {
		t.Fatalf("expected already configured, got %v", err)
	}
}

func TestConfigureRejectsNonOwner(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	registerContent(state, testAddr(1), "song-1")

	_, err := engine.ConfigureRoyaltySplit(testAddr(9), "song-1",
		[]types.Address{testAddr(2)}, []uint32{10000}, []string{"artist"})
	if !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected owner error, got %v", err)
	}
}

func TestConfigureRejectsInvalidTables(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	owner := testAddr(1)
	registerContent(state, owner, "song-1")

	if _, err := engine.ConfigureRoyaltySplit(owner, "song-1",
		[]types.Address{testAddr(2)}, []uint32{9999}, []string{"artist"},
	); !errors.Is(err, split.ErrBasisPointTotal) {
		t.Fatalf("expected basis point error, got %v", err)
	}
	if _, err := engine.ConfigureRoyaltySplit(owner, "song-1",
		[]types.Address{testAddr(2), testAddr(3)}, []uint32{10000}, []string{"artist"},
	); !errors.Is(err, split.ErrLengthMismatch) {
		t.Fatalf("expected length mismatch, got %v", err)
	}
	if _, err := engine.ConfigureRoyaltySplit(owner, "song-1",
		nil, nil, nil,
	); !errors.Is(err, split.ErrNoRecipients) {
		t.Fatalf("expected no recipients, got %v", err)
	}
}

func TestConfigAfterRebindEpochIsVoid(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	owner := testAddr(1)
	registerContent(state, owner, "song-1")

	if _, err := engine.ConfigureRoyaltySplit(owner, "song-1",
		[]types.Address{testAddr(2)}, []uint32{10000}, []string{"artist"},
	); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A strategy rebind bumps the epoch; the old config no longer counts.
	state.registrations["song-1"].ConfigEpoch = 1
	ok, err := engine.Configured("song-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("config written under a stale epoch must be void")
	}
	if _, err := engine.ConfigureRoyaltySplit(owner, "song-1",
		[]types.Address{testAddr(2)}, []uint32{10000}, []string{"artist"},
	); err != nil {
		t.Fatalf("reconfiguration under the new epoch must succeed: %v", err)
	}
}

func TestCalculateSplitsWorkedExample(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	owner := testAddr(1)
	registerContent(state, owner, "song-1")
	if _, err := engine.ConfigureRoyaltySplit(owner, "song-1",
		[]types.Address{testAddr(2), testAddr(3), testAddr(4)},
		[]uint32{6000, 3000, 1000},
		[]string{"artist", "producer", "label"},
	); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dists, err := engine.CalculateSplits("song-1", big.NewInt(99))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if split.Sum(dists).Int64() != 99 {
		t.Fatalf("splits must conserve the net amount, got %s", split.Sum(dists))
	}
}

func TestProcessPaymentRejectsZeroAmount(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	owner := testAddr(1)
	registerContent(state, owner, "song-1")
	if _, err := engine.ConfigureRoyaltySplit(owner, "song-1",
		[]types.Address{testAddr(2)}, []uint32{10000}, []string{"artist"},
	); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := strategy.Payment{ContentID: "song-1", Payer: testAddr(9), Amount: big.NewInt(0), Type: strategy.PaymentStream}
	if _, err := engine.ProcessPayment(p, big.NewInt(0)); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("expected zero amount error, got %v", err)
	}
}

func TestProcessPaymentUnconfigured(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	registerContent(state, testAddr(1), "song-1")

	p := strategy.Payment{ContentID: "song-1", Payer: testAddr(9), Amount: big.NewInt(100), Type: strategy.PaymentStream}
	if _, err := engine.ProcessPayment(p, big.NewInt(99)); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
}
