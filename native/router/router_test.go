package router

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"splitstream/core/types"
	"splitstream/native/auction"
	"splitstream/native/content"
	"splitstream/native/fees"
	"splitstream/native/gift"
	"splitstream/native/patronage"
	"splitstream/native/payperstream"
	"splitstream/native/split"
	"splitstream/native/strategy"
)

type mockState struct {
	registrations map[string]*content.Registration
	royalty       map[string]*payperstream.Config
	giftConfigs   map[string]*gift.Config
	profiles      map[string]*gift.ListenerProfile
	listeners     map[string]uint64
	patronageCfg  map[string]*patronage.Config
	subs          map[string]*patronage.Subscription
	books         map[string]*auction.Book
	purchases     map[string]*auction.Purchase
	stats         map[string]*ContentStats
	policy        *fees.Policy
	statsErr      error

	snapshots []*mockState
}

func newMockState() *mockState {
	return &mockState{
		registrations: make(map[string]*content.Registration),
		royalty:       make(map[string]*payperstream.Config),
		giftConfigs:   make(map[string]*gift.Config),
		profiles:      make(map[string]*gift.ListenerProfile),
		listeners:     make(map[string]uint64),
		patronageCfg:  make(map[string]*patronage.Config),
		subs:          make(map[string]*patronage.Subscription),
		books:         make(map[string]*auction.Book),
		purchases:     make(map[string]*auction.Purchase),
		stats:         make(map[string]*ContentStats),
	}
}

func (m *mockState) copy() *mockState {
	clone := newMockState()
	for k, v := range m.registrations {
		clone.registrations[k] = v.Clone()
	}
	for k, v := range m.royalty {
		clone.royalty[k] = v.Clone()
	}
	for k, v := range m.giftConfigs {
		clone.giftConfigs[k] = v.Clone()
	}
	for k, v := range m.profiles {
		clone.profiles[k] = v.Clone()
	}
	for k, v := range m.listeners {
		clone.listeners[k] = v
	}
	for k, v := range m.patronageCfg {
		clone.patronageCfg[k] = v.Clone()
	}
	for k, v := range m.subs {
		clone.subs[k] = v.Clone()
	}
	for k, v := range m.books {
		clone.books[k] = v.Clone()
	}
	for k, v := range m.purchases {
		clone.purchases[k] = v.Clone()
	}
	for k, v := range m.stats {
		clone.stats[k] = v.Clone()
	}
	if m.policy != nil {
		policy := *m.policy
		clone.policy = &policy
	}
	return clone
}

func (m *mockState) restore(from *mockState) {
	m.registrations = from.registrations
	m.royalty = from.royalty
	m.giftConfigs = from.giftConfigs
	m.profiles = from.profiles
	m.listeners = from.listeners
	m.patronageCfg = from.patronageCfg
	m.subs = from.subs
	m.books = from.books
	m.purchases = from.purchases
	m.stats = from.stats
	m.policy = from.policy
}

func (m *mockState) Snapshot() int {
	m.snapshots = append(m.snapshots, m.copy())
	return len(m.snapshots) - 1
}

func (m *mockState) RevertToSnapshot(revision int) {
	if revision < 0 || revision >= len(m.snapshots) {
		return
	}
	m.restore(m.snapshots[revision])
	m.snapshots = m.snapshots[:revision]
}

func (m *mockState) DiscardSnapshot(revision int) {
	if revision < 0 || revision >= len(m.snapshots) {
		return
	}
	m.snapshots = m.snapshots[:revision]
}

func (m *mockState) RegistrationGet(id string) (*content.Registration, bool, error) {
	reg, ok := m.registrations[id]
	if !ok {
		return nil, false, nil
	}
	return reg.Clone(), true, nil
}

func (m *mockState) RegistrationPut(reg *content.Registration) error {
	m.registrations[reg.ID] = reg.Clone()
	return nil
}

func (m *mockState) RoyaltyConfigGet(contentID string) (*payperstream.Config, bool, error) {
	cfg, ok := m.royalty[contentID]
	if !ok {
		return nil, false, nil
	}
	return cfg.Clone(), true, nil
}

func (m *mockState) RoyaltyConfigPut(cfg *payperstream.Config) error {
	m.royalty[cfg.ContentID] = cfg.Clone()
	return nil
}

func (m *mockState) GiftConfigGet(contentID string) (*gift.Config, bool, error) {
	cfg, ok := m.giftConfigs[contentID]
	if !ok {
		return nil, false, nil
	}
	return cfg.Clone(), true, nil
}

func (m *mockState) GiftConfigPut(cfg *gift.Config) error {
	m.giftConfigs[cfg.ContentID] = cfg.Clone()
	return nil
}

func profileKey(contentID string, listener types.Address) string {
	return contentID + "/" + types.FormatAddress(listener)
}

func (m *mockState) ListenerProfileGet(contentID string, listener types.Address) (*gift.ListenerProfile, bool, error) {
	profile, ok := m.profiles[profileKey(contentID, listener)]
	if !ok {
		return nil, false, nil
	}
	return profile.Clone(), true, nil
}

func (m *mockState) ListenerProfilePut(profile *gift.ListenerProfile) error {
	m.profiles[profileKey(profile.ContentID, profile.Listener)] = profile.Clone()
	return nil
}

func (m *mockState) ListenerCount(contentID string) (uint64, error) {
	return m.listeners[contentID], nil
}

func (m *mockState) SetListenerCount(contentID string, count uint64) error {
	m.listeners[contentID] = count
	return nil
}

func (m *mockState) PatronageConfigGet(contentID string) (*patronage.Config, bool, error) {
	cfg, ok := m.patronageCfg[contentID]
	if !ok {
		return nil, false, nil
	}
	return cfg.Clone(), true, nil
}

func (m *mockState) PatronageConfigPut(cfg *patronage.Config) error {
	m.patronageCfg[cfg.ContentID] = cfg.Clone()
	return nil
}

func subKey(patron, beneficiary types.Address) string {
	return types.FormatAddress(patron) + "/" + types.FormatAddress(beneficiary)
}

func (m *mockState) SubscriptionGet(patron, beneficiary types.Address) (*patronage.Subscription, bool, error) {
	sub, ok := m.subs[subKey(patron, beneficiary)]
	if !ok {
		return nil, false, nil
	}
	return sub.Clone(), true, nil
}

func (m *mockState) SubscriptionPut(sub *patronage.Subscription) error {
	m.subs[subKey(sub.Patron, sub.Beneficiary)] = sub.Clone()
	return nil
}

func (m *mockState) AuctionBookGet(contentID string) (*auction.Book, bool, error) {
	book, ok := m.books[contentID]
	if !ok {
		return nil, false, nil
	}
	return book.Clone(), true, nil
}

func (m *mockState) AuctionBookPut(book *auction.Book) error {
	m.books[book.ContentID] = book.Clone()
	return nil
}

func (m *mockState) AuctionPurchaseGet(contentID string, buyer types.Address) (*auction.Purchase, bool, error) {
	purchase, ok := m.purchases[profileKey(contentID, buyer)]
	if !ok {
		return nil, false, nil
	}
	return purchase.Clone(), true, nil
}

func (m *mockState) AuctionPurchasePut(purchase *auction.Purchase) error {
	m.purchases[profileKey(purchase.ContentID, purchase.Buyer)] = purchase.Clone()
	return nil
}

func (m *mockState) ContentStatsGet(id string) (*ContentStats, bool, error) {
	stats, ok := m.stats[id]
	if !ok {
		return nil, false, nil
	}
	return stats.Clone(), true, nil
}

func (m *mockState) ContentStatsPut(stats *ContentStats) error {
	if m.statsErr != nil {
		return m.statsErr
	}
	m.stats[stats.ContentID] = stats.Clone()
	return nil
}

func (m *mockState) FeePolicyGet() (*fees.Policy, bool, error) {
	if m.policy == nil {
		return nil, false, nil
	}
	policy := *m.policy
	return &policy, true, nil
}

func (m *mockState) FeePolicyPut(policy *fees.Policy) error {
	clone := *policy
	m.policy = &clone
	return nil
}

type mockLedger struct {
	failErr  error
	callback func() error
	payers   []types.Address
	legs     [][]split.Distribution
}

func (l *mockLedger) Settle(payer types.Address, legs []split.Distribution) error {
	if l.failErr != nil {
		return l.failErr
	}
	if l.callback != nil {
		if err := l.callback(); err != nil {
			return err
		}
	}
	l.payers = append(l.payers, payer)
	l.legs = append(l.legs, legs)
	return nil
}

func testAddr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

type fixture struct {
	state    *mockState
	ledger   *mockLedger
	router   *Router
	pps      *payperstream.Engine
	gift     *gift.Engine
	pat      *patronage.Engine
	auct     *auction.Engine
	now      int64
	owner    types.Address
	admin    types.Address
	collect  types.Address
	listener types.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		state:    newMockState(),
		ledger:   &mockLedger{},
		now:      1_700_000_000,
		owner:    testAddr(0x01),
		admin:    testAddr(0x0a),
		collect:  testAddr(0x0f),
		listener: testAddr(0x20),
	}
	nowFn := func() int64 { return f.now }

	f.pps = payperstream.NewEngine()
	f.pps.SetState(f.state)
	f.pps.SetNowFunc(nowFn)

	f.gift = gift.NewEngine()
	f.gift.SetState(f.state)
	f.gift.SetNowFunc(nowFn)

	f.pat = patronage.NewEngine()
	f.pat.SetState(f.state)
	f.pat.SetNowFunc(nowFn)

	f.auct = auction.NewEngine()
	f.auct.SetState(f.state)
	f.auct.SetNowFunc(nowFn)

	registry := NewRegistry()
	require.NoError(t, registry.Register(f.pps))
	require.NoError(t, registry.Register(f.gift))
	require.NoError(t, registry.Register(f.pat))
	require.NoError(t, registry.Register(f.auct))

	f.router = NewRouter(registry)
	f.router.SetState(f.state)
	f.router.SetSettler(f.ledger)
	f.router.SetAdmin(f.admin)
	f.router.SetPatronageEngine(f.pat)
	f.router.SetAuctionEngine(f.auct)
	f.router.SetNowFunc(nowFn)
	return f
}

func (f *fixture) register(t *testing.T, contentID, strategyID string) {
	t.Helper()
	require.NoError(t, f.state.RegistrationPut(&content.Registration{
		ID:           contentID,
		Owner:        f.owner,
		StrategyID:   strategyID,
		RegisteredAt: f.now,
	}))
}

func (f *fixture) setFee(t *testing.T, bps uint32) {
	t.Helper()
	require.NoError(t, f.state.FeePolicyPut(&fees.Policy{FeeBps: bps, Collector: f.collect, Version: 1}))
}

func (f *fixture) configureRoyalties(t *testing.T, contentID string) {
	t.Helper()
	_, err := f.pps.ConfigureRoyaltySplit(f.owner, contentID,
		[]types.Address{testAddr(0x02), testAddr(0x03), testAddr(0x04)},
		[]uint32{6000, 3000, 1000},
		[]string{"artist", "producer", "platform"})
	require.NoError(t, err)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := NewRegistry()
	engine := payperstream.NewEngine()
	require.NoError(t, registry.Register(engine))
	require.ErrorIs(t, registry.Register(payperstream.NewEngine()), ErrStrategyExists)
	require.Equal(t, []string{payperstream.StrategyID}, registry.IDs())
}

func TestProcessPaymentPayPerStream(t *testing.T) {
	f := newFixture(t)
	f.register(t, "track-1", payperstream.StrategyID)
	f.configureRoyalties(t, "track-1")
	f.setFee(t, 100)

	receipt, err := f.router.ProcessPayment(strategy.Payment{
		ContentID: "track-1",
		Payer:     f.listener,
		Amount:    big.NewInt(100),
		Type:      strategy.PaymentStream,
	})
	require.NoError(t, err)
	require.NotEmpty(t, receipt.ID)
	require.Equal(t, payperstream.StrategyID, receipt.StrategyID)
	require.Equal(t, big.NewInt(100), receipt.Gross)
	require.Equal(t, big.NewInt(1), receipt.Fee)
	require.Equal(t, big.NewInt(99), receipt.Net)
	require.Len(t, receipt.Legs, 4)

	total := split.Sum(receipt.Legs)
	require.Equal(t, big.NewInt(100), total)
	feeLeg := receipt.Legs[len(receipt.Legs)-1]
	require.Equal(t, FeeLegRole, feeLeg.Role)
	require.Equal(t, f.collect, feeLeg.Recipient)

	require.Len(t, f.ledger.legs, 1)
	require.Equal(t, f.listener, f.ledger.payers[0])

	stats, err := f.router.Stats("track-1")
	require.NoError(t, err)
	require.Equal(t, uint64(1), stats.Payments)
	require.Equal(t, uint64(1), stats.Streams)
	require.Equal(t, big.NewInt(100), stats.GrossVolume)
	require.Equal(t, big.NewInt(1), stats.FeesCollected)
}

func TestProcessPaymentRequiresRegistration(t *testing.T) {
	f := newFixture(t)
	_, err := f.router.ProcessPayment(strategy.Payment{
		ContentID: "missing",
		Payer:     f.listener,
		Amount:    big.NewInt(10),
	})
	require.ErrorIs(t, err, ErrContentNotRegistered)
}

func TestProcessPaymentRequiresConfiguration(t *testing.T) {
	f := newFixture(t)
	f.register(t, "track-1", payperstream.StrategyID)
	_, err := f.router.ProcessPayment(strategy.Payment{
		ContentID: "track-1",
		Payer:     f.listener,
		Amount:    big.NewInt(10),
	})
	require.ErrorIs(t, err, ErrStrategyNotConfigured)
}

func TestProcessPaymentUnknownStrategy(t *testing.T) {
	f := newFixture(t)
	f.register(t, "track-1", "no-such-strategy")
	_, err := f.router.ProcessPayment(strategy.Payment{
		ContentID: "track-1",
		Payer:     f.listener,
		Amount:    big.NewInt(10),
	})
	require.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestTipMustBePositive(t *testing.T) {
	f := newFixture(t)
	f.register(t, "track-1", payperstream.StrategyID)
	f.configureRoyalties(t, "track-1")

	_, err := f.router.ProcessPayment(strategy.Payment{
		ContentID: "track-1",
		Payer:     f.listener,
		Type:      strategy.PaymentTip,
		Amount:    big.NewInt(0),
	})
	require.ErrorIs(t, err, ErrInvalidTip)
}

func TestLedgerFailureRollsBackStrategyState(t *testing.T) {
	f := newFixture(t)
	f.register(t, "track-1", gift.StrategyID)
	_, err := f.gift.ConfigureGiftEconomy(f.owner, "track-1", gift.ConfigParams{
		Recipients:          []types.Address{testAddr(0x02)},
		BasisPoints:         []uint32{10000},
		Roles:               []string{"artist"},
		AllowTip:            true,
		RewardPerListen:     big.NewInt(1),
		RepeatMultiplierBps: 10000,
	})
	require.NoError(t, err)

	f.ledger.failErr = errors.New("insufficient balance")
	_, err = f.router.ProcessPayment(strategy.Payment{
		ContentID: "track-1",
		Payer:     f.listener,
		Type:      strategy.PaymentTip,
		Amount:    big.NewInt(50),
	})
	require.ErrorIs(t, err, ErrSettlementFailed)

	// The tip accrual must have been rolled back with the payment.
	profile, err := f.gift.Profile("track-1", f.listener)
	require.NoError(t, err)
	require.Equal(t, uint64(0), profile.StreamCount)
	require.Equal(t, big.NewInt(0), profile.RewardBalance)

	stats, err := f.router.Stats("track-1")
	require.NoError(t, err)
	require.Equal(t, uint64(0), stats.Payments)
}

func TestGiftStreamSettlesWithoutLedger(t *testing.T) {
	f := newFixture(t)
	f.register(t, "track-1", gift.StrategyID)
	_, err := f.gift.ConfigureGiftEconomy(f.owner, "track-1", gift.ConfigParams{
		Recipients:          []types.Address{testAddr(0x02)},
		BasisPoints:         []uint32{10000},
		Roles:               []string{"artist"},
		RewardPerListen:     big.NewInt(2),
		RepeatMultiplierBps: 10000,
	})
	require.NoError(t, err)

	receipt, err := f.router.ProcessPayment(strategy.Payment{
		ContentID: "track-1",
		Payer:     f.listener,
		Type:      strategy.PaymentStream,
	})
	require.NoError(t, err)
	require.Equal(t, big.NewInt(0), receipt.Gross)
	require.Empty(t, receipt.Legs)
	require.NotNil(t, receipt.Reward)
	require.Equal(t, big.NewInt(2), receipt.Reward.Amount)
	require.Empty(t, f.ledger.legs)
}

func TestReentrantPaymentRejected(t *testing.T) {
	f := newFixture(t)
	f.register(t, "track-1", payperstream.StrategyID)
	f.configureRoyalties(t, "track-1")

	var reentrantErr error
	f.ledger.callback = func() error {
		_, reentrantErr = f.router.ProcessPayment(strategy.Payment{
			ContentID: "track-1",
			Payer:     f.listener,
			Amount:    big.NewInt(10),
		})
		return reentrantErr
	}
	_, err := f.router.ProcessPayment(strategy.Payment{
		ContentID: "track-1",
		Payer:     f.listener,
		Amount:    big.NewInt(100),
	})
	require.ErrorIs(t, err, ErrSettlementFailed)
	require.ErrorIs(t, reentrantErr, ErrPaymentInFlight)
}

func TestNestedPaymentSameContentRejected(t *testing.T) {
	f := newFixture(t)
	f.register(t, "track-1", payperstream.StrategyID)
	f.configureRoyalties(t, "track-1")

	// A different payer entering the same content mid-settlement must be
	// turned away; the content key is in flight regardless of who pays.
	other := testAddr(0x21)
	var nestedErr error
	f.ledger.callback = func() error {
		_, nestedErr = f.router.ProcessPayment(strategy.Payment{
			ContentID: "track-1",
			Payer:     other,
			Amount:    big.NewInt(40),
		})
		return errors.New("settlement interrupted")
	}
	_, err := f.router.ProcessPayment(strategy.Payment{
		ContentID: "track-1",
		Payer:     f.listener,
		Amount:    big.NewInt(100),
	})
	require.ErrorIs(t, err, ErrSettlementFailed)
	require.ErrorIs(t, nestedErr, ErrPaymentInFlight)

	// Neither the rejected nested payment nor the rolled-back outer one
	// left a trace.
	require.Empty(t, f.ledger.legs)
	stats, err := f.router.Stats("track-1")
	require.NoError(t, err)
	require.Equal(t, uint64(0), stats.Payments)
}

func TestPaymentsOnDistinctContentIndependent(t *testing.T) {
	f := newFixture(t)
	f.register(t, "track-1", payperstream.StrategyID)
	f.configureRoyalties(t, "track-1")
	f.register(t, "track-2", payperstream.StrategyID)
	f.configureRoyalties(t, "track-2")

	f.ledger.callback = func() error {
		f.ledger.callback = nil
		_, err := f.router.ProcessPayment(strategy.Payment{
			ContentID: "track-2",
			Payer:     f.listener,
			Amount:    big.NewInt(40),
		})
		return err
	}
	_, err := f.router.ProcessPayment(strategy.Payment{
		ContentID: "track-1",
		Payer:     f.listener,
		Amount:    big.NewInt(100),
	})
	require.NoError(t, err)
	require.Len(t, f.ledger.legs, 2)
}

func TestStatsFailureAbortsBeforeSettlement(t *testing.T) {
	f := newFixture(t)
	f.register(t, "track-1", gift.StrategyID)
	_, err := f.gift.ConfigureGiftEconomy(f.owner, "track-1", gift.ConfigParams{
		Recipients:          []types.Address{testAddr(0x02)},
		BasisPoints:         []uint32{10000},
		Roles:               []string{"artist"},
		AllowTip:            true,
		RewardPerListen:     big.NewInt(1),
		RepeatMultiplierBps: 10000,
	})
	require.NoError(t, err)

	statsErr := errors.New("stats write failed")
	f.state.statsErr = statsErr
	_, err = f.router.ProcessPayment(strategy.Payment{
		ContentID: "track-1",
		Payer:     f.listener,
		Type:      strategy.PaymentTip,
		Amount:    big.NewInt(50),
	})
	require.ErrorIs(t, err, statsErr)

	// No value moved and the tip accrual was rolled back.
	require.Empty(t, f.ledger.legs)
	profile, err := f.gift.Profile("track-1", f.listener)
	require.NoError(t, err)
	require.Equal(t, uint64(0), profile.StreamCount)
}

func TestStatsFailureAbortsChargeBeforeSettlement(t *testing.T) {
	f := newFixture(t)
	f.register(t, "show-1", patronage.StrategyID)
	_, err := f.pat.ConfigurePatronage(f.owner, "show-1", f.owner, big.NewInt(500), 0, true, [patronage.TierCount]uint32{})
	require.NoError(t, err)

	statsErr := errors.New("stats write failed")
	f.state.statsErr = statsErr
	_, _, err = f.router.Subscribe(f.listener, "show-1", nil)
	require.ErrorIs(t, err, statsErr)

	require.Empty(t, f.ledger.legs)
	ok, err := f.pat.HasAccess(f.listener, "show-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSetFeePolicyAdminOnly(t *testing.T) {
	f := newFixture(t)

	_, err := f.router.SetFeePolicy(f.listener, 100, f.collect)
	require.ErrorIs(t, err, ErrNotAdmin)

	policy, err := f.router.SetFeePolicy(f.admin, 100, f.collect)
	require.NoError(t, err)
	require.Equal(t, uint64(1), policy.Version)

	policy, err = f.router.SetFeePolicy(f.admin, 200, f.collect)
	require.NoError(t, err)
	require.Equal(t, uint64(2), policy.Version)

	_, err = f.router.SetFeePolicy(f.admin, fees.MaxFeeBps+1, f.collect)
	require.ErrorIs(t, err, fees.ErrFeeTooHigh)
}

func TestPreviewSplitsDoesNotSettle(t *testing.T) {
	f := newFixture(t)
	f.register(t, "track-1", payperstream.StrategyID)
	f.configureRoyalties(t, "track-1")
	f.setFee(t, 100)

	preview, err := f.router.PreviewSplits("track-1", big.NewInt(100))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1), preview.Fee)
	require.Equal(t, big.NewInt(99), preview.Net)
	require.Equal(t, big.NewInt(99), split.Sum(preview.Splits))
	require.Empty(t, f.ledger.legs)

	stats, err := f.router.Stats("track-1")
	require.NoError(t, err)
	require.Equal(t, uint64(0), stats.Payments)
}

func TestSubscribeSettlesFirstPeriod(t *testing.T) {
	f := newFixture(t)
	f.register(t, "show-1", patronage.StrategyID)
	_, err := f.pat.ConfigurePatronage(f.owner, "show-1", f.owner, big.NewInt(500), 0, true, [patronage.TierCount]uint32{0, 500, 1000, 2000})
	require.NoError(t, err)
	f.setFee(t, 100)

	sub, receipt, err := f.router.Subscribe(f.listener, "show-1", nil)
	require.NoError(t, err)
	require.True(t, sub.Active)
	require.Equal(t, big.NewInt(500), receipt.Gross)
	require.Equal(t, big.NewInt(5), receipt.Fee)
	require.Equal(t, big.NewInt(495), receipt.Net)
	require.Equal(t, big.NewInt(500), split.Sum(receipt.Legs))

	ok, err := f.pat.HasAccess(f.listener, "show-1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSubscribeRollsBackOnLedgerFailure(t *testing.T) {
	f := newFixture(t)
	f.register(t, "show-1", patronage.StrategyID)
	_, err := f.pat.ConfigurePatronage(f.owner, "show-1", f.owner, big.NewInt(500), 0, true, [patronage.TierCount]uint32{})
	require.NoError(t, err)

	f.ledger.failErr = errors.New("insufficient balance")
	_, _, err = f.router.Subscribe(f.listener, "show-1", nil)
	require.ErrorIs(t, err, ErrSettlementFailed)

	ok, err := f.pat.HasAccess(f.listener, "show-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRenewAdvancesAnchor(t *testing.T) {
	f := newFixture(t)
	f.register(t, "show-1", patronage.StrategyID)
	_, err := f.pat.ConfigurePatronage(f.owner, "show-1", f.owner, big.NewInt(500), 0, true, [patronage.TierCount]uint32{})
	require.NoError(t, err)

	sub, _, err := f.router.Subscribe(f.listener, "show-1", nil)
	require.NoError(t, err)
	started := sub.LastPayment

	f.now += patronage.BillingPeriodSeconds + 3600
	sub, receipt, err := f.router.Renew(f.listener, "show-1")
	require.NoError(t, err)
	require.Equal(t, started+patronage.BillingPeriodSeconds, sub.LastPayment)
	require.Equal(t, big.NewInt(500), receipt.Gross)
}

func TestPurchaseAccessSettlesAtCurrentPrice(t *testing.T) {
	f := newFixture(t)
	f.register(t, "album-1", auction.StrategyID)
	_, err := f.auct.CreateDutchAuction(f.owner, "album-1", f.owner, big.NewInt(100), big.NewInt(10), 7*24*3600, 5)
	require.NoError(t, err)

	purchase, receipt, err := f.router.PurchaseAccess(f.listener, "album-1", big.NewInt(100))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(100), purchase.Price)
	require.Equal(t, big.NewInt(100), receipt.Gross)

	ok, err := f.auct.HasAccess(f.listener, "album-1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPurchaseAccessRollsBackOnLedgerFailure(t *testing.T) {
	f := newFixture(t)
	f.register(t, "album-1", auction.StrategyID)
	_, err := f.auct.CreateDutchAuction(f.owner, "album-1", f.owner, big.NewInt(100), big.NewInt(10), 7*24*3600, 5)
	require.NoError(t, err)

	f.ledger.failErr = errors.New("insufficient balance")
	_, _, err = f.router.PurchaseAccess(f.listener, "album-1", big.NewInt(100))
	require.ErrorIs(t, err, ErrSettlementFailed)

	ok, err := f.auct.HasAccess(f.listener, "album-1")
	require.NoError(t, err)
	require.False(t, ok)

	stats, err := f.auct.Stats("album-1")
	require.NoError(t, err)
	require.Equal(t, uint64(0), stats.Sold)
}

func FuzzProcessPaymentConservation(f *testing.F) {
	f.Add(int64(100), uint32(100))
	f.Add(int64(1), uint32(500))
	f.Add(int64(999_999_999), uint32(0))
	f.Fuzz(func(t *testing.T, amount int64, feeBps uint32) {
		if amount <= 0 {
			t.Skip()
		}
		feeBps %= fees.MaxFeeBps + 1
		fx := newFixture(t)
		fx.register(t, "track-1", payperstream.StrategyID)
		fx.configureRoyalties(t, "track-1")
		if feeBps > 0 {
			fx.setFee(t, feeBps)
		}
		receipt, err := fx.router.ProcessPayment(strategy.Payment{
			ContentID: "track-1",
			Payer:     fx.listener,
			Amount:    big.NewInt(amount),
			Type:      strategy.PaymentStream,
		})
		if err != nil {
			t.Fatalf("process payment: %v", err)
		}
		if split.Sum(receipt.Legs).Cmp(receipt.Gross) != 0 {
			t.Fatalf("legs %s != gross %s", split.Sum(receipt.Legs), receipt.Gross)
		}
		if new(big.Int).Add(receipt.Fee, receipt.Net).Cmp(receipt.Gross) != 0 {
			t.Fatalf("fee %s + net %s != gross %s", receipt.Fee, receipt.Net, receipt.Gross)
		}
	})
}
