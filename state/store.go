package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"splitstream/core/types"
	"splitstream/native/auction"
	"splitstream/native/content"
	"splitstream/native/fees"
	"splitstream/native/gift"
	"splitstream/native/patronage"
	"splitstream/native/payperstream"
	"splitstream/native/router"
	"splitstream/storage"
)

const (
	registrationPrefix    = "content/"
	royaltyPrefix         = "royalty/"
	giftConfigPrefix      = "gift/config/"
	giftProfilePrefix     = "gift/profile/"
	giftListenersPrefix   = "gift/listeners/"
	patronageConfigPrefix = "patronage/config/"
	subscriptionPrefix    = "patronage/sub/"
	auctionBookPrefix     = "auction/book/"
	auctionPurchasePrefix = "auction/purchase/"
	contentStatsPrefix    = "stats/"
	feePolicyKey          = "fees/policy"
)

// journalEntry records the previous value of one overwritten key so a
// revert can restore it.
type journalEntry struct {
	key     string
	prev    []byte
	existed bool
}

// Store persists engine state as JSON documents in a key-value backend.
// Snapshot opens an exclusive settlement section held until the matching
// RevertToSnapshot or DiscardSnapshot: a second Snapshot blocks until the
// first section closes, so the undo journals of two settlements can never
// interleave. Writes outside a section are not journalled and cannot be
// reverted.
type Store struct {
	mu        sync.Mutex
	section   sync.Mutex
	db        storage.Database
	journal   []journalEntry
	recording bool
}

// NewStore wraps the supplied backend.
func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

// Snapshot opens a settlement section and returns its revision marker.
func (s *Store) Snapshot() int {
	s.section.Lock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recording = true
	return len(s.journal)
}

// RevertToSnapshot undoes every write made after the supplied revision, in
// reverse order, and closes the section. Without an open section this is a
// no-op.
func (s *Store) RevertToSnapshot(revision int) {
	s.mu.Lock()
	if !s.recording {
		s.mu.Unlock()
		return
	}
	revision = s.clamp(revision)
	for i := len(s.journal) - 1; i >= revision; i-- {
		entry := s.journal[i]
		if entry.existed {
			_ = s.db.Put([]byte(entry.key), entry.prev)
		} else {
			_ = s.db.Delete([]byte(entry.key))
		}
	}
	s.journal = s.journal[:revision]
	s.recording = false
	s.mu.Unlock()
	s.section.Unlock()
}

// DiscardSnapshot drops the undo log accumulated since the revision and
// closes the section, typically after a settlement has been finalised.
// Reverting the settlement is no longer possible. Without an open section
// this is a no-op.
func (s *Store) DiscardSnapshot(revision int) {
	s.mu.Lock()
	if !s.recording {
		s.mu.Unlock()
		return
	}
	s.journal = s.journal[:s.clamp(revision)]
	s.recording = false
	s.mu.Unlock()
	s.section.Unlock()
}

func (s *Store) clamp(revision int) int {
	if revision < 0 {
		return 0
	}
	if revision > len(s.journal) {
		return len(s.journal)
	}
	return revision
}

func (s *Store) getJSON(key string, into any) (bool, error) {
	raw, err := s.db.Get([]byte(key))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return false, fmt.Errorf("state: decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) putJSON(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recording {
		return s.db.Put([]byte(key), raw)
	}
	prev, getErr := s.db.Get([]byte(key))
	existed := getErr == nil
	if getErr != nil && !errors.Is(getErr, storage.ErrNotFound) {
		return getErr
	}
	if err := s.db.Put([]byte(key), raw); err != nil {
		return err
	}
	s.journal = append(s.journal, journalEntry{key: key, prev: prev, existed: existed})
	return nil
}

// RegistrationGet returns the content registration for the id.
func (s *Store) RegistrationGet(id string) (*content.Registration, bool, error) {
	reg := new(content.Registration)
	ok, err := s.getJSON(registrationPrefix+id, reg)
	if !ok || err != nil {
		return nil, false, err
	}
	return reg, true, nil
}

// RegistrationPut stores the content registration.
func (s *Store) RegistrationPut(reg *content.Registration) error {
	return s.putJSON(registrationPrefix+reg.ID, reg)
}

// RoyaltyConfigGet returns the pay-per-stream configuration for the content.
func (s *Store) RoyaltyConfigGet(contentID string) (*payperstream.Config, bool, error) {
	cfg := new(payperstream.Config)
	ok, err := s.getJSON(royaltyPrefix+contentID, cfg)
	if !ok || err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

// RoyaltyConfigPut stores the pay-per-stream configuration.
func (s *Store) RoyaltyConfigPut(cfg *payperstream.Config) error {
	return s.putJSON(royaltyPrefix+cfg.ContentID, cfg)
}

// GiftConfigGet returns the gift economy configuration for the content.
func (s *Store) GiftConfigGet(contentID string) (*gift.Config, bool, error) {
	cfg := new(gift.Config)
	ok, err := s.getJSON(giftConfigPrefix+contentID, cfg)
	if !ok || err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

// GiftConfigPut stores the gift economy configuration.
func (s *Store) GiftConfigPut(cfg *gift.Config) error {
	return s.putJSON(giftConfigPrefix+cfg.ContentID, cfg)
}

func profileKey(contentID string, listener types.Address) string {
	return giftProfilePrefix + contentID + "/" + types.FormatAddress(listener)
}

// ListenerProfileGet returns the accrual profile for one listener.
func (s *Store) ListenerProfileGet(contentID string, listener types.Address) (*gift.ListenerProfile, bool, error) {
	profile := new(gift.ListenerProfile)
	ok, err := s.getJSON(profileKey(contentID, listener), profile)
	if !ok || err != nil {
		return nil, false, err
	}
	return profile, true, nil
}

// ListenerProfilePut stores the accrual profile.
func (s *Store) ListenerProfilePut(profile *gift.ListenerProfile) error {
	return s.putJSON(profileKey(profile.ContentID, profile.Listener), profile)
}

// ListenerCount returns the distinct-listener counter for the content.
func (s *Store) ListenerCount(contentID string) (uint64, error) {
	var count uint64
	if _, err := s.getJSON(giftListenersPrefix+contentID, &count); err != nil {
		return 0, err
	}
	return count, nil
}

// SetListenerCount stores the distinct-listener counter.
func (s *Store) SetListenerCount(contentID string, count uint64) error {
	return s.putJSON(giftListenersPrefix+contentID, count)
}

// PatronageConfigGet returns the patronage configuration for the content.
func (s *Store) PatronageConfigGet(contentID string) (*patronage.Config, bool, error) {
	cfg := new(patronage.Config)
	ok, err := s.getJSON(patronageConfigPrefix+contentID, cfg)
	if !ok || err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

// PatronageConfigPut stores the patronage configuration.
func (s *Store) PatronageConfigPut(cfg *patronage.Config) error {
	return s.putJSON(patronageConfigPrefix+cfg.ContentID, cfg)
}

func subscriptionKey(patron, beneficiary types.Address) string {
	return subscriptionPrefix + types.FormatAddress(patron) + "/" + types.FormatAddress(beneficiary)
}

// SubscriptionGet returns the subscription between patron and beneficiary.
func (s *Store) SubscriptionGet(patron, beneficiary types.Address) (*patronage.Subscription, bool, error) {
	sub := new(patronage.Subscription)
	ok, err := s.getJSON(subscriptionKey(patron, beneficiary), sub)
	if !ok || err != nil {
		return nil, false, err
	}
	return sub, true, nil
}

// SubscriptionPut stores the subscription.
func (s *Store) SubscriptionPut(sub *patronage.Subscription) error {
	return s.putJSON(subscriptionKey(sub.Patron, sub.Beneficiary), sub)
}

// AuctionBookGet returns the auction book for the content.
func (s *Store) AuctionBookGet(contentID string) (*auction.Book, bool, error) {
	book := new(auction.Book)
	ok, err := s.getJSON(auctionBookPrefix+contentID, book)
	if !ok || err != nil {
		return nil, false, err
	}
	return book, true, nil
}

// AuctionBookPut stores the auction book.
func (s *Store) AuctionBookPut(book *auction.Book) error {
	return s.putJSON(auctionBookPrefix+book.ContentID, book)
}

func purchaseKey(contentID string, buyer types.Address) string {
	return auctionPurchasePrefix + contentID + "/" + types.FormatAddress(buyer)
}

// AuctionPurchaseGet returns one buyer's purchase record.
func (s *Store) AuctionPurchaseGet(contentID string, buyer types.Address) (*auction.Purchase, bool, error) {
	purchase := new(auction.Purchase)
	ok, err := s.getJSON(purchaseKey(contentID, buyer), purchase)
	if !ok || err != nil {
		return nil, false, err
	}
	return purchase, true, nil
}

// AuctionPurchasePut stores the purchase record.
func (s *Store) AuctionPurchasePut(purchase *auction.Purchase) error {
	return s.putJSON(purchaseKey(purchase.ContentID, purchase.Buyer), purchase)
}

// ContentStatsGet returns the aggregated settlement statistics.
func (s *Store) ContentStatsGet(id string) (*router.ContentStats, bool, error) {
	stats := new(router.ContentStats)
	ok, err := s.getJSON(contentStatsPrefix+id, stats)
	if !ok || err != nil {
		return nil, false, err
	}
	return stats, true, nil
}

// ContentStatsPut stores the aggregated settlement statistics.
func (s *Store) ContentStatsPut(stats *router.ContentStats) error {
	return s.putJSON(contentStatsPrefix+stats.ContentID, stats)
}

// FeePolicyGet returns the active protocol fee policy.
func (s *Store) FeePolicyGet() (*fees.Policy, bool, error) {
	policy := new(fees.Policy)
	ok, err := s.getJSON(feePolicyKey, policy)
	if !ok || err != nil {
		return nil, false, err
	}
	return policy, true, nil
}

// FeePolicyPut stores the protocol fee policy.
func (s *Store) FeePolicyPut(policy *fees.Policy) error {
	return s.putJSON(feePolicyKey, policy)
}
