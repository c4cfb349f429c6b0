package core

import (
	"fmt"

	"splitstream/config"
	"splitstream/core/events"
	"splitstream/core/types"
	"splitstream/ledger"
	"splitstream/native/auction"
	"splitstream/native/content"
	"splitstream/native/fees"
	"splitstream/native/gift"
	"splitstream/native/patronage"
	"splitstream/native/payperstream"
	"splitstream/native/router"
	"splitstream/observability"
	"splitstream/state"
	"splitstream/storage"
)

// Node is the central controller, wiring all components together: the
// persisted state store, the balance ledger, the content registry, the
// strategy engines and the payment router.
type Node struct {
	db       storage.Database
	store    *state.Store
	book     *ledger.Ledger
	cnt      *content.Engine
	pps      *payperstream.Engine
	gift     *gift.Engine
	pat      *patronage.Engine
	auct     *auction.Engine
	registry *router.Registry
	router   *router.Router
}

// NewNode builds a fully wired node on top of the supplied backend. The fee
// policy from the configuration is installed once on first start; later
// changes go through the router's admin surface.
func NewNode(db storage.Database, cfg *config.Config) (*Node, error) {
	store := state.NewStore(db)
	book := ledger.NewLedger(db)

	node := &Node{
		db:    db,
		store: store,
		book:  book,
		cnt:   content.NewEngine(),
		pps:   payperstream.NewEngine(),
		gift:  gift.NewEngine(),
		pat:   patronage.NewEngine(),
		auct:  auction.NewEngine(),
	}
	node.cnt.SetState(store)
	node.pps.SetState(store)
	node.gift.SetState(store)
	node.pat.SetState(store)
	node.auct.SetState(store)

	registry := router.NewRegistry()
	if err := registry.Register(node.pps); err != nil {
		return nil, err
	}
	if err := registry.Register(node.gift); err != nil {
		return nil, err
	}
	if err := registry.Register(node.pat); err != nil {
		return nil, err
	}
	if err := registry.Register(node.auct); err != nil {
		return nil, err
	}

	node.registry = registry
	node.router = router.NewRouter(registry)
	node.router.SetState(store)
	node.router.SetSettler(book)
	node.router.SetMetrics(observability.Payments())
	node.router.SetPatronageEngine(node.pat)
	node.router.SetAuctionEngine(node.auct)

	if cfg != nil {
		if cfg.Admin != "" {
			admin, err := types.ParseAddress(cfg.Admin)
			if err != nil {
				return nil, fmt.Errorf("node: admin: %w", err)
			}
			node.router.SetAdmin(admin)
		}
		if err := node.seedFeePolicy(cfg); err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (n *Node) seedFeePolicy(cfg *config.Config) error {
	if cfg.FeeBps == 0 {
		return nil
	}
	if _, ok, err := n.store.FeePolicyGet(); err != nil {
		return err
	} else if ok {
		return nil
	}
	collector, err := types.ParseAddress(cfg.FeeCollector)
	if err != nil {
		return fmt.Errorf("node: fee collector: %w", err)
	}
	policy := &fees.Policy{FeeBps: cfg.FeeBps, Collector: collector, Version: 1}
	if err := policy.Validate(); err != nil {
		return err
	}
	return n.store.FeePolicyPut(policy)
}

// SetEmitter routes engine events from every module to the supplied emitter.
func (n *Node) SetEmitter(emitter events.Emitter) {
	n.cnt.SetEmitter(emitter)
	n.pps.SetEmitter(emitter)
	n.gift.SetEmitter(emitter)
	n.pat.SetEmitter(emitter)
	n.auct.SetEmitter(emitter)
	n.router.SetEmitter(emitter)
}

// Content returns the content registry engine.
func (n *Node) Content() *content.Engine { return n.cnt }

// PayPerStream returns the pay-per-stream strategy engine.
func (n *Node) PayPerStream() *payperstream.Engine { return n.pps }

// Gift returns the gift economy strategy engine.
func (n *Node) Gift() *gift.Engine { return n.gift }

// Patronage returns the patronage strategy engine.
func (n *Node) Patronage() *patronage.Engine { return n.pat }

// Auction returns the Dutch auction strategy engine.
func (n *Node) Auction() *auction.Engine { return n.auct }

// Strategies returns the strategy catalogue.
func (n *Node) Strategies() *router.Registry { return n.registry }

// Router returns the payment router.
func (n *Node) Router() *router.Router { return n.router }

// Ledger returns the balance ledger.
func (n *Node) Ledger() *ledger.Ledger { return n.book }

// Store returns the persisted state store.
func (n *Node) Store() *state.Store { return n.store }

// Close releases the underlying database.
func (n *Node) Close() error {
	return n.db.Close()
}
