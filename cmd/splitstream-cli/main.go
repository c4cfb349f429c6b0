package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"splitstream/config"
	"splitstream/core"
	"splitstream/core/types"
	"splitstream/native/auction"
	"splitstream/native/gift"
	"splitstream/native/patronage"
	"splitstream/native/strategy"
	"splitstream/observability/logging"
	"splitstream/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup("splitstream", cfg.LogLevel, cfg.LogFormat)

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		return
	}

	db, err := openBackend(cfg)
	if err != nil {
		logger.Error("Failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	node, err := core.NewNode(db, cfg)
	if err != nil {
		db.Close()
		logger.Error("Failed to build node", slog.Any("error", err))
		os.Exit(1)
	}
	defer node.Close()

	if cfg.MetricsAddress != "" {
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddress, promhttp.Handler()); err != nil {
				logger.Warn("Metrics listener stopped", slog.Any("error", err))
			}
		}()
	}

	if err := run(node, logger, args); err != nil {
		logger.Error("Command failed", slog.String("command", args[0]), slog.Any("error", err))
		os.Exit(1)
	}
}

func openBackend(cfg *config.Config) (storage.Database, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		return storage.NewMemDB(), nil
	case config.BackendBolt:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, "state.db"))
	default:
		return storage.NewLevelDB(cfg.DataDir)
	}
}

func run(node *core.Node, logger *slog.Logger, args []string) error {
	command := args[0]
	rest := args[1:]
	switch command {
	case "register":
		return registerContent(node, rest)
	case "rebind":
		return rebindContent(node, rest)
	case "configure-splits":
		return configureSplits(node, rest)
	case "configure-gift":
		return configureGift(node, rest)
	case "configure-patronage":
		return configurePatronage(node, rest)
	case "create-auction":
		return createAuction(node, rest)
	case "stream":
		return payStream(node, logger, rest)
	case "tip":
		return payTip(node, logger, rest)
	case "subscribe":
		return subscribe(node, rest)
	case "renew":
		return renew(node, rest)
	case "cancel":
		return cancel(node, rest)
	case "purchase":
		return purchase(node, rest)
	case "end-auction":
		return endAuction(node, rest)
	case "price":
		return showPrice(node, rest)
	case "preview":
		return preview(node, rest)
	case "stats":
		return showStats(node, rest)
	case "strategies":
		return listStrategies(node)
	case "mint":
		return mint(node, rest)
	case "balance":
		return showBalance(node, rest)
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func printUsage() {
	fmt.Println(`Usage: splitstream-cli [--config path] <command> [args]

Content:
  register <content-id> <strategy-id> <owner>        Register content under a strategy
  rebind <content-id> <strategy-id> <owner>          Switch content to another strategy

Configuration:
  configure-splits <content-id> <owner> <addr:bps:role> [...]
  configure-gift <content-id> <owner> <reward> <early-bonus> <early-threshold> <multiplier-bps> <addr:bps:role> [...]
  configure-patronage <content-id> <owner> <beneficiary> <monthly-fee>
  create-auction <content-id> <owner> <beneficiary> <start> <floor> <duration-secs> <supply>

Payments:
  stream <content-id> <payer> [amount] [listened] [duration]
  tip <content-id> <payer> <amount>
  subscribe <content-id> <patron>
  renew <content-id> <patron>
  cancel <content-id> <patron>
  purchase <content-id> <buyer> <max-price>
  end-auction <content-id> <owner>

Queries:
  price <content-id>
  preview <content-id> <amount>
  stats <content-id>
  strategies
  balance <address>

Ledger:
  mint <address> <amount>`)
}

func parseAddr(s string) (types.Address, error) {
	return types.ParseAddress(s)
}

func parseAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return amount, nil
}

func need(args []string, n int, usage string) error {
	if len(args) < n {
		return fmt.Errorf("usage: %s", usage)
	}
	return nil
}

func registerContent(node *core.Node, args []string) error {
	if err := need(args, 3, "register <content-id> <strategy-id> <owner>"); err != nil {
		return err
	}
	owner, err := parseAddr(args[2])
	if err != nil {
		return err
	}
	reg, err := node.Content().Register(owner, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Printf("Registered %s under %s\n", reg.ID, reg.StrategyID)
	return nil
}

func rebindContent(node *core.Node, args []string) error {
	if err := need(args, 3, "rebind <content-id> <strategy-id> <owner>"); err != nil {
		return err
	}
	owner, err := parseAddr(args[2])
	if err != nil {
		return err
	}
	reg, err := node.Content().Rebind(owner, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Printf("Rebound %s to %s (config epoch %d)\n", reg.ID, reg.StrategyID, reg.ConfigEpoch)
	return nil
}

// parseSplitSpec parses one addr:bps:role argument.
func parseSplitSpec(spec string) (types.Address, uint32, string, error) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) != 3 {
		return types.Address{}, 0, "", fmt.Errorf("invalid split %q, expected addr:bps:role", spec)
	}
	addr, err := parseAddr(parts[0])
	if err != nil {
		return types.Address{}, 0, "", err
	}
	bps, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return types.Address{}, 0, "", fmt.Errorf("invalid basis points %q: %w", parts[1], err)
	}
	return addr, uint32(bps), parts[2], nil
}

func configureSplits(node *core.Node, args []string) error {
	if err := need(args, 3, "configure-splits <content-id> <owner> <addr:bps:role> [...]"); err != nil {
		return err
	}
	owner, err := parseAddr(args[1])
	if err != nil {
		return err
	}
	var (
		recipients []types.Address
		bps        []uint32
		roles      []string
	)
	for _, spec := range args[2:] {
		addr, points, role, err := parseSplitSpec(spec)
		if err != nil {
			return err
		}
		recipients = append(recipients, addr)
		bps = append(bps, points)
		roles = append(roles, role)
	}
	cfg, err := node.PayPerStream().ConfigureRoyaltySplit(owner, args[0], recipients, bps, roles)
	if err != nil {
		return err
	}
	fmt.Printf("Configured %d-way split for %s\n", len(cfg.Table.Entries), args[0])
	return nil
}

func configureGift(node *core.Node, args []string) error {
	usage := "configure-gift <content-id> <owner> <reward> <early-bonus> <early-threshold> <multiplier-bps> <addr:bps:role> [...]"
	if err := need(args, 7, usage); err != nil {
		return err
	}
	owner, err := parseAddr(args[1])
	if err != nil {
		return err
	}
	reward, err := parseAmount(args[2])
	if err != nil {
		return err
	}
	earlyBonus, err := parseAmount(args[3])
	if err != nil {
		return err
	}
	threshold, err := strconv.ParseUint(args[4], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid early-listener threshold %q: %w", args[4], err)
	}
	multiplier, err := strconv.ParseUint(args[5], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid repeat multiplier %q: %w", args[5], err)
	}
	var (
		recipients []types.Address
		bps        []uint32
		roles      []string
	)
	for _, spec := range args[6:] {
		addr, points, role, err := parseSplitSpec(spec)
		if err != nil {
			return err
		}
		recipients = append(recipients, addr)
		bps = append(bps, points)
		roles = append(roles, role)
	}
	cfg, err := node.Gift().ConfigureGiftEconomy(owner, args[0], gift.ConfigParams{
		Recipients:          recipients,
		BasisPoints:         bps,
		Roles:               roles,
		AllowTip:            true,
		RewardPerListen:     reward,
		EarlyBonus:          earlyBonus,
		EarlyThreshold:      threshold,
		RepeatMultiplierBps: uint32(multiplier),
	})
	if err != nil {
		return err
	}
	fmt.Printf("Configured gift economy for %s: %s per listen, repeat bonus every %d listens\n",
		args[0], cfg.RewardPerListen, cfg.RepeatInterval)
	return nil
}

func configurePatronage(node *core.Node, args []string) error {
	if err := need(args, 4, "configure-patronage <content-id> <owner> <beneficiary> <monthly-fee>"); err != nil {
		return err
	}
	owner, err := parseAddr(args[1])
	if err != nil {
		return err
	}
	beneficiary, err := parseAddr(args[2])
	if err != nil {
		return err
	}
	fee, err := parseAmount(args[3])
	if err != nil {
		return err
	}
	_, err = node.Patronage().ConfigurePatronage(owner, args[0], beneficiary, fee, 0, true, [patronage.TierCount]uint32{0, 500, 1000, 2000})
	if err != nil {
		return err
	}
	fmt.Printf("Configured patronage for %s at %s per period\n", args[0], fee)
	return nil
}

func createAuction(node *core.Node, args []string) error {
	if err := need(args, 7, "create-auction <content-id> <owner> <beneficiary> <start> <floor> <duration-secs> <supply>"); err != nil {
		return err
	}
	owner, err := parseAddr(args[1])
	if err != nil {
		return err
	}
	beneficiary, err := parseAddr(args[2])
	if err != nil {
		return err
	}
	start, err := parseAmount(args[3])
	if err != nil {
		return err
	}
	floor, err := parseAmount(args[4])
	if err != nil {
		return err
	}
	duration, err := strconv.ParseInt(args[5], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", args[5], err)
	}
	supply, err := strconv.ParseUint(args[6], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid supply %q: %w", args[6], err)
	}
	book, err := node.Auction().CreateDutchAuction(owner, args[0], beneficiary, start, floor, duration, supply)
	if err != nil {
		return err
	}
	fmt.Printf("Auction open for %s: %s down to %s over %ds, supply %d\n",
		args[0], book.StartPrice, book.FloorPrice, book.Duration, book.TotalSupply)
	return nil
}

func payStream(node *core.Node, logger *slog.Logger, args []string) error {
	if err := need(args, 2, "stream <content-id> <payer> [amount] [listened] [duration]"); err != nil {
		return err
	}
	payer, err := parseAddr(args[1])
	if err != nil {
		return err
	}
	payment := strategy.Payment{ContentID: args[0], Payer: payer, Type: strategy.PaymentStream}
	if len(args) > 2 {
		if payment.Amount, err = parseAmount(args[2]); err != nil {
			return err
		}
	}
	if len(args) > 3 {
		listened, err := strconv.ParseUint(args[3], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid listened seconds %q: %w", args[3], err)
		}
		payment.ListenedSeconds = uint32(listened)
	}
	if len(args) > 4 {
		duration, err := strconv.ParseUint(args[4], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid duration seconds %q: %w", args[4], err)
		}
		payment.DurationSeconds = uint32(duration)
	}
	return settle(node, logger, payment)
}

func payTip(node *core.Node, logger *slog.Logger, args []string) error {
	if err := need(args, 3, "tip <content-id> <payer> <amount>"); err != nil {
		return err
	}
	payer, err := parseAddr(args[1])
	if err != nil {
		return err
	}
	amount, err := parseAmount(args[2])
	if err != nil {
		return err
	}
	return settle(node, logger, strategy.Payment{
		ContentID: args[0],
		Payer:     payer,
		Amount:    amount,
		Type:      strategy.PaymentTip,
	})
}

func settle(node *core.Node, logger *slog.Logger, payment strategy.Payment) error {
	receipt, err := node.Router().ProcessPayment(payment)
	if err != nil {
		return err
	}
	logger.Info("Payment settled",
		slog.String("receiptId", receipt.ID),
		slog.String("contentId", receipt.ContentID),
		slog.String("strategy", receipt.StrategyID),
		logging.MaskField("payer", types.FormatAddress(receipt.Payer)),
	)
	fmt.Printf("Receipt %s: gross %s, fee %s, net %s\n", receipt.ID, receipt.Gross, receipt.Fee, receipt.Net)
	for _, leg := range receipt.Legs {
		fmt.Printf("  %s -> %s (%s)\n", leg.Amount, types.FormatAddress(leg.Recipient), leg.Role)
	}
	if receipt.Reward != nil {
		fmt.Printf("  reward %s -> %s\n", receipt.Reward.Amount, types.FormatAddress(receipt.Reward.Account))
	}
	return nil
}

func subscribe(node *core.Node, args []string) error {
	if err := need(args, 2, "subscribe <content-id> <patron>"); err != nil {
		return err
	}
	patron, err := parseAddr(args[1])
	if err != nil {
		return err
	}
	sub, receipt, err := node.Router().Subscribe(patron, args[0], nil)
	if err != nil {
		return err
	}
	fmt.Printf("Subscribed to %s for %s per period (receipt %s)\n", args[0], sub.MonthlyFee, receipt.ID)
	return nil
}

func renew(node *core.Node, args []string) error {
	if err := need(args, 2, "renew <content-id> <patron>"); err != nil {
		return err
	}
	patron, err := parseAddr(args[1])
	if err != nil {
		return err
	}
	sub, receipt, err := node.Router().Renew(patron, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Renewed %s, paid through %d (receipt %s)\n", args[0], sub.AccessUntil(), receipt.ID)
	return nil
}

func cancel(node *core.Node, args []string) error {
	if err := need(args, 2, "cancel <content-id> <patron>"); err != nil {
		return err
	}
	patron, err := parseAddr(args[1])
	if err != nil {
		return err
	}
	sub, err := node.Router().CancelSubscription(patron, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Cancelled %s, access until %d\n", args[0], sub.AccessUntil())
	return nil
}

func purchase(node *core.Node, args []string) error {
	if err := need(args, 3, "purchase <content-id> <buyer> <max-price>"); err != nil {
		return err
	}
	buyer, err := parseAddr(args[1])
	if err != nil {
		return err
	}
	maxPrice, err := parseAmount(args[2])
	if err != nil {
		return err
	}
	bought, receipt, err := node.Router().PurchaseAccess(buyer, args[0], maxPrice)
	if err != nil {
		return err
	}
	fmt.Printf("Purchased access to %s at %s (receipt %s)\n", args[0], bought.Price, receipt.ID)
	return nil
}

func endAuction(node *core.Node, args []string) error {
	if err := need(args, 2, "end-auction <content-id> <owner>"); err != nil {
		return err
	}
	owner, err := parseAddr(args[1])
	if err != nil {
		return err
	}
	book, err := node.Router().EndAuction(owner, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Auction closed for %s: sold %d of %d\n", args[0], book.Sold, book.TotalSupply)
	return nil
}

func showPrice(node *core.Node, args []string) error {
	if err := need(args, 1, "price <content-id>"); err != nil {
		return err
	}
	price, err := node.Auction().CurrentPrice(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Current price for %s: %s\n", args[0], price)
	return nil
}

func preview(node *core.Node, args []string) error {
	if err := need(args, 2, "preview <content-id> <amount>"); err != nil {
		return err
	}
	amount, err := parseAmount(args[1])
	if err != nil {
		return err
	}
	result, err := node.Router().PreviewSplits(args[0], amount)
	if err != nil {
		return err
	}
	fmt.Printf("Preview for %s (%s): fee %s, net %s\n", args[0], result.StrategyID, result.Fee, result.Net)
	for _, dist := range result.Splits {
		fmt.Printf("  %s -> %s (%s)\n", dist.Amount, types.FormatAddress(dist.Recipient), dist.Role)
	}
	return nil
}

func showStats(node *core.Node, args []string) error {
	if err := need(args, 1, "stats <content-id>"); err != nil {
		return err
	}
	stats, err := node.Router().Stats(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Stats for %s: %d payments (%d streams, %d tips), gross %s, fees %s, net %s\n",
		stats.ContentID, stats.Payments, stats.Streams, stats.Tips,
		stats.GrossVolume, stats.FeesCollected, stats.NetDistributed)
	reg, err := node.Content().Get(args[0])
	if err != nil {
		return err
	}
	if reg.StrategyID == auction.StrategyID {
		auctionStats, err := node.Auction().Stats(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Auction: price %s, sold %d, remaining %d, revenue %s\n",
			auctionStats.CurrentPrice, auctionStats.Sold, auctionStats.Remaining, auctionStats.TotalRevenue)
	}
	return nil
}

func listStrategies(node *core.Node) error {
	for _, id := range node.Strategies().IDs() {
		strat, err := node.Strategies().Get(id)
		if err != nil {
			return err
		}
		fmt.Printf("%s (default fee %d bps)\n", id, strat.DefaultFeeBps())
	}
	return nil
}

func mint(node *core.Node, args []string) error {
	if err := need(args, 2, "mint <address> <amount>"); err != nil {
		return err
	}
	addr, err := parseAddr(args[0])
	if err != nil {
		return err
	}
	amount, err := parseAmount(args[1])
	if err != nil {
		return err
	}
	if err := node.Ledger().Mint(addr, amount); err != nil {
		return err
	}
	fmt.Printf("Minted %s to %s\n", amount, args[0])
	return nil
}

func showBalance(node *core.Node, args []string) error {
	if err := need(args, 1, "balance <address>"); err != nil {
		return err
	}
	addr, err := parseAddr(args[0])
	if err != nil {
		return err
	}
	balance, err := node.Ledger().Balance(addr)
	if err != nil {
		return err
	}
	fmt.Printf("Balance of %s: %s\n", args[0], balance)
	return nil
}
