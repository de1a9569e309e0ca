package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"sim-exchange/analytics"
	"sim-exchange/config"
	"sim-exchange/domain"
	"sim-exchange/matching"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	var cfg config.Config
	config.MustLoad(&cfg)

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	engine := matching.NewEngine(
		matching.WithLogger(logger),
		matching.WithIDPrefixes(cfg.Engine.OrderIDPrefix, cfg.Engine.TradeIDPrefix),
		matching.WithArenaCapacity(cfg.Engine.ArenaCapacity),
	)
	exchange := matching.NewExchange(engine, cfg.Engine.QueueSize)
	exchange.Start()
	defer exchange.Stop()

	logger.Info("simulation started",
		zap.String("session", exchange.Session()),
		zap.Int("bots", cfg.Simulation.Bots),
		zap.Duration("duration", cfg.Simulation.Duration),
		zap.Stringer("mid", cfg.Simulation.MidPrice),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Simulation.Duration)
	defer cancel()

	var traded atomic.Int64
	go consumeTrades(ctx, exchange.Feed(), logger, &traded)

	var wg sync.WaitGroup
	for i := 0; i < cfg.Simulation.Bots; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			b := newBot(id, cfg.Simulation, exchange, logger)
			b.run(ctx)
		}(i)
	}

	report(ctx, exchange, cfg, logger)
	wg.Wait()

	final, err := exchange.Stats(context.Background())
	if err != nil {
		logger.Error("final stats", zap.Error(err))
		return
	}
	if err := exchange.Validate(context.Background()); err != nil {
		logger.Error("book inconsistent at shutdown", zap.Error(err))
	}
	logger.Info("simulation finished",
		zap.Uint64("submitted", final.Submitted),
		zap.Uint64("rejected", final.Rejected),
		zap.Uint64("cancelled", final.Cancelled),
		zap.Uint64("expired", final.Expired),
		zap.Uint64("trades", final.Trades),
		zap.Int64("trades_seen", traded.Load()),
		zap.Stringer("volume", final.Volume),
		zap.Int("resting", final.Resting),
	)
}

// consumeTrades reads the feed like any downstream collaborator would
func consumeTrades(ctx context.Context, feed *matching.TradeFeed, logger *zap.Logger, traded *atomic.Int64) {
	sub := feed.Subscribe(0)
	for {
		t, err := sub.Next(ctx)
		if err != nil {
			return
		}
		traded.Add(1)
		logger.Debug("trade",
			zap.Uint64("seq", t.Seq),
			zap.String("buy", t.BuyOrderID()),
			zap.String("sell", t.SellOrderID()),
			zap.Stringer("price", t.Price),
			zap.Stringer("size", t.Size),
		)
	}
}

// report logs top of book and imbalance until ctx is done
func report(ctx context.Context, x *matching.Exchange, cfg config.Config, logger *zap.Logger) {
	analyzer := analytics.NewAnalyzer(cfg.Analytics.ImbalanceLevels)
	levels := max(cfg.Analytics.DepthLevels, analyzer.Levels())

	ticker := time.NewTicker(cfg.Simulation.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		depth, err := x.Depth(ctx, levels)
		if err != nil {
			continue
		}
		bidVol, askVol := analyzer.Volumes(depth)
		fields := []zap.Field{
			zap.Int("bid_levels", len(depth.Bids)),
			zap.Int("ask_levels", len(depth.Asks)),
			zap.Stringer("bid_volume", bidVol),
			zap.Stringer("ask_volume", askVol),
			zap.Float64("imbalance", analyzer.Imbalance(depth)),
		}
		if bid, ok := depth.BestBid(); ok {
			fields = append(fields, zap.Stringer("best_bid", bid.Price))
		}
		if ask, ok := depth.BestAsk(); ok {
			fields = append(fields, zap.Stringer("best_ask", ask.Price))
		}
		if spread, ok := depth.Spread(); ok {
			fields = append(fields, zap.Stringer("spread", spread))
		}
		logger.Info("book", fields...)
	}
}

// bot places random limit and market orders around the mid price and
// cancels some of its own resting orders
type bot struct {
	owner    string
	cfg      config.SimulationConfig
	exchange *matching.Exchange
	logger   *zap.Logger
	rng      *rand.Rand
	resting  []string
}

func newBot(id int, cfg config.SimulationConfig, x *matching.Exchange, logger *zap.Logger) *bot {
	owner := "bot-" + decimal.NewFromInt(int64(id)).String()
	return &bot{
		owner:    owner,
		cfg:      cfg,
		exchange: x,
		logger:   logger.With(zap.String("owner", owner)),
		rng:      rand.New(rand.NewSource(cfg.Seed + int64(id))),
	}
}

func (b *bot) run(ctx context.Context) {
	for ctx.Err() == nil {
		var err error
		if len(b.resting) > 0 && b.rng.Float64() < b.cfg.CancelRatio {
			err = b.cancel(ctx)
		} else {
			err = b.submit(ctx)
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, matching.ErrExchangeStopped) {
				return
			}
			if errors.Is(err, domain.ErrBookInvariant) {
				b.logger.Error("engine halted", zap.Error(err))
				return
			}
			b.logger.Debug("request refused", zap.Error(err))
		}
		time.Sleep(time.Duration(b.rng.Intn(2000)) * time.Microsecond)
	}
}

func (b *bot) submit(ctx context.Context) error {
	req := matching.OrderRequest{
		Owner: b.owner,
		Side:  domain.Side(b.rng.Intn(2)),
		Size:  b.size(),
	}
	if b.rng.Float64() < b.cfg.MarketRatio {
		req.Type = domain.OrderTypeMarket
	} else {
		req.Type = domain.OrderTypeLimit
		req.Price = b.price(req.Side)
	}

	res, err := b.exchange.Submit(ctx, req)
	if err != nil {
		return err
	}
	if res.Rested {
		b.resting = append(b.resting, res.Order.ID)
	}
	return nil
}

func (b *bot) cancel(ctx context.Context) error {
	i := b.rng.Intn(len(b.resting))
	id := b.resting[i]
	b.resting[i] = b.resting[len(b.resting)-1]
	b.resting = b.resting[:len(b.resting)-1]

	err := b.exchange.Cancel(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		// filled before the cancel got through
		return nil
	}
	return err
}

// price quotes mostly behind the mid, sometimes through it
func (b *bot) price(side domain.Side) decimal.Decimal {
	ticks := decimal.NewFromInt(int64(b.rng.Intn(25) - 5))
	offset := b.cfg.TickSize.Mul(ticks)
	p := b.cfg.MidPrice.Sub(offset)
	if side == domain.SideAsk {
		p = b.cfg.MidPrice.Add(offset)
	}
	if !p.IsPositive() {
		return b.cfg.TickSize
	}
	return p
}

func (b *bot) size() decimal.Decimal {
	s := b.cfg.MaxSize.Mul(decimal.NewFromFloat(b.rng.Float64())).Round(2)
	if !s.IsPositive() {
		return decimal.New(1, -2)
	}
	return s
}
