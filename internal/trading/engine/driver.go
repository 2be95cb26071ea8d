// Package engine runs the background matching loop over the shared order book.
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Aidin1998/dexter/internal/shared"
	"github.com/Aidin1998/dexter/internal/trading/orderbook"
	"github.com/Aidin1998/dexter/pkg/metrics"
)

// DefaultMatchInterval is the period between two background match passes.
const DefaultMatchInterval = 10 * time.Millisecond

// Driver matches the book on a fixed interval so crossing orders are paired
// even when no new order arrives. It never touches the liquidity pool.
type Driver struct {
	book     *shared.Resource[orderbook.OrderBook]
	interval time.Duration
	logger   *zap.Logger
}

// NewDriver creates a driver. A non-positive interval falls back to DefaultMatchInterval.
func NewDriver(book *shared.Resource[orderbook.OrderBook], interval time.Duration, logger *zap.Logger) *Driver {
	if interval <= 0 {
		interval = DefaultMatchInterval
	}
	return &Driver{book: book, interval: interval, logger: logger}
}

// Run ticks until ctx is done. It always returns nil so it can sit in an errgroup.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info("matching driver started", zap.Duration("interval", d.interval))
	for {
		select {
		case <-ticker.C:
			d.Tick()
		case <-ctx.Done():
			d.logger.Info("matching driver stopped")
			return nil
		}
	}
}

// Tick runs a single match pass under the book's write lock.
func (d *Driver) Tick() orderbook.MatchResult {
	var res orderbook.MatchResult
	d.book.Write(func(ob *orderbook.OrderBook) {
		res = ob.MatchOrders()
	})
	if !res.Matched() {
		return res
	}

	metrics.Matches.WithLabelValues("driver").Add(float64(len(res.Matches)))
	for _, m := range res.Matches {
		d.logger.Info("orders matched",
			zap.String("bid_id", m.Bid.ID.String()),
			zap.String("ask_id", m.Ask.ID.String()),
			zap.Float64("bid_price", m.Bid.Price),
			zap.Float64("ask_price", m.Ask.Price),
			zap.Uint64("quantity", m.Quantity))
	}
	return res
}
