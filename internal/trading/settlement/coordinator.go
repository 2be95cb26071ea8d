// Package settlement runs the per-order intake pipeline: insert into the book,
// try an immediate match, and fall back to the liquidity pool after a grace period.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Aidin1998/dexter/internal/amm"
	"github.com/Aidin1998/dexter/internal/shared"
	"github.com/Aidin1998/dexter/internal/trading/orderbook"
	apperrors "github.com/Aidin1998/dexter/pkg/errors"
	"github.com/Aidin1998/dexter/pkg/metrics"
	"github.com/Aidin1998/dexter/pkg/models"
)

// DefaultGracePeriod is how long an unmatched order waits before the pool is consulted.
const DefaultGracePeriod = time.Second

const (
	statusFilledWhileWaiting = "Order was matched in the order book while waiting for the liquidity pool"
	statusNoFill             = "Swap couldn't be filled from the liquidity pool"
	publishTimeout           = 5 * time.Second
)

// swap runs the order against the pool. Tests replace it to force pool failures.
var swap = func(p *amm.Pool, side models.Side, amountIn float64) (float64, error) {
	if side == models.Buy {
		return p.SwapAForB(amountIn)
	}
	return p.SwapBForA(amountIn)
}

// Publisher receives every settlement report in addition to the submitter.
type Publisher interface {
	Publish(ctx context.Context, report models.SettlementReport) error
}

// Coordinator owns the settlement tasks of all submitted orders.
type Coordinator struct {
	book      *shared.Resource[orderbook.OrderBook]
	pool      *shared.Resource[amm.Pool]
	publisher Publisher
	logger    *zap.Logger
	grace     time.Duration

	// ctx is cancelled by Close and cuts pending grace waits short.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	tasks  sync.WaitGroup
}

// NewCoordinator wires the shared book and pool. A nil publisher is allowed.
func NewCoordinator(
	book *shared.Resource[orderbook.OrderBook],
	pool *shared.Resource[amm.Pool],
	publisher Publisher,
	logger *zap.Logger,
	grace time.Duration,
) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		book:      book,
		pool:      pool,
		publisher: publisher,
		logger:    logger,
		grace:     grace,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Submit validates the order, rests it in the book and starts its settlement
// task. It returns as soon as the order is in the book; the report arrives on
// reply (if non-nil) unless ctx is done first. ctx only bounds that delivery,
// the settlement itself runs to completion.
func (c *Coordinator) Submit(ctx context.Context, order models.Order, reply chan<- models.SettlementReport) (models.Order, error) {
	order, err := models.Validate(order)
	if err != nil {
		metrics.OrdersRejected.Inc()
		c.logger.Info("order rejected", zap.Error(err))
		return order, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return order, apperrors.Unavailable
	}
	c.tasks.Add(1)
	c.mu.Unlock()

	// the check and the insert share one critical section so two submissions
	// of the same id cannot both rest
	var duplicate bool
	c.book.Write(func(ob *orderbook.OrderBook) {
		if duplicate = ob.Contains(order.ID); !duplicate {
			ob.AddOrder(order)
		}
	})
	if duplicate {
		c.tasks.Done()
		metrics.OrdersRejected.Inc()
		c.logger.Info("order rejected", zap.String("order_id", order.ID.String()), zap.String("reason", "duplicate order id"))
		return order, apperrors.InvalidOrder.
			Explain("duplicate order id").
			WithField("duplicate", "id", "an order with this id is already resting")
	}
	metrics.OrdersProcessed.WithLabelValues(order.Side.String()).Inc()
	c.logger.Debug("order accepted",
		zap.String("order_id", order.ID.String()),
		zap.String("side", order.Side.String()),
		zap.Float64("price", order.Price),
		zap.Uint64("quantity", order.Quantity))

	t := &task{order: order, reply: reply, replyCtx: ctx, accepted: time.Now()}
	go func() {
		defer c.tasks.Done()
		c.run(t)
	}()
	return order, nil
}

// Wait blocks until every started settlement task has delivered its report.
func (c *Coordinator) Wait() {
	c.tasks.Wait()
}

// Close rejects further submissions, cancels pending grace waits and waits
// for in-flight tasks.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.tasks.Wait()
}

// task is one order's settlement work item
type task struct {
	order    models.Order
	reply    chan<- models.SettlementReport
	replyCtx context.Context
	accepted time.Time
}

func (c *Coordinator) run(t *task) {
	report := models.SettlementReport{Order: t.order}
	var status []string

	var (
		res     orderbook.MatchResult
		resting bool
	)
	c.book.Write(func(ob *orderbook.OrderBook) {
		res = ob.MatchOrders()
		resting = ob.Contains(t.order.ID)
	})
	status = append(status, res.Message())

	if res.Matched() {
		metrics.Matches.WithLabelValues("intake").Add(float64(len(res.Matches)))
		for _, m := range res.Matches {
			c.logger.Info("orders matched",
				zap.String("bid_id", m.Bid.ID.String()),
				zap.String("ask_id", m.Ask.ID.String()),
				zap.Float64("bid_price", m.Bid.Price),
				zap.Float64("ask_price", m.Ask.Price),
				zap.Uint64("quantity", m.Quantity))
		}
		// a pass that only paired other orders still skips the pool
		switch {
		case res.Involves(t.order.ID):
			report.Outcome = models.OutcomeMatched
		case resting:
			report.Outcome = models.OutcomeResting
		default:
			report.Outcome = models.OutcomeFilledWhileWaiting
		}
	} else {
		c.logger.Debug("delaying before using liquidity pool",
			zap.String("order_id", t.order.ID.String()),
			zap.Duration("grace", c.grace))
		if c.sleep(c.grace) {
			outcome, text, out := c.fillFromPool(t.order)
			report.Outcome, report.AmountOut = outcome, out
			status = append(status, text)
		} else {
			report.Outcome = models.OutcomeResting
			status = append(status, statusNoFill)
		}
	}

	report.Status = strings.Join(status, "; ")
	report.SettledAt = time.Now()
	c.emit(t, report)
}

// sleep waits for d; it returns false if the coordinator closed first.
func (c *Coordinator) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// fillFromPool swaps the order against the pool. The order is taken out of the
// book first so the matching driver cannot fill it a second time; if the pool
// declines, it is put back.
func (c *Coordinator) fillFromPool(order models.Order) (models.Outcome, string, float64) {
	var taken bool
	c.book.Write(func(ob *orderbook.OrderBook) {
		_, taken = ob.Take(order.Side, order.ID)
	})
	if !taken {
		return models.OutcomeFilledWhileWaiting, statusFilledWhileWaiting, 0
	}

	var (
		out      float64
		err      error
		reserveA float64
		reserveB float64
	)
	// NOTE: the order price is the amount deposited, not its quantity.
	c.pool.Write(func(p *amm.Pool) {
		out, err = swap(p, order.Side, order.Price)
		reserveA, reserveB = p.Reserves()
	})

	if err == nil {
		metrics.PoolSwaps.WithLabelValues("filled").Inc()
		metrics.PoolReserve.WithLabelValues("a").Set(reserveA)
		metrics.PoolReserve.WithLabelValues("b").Set(reserveB)
		received := "B"
		if order.Side == models.Sell {
			received = "A"
		}
		text := fmt.Sprintf("Order swapped in Liquidity Pool: %s %d received %v token %s",
			order.Side, order.Quantity, out, received)
		c.logger.Info("order filled by liquidity pool",
			zap.String("order_id", order.ID.String()),
			zap.Float64("amount_in", order.Price),
			zap.Float64("amount_out", out),
			zap.Float64("reserve_a", reserveA),
			zap.Float64("reserve_b", reserveB))
		return models.OutcomePoolFilled, text, out
	}

	if errors.Is(err, amm.ErrInvariantViolated) {
		metrics.PoolSwaps.WithLabelValues("invariant").Inc()
		c.logger.DPanic("liquidity pool invariant violated",
			zap.String("order_id", order.ID.String()),
			zap.Error(err))
	} else {
		metrics.PoolSwaps.WithLabelValues("rejected").Inc()
		c.logger.Info("liquidity pool declined order",
			zap.String("order_id", order.ID.String()),
			zap.Float64("amount_in", order.Price))
	}

	c.book.Write(func(ob *orderbook.OrderBook) {
		ob.AddOrder(order)
	})
	return models.OutcomeResting, statusNoFill, 0
}

func (c *Coordinator) emit(t *task, report models.SettlementReport) {
	metrics.Settlements.WithLabelValues(string(report.Outcome)).Inc()
	metrics.SettlementLatency.Observe(report.SettledAt.Sub(t.accepted).Seconds())

	if c.publisher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := c.publisher.Publish(ctx, report); err != nil {
			c.logger.Error("failed to publish settlement report",
				zap.String("order_id", report.Order.ID.String()),
				zap.Error(err))
		}
		cancel()
	}

	if t.reply == nil {
		return
	}
	replyCtx := t.replyCtx
	if replyCtx == nil {
		replyCtx = context.Background()
	}
	select {
	case t.reply <- report:
		return
	default:
	}
	select {
	case t.reply <- report:
	case <-replyCtx.Done():
		c.logger.Warn("submitter gone before settlement report",
			zap.String("order_id", report.Order.ID.String()),
			zap.String("outcome", string(report.Outcome)))
	case <-c.ctx.Done():
		c.logger.Warn("shutdown before settlement report was read",
			zap.String("order_id", report.Order.ID.String()),
			zap.String("outcome", string(report.Outcome)))
	}
}
