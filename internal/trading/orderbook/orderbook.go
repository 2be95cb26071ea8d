// =============================
// dexter Order Book Core
// =============================
// This file implements the order book: two ordered sets of resting orders and
// the procedure that pairs crossing bids and asks.
//
// How it works:
// - Bids are kept best-first by (price descending, id ascending).
// - Asks are kept best-first by (price ascending, id ascending).
// - An id index gives O(log n) removal of a specific order.
// - The book is not safe for concurrent use; callers share it through a lock.
//
// See comments before each type/function for more details.

package orderbook

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"github.com/Aidin1998/dexter/pkg/metrics"
	"github.com/Aidin1998/dexter/pkg/models"
)

// MAX_SNAPSHOT_DEPTH caps the number of rows per side in a snapshot
const MAX_SNAPSHOT_DEPTH = 1000

const noMatchMessage = "No match found in the order book"

// MatchMode selects how quantities are treated when a bid crosses an ask
type MatchMode int

const (
	// AllOrNothing removes both orders of a crossing pair whatever their quantities.
	AllOrNothing MatchMode = iota
	// PartialFill executes min(bid, ask) and re-inserts the larger order's residual.
	PartialFill
)

// ParseMatchMode maps a config value to a MatchMode
func ParseMatchMode(s string) (MatchMode, error) {
	switch s {
	case "", "all_or_nothing":
		return AllOrNothing, nil
	case "partial":
		return PartialFill, nil
	default:
		return AllOrNothing, fmt.Errorf("unknown match mode %q", s)
	}
}

func (m MatchMode) String() string {
	if m == PartialFill {
		return "partial"
	}
	return "all_or_nothing"
}

// Match is one crossing pair removed from the book
type Match struct {
	Bid models.Order
	Ask models.Order
	// Quantity executed; in AllOrNothing mode the larger side's excess is dropped.
	Quantity uint64
}

func (m Match) String() string {
	return fmt.Sprintf(
		"Matched Buy Order (price: %v, quantity: %d) with Sell Order (price: %v, quantity: %d)",
		m.Bid.Price, m.Bid.Quantity, m.Ask.Price, m.Ask.Quantity,
	)
}

// MatchResult is the outcome of one MatchOrders pass
type MatchResult struct {
	Matches []Match
}

// Matched reports whether at least one pair crossed.
func (r MatchResult) Matched() bool {
	return len(r.Matches) > 0
}

// Message describes the last match, or that nothing matched.
func (r MatchResult) Message() string {
	if len(r.Matches) == 0 {
		return noMatchMessage
	}
	return r.Matches[len(r.Matches)-1].String()
}

// Involves reports whether the order with the given id took part in any match.
func (r MatchResult) Involves(id uuid.UUID) bool {
	for _, m := range r.Matches {
		if m.Bid.ID == id || m.Ask.ID == id {
			return true
		}
	}
	return false
}

// OrderBook holds resting orders for a single pair
type OrderBook struct {
	mode       MatchMode
	bids       *btree.BTreeG[models.Order]
	asks       *btree.BTreeG[models.Order]
	ordersByID map[uuid.UUID]models.Order
}

// Option configures an OrderBook
type Option func(*OrderBook)

// WithMatchMode overrides the default AllOrNothing matching.
func WithMatchMode(m MatchMode) Option {
	return func(ob *OrderBook) { ob.mode = m }
}

// NewOrderBook creates an empty book.
func NewOrderBook(opts ...Option) *OrderBook {
	// Locking is done by the owner of the book, not by the trees.
	treeOpts := btree.Options{NoLocks: true}
	ob := &OrderBook{
		mode:       AllOrNothing,
		bids:       btree.NewBTreeGOptions(bidLess, treeOpts),
		asks:       btree.NewBTreeGOptions(askLess, treeOpts),
		ordersByID: make(map[uuid.UUID]models.Order),
	}
	for _, opt := range opts {
		opt(ob)
	}
	return ob
}

// bidLess orders bids best-first: higher price, then lower id.
func bidLess(a, b models.Order) bool {
	if a.Price != b.Price {
		return a.Price > b.Price
	}
	return idLess(a.ID, b.ID)
}

// askLess orders asks best-first: lower price, then lower id.
func askLess(a, b models.Order) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	return idLess(a.ID, b.ID)
}

func idLess(a, b uuid.UUID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

func (ob *OrderBook) side(s models.Side) *btree.BTreeG[models.Order] {
	if s == models.Buy {
		return ob.bids
	}
	return ob.asks
}

// AddOrder inserts a validated order. An order whose id is already resting
// replaces the stored copy.
func (ob *OrderBook) AddOrder(order models.Order) {
	if prev, ok := ob.ordersByID[order.ID]; ok {
		ob.side(prev.Side).Delete(prev)
	}
	ob.side(order.Side).Set(order)
	ob.ordersByID[order.ID] = order
	ob.exportDepth()
}

// Take removes a specific resting order. Taking an order that is not resting
// on the given side is a no-op.
func (ob *OrderBook) Take(side models.Side, id uuid.UUID) (models.Order, bool) {
	order, ok := ob.ordersByID[id]
	if !ok || order.Side != side {
		return models.Order{}, false
	}
	ob.remove(order)
	ob.exportDepth()
	return order, true
}

func (ob *OrderBook) remove(order models.Order) {
	ob.side(order.Side).Delete(order)
	delete(ob.ordersByID, order.ID)
}

// MatchOrders pairs the best bid with the best ask while they cross.
func (ob *OrderBook) MatchOrders() MatchResult {
	var result MatchResult
	for {
		bid, ok := ob.bids.Min()
		if !ok {
			break
		}
		ask, ok := ob.asks.Min()
		if !ok || bid.Price < ask.Price {
			break
		}

		ob.remove(bid)
		ob.remove(ask)

		qty := min(bid.Quantity, ask.Quantity)
		if ob.mode == PartialFill {
			if bid.Quantity > qty {
				ob.AddOrder(bid.WithQuantity(bid.Quantity - qty))
			}
			if ask.Quantity > qty {
				ob.AddOrder(ask.WithQuantity(ask.Quantity - qty))
			}
		}
		result.Matches = append(result.Matches, Match{Bid: bid, Ask: ask, Quantity: qty})
	}
	if result.Matched() {
		ob.exportDepth()
	}
	return result
}

// Contains reports whether the order is resting on either side.
func (ob *OrderBook) Contains(id uuid.UUID) bool {
	_, ok := ob.ordersByID[id]
	return ok
}

// BestBid returns the highest bid.
func (ob *OrderBook) BestBid() (models.Order, bool) {
	return ob.bids.Min()
}

// BestAsk returns the lowest ask.
func (ob *OrderBook) BestAsk() (models.Order, bool) {
	return ob.asks.Min()
}

// Len returns the number of resting bids and asks.
func (ob *OrderBook) Len() (bids, asks int) {
	return ob.bids.Len(), ob.asks.Len()
}

// Mode returns the matching mode.
func (ob *OrderBook) Mode() MatchMode {
	return ob.mode
}

// Bids returns copies of the resting bids, best first.
func (ob *OrderBook) Bids() []models.Order {
	return collect(ob.bids, 0)
}

// Asks returns copies of the resting asks, best first.
func (ob *OrderBook) Asks() []models.Order {
	return collect(ob.asks, 0)
}

func collect(tr *btree.BTreeG[models.Order], limit int) []models.Order {
	n := tr.Len()
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.Order, 0, n)
	tr.Scan(func(o models.Order) bool {
		out = append(out, o)
		return len(out) < n
	})
	return out
}

// Snapshot returns up to depth [price, quantity] rows per side, best first,
// formatted for API consumers. A non-positive depth means MAX_SNAPSHOT_DEPTH.
func (ob *OrderBook) Snapshot(depth int) ([][]string, [][]string) {
	if depth <= 0 || depth > MAX_SNAPSHOT_DEPTH {
		depth = MAX_SNAPSHOT_DEPTH
	}
	return rows(collect(ob.bids, depth)), rows(collect(ob.asks, depth))
}

func rows(orders []models.Order) [][]string {
	out := make([][]string, 0, len(orders))
	for _, o := range orders {
		out = append(out, []string{
			decimal.NewFromFloat(o.Price).String(),
			decimal.NewFromUint64(o.Quantity).String(),
		})
	}
	return out
}

func (ob *OrderBook) exportDepth() {
	metrics.RestingOrders.WithLabelValues(string(models.Buy)).Set(float64(ob.bids.Len()))
	metrics.RestingOrders.WithLabelValues(string(models.Sell)).Set(float64(ob.asks.Len()))
}
