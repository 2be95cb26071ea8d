package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Side is the direction of an order
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// UnmarshalJSON accepts any letter case ("Buy", "SELL") from older clients.
func (s *Side) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("side must be a string: %w", err)
	}
	*s = Side(strings.ToLower(strings.TrimSpace(raw)))
	return nil
}

func (s Side) String() string { return string(s) }

// Order is an immutable limit order. The book stores copies and replaces them on change.
type Order struct {
	ID       uuid.UUID `json:"id"`
	Side     Side      `json:"side" validate:"required,oneof=buy sell"`
	Price    float64   `json:"price" validate:"finite,gt=0"`
	Quantity uint64    `json:"quantity" validate:"gt=0"`
}

// NewOrder creates an order with a fresh random id.
func NewOrder(side Side, price float64, quantity uint64) Order {
	return Order{
		ID:       uuid.New(),
		Side:     side,
		Price:    price,
		Quantity: quantity,
	}
}

// WithQuantity returns a copy of the order carrying a different quantity.
func (o Order) WithQuantity(quantity uint64) Order {
	o.Quantity = quantity
	return o
}

func (o Order) String() string {
	return fmt.Sprintf("%s %d @ %v (%s)", o.Side, o.Quantity, o.Price, o.ID)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Outcome tells which settlement path an order took
type Outcome string

const (
	// OutcomeMatched: the immediate matching pass crossed at least one pair.
	OutcomeMatched Outcome = "matched"
	// OutcomePoolFilled: the liquidity pool swapped the order after the grace period.
	OutcomePoolFilled Outcome = "pool_filled"
	// OutcomeResting: neither the book nor the pool could fill the order; it stays in the book.
	OutcomeResting Outcome = "resting"
	// OutcomeFilledWhileWaiting: another matching pass took the order during the grace period.
	OutcomeFilledWhileWaiting Outcome = "filled_while_waiting"
)

// SettlementReport is delivered once per submitted order
type SettlementReport struct {
	Status    string    `json:"status"`
	Outcome   Outcome   `json:"outcome"`
	Order     Order     `json:"order"`
	AmountOut float64   `json:"amount_out,omitempty"`
	SettledAt time.Time `json:"settled_at"`
}
