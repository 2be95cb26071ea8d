// Package amm implements a two-token constant-product liquidity pool (x*y=k).
//
// The pool is the fallback venue when the order book has no counterparty. It is
// purely synchronous; callers share it through an exclusive lock.
package amm

import (
	"errors"
	"fmt"
	"math"
)

// InvariantTolerance is the relative drift of reserveA*reserveB from k a swap may introduce.
const InvariantTolerance = 1e-9

var (
	// ErrNoFill means the pool declined the swap. Reserves are unchanged.
	ErrNoFill = errors.New("swap couldn't be filled from the liquidity pool")
	// ErrInvariantViolated means a swap would have moved k beyond InvariantTolerance.
	ErrInvariantViolated = errors.New("constant product invariant violated")
)

// Pool holds the two reserves and the invariant fixed at construction.
type Pool struct {
	reserveA float64
	reserveB float64
	k        float64
}

// NewPool creates a pool; both reserves must be positive and finite.
func NewPool(reserveA, reserveB float64) (*Pool, error) {
	if !positive(reserveA) || !positive(reserveB) {
		return nil, fmt.Errorf("reserves must be positive and finite, got (%v, %v)", reserveA, reserveB)
	}
	k := reserveA * reserveB
	if math.IsInf(k, 0) {
		return nil, fmt.Errorf("reserve product overflows: (%v, %v)", reserveA, reserveB)
	}
	return &Pool{reserveA: reserveA, reserveB: reserveB, k: k}, nil
}

// SwapAForB deposits amountIn of token A and returns the amount of token B paid out.
func (p *Pool) SwapAForB(amountIn float64) (float64, error) {
	newA, newB, out, err := quote(p.reserveA, p.reserveB, p.k, amountIn)
	if err != nil {
		return 0, err
	}
	p.reserveA, p.reserveB = newA, newB
	return out, nil
}

// SwapBForA deposits amountIn of token B and returns the amount of token A paid out.
func (p *Pool) SwapBForA(amountIn float64) (float64, error) {
	newB, newA, out, err := quote(p.reserveB, p.reserveA, p.k, amountIn)
	if err != nil {
		return 0, err
	}
	p.reserveA, p.reserveB = newA, newB
	return out, nil
}

// QuoteAForB is SwapAForB without committing.
func (p *Pool) QuoteAForB(amountIn float64) (float64, error) {
	_, _, out, err := quote(p.reserveA, p.reserveB, p.k, amountIn)
	return out, err
}

// QuoteBForA is SwapBForA without committing.
func (p *Pool) QuoteBForA(amountIn float64) (float64, error) {
	_, _, out, err := quote(p.reserveB, p.reserveA, p.k, amountIn)
	return out, err
}

// Reserves returns (reserveA, reserveB).
func (p *Pool) Reserves() (float64, float64) {
	return p.reserveA, p.reserveB
}

// K returns the invariant.
func (p *Pool) K() float64 {
	return p.k
}

// SpotPrice is the marginal price of token A in units of token B.
func (p *Pool) SpotPrice() float64 {
	return p.reserveB / p.reserveA
}

// quote computes the post-swap reserves for depositing amountIn on the "in" side.
func quote(reserveIn, reserveOut, k, amountIn float64) (newIn, newOut, out float64, err error) {
	if !positive(amountIn) {
		return 0, 0, 0, ErrNoFill
	}
	newIn = reserveIn + amountIn
	if !positive(newIn) {
		return 0, 0, 0, ErrNoFill
	}
	newOut = k / newIn
	out = reserveOut - newOut
	if !positive(newOut) || !positive(out) {
		return 0, 0, 0, ErrNoFill
	}
	if drift := math.Abs(newIn*newOut-k) / k; drift > InvariantTolerance {
		return 0, 0, 0, fmt.Errorf("%w: relative drift %g", ErrInvariantViolated, drift)
	}
	return newIn, newOut, out, nil
}

func positive(f float64) bool {
	return f > 0 && !math.IsInf(f, 0)
}
