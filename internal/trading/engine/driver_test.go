package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Aidin1998/dexter/internal/shared"
	"github.com/Aidin1998/dexter/internal/trading/orderbook"
	"github.com/Aidin1998/dexter/pkg/models"
)

func TestDriver_TickMatchesCrossingOrders(t *testing.T) {
	book := shared.NewResource(orderbook.NewOrderBook())
	book.Write(func(ob *orderbook.OrderBook) {
		ob.AddOrder(models.NewOrder(models.Buy, 30, 1))
		ob.AddOrder(models.NewOrder(models.Sell, 25, 1))
		ob.AddOrder(models.NewOrder(models.Sell, 40, 1))
	})

	d := NewDriver(book, time.Millisecond, zap.NewNop())
	res := d.Tick()
	require.Len(t, res.Matches, 1)
	assert.Equal(t, 25.0, res.Matches[0].Ask.Price)

	// nothing crosses any more
	assert.False(t, d.Tick().Matched())
	var bids, asks int
	book.Read(func(ob *orderbook.OrderBook) { bids, asks = ob.Len() })
	assert.Equal(t, 0, bids)
	assert.Equal(t, 1, asks)
}

func TestDriver_RunMatchesInBackground(t *testing.T) {
	book := shared.NewResource(orderbook.NewOrderBook())
	d := NewDriver(book, time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	book.Write(func(ob *orderbook.OrderBook) {
		ob.AddOrder(models.NewOrder(models.Buy, 10, 1))
		ob.AddOrder(models.NewOrder(models.Sell, 10, 1))
	})

	assert.Eventually(t, func() bool {
		var bids, asks int
		book.Read(func(ob *orderbook.OrderBook) { bids, asks = ob.Len() })
		return bids == 0 && asks == 0
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("driver did not stop")
	}
}

func TestNewDriver_DefaultInterval(t *testing.T) {
	d := NewDriver(shared.NewResource(orderbook.NewOrderBook()), 0, zap.NewNop())
	assert.Equal(t, DefaultMatchInterval, d.interval)
}
