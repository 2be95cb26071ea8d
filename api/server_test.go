package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Aidin1998/dexter/api"
	"github.com/Aidin1998/dexter/internal/amm"
	"github.com/Aidin1998/dexter/internal/shared"
	"github.com/Aidin1998/dexter/internal/trading/orderbook"
	"github.com/Aidin1998/dexter/internal/trading/settlement"
	"github.com/Aidin1998/dexter/pkg/errors"
	"github.com/Aidin1998/dexter/pkg/models"
)

type env struct {
	router *gin.Engine
	book   *shared.Resource[orderbook.OrderBook]
	pool   *shared.Resource[amm.Pool]
}

// helper to set up router
func setupRouter(t *testing.T) env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	p, err := amm.NewPool(1000, 4000)
	require.NoError(t, err)
	e := env{
		book: shared.NewResource(orderbook.NewOrderBook()),
		pool: shared.NewResource(p),
	}
	// a long grace keeps submitted orders resting for the duration of a test
	coord := settlement.NewCoordinator(e.book, e.pool, nil, zap.NewNop(), time.Hour)
	t.Cleanup(coord.Close)
	e.router = api.NewServer(zap.NewNop(), e.book, e.pool, coord, nil).Router()
	return e
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

func TestHealthCheck(t *testing.T) {
	e := setupRouter(t)
	w := do(e.router, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestPlaceOrderAndReadBook(t *testing.T) {
	e := setupRouter(t)

	w := do(e.router, http.MethodPost, "/api/v1/orders", `{"side":"buy","price":10.5,"quantity":3}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	var placed envelope[models.Order]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &placed))
	assert.True(t, placed.Success)
	assert.Equal(t, models.Buy, placed.Data.Side)
	assert.NotEmpty(t, placed.Data.ID.String())

	do(e.router, http.MethodPost, "/api/v1/orders", `{"side":"sell","price":12,"quantity":1}`)
	do(e.router, http.MethodPost, "/api/v1/orders", `{"side":"buy","price":9,"quantity":1}`)

	w = do(e.router, http.MethodGet, "/api/v1/book?depth=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var book envelope[api.BookSnapshot]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &book))
	assert.Equal(t, [][]string{{"10.5", "3"}}, book.Data.Bids)
	assert.Equal(t, [][]string{{"12", "1"}}, book.Data.Asks)

	w = do(e.router, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "<h1>Order Book</h1>")
	assert.Contains(t, w.Body.String(), "<td>10.5</td>")
}

func TestPlaceOrderRejected(t *testing.T) {
	e := setupRouter(t)

	for _, body := range []string{
		`{"side":"buy","price":-1,"quantity":3}`,
		`{"side":"hold","price":1,"quantity":3}`,
		`{"side":"buy","price":1,"quantity":-3}`,
		`not json`,
	} {
		w := do(e.router, http.MethodPost, "/api/v1/orders", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

		var problem errors.ProblemDetails
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
		assert.Equal(t, errors.TypeInvalidOrder, problem.Type)
		assert.Equal(t, "/api/v1/orders", problem.Instance)
	}

	var bids, asks int
	e.book.Read(func(ob *orderbook.OrderBook) { bids, asks = ob.Len() })
	assert.Zero(t, bids+asks)
}

func TestGetBookBadDepth(t *testing.T) {
	e := setupRouter(t)
	w := do(e.router, http.MethodGet, "/api/v1/book?depth=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetPool(t *testing.T) {
	e := setupRouter(t)
	w := do(e.router, http.MethodGet, "/api/v1/pool", "")
	require.Equal(t, http.StatusOK, w.Code)

	var pool envelope[api.PoolState]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pool))
	assert.Equal(t, 1000.0, pool.Data.ReserveA)
	assert.Equal(t, 4000.0, pool.Data.ReserveB)
	assert.Equal(t, 4e6, pool.Data.K)
	assert.Equal(t, 4.0, pool.Data.SpotPrice)
}

func TestMetricsEndpoint(t *testing.T) {
	e := setupRouter(t)
	do(e.router, http.MethodPost, "/api/v1/orders", `{"side":"sell","price":3,"quantity":1}`)

	w := do(e.router, http.MethodGet, "/api/v1/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dexter_orders_processed_total")
}

type unavailable struct{}

func (unavailable) Submit(context.Context, models.Order, chan<- models.SettlementReport) (models.Order, error) {
	return models.Order{}, errors.Unavailable
}

func TestPlaceOrderUnavailable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	p, _ := amm.NewPool(1, 1)
	router := api.NewServer(zap.NewNop(),
		shared.NewResource(orderbook.NewOrderBook()), shared.NewResource(p), unavailable{}, nil).Router()

	w := do(router, http.MethodPost, "/api/v1/orders", `{"side":"buy","price":1,"quantity":1}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetPoolQuote(t *testing.T) {
	e := setupRouter(t)
	w := do(e.router, http.MethodGet, "/api/v1/pool?amount=1000", "")
	require.Equal(t, http.StatusOK, w.Code)

	var pool envelope[api.PoolState]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pool))
	require.NotNil(t, pool.Data.Quote)
	require.NotNil(t, pool.Data.Quote.AForB)
	require.NotNil(t, pool.Data.Quote.BForA)
	assert.Equal(t, 2000.0, *pool.Data.Quote.AForB)
	assert.Equal(t, 200.0, *pool.Data.Quote.BForA)

	// quoting does not move the reserves
	assert.Equal(t, 1000.0, pool.Data.ReserveA)
	assert.Equal(t, 4000.0, pool.Data.ReserveB)

	for _, bad := range []string{"0", "-3", "abc", "NaN", "Inf"} {
		w = do(e.router, http.MethodGet, "/api/v1/pool?amount="+bad, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)
	}
}

func TestPlaceOrderDuplicateID(t *testing.T) {
	e := setupRouter(t)
	const id = "5a3c2a34-8f4e-4c6b-9a43-0c9d3b6b7a11"

	w := do(e.router, http.MethodPost, "/api/v1/orders", `{"id":"`+id+`","side":"buy","price":10,"quantity":1}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	w = do(e.router, http.MethodPost, "/api/v1/orders", `{"id":"`+id+`","side":"sell","price":500,"quantity":7}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	var problem errors.ProblemDetails
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	assert.Equal(t, "duplicate order id", problem.Detail)

	var bids, asks int
	e.book.Read(func(ob *orderbook.OrderBook) { bids, asks = ob.Len() })
	assert.Equal(t, 1, bids)
	assert.Equal(t, 0, asks)
}
