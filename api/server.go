package api

import (
	"bytes"
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Aidin1998/dexter/api/responses"
	"github.com/Aidin1998/dexter/internal/amm"
	"github.com/Aidin1998/dexter/internal/shared"
	"github.com/Aidin1998/dexter/internal/trading/orderbook"
	"github.com/Aidin1998/dexter/internal/ws"
	"github.com/Aidin1998/dexter/pkg/errors"
	"github.com/Aidin1998/dexter/pkg/models"
)

// DefaultBookDepth is the snapshot depth when the request does not set one
const DefaultBookDepth = 50

// Server represents the API server
type Server struct {
	router *gin.Engine
	logger *zap.Logger
	book   *shared.Resource[orderbook.OrderBook]
	pool   *shared.Resource[amm.Pool]
	intake ws.Submitter
	hub    *ws.Hub
}

// BookSnapshot is the JSON body of GET /api/v1/book
type BookSnapshot struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
}

// PoolState is the JSON body of GET /api/v1/pool
type PoolState struct {
	ReserveA  float64 `json:"reserve_a"`
	ReserveB  float64 `json:"reserve_b"`
	K         float64 `json:"k"`
	SpotPrice float64 `json:"spot_price"`
	Quote     *Quote  `json:"quote,omitempty"`
}

// Quote is what the pool would pay out for depositing Amount on either side,
// without committing. A nil output means the pool would decline.
type Quote struct {
	Amount float64  `json:"amount"`
	AForB  *float64 `json:"a_for_b"`
	BForA  *float64 `json:"b_for_a"`
}

// NewServer creates the API server. hub may be nil, in which case /ws is not routed.
func NewServer(
	logger *zap.Logger,
	book *shared.Resource[orderbook.OrderBook],
	pool *shared.Resource[amm.Pool],
	intake ws.Submitter,
	hub *ws.Hub,
) *Server {
	server := &Server{
		logger: logger,
		book:   book,
		pool:   pool,
		intake: intake,
		hub:    hub,
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	server.router = router
	server.registerRoutes()
	return server
}

// Router returns the internal Gin engine for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// registerRoutes registers all API routes
func (s *Server) registerRoutes() {
	s.router.GET("/", s.bookPage)
	if s.hub != nil {
		s.router.GET("/ws", gin.WrapF(s.hub.ServeWS))
	}

	public := s.router.Group("/api/v1")
	{
		public.GET("/metrics", gin.WrapH(promhttp.Handler()))
		public.GET("/health", s.healthCheck)
		public.GET("/book", s.getBook)
		public.GET("/pool", s.getPool)
		public.POST("/orders", s.placeOrder)
	}
}

// healthCheck handles the health check endpoint
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now(),
	})
}

func (s *Server) snapshot(depth int) BookSnapshot {
	var snap BookSnapshot
	s.book.Read(func(ob *orderbook.OrderBook) {
		snap.Bids, snap.Asks = ob.Snapshot(depth)
	})
	return snap
}

// bookPage renders the resting orders as an HTML page
func (s *Server) bookPage(c *gin.Context) {
	snap := s.snapshot(DefaultBookDepth)
	var buf bytes.Buffer
	if err := bookPage.Execute(&buf, pageData{Bids: pageRows(snap.Bids), Asks: pageRows(snap.Asks)}); err != nil {
		s.logger.Error("failed to render order book page", zap.Error(err))
		responses.Error(c, errors.Internal.Wrap(err))
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// getBook returns the best depth levels of each side
func (s *Server) getBook(c *gin.Context) {
	depth := DefaultBookDepth
	if raw := c.Query("depth"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d <= 0 {
			responses.BadRequest(c, "depth must be a positive integer")
			return
		}
		depth = d
	}
	responses.Success(c, s.snapshot(depth))
}

// getPool returns the liquidity pool reserves, plus a quote when ?amount= is set
func (s *Server) getPool(c *gin.Context) {
	var quote *Quote
	if raw := c.Query("amount"); raw != "" {
		amount, err := strconv.ParseFloat(raw, 64)
		if err != nil || !(amount > 0) || math.IsInf(amount, 0) {
			responses.BadRequest(c, "amount must be a positive number")
			return
		}
		quote = &Quote{Amount: amount}
	}

	var state PoolState
	s.pool.Read(func(p *amm.Pool) {
		state.ReserveA, state.ReserveB = p.Reserves()
		state.K = p.K()
		state.SpotPrice = p.SpotPrice()
		if quote != nil {
			quote.AForB = quoteOrNil(p.QuoteAForB(quote.Amount))
			quote.BForA = quoteOrNil(p.QuoteBForA(quote.Amount))
		}
	})
	state.Quote = quote
	responses.Success(c, state)
}

func quoteOrNil(out float64, err error) *float64 {
	if err != nil {
		return nil
	}
	return &out
}

// placeOrder submits an order; its settlement report goes to the publisher.
func (s *Server) placeOrder(c *gin.Context) {
	var req models.Order
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Error(c, errors.InvalidOrder.Explain("malformed order: %v", err))
		return
	}

	// settlement outlives the request
	order, err := s.intake.Submit(context.Background(), req, nil)
	if err != nil {
		responses.Error(c, err)
		return
	}
	responses.Accepted(c, order, "Order accepted for settlement")
}
