package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Aidin1998/dexter/api"
	"github.com/Aidin1998/dexter/internal/amm"
	"github.com/Aidin1998/dexter/internal/config"
	"github.com/Aidin1998/dexter/internal/messaging"
	"github.com/Aidin1998/dexter/internal/shared"
	"github.com/Aidin1998/dexter/internal/trading/engine"
	"github.com/Aidin1998/dexter/internal/trading/orderbook"
	"github.com/Aidin1998/dexter/internal/trading/settlement"
	"github.com/Aidin1998/dexter/internal/ws"
	"github.com/Aidin1998/dexter/pkg/logger"
	"github.com/Aidin1998/dexter/pkg/metrics"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	if code := shutdown(zapLogger, run(cfg, zapLogger)); code != 0 {
		os.Exit(code)
	}
}

// shutdown logs how run ended and flushes the logger, returning the exit code.
// os.Exit skips deferred calls, so the flush happens here.
func shutdown(zapLogger *zap.Logger, err error) int {
	code := 0
	if err != nil {
		zapLogger.Error("dexter stopped with error", zap.Error(err))
		code = 1
	} else {
		zapLogger.Info("dexter stopped")
	}
	_ = zapLogger.Sync()
	return code
}

func run(cfg *config.Config, zapLogger *zap.Logger) error {
	mode, err := orderbook.ParseMatchMode(cfg.Engine.MatchMode)
	if err != nil {
		return err
	}
	pool, err := amm.NewPool(cfg.Pool.ReserveA, cfg.Pool.ReserveB)
	if err != nil {
		return err
	}
	metrics.PoolReserve.WithLabelValues("a").Set(cfg.Pool.ReserveA)
	metrics.PoolReserve.WithLabelValues("b").Set(cfg.Pool.ReserveB)

	book := shared.NewResource(orderbook.NewOrderBook(orderbook.WithMatchMode(mode)))
	poolRes := shared.NewResource(pool)

	publishers := []messaging.Publisher{messaging.NewLogPublisher(zapLogger)}
	if cfg.Kafka.Enabled {
		kcfg := messaging.DefaultKafkaConfig()
		kcfg.Brokers = cfg.Kafka.Brokers
		kcfg.Topic = messaging.Topic(cfg.Kafka.Topic)
		producer, err := messaging.NewKafkaPublisher(kcfg, zapLogger)
		if err != nil {
			return err
		}
		defer func() { _ = producer.Close() }()
		publishers = append(publishers, producer)
		zapLogger.Info("publishing settlements to kafka",
			zap.Strings("brokers", kcfg.Brokers), zap.String("topic", string(kcfg.Topic)))
	}

	coord := settlement.NewCoordinator(book, poolRes, messaging.NewMessageBus(publishers...),
		zapLogger, cfg.Engine.GracePeriod)
	driver := engine.NewDriver(book, cfg.Engine.MatchInterval, zapLogger)
	hub := ws.NewHub(coord, zapLogger)
	apiServer := api.NewServer(zapLogger, book, poolRes, coord, hub)

	wsMux := http.NewServeMux()
	wsMux.HandleFunc("/", hub.ServeWS)
	servers := []*http.Server{
		{Addr: cfg.Server.HTTPAddr, Handler: apiServer.Router(), ReadHeaderTimeout: 10 * time.Second},
		{Addr: cfg.Server.WSAddr, Handler: wsMux, ReadHeaderTimeout: 10 * time.Second},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return driver.Run(gctx) })
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			zapLogger.Info("listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		zapLogger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		hub.Close()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zapLogger.Warn("server shutdown", zap.String("addr", srv.Addr), zap.Error(err))
			}
		}
		coord.Close()
		return nil
	})

	return g.Wait()
}
