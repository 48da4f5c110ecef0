package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"patternlab/internal/backtest"
	"patternlab/internal/config"
	cronrunner "patternlab/internal/cron"
	"patternlab/internal/experiment"
	"patternlab/internal/feed"
	"patternlab/internal/handler"
	"patternlab/internal/history"
	"patternlab/internal/logger"
	"patternlab/internal/refine"
	"patternlab/internal/store"
	"patternlab/internal/trade"
	"patternlab/internal/trigger"
)

func main() {
	cfgPath := os.Getenv("PL_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("PL_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv, err := store.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal("redis open failed", zap.Error(err))
	}
	defer kv.Close()

	historyStore := history.NewStore(logger)
	historyStore.SignificantIntensity = cfg.History.SignificantIntensity
	loader := &feed.Loader{
		HTTP:     &http.Client{Timeout: cfg.Feed.Timeout},
		Endpoint: cfg.Feed.HistoryEndpoint,
		Logger:   logger,
	}
	if err := loader.LoadInto(ctx, historyStore); err != nil {
		logger.Fatal("history feed load failed", zap.Error(err))
	}

	stream := &feed.Stream{
		Logger: logger,
		URL:    cfg.Feed.StreamURL,
		Assets: cfg.Feed.StreamAssets,
	}
	go func() {
		if err := stream.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("ticker stream stopped", zap.Error(err))
		}
	}()

	sentiment := &feed.SentimentPoller{
		HTTP:     &http.Client{Timeout: cfg.Feed.Timeout},
		Endpoint: cfg.Feed.SentimentEndpoint,
		Logger:   logger,
	}
	if err := sentiment.Poll(ctx); err != nil {
		logger.Warn("initial sentiment poll failed (continuing)", zap.Error(err))
	}

	ledger := &trade.PaperLedger{
		Logger:      logger,
		Quotes:      stream.Snapshot,
		PositionUSD: cfg.Ledger.PositionUSD,
		HoldFor:     cfg.Ledger.HoldFor,
	}

	var advisor refine.Advisor
	if cfg.Refiner.Endpoint != "" {
		advisor = &refine.Client{
			Endpoint: cfg.Refiner.Endpoint,
			APIKey:   cfg.Refiner.APIKey,
			Model:    cfg.Refiner.Model,
			HTTP:     &http.Client{Timeout: cfg.Refiner.Timeout},
		}
	} else {
		logger.Info("refiner endpoint not configured, recycle refinement disabled")
	}

	manager := &experiment.Manager{
		Store:        kv,
		Ledger:       ledger,
		Advisor:      advisor,
		Logger:       logger,
		PollInterval: cfg.Experiments.PollInterval,
		MaxRunning:   cfg.Experiments.MaxRunning,
		LogRetention: cfg.Experiments.LogRetention,
	}
	manager.Load(ctx)

	signals := &trigger.Engine{
		Store:          kv,
		Logger:         logger,
		Cooldown:       cfg.Signals.Cooldown,
		EventRetention: cfg.Signals.EventRetention,
	}
	signals.Load(ctx)

	backtester := &backtest.Backtester{Store: historyStore, Logger: logger}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{Store: kv}
	healthHandler.Register(engine)
	historyHandler := &handler.HistoryHandler{Store: historyStore}
	historyHandler.Register(engine)
	backtestHandler := &handler.BacktestHandler{Backtester: backtester}
	backtestHandler.Register(engine)
	experimentHandler := &handler.ExperimentHandler{Manager: manager, Quotes: stream.Snapshot}
	experimentHandler.Register(engine)
	signalHandler := &handler.SignalHandler{Engine: signals, Manager: manager}
	signalHandler.Register(engine)
	tradeHandler := &handler.TradeHandler{Ledger: ledger}
	tradeHandler.Register(engine)
	marketHandler := &handler.MarketHandler{Quotes: stream.Snapshot, Sentiment: sentiment.Latest}
	marketHandler.Register(engine)

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	cronRunner := cronrunner.New(logger, ctx)
	_, err = cronRunner.Add("@every "+cfg.Signals.EvaluateInterval.String(), func(ctx context.Context) {
		signals.Evaluate(ctx, stream.Snapshot(), sentiment.Latest())
	})
	if err != nil {
		logger.Warn("cron register signal evaluation failed", zap.Error(err))
	}
	_, err = cronRunner.Add("@every "+cfg.Ledger.SettleInterval.String(), func(ctx context.Context) {
		if n := ledger.Settle(ctx); n > 0 {
			logger.Info("paper trades settled", zap.Int("count", n))
		}
	})
	if err != nil {
		logger.Warn("cron register ledger settle failed", zap.Error(err))
	}
	_, err = cronRunner.Add("@every "+cfg.Feed.SentimentPoll.String(), func(ctx context.Context) {
		if err := sentiment.Poll(ctx); err != nil {
			logger.Warn("sentiment poll failed", zap.Error(err))
		}
	})
	if err != nil {
		logger.Warn("cron register sentiment poll failed", zap.Error(err))
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
