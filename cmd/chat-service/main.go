package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/amarket/chat-service/config"
	"github.com/amarket/chat-service/internal/metrics"
	"github.com/amarket/chat-service/internal/pg"
	"github.com/amarket/chat-service/internal/postgres"
	"github.com/amarket/chat-service/internal/security"
	"github.com/amarket/chat-service/internal/service"
	grpcx "github.com/amarket/chat-service/internal/transport/grpc"
	httpx "github.com/amarket/chat-service/internal/transport/http"
	httpmw "github.com/amarket/chat-service/internal/transport/http/middleware"
	"github.com/amarket/chat-service/internal/transport/ws"
	"github.com/amarket/chat-service/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		Level:     logger.ParseLevel(cfg.Logging.Level),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting chat-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- postgres ---
	db, err := pg.Open(ctx, pg.Config{
		DSN:             cfg.Postgres.DSN,
		MaxConns:        cfg.Postgres.MaxConns,
		MinConns:        cfg.Postgres.MinConns,
		MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
		MaxConnIdleTime: cfg.Postgres.MaxConnIdleTime,
	})
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer db.Close()

	if cfg.Postgres.Migrate {
		if err := postgres.Migrate(ctx, db.Pool); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	// --- security ---
	pub, err := security.LoadRSAPublicKeyFromPEM(cfg.Security.JWT.PublicKeyPath)
	if err != nil {
		log.Fatalf("jwt public key: %v", err)
	}
	verifier := security.NewVerifier(pub, cfg.Security.JWT.Issuer, cfg.Security.JWT.Audience, cfg.Security.JWT.ClockSkew)

	// --- metrics ---
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	}

	// --- repos & services ---
	userRepo := postgres.NewUserRepository(db.Pool)
	convRepo := postgres.NewConversationRepository(db.Pool)
	msgRepo := postgres.NewMessageRepository(db.Pool)

	chatSvc := service.NewChatService(userRepo, convRepo, msgRepo, m)
	chatSvc.SetMaxMessageLength(cfg.Chat.MaxMessageLength)

	// --- WS Hub & relay ---
	hub := ws.NewHub(cfg.Chat.SendQueueSize, m)
	defer hub.Close()

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		relay := ws.NewRedisRelay(rdb, cfg.Redis.Channel, hub)
		if err := relay.Start(ctx); err != nil {
			log.Fatalf("redis relay: %v", err)
		}
		defer relay.Close()
		hub.SetRelay(relay)
	}

	receiptSvc := service.NewReceiptService(chatSvc, hub, m)
	historySvc := service.NewHistoryService(chatSvc, receiptSvc)

	wsServer := ws.NewServer(hub, chatSvc, receiptSvc, httpmw.UserFromCtx, m, ws.Options{
		PingInterval:   cfg.Chat.PingInterval,
		WriteTimeout:   cfg.Chat.WriteTimeout,
		ReadLimit:      cfg.Chat.ReadLimit,
		AllowedOrigins: cfg.Chat.AllowedOrigins,
	})

	// --- HTTP ---
	router := httpx.NewRouter(httpx.RouterDeps{
		Handler:        httpx.NewHandler(chatSvc, historySvc),
		WS:             wsServer,
		Auth:           httpmw.Auth(verifier, chatSvc),
		Metrics:        m,
		Health:         func(r *http.Request) error { return pg.Ping(r.Context(), db.Pool) },
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	})
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// --- gRPC ---
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpcx.UnaryServerInterceptor(),
			grpcx.AuthUnaryInterceptor(verifier, chatSvc),
		),
		grpc.ChainStreamInterceptor(grpcx.StreamServerInterceptor()),
	)
	health := grpcx.Register(grpcServer, grpcx.NewServer(historySvc))

	// --- run both servers ---
	errCh := make(chan error, 2)

	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go func() {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			errCh <- err
			return
		}
		slog.Info("grpc listen", "addr", cfg.GRPC.Addr)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal")
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	health.Shutdown()
	// http.Server.Shutdown не ждёт hijacked-соединений: websocket закрываем через hub
	hub.Close()
	if err := httpSrv.Shutdown(ctxShutdown); err != nil {
		slog.Warn("http shutdown", "err", err)
	}
	grpcServer.GracefulStop()
	slog.Info("stopped")
}
