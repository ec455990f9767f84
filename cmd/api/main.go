package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/PaulBabatuyi/directChat/internal/auth"
	"github.com/PaulBabatuyi/directChat/internal/chat"
	"github.com/PaulBabatuyi/directChat/internal/config"
	"github.com/PaulBabatuyi/directChat/internal/crypto"
	"github.com/PaulBabatuyi/directChat/internal/data"
	"github.com/PaulBabatuyi/directChat/internal/db"
	"github.com/PaulBabatuyi/directChat/internal/delivery"
	"github.com/PaulBabatuyi/directChat/internal/middleware"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	dbClient, err := db.NewWithDatabase(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return err
	}
	defer func() { _ = dbClient.Close(context.Background()) }()

	if err := dbClient.CreateIndexes(ctx); err != nil {
		return err
	}

	usersStore := data.NewUsersStore(dbClient.UsersCollection())
	chatsStore := data.NewChatsStore(dbClient.ChatsCollection())
	msgsStore := data.NewMessagesStore(dbClient.MessagesCollection())
	accounts := data.NewAccounts(usersStore, chatsStore, msgsStore)

	jwtKeys, jwtKid, err := cfg.JWTKeyring()
	if err != nil {
		return err
	}
	jwtMgr := auth.NewJWTManagerFromKeys(jwtKeys, jwtKid, cfg.TokenTTL)

	msgKeys, msgKid, err := cfg.MessageKeyring()
	if err != nil {
		return err
	}
	codec, err := crypto.NewCodecFromEncoded(msgKeys, msgKid)
	if err != nil {
		return fmt.Errorf("message keys: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	// Push: local hub, optionally fanned out across instances through Redis.
	hub := delivery.NewHub()
	var publisher delivery.Publisher = hub
	if cfg.RedisURL != "" {
		rdb, err := delivery.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		publisher = delivery.NewRedisPublisher(rdb)
		relay := delivery.NewRedisRelay(rdb, hub, log.Named("relay"))
		g.Go(func() error { return relay.Run(gctx) })
		log.Info("redis relay enabled")
	}

	dispatcher := delivery.NewDispatcher(publisher, delivery.DispatcherOptions{
		Workers:        cfg.DispatchWorkers,
		Buffer:         cfg.DispatchBuffer,
		PublishTimeout: cfg.PublishTimeout,
	}, log.Named("dispatcher"))
	dispatcher.Start(gctx)
	defer dispatcher.Close()

	service := chat.NewService(usersStore, chatsStore, msgsStore, codec, dispatcher, log.Named("chat"))

	// small burst to allow a couple of quick retries
	authLimiter := middleware.NewLimiterStore(cfg.RateLimitRPM, 3, time.Minute)
	defer authLimiter.Stop()
	sendLimiter := middleware.NewLimiterStore(cfg.SendRateLimitRPM, 10, time.Minute)
	defer sendLimiter.Stop()

	srv := newServer(accounts, service, hub, jwtMgr, log.Named("api")).withLimiters(authLimiter, sendLimiter)

	// gRPC: TLS when configured, then rate limiter -> auth on streams
	var serverOpts []grpc.ServerOption
	if cfg.TLSCert != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return fmt.Errorf("failed to load TLS certs: %w", err)
		}
		serverOpts = append(serverOpts, grpc.Creds(creds))
	}
	serverOpts = append(serverOpts, grpc.ChainStreamInterceptor(
		middleware.RateLimitStreamInterceptor(authLimiter, map[string]bool{subscribeMethod: true}),
		authStreamInterceptor(jwtMgr),
	))
	grpcServer := grpc.NewServer(serverOpts...)
	registerInbox(grpcServer, srv)

	grpcAddr := ":" + cfg.GRPCPort
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", grpcAddr, err)
	}
	g.Go(func() error {
		log.Info("gRPC server listening", zap.String("addr", grpcAddr))
		return grpcServer.Serve(lis)
	})

	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		log.Info("HTTP server listening", zap.String("addr", httpServer.Addr), zap.Bool("tls", cfg.TLSCert != ""))
		var err error
		if cfg.TLSCert != "" {
			err = httpServer.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			err = httpServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	// Graceful shutdown on SIGINT/SIGTERM or when any server fails
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)

		// inbox streams stay open until the client leaves; cut them at the deadline
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			grpcServer.Stop()
		}
		return nil
	})

	return g.Wait()
}
