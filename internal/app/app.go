package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"rendezvous-api/internal/auth"
	"rendezvous-api/internal/config"
	"rendezvous-api/internal/grpcweb"
	"rendezvous-api/internal/handler"
	"rendezvous-api/internal/lock"
	"rendezvous-api/internal/metrics"
	"rendezvous-api/internal/rpc"
	"rendezvous-api/internal/service"
	"rendezvous-api/internal/store"
)

// App owns every long-lived resource of the API process.
type App struct {
	cfg    config.Config
	logger *slog.Logger
	store  store.Store
	redis  *redis.Client
	router http.Handler
	grpc   *grpc.Server

	grpcLis net.Listener
	// loopback client used by the gRPC-Web bridge
	bridgeConn *grpc.ClientConn
}

// New wires the store, optional slot lock, services and both transports.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	st, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return newWithStore(ctx, cfg, logger, st)
}

func newWithStore(ctx context.Context, cfg config.Config, logger *slog.Logger, st store.Store) (*App, error) {
	a := &App{cfg: cfg, logger: logger, store: st}

	// the bridge needs the gRPC address before the router is built
	grpcLis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("listen grpc: %w", err)
	}
	a.grpcLis = grpcLis
	port := grpcLis.Addr().(*net.TCPAddr).Port
	a.bridgeConn, err = grpc.NewClient(fmt.Sprintf("127.0.0.1:%d", port),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		_ = grpcLis.Close()
		_ = st.Close()
		return nil, fmt.Errorf("grpc-web bridge client: %w", err)
	}

	var locker lock.Locker = lock.Nop{}
	if cfg.LockEnabled() {
		rdb, err := lock.NewRedisClient(ctx, lock.ClientOptions{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
			PoolSize: cfg.RedisPoolSize,
			Timeout:  cfg.RedisTimeout,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.redis = rdb
		locker = lock.NewRedis(rdb, cfg.LockTTL)
		logger.Info("slot lock enabled", slog.String("redis", cfg.RedisAddr))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewCollector(reg)

	tokens := auth.NewJWT(cfg.JWTSecret, cfg.JWTTTL)
	authSvc := service.NewAuthService(st, auth.NewHasher(), tokens, rec)
	apptSvc := service.NewAppointmentService(st, locker, rec)

	checks := []handler.Check{{Name: cfg.StoreDriver, Ping: st.Ping}}
	if a.redis != nil {
		rdb := a.redis
		checks = append(checks, handler.Check{
			Name:     "redis",
			Ping:     func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			Optional: true,
		})
	}

	a.router = handler.NewRouter(handler.Config{
		Auth:         authSvc,
		Appointments: apptSvc,
		Verifier:     tokens,
		Logger:       logger,
		Metrics:      rec,
		Gatherer:     reg,
		GRPCWeb:      grpcweb.New(a.bridgeConn, rpc.ServiceName),
		CORSOrigin:   cfg.CORSOrigin,
		Checks:       checks,
		Env:          cfg.Env,
	})
	a.grpc = rpc.NewGRPCServer(rpc.NewServer(authSvc, apptSvc), tokens, logger)
	return a, nil
}

func (a *App) Handler() http.Handler { return a.router }

// Serve runs the HTTP and gRPC servers until ctx is cancelled or one of them
// fails, then shuts both down within cfg.ShutdownTimeout.
func (a *App) Serve(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", ":"+a.cfg.HTTPPort)
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}
	grpcLis := a.grpcLis

	srv := &http.Server{
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		a.logger.Info("http server starting", slog.String("addr", httpLis.Addr().String()))
		if err := srv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()
	go func() {
		a.logger.Info("grpc server starting", slog.String("addr", grpcLis.Addr().String()))
		if err := a.grpc.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("grpc: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
	case serveErr = <-errCh:
		a.logger.Error("server failed, shutting down", slog.Any("error", serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		a.grpc.GracefulStop()
		close(stopped)
	}()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown", slog.Any("error", err))
	}
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		a.grpc.Stop()
	}
	return serveErr
}

// Close releases the listeners, the store and redis connections.
func (a *App) Close() {
	_ = a.bridgeConn.Close()
	// already closed when Serve ran
	_ = a.grpcLis.Close()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("close redis", slog.Any("error", err))
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("close store", slog.Any("error", err))
	}
}
