package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"

	"slotlist.org/internal/auth"
	"slotlist.org/internal/httpapi"
	"slotlist.org/internal/obs"
	"slotlist.org/internal/store/pg"
	"slotlist.org/internal/stream"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	dsn := os.Getenv("SLOTLIST_PG_DSN")
	if dsn == "" {
		log.Fatal("SLOTLIST_PG_DSN is required")
	}
	store, err := pg.Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	tokens, err := auth.NewTokenService(auth.Config{
		Secret:   os.Getenv("SLOTLIST_AUTH_SECRET"),
		Issuer:   envOr("SLOTLIST_AUTH_ISSUER", "slotlist.org"),
		Audience: envOr("SLOTLIST_AUTH_AUDIENCE", "slotlist.org"),
		TTL:      envDuration("SLOTLIST_AUTH_TTL", 0),
	})
	if err != nil {
		log.Fatalf("token service: %v", err)
	}
	gate, err := auth.NewCommunityGate(store)
	if err != nil {
		log.Fatalf("community gate: %v", err)
	}

	probe := httpapi.ReadyProbe{DB: store.DB()}
	api := httpapi.New(httpapi.Deps{
		Missions:    store,
		Communities: store,
		Users:       store,
		Permissions: store,
		Gate:        gate,
		Tokens:      tokens,
		Stream:      stream.New(),
		ReadyProbe:  probe,
		Version:     version,
	})

	srv := &http.Server{
		Addr:              envOr("SLOTLIST_HTTP_ADDR", ":8080"),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	grpcSrv := grpc.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcSrv, httpapi.NewGRPCServer(probe))
	grpcAddr := envOr("SLOTLIST_GRPC_ADDR", ":9090")
	grpcListener, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		log.Fatalf("grpc listen: %v", err)
	}

	log.Printf("Starting slotlist-api %s on %s (grpc %s)", version, srv.Addr, grpcAddr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()
	go func() {
		if err := grpcSrv.Serve(grpcListener); err != nil {
			log.Fatalf("grpc serve: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	grpcSrv.GracefulStop()
	_ = store.Close()
	log.Println("Stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("%s: %v", key, err)
	}
	return d
}
