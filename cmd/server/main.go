package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hmaekawa/caster/hub"
	"github.com/hmaekawa/caster/internal/admin"
	"github.com/hmaekawa/caster/internal/config"
	"github.com/hmaekawa/caster/internal/eventbus"
	"github.com/hmaekawa/caster/logging"
	"github.com/hmaekawa/caster/pkg/anchor"
	pkgerrors "github.com/hmaekawa/caster/pkg/errors"
	"github.com/hmaekawa/caster/registry"
	"github.com/hmaekawa/caster/server"
	"github.com/hmaekawa/caster/store"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config file (json or yaml)")
	)
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load(config.LoadOptions{Path: *configPath})
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.Logging)
	errHandler := pkgerrors.NewDefaultHandler(logger.Logger)

	ctx := logging.WithLogger(context.Background(), logger)

	st, err := store.Open(cfg.Store.Path, logger)
	if err != nil {
		errHandler.Handle(ctx, err)
		os.Exit(1)
	}
	defer st.Close()

	bus := eventbus.NewInMemoryBus(1024)
	bus.Start(ctx)
	defer bus.Stop()

	if cfg.Anchor.Enabled {
		ledger := anchor.NewClient(anchor.Options{
			Endpoint: cfg.Anchor.Endpoint,
			Account:  cfg.Anchor.Account,
		})
		anchor.Subscribe(bus, ledger, logger)
		logger.Info("hash anchoring enabled", "endpoint", cfg.Anchor.Endpoint)
	}

	reg := registry.New()

	h := hub.New(reg, hub.Options{
		SendTimeout: cfg.Server.WriteTimeout,
		Logger:      logger,
		Bus:         bus,
	})
	if err := h.Start(ctx); err != nil {
		errHandler.Handle(ctx, err)
		os.Exit(1)
	}
	defer h.Stop()

	srv := server.New(cfg.Server, cfg.Chat.HistoryLimit, reg, h, st, logger)
	if err := srv.Start(ctx); err != nil {
		errHandler.Handle(ctx, err)
		os.Exit(1)
	}

	logger.Info("relay ready", "port", cfg.Server.Port)
	for _, ip := range localIPs() {
		logger.Info("reachable at", "ip", ip)
	}

	var adminServer *admin.Server
	if cfg.Admin.Enabled {
		adminServer = admin.New(cfg.Admin.Addr, h, st, srv.WebSocketHandler(), logger)
		adminServer.Start()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	if adminServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		adminServer.Stop(shutdownCtx)
		cancel()
	}
	srv.Stop()
}

// localIPs lists non-loopback IPv4 addresses worth sharing with clients on
// the same network.
func localIPs() []string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}

	var ips []string
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			ips = append(ips, ip4.String())
		}
	}
	return ips
}
