package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gopkg.in/urfave/cli.v2"

	"github.com/hiqty/ari/internal/audionode"
	"github.com/hiqty/ari/internal/bus"
	"github.com/hiqty/ari/internal/config"
	"github.com/hiqty/ari/internal/correlator"
	"github.com/hiqty/ari/internal/events"
	"github.com/hiqty/ari/internal/player"
	"github.com/hiqty/ari/internal/server"
)

func actionRun(cc *cli.Context) error {
	cfg, err := config.Load(cc.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Address,
		DB:   cfg.Redis.Database,
	})
	defer redisClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	audioNode, err := audionode.DialWSClient(ctx, cfg.Andesite.Nodes[0].URL, nil)
	if err != nil {
		return cli.Exit(fmt.Sprintf("dial audio node: %v", err), 1)
	}
	defer audioNode.Close()

	externalBus, err := dialTransport(cfg)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer externalBus.Close()

	internalEvents := events.NewBus()
	// metadata.Client has no concrete binding in this core's boundary
	// (spec.md §1's "does not synthesize track metadata"); passing nil
	// makes Player.NextChapter/PreviousChapter fall back to plain
	// Next/Previous, the documented behavior for an absent service.
	manager := player.NewManager(redisClient, cfg.Redis.Namespace, audioNode, nil, internalEvents)

	reg := prometheus.NewRegistry()
	metrics := server.NewMetrics(reg)
	srv := server.New(manager, internalEvents, externalBus, cfg.Realm, metrics)

	corr := correlator.New(externalBus, audioNode, manager, cfg.Andesite.UserID)

	wg := sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("reaper: running")
		manager.RunReaper(ctx)
		log.Info("reaper: terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("correlator: running")
		if err := corr.Run(ctx); err != nil {
			log.WithError(err).Error("correlator terminated with error")
		}
		log.Info("correlator: terminated")
	}()

	log.Info("recovering player state")
	if err := manager.RecoverState(ctx); err != nil {
		log.WithError(err).Error("player state recovery failed")
	}

	unregister, err := srv.Register(ctx)
	if err != nil {
		return cli.Exit(fmt.Sprintf("register rpc surface: %v", err), 1)
	}
	defer unregister()

	ready := &server.ReadyFlag{}
	ready.SetReady()

	httpServer := &http.Server{
		Addr:    cc.String("http-addr"),
		Handler: server.NewHTTPHandler(reg, ready),
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.WithField("addr", httpServer.Addr).Info("http: serving /healthz and /metrics")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http server terminated with error")
		}
	}()

	log.Info("ari is ready")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	sig := <-quit
	log.WithField("sig", sig).Info("signal received, shutting down")
	signal.Reset()

	_ = httpServer.Shutdown(context.Background())
	cancel()
	wg.Wait()

	return nil
}

// dialTransport picks the first configured "nats" transport and dials it.
// spec.md §6 scopes the bus to a single transport per process; additional
// entries are reserved for future transport kinds.
func dialTransport(cfg *config.Config) (*bus.NATSBus, error) {
	for _, t := range cfg.Transports {
		if t.Type == "nats" {
			return bus.Dial(t.URL)
		}
	}
	return nil, fmt.Errorf("no nats transport configured")
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.WithError(err).Debug("no .env file loaded")
	}

	app := cli.App{}
	app.Name = "ari"
	app.Usage = "Multi-tenant music-player control service"
	app.HideVersion = true
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			EnvVars: []string{"ARI_VERBOSE"},
			Usage:   "Log debug messages",
		},
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to an optional YAML configuration file; ARI_-prefixed env vars always apply",
		},
		&cli.StringFlag{
			Name:  "http-addr",
			Usage: "Address the healthz/metrics HTTP server binds to",
			Value: "127.0.0.1:8080",
		},
	}
	app.Commands = []*cli.Command{
		{
			Name:   "run",
			Usage:  "Runs the player core",
			Action: actionRun,
		},
	}
	app.Before = func(cc *cli.Context) error {
		if cc.Bool("verbose") {
			log.SetLevel(log.DebugLevel)
		}
		return nil
	}
	if app.Run(os.Args) != nil {
		os.Exit(1)
	}
}
