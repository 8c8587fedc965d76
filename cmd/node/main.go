package main

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"samizdat/content"
	"samizdat/internal/accesstoken"
	"samizdat/kv"
	"samizdat/metrics"
	"samizdat/node"
	"samizdat/pkg/config"
	"samizdat/transport"
)

func main() {
	log := logrus.New()

	root := &cobra.Command{
		Use:   "samizdat-node",
		Short: "run a samizdat content node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(log, cmd)
		},
	}
	root.PersistentFlags().String("env", "", "environment overlay to merge (config/<env>.yaml)")
	root.PersistentFlags().String("data", "", "override data directory")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runNode(log *logrus.Logger, cmd *cobra.Command) error {
	env, _ := cmd.Flags().GetString("env")
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if override, _ := cmd.Flags().GetString("data"); override != "" {
		cfg.Data = override
	}
	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		log.SetLevel(level)
	}

	if err := os.MkdirAll(cfg.Data, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	if _, err := accesstoken.Load(cfg.Data); err != nil {
		return fmt.Errorf("load access token: %w", err)
	}
	log.WithField("data", cfg.Data).Info("access token ready")

	store, err := kv.Open(cfg.Data + "/db")
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	if err := kv.NewMigrator().Run(store); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	objects := content.NewStore(store)
	series := content.NewSeries(store)
	index := node.NewContentIndex(objects)

	conns, err := transport.NewManager(log)
	if err != nil {
		return fmt.Errorf("start transport: %w", err)
	}
	defer conns.Close()

	nodeMetrics := metrics.NewNode()
	nodeMetrics.Serve(cfg.Port, log)

	transfer := node.NewMultiplexedTransferStarter(log, conns, objects, nodeMetrics, 30*time.Second)

	subscriptions := node.NewSubscriptionManager(store, noopItemQuerier{}, log.Printf)
	handlers := node.NewHandlers(objects, series, subscriptions, transfer)
	server := node.NewServer(log, handlers, index, series, subscriptions, nodeMetrics)

	hubDirect := &net.UDPAddr{IP: net.ParseIP(cfg.HubHost), Port: cfg.HubDirectPort}
	hubReverse := &net.UDPAddr{IP: net.ParseIP(cfg.HubHost), Port: cfg.HubReversePort}

	ctx, cancel := context.WithCancel(context.Background())
	go waitForSignal(cancel)

	dialDirect := func(ctx context.Context) (node.Conn, error) {
		return conns.Connect(ctx, hubDirect, transport.KeepOutgoing)
	}
	dialReverse := func(ctx context.Context) (node.Conn, error) {
		conn, err := conns.Connect(ctx, hubReverse, transport.KeepOutgoing)
		if err != nil {
			return nil, err
		}
		go server.ServeConn(ctx, conn.(*quic.Conn))
		return conn, nil
	}

	hubConn := node.NewHubConnection(ctx, dialDirect, dialReverse)
	defer hubConn.Close()

	log.WithFields(logrus.Fields{
		"local_addr":       conns.LocalAddr(),
		"max_storage":      cfg.MaxStorage,
		"hub_host":         cfg.HubHost,
		"hub_direct_port":  cfg.HubDirectPort,
		"hub_reverse_port": cfg.HubReversePort,
	}).Info("node ready")

	<-ctx.Done()
	return nil
}

func waitForSignal(cancel context.CancelFunc) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	cancel()
}

type noopItemQuerier struct{}

func (noopItemQuerier) QueryItem(ctx context.Context, publicKey ed25519.PublicKey, path string) error {
	return fmt.Errorf("item querier not configured")
}
