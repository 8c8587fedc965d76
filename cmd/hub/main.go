package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"samizdat/hub"
	"samizdat/kv"
	"samizdat/metrics"
	"samizdat/pkg/config"
	"samizdat/transport"
)

func waitForSignal(cancel context.CancelFunc) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	cancel()
}

func main() {
	log := logrus.New()

	root := &cobra.Command{
		Use:   "samizdat-hub",
		Short: "run a samizdat rendezvous hub",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHub(log, cmd)
		},
	}
	root.PersistentFlags().String("env", "", "environment overlay to merge (config/<env>.yaml)")
	root.PersistentFlags().String("data", "", "override data directory")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runHub(log *logrus.Logger, cmd *cobra.Command) error {
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

	store, err := kv.Open(cfg.Data + "/db")
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	if err := kv.NewMigrator().Run(store); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	runID, err := kv.LastRunID(store)
	if err != nil {
		return fmt.Errorf("read migration run id: %w", err)
	}

	blacklist, err := hub.LoadBlacklist(store)
	if err != nil {
		return fmt.Errorf("load blacklist: %w", err)
	}
	room := hub.NewRoom()
	registry := hub.NewRegistry()

	directConns, err := transport.NewManagerOnPort(log, cfg.DirectPort)
	if err != nil {
		return fmt.Errorf("bind direct listener: %w", err)
	}
	defer directConns.Close()
	reverseConns, err := transport.NewManagerOnPort(log, cfg.ReversePort)
	if err != nil {
		return fmt.Errorf("bind reverse listener: %w", err)
	}
	defer reverseConns.Close()

	resolver := hub.NewRPCResolver(room)
	dispatcher := hub.NewDispatcher(registry, resolver, room.Addr, cfg.MaxResolutionsPerQuery, 5*time.Second)

	hubMetrics := metrics.NewHub()
	hubMetrics.Serve(cfg.Port, log)

	server := hub.NewServer(log, dispatcher, registry, room, blacklist, hubMetrics, int64(cfg.MaxQueriesPerNode), cfg.MaxQueryRatePerNode)

	log.WithFields(logrus.Fields{
		"data":              cfg.Data,
		"port":              cfg.Port,
		"direct_port":       cfg.DirectPort,
		"reverse_port":      cfg.ReversePort,
		"max_candidates":    cfg.MaxCandidates,
		"max_parallel_hubs": cfg.MaxParallelHubs,
		"migration_run_id":  runID,
	}).Info("hub ready")

	ctx, cancel := context.WithCancel(context.Background())
	go waitForSignal(cancel)

	if err := server.Serve(ctx, directConns, reverseConns); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
