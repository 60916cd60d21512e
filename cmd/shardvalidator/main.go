// Command shardvalidator runs the validator management core: it reads
// a node configuration, starts the ValidatorManager control loop
// against the Engine/KeyRing/NodeConfigHandler that wireCollaborators
// returns, and serves ControlQuery requests over a JSON transport. In
// this build wireCollaborators always returns errNoEngineWiring, so run
// exits with that error before the loop or the transport starts.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/tos-network/shardvalidator/control"
	"github.com/tos-network/shardvalidator/log"
	"github.com/tos-network/shardvalidator/metrics"
	"github.com/tos-network/shardvalidator/validatormanager"
)

// NodeConfig is the JSON configuration read from -c/--configs.
type NodeConfig struct {
	ZeroStatePath         string `json:"zero_state_path"`
	ConfigKeyPath         string `json:"config_key_path"`
	InitialSyncDisabled   bool   `json:"initial_sync_disabled"`
	LogConfigPath         string `json:"log_config_path,omitempty"`
	UpdateIntervalSeconds int    `json:"update_interval_seconds,omitempty"`
}

func loadNodeConfig(dir string) (*NodeConfig, error) {
	path := dir + "/config.json"
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errConfigAbsent, err)
	}
	var cfg NodeConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

func setupLogging(cfg *NodeConfig) error {
	if cfg.LogConfigPath == "" {
		return nil
	}
	handler, _, err := log.FileHandler(cfg.LogConfigPath, logrus.InfoLevel)
	if err != nil {
		return err
	}
	log.SetDefault(handler)
	return nil
}

func run(c *cli.Context) error {
	configsDir := c.String("configs")
	cfg, err := loadNodeConfig(configsDir)
	if err != nil {
		return err
	}
	cfg.ZeroStatePath = c.String("zerostate")
	cfg.ConfigKeyPath = c.String("ckey")
	cfg.InitialSyncDisabled = c.Bool("initial-sync-disabled")

	if err := setupLogging(cfg); err != nil {
		return err
	}

	log.Info("starting validator manager",
		"zerostate", cfg.ZeroStatePath,
		"ckey", cfg.ConfigKeyPath,
		"initial_sync_disabled", cfg.InitialSyncDisabled)

	met := metrics.NewSet()

	engine, keyRing, nodeConfig, err := wireCollaborators(cfg)
	if err != nil {
		return fmt.Errorf("wire collaborators: %w", err)
	}

	mgr := validatormanager.New(validatormanager.Config{
		Engine:     engine,
		KeyRing:    keyRing,
		NodeConfig: nodeConfig,
		Metrics:    met,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dispatcher := &control.Dispatcher{Manager: mgr, Engine: engine, KeyRing: keyRing, NodeConfig: nodeConfig}
	transport := &control.JSONTransport{Addr: c.String("control-addr"), Dispatcher: dispatcher}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error { return mgr.Run(egCtx) })
	eg.Go(func() error { return transport.Serve(egCtx) })

	if err := eg.Wait(); err != nil && ctx.Err() == nil {
		log.Crit("validator manager exited with fatal error", "err", err)
	}
	return nil
}

func main() {
	app := &cli.App{
		Name:  "shardvalidator",
		Usage: "run the shard validator management core",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "configs", Aliases: []string{"c"}, Value: "./", Usage: "path to the node configuration directory"},
			&cli.StringFlag{Name: "zerostate", Aliases: []string{"z"}, Usage: "path to the zero-state file"},
			&cli.StringFlag{Name: "ckey", Aliases: []string{"k"}, Usage: "path to the config key file"},
			&cli.BoolFlag{Name: "initial-sync-disabled", Aliases: []string{"i"}, Usage: "disable initial sync on startup"},
			&cli.StringFlag{Name: "control-addr", Value: "127.0.0.1:3030", Usage: "address the ControlQuery JSON transport listens on"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
