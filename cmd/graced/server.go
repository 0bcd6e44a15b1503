package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gracevcs/grace-server/pkg/config"
	"github.com/gracevcs/grace-server/pkg/log"
	"github.com/gracevcs/grace-server/pkg/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the Grace server daemon",
	Long: `Run the Grace server daemon.

Configuration is read from the YAML file given by --config; flags
override the file. The daemon serves /healthz, /readyz and /metrics
on the health address and stores all state under the data directory.`,
	RunE: runServer,
}

func init() {
	serverCmd.Flags().String("config", "", "Path to YAML config file")
	serverCmd.Flags().String("data-dir", "", "Data directory for state, reminders and index")
	serverCmd.Flags().String("health-addr", "", "Listen address for health and metrics endpoints")
	serverCmd.Flags().String("log-level", "", "Log level (debug, info, warn, error)")
	serverCmd.Flags().Bool("log-json", true, "Emit JSON logs")
}

func runServer(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	if healthAddr, _ := cmd.Flags().GetString("health-addr"); healthAddr != "" {
		cfg.HealthAddr = healthAddr
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Log.JSON, _ = cmd.Flags().GetBool("log-json")
	}

	log.Init(log.Config{Level: log.Level(cfg.Log.Level), JSONOutput: cfg.Log.JSON})
	logger := log.WithComponent("graced")
	logger.Info().Str("version", Version).Msg("starting")

	srv, err := server.New(cfg)
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Stop(ctx)
}
