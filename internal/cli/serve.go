package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyeon/webgate/internal/config"
	"github.com/hyeon/webgate/internal/logger"
	"github.com/hyeon/webgate/pkg/automation"
	"github.com/hyeon/webgate/pkg/catalog"
	"github.com/hyeon/webgate/pkg/gateway"
)

var (
	serveHost string
	servePort int
	serveMode string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway server",
	Long: `Run the gateway server in the foreground. In full mode a headless
Chromium is launched on demand; in simple mode tool calls return simulated
results and no browser is needed.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides config)")
	serveCmd.Flags().StringVar(&serveMode, "mode", "", "operating mode: full or simple (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyServeFlags(cfg)

	if errs := config.NewValidator().ValidateConfig(cfg); len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Error())
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}

	lg, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: true,
		Pretty:  true,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer lg.Close()
	zl := lg.GetZerolog()

	cat, err := catalog.Browser()
	if err != nil {
		return fmt.Errorf("build catalog: %w", err)
	}

	var factory automation.Factory
	var rodFactory *automation.RodFactory
	if cfg.Server.Mode == gateway.ModeFull {
		rodFactory = automation.NewRodFactory(zl)
		factory = rodFactory
	}

	server, err := gateway.NewServer(gateway.Config{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		Mode:              cfg.Server.Mode,
		HeartbeatInterval: cfg.Server.HeartbeatInterval(),
		Catalog:           cat,
		Factory:           factory,
		Engine:            cfg.Engine(),
		Logger:            zl,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	if err := server.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	zl.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	if err := server.Stop(); err != nil {
		zl.Error().Err(err).Msg("server stop failed")
	}
	if rodFactory != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := rodFactory.Shutdown(ctx); err != nil {
			zl.Error().Err(err).Msg("engine shutdown failed")
		}
	}

	return nil
}

func applyServeFlags(cfg *config.Config) {
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	if serveMode != "" {
		cfg.Server.Mode = serveMode
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
}
