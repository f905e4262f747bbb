// Package cmd holds the techdispatch command line.
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/techdispatch/app"
	"github.com/kilianp07/techdispatch/config"
	"github.com/kilianp07/techdispatch/infra/logger"
)

var (
	cfgPath   string
	serveOpts struct {
		logLevel string
		httpAddr string
		seed     string
	}
)

var rootCmd = &cobra.Command{
	Use:   "techdispatch",
	Short: "Technician dispatch and escalation service",
	Long: `Runs the dispatch engine: jobs are offered to nearby technicians by
priority tier and escalated to a wider circle when nobody accepts in time.`,
	SilenceUsage: true,
	RunE:         serve,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file (yaml or json)")
	f := rootCmd.Flags()
	f.StringVar(&serveOpts.logLevel, "log-level", "", "override logging.level")
	f.StringVar(&serveOpts.httpAddr, "http-addr", "", "override http.addr")
	f.StringVar(&serveOpts.seed, "seed", "", "override seed.technicians")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func serve(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := applyServeOverrides(cfg); err != nil {
		return err
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}

// applyServeOverrides lets flags win over the file and K_ variables.
func applyServeOverrides(cfg *config.Config) error {
	if serveOpts.logLevel != "" {
		cfg.Logging.Level = serveOpts.logLevel
	}
	if serveOpts.httpAddr != "" {
		cfg.HTTP.Addr = serveOpts.httpAddr
	}
	if serveOpts.seed != "" {
		cfg.Seed.Technicians = serveOpts.seed
	}
	return cfg.Logging.Validate()
}
