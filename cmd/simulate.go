package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/techdispatch/config"
	"github.com/kilianp07/techdispatch/core/directory"
	"github.com/kilianp07/techdispatch/core/model"
	infmqtt "github.com/kilianp07/techdispatch/infra/mqtt"
	"github.com/kilianp07/techdispatch/simulator"
)

var (
	simCfg       simulator.Config
	simWriteSeed string
	simUseSeed   bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run simulated technicians against the MQTT broker",
	RunE:  runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.IntVar(&simCfg.Count, "count", 10, "number of technicians")
	f.Float64Var(&simCfg.Origin.Lat, "lat", 6.9271, "fleet centre latitude")
	f.Float64Var(&simCfg.Origin.Lng, "lng", 79.8612, "fleet centre longitude")
	f.Float64Var(&simCfg.SpreadKm, "spread-km", 10, "fleet radius in km")
	f.StringSliceVar(&simCfg.Skills, "skills", nil, "skills drawn for each technician")
	f.DurationVar(&simCfg.AckLatency, "ack-latency", 0, "mean delay before answering an offer")
	f.Float64Var(&simCfg.DropRate, "drop-rate", 0, "probability of ignoring an offer")
	f.Float64Var(&simCfg.DeclineRate, "decline-rate", 0, "probability of declining an offer")
	f.DurationVar(&simCfg.LocationInterval, "location-interval", 0, "location report interval (0 disables)")
	f.Int64Var(&simCfg.Seed, "seed", 0, "random seed (0 uses the clock)")
	f.StringVar(&simWriteSeed, "write-seed", "", "write the generated fleet to this YAML file and exit")
	f.BoolVar(&simUseSeed, "from-seed", false, "simulate the technicians of the configured seed file")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if simWriteSeed != "" {
		cfg := simCfg
		cfg.SetDefaults()
		if err := cfg.Validate(); err != nil {
			return err
		}
		f, err := os.Create(simWriteSeed)
		if err != nil {
			return err
		}
		if err := simulator.WriteSeed(f, simulator.GenerateFleet(cfg, simulator.NewRand(cfg.Seed))); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.MQTT.Enabled() {
		return fmt.Errorf("mqtt.broker is not configured")
	}
	var techs []model.Technician
	if simUseSeed {
		if cfg.Seed.Technicians == "" {
			return fmt.Errorf("seed.technicians is not configured")
		}
		if techs, err = directory.LoadSeed(cfg.Seed.Technicians); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}
	client, err := infmqtt.NewPahoClient(cfg.MQTT, "simulator")
	if err != nil {
		return fmt.Errorf("mqtt client: %w", err)
	}
	defer client.Disconnect()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	counters, err := simulator.Run(ctx, simCfg, client, techs)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(counters)
}
