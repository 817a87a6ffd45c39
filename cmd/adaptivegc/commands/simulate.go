// Package commands implements CLI command handlers for adaptivegc.
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sarahrileyjo/adaptivegc/internal/observability"
	"github.com/sarahrileyjo/adaptivegc/internal/simulate"
	"github.com/sarahrileyjo/adaptivegc/pkg/config"
	"github.com/sarahrileyjo/adaptivegc/pkg/gcpolicy"
	"github.com/sarahrileyjo/adaptivegc/pkg/version"
)

// Sentinel errors for the simulate command.
var (
	ErrUnknownFormat = errors.New("unknown format")
)

// SimulateCommand holds the parsed flags for the simulate command.
type SimulateCommand struct {
	configPath   string
	collections  int
	seed         int64
	format       string
	output       string
	otlpEndpoint string
	diagnostics  bool
	listenAddr   string
	logLevel     string
	debugTrace   bool
}

// NewSimulateCommand creates and configures the simulate command.
func NewSimulateCommand() *cobra.Command {
	sc := &SimulateCommand{seed: -1}

	cobraCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive the adaptive sizing policy with a synthetic workload",
		Long: `simulate generates a seeded synthetic mutator/collection workload and
feeds it through the adaptive generational sizing policy engine, reporting
how the eden, survivor, and old-generation target sizes evolve over the run.`,
		RunE: sc.run,
	}

	cobraCmd.Flags().StringVarP(&sc.configPath, "config", "c", "", "Path to config file (yaml)")
	cobraCmd.Flags().IntVar(&sc.collections, "collections", 0, "Number of collections to simulate (0 = config default)")
	cobraCmd.Flags().Int64Var(&sc.seed, "seed", -1, "PRNG seed (negative = config default)")
	cobraCmd.Flags().StringVarP(&sc.format, "format", "f", "table", "Output format (table, json, plot)")
	cobraCmd.Flags().StringVarP(&sc.output, "output", "o", "", "Output file for --format plot (HTML)")
	cobraCmd.Flags().StringVar(&sc.otlpEndpoint, "otlp-endpoint", "", "OTLP gRPC collector address (empty disables export)")
	cobraCmd.Flags().BoolVar(&sc.diagnostics, "diagnostics", false,
		"Serve /healthz, /readyz, and /metrics after the run until interrupted")
	cobraCmd.Flags().StringVar(&sc.listenAddr, "listen-addr", "", "Diagnostics server listen address (empty = config default)")
	cobraCmd.Flags().StringVar(&sc.logLevel, "log-level", "", "Log level (debug, info, warn, error; empty = config default)")
	cobraCmd.Flags().BoolVar(&sc.debugTrace, "debug-trace", false, "Force 100% trace sampling and verbose hot-path spans")

	return cobraCmd
}

func (sc *SimulateCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(sc.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	sc.applyOverrides(cfg)

	sizeParams, err := cfg.Sizes.ToSizeParams()
	if err != nil {
		return err
	}

	providers, err := observability.Init(sc.observabilityConfig(cfg))
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			providers.Logger.Error("observability shutdown failed", "error", shutdownErr)
		}
	}()

	engine := gcpolicy.New(sizeParams, cfg.Engine.Options()...)

	_, err = gcpolicy.NewEngineMetrics(providers.Meter, engine)
	if err != nil {
		return fmt.Errorf("register engine metrics: %w", err)
	}

	providers.Logger.Info("starting simulation",
		"collections", cfg.Simulation.Collections,
		"seed", cfg.Simulation.Seed,
		"max_eden", humanize.Bytes(sizeParams.MaxEdenSize),
		"max_old", humanize.Bytes(sizeParams.MaxOldSize),
	)

	gen := simulate.NewGenerator(cfg.Simulation.Seed, simulate.DefaultParams())

	result, err := simulate.Run(cmd.Context(), providers.Tracer, engine, gen, cfg.Simulation.Collections)
	if err != nil {
		return fmt.Errorf("simulate run: %w", err)
	}

	providers.Logger.Info("simulation complete",
		"minor_count", result.MinorCount,
		"major_count", result.MajorCount,
		"final_eden", humanize.Bytes(engine.EdenSize()),
		"final_old", humanize.Bytes(engine.OldSize()),
	)

	if renderErr := renderResult(cmd.OutOrStdout(), sc.format, sc.output, result); renderErr != nil {
		return renderErr
	}

	if sc.diagnostics || cfg.Diagnostics.Enabled {
		return serveDiagnostics(cmd, providers, sc.diagnosticsAddr(cfg))
	}

	return nil
}

func (sc *SimulateCommand) applyOverrides(cfg *config.Config) {
	if sc.collections > 0 {
		cfg.Simulation.Collections = sc.collections
	}

	if sc.seed >= 0 {
		cfg.Simulation.Seed = sc.seed
	}

	if sc.listenAddr != "" {
		cfg.Diagnostics.ListenAddr = sc.listenAddr
	}
}

func (sc *SimulateCommand) diagnosticsAddr(cfg *config.Config) string {
	if sc.listenAddr != "" {
		return sc.listenAddr
	}

	return cfg.Diagnostics.ListenAddr
}

func (sc *SimulateCommand) observabilityConfig(cfg *config.Config) observability.Config {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.OTLPEndpoint = sc.otlpEndpoint
	obsCfg.DebugTrace = sc.debugTrace
	obsCfg.TraceVerbose = sc.debugTrace

	if sc.logLevel != "" {
		obsCfg.LogLevel = parseLogLevel(sc.logLevel)
	} else {
		obsCfg.LogLevel = parseLogLevel(cfg.Logging.Level)
	}

	obsCfg.LogJSON = cfg.Logging.Format == "json"

	return obsCfg
}

// serveDiagnostics starts the diagnostics server and blocks until an
// interrupt or termination signal arrives, then shuts it down.
func serveDiagnostics(cmd *cobra.Command, providers observability.Providers, addr string) error {
	diagServer, err := observability.NewDiagnosticsServer(addr, providers.Meter)
	if err != nil {
		return fmt.Errorf("start diagnostics server: %w", err)
	}

	printDiagnosticsBanner(cmd, diagServer.Addr())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	closeErr := diagServer.Close()
	if closeErr != nil {
		return fmt.Errorf("shutdown diagnostics server: %w", closeErr)
	}

	return nil
}

func printDiagnosticsBanner(cmd *cobra.Command, addr string) {
	banner := color.New(color.FgCyan).SprintFunc()
	fmt.Fprintf(cmd.OutOrStdout(), "%s http://%s/healthz, /readyz, /metrics (ctrl-c to stop)\n",
		banner("serving diagnostics:"), addr)
}
