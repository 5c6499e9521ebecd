package main

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/sugawarayuuta/sonnet"

	"github.com/sim-x/simx-sub002/config"
	"github.com/sim-x/simx-sub002/simulation"
)

// version is set at link time.
var version = "dev"

var (
	configPath string   // YAML configuration file
	envFiles   []string // .env files loaded before the configuration
	numLPs     int      // Number of LPs
	endTime    float64  // Simulated time at which the run stops
	logLevel   string   // Log verbosity level
	monitorOn  bool     // Serve the web monitor
	monitorPrt int      // Port of the web monitor
	traceDB    string   // Record the dispatches into this SQLite database
	engine     string   // Kernel that runs the LPs
	rank       int      // Rank of this process in a distributed run
	peers      []string // Addresses of every process, in rank order
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:           "simx",
	Short:         "Conservative parallel discrete-event simulation core",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// runCmd runs a relay simulation
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a relay simulation",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		return run(cfg, cmd.OutOrStdout())
	},
}

// versionCmd prints the version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "simx %s\n", version)
	},
}

// loadConfig layers the configuration: defaults, file, environment, then the
// flags that were set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	err := config.LoadEnvFiles(envFiles...)
	if err != nil {
		return config.Config{}, err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("lps") {
		cfg.NumLPs = numLPs
	}

	if flags.Changed("end") {
		cfg.EndTime = endTime
	}

	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}

	if flags.Changed("monitor") {
		cfg.Monitor.Enabled = monitorOn
	}

	if flags.Changed("monitor-port") {
		cfg.Monitor.Port = monitorPrt
	}

	if flags.Changed("trace-db") {
		cfg.Trace.DB = traceDB
	}

	if flags.Changed("engine") {
		cfg.Engine = engine
	}

	if flags.Changed("rank") {
		cfg.Cluster.Rank = rank
	}

	if flags.Changed("peers") {
		cfg.Cluster.Peers = peers
	}

	return cfg, cfg.Validate()
}

func run(cfg config.Config, out io.Writer) error {
	logger := logrus.StandardLogger()
	logger.SetLevel(cfg.Level())

	s, err := simulation.MakeBuilder().
		WithConfig(cfg).
		WithLogger(logrus.NewEntry(logger)).
		Build()
	if err != nil {
		return err
	}

	res, err := s.Run()
	if err != nil {
		return err
	}

	data, err := sonnet.Marshal(res)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, string(data))

	return err
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "YAML configuration file")
	runCmd.Flags().StringSliceVar(&envFiles, "env-file", nil, "Environment files to load (default .env if present)")
	runCmd.Flags().IntVar(&numLPs, "lps", 2, "Number of LPs")
	runCmd.Flags().Float64Var(&endTime, "end", 1000, "Simulated time at which the run stops")
	runCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().BoolVar(&monitorOn, "monitor", false, "Serve the web monitor")
	runCmd.Flags().IntVar(&monitorPrt, "monitor-port", 0, "Port of the web monitor (random if 0)")
	runCmd.Flags().StringVar(&traceDB, "trace-db", "", "Record the dispatches into this SQLite database")
	runCmd.Flags().StringVar(&engine, "engine", config.EngineLocal, "Kernel that runs the LPs (local, evt)")
	runCmd.Flags().IntVar(&rank, "rank", 0, "Rank of this process in a distributed run")
	runCmd.Flags().StringSliceVar(&peers, "peers", nil, "Addresses of every process, in rank order")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}
