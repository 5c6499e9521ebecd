// Package config loads the parameters of a simulation run.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes the environment variables that override the file.
const EnvPrefix = "SIMX_"

// MinDelays is the lookahead between LPs.
type MinDelays struct {
	Local  float64 `yaml:"local"`
	Remote float64 `yaml:"remote"`
}

// Monitor configures the web monitor.
type Monitor struct {
	Enabled     bool `yaml:"enabled"`
	Port        int  `yaml:"port"`
	OpenBrowser bool `yaml:"open_browser"`
}

// Trace configures the recording of the dispatches.
type Trace struct {
	DB           string `yaml:"db"`
	OnlyFailures bool   `yaml:"only_failures"`
}

// Engine names.
const (
	EngineLocal = "local"
	EngineEvt   = "evt"
)

// Cluster places the messenger world over TCP. Each process simulates every
// LP but only hosts the messenger of the LP whose ID is its rank. An empty
// peer list keeps the world in the process.
type Cluster struct {
	Rank  int      `yaml:"rank"`
	Peers []string `yaml:"peers"`

	// Linger is how many seconds a finished process waits for the others
	// before closing its connections.
	Linger float64 `yaml:"linger"`
}

// Distributed tells if the messenger world spans processes.
func (c Cluster) Distributed() bool {
	return len(c.Peers) > 0
}

// Workload configures the relay model.
type Workload struct {
	Relays       int     `yaml:"relays"`
	Hops         int     `yaml:"hops"`
	MeanDelay    float64 `yaml:"mean_delay"`
	LateRate     float64 `yaml:"late_rate"`
	FaultRate    float64 `yaml:"fault_rate"`
	FatalRate    float64 `yaml:"fatal_rate"`
	ControlEvery int     `yaml:"control_every"`
}

// Config holds every parameter of a run.
type Config struct {
	NumLPs             int       `yaml:"lps"`
	EndTime            float64   `yaml:"end_time"`
	Engine             string    `yaml:"engine"`
	MinDelays          MinDelays `yaml:"min_delays"`
	PollInterval       int       `yaml:"poll_interval"`
	LatenessEscalation int       `yaml:"lateness_escalation"`
	LogLevel           string    `yaml:"log_level"`
	Monitor            Monitor   `yaml:"monitor"`
	Trace              Trace     `yaml:"trace"`
	Workload           Workload  `yaml:"workload"`
	Cluster            Cluster   `yaml:"cluster"`
}

// Default returns the configuration used when nothing is specified.
func Default() Config {
	return Config{
		NumLPs:       2,
		EndTime:      1000,
		Engine:       EngineLocal,
		MinDelays:    MinDelays{Local: 0, Remote: 1},
		PollInterval: 64,
		LogLevel:     "info",
		Workload: Workload{
			Relays:       8,
			Hops:         100,
			MeanDelay:    2,
			LateRate:     0.01,
			FaultRate:    0.01,
			ControlEvery: 25,
		},
		Cluster: Cluster{Linger: 60},
	}
}

// Load reads the configuration file at path on top of the defaults, then
// applies the SIMX_ environment variables. An empty path skips the file.
// Unknown fields in the file are errors.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}

		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)

		err = decoder.Decode(&cfg)
		if err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	err := cfg.ApplyEnv()
	if err != nil {
		return cfg, err
	}

	return cfg, nil
}

// LoadEnvFiles loads variables from .env files into the environment without
// overriding the variables that are already set. Without arguments it loads
// .env if the file exists.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		err := godotenv.Load()
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}

		return nil
	}

	err := godotenv.Load(files...)
	if err != nil {
		return fmt.Errorf("loading env files: %w", err)
	}

	return nil
}

type envBinding struct {
	name  string
	apply func(value string) error
}

func (c *Config) envBindings() []envBinding {
	return []envBinding{
		{"LPS", intSetter(&c.NumLPs)},
		{"END_TIME", floatSetter(&c.EndTime)},
		{"ENGINE", stringSetter(&c.Engine)},
		{"MIN_DELAY_LOCAL", floatSetter(&c.MinDelays.Local)},
		{"MIN_DELAY_REMOTE", floatSetter(&c.MinDelays.Remote)},
		{"POLL_INTERVAL", intSetter(&c.PollInterval)},
		{"LATENESS_ESCALATION", intSetter(&c.LatenessEscalation)},
		{"LOG_LEVEL", stringSetter(&c.LogLevel)},
		{"MONITOR", boolSetter(&c.Monitor.Enabled)},
		{"MONITOR_PORT", intSetter(&c.Monitor.Port)},
		{"TRACE_DB", stringSetter(&c.Trace.DB)},
		{"RANK", intSetter(&c.Cluster.Rank)},
		{"PEERS", listSetter(&c.Cluster.Peers)},
	}
}

// ApplyEnv overrides the fields that have a SIMX_ environment variable set.
func (c *Config) ApplyEnv() error {
	for _, b := range c.envBindings() {
		value, found := os.LookupEnv(EnvPrefix + b.name)
		if !found {
			continue
		}

		err := b.apply(value)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, b.name, err)
		}
	}

	return nil
}

func intSetter(p *int) func(string) error {
	return func(s string) error {
		v, err := strconv.Atoi(s)
		if err != nil {
			return err
		}

		*p = v

		return nil
	}
}

func floatSetter(p *float64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}

		*p = v

		return nil
	}
}

func boolSetter(p *bool) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}

		*p = v

		return nil
	}
}

func listSetter(p *[]string) func(string) error {
	return func(s string) error {
		*p = nil

		for _, item := range strings.Split(s, ",") {
			item = strings.TrimSpace(item)
			if item != "" {
				*p = append(*p, item)
			}
		}

		return nil
	}
}

func stringSetter(p *string) func(string) error {
	return func(s string) error {
		*p = s
		return nil
	}
}

// Validate checks that the configuration describes a run that can make
// progress.
func (c Config) Validate() error {
	var errs []error

	if c.NumLPs < 1 {
		errs = append(errs, fmt.Errorf("lps must be at least 1, got %d", c.NumLPs))
	}

	if c.EndTime <= 0 {
		errs = append(errs, fmt.Errorf("end_time must be positive, got %v", c.EndTime))
	}

	if c.MinDelays.Local < 0 {
		errs = append(errs, fmt.Errorf(
			"min_delays.local must not be negative, got %v", c.MinDelays.Local))
	}

	if c.MinDelays.Remote <= 0 {
		errs = append(errs, fmt.Errorf(
			"min_delays.remote must be positive, got %v", c.MinDelays.Remote))
	}

	if c.PollInterval < 0 {
		errs = append(errs, fmt.Errorf(
			"poll_interval must not be negative, got %d", c.PollInterval))
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if c.Monitor.Port < 0 || c.Monitor.Port > 65535 {
		errs = append(errs, fmt.Errorf("monitor.port %d is out of range", c.Monitor.Port))
	}

	if c.Engine != EngineLocal && c.Engine != EngineEvt {
		errs = append(errs, fmt.Errorf(
			"engine must be %q or %q, got %q", EngineLocal, EngineEvt, c.Engine))
	}

	errs = append(errs, c.Workload.validate()...)
	errs = append(errs, c.Cluster.validate(c.NumLPs)...)

	return errors.Join(errs...)
}

func (w Workload) validate() []error {
	var errs []error

	if w.Relays < 0 || w.Hops < 0 || w.ControlEvery < 0 {
		errs = append(errs, errors.New("workload counts must not be negative"))
	}

	if w.MeanDelay < 0 {
		errs = append(errs, fmt.Errorf(
			"workload.mean_delay must not be negative, got %v", w.MeanDelay))
	}

	for name, rate := range map[string]float64{
		"late_rate":  w.LateRate,
		"fault_rate": w.FaultRate,
		"fatal_rate": w.FatalRate,
	} {
		if rate < 0 || rate > 1 {
			errs = append(errs, fmt.Errorf("workload.%s %v is not in [0, 1]", name, rate))
		}
	}

	return errs
}

func (c Cluster) validate(numLPs int) []error {
	var errs []error

	if c.Linger < 0 {
		errs = append(errs, fmt.Errorf("cluster.linger must not be negative, got %v", c.Linger))
	}

	if !c.Distributed() {
		return errs
	}

	if len(c.Peers) != numLPs {
		errs = append(errs, fmt.Errorf(
			"cluster.peers lists %d processes for %d LPs", len(c.Peers), numLPs))
	}

	if c.Rank < 0 || c.Rank >= len(c.Peers) {
		errs = append(errs, fmt.Errorf(
			"cluster.rank %d is out of range [0, %d)", c.Rank, len(c.Peers)))
	}

	return errs
}

// Level returns the parsed log level.
func (c Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}

	return level
}
