package simulation

import (
	"fmt"
	"strconv"

	"github.com/iti/evt/evtm"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/sim-x/simx-sub002/comm"
	"github.com/sim-x/simx-sub002/comm/inproc"
	"github.com/sim-x/simx-sub002/comm/tcp"
	"github.com/sim-x/simx-sub002/config"
	"github.com/sim-x/simx-sub002/datarecording"
	"github.com/sim-x/simx-sub002/engines"
	"github.com/sim-x/simx-sub002/fault"
	"github.com/sim-x/simx-sub002/lp"
	"github.com/sim-x/simx-sub002/messenger"
	"github.com/sim-x/simx-sub002/monitoring"
	"github.com/sim-x/simx-sub002/tracing"
	"github.com/sim-x/simx-sub002/workload"
)

// Builder can be used to build a simulation.
type Builder struct {
	cfg  config.Config
	log  *logrus.Entry
	exit fault.ExitFunc
	node *tcp.Node
}

// MakeBuilder creates a new builder with the default configuration.
func MakeBuilder() Builder {
	return Builder{
		cfg: config.Default(),
		log: logrus.NewEntry(logrus.StandardLogger()),
	}
}

// WithConfig sets the parameters of the run.
func (b Builder) WithConfig(cfg config.Config) Builder {
	b.cfg = cfg
	return b
}

// WithLogger sets the log entry every component logs to.
func (b Builder) WithLogger(log *logrus.Entry) Builder {
	b.log = log
	return b
}

// WithExitFunc replaces the function called on fatal errors.
func (b Builder) WithExitFunc(f fault.ExitFunc) Builder {
	b.exit = f
	return b
}

// WithNode sets the TCP node of the process. Without it, a distributed run
// listens on the address of its rank in the peer list.
func (b Builder) WithNode(n *tcp.Node) Builder {
	b.node = n
	return b
}

// Build builds the simulation. The LPs are initialized and started, so that
// the returned simulation is ready to run.
func (b Builder) Build() (*Simulation, error) {
	err := b.cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s := &Simulation{
		id:  xid.New().String(),
		cfg: b.cfg,
	}
	s.log = b.log.WithField("sim", s.id)

	s.kernel = b.buildKernel(s)
	s.model = workload.NewModel(b.cfg.Workload, b.cfg.NumLPs)

	err = b.buildLPs(s)
	if err != nil {
		return nil, err
	}

	err = b.buildMessengers(s)
	if err != nil {
		s.closeNode()
		return nil, err
	}

	if b.cfg.Trace.DB != "" {
		b.buildTracing(s)
	}

	if b.cfg.Monitor.Enabled {
		err = b.buildMonitor(s)
		if err != nil {
			s.closeNode()
			return nil, err
		}
	}

	return s, nil
}

func (b Builder) buildKernel(s *Simulation) engines.Kernel {
	log := s.log.WithField("engine", b.cfg.Engine)

	if b.cfg.Engine == config.EngineEvt {
		return engines.NewEvt(evtm.New(), b.cfg.PollInterval, log)
	}

	return engines.NewLocal(b.cfg.PollInterval, log)
}

func (b Builder) buildLPs(s *Simulation) error {
	lpBuilder := lp.MakeBuilder().
		WithKernel(s.kernel).
		WithNumLPs(b.cfg.NumLPs).
		WithMinDelays(lp.MinDelays{
			Local:  vtime(b.cfg.MinDelays.Local),
			Remote: vtime(b.cfg.MinDelays.Remote),
		}).
		WithLatenessEscalation(b.cfg.LatenessEscalation).
		WithLogger(s.log)
	if b.exit != nil {
		lpBuilder = lpBuilder.WithExitFunc(b.exit)
	}

	for i := 0; i < b.cfg.NumLPs; i++ {
		l, err := lpBuilder.Build(lp.LPID(i))
		if err != nil {
			return fmt.Errorf("building LP %d: %w", i, err)
		}

		s.lps = append(s.lps, l)
	}

	for _, l := range s.lps {
		err := l.Router().Init()
		if err != nil {
			return fmt.Errorf("initializing %s: %w", l.Name(), err)
		}
	}

	for _, l := range s.lps {
		err := l.Router().Start()
		if err != nil {
			return fmt.Errorf("starting %s: %w", l.Name(), err)
		}
	}

	return nil
}

// buildMessengers gives every LP a messenger whose rank is the LP ID. In a
// distributed run, only the LP of the process rank gets one.
func (b Builder) buildMessengers(s *Simulation) error {
	if b.cfg.Cluster.Distributed() {
		world, err := b.connect(s)
		if err != nil {
			return err
		}

		return b.addMessenger(s, s.lps[b.cfg.Cluster.Rank], world)
	}

	network := inproc.NewNetwork(b.cfg.NumLPs)

	for _, l := range s.lps {
		err := b.addMessenger(s, l, network.World(int(l.ID())))
		if err != nil {
			return err
		}
	}

	return nil
}

func (b Builder) connect(s *Simulation) (comm.World, error) {
	cluster := b.cfg.Cluster

	s.node = b.node
	if s.node == nil {
		n, err := tcp.Listen(cluster.Rank, cluster.Peers[cluster.Rank],
			s.log.WithField("component", "tcp"))
		if err != nil {
			return nil, err
		}

		s.node = n
	}

	s.log.WithFields(logrus.Fields{
		"rank":  cluster.Rank,
		"addr":  s.node.Addr(),
		"peers": len(cluster.Peers),
	}).Info("connecting to the other processes")

	world, err := s.node.Connect(cluster.Peers)
	if err != nil {
		return nil, fmt.Errorf("connecting rank %d: %w", cluster.Rank, err)
	}

	return world, nil
}

func (b Builder) addMessenger(s *Simulation, l *lp.LP, world comm.World) error {
	mb := messenger.MakeBuilder().
		WithHandler(s.model).
		WithLogger(s.log.WithField("lp", l.ID()))
	if b.exit != nil {
		mb = mb.WithExitFunc(b.exit)
	}

	m := mb.Build()

	err := m.Init(world)
	if err != nil {
		return fmt.Errorf("initializing the messenger of %s: %w", l.Name(), err)
	}

	s.messengers = append(s.messengers, m)
	s.model.AttachMessenger(l.ID(), m)
	s.kernel.RegisterPoller(m)

	return nil
}

func (b Builder) buildTracing(s *Simulation) {
	s.recorder = datarecording.New(b.cfg.Trace.DB)

	s.execRecorder = datarecording.NewExecRecorder(s.recorder)
	s.execRecorder.Start()
	s.execRecorder.Set("Simulation ID", s.id)
	s.execRecorder.Set("LPs", strconv.Itoa(b.cfg.NumLPs))
	s.execRecorder.Set("Simulated End Time", strconv.FormatFloat(b.cfg.EndTime, 'g', -1, 64))

	s.tracer = tracing.NewDispatchTracer(s.recorder)
	s.tracer.OnlyFailures = b.cfg.Trace.OnlyFailures

	for _, l := range s.lps {
		s.tracer.Trace(l)
	}
}

func (b Builder) buildMonitor(s *Simulation) error {
	s.monitor = monitoring.NewMonitor().
		WithLogger(s.log.WithField("component", "monitor")).
		WithPortNumber(b.cfg.Monitor.Port)

	s.monitor.RegisterEngine(s.kernel.Controller())
	for _, l := range s.lps {
		s.monitor.RegisterLP(l)
	}

	for _, m := range s.messengers {
		s.monitor.RegisterMessenger(m)
	}

	s.monitor.RegisterStats("workload", func() any { return s.model.Stats() })
	if s.tracer != nil {
		s.monitor.RegisterStats("trace", func() any { return s.tracer.Summary() })
	}

	s.progress = s.monitor.CreateProgressBar("Simulated time", uint64(b.cfg.EndTime))
	s.kernel.RegisterPoller(&progressPoller{bar: s.progress, kernel: s.kernel})

	url, err := s.monitor.StartServer()
	if err != nil {
		return err
	}

	if b.cfg.Monitor.OpenBrowser {
		s.monitor.OpenInBrowser(url)
	}

	return nil
}
