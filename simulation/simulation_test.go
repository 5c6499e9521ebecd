package simulation_test

import (
	"database/sql"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sim-x/simx-sub002/comm/tcp"
	"github.com/sim-x/simx-sub002/config"
	"github.com/sim-x/simx-sub002/engines"
	"github.com/sim-x/simx-sub002/simulation"
)

var _ = Describe("Simulation", func() {
	var (
		cfg     config.Config
		builder simulation.Builder
		exits   []int
	)

	BeforeEach(func() {
		logger, _ := test.NewNullLogger()
		exits = nil

		cfg = config.Default()
		cfg.NumLPs = 3
		cfg.EndTime = 1e6
		cfg.PollInterval = 8
		cfg.Workload = config.Workload{
			Relays:       6,
			Hops:         30,
			MeanDelay:    1,
			LateRate:     0.1,
			ControlEvery: 3,
		}

		builder = simulation.MakeBuilder().
			WithLogger(logrus.NewEntry(logger)).
			WithExitFunc(func(code int) { exits = append(exits, code) })
	})

	It("should refuse an invalid configuration", func() {
		cfg.MinDelays.Remote = 0

		_, err := builder.WithConfig(cfg).Build()

		Expect(err).To(HaveOccurred())
	})

	It("should run the workload to completion", func() {
		s, err := builder.WithConfig(cfg).Build()
		Expect(err).ToNot(HaveOccurred())
		Expect(s.LPs()).To(HaveLen(3))
		Expect(s.Messengers()).To(HaveLen(3))
		Expect(s.Monitor()).To(BeNil())
		Expect(s.Tracer()).To(BeNil())

		res, err := s.Run()
		Expect(err).ToNot(HaveOccurred())

		Expect(res.ID).To(Equal(s.ID()))
		Expect(res.Workload.Completed).To(Equal(uint64(6)))
		Expect(res.Workload.Hops).To(Equal(uint64(6 * 30)))
		Expect(res.Routers.Dispatched).To(Equal(res.Workload.Hops))
		Expect(uint64(res.Routers.LateSends)).To(Equal(res.Workload.LateRequests))
		Expect(res.Terminated).To(BeFalse())

		Expect(res.Workload.ControlsSent).To(Equal(uint64(6 * 10)))
		Expect(res.Messengers.Received).To(Equal(res.Workload.ControlsSent))
		Expect(res.Workload.ControlsReceived).To(Equal(res.Workload.ControlsSent))
		Expect(res.Messengers.Pending).To(BeZero())
	})

	It("should run a single LP without control messages", func() {
		cfg.NumLPs = 1

		s, err := builder.WithConfig(cfg).Build()
		Expect(err).ToNot(HaveOccurred())
		Expect(s.Messengers()[0].Active()).To(BeFalse())

		res, err := s.Run()
		Expect(err).ToNot(HaveOccurred())

		Expect(res.Workload.Completed).To(Equal(uint64(6)))
		Expect(res.Workload.ControlsSent).To(BeZero())
	})

	It("should stop at the end time", func() {
		cfg.EndTime = 5

		s, err := builder.WithConfig(cfg).Build()
		Expect(err).ToNot(HaveOccurred())

		res, err := s.Run()
		Expect(err).ToNot(HaveOccurred())

		Expect(res.EndTime).To(BeNumerically("<=", 5))
		Expect(res.Workload.Completed).To(BeNumerically("<", 6))
	})

	It("should terminate on a fatal error", func() {
		cfg.Workload.FatalRate = 1

		s, err := builder.WithConfig(cfg).Build()
		Expect(err).ToNot(HaveOccurred())

		res, err := s.Run()
		Expect(err).ToNot(HaveOccurred())

		Expect(res.Terminated).To(BeTrue())
		Expect(exits).ToNot(BeEmpty())
	})

	It("should record the dispatches", func() {
		path := filepath.Join(GinkgoT().TempDir(), "trace")
		cfg.Trace.DB = path

		s, err := builder.WithConfig(cfg).Build()
		Expect(err).ToNot(HaveOccurred())
		Expect(s.Tracer()).ToNot(BeNil())

		res, err := s.Run()
		Expect(err).ToNot(HaveOccurred())

		db, err := sql.Open("sqlite3", path+".sqlite3")
		Expect(err).ToNot(HaveOccurred())
		defer db.Close()

		var count uint64
		Expect(db.QueryRow("SELECT COUNT(*) FROM trace_executions").
			Scan(&count)).To(Succeed())
		Expect(count).To(Equal(res.Routers.Dispatched))

		var lps string
		Expect(db.QueryRow("SELECT Value FROM exec_info WHERE Property='LPs'").
			Scan(&lps)).To(Succeed())
		Expect(lps).To(Equal("3"))
	})

	It("should serve the monitor while running", func() {
		cfg.Monitor.Enabled = true

		s, err := builder.WithConfig(cfg).Build()
		Expect(err).ToNot(HaveOccurred())
		Expect(s.Monitor()).ToNot(BeNil())

		_, err = s.Run()
		Expect(err).ToNot(HaveOccurred())
		Expect(s.Terminate()).To(Succeed())
	})
})

var _ = Describe("Simulation engines and clusters", func() {
	var (
		cfg    config.Config
		logger *logrus.Logger
	)

	BeforeEach(func() {
		logger, _ = test.NewNullLogger()

		cfg = config.Default()
		cfg.NumLPs = 2
		cfg.EndTime = 1e6
		cfg.PollInterval = 8
		cfg.Workload = config.Workload{
			Relays:       6,
			Hops:         30,
			MeanDelay:    1,
			LateRate:     0.1,
			ControlEvery: 3,
		}
	})

	It("should run the workload on the evt engine", func() {
		cfg.Engine = config.EngineEvt
		cfg.Monitor.Enabled = true

		s, err := simulation.MakeBuilder().
			WithConfig(cfg).
			WithLogger(logrus.NewEntry(logger)).
			Build()
		Expect(err).ToNot(HaveOccurred())
		Expect(s.Kernel()).To(BeAssignableToTypeOf(&engines.Evt{}))

		res, err := s.Run()
		Expect(err).ToNot(HaveOccurred())

		Expect(res.Workload.Completed).To(Equal(uint64(6)))
		Expect(res.Routers.Dispatched).To(Equal(res.Workload.Hops))
		Expect(res.Delivered).To(BeNumerically(">=", res.Workload.Hops))
		Expect(res.Messengers.Received).To(Equal(res.Workload.ControlsSent))
	})

	It("should exchange control messages between processes over TCP", func() {
		nodes := make([]*tcp.Node, 2)
		cfg.Cluster.Peers = make([]string, 2)
		for rank := range nodes {
			n, err := tcp.Listen(rank, "127.0.0.1:0", logrus.NewEntry(logger))
			Expect(err).ToNot(HaveOccurred())
			nodes[rank] = n
			cfg.Cluster.Peers[rank] = n.Addr()
		}

		sims := make([]*simulation.Simulation, 2)
		results := make([]simulation.Result, 2)
		errs := make([]error, 2)

		var wg sync.WaitGroup
		for rank := range nodes {
			wg.Add(1)
			go func(rank int) {
				defer GinkgoRecover()
				defer wg.Done()

				c := cfg
				c.Cluster.Rank = rank
				sims[rank], errs[rank] = simulation.MakeBuilder().
					WithConfig(c).
					WithLogger(logrus.NewEntry(logger)).
					WithNode(nodes[rank]).
					Build()
				if errs[rank] != nil {
					return
				}

				results[rank], errs[rank] = sims[rank].Run()
			}(rank)
		}
		wg.Wait()

		Expect(errs).To(HaveEach(BeNil()))

		var sent, received uint64
		for rank, s := range sims {
			Expect(s.Messengers()).To(HaveLen(1))
			Expect(s.Messengers()[0].Rank()).To(Equal(rank))
			Expect(s.Node()).To(BeNil())

			res := results[rank]
			Expect(res.Workload.Completed).To(Equal(uint64(6)))
			Expect(res.Messengers.Pending).To(BeZero())
			Expect(res.Workload.ControlsReceived).To(Equal(res.Messengers.Received))

			sent += res.Workload.ControlsSent
			received += res.Messengers.Received
		}

		Expect(sent).To(BeNumerically(">", 0))
		Expect(received).To(Equal(sent))
	})
})
