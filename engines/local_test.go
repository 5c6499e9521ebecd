package engines_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sim-x/simx-sub002/engines"
	"github.com/sim-x/simx-sub002/fault"
	"github.com/sim-x/simx-sub002/lp"
	"github.com/sim-x/simx-sub002/sim"
)

type execution struct {
	lp   lp.LPID
	name string
	time sim.VTime
}

type countingPoller struct {
	polls int
}

func (p *countingPoller) Poll() error {
	p.polls++
	return nil
}

var _ = Describe("Local", func() {
	var (
		kernel   *engines.Local
		lps      []*lp.LP
		logHook  *test.Hook
		executed []execution
		exits    []int
	)

	record := func(name string, next func(host *lp.LP) error) lp.Event {
		return lp.EventFunc(func(host *lp.LP) error {
			executed = append(executed, execution{host.ID(), name, host.Now()})
			if next != nil {
				return next(host)
			}

			return nil
		})
	}

	BeforeEach(func() {
		logger, hook := test.NewNullLogger()
		logHook = hook
		executed = nil
		exits = nil

		kernel = engines.NewLocal(1, logrus.NewEntry(logger))
		builder := lp.MakeBuilder().
			WithKernel(kernel).
			WithNumLPs(2).
			WithMinDelays(lp.MinDelays{Local: 0.5, Remote: 1}).
			WithLogger(logrus.NewEntry(logger)).
			WithExitFunc(func(code int) { exits = append(exits, code) })

		lps = nil
		for i := 0; i < 2; i++ {
			l, err := builder.Build(lp.LPID(i))
			Expect(err).ToNot(HaveOccurred())
			lps = append(lps, l)
		}

		for _, l := range lps {
			Expect(l.Router().Init()).To(Succeed())
		}

		for _, l := range lps {
			Expect(l.Router().Start()).To(Succeed())
		}
	})

	inject := func(target int, evt lp.Event, at sim.VTime) {
		in := lps[target].Router().InChannel(lp.LPID(target))
		Expect(kernel.Inject(in, evt, at)).To(Succeed())
	}

	It("should deliver a remote event after the requested delay", func() {
		inject(0, record("start", func(host *lp.LP) error {
			return host.Send(1, record("arrive", nil), 5)
		}), 10)

		Expect(kernel.Run(100)).To(Succeed())

		Expect(executed).To(Equal([]execution{
			{0, "start", 10},
			{1, "arrive", 15},
		}))
		Expect(logHook.AllEntries()).To(BeEmpty())
	})

	It("should deliver late sends at the minimum delay", func() {
		inject(0, record("start", func(host *lp.LP) error {
			return host.Send(1, record("arrive", nil), 0)
		}), 10)

		Expect(kernel.Run(100)).To(Succeed())

		Expect(executed[1]).To(Equal(execution{1, "arrive", 11}))
		Expect(logHook.LastEntry().Level).To(Equal(logrus.WarnLevel))
		Expect(lps[0].Router().Stats().LateSends).To(Equal(1))
	})

	It("should keep the order of same-time events on a channel", func() {
		inject(0, record("start", func(host *lp.LP) error {
			for _, name := range []string{"a", "b", "c"} {
				err := host.Send(1, record(name, nil), 2)
				if err != nil {
					return err
				}
			}

			return nil
		}), 0)

		Expect(kernel.Run(100)).To(Succeed())

		Expect(executed).To(Equal([]execution{
			{0, "start", 0},
			{1, "a", 2},
			{1, "b", 2},
			{1, "c", 2},
		}))
	})

	It("should honor the local minimum delay", func() {
		inject(1, record("start", func(host *lp.LP) error {
			return host.Send(1, record("self", nil), 0.75)
		}), 1)

		Expect(kernel.Run(100)).To(Succeed())

		Expect(executed[1]).To(Equal(execution{1, "self", 1.75}))
	})

	It("should stop at the end time", func() {
		inject(0, record("start", func(host *lp.LP) error {
			return host.Send(1, record("late", nil), 50)
		}), 0)

		Expect(kernel.Run(20)).To(Succeed())

		Expect(executed).To(HaveLen(1))
		Expect(kernel.Engine().Pending()).To(Equal(1))
	})

	It("should isolate failing events", func() {
		inject(1, record("bad", func(*lp.LP) error {
			return fault.Errorf("broken")
		}), 1)
		inject(1, record("good", nil), 1)

		Expect(kernel.Run(10)).To(Succeed())

		Expect(executed).To(HaveLen(2))
		Expect(exits).To(BeEmpty())
	})

	It("should stop dispatching after a fatal error", func() {
		inject(1, record("fatal", func(*lp.LP) error {
			return fault.Fatal("dead")
		}), 1)
		inject(1, record("after", nil), 1)

		Expect(kernel.Run(10)).To(Succeed())

		Expect(executed).To(HaveLen(1))
		Expect(exits).To(Equal([]int{1}))
	})

	It("should poll registered pollers", func() {
		p := &countingPoller{}
		kernel.RegisterPoller(p)
		inject(0, record("start", nil), 1)

		Expect(kernel.Run(10)).To(Succeed())

		Expect(p.polls).To(BeNumerically(">=", 2))
	})

	It("should refuse writes on unmapped channels", func() {
		other := engines.NewLocal(0, logrus.NewEntry(logrus.StandardLogger()))
		out := lps[0].Router().OutChannel(1)

		Expect(other.Write(out, nil, 1)).ToNot(Succeed())
	})

	It("should refuse publishing a name twice", func() {
		in := lps[0].Router().InChannel(0)

		Expect(kernel.Publish(in)).ToNot(Succeed())
	})
})
