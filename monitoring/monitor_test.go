package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/sugawarayuuta/sonnet"

	"github.com/sim-x/simx-sub002/engines"
	"github.com/sim-x/simx-sub002/lp"
	"github.com/sim-x/simx-sub002/messenger"
)

var _ = Describe("Monitor", func() {
	var (
		m      *Monitor
		kernel *engines.Local
		lps    []*lp.LP
	)

	get := func(path string, rsp any) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		if rsp != nil && rec.Code == http.StatusOK {
			Expect(sonnet.Unmarshal(rec.Body.Bytes(), rsp)).To(Succeed())
		}

		return rec
	}

	BeforeEach(func() {
		logger, _ := test.NewNullLogger()
		log := logrus.NewEntry(logger)

		kernel = engines.NewLocal(0, log)
		builder := lp.MakeBuilder().
			WithKernel(kernel).
			WithNumLPs(2).
			WithLogger(log)

		lps = nil
		for _, id := range []lp.LPID{1, 0} {
			l, err := builder.Build(id)
			Expect(err).ToNot(HaveOccurred())
			lps = append(lps, l)
		}

		for _, l := range lps {
			Expect(l.Router().Init()).To(Succeed())
		}

		for _, l := range lps {
			Expect(l.Router().Start()).To(Succeed())
		}

		m = NewMonitor().WithLogger(log)
		m.RegisterEngine(kernel.Engine())
		for _, l := range lps {
			m.RegisterLP(l)
		}
	})

	It("should report the current time", func() {
		var rsp nowRsp
		get("/api/now", &rsp)

		Expect(rsp).To(Equal(nowRsp{Now: 0, Paused: false}))
	})

	It("should pause and continue the engine", func() {
		get("/api/pause", nil)
		Expect(kernel.Engine().IsPaused()).To(BeTrue())

		var rsp nowRsp
		get("/api/now", &rsp)
		Expect(rsp.Paused).To(BeTrue())

		get("/api/continue", nil)
		Expect(kernel.Engine().IsPaused()).To(BeFalse())
	})

	It("should list the LPs sorted by ID", func() {
		var rsp []lpRsp
		get("/api/lps", &rsp)

		Expect(rsp).To(HaveLen(2))
		Expect(rsp[0].ID).To(Equal(lp.LPID(0)))
		Expect(rsp[1].Name).To(Equal("LP1"))
	})

	It("should serialize an LP", func() {
		rec := get("/api/lp/1", nil)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.Len()).To(BeNumerically(">", 0))
	})

	It("should reject unknown LPs", func() {
		Expect(get("/api/lp/7", nil).Code).To(Equal(http.StatusNotFound))
		Expect(get("/api/lp/abc", nil).Code).To(Equal(http.StatusBadRequest))
	})

	It("should report the lateness of every LP", func() {
		Expect(lps[1].Router().SendEvent(1, "payload", 0.5)).To(Succeed())

		var rsp []latenessRsp
		get("/api/lateness", &rsp)

		Expect(rsp).To(HaveLen(2))
		Expect(rsp[0].ID).To(Equal(lp.LPID(0)))
		Expect(rsp[0].Lateness.Count).To(Equal(1))
		Expect(rsp[1].Lateness.Count).To(BeZero())
	})

	It("should keep the engine paused while concurrent requests read", func() {
		hops := 0
		var bounce lp.EventFunc
		bounce = func(host *lp.LP) error {
			hops++
			if hops == 2000 {
				return nil
			}

			return host.Send(1-host.ID(), bounce, 0)
		}

		Expect(kernel.Inject(lps[1].Router().InChannel(0), bounce, 0)).To(Succeed())

		done := make(chan error, 1)
		go func() { done <- kernel.Run(1e6) }()

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()

				for j := 0; j < 20; j++ {
					var lateness []latenessRsp
					get("/api/lateness", &lateness)

					var rsp []lpRsp
					get("/api/lps", &rsp)
				}
			}()
		}
		wg.Wait()

		Eventually(done, "10s").Should(Receive(BeNil()))
		Expect(kernel.Engine().IsPaused()).To(BeFalse())

		var rsp []latenessRsp
		get("/api/lateness", &rsp)
		Expect(rsp[0].Lateness.Count + rsp[1].Lateness.Count).To(Equal(1999))
	})

	It("should list the messengers", func() {
		msgr := messenger.MakeBuilder().WithLogger(lps[0].Logger()).Build()
		Expect(msgr.Init(nil)).To(Succeed())
		m.RegisterMessenger(msgr)

		var rsp []messengerRsp
		get("/api/messenger", &rsp)

		Expect(rsp).To(Equal([]messengerRsp{{Rank: -1}}))
	})

	It("should publish registered stats", func() {
		m.RegisterStats("answer", func() any { return map[string]int{"value": 42} })

		var names []string
		get("/api/stats", &names)
		Expect(names).To(Equal([]string{"answer"}))

		var rsp map[string]int
		get("/api/stats/answer", &rsp)
		Expect(rsp["value"]).To(Equal(42))

		Expect(get("/api/stats/question", nil).Code).To(Equal(http.StatusNotFound))
	})

	It("should list the progress bars", func() {
		bar := m.CreateProgressBar("time", 100)
		bar.SetFinished(150)

		var rsp []progressRsp
		get("/api/progress", &rsp)
		Expect(rsp).To(HaveLen(1))
		Expect(rsp[0].Finished).To(Equal(uint64(100)))

		m.CompleteProgressBar(bar)
		get("/api/progress", &rsp)
		Expect(rsp).To(BeEmpty())
	})

	It("should report the resources of the process", func() {
		var rsp resourceRsp
		get("/api/resource", &rsp)

		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should serve on a random port", func() {
		url, err := m.StartServer()
		Expect(err).ToNot(HaveOccurred())
		defer func() { Expect(m.StopServer(context.Background())).To(Succeed()) }()

		rsp, err := http.Get(url + "/api/now")
		Expect(err).ToNot(HaveOccurred())
		defer rsp.Body.Close()

		Expect(rsp.StatusCode).To(Equal(http.StatusOK))
	})
})
