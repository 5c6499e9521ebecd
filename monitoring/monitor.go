// Package monitoring turns a running simulation into a web server that can be
// queried and controlled.
package monitoring

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"
	"github.com/sugawarayuuta/sonnet"
	"github.com/syifan/goseth"
	"golang.org/x/exp/slices"

	"github.com/sim-x/simx-sub002/lp"
	"github.com/sim-x/simx-sub002/messenger"
	"github.com/sim-x/simx-sub002/sim"
)

// profileDuration is how long /api/profile samples the CPU.
const profileDuration = time.Second

// Engine is the part of the engine the monitor controls.
type Engine interface {
	sim.TimeTeller
	Pause()
	Continue()
	IsPaused() bool
}

// Monitor serves the state of a running simulation over HTTP and lets the user
// pause and resume it.
type Monitor struct {
	engine     Engine
	engineMu   sync.Mutex // serializes pausing and resuming the engine
	lps        []*lp.LP
	messengers []*messenger.Messenger
	stats      map[string]func() any
	portNumber int
	log        *logrus.Entry

	barsMu sync.Mutex
	bars   []*ProgressBar

	server   *http.Server
	listener net.Listener
}

// NewMonitor creates a Monitor that listens on a random port.
func NewMonitor() *Monitor {
	return &Monitor{
		stats: make(map[string]func() any),
		log:   logrus.WithField("component", "monitor"),
	}
}

// WithPortNumber makes the server listen on port. Privileged ports fall back
// to a random one.
func (m *Monitor) WithPortNumber(port int) *Monitor {
	if port > 0 && port <= 1000 {
		m.log.WithField("port", port).Warn("privileged port, listening on a random port")
		port = 0
	}

	m.portNumber = port

	return m
}

// WithLogger sets the log entry the monitor logs to.
func (m *Monitor) WithLogger(log *logrus.Entry) *Monitor {
	m.log = log
	return m
}

// RegisterEngine sets the engine to pause and report the time of.
func (m *Monitor) RegisterEngine(e Engine) {
	m.engine = e
}

// RegisterLP registers an LP to be monitored.
func (m *Monitor) RegisterLP(l *lp.LP) {
	m.lps = append(m.lps, l)
	slices.SortFunc(m.lps, func(a, b *lp.LP) int {
		return int(a.ID()) - int(b.ID())
	})
}

// RegisterMessenger registers a messenger to be monitored.
func (m *Monitor) RegisterMessenger(msgr *messenger.Messenger) {
	m.messengers = append(m.messengers, msgr)
}

// RegisterStats publishes the value returned by f under /api/stats/{name}.
func (m *Monitor) RegisterStats(name string, f func() any) {
	m.stats[name] = f
}

// CreateProgressBar adds a bar to /api/progress.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	b := &ProgressBar{
		ID:        sim.NextID(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.barsMu.Lock()
	defer m.barsMu.Unlock()

	m.bars = append(m.bars, b)

	return b
}

// CompleteProgressBar removes a bar from /api/progress.
func (m *Monitor) CompleteProgressBar(done *ProgressBar) {
	m.barsMu.Lock()
	defer m.barsMu.Unlock()

	m.bars = slices.DeleteFunc(m.bars, func(b *ProgressBar) bool {
		return b == done
	})
}

// Handler returns the routes of the monitor.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseEngine)
	r.HandleFunc("/api/continue", m.continueEngine)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/lps", m.listLPs)
	r.HandleFunc("/api/lp/{id}", m.lpDetails)
	r.HandleFunc("/api/lateness", m.lateness)
	r.HandleFunc("/api/messenger", m.listMessengers)
	r.HandleFunc("/api/stats", m.listStats)
	r.HandleFunc("/api/stats/{name}", m.statsDetails)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)

	return r
}

// StartServer starts the monitor as a web server and returns its URL.
func (m *Monitor) StartServer() (string, error) {
	addr := net.JoinHostPort("", strconv.Itoa(m.portNumber))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("starting monitor: %w", err)
	}

	m.listener = listener
	m.server = &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	m.log.WithField("url", url).Info("monitoring simulation")

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.WithError(err).Error("monitor stopped")
		}
	}()

	return url, nil
}

// OpenInBrowser opens url with the default browser.
func (m *Monitor) OpenInBrowser(url string) {
	browser.Stdout = os.Stderr

	err := browser.OpenURL(url)
	if err != nil {
		m.log.WithError(err).Warn("cannot open the browser")
	}
}

// StopServer shuts the web server down.
func (m *Monitor) StopServer(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

// inspect runs f while the engine is paused so that f reads a consistent
// state. Requests take turns, so no request resumes the engine while another
// one reads.
func (m *Monitor) inspect(f func()) {
	m.engineMu.Lock()
	defer m.engineMu.Unlock()

	if m.engine != nil && !m.engine.IsPaused() {
		m.engine.Pause()
		defer m.engine.Continue()
	}

	f()
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	m.engineMu.Lock()
	m.engine.Pause()
	m.engineMu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	m.engineMu.Lock()
	m.engine.Continue()
	m.engineMu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

type nowRsp struct {
	Now    float64 `json:"now"`
	Paused bool    `json:"paused"`
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, nowRsp{
		Now:    float64(m.engine.CurrentTime()),
		Paused: m.engine.IsPaused(),
	})
}

type lpRsp struct {
	ID    lp.LPID        `json:"id"`
	Name  string         `json:"name"`
	Stats lp.RouterStats `json:"stats"`
}

func (m *Monitor) listLPs(w http.ResponseWriter, _ *http.Request) {
	rsp := make([]lpRsp, 0, len(m.lps))

	m.inspect(func() {
		for _, l := range m.lps {
			rsp = append(rsp, lpRsp{
				ID:    l.ID(),
				Name:  l.Name(),
				Stats: l.Router().Stats(),
			})
		}
	})

	writeJSON(w, rsp)
}

func (m *Monitor) lpDetails(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "LP ID must be a number", http.StatusBadRequest)
		return
	}

	idx, found := slices.BinarySearchFunc(m.lps, lp.LPID(id),
		func(l *lp.LP, id lp.LPID) int { return int(l.ID()) - int(id) })
	if !found {
		http.Error(w, "LP not found", http.StatusNotFound)
		return
	}

	m.inspect(func() {
		serializer := goseth.NewSerializer()
		serializer.SetRoot(m.lps[idx].Router())
		serializer.SetMaxDepth(1)
		err = serializer.Serialize(w)
	})

	dieOnErr(err)
}

type latenessRsp struct {
	ID       lp.LPID           `json:"id"`
	Lateness lp.LatenessReport `json:"lateness"`
}

func (m *Monitor) lateness(w http.ResponseWriter, _ *http.Request) {
	rsp := make([]latenessRsp, 0, len(m.lps))

	m.inspect(func() {
		for _, l := range m.lps {
			rsp = append(rsp, latenessRsp{
				ID:       l.ID(),
				Lateness: l.Router().Lateness(),
			})
		}
	})

	writeJSON(w, rsp)
}

type messengerRsp struct {
	Rank   int             `json:"rank"`
	Active bool            `json:"active"`
	Stats  messenger.Stats `json:"stats"`
}

func (m *Monitor) listMessengers(w http.ResponseWriter, _ *http.Request) {
	rsp := make([]messengerRsp, 0, len(m.messengers))

	m.inspect(func() {
		for _, msgr := range m.messengers {
			rsp = append(rsp, messengerRsp{
				Rank:   msgr.Rank(),
				Active: msgr.Active(),
				Stats:  msgr.Stats(),
			})
		}
	})

	writeJSON(w, rsp)
}

func (m *Monitor) listStats(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(m.stats))
	for name := range m.stats {
		names = append(names, name)
	}

	slices.Sort(names)

	writeJSON(w, names)
}

func (m *Monitor) statsDetails(w http.ResponseWriter, r *http.Request) {
	f, found := m.stats[mux.Vars(r)["name"]]
	if !found {
		http.Error(w, "stats not found", http.StatusNotFound)
		return
	}

	var value any
	m.inspect(func() { value = f() })

	writeJSON(w, value)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.barsMu.Lock()
	defer m.barsMu.Unlock()

	rsp := make([]progressRsp, 0, len(m.bars))
	for _, b := range m.bars {
		rsp = append(rsp, b.snapshot())
	}

	writeJSON(w, rsp)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	self, err := process.NewProcess(int32(os.Getpid()))
	dieOnErr(err)

	cpu, err := self.CPUPercent()
	dieOnErr(err)

	mem, err := self.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{CPUPercent: cpu, MemorySize: mem.RSS})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer

	if err := pprof.StartCPUProfile(&buf); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(profileDuration)
	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := sonnet.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(data)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
