// Package tracing records what the routers of the LPs do.
package tracing

import (
	"fmt"
	"sync"

	"github.com/sim-x/simx-sub002/datarecording"
	"github.com/sim-x/simx-sub002/fault"
	"github.com/sim-x/simx-sub002/lp"
	"github.com/sim-x/simx-sub002/sim"
)

const (
	executionTable = "trace_executions"
	lateSendTable  = "trace_late_sends"
	droppedTable   = "trace_dropped"
)

type executionEntry struct {
	LP       int32
	Time     float64
	Channel  string
	Event    string
	Severity string
	Action   string
	Message  string
}

type lateSendEntry struct {
	LP        int32
	Time      float64
	Dest      int32
	Requested float64
	MinDelay  float64
	Shortfall float64
}

type droppedEntry struct {
	LP      int32
	Time    float64
	Channel string
	Payload string
}

// Summary counts the records of a tracer.
type Summary struct {
	Executions uint64 `json:"executions"`
	Failures   uint64 `json:"failures"`
	LateSends  uint64 `json:"late_sends"`
	Dropped    uint64 `json:"dropped"`
}

// DispatchTracer writes the executions, the late sends and the dropped
// payloads of the traced LPs into a data recorder.
type DispatchTracer struct {
	mu      sync.Mutex
	backend datarecording.DataRecorder
	traced  map[lp.LPID]bool
	summary Summary

	// OnlyFailures skips the executions that succeeded.
	OnlyFailures bool
}

// NewDispatchTracer creates a DispatchTracer and the tables it writes to.
func NewDispatchTracer(backend datarecording.DataRecorder) *DispatchTracer {
	backend.CreateTable(executionTable, executionEntry{})
	backend.CreateTable(lateSendTable, lateSendEntry{})
	backend.CreateTable(droppedTable, droppedEntry{})

	return &DispatchTracer{
		backend: backend,
		traced:  make(map[lp.LPID]bool),
	}
}

// Trace starts recording the router of l.
func (t *DispatchTracer) Trace(l *lp.LP) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.traced[l.ID()] {
		panic(fmt.Sprintf("%s is already traced", l.Name()))
	}

	t.traced[l.ID()] = true
	l.Router().AcceptHook(&routerHook{tracer: t, lp: l.ID()})
}

// Summary returns the number of records of each kind.
func (t *DispatchTracer) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.summary
}

// Terminate writes the buffered records.
func (t *DispatchTracer) Terminate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.backend.Flush()
}

func (t *DispatchTracer) recordExecution(
	id lp.LPID,
	now sim.VTime,
	evt any,
	exec lp.Execution,
) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.summary.Executions++
	if exec.Outcome.Err != nil {
		t.summary.Failures++
	} else if t.OnlyFailures {
		return
	}

	entry := executionEntry{
		LP:       int32(id),
		Time:     float64(now),
		Channel:  exec.Channel.Name(),
		Event:    fmt.Sprintf("%T", evt),
		Action:   actionName(exec.Outcome.Action),
	}

	if exec.Outcome.Err != nil {
		entry.Severity = exec.Outcome.Level.String()
		entry.Message = exec.Outcome.Err.Error()
	}

	t.backend.InsertData(executionTable, entry)
}

func (t *DispatchTracer) recordLateSend(id lp.LPID, now sim.VTime, s lp.LateSend) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.summary.LateSends++
	t.backend.InsertData(lateSendTable, lateSendEntry{
		LP:        int32(id),
		Time:      float64(now),
		Dest:      int32(s.Dest),
		Requested: float64(s.Requested),
		MinDelay:  float64(s.MinDelay),
		Shortfall: float64(s.Shortfall()),
	})
}

func (t *DispatchTracer) recordDropped(
	id lp.LPID,
	now sim.VTime,
	payload any,
	ch *lp.InChannel,
) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.summary.Dropped++
	t.backend.InsertData(droppedTable, droppedEntry{
		LP:      int32(id),
		Time:    float64(now),
		Channel: ch.Name(),
		Payload: fmt.Sprintf("%T", payload),
	})
}

func actionName(a fault.Action) string {
	if a == fault.Terminate {
		return "terminate"
	}

	return "continue"
}

type routerHook struct {
	tracer *DispatchTracer
	lp     lp.LPID
}

// Func turns the router hooks into records.
func (h *routerHook) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case lp.HookPosAfterExecute:
		h.tracer.recordExecution(h.lp, ctx.Now, ctx.Item,
			ctx.Detail.(lp.Execution))
	case lp.HookPosLateSend:
		h.tracer.recordLateSend(h.lp, ctx.Now, ctx.Detail.(lp.LateSend))
	case lp.HookPosDropped:
		h.tracer.recordDropped(h.lp, ctx.Now, ctx.Item,
			ctx.Detail.(*lp.InChannel))
	}
}
