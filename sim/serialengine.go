package sim

import (
	"fmt"
	"math"
	"sync"
)

// A SerialEngine handles one event at a time on the calling goroutine.
type SerialEngine struct {
	HookableBase

	queue *EventQueue

	nowMu sync.RWMutex
	now   VTime

	// running is held for the whole of Run. step is held while an event is
	// handled and while the engine is paused.
	running sync.Mutex
	step    sync.Mutex

	pauseMu sync.Mutex
	paused  bool

	endHandlers []SimulationEndHandler
}

// NewSerialEngine creates a SerialEngine at time 0.
func NewSerialEngine() *SerialEngine {
	return &SerialEngine{queue: NewEventQueue()}
}

// Schedule queues e. It panics if e happens before the current time.
func (e *SerialEngine) Schedule(evt Event) {
	if now := e.CurrentTime(); evt.Time() < now {
		panic(fmt.Sprintf("cannot schedule %T at %.10f, now is %.10f",
			evt, evt.Time(), now))
	}

	e.queue.Push(evt)
}

// CurrentTime returns the time of the event being handled, or of the last
// one.
func (e *SerialEngine) CurrentTime() VTime {
	e.nowMu.RLock()
	defer e.nowMu.RUnlock()

	return e.now
}

func (e *SerialEngine) advance(t VTime) {
	e.nowMu.Lock()
	e.now = t
	e.nowMu.Unlock()
}

// Run handles every queued event.
func (e *SerialEngine) Run() error {
	return e.RunUntil(VTime(math.Inf(1)))
}

// RunUntil handles the events whose time is not later than end. It stops at
// the first handler error and returns it.
func (e *SerialEngine) RunUntil(end VTime) error {
	e.running.Lock()
	defer e.running.Unlock()

	for {
		next := e.queue.Peek()
		if next == nil || next.Time() > end {
			return nil
		}

		if err := e.handleNext(); err != nil {
			return err
		}
	}
}

func (e *SerialEngine) handleNext() error {
	e.step.Lock()
	defer e.step.Unlock()

	evt := e.queue.Pop()
	e.advance(evt.Time())

	ctx := HookCtx{
		Domain: e,
		Now:    evt.Time(),
		Pos:    HookPosBeforeEvent,
		Item:   evt,
	}
	e.InvokeHook(ctx)

	err := evt.Handler().Handle(evt)

	ctx.Pos = HookPosAfterEvent
	ctx.Detail = err
	e.InvokeHook(ctx)

	if err != nil {
		return fmt.Errorf("handling %T at %.10f: %w", evt, evt.Time(), err)
	}

	return nil
}

// Pending returns the number of queued events.
func (e *SerialEngine) Pending() int {
	return e.queue.Len()
}

// Pause waits for the current event to finish and keeps the engine from
// handling the next one. Pausing a paused engine does nothing.
func (e *SerialEngine) Pause() {
	e.pauseMu.Lock()
	defer e.pauseMu.Unlock()

	if !e.paused {
		e.step.Lock()
		e.paused = true
	}
}

// Continue resumes a paused engine.
func (e *SerialEngine) Continue() {
	e.pauseMu.Lock()
	defer e.pauseMu.Unlock()

	if e.paused {
		e.paused = false
		e.step.Unlock()
	}
}

// IsPaused tells if the engine is paused.
func (e *SerialEngine) IsPaused() bool {
	e.pauseMu.Lock()
	defer e.pauseMu.Unlock()

	return e.paused
}

// RegisterSimulationEndHandler adds a handler that Finished calls.
func (e *SerialEngine) RegisterSimulationEndHandler(h SimulationEndHandler) {
	e.endHandlers = append(e.endHandlers, h)
}

// Finished tells the end handlers that the run is over.
func (e *SerialEngine) Finished() {
	now := e.CurrentTime()
	for _, h := range e.endHandlers {
		h.Handle(now)
	}
}
