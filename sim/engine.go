package sim

// TimeTeller reports the current simulated time.
type TimeTeller interface {
	CurrentTime() VTime
}

// EventScheduler accepts future events.
type EventScheduler interface {
	Schedule(e Event)
}

// A SimulationEndHandler is told when the run is over.
type SimulationEndHandler interface {
	Handle(now VTime)
}

// An Engine runs events in time order.
type Engine interface {
	Hookable
	TimeTeller
	EventScheduler

	// Run handles events until none is left.
	Run() error

	// RunUntil handles the events not later than end and leaves the others
	// queued.
	RunUntil(end VTime) error

	// Pause blocks the engine after the event it is handling. Continue
	// releases it.
	Pause()
	Continue()

	RegisterSimulationEndHandler(h SimulationEndHandler)

	// Finished notifies the end handlers.
	Finished()
}
