package sim

// VTime is a point in simulated time.
type VTime float64

// An Event happens at a given time and is handled by its Handler.
type Event interface {
	Time() VTime
	Handler() Handler

	// IsSecondary events run after every primary event of the same time.
	IsSecondary() bool
}

// A Handler handles the events scheduled for it.
type Handler interface {
	Handle(e Event) error
}

// HandlerFunc turns a function into a Handler.
type HandlerFunc func(e Event) error

// Handle calls f(e).
func (f HandlerFunc) Handle(e Event) error {
	return f(e)
}

// EventBase implements Event. Concrete events embed it.
type EventBase struct {
	ID string

	at        VTime
	handler   Handler
	secondary bool
}

// NewEventBase creates a primary event.
func NewEventBase(at VTime, h Handler) *EventBase {
	return &EventBase{ID: NextID(), at: at, handler: h}
}

// NewSecondaryEventBase creates a secondary event.
func NewSecondaryEventBase(at VTime, h Handler) *EventBase {
	e := NewEventBase(at, h)
	e.secondary = true

	return e
}

func (e *EventBase) Time() VTime {
	return e.at
}

func (e *EventBase) Handler() Handler {
	return e.handler
}

func (e *EventBase) IsSecondary() bool {
	return e.secondary
}
