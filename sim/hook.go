package sim

// HookPos names a point at which hooks run.
type HookPos struct {
	Name string
}

func (p *HookPos) String() string {
	return p.Name
}

// Positions at which the engine runs its hooks.
var (
	HookPosBeforeEvent = &HookPos{Name: "BeforeEvent"}
	HookPosAfterEvent  = &HookPos{Name: "AfterEvent"}
)

// HookCtx describes the site that runs a hook.
type HookCtx struct {
	Domain Hookable
	Now    VTime
	Pos    *HookPos

	// Item is what the hook is about, an event or a channel.
	Item any

	// Detail depends on Pos. After an event it is the handler error.
	Detail any
}

// A Hook observes a Hookable.
type Hook interface {
	Func(ctx HookCtx)
}

// HookFunc turns a function into a Hook.
type HookFunc func(ctx HookCtx)

// Func calls f(ctx).
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// Hookable is implemented by everything hooks can be attached to.
type Hookable interface {
	AcceptHook(hook Hook)
	NumHooks() int
}

// HookableBase keeps hooks and runs them in the order they were accepted. The
// zero value is ready to use.
type HookableBase struct {
	hooks []Hook
}

// AcceptHook attaches a hook.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.hooks = append(h.hooks, hook)
}

// NumHooks returns the number of attached hooks.
func (h *HookableBase) NumHooks() int {
	return len(h.hooks)
}

// InvokeHook runs every hook with ctx.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hooks {
		hook.Func(ctx)
	}
}
