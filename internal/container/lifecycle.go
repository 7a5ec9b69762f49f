package container

// State is the lifecycle state of a Context.
type State int

const (
	// StateNew is a context that has never been started.
	StateNew State = iota
	StateStarting
	StateStarted
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateStarting:
		return "starting"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// LifecycleEvent names a lifecycle transition of a Context.
type LifecycleEvent string

const (
	EventBeforeStart LifecycleEvent = "before_start"
	EventAfterStart  LifecycleEvent = "after_start"
	EventBeforeStop  LifecycleEvent = "before_stop"
	EventAfterStop   LifecycleEvent = "after_stop"
)

// LifecycleListener is notified of Context lifecycle transitions.
// Listeners run without the context lock held and may add children.
type LifecycleListener interface {
	LifecycleEvent(ctx *Context, event LifecycleEvent)
}

// LifecycleListenerFunc adapts a function to LifecycleListener.
type LifecycleListenerFunc func(ctx *Context, event LifecycleEvent)

func (f LifecycleListenerFunc) LifecycleEvent(ctx *Context, event LifecycleEvent) {
	f(ctx, event)
}
