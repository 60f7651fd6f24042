package monitor

// EventKind identifies one host event stream the monitor observes.
type EventKind int

const (
	EventContextMenu EventKind = iota
	EventCopy
	EventDragStart
	EventSelectionStart
	EventKeyDown
	EventVisibilityChange
)

func (k EventKind) String() string {
	switch k {
	case EventContextMenu:
		return "contextmenu"
	case EventCopy:
		return "copy"
	case EventDragStart:
		return "dragstart"
	case EventSelectionStart:
		return "selectionstart"
	case EventKeyDown:
		return "keydown"
	case EventVisibilityChange:
		return "visibilitychange"
	}
	return "unknown"
}

// Event is one occurrence on a host event stream. PreventDefault, when
// non-nil, suppresses the host's default action for the event.
type Event struct {
	Kind           EventKind
	Key            Combo // EventKeyDown only
	Hidden         bool  // EventVisibilityChange only
	PreventDefault func()
}

// Dimensions describes the host's outer and inner viewing surface sizes.
// A large outer/inner gap is the inspection-tool heuristic.
type Dimensions struct {
	OuterWidth  int
	OuterHeight int
	InnerWidth  int
	InnerHeight int
}

// Subscription is a registered event handler that can be released.
type Subscription interface {
	Unsubscribe() error
}

// Host is the runtime surface the monitor observes: a global event bus
// plus the viewport probes used by the periodic heuristic check.
type Host interface {
	// Subscribe registers a single top-level handler for one event kind.
	Subscribe(kind EventKind, fn func(Event)) (Subscription, error)

	// Viewport returns the current surface dimensions.
	Viewport() (Dimensions, error)

	// IsTopLevel reports whether the session is the top-level viewing
	// context rather than embedded in a foreign surface.
	IsTopLevel() bool
}

// NopHost emits no events and reports an untouched top-level surface.
type NopHost struct{}

type nopSubscription struct{}

func (nopSubscription) Unsubscribe() error { return nil }

func (NopHost) Subscribe(EventKind, func(Event)) (Subscription, error) {
	return nopSubscription{}, nil
}

func (NopHost) Viewport() (Dimensions, error) { return Dimensions{}, nil }

func (NopHost) IsTopLevel() bool { return true }
