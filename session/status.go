package session

// Status is the single presentation-facing state field. UIs switch on it;
// there are no side-channel booleans.
type Status int

const (
	StatusInit Status = iota
	StatusLoading
	StatusRendering
	StatusReady
	StatusFallback
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusInit:
		return "INIT"
	case StatusLoading:
		return "LOADING"
	case StatusRendering:
		return "RENDERING"
	case StatusReady:
		return "READY"
	case StatusFallback:
		return "FALLBACK"
	case StatusClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}
