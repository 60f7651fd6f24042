package render

// FailurePolicy decides how the pipeline reacts when a single page fails
// to rasterize.
type FailurePolicy interface {
	OnPageError(err error, loc PageLocation) Action
}

// PageLocation identifies the failing unit of work.
type PageLocation struct {
	PageIndex  int
	Generation uint64
}

type Action int

const (
	// ActionSkip leaves a hole at the failing index and continues.
	ActionSkip Action = iota
	// ActionAbort stops the pipeline and surfaces the error.
	ActionAbort
)

// SkipPolicy skips every failing page. This is the default: a single bad
// page degrades the document, it does not sink it.
type SkipPolicy struct{}

func (SkipPolicy) OnPageError(error, PageLocation) Action { return ActionSkip }

// AbortPolicy fails the whole render on the first bad page.
type AbortPolicy struct{}

func (AbortPolicy) OnPageError(error, PageLocation) Action { return ActionAbort }
