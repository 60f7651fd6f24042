// Package session orchestrates one protected viewing instance: it wires
// the document loader into the render pipeline, supervises the security
// monitor's lifecycle, and owns all session state behind a single lock.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/wudi/viewkit/loader"
	"github.com/wudi/viewkit/monitor"
	"github.com/wudi/viewkit/observability"
	"github.com/wudi/viewkit/raster"
	"github.com/wudi/viewkit/render"
	"github.com/wudi/viewkit/watermark"
)

var ErrClosed = errors.New("session: closed")

// Session is a single end-to-end viewing instance from load to close.
// All mutation goes through its methods; the page-buffer arena is owned
// here exclusively and the pipeline only appends into it.
type Session struct {
	id        string
	sourceRef string
	viewerID  string
	title     string

	ldr     loader.Loader
	pipe    *render.Pipeline
	mon     *monitor.Monitor
	clock   clockwork.Clock
	logger  observability.Logger
	metrics observability.Metrics

	renderCtx context.Context
	cancel    context.CancelFunc

	mu            sync.Mutex
	cond          *sync.Cond
	status        Status
	scale         float64
	rotation      raster.Rotation
	generation    uint64
	buffers       []render.PageBuffer
	doc           loader.Document
	wm            watermark.Watermark
	fallback      bool
	closed        bool
	activeRenders int
}

// Snapshot is the read model handed to hosting UIs, so they never touch
// the buffer arena directly.
type Snapshot struct {
	ID          string
	Title       string
	Status      Status
	Scale       float64
	Rotation    raster.Rotation
	Generation  uint64
	PageIndexes []int
	Watermark   watermark.Watermark
	FallbackRef string
}

func (s *Session) ID() string                { return s.id }
func (s *Session) SourceRef() string         { return s.sourceRef }
func (s *Session) ViewerID() string          { return s.viewerID }
func (s *Session) Title() string             { return s.title }
func (s *Session) Monitor() *monitor.Monitor { return s.mon }

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) Scale() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scale
}

func (s *Session) Rotation() raster.Rotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rotation
}

func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *Session) Watermark() watermark.Watermark {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wm
}

// Pages returns the current generation's buffers in ascending page order.
func (s *Session) Pages() []render.PageBuffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]render.PageBuffer, len(s.buffers))
	copy(out, s.buffers)
	return out
}

// FallbackRef returns the reference the presentation layer should embed
// externally while in FALLBACK, empty otherwise.
func (s *Session) FallbackRef() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fallback {
		return s.sourceRef
	}
	return ""
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:         s.id,
		Title:      s.title,
		Status:     s.status,
		Scale:      s.scale,
		Rotation:   s.rotation,
		Generation: s.generation,
		Watermark:  s.wm,
	}
	for _, b := range s.buffers {
		snap.PageIndexes = append(snap.PageIndexes, b.PageIndex)
	}
	if s.fallback {
		snap.FallbackRef = s.sourceRef
	}
	return snap
}

// Open starts the monitor, loads the document and begins the first render
// generation. Any load failure is non-fatal: the session switches to
// FALLBACK and Open returns nil.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.status != StatusInit {
		s.mu.Unlock()
		return fmt.Errorf("session already opened (status %s)", s.status)
	}
	s.wm = watermark.Generate(s.viewerID, s.clock.Now())
	s.setStatusLocked(StatusLoading)
	s.mu.Unlock()

	s.metrics.IncCounter(observability.MetricSessionsOpen)
	if err := s.mon.Start(); err != nil {
		return fmt.Errorf("start monitor: %w", err)
	}

	doc, err := s.ldr.Load(ctx, s.sourceRef)
	if err != nil {
		s.mu.Lock()
		s.enterFallbackLocked("load failure", err)
		s.mu.Unlock()
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.doc = doc
	gen := s.mintLocked()
	s.setStatusLocked(StatusRendering)
	s.mu.Unlock()

	s.startRender(gen)
	return nil
}

// SetScale mints a new render generation at the given scale. The in-flight
// generation is discarded cooperatively; SetScale never waits for it.
func (s *Session) SetScale(scale float64) error {
	if scale <= 0 {
		return fmt.Errorf("scale %v must be positive", scale)
	}
	return s.reconfigure(func() { s.scale = scale })
}

// SetRotation mints a new render generation at the given rotation.
func (s *Session) SetRotation(rot raster.Rotation) error {
	if _, err := raster.ParseRotation(int(rot)); err != nil {
		return err
	}
	return s.reconfigure(func() { s.rotation = rot })
}

func (s *Session) reconfigure(apply func()) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	apply()
	if s.fallback || s.doc == nil {
		// Nothing to re-render; the new value applies if rendering
		// ever resumes.
		s.mu.Unlock()
		return nil
	}
	gen := s.mintLocked()
	s.setStatusLocked(StatusRendering)
	s.mu.Unlock()

	s.startRender(gen)
	return nil
}

// Close tears the session down: the in-flight generation is cancelled, the
// monitor stops, every subscription is released and the buffer arena is
// dropped. A teardown error is returned for operators but the session is
// closed regardless.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.generation++ // stale-ify any in-flight pipeline
	s.buffers = nil
	s.doc = nil
	s.setStatusLocked(StatusClosed)
	s.mu.Unlock()

	s.cancel()
	err := s.mon.Stop()
	if err != nil {
		s.logger.Error("session teardown incomplete",
			observability.String("session", s.id),
			observability.Error("error", err))
	} else {
		s.logger.Info("session closed", observability.String("session", s.id))
	}
	return err
}

// Wait blocks until no render generation is running. Hosts use it to
// observe pipeline settling; it is not required for correctness.
func (s *Session) Wait() {
	s.mu.Lock()
	for s.activeRenders > 0 {
		s.cond.Wait()
	}
	s.mu.Unlock()
}

func (s *Session) mintLocked() uint64 {
	s.generation++
	s.buffers = nil
	return s.generation
}

func (s *Session) latestGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *Session) setStatusLocked(status Status) {
	if s.status == status {
		return
	}
	s.status = status
	s.logger.Debug("session status",
		observability.String("session", s.id),
		observability.String("status", status.String()))
}

func (s *Session) enterFallbackLocked(reason string, cause error) {
	if s.fallback || s.closed {
		return
	}
	s.fallback = true
	s.generation++ // discard any in-flight pipeline
	s.buffers = nil
	s.setStatusLocked(StatusFallback)
	s.metrics.IncCounter(observability.MetricFallbacks)
	s.logger.Warn("switching to fallback transport",
		observability.String("session", s.id),
		observability.String("reason", reason),
		observability.Error("error", cause))
}

func (s *Session) startRender(gen uint64) {
	s.mu.Lock()
	if s.closed || s.fallback || s.doc == nil || gen != s.generation {
		s.mu.Unlock()
		return
	}
	doc := s.doc
	req := render.Request{Scale: s.scale, Rotation: s.rotation, Generation: gen}
	s.activeRenders++
	s.mu.Unlock()

	go func() {
		err := s.pipe.Run(s.renderCtx, doc, req, s.latestGeneration, s.consume)
		s.finishRender(gen, err)
	}()
}

func (s *Session) consume(o render.Outcome) {
	if o.Kind != render.Produced {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.fallback || o.Buffer.Generation != s.generation {
		return
	}
	s.buffers = append(s.buffers, *o.Buffer)
}

func (s *Session) finishRender(gen uint64, err error) {
	s.mu.Lock()
	s.activeRenders--
	current := !s.closed && !s.fallback && gen == s.generation
	switch {
	case err == nil && current:
		s.setStatusLocked(StatusReady)
	case errors.Is(err, render.ErrNoPages) && current:
		s.enterFallbackLocked("no pages rendered", err)
	case err != nil && !errors.Is(err, context.Canceled) && current:
		s.logger.Error("render pipeline failed",
			observability.String("session", s.id),
			observability.Uint64("generation", gen),
			observability.Error("error", err))
		s.enterFallbackLocked("pipeline failure", err)
	}
	s.cond.Broadcast()
	s.mu.Unlock()
}
