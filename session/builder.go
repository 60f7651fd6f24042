package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/wudi/viewkit/loader"
	"github.com/wudi/viewkit/monitor"
	"github.com/wudi/viewkit/observability"
	"github.com/wudi/viewkit/policy"
	"github.com/wudi/viewkit/raster"
	"github.com/wudi/viewkit/render"
)

// Builder assembles a Session with its collaborators. SourceRef and
// ViewerID are required; everything else has working defaults.
type Builder struct {
	sourceRef     string
	viewerID      string
	title         string
	scale         float64
	rotation      raster.Rotation
	ldr           loader.Loader
	host          monitor.Host
	pol           policy.Policy
	notify        func(monitor.Notice)
	cooldown      time.Duration
	pollInterval  time.Duration
	failurePolicy render.FailurePolicy
	clock         clockwork.Clock
	logger        observability.Logger
	metrics       observability.Metrics
}

func NewBuilder() *Builder { return &Builder{scale: 1.0} }

func (b *Builder) WithSourceRef(ref string) *Builder { b.sourceRef = ref; return b }
func (b *Builder) WithViewer(id string) *Builder     { b.viewerID = id; return b }
func (b *Builder) WithTitle(title string) *Builder   { b.title = title; return b }

func (b *Builder) WithScale(scale float64) *Builder {
	b.scale = scale
	return b
}

func (b *Builder) WithRotation(rot raster.Rotation) *Builder {
	b.rotation = rot
	return b
}

func (b *Builder) WithLoader(l loader.Loader) *Builder {
	b.ldr = l
	return b
}

func (b *Builder) WithHost(h monitor.Host) *Builder {
	b.host = h
	return b
}

func (b *Builder) WithPolicy(p policy.Policy) *Builder {
	b.pol = p
	return b
}

func (b *Builder) WithNotify(fn func(monitor.Notice)) *Builder {
	b.notify = fn
	return b
}

func (b *Builder) WithCooldown(d time.Duration) *Builder {
	b.cooldown = d
	return b
}

func (b *Builder) WithPollInterval(d time.Duration) *Builder {
	b.pollInterval = d
	return b
}

func (b *Builder) WithFailurePolicy(p render.FailurePolicy) *Builder {
	b.failurePolicy = p
	return b
}

func (b *Builder) WithClock(c clockwork.Clock) *Builder {
	b.clock = c
	return b
}

func (b *Builder) WithLogger(l observability.Logger) *Builder {
	b.logger = l
	return b
}

func (b *Builder) WithMetrics(m observability.Metrics) *Builder {
	b.metrics = m
	return b
}

func (b *Builder) Build() (*Session, error) {
	if b.sourceRef == "" {
		return nil, errors.New("session: source reference required")
	}
	if b.viewerID == "" {
		return nil, errors.New("session: viewer identity required")
	}
	if b.scale <= 0 {
		return nil, errors.New("session: scale must be positive")
	}
	if _, err := raster.ParseRotation(int(b.rotation)); err != nil {
		return nil, err
	}

	clock := b.clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := b.logger
	if logger == nil {
		logger = observability.NopLogger{}
	}
	metrics := b.metrics
	if metrics == nil {
		metrics = observability.NopMetrics{}
	}

	ldr := b.ldr
	if ldr == nil {
		var err error
		ldr, err = (&loader.LoaderBuilder{}).
			WithLogger(logger).
			WithMetrics(metrics).
			Build()
		if err != nil {
			return nil, err
		}
	}

	pipe := (&render.PipelineBuilder{}).
		WithFailurePolicy(b.failurePolicy).
		WithLogger(logger).
		WithMetrics(metrics).
		Build()

	mon := monitor.New(monitor.Config{
		Host:         b.host,
		Clock:        clock,
		Cooldown:     b.cooldown,
		PollInterval: b.pollInterval,
		Policy:       b.pol,
		Notify:       b.notify,
		Logger:       logger,
		Metrics:      metrics,
	})

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:        id,
		sourceRef: b.sourceRef,
		viewerID:  b.viewerID,
		title:     b.title,
		scale:     b.scale,
		rotation:  b.rotation,
		ldr:       ldr,
		pipe:      pipe,
		mon:       mon,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
		renderCtx: ctx,
		cancel:    cancel,
		status:    StatusInit,
	}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}
