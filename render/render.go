// Package render turns a loaded document into an ordered sequence of page
// buffers for one render generation, discarding work the moment the
// generation goes stale.
package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wudi/viewkit/loader"
	"github.com/wudi/viewkit/observability"
	"github.com/wudi/viewkit/raster"
)

// ErrNoPages reports a full pass that produced zero successful pages.
// The caller treats it like a load failure and falls back.
var ErrNoPages = errors.New("render: no pages produced")

// Request describes one render generation.
type Request struct {
	Scale      float64
	Rotation   raster.Rotation
	Generation uint64
}

type Pipeline struct {
	policy  FailurePolicy
	logger  observability.Logger
	metrics observability.Metrics
}

type PipelineBuilder struct {
	policy  FailurePolicy
	logger  observability.Logger
	metrics observability.Metrics
}

func (b *PipelineBuilder) WithFailurePolicy(p FailurePolicy) *PipelineBuilder {
	b.policy = p
	return b
}

func (b *PipelineBuilder) WithLogger(l observability.Logger) *PipelineBuilder {
	b.logger = l
	return b
}

func (b *PipelineBuilder) WithMetrics(m observability.Metrics) *PipelineBuilder {
	b.metrics = m
	return b
}

func (b *PipelineBuilder) Build() *Pipeline {
	p := &Pipeline{policy: b.policy, logger: b.logger, metrics: b.metrics}
	if p.policy == nil {
		p.policy = SkipPolicy{}
	}
	if p.logger == nil {
		p.logger = observability.NopLogger{}
	}
	if p.metrics == nil {
		p.metrics = observability.NopMetrics{}
	}
	return p
}

// Run rasterizes pages 1..PageCount sequentially for req.Generation,
// emitting one Outcome per step. latest reports the session's current
// generation; Run checks it after each page and stops as soon as the
// request is stale, so no cross-generation output ever escapes. A page
// failure leaves a hole at its index, it is never renumbered.
//
// Run returns ErrNoPages when a full pass over a non-empty document
// produced nothing, and nil otherwise. A stale stop is a normal return.
func (p *Pipeline) Run(ctx context.Context, doc loader.Document, req Request, latest func() uint64, emit func(Outcome)) error {
	if doc == nil {
		return errors.New("render: nil document")
	}
	total := doc.PageCount()
	produced := 0
	for index := 1; index <= total; index++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if latest() != req.Generation {
			emit(Outcome{Kind: Stale, PageIndex: index})
			return nil
		}

		start := time.Now()
		img, err := doc.Rasterize(ctx, index, req.Scale, req.Rotation)
		p.metrics.ObserveDuration(observability.MetricRasterTime, time.Since(start))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			loc := PageLocation{PageIndex: index, Generation: req.Generation}
			if p.policy.OnPageError(err, loc) == ActionAbort {
				return fmt.Errorf("render page %d: %w", index, err)
			}
			p.logger.Warn("page skipped",
				observability.Int("page", index),
				observability.Uint64("generation", req.Generation),
				observability.Error("error", err))
			p.metrics.IncCounter(observability.MetricPagesSkipped)
			emit(Outcome{Kind: Failed, PageIndex: index, Err: err})
			continue
		}

		// Rasterization is an atomic unit of work; staleness is only
		// re-checked here, before the buffer is handed over.
		if latest() != req.Generation {
			emit(Outcome{Kind: Stale, PageIndex: index})
			return nil
		}
		buf := &PageBuffer{
			PageIndex:  index,
			Image:      img,
			Generation: req.Generation,
			Digest:     digestImage(img),
		}
		p.metrics.IncCounter(observability.MetricPagesRendered)
		emit(Outcome{Kind: Produced, PageIndex: index, Buffer: buf})
		produced++
	}
	if total > 0 && produced == 0 {
		return ErrNoPages
	}
	return nil
}
