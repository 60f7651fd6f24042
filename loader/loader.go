// Package loader fetches an opaque paged document from a source reference
// and exposes its page count and per-page rasterization capability.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/wudi/viewkit/observability"
)

// Loader resolves a source reference into a Document. A Loader is safe to
// call again after a failure; every call is an independent attempt.
type Loader interface {
	Load(ctx context.Context, sourceRef string) (Document, error)
}

type LoaderBuilder struct {
	httpClient *http.Client
	decoders   []Decoder
	limits     Limits
	logger     observability.Logger
	metrics    observability.Metrics
	tracer     observability.Tracer
}

func (b *LoaderBuilder) WithHTTPClient(c *http.Client) *LoaderBuilder {
	b.httpClient = c
	return b
}

func (b *LoaderBuilder) WithDecoder(d Decoder) *LoaderBuilder {
	b.decoders = append(b.decoders, d)
	return b
}

func (b *LoaderBuilder) WithLimits(l Limits) *LoaderBuilder {
	b.limits = l
	return b
}

func (b *LoaderBuilder) WithLogger(l observability.Logger) *LoaderBuilder {
	b.logger = l
	return b
}

func (b *LoaderBuilder) WithMetrics(m observability.Metrics) *LoaderBuilder {
	b.metrics = m
	return b
}

func (b *LoaderBuilder) WithTracer(t observability.Tracer) *LoaderBuilder {
	b.tracer = t
	return b
}

func (b *LoaderBuilder) Build() (Loader, error) {
	l := &documentLoader{
		httpClient: b.httpClient,
		decoders:   b.decoders,
		limits:     b.limits.withDefaults(),
		logger:     b.logger,
		metrics:    b.metrics,
		tracer:     b.tracer,
	}
	if l.httpClient == nil {
		l.httpClient = http.DefaultClient
	}
	if len(l.decoders) == 0 {
		l.decoders = DefaultDecoders()
	}
	if l.logger == nil {
		l.logger = observability.NopLogger{}
	}
	if l.metrics == nil {
		l.metrics = observability.NopMetrics{}
	}
	if l.tracer == nil {
		l.tracer = observability.NopTracer()
	}
	return l, nil
}

type documentLoader struct {
	httpClient *http.Client
	decoders   []Decoder
	limits     Limits
	logger     observability.Logger
	metrics    observability.Metrics
	tracer     observability.Tracer
}

func (l *documentLoader) Load(ctx context.Context, sourceRef string) (Document, error) {
	ctx, span := l.tracer.StartSpan(ctx, "loader.Load")
	defer span.Finish()
	span.SetTag("source_ref", sourceRef)

	start := time.Now()
	doc, err := l.load(ctx, sourceRef)
	l.metrics.ObserveDuration(observability.MetricLoadTime, time.Since(start))
	if err != nil {
		span.SetError(err)
		l.logger.Warn("document load failed",
			observability.String("source_ref", sourceRef),
			observability.Error("error", err))
		return nil, err
	}
	l.logger.Info("document loaded",
		observability.String("source_ref", sourceRef),
		observability.Int("pages", doc.PageCount()))
	return doc, nil
}

func (l *documentLoader) load(ctx context.Context, sourceRef string) (Document, error) {
	data, err := l.fetch(ctx, sourceRef)
	if err != nil {
		return nil, err
	}
	dec := l.sniff(data)
	if dec == nil {
		return nil, loadErr(ReasonUnsupported, sourceRef, fmt.Errorf("no decoder matched %d bytes", len(data)))
	}
	pages, err := dec.Decode(data, l.limits)
	if err != nil {
		return nil, loadErr(ReasonMalformed, sourceRef, fmt.Errorf("%s: %w", dec.Name(), err))
	}
	return &pagedDocument{pages: pages, limits: l.limits}, nil
}

func (l *documentLoader) sniff(data []byte) Decoder {
	for _, d := range l.decoders {
		if d.Match(data) {
			return d
		}
	}
	return nil
}

func (l *documentLoader) fetch(ctx context.Context, sourceRef string) ([]byte, error) {
	u, err := url.Parse(sourceRef)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return l.fetchHTTP(ctx, sourceRef)
	}
	path := sourceRef
	if err == nil && u.Scheme == "file" {
		path = u.Path
	}
	return l.fetchFile(sourceRef, path)
}

func (l *documentLoader) fetchHTTP(ctx context.Context, sourceRef string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, l.limits.FetchTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceRef, nil)
	if err != nil {
		return nil, loadErr(ReasonUnreachable, sourceRef, err)
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, loadErr(ReasonUnreachable, sourceRef, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, loadErr(ReasonBadStatus, sourceRef, fmt.Errorf("status %s", resp.Status))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, l.limits.MaxDocumentBytes+1))
	if err != nil {
		return nil, loadErr(ReasonUnreachable, sourceRef, err)
	}
	if int64(len(data)) > l.limits.MaxDocumentBytes {
		return nil, loadErr(ReasonTooLarge, sourceRef, fmt.Errorf("body exceeds %d bytes", l.limits.MaxDocumentBytes))
	}
	return data, nil
}

func (l *documentLoader) fetchFile(sourceRef, path string) ([]byte, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, loadErr(ReasonUnreachable, sourceRef, errors.New("empty path"))
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, loadErr(ReasonUnreachable, sourceRef, err)
	}
	if info.Size() > l.limits.MaxDocumentBytes {
		return nil, loadErr(ReasonTooLarge, sourceRef, fmt.Errorf("file is %d bytes", info.Size()))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, loadErr(ReasonUnreachable, sourceRef, err)
	}
	return data, nil
}
