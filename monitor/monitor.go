// Package monitor watches the host runtime for exfiltration signals and
// degrades the viewing experience for a bounded alert window. Incidents
// are cheap heuristics, not proofs; the monitor's job is a visible
// deterrent plus a log trail, never cryptographic assurance.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/wudi/viewkit/observability"
	"github.com/wudi/viewkit/policy"
)

type Phase int

const (
	PhaseNormal Phase = iota
	PhaseAlert
)

func (p Phase) String() string {
	if p == PhaseAlert {
		return "ALERT"
	}
	return "NORMAL"
}

// Kind classifies a detected incident.
type Kind int

const (
	KindContextMenu Kind = iota
	KindCopyAttempt
	KindKeyCombo
	KindVisibilityLost
	KindDimensionAnomaly
	KindForeignEmbed
)

func (k Kind) String() string {
	switch k {
	case KindContextMenu:
		return "CONTEXT_MENU"
	case KindCopyAttempt:
		return "COPY_ATTEMPT"
	case KindKeyCombo:
		return "KEY_COMBO"
	case KindVisibilityLost:
		return "VISIBILITY_LOST"
	case KindDimensionAnomaly:
		return "DIMENSION_ANOMALY"
	case KindForeignEmbed:
		return "FOREIGN_EMBED"
	}
	return "UNKNOWN"
}

// Incident is transient: it drives exactly one transition and is never
// stored beyond the alert window it arms.
type Incident struct {
	Kind       Kind
	DetectedAt time.Time
}

// Notice is the user-facing transient message emitted on alert.
type Notice struct {
	Message string
	Until   time.Time
}

// TeardownError reports subscriptions that failed to unregister on Stop.
// It indicates a resource leak and is surfaced to operators, but it does
// not keep the monitor from stopping.
type TeardownError struct {
	Failures []error
}

func (e *TeardownError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, err := range e.Failures {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("monitor teardown: %d subscription(s) leaked: %s",
		len(e.Failures), strings.Join(msgs, "; "))
}

func (e *TeardownError) Unwrap() []error { return e.Failures }

const (
	DefaultCooldown           = 3 * time.Second
	DefaultPollInterval       = 750 * time.Millisecond
	DefaultDimensionThreshold = 160
)

type Config struct {
	Host               Host
	Clock              clockwork.Clock
	Cooldown           time.Duration
	PollInterval       time.Duration
	DimensionThreshold int
	Policy             policy.Policy
	Notify             func(Notice)
	Logger             observability.Logger
	Metrics            observability.Metrics
}

// Monitor is the NORMAL/ALERT state machine. Its lifecycle is independent
// of the render pipeline: Start when the session starts, Stop exactly when
// the session closes.
type Monitor struct {
	host      Host
	clock     clockwork.Clock
	cooldown  time.Duration
	pollEvery time.Duration
	threshold int
	policy    policy.Policy
	notify    func(Notice)
	logger    observability.Logger
	metrics   observability.Metrics

	mu        sync.Mutex
	phase     Phase
	expiresAt time.Time
	subs      []subEntry
	running   bool
	stopc     chan struct{}
	done      chan struct{}
}

type subEntry struct {
	kind EventKind
	sub  Subscription
}

func New(cfg Config) *Monitor {
	m := &Monitor{
		host:      cfg.Host,
		clock:     cfg.Clock,
		cooldown:  cfg.Cooldown,
		pollEvery: cfg.PollInterval,
		threshold: cfg.DimensionThreshold,
		policy:    cfg.Policy,
		notify:    cfg.Notify,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}
	if m.host == nil {
		m.host = NopHost{}
	}
	if m.clock == nil {
		m.clock = clockwork.NewRealClock()
	}
	if m.cooldown == 0 {
		m.cooldown = DefaultCooldown
	}
	if m.pollEvery == 0 {
		m.pollEvery = DefaultPollInterval
	}
	if m.threshold == 0 {
		m.threshold = DefaultDimensionThreshold
	}
	if m.policy == nil {
		m.policy = policy.StaticPolicy{}
	}
	if m.logger == nil {
		m.logger = observability.NopLogger{}
	}
	if m.metrics == nil {
		m.metrics = observability.NopMetrics{}
	}
	return m
}

// Start registers one top-level subscription per observed event kind and
// launches the periodic dimension check. Calling Start on a running
// monitor is an error.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("monitor already started")
	}

	kinds := []EventKind{
		EventContextMenu,
		EventCopy,
		EventDragStart,
		EventSelectionStart,
		EventKeyDown,
		EventVisibilityChange,
	}
	for _, kind := range kinds {
		k := kind
		sub, err := m.host.Subscribe(k, func(ev Event) { m.handleEvent(ev) })
		if err != nil {
			m.unsubscribeLocked()
			return fmt.Errorf("subscribe %s: %w", k, err)
		}
		m.subs = append(m.subs, subEntry{kind: k, sub: sub})
	}

	m.stopc = make(chan struct{})
	m.done = make(chan struct{})
	m.running = true
	go m.pollLoop(m.stopc, m.done)
	return nil
}

// Stop tears the monitor down regardless of phase: the poll task stops and
// every incident subscription is unregistered. Stop is idempotent.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	stopc, done := m.stopc, m.done
	m.mu.Unlock()

	close(stopc)
	<-done

	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.unsubscribeLocked()
	m.phase = PhaseNormal
	m.expiresAt = time.Time{}
	if err != nil {
		m.logger.Error("monitor teardown leaked subscriptions", observability.Error("error", err))
	}
	return err
}

func (m *Monitor) unsubscribeLocked() error {
	var failures []error
	for _, e := range m.subs {
		if err := e.sub.Unsubscribe(); err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", e.kind, err))
		}
	}
	m.subs = nil
	if len(failures) > 0 {
		return &TeardownError{Failures: failures}
	}
	return nil
}

// Phase returns the current phase, folding in cooldown expiry.
func (m *Monitor) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked()
	return m.phase
}

// AlertUntil returns the alert expiry, zero when NORMAL.
func (m *Monitor) AlertUntil() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked()
	return m.expiresAt
}

func (m *Monitor) expireLocked() {
	if m.phase == PhaseAlert && !m.clock.Now().Before(m.expiresAt) {
		m.phase = PhaseNormal
		m.expiresAt = time.Time{}
		m.logger.Debug("alert expired")
	}
}

// ActiveSubscriptions returns the number of live incident subscriptions.
func (m *Monitor) ActiveSubscriptions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// ActiveTimers returns the number of live periodic tasks.
func (m *Monitor) ActiveTimers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return 1
	}
	return 0
}

// Report feeds one incident into the transition function. Every incident
// source funnels through here; it is synchronous and safe from any
// goroutine.
func (m *Monitor) Report(inc Incident) {
	if inc.DetectedAt.IsZero() {
		inc.DetectedAt = m.clock.Now()
	}
	m.metrics.IncCounter(observability.MetricIncidents, "kind", inc.Kind.String())
	m.logger.Info("security incident",
		observability.String("kind", inc.Kind.String()))

	dec, err := m.policy.Decide(context.Background(), policy.Input{
		Kind:       inc.Kind.String(),
		DetectedAt: inc.DetectedAt,
	})
	if err != nil {
		// Policy failure must not mute the deterrent.
		m.logger.Warn("incident policy failed, raising by default", observability.Error("error", err))
		dec = policy.Decision{Raise: true}
	}
	if !dec.Raise {
		return
	}
	cooldown := m.cooldown
	if dec.Cooldown > 0 {
		cooldown = dec.Cooldown
	}

	m.mu.Lock()
	m.expireLocked()
	now := m.clock.Now()
	// A repeat incident re-arms the window; there is never more than one
	// pending expiry.
	m.phase = PhaseAlert
	m.expiresAt = now.Add(cooldown)
	until := m.expiresAt
	notify := m.notify
	m.mu.Unlock()

	m.metrics.IncCounter(observability.MetricAlerts, "kind", inc.Kind.String())
	if notify != nil {
		notify(Notice{
			Message: "This action is not permitted while viewing a protected document.",
			Until:   until,
		})
	}
}

func (m *Monitor) handleEvent(ev Event) {
	switch ev.Kind {
	case EventContextMenu:
		if ev.PreventDefault != nil {
			ev.PreventDefault()
		}
		m.Report(Incident{Kind: KindContextMenu})
	case EventCopy, EventDragStart, EventSelectionStart:
		if ev.PreventDefault != nil {
			ev.PreventDefault()
		}
		m.Report(Incident{Kind: KindCopyAttempt})
	case EventKeyDown:
		if !Blocked(ev.Key) {
			return
		}
		// Prevention is unconditional; alerting is the secondary effect.
		if ev.PreventDefault != nil {
			ev.PreventDefault()
		}
		m.Report(Incident{Kind: KindKeyCombo})
	case EventVisibilityChange:
		// Never debounced: any visibility loss, however brief, counts.
		if ev.Hidden {
			m.Report(Incident{Kind: KindVisibilityLost})
		}
	}
}

func (m *Monitor) pollLoop(stopc <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := m.clock.NewTicker(m.pollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stopc:
			return
		case <-ticker.Chan():
			m.pollOnce()
		}
	}
}

func (m *Monitor) pollOnce() {
	dims, err := m.host.Viewport()
	if err != nil {
		m.logger.Debug("viewport probe failed", observability.Error("error", err))
	} else if m.anomalous(dims) {
		m.Report(Incident{Kind: KindDimensionAnomaly})
	}
	if !m.host.IsTopLevel() {
		m.Report(Incident{Kind: KindForeignEmbed})
	}
}

func (m *Monitor) anomalous(d Dimensions) bool {
	if d.OuterWidth == 0 && d.OuterHeight == 0 {
		return false
	}
	return d.OuterWidth-d.InnerWidth > m.threshold ||
		d.OuterHeight-d.InnerHeight > m.threshold
}
