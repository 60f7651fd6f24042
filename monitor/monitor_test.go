package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/wudi/viewkit/policy"
)

type fakeHost struct {
	mu           sync.Mutex
	handlers     map[EventKind]func(Event)
	dims         Dimensions
	dimsErr      error
	topLevel     bool
	failUnsub    bool
	unsubscribed int
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		handlers: make(map[EventKind]func(Event)),
		topLevel: true,
		dims:     Dimensions{OuterWidth: 1280, OuterHeight: 800, InnerWidth: 1280, InnerHeight: 790},
	}
}

type fakeSub struct {
	h    *fakeHost
	kind EventKind
}

func (s *fakeSub) Unsubscribe() error {
	s.h.mu.Lock()
	defer s.h.mu.Unlock()
	if s.h.failUnsub {
		return errors.New("handler pinned")
	}
	delete(s.h.handlers, s.kind)
	s.h.unsubscribed++
	return nil
}

func (h *fakeHost) Subscribe(kind EventKind, fn func(Event)) (Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[kind] = fn
	return &fakeSub{h: h, kind: kind}, nil
}

func (h *fakeHost) Viewport() (Dimensions, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dims, h.dimsErr
}

func (h *fakeHost) IsTopLevel() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.topLevel
}

func (h *fakeHost) emit(ev Event) {
	h.mu.Lock()
	fn := h.handlers[ev.Kind]
	h.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

func (h *fakeHost) activeHandlers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handlers)
}

func startMonitor(t *testing.T, cfg Config) *Monitor {
	t.Helper()
	m := New(cfg)
	if err := m.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { m.Stop() })
	return m
}

// waitPhase polls in real time for an asynchronous transition.
func waitPhase(t *testing.T, m *Monitor, want Phase) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.Phase() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("phase never became %v", want)
}

func TestAlertCooldownExpiry(t *testing.T) {
	fc := clockwork.NewFakeClock()
	m := startMonitor(t, Config{Host: newFakeHost(), Clock: fc, Cooldown: 3 * time.Second})

	if m.Phase() != PhaseNormal {
		t.Fatalf("initial phase = %v", m.Phase())
	}
	m.Report(Incident{Kind: KindCopyAttempt})
	if m.Phase() != PhaseAlert {
		t.Fatalf("phase after incident = %v, want ALERT", m.Phase())
	}

	fc.Advance(2999 * time.Millisecond)
	if m.Phase() != PhaseAlert {
		t.Fatalf("phase before cooldown end must stay ALERT")
	}
	fc.Advance(time.Millisecond)
	if m.Phase() != PhaseNormal {
		t.Fatalf("phase after cooldown = %v, want NORMAL", m.Phase())
	}
}

func TestAlertReArmsWithoutStacking(t *testing.T) {
	fc := clockwork.NewFakeClock()
	m := startMonitor(t, Config{Host: newFakeHost(), Clock: fc, Cooldown: 3 * time.Second})

	m.Report(Incident{Kind: KindContextMenu})
	fc.Advance(2 * time.Second)
	m.Report(Incident{Kind: KindKeyCombo}) // re-arms to now+3s

	fc.Advance(2 * time.Second)
	if m.Phase() != PhaseAlert {
		t.Fatalf("re-armed window must still be ALERT")
	}
	fc.Advance(time.Second)
	if m.Phase() != PhaseNormal {
		t.Fatalf("re-armed window must expire exactly once")
	}
}

func TestNoticeCarriesExpiry(t *testing.T) {
	fc := clockwork.NewFakeClock()
	var notices []Notice
	m := startMonitor(t, Config{
		Host:     newFakeHost(),
		Clock:    fc,
		Cooldown: 3 * time.Second,
		Notify:   func(n Notice) { notices = append(notices, n) },
	})
	m.Report(Incident{Kind: KindCopyAttempt})
	if len(notices) != 1 {
		t.Fatalf("notices = %d, want 1", len(notices))
	}
	if want := fc.Now().Add(3 * time.Second); !notices[0].Until.Equal(want) {
		t.Fatalf("notice until = %v, want %v", notices[0].Until, want)
	}
	if notices[0].Message == "" {
		t.Fatalf("notice needs a user-facing message")
	}
}

func TestVisibilityLostIsImmediate(t *testing.T) {
	fc := clockwork.NewFakeClock()
	host := newFakeHost()
	m := startMonitor(t, Config{Host: host, Clock: fc})

	host.emit(Event{Kind: EventVisibilityChange, Hidden: false})
	if m.Phase() != PhaseNormal {
		t.Fatalf("becoming visible is not an incident")
	}
	host.emit(Event{Kind: EventVisibilityChange, Hidden: true})
	if m.Phase() != PhaseAlert {
		t.Fatalf("visibility loss must raise ALERT synchronously")
	}
}

func TestProhibitedActionsRaise(t *testing.T) {
	for _, kind := range []EventKind{EventContextMenu, EventCopy, EventDragStart, EventSelectionStart} {
		fc := clockwork.NewFakeClock()
		host := newFakeHost()
		m := startMonitor(t, Config{Host: host, Clock: fc})
		prevented := false
		host.emit(Event{Kind: kind, PreventDefault: func() { prevented = true }})
		if m.Phase() != PhaseAlert {
			t.Fatalf("%v must raise ALERT", kind)
		}
		if !prevented {
			t.Fatalf("%v default action must be suppressed", kind)
		}
		m.Stop()
	}
}

func TestKeyComboBlockedUnconditionally(t *testing.T) {
	fc := clockwork.NewFakeClock()
	host := newFakeHost()
	// Policy suppresses alerts entirely; prevention must still happen.
	quiet, err := policy.NewScriptPolicy(`function decide(i) { return {raise: false}; }`)
	if err != nil {
		t.Fatalf("script policy: %v", err)
	}
	m := startMonitor(t, Config{Host: host, Clock: fc, Policy: quiet})

	prevented := false
	host.emit(Event{
		Kind:           EventKeyDown,
		Key:            Combo{Key: "p", Ctrl: true},
		PreventDefault: func() { prevented = true },
	})
	if !prevented {
		t.Fatalf("print shortcut must be prevented regardless of policy")
	}
	if m.Phase() != PhaseNormal {
		t.Fatalf("suppressing policy must keep phase NORMAL")
	}

	prevented = false
	host.emit(Event{
		Kind:           EventKeyDown,
		Key:            Combo{Key: "n", Ctrl: true},
		PreventDefault: func() { prevented = true },
	})
	if prevented {
		t.Fatalf("unlisted combination must pass through")
	}
}

func TestBlockedCombos(t *testing.T) {
	cases := []struct {
		combo Combo
		want  bool
	}{
		{Combo{Key: "s", Ctrl: true}, true},
		{Combo{Key: "P", Meta: true}, true},
		{Combo{Key: "u", Ctrl: true}, true},
		{Combo{Key: "F12"}, true},
		{Combo{Key: "i", Ctrl: true, Shift: true}, true},
		{Combo{Key: "x", Meta: true, Shift: true}, true},
		{Combo{Key: "tab", Alt: true}, true},
		{Combo{Key: "c", Ctrl: true}, false},
		{Combo{Key: "n", Ctrl: true}, false},
		{Combo{Key: "a"}, false},
	}
	for _, c := range cases {
		if got := Blocked(c.combo); got != c.want {
			t.Fatalf("Blocked(%v) = %v, want %v", c.combo, got, c.want)
		}
	}
}

func TestDimensionAnomalyPoll(t *testing.T) {
	fc := clockwork.NewFakeClock()
	host := newFakeHost()
	m := startMonitor(t, Config{
		Host:         host,
		Clock:        fc,
		PollInterval: time.Second,
		Cooldown:     3 * time.Second,
	})

	fc.BlockUntil(1) // ticker armed
	host.mu.Lock()
	host.dims = Dimensions{OuterWidth: 1280, OuterHeight: 800, InnerWidth: 1280, InnerHeight: 400}
	host.mu.Unlock()
	fc.Advance(time.Second)
	waitPhase(t, m, PhaseAlert)
}

func TestForeignEmbedPoll(t *testing.T) {
	fc := clockwork.NewFakeClock()
	host := newFakeHost()
	host.topLevel = false
	m := startMonitor(t, Config{Host: host, Clock: fc, PollInterval: time.Second})

	fc.BlockUntil(1)
	fc.Advance(time.Second)
	waitPhase(t, m, PhaseAlert)
}

func TestNormalDimensionsDoNotRaise(t *testing.T) {
	fc := clockwork.NewFakeClock()
	host := newFakeHost()
	m := startMonitor(t, Config{Host: host, Clock: fc, PollInterval: time.Second})

	fc.BlockUntil(1)
	fc.Advance(time.Second)
	time.Sleep(20 * time.Millisecond)
	if m.Phase() != PhaseNormal {
		t.Fatalf("ordinary chrome gap must not raise")
	}
}

func TestTeardownCompleteness(t *testing.T) {
	fc := clockwork.NewFakeClock()
	host := newFakeHost()
	m := New(Config{Host: host, Clock: fc})
	if err := m.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if m.ActiveSubscriptions() != 6 || m.ActiveTimers() != 1 {
		t.Fatalf("running monitor: subs=%d timers=%d", m.ActiveSubscriptions(), m.ActiveTimers())
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if m.ActiveSubscriptions() != 0 || m.ActiveTimers() != 0 {
		t.Fatalf("after stop: subs=%d timers=%d, want 0/0",
			m.ActiveSubscriptions(), m.ActiveTimers())
	}
	if host.activeHandlers() != 0 {
		t.Fatalf("host still holds %d handlers", host.activeHandlers())
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestTeardownErrorSurfaced(t *testing.T) {
	fc := clockwork.NewFakeClock()
	host := newFakeHost()
	host.failUnsub = true
	m := New(Config{Host: host, Clock: fc})
	if err := m.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	err := m.Stop()
	var te *TeardownError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want TeardownError", err)
	}
	if len(te.Failures) != 6 {
		t.Fatalf("failures = %d, want 6", len(te.Failures))
	}
	if m.ActiveTimers() != 0 {
		t.Fatalf("timers must stop even when unsubscribe fails")
	}
}

func TestStartTwice(t *testing.T) {
	m := startMonitor(t, Config{Host: newFakeHost(), Clock: clockwork.NewFakeClock()})
	if err := m.Start(); err == nil {
		t.Fatalf("second start must fail")
	}
}

func TestPolicyErrorStillRaises(t *testing.T) {
	fc := clockwork.NewFakeClock()
	m := startMonitor(t, Config{Host: newFakeHost(), Clock: fc, Policy: failingPolicy{}})
	m.Report(Incident{Kind: KindCopyAttempt})
	if m.Phase() != PhaseAlert {
		t.Fatalf("policy failure must not mute the deterrent")
	}
}

type failingPolicy struct{}

func (failingPolicy) Decide(context.Context, policy.Input) (policy.Decision, error) {
	return policy.Decision{}, errors.New("rule store offline")
}
