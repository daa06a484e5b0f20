package connectivity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/angelmondragon/packfinderz-pos/pkg/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type manualTicker struct {
	c       chan time.Time
	stopped atomic.Bool
}

func (t *manualTicker) C() <-chan time.Time { return t.c }

func (t *manualTicker) Stop() { t.stopped.Store(true) }

type manualClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
	created chan *manualTicker
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), created: make(chan *manualTicker, 4)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) NewTicker(time.Duration) Ticker {
	t := &manualTicker{c: make(chan time.Time)}
	c.mu.Lock()
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()
	c.created <- t
	return t
}

func (c *manualClock) waitTicker(t *testing.T) *manualTicker {
	t.Helper()
	select {
	case tk := <-c.created:
		return tk
	case <-time.After(time.Second):
		t.Fatal("ticker was never created")
		return nil
	}
}

// tick delivers one tick and blocks until the loop received it.
func (tk *manualTicker) tick(t *testing.T) {
	t.Helper()
	select {
	case tk.c <- time.Now():
	case <-time.After(time.Second):
		t.Fatal("tick not consumed")
	}
}

type counter struct {
	n     atomic.Int32
	fired chan struct{}
}

func newCounter() *counter { return &counter{fired: make(chan struct{}, 16)} }

func (c *counter) trigger(context.Context) {
	c.n.Add(1)
	c.fired <- struct{}{}
}

func (c *counter) wait(t *testing.T, want int32) {
	t.Helper()
	deadline := time.After(time.Second)
	for c.n.Load() < want {
		select {
		case <-c.fired:
		case <-deadline:
			t.Fatalf("expected %d triggers, got %d", want, c.n.Load())
		}
	}
}

// quiet asserts no further trigger arrives shortly.
func (c *counter) quiet(t *testing.T, want int32) {
	t.Helper()
	time.Sleep(20 * time.Millisecond)
	if got := c.n.Load(); got != want {
		t.Fatalf("expected %d triggers, got %d", want, got)
	}
}

type running struct {
	cancel context.CancelFunc
	done   chan error
	once   sync.Once
}

func startMonitor(t *testing.T, m *Monitor) *running {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	r := &running{cancel: cancel, done: make(chan error, 1)}
	go func() { r.done <- m.Run(ctx) }()
	t.Cleanup(r.stop)
	return r
}

func (r *running) stop() {
	r.once.Do(func() {
		r.cancel()
		<-r.done
	})
}

func newTestMonitor(t *testing.T, obs NetworkObserver, clock Clock, c *counter) *Monitor {
	t.Helper()
	m, err := NewMonitor(MonitorParams{Observer: obs, Clock: clock, Trigger: c.trigger, Logger: logger.Nop()})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	return m
}

func TestNewMonitorValidatesParams(t *testing.T) {
	if _, err := NewMonitor(MonitorParams{Trigger: func(context.Context) {}, Logger: logger.Nop()}); err == nil {
		t.Fatal("expected observer error")
	}
	if _, err := NewMonitor(MonitorParams{Observer: NewManualObserver(false), Logger: logger.Nop()}); err == nil {
		t.Fatal("expected trigger error")
	}
	if _, err := NewMonitor(MonitorParams{Observer: NewManualObserver(false), Trigger: func(context.Context) {}}); err == nil {
		t.Fatal("expected logger error")
	}
}

func TestMonitorTriggersOnReconnect(t *testing.T) {
	obs := NewManualObserver(false)
	clock := newManualClock()
	c := newCounter()
	m := newTestMonitor(t, obs, clock, c)

	var events []Event
	var mu sync.Mutex
	m.Subscribe(func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	startMonitor(t, m)
	clock.waitTicker(t)
	c.quiet(t, 0)

	obs.SetOnline(true)
	c.wait(t, 1)
	if !m.Online() {
		t.Fatal("expected monitor online")
	}

	// repeated identical state is not a transition
	obs.SetOnline(true)
	c.quiet(t, 1)

	obs.SetOnline(false)
	obs.SetOnline(true)
	c.wait(t, 2)

	mu.Lock()
	defer mu.Unlock()
	want := []Event{EventBecameOnline, EventBecameOffline, EventBecameOnline}
	if len(events) != len(want) {
		t.Fatalf("expected events %v, got %v", want, events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, events)
		}
	}
}

func TestMonitorTicksOnlyWhileOnline(t *testing.T) {
	obs := NewManualObserver(false)
	clock := newManualClock()
	c := newCounter()
	m := newTestMonitor(t, obs, clock, c)

	startMonitor(t, m)
	tk := clock.waitTicker(t)

	tk.tick(t)
	tk.tick(t)
	c.quiet(t, 0)

	obs.SetOnline(true)
	c.wait(t, 1)
	tk.tick(t)
	c.wait(t, 2)
	tk.tick(t)
	c.wait(t, 3)

	obs.SetOnline(false)
	tk.tick(t)
	c.quiet(t, 3)
	if m.Online() {
		t.Fatal("expected monitor offline")
	}
}

func TestMonitorSyncsOnceWhenStartingOnline(t *testing.T) {
	obs := NewManualObserver(true)
	clock := newManualClock()
	c := newCounter()
	m := newTestMonitor(t, obs, clock, c)

	var events atomic.Int32
	m.Subscribe(func(Event) { events.Add(1) })

	startMonitor(t, m)
	clock.waitTicker(t)
	c.wait(t, 1)
	c.quiet(t, 1)
	if events.Load() != 0 {
		t.Fatal("starting state must not publish an event")
	}
}

func TestMonitorDoesNotBlockOnSlowTrigger(t *testing.T) {
	obs := NewManualObserver(false)
	clock := newManualClock()
	release := make(chan struct{})
	var started atomic.Int32
	m, err := NewMonitor(MonitorParams{
		Observer: obs,
		Clock:    clock,
		Logger:   logger.Nop(),
		Trigger: func(context.Context) {
			started.Add(1)
			<-release
		},
	})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}

	r := startMonitor(t, m)
	tk := clock.waitTicker(t)
	obs.SetOnline(true)
	tk.tick(t)
	tk.tick(t)

	deadline := time.Now().Add(time.Second)
	for started.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if started.Load() != 3 {
		t.Fatalf("expected 3 concurrent triggers, got %d", started.Load())
	}

	close(release)
	r.stop()
	if !tk.stopped.Load() {
		t.Fatal("ticker must be stopped on exit")
	}
}

func TestMonitorRunReturnsContextError(t *testing.T) {
	m := newTestMonitor(t, NewManualObserver(false), newManualClock(), newCounter())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestManualObserverUnsubscribe(t *testing.T) {
	obs := NewManualObserver(false)
	var calls atomic.Int32
	cancel := obs.Subscribe(func(bool) { calls.Add(1) })
	obs.SetOnline(true)
	cancel()
	obs.SetOnline(false)
	if calls.Load() != 1 {
		t.Fatalf("expected 1 call, got %d", calls.Load())
	}
}

type scriptedPinger struct {
	mu   sync.Mutex
	errs []error
	hits chan struct{}
}

func (p *scriptedPinger) Ping(context.Context) error {
	p.mu.Lock()
	var err error
	if len(p.errs) > 0 {
		err = p.errs[0]
		p.errs = p.errs[1:]
	}
	p.mu.Unlock()
	p.hits <- struct{}{}
	return err
}

func TestProbeObserverPublishesChanges(t *testing.T) {
	down := errors.New("connection refused")
	pinger := &scriptedPinger{errs: []error{nil, nil, down}, hits: make(chan struct{}, 8)}
	clock := newManualClock()
	probe, err := NewProbeObserver(ProbeParams{Pinger: pinger, Clock: clock, Logger: logger.Nop()})
	if err != nil {
		t.Fatalf("new probe: %v", err)
	}

	changes := make(chan bool, 8)
	probe.Subscribe(func(online bool) { changes <- online })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- probe.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	tk := clock.waitTicker(t)
	expectChange(t, changes, true)

	tk.tick(t)
	<-pinger.hits
	<-pinger.hits
	tk.tick(t)
	expectChange(t, changes, false)
	if probe.Online() {
		t.Fatal("expected probe offline")
	}
}

func expectChange(t *testing.T, changes <-chan bool, want bool) {
	t.Helper()
	select {
	case got := <-changes:
		if got != want {
			t.Fatalf("expected online=%v, got %v", want, got)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected change to online=%v", want)
	}
}

func TestMonitorWithProbeObserver(t *testing.T) {
	pinger := &scriptedPinger{hits: make(chan struct{}, 8)}
	probeClock := newManualClock()
	probe, err := NewProbeObserver(ProbeParams{Pinger: pinger, Clock: probeClock, Logger: logger.Nop()})
	if err != nil {
		t.Fatalf("new probe: %v", err)
	}
	c := newCounter()
	monClock := newManualClock()
	m := newTestMonitor(t, probe, monClock, c)
	startMonitor(t, m)
	monClock.waitTicker(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- probe.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	probeClock.waitTicker(t)
	c.wait(t, 1)
}
