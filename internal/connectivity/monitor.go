package connectivity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/packfinderz-pos/pkg/logger"
	"github.com/angelmondragon/packfinderz-pos/pkg/metrics"
)

const defaultInterval = 30 * time.Second

// Event is a connectivity transition.
type Event int

const (
	EventBecameOnline Event = iota + 1
	EventBecameOffline
)

func (e Event) String() string {
	switch e {
	case EventBecameOnline:
		return "became_online"
	case EventBecameOffline:
		return "became_offline"
	default:
		return "unknown"
	}
}

type MonitorParams struct {
	Observer NetworkObserver
	Clock    Clock
	Interval time.Duration
	// Trigger starts a sync pass. It runs on its own goroutine.
	Trigger func(ctx context.Context)
	Logger  *logger.Logger
	Metrics *metrics.SyncMetrics
}

// Monitor turns observer transitions and a periodic tick into sync triggers.
// It triggers once on becoming online and on every tick while online.
type Monitor struct {
	observer NetworkObserver
	clock    Clock
	interval time.Duration
	trigger  func(ctx context.Context)
	logg     *logger.Logger
	metrics  *metrics.SyncMetrics

	online   atomic.Bool
	mu       sync.Mutex
	nextID   int
	subs     map[int]func(Event)
	inflight sync.WaitGroup
}

func NewMonitor(params MonitorParams) (*Monitor, error) {
	if params.Observer == nil {
		return nil, errors.New("network observer is required")
	}
	if params.Trigger == nil {
		return nil, errors.New("trigger is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	clock := params.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Monitor{
		observer: params.Observer,
		clock:    clock,
		interval: interval,
		trigger:  params.Trigger,
		logg:     params.Logger,
		metrics:  params.Metrics,
		subs:     make(map[int]func(Event)),
	}, nil
}

// Online is the state as of the last processed transition.
func (m *Monitor) Online() bool { return m.online.Load() }

// Subscribe registers fn for transitions. Handlers run on the monitor goroutine and must not block.
func (m *Monitor) Subscribe(fn func(Event)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Run processes transitions and ticks until ctx is done, then waits for started passes.
func (m *Monitor) Run(ctx context.Context) error {
	changes := make(chan bool)
	unsubscribe := m.observer.Subscribe(func(online bool) {
		select {
		case changes <- online:
		case <-ctx.Done():
		}
	})
	ticker := m.clock.NewTicker(m.interval)
	defer func() {
		unsubscribe()
		ticker.Stop()
		m.inflight.Wait()
	}()

	// the starting state is not a transition, but an online start still syncs once
	initial := m.observer.Online()
	m.online.Store(initial)
	m.metrics.SetOnline(initial)
	if initial {
		m.fire(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case online := <-changes:
			m.transition(ctx, online)
		case <-ticker.C():
			if m.online.Load() {
				m.logg.Debug(ctx, "periodic sync tick")
				m.fire(ctx)
			}
		}
	}
}

func (m *Monitor) transition(ctx context.Context, online bool) {
	if m.online.Swap(online) == online {
		return
	}
	m.metrics.SetOnline(online)
	event := EventBecameOffline
	if online {
		event = EventBecameOnline
	}
	m.logg.Info(m.logg.WithField(ctx, "event", event.String()), "connectivity changed")
	m.publish(event)
	if online {
		m.fire(ctx)
	}
}

func (m *Monitor) publish(event Event) {
	m.mu.Lock()
	subs := make([]func(Event), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()
	for _, fn := range subs {
		fn(event)
	}
}

func (m *Monitor) fire(ctx context.Context) {
	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		m.trigger(ctx)
	}()
}
