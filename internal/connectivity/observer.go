package connectivity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/angelmondragon/packfinderz-pos/pkg/logger"
)

const (
	defaultProbeInterval = 15 * time.Second
	defaultProbeTimeout  = 5 * time.Second
)

// NetworkObserver reports the host's view of network reachability.
type NetworkObserver interface {
	Online() bool
	// Subscribe registers fn for state changes. Calling cancel stops delivery.
	Subscribe(fn func(online bool)) (cancel func())
}

// ManualObserver holds a state set by the host, such as a UI shell forwarding
// browser online/offline events.
type ManualObserver struct {
	mu     sync.Mutex
	online bool
	nextID int
	subs   map[int]func(bool)
}

func NewManualObserver(initial bool) *ManualObserver {
	return &ManualObserver{online: initial, subs: make(map[int]func(bool))}
}

func (o *ManualObserver) Online() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.online
}

func (o *ManualObserver) Subscribe(fn func(bool)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextID
	o.nextID++
	o.subs[id] = fn
	return func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
}

// SetOnline records the state and notifies subscribers when it changed.
func (o *ManualObserver) SetOnline(online bool) {
	o.mu.Lock()
	if o.online == online {
		o.mu.Unlock()
		return
	}
	o.online = online
	subs := make([]func(bool), 0, len(o.subs))
	for _, fn := range o.subs {
		subs = append(subs, fn)
	}
	o.mu.Unlock()

	for _, fn := range subs {
		fn(online)
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

type ProbeParams struct {
	Pinger   pinger
	Clock    Clock
	Interval time.Duration
	Timeout  time.Duration
	Logger   *logger.Logger
}

// ProbeObserver derives reachability from periodic health checks against the server.
type ProbeObserver struct {
	state    *ManualObserver
	pinger   pinger
	clock    Clock
	interval time.Duration
	timeout  time.Duration
	logg     *logger.Logger
}

func NewProbeObserver(params ProbeParams) (*ProbeObserver, error) {
	if params.Pinger == nil {
		return nil, errors.New("pinger is required")
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
		interval = defaultProbeInterval
	}
	timeout := params.Timeout
	if timeout <= 0 || timeout > interval {
		timeout = min(defaultProbeTimeout, interval)
	}
	return &ProbeObserver{
		state:    NewManualObserver(false),
		pinger:   params.Pinger,
		clock:    clock,
		interval: interval,
		timeout:  timeout,
		logg:     params.Logger,
	}, nil
}

func (p *ProbeObserver) Online() bool { return p.state.Online() }

func (p *ProbeObserver) Subscribe(fn func(bool)) func() { return p.state.Subscribe(fn) }

// Run probes immediately and then on every interval until ctx is done.
func (p *ProbeObserver) Run(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			p.probe(ctx)
		}
	}
}

func (p *ProbeObserver) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	err := p.pinger.Ping(probeCtx)
	cancel()
	if ctx.Err() != nil {
		return
	}
	if err != nil && p.state.Online() {
		p.logg.Warn(p.logg.WithField(ctx, "error", err.Error()), "server probe failed")
	}
	p.state.SetOnline(err == nil)
}
