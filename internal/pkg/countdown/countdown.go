package countdown

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const DefaultInterval = time.Second

type Kind string

const (
	KindTick    Kind = "tick"
	KindExpired Kind = "expired"
)

type Event struct {
	Kind      Kind
	Remaining time.Duration
	Text      string
}

// Format renders d as DD:HH:MM:SS. Negative durations render as zero and
// fractions of a second are dropped.
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", days, hours, minutes, seconds)
}

// Presenter counts down to a target time and reports progress on a channel.
// One Presenter drives one stream.
type Presenter struct {
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	target  time.Time
	started bool

	reset    chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

type Option func(*Presenter)

func WithInterval(d time.Duration) Option {
	return func(p *Presenter) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Presenter) { p.now = now }
}

func New(opts ...Option) *Presenter {
	p := &Presenter{
		interval: DefaultInterval,
		now:      time.Now,
		reset:    make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins counting down to target. The returned channel is closed when
// ctx is done or Stop is called. Ticks are dropped when the reader is behind;
// the single Expired event is always delivered. Start may only be called once.
func (p *Presenter) Start(ctx context.Context, target time.Time) <-chan Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		panic("countdown: Start called twice")
	}
	p.started = true
	p.target = target

	out := make(chan Event, 1)
	go p.run(ctx, out)
	return out
}

// Reset switches to a new target and resumes ticking, also after expiry.
func (p *Presenter) Reset(target time.Time) {
	p.mu.Lock()
	p.target = target
	p.mu.Unlock()

	select {
	case p.reset <- struct{}{}:
	default:
	}
}

// Stop ends the countdown. Calling it more than once is safe.
func (p *Presenter) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

func (p *Presenter) remaining() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target.Sub(p.now())
}

func (p *Presenter) run(ctx context.Context, out chan<- Event) {
	defer close(out)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	tick := ticker.C

	// ok is false once the stream has to end.
	emit := func() (expired bool, ok bool) {
		rem := p.remaining()
		if rem <= 0 {
			select {
			case out <- Event{Kind: KindExpired, Text: Format(0)}:
				return true, true
			case <-ctx.Done():
				return true, false
			case <-p.stop:
				return true, false
			}
		}
		select {
		case out <- Event{Kind: KindTick, Remaining: rem, Text: Format(rem)}:
		default:
		}
		return false, true
	}

	expired, ok := emit()
	if !ok {
		return
	}
	if expired {
		tick = nil
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-p.reset:
			ticker.Reset(p.interval)
			tick = ticker.C
		case <-tick:
		}

		expired, ok = emit()
		if !ok {
			return
		}
		if expired {
			tick = nil
		}
	}
}
