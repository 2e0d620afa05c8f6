package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls the relay.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events when the buffer is full instead of blocking
	// the emitter. Critical kinds wait up to CriticalWait first.
	DropIfFull   bool
	CriticalWait time.Duration
	// RequestID reads the caller's request ID from the emitting context.
	RequestID func(context.Context) string
	// Now stamps events. time.Now when nil.
	Now func() time.Time
}

type envelope struct {
	ctx   context.Context
	event Event
}

// Relay forwards session events to a [Sink] on its own goroutine. Sinks
// receive the emitter's context with its cancellation removed, so
// request-scoped values survive the hop but a finished request does not
// abort delivery.
type Relay struct {
	cfg   Config
	sink  Sink
	queue chan envelope
	done  chan struct{}
	wg    sync.WaitGroup

	closed    atomic.Bool
	closeOnce sync.Once

	dropped atomic.Uint64
	dropMu  sync.Mutex
	drops   map[Kind]uint64
}

// NewRelay starts the relay goroutine. It returns nil when cfg is disabled;
// every method is safe on a nil Relay.
func NewRelay(cfg Config, sink Sink) *Relay {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	r := &Relay{
		cfg:   cfg,
		sink:  sink,
		queue: make(chan envelope, cfg.BufferSize),
		done:  make(chan struct{}),
		drops: make(map[Kind]uint64),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

func (r *Relay) run() {
	defer r.wg.Done()

	for {
		select {
		case env := <-r.queue:
			r.sink.Emit(env.ctx, env.event)
		case <-r.done:
			for {
				select {
				case env := <-r.queue:
					r.sink.Emit(env.ctx, env.event)
				default:
					return
				}
			}
		}
	}
}

// Emit stamps event with the time and the request ID of ctx, then queues it.
//
// With DropIfFull a full buffer drops the event, except that critical kinds
// first wait up to CriticalWait. Without it Emit blocks until the event is
// queued; an emitter whose ctx ends first loses the event. Every loss is
// counted by kind.
func (r *Relay) Emit(ctx context.Context, event Event) {
	if r == nil || r.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	r.stamp(ctx, &event)
	env := envelope{ctx: context.WithoutCancel(ctx), event: event}

	if !r.cfg.DropIfFull {
		select {
		case r.queue <- env:
		case <-r.done:
		case <-ctx.Done():
			r.drop(event.Kind)
		}
		return
	}

	select {
	case r.queue <- env:
		return
	case <-r.done:
		return
	default:
	}

	if event.Kind.Critical() && r.cfg.CriticalWait > 0 {
		timer := time.NewTimer(r.cfg.CriticalWait)
		defer timer.Stop()
		select {
		case r.queue <- env:
			return
		case <-r.done:
			return
		case <-ctx.Done():
		case <-timer.C:
		}
	}
	r.drop(event.Kind)
}

func (r *Relay) stamp(ctx context.Context, event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = r.cfg.Now().UTC()
	}
	if event.RequestID == "" && r.cfg.RequestID != nil {
		event.RequestID = r.cfg.RequestID(ctx)
	}
}

func (r *Relay) drop(kind Kind) {
	r.dropped.Add(1)
	r.dropMu.Lock()
	r.drops[kind]++
	r.dropMu.Unlock()
}

// Close stops accepting events and flushes the buffer to the sink.
func (r *Relay) Close() {
	if r == nil {
		return
	}
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.done)
		r.wg.Wait()
	})
}

// Dropped is the total number of events lost.
func (r *Relay) Dropped() uint64 {
	if r == nil {
		return 0
	}
	return r.dropped.Load()
}

// DroppedByKind copies the loss counts per event kind. Kinds that never
// dropped are absent.
func (r *Relay) DroppedByKind() map[Kind]uint64 {
	out := map[Kind]uint64{}
	if r == nil {
		return out
	}
	r.dropMu.Lock()
	defer r.dropMu.Unlock()
	for k, v := range r.drops {
		out[k] = v
	}
	return out
}
