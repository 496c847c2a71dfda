package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// DispatcherConfig controls asynchronous event writes
type DispatcherConfig struct {
	BufferSize int
	// DropIfFull discards events instead of blocking the caller when the
	// buffer is full.
	DropIfFull bool
}

type dispatcher struct {
	cfg       DispatcherConfig
	write     func(Event)
	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func newDispatcher(cfg DispatcherConfig, write func(Event)) *dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	d := &dispatcher{
		cfg:   cfg,
		write: write,
		ch:    make(chan Event, cfg.BufferSize),
		done:  make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case event := <-d.ch:
			d.write(event)
		case <-d.done:
			// Drain what was queued before Close
			for {
				select {
				case event := <-d.ch:
					d.write(event)
				default:
					return
				}
			}
		}
	}
}

func (d *dispatcher) emit(ctx context.Context, event Event) {
	if d.closed.Load() {
		d.dropped.Add(1)
		return
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		case <-d.done:
			d.dropped.Add(1)
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.done:
		d.dropped.Add(1)
	}
}

func (d *dispatcher) close() {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}
