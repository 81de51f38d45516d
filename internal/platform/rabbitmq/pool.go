package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("channel pool is closed")

// Opener opens a fresh channel.
type Opener func() (Channel, error)

// ChannelPool lends AMQP channels to one user at a time. At most size
// channels are out at once; Acquire blocks for a free slot. Channels the
// broker closed are discarded on Release instead of being reused.
type ChannelPool struct {
	open   Opener
	sem    *semaphore.Weighted
	idle   chan Channel
	mu     sync.Mutex
	closed bool
	logger *slog.Logger
}

// NewChannelPool creates a pool of up to size channels.
func NewChannelPool(open Opener, size int, logger *slog.Logger) *ChannelPool {
	if size <= 0 {
		size = 1
	}
	return &ChannelPool{
		open:   open,
		sem:    semaphore.NewWeighted(int64(size)),
		idle:   make(chan Channel, size),
		logger: logger.With("component", "amqp_channel_pool"),
	}
}

// Acquire borrows a channel. Every successful Acquire must be paired with
// exactly one Release.
func (p *ChannelPool) Acquire(ctx context.Context) (Channel, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for amqp channel: %w", err)
	}

	if p.isClosed() {
		p.sem.Release(1)
		return nil, ErrPoolClosed
	}

	for {
		select {
		case ch := <-p.idle:
			if ch.IsClosed() {
				continue
			}
			return ch, nil
		default:
			ch, err := p.open()
			if err != nil {
				p.sem.Release(1)
				return nil, err
			}
			return ch, nil
		}
	}
}

// Release returns ch to the pool.
func (p *ChannelPool) Release(ch Channel) {
	defer p.sem.Release(1)

	if ch == nil || ch.IsClosed() {
		return
	}

	if p.isClosed() {
		_ = ch.Close()
		return
	}

	select {
	case p.idle <- ch:
	default:
		_ = ch.Close()
	}
}

// Close closes idle channels and refuses further Acquires. Channels still on
// loan are closed as they are released.
func (p *ChannelPool) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	var errs []error
	for {
		select {
		case ch := <-p.idle:
			if err := ch.Close(); err != nil {
				errs = append(errs, err)
			}
		default:
			return errors.Join(errs...)
		}
	}
}

func (p *ChannelPool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
