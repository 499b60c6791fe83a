package bridge

import (
	"context"
	"sync"
)

// Poster is the sending half of a one-directional link.
type Poster interface {
	Post(ctx context.Context, m Message) error
}

// Listener is the receiving half. The channel closes when the link does.
type Listener interface {
	Listen() <-chan Message
}

// Channel is an in-memory one-directional message link.
type Channel struct {
	mu   sync.RWMutex
	ch   chan Message
	done chan struct{}
	once sync.Once
}

func NewChannel(buffer int) *Channel {
	return &Channel{
		ch:   make(chan Message, buffer),
		done: make(chan struct{}),
	}
}

// Post delivers m, blocking while the buffer is full.
func (c *Channel) Post(ctx context.Context, m Message) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.ch <- m:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Channel) Listen() <-chan Message {
	return c.ch
}

// Close stops further posts. Receivers drain what is buffered and then
// see the channel close.
func (c *Channel) Close() {
	c.once.Do(func() {
		close(c.done)
		// Blocked senders observe done and release the read lock.
		c.mu.Lock()
		close(c.ch)
		c.mu.Unlock()
	})
}
