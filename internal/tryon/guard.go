package tryon

import (
	"context"
	"sync"
)

type Ticket struct {
	Seq uint64
}

type Guard struct {
	mu       sync.Mutex
	seq      uint64
	inFlight bool
	cancel   context.CancelFunc
}

func (g *Guard) Acquire(parent context.Context) (Ticket, context.Context, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.inFlight {
		return Ticket{}, nil, ErrInFlight
	}

	ctx, cancel := context.WithCancel(parent)
	g.seq++
	g.inFlight = true
	g.cancel = cancel
	return Ticket{Seq: g.seq}, ctx, nil
}

// Release ends the request and reports whether its response is still
// current. It returns false after a Reset or for an older ticket.
func (g *Guard) Release(t Ticket) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if t.Seq != g.seq {
		return false
	}
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	g.inFlight = false
	return true
}

func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	g.seq++
	g.inFlight = false
}

func (g *Guard) InFlight() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight
}
