// Package fiberpool implements the fixed-size, thread-safe pool of idle
// worker fibers described by the scheduler's fiber pool component: a
// bounded set with blocking Pop and non-blocking PushBack, sized once at
// startup and never grown.
package fiberpool

import (
	"sync"

	"github.com/taskfiber/ts/internal/fiber"
)

// Pool is a bounded set-semantics container of idle fiber handles.
type Pool struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	idle     []*fiber.Handle
	capacity int
}

// New creates a pool with the given fixed capacity and immediately
// inserts count fibers, each created with stackBytes and entry.
func New(count int, stackBytes int, entry fiber.EntryFunc) *Pool {
	p := &Pool{capacity: count}
	p.notEmpty = sync.NewCond(&p.mu)

	p.idle = make([]*fiber.Handle, 0, count)
	for i := 0; i < count; i++ {
		p.idle = append(p.idle, fiber.Create(stackBytes, entry))
	}
	return p
}

// Pop blocks until a fiber is available and returns its handle. Blocking
// is safe here: the total of running, pooled and parked fibers is fixed,
// so an empty pool means some fiber is running or parked and will
// eventually be returned.
func (p *Pool) Pop() *fiber.Handle {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.idle) == 0 {
		p.notEmpty.Wait()
	}
	n := len(p.idle) - 1
	h := p.idle[n]
	p.idle[n] = nil
	p.idle = p.idle[:n]
	return h
}

// PushBack returns h to the pool, waking one blocked Pop caller.
func (p *Pool) PushBack(h *fiber.Handle) {
	p.mu.Lock()
	p.idle = append(p.idle, h)
	p.mu.Unlock()
	p.notEmpty.Signal()
}

// Len reports the number of currently idle fibers.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// Capacity reports the configured fiber count.
func (p *Pool) Capacity() int { return p.capacity }
