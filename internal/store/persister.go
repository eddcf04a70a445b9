package store

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tradejournal/internal/models"
)

// DefaultDebounce is the trailing window over which state changes coalesce.
const DefaultDebounce = time.Second

// Persister coalesces state changes into one write per trailing window.
// Changes made inside the window are lost if the process dies before it fires.
// Writes are serialized and a state never overwrites a newer one.
type Persister struct {
	store  *RecordStore
	window time.Duration
	logger zerolog.Logger

	// writeMu is held across SaveState.
	writeMu sync.Mutex

	mu       sync.Mutex
	idle     *sync.Cond
	timer    *time.Timer
	pending  *pendingSave
	gen      uint64 // last scheduled
	written  uint64 // last stored
	inflight int
	writes   int
}

type pendingSave struct {
	gen    uint64
	state  models.AppState
	policy SessionPolicy
}

// NewPersister creates a debounced writer over store.
func NewPersister(store *RecordStore, window time.Duration, logger zerolog.Logger) *Persister {
	if window <= 0 {
		window = DefaultDebounce
	}
	p := &Persister{
		store:  store,
		window: window,
		logger: logger.With().Str("component", "persister").Logger(),
	}
	p.idle = sync.NewCond(&p.mu)
	return p
}

// Schedule replaces any pending write with state and restarts the window.
func (p *Persister) Schedule(state models.AppState, policy SessionPolicy) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.gen++
	p.pending = &pendingSave{gen: p.gen, state: state, policy: policy}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.window, p.fire)
}

// Flush writes the pending state now, if any, and returns once no write is
// in flight.
func (p *Persister) Flush(ctx context.Context) error {
	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	pending := p.take()
	p.mu.Unlock()

	var err error
	if pending != nil {
		err = p.write(ctx, pending)
	}
	p.wait()
	return err
}

// Stop cancels a pending write without performing it and waits for a write
// already in flight.
func (p *Persister) Stop() {
	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.pending = nil
	p.mu.Unlock()
	p.wait()
}

// Pending reports whether a write is waiting for its window to close.
func (p *Persister) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending != nil
}

// Writes returns the number of completed writes.
func (p *Persister) Writes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writes
}

func (p *Persister) fire() {
	p.mu.Lock()
	pending := p.take()
	p.timer = nil
	p.mu.Unlock()

	if pending == nil {
		return
	}
	if err := p.write(context.Background(), pending); err != nil {
		p.logger.Error().Err(err).Msg("Debounced save failed")
	}
}

// take claims the pending save. Callers hold mu and must pass the result
// to write.
func (p *Persister) take() *pendingSave {
	pending := p.pending
	p.pending = nil
	if pending != nil {
		p.inflight++
	}
	return pending
}

func (p *Persister) write(ctx context.Context, s *pendingSave) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	defer p.done()

	p.mu.Lock()
	stale := s.gen <= p.written
	p.mu.Unlock()
	if stale {
		p.logger.Debug().Uint64("gen", s.gen).Msg("Skipped superseded save")
		return nil
	}

	if err := p.store.SaveState(ctx, s.state, s.policy); err != nil {
		return err
	}
	p.mu.Lock()
	p.written = s.gen
	p.writes++
	p.mu.Unlock()
	return nil
}

func (p *Persister) done() {
	p.mu.Lock()
	p.inflight--
	if p.inflight == 0 {
		p.idle.Broadcast()
	}
	p.mu.Unlock()
}

func (p *Persister) wait() {
	p.mu.Lock()
	for p.inflight > 0 {
		p.idle.Wait()
	}
	p.mu.Unlock()
}
