// Package timerview drives the per-seat turn countdowns. Progress is
// computed from the clock rather than counted in ticks, so the rendered
// percentage stays honest across dropped or delayed frames. All clock access
// goes through clockwork so tests run on a fake clock.
package timerview

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"pusoy/internal/protocol"
)

// frameInterval is how often an active countdown repaints.
const frameInterval = 50 * time.Millisecond

// ProgressFunc renders one frame of a countdown: percent runs 0..100 and
// visible reports whether the element should show at all. Calls arrive from
// the presenter's own goroutine.
type ProgressFunc func(pos protocol.Relative, percent float64, visible bool)

// Presenter owns the countdown for a single table position. Starting a new
// countdown replaces the previous one; there is never more than one active
// per presenter.
type Presenter struct {
	clock  clockwork.Clock
	pos    protocol.Relative
	render ProgressFunc

	mu      sync.Mutex
	cancel  context.CancelFunc
	active  bool
	visible bool
}

// NewPresenter returns an idle presenter for pos.
func NewPresenter(clock clockwork.Clock, pos protocol.Relative, render ProgressFunc) *Presenter {
	return &Presenter{clock: clock, pos: pos, render: render}
}

// Set starts a countdown of duration d, cancelling any countdown already in
// flight. The countdown stays visible at 100% until Stop is called; hiding
// is an explicit decision of the event that ends the turn.
func (p *Presenter) Set(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cancelLocked()
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.active = true
	p.visible = true

	log.Debug().
		Stringer("pos", p.pos).
		Dur("duration", d).
		Msg("countdown started")

	go p.run(ctx, d)
}

// Stop cancels any scheduled frame and hides the countdown. It is
// idempotent: stopping an already-hidden presenter does nothing.
func (p *Presenter) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cancelLocked()
	if !p.visible {
		return
	}
	p.visible = false
	p.render(p.pos, 0, false)
}

// Active reports whether a countdown is currently scheduled.
func (p *Presenter) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

func (p *Presenter) cancelLocked() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.active = false
}

// run repaints at frame rate until the deadline passes or the countdown is
// replaced or stopped.
func (p *Presenter) run(ctx context.Context, d time.Duration) {
	start := p.clock.Now()
	ticker := p.clock.NewTicker(frameInterval)
	defer ticker.Stop()

	if !p.paint(ctx, 0) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}

		elapsed := p.clock.Now().Sub(start)
		percent := 100 * float64(elapsed) / float64(d)
		if percent >= 100 {
			// Done ticking; the bar parks at full until Stop hides it.
			p.mu.Lock()
			if ctx.Err() != nil {
				p.mu.Unlock()
				return
			}
			p.active = false
			p.render(p.pos, 100, true)
			p.mu.Unlock()
			return
		}
		if !p.paint(ctx, percent) {
			return
		}
	}
}

// paint renders one visible frame, unless the countdown was stopped or
// replaced while this goroutine was waking up. A tick can be buffered when
// Stop cancels the context; rendering it would repaint a hidden countdown,
// so every frame re-checks ctx under the same lock Stop renders under.
func (p *Presenter) paint(ctx context.Context, percent float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	p.render(p.pos, percent, true)
	return true
}

// Bank is the set of four presenters, one per table position.
type Bank struct {
	presenters [4]*Presenter
}

// NewBank builds a presenter for every relative position, all rendering
// through render on clock.
func NewBank(clock clockwork.Clock, render ProgressFunc) *Bank {
	b := &Bank{}
	for _, pos := range protocol.Relatives {
		b.presenters[pos] = NewPresenter(clock, pos, render)
	}
	return b
}

// Set starts (or restarts) the countdown for pos.
func (b *Bank) Set(pos protocol.Relative, d time.Duration) {
	b.presenters[pos].Set(d)
}

// Stop cancels and hides the countdown for pos.
func (b *Bank) Stop(pos protocol.Relative) {
	b.presenters[pos].Stop()
}

// StopAll hides every countdown, e.g. on a fresh deal.
func (b *Bank) StopAll() {
	for _, p := range b.presenters {
		p.Stop()
	}
}

// ActiveCount reports how many countdowns are currently scheduled.
func (b *Bank) ActiveCount() int {
	n := 0
	for _, p := range b.presenters {
		if p.Active() {
			n++
		}
	}
	return n
}
