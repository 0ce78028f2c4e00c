package timerview

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"pusoy/internal/protocol"
)

type frame struct {
	pos     protocol.Relative
	percent float64
	visible bool
}

// recorder collects frames on a buffered channel so presenter goroutines
// never block and tests never sleep-poll.
func recorder() (ProgressFunc, chan frame) {
	ch := make(chan frame, 128)
	return func(pos protocol.Relative, percent float64, visible bool) {
		ch <- frame{pos: pos, percent: percent, visible: visible}
	}, ch
}

func recvFrame(t *testing.T, ch <-chan frame) frame {
	t.Helper()
	select {
	case f := <-ch:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return frame{}
	}
}

func expectNoFrame(t *testing.T, ch <-chan frame) {
	t.Helper()
	select {
	case f := <-ch:
		t.Fatalf("unexpected frame: %+v", f)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCountdownProgressFollowsClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	render, frames := recorder()
	p := NewPresenter(clock, protocol.Left, render)

	p.Set(200 * time.Millisecond)

	if f := recvFrame(t, frames); f.percent != 0 || !f.visible || f.pos != protocol.Left {
		t.Fatalf("initial frame = %+v", f)
	}

	clock.BlockUntil(1)
	want := []float64{25, 50, 75, 100}
	for _, pct := range want {
		clock.Advance(frameInterval)
		f := recvFrame(t, frames)
		if f.percent != pct || !f.visible {
			t.Fatalf("frame = %+v, want percent %v visible", f, pct)
		}
	}

	// Completion stops scheduling but leaves the bar shown at 100%.
	if p.Active() {
		t.Fatal("presenter still active after completion")
	}
	expectNoFrame(t, frames)

	p.Stop()
	if f := recvFrame(t, frames); f.visible || f.percent != 0 {
		t.Fatalf("stop frame = %+v", f)
	}
}

func TestSetReplacesInFlightCountdown(t *testing.T) {
	clock := clockwork.NewFakeClock()
	render, frames := recorder()
	b := NewBank(clock, render)

	b.Set(protocol.Right, time.Hour)
	recvFrame(t, frames)
	b.Set(protocol.Right, time.Hour)
	recvFrame(t, frames)

	if n := b.ActiveCount(); n != 1 {
		t.Fatalf("active countdowns = %d, want 1", n)
	}
}

func TestCountdownsArePerPosition(t *testing.T) {
	clock := clockwork.NewFakeClock()
	render, frames := recorder()
	b := NewBank(clock, render)

	b.Set(protocol.Left, time.Hour)
	b.Set(protocol.Across, time.Hour)
	recvFrame(t, frames)
	recvFrame(t, frames)

	if n := b.ActiveCount(); n != 2 {
		t.Fatalf("active countdowns = %d, want 2", n)
	}

	b.Stop(protocol.Left)
	if f := recvFrame(t, frames); f.pos != protocol.Left || f.visible {
		t.Fatalf("stop frame = %+v", f)
	}
	if n := b.ActiveCount(); n != 1 {
		t.Fatalf("active countdowns after stop = %d, want 1", n)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	render, frames := recorder()
	p := NewPresenter(clock, protocol.My, render)

	// Stopping an idle presenter hides nothing and emits nothing.
	p.Stop()
	expectNoFrame(t, frames)

	p.Set(time.Hour)
	recvFrame(t, frames)

	p.Stop()
	if f := recvFrame(t, frames); f.visible {
		t.Fatalf("stop frame = %+v", f)
	}

	// Second stop: no error, no duplicate hide.
	p.Stop()
	expectNoFrame(t, frames)
	if p.Active() {
		t.Fatal("presenter active after stop")
	}
}

func TestNoFrameRendersAfterStopHides(t *testing.T) {
	clock := clockwork.NewFakeClock()
	render, frames := recorder()
	p := NewPresenter(clock, protocol.Across, render)

	// Race Stop against a tick already buffered in the ticker channel: the
	// presenter goroutine may wake holding a frame it must not paint once
	// the hide frame is out. The mutex serializes renders, so channel order
	// is render order.
	for i := 0; i < 200; i++ {
		p.Set(200 * time.Millisecond)
		recvFrame(t, frames)
		clock.BlockUntil(1)
		clock.Advance(frameInterval)
		p.Stop()

		hidden := false
	drain:
		for {
			select {
			case f := <-frames:
				if hidden && f.visible {
					t.Fatalf("iteration %d: visible frame (%v%%) rendered after hide", i, f.percent)
				}
				if !f.visible {
					hidden = true
				}
			default:
				break drain
			}
		}
		if !hidden {
			t.Fatalf("iteration %d: no hide frame observed", i)
		}
	}
}

func TestStopAllHidesEverything(t *testing.T) {
	clock := clockwork.NewFakeClock()
	render, frames := recorder()
	b := NewBank(clock, render)

	for _, pos := range protocol.Relatives {
		b.Set(pos, time.Hour)
		recvFrame(t, frames)
	}
	b.StopAll()
	for range protocol.Relatives {
		if f := recvFrame(t, frames); f.visible {
			t.Fatalf("frame after StopAll = %+v", f)
		}
	}
	if n := b.ActiveCount(); n != 0 {
		t.Fatalf("active countdowns = %d, want 0", n)
	}
}
