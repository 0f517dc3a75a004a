package game

import (
	"testing"
	"time"
)

func TestApplySnapshotIsIdempotent(t *testing.T) {
	snap := Snapshot{
		BallPos:     Vec2{X: 12, Y: -40},
		BallVel:     Vec2{X: 200, Y: -200},
		PaddleLeft:  Vec2{X: -390, Y: 55},
		PaddleRight: Vec2{X: 390, Y: -80},
		ScoreLeft:   3,
		ScoreRight:  7,
		Playing:     true,
	}

	p := NewPong()
	p.Apply(snap)
	first := p.Snapshot()
	p.Apply(snap)
	second := p.Snapshot()

	if first != second {
		t.Fatalf("applying the same snapshot twice diverged: %+v vs %+v", first, second)
	}
	if first != snap {
		t.Fatalf("snapshot round-trip changed state: want %+v, got %+v", snap, first)
	}
}

func TestResetIsDeferredUntilAdvance(t *testing.T) {
	p := NewPong()
	p.SetPlaying(true)
	p.Apply(Snapshot{BallPos: Vec2{X: 100, Y: 100}, Playing: true})

	p.RequestReset()
	if got := p.Snapshot().BallPos; got != (Vec2{X: 100, Y: 100}) {
		t.Fatalf("reset mutated state before Advance: ball at %+v", got)
	}

	p.Advance(PollRate)
	if got := p.Snapshot().BallPos; got != ballStart {
		t.Fatalf("ball not recentered after Advance: %+v", got)
	}
}

func TestPaddleMovementClampsToArena(t *testing.T) {
	p := NewPong()
	p.SetPlaying(true)
	p.SetInput(SlotLeft, InputSample{Up: true})

	// Hold "up" far longer than it takes to cross the whole arena.
	for i := 0; i < 60*10; i++ {
		p.Advance(PollRate)
	}

	topBound := float32(topWall - wallThickness/2 - paddleHeight/2 - paddlePadding)
	if got := p.Snapshot().PaddleLeft.Y; got != topBound {
		t.Fatalf("paddle not clamped at top bound: got %v, want %v", got, topBound)
	}
}

func TestAdvanceIsInertWhileNotPlaying(t *testing.T) {
	p := NewPong()
	p.Apply(Snapshot{BallVel: Vec2{X: 400, Y: 400}})
	p.SetInput(SlotRight, InputSample{Down: true})

	before := p.Snapshot()
	p.Advance(time.Second)
	if after := p.Snapshot(); after != before {
		t.Fatalf("simulation advanced while paused: %+v vs %+v", before, after)
	}
}
