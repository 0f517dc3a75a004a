package game

import "time"

// Arena geometry, in world units.
const (
	paddleHeight  = 120.0
	paddleSpeed   = 500.0
	paddlePadding = 10.0
	wallThickness = 10.0

	leftWall   = -450.0
	rightWall  = 450.0
	bottomWall = -300.0
	topWall    = 300.0

	gapBetweenPaddleAndWall = 60.0
)

var ballStart = Vec2{X: 0, Y: -50}

// Pong is a headless reference simulation: paddle movement integration with
// clamped bounds and straight-line ball integration. Collision and scoring
// live with the full game and are out of scope here; the session layer never
// looks past the Simulation interface anyway.
type Pong struct {
	ball        Vec2
	ballVel     Vec2
	paddleLeft  Vec2
	paddleRight Vec2
	scoreLeft   int32
	scoreRight  int32
	playing     bool

	inputs   [2]InputSample
	resetDue bool
}

var _ Simulation = (*Pong)(nil)

func NewPong() *Pong {
	p := &Pong{}
	p.recenter()
	return p
}

func (p *Pong) recenter() {
	p.ball = ballStart
	p.ballVel = Vec2{}
	p.paddleLeft = Vec2{X: leftWall + gapBetweenPaddleAndWall}
	p.paddleRight = Vec2{X: rightWall - gapBetweenPaddleAndWall}
}

func (p *Pong) Snapshot() Snapshot {
	return Snapshot{
		BallPos:     p.ball,
		BallVel:     p.ballVel,
		PaddleLeft:  p.paddleLeft,
		PaddleRight: p.paddleRight,
		ScoreLeft:   p.scoreLeft,
		ScoreRight:  p.scoreRight,
		Playing:     p.playing,
	}
}

func (p *Pong) Apply(s Snapshot) {
	p.ball = s.BallPos
	p.ballVel = s.BallVel
	p.paddleLeft = s.PaddleLeft
	p.paddleRight = s.PaddleRight
	p.scoreLeft = s.ScoreLeft
	p.scoreRight = s.ScoreRight
	p.playing = s.Playing
}

func (p *Pong) Playing() bool           { return p.playing }
func (p *Pong) SetPlaying(playing bool) { p.playing = playing }

func (p *Pong) RequestReset() { p.resetDue = true }

func (p *Pong) SetInput(slot Slot, in InputSample) {
	p.inputs[slot] = in
}

func (p *Pong) Advance(dt time.Duration) {
	if p.resetDue {
		p.recenter()
		p.resetDue = false
	}
	if !p.playing {
		return
	}

	secs := float32(dt.Seconds())

	p.paddleLeft.Y = integratePaddle(p.paddleLeft.Y, p.inputs[SlotLeft], secs)
	p.paddleRight.Y = integratePaddle(p.paddleRight.Y, p.inputs[SlotRight], secs)

	p.ball.X += p.ballVel.X * secs
	p.ball.Y += p.ballVel.Y * secs
}

// Players just send their input instead of keeping track of their own
// position; the server integrates and clamps against the arena bounds.
func integratePaddle(y float32, in InputSample, secs float32) float32 {
	var dir float32
	if in.Down {
		dir -= 1
	}
	if in.Up {
		dir += 1
	}

	bottomBound := float32(bottomWall + wallThickness/2 + paddleHeight/2 + paddlePadding)
	topBound := float32(topWall - wallThickness/2 - paddleHeight/2 - paddlePadding)

	y += dir * paddleSpeed * secs
	if y < bottomBound {
		y = bottomBound
	}
	if y > topBound {
		y = topBound
	}
	return y
}

func (p *Pong) Scores() (int32, int32) { return p.scoreLeft, p.scoreRight }

func (p *Pong) ResetScores() {
	p.scoreLeft = 0
	p.scoreRight = 0
}
