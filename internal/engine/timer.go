package engine

// TimerState tracks a countdown through its lifecycle.
type TimerState string

const (
	TimerIdle    TimerState = "idle"
	TimerRunning TimerState = "running"
	TimerPaused  TimerState = "paused"
	TimerExpired TimerState = "expired"
	TimerCleared TimerState = "cleared"
)

// Countdown is a per-section countdown driven by an external once-per-second
// Tick. It is not self-scheduling and not goroutine-safe; the owning session
// serializes access.
type Countdown struct {
	secondsLeft int
	state       TimerState
	fired       bool
}

func NewCountdown() *Countdown {
	return &Countdown{state: TimerIdle}
}

// Arm loads the countdown and starts it running. Re-arming resets the
// expiry latch, so one Countdown can serve successive sections.
func (c *Countdown) Arm(seconds int) {
	if seconds < 0 {
		seconds = 0
	}
	c.secondsLeft = seconds
	c.state = TimerRunning
	c.fired = false
}

// Tick decrements by exactly one second, flooring at zero. It reports true
// on the single tick that crosses into expiry; the expired signal is
// edge-triggered and never re-fires for the same arming.
func (c *Countdown) Tick() bool {
	if c.state != TimerRunning {
		return false
	}
	if c.secondsLeft > 0 {
		c.secondsLeft--
	}
	if c.secondsLeft == 0 && !c.fired {
		c.fired = true
		c.state = TimerExpired
		return true
	}
	return false
}

// Reconcile clamps the countdown against server-reported elapsed time: the
// remaining time becomes the minimum of the locally-restored value and
// max(0, limit-serverElapsed). A stale or tampered snapshot can therefore
// never extend time beyond what the server believes has elapsed.
func (c *Countdown) Reconcile(serverElapsedSeconds, limitSeconds int) {
	allowed := limitSeconds - serverElapsedSeconds
	if allowed < 0 {
		allowed = 0
	}
	if allowed < c.secondsLeft {
		c.secondsLeft = allowed
	}
}

// Pause suspends ticking, e.g. across a break in a shared-timer exam.
func (c *Countdown) Pause() {
	if c.state == TimerRunning {
		c.state = TimerPaused
	}
}

// Resume restarts a paused countdown.
func (c *Countdown) Resume() {
	if c.state == TimerPaused {
		c.state = TimerRunning
	}
}

// Clear stops the countdown for good.
func (c *Countdown) Clear() {
	c.state = TimerCleared
	c.secondsLeft = 0
}

func (c *Countdown) SecondsLeft() int { return c.secondsLeft }

func (c *Countdown) State() TimerState { return c.state }

// Expired reports whether the countdown has ever fired since last armed.
func (c *Countdown) Expired() bool { return c.fired }
