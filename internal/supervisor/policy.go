package supervisor

import "time"

// State is where the supervisor is in its restart cycle.
type State int

const (
	Running State = iota
	RestartScheduled
	Cooldown
	// Stopped means the child exited cleanly and will not be restarted.
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case RestartScheduled:
		return "restart_scheduled"
	case Cooldown:
		return "cooldown"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Policy is the restart policy: exponential backoff for the first
// MaxRestarts crashes, then one long cooldown after which the count resets.
type Policy struct {
	MaxRestarts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Cooldown    time.Duration
}

// DefaultPolicy restarts up to 5 times with delays of 1s, 2s, 4s, 8s and
// 16s, then cools down for 5 minutes.
func DefaultPolicy() Policy {
	return Policy{
		MaxRestarts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    time.Minute,
		Cooldown:    5 * time.Minute,
	}
}

// Backoff returns the delay before the n-th restart (n >= 1):
// min(BaseDelay * 2^(n-1), MaxDelay).
func (p Policy) Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := p.BaseDelay
	for i := 1; i < n; i++ {
		d *= 2
		if d >= p.MaxDelay || d <= 0 {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Tracker holds the restart state. It is not safe for concurrent use; the
// supervisor loop is its only owner.
type Tracker struct {
	policy         Policy
	restartCount   int
	cooldownActive bool
	state          State
}

// NewTracker returns a tracker in the Running state.
func NewTracker(p Policy) *Tracker {
	return &Tracker{policy: p, state: Running}
}

// Crashed records a failed child and returns how long to wait before the
// next spawn. It returns false while a cooldown is already pending, in
// which case nothing new is scheduled.
func (t *Tracker) Crashed() (time.Duration, bool) {
	if t.cooldownActive {
		return 0, false
	}
	t.restartCount++
	if t.restartCount <= t.policy.MaxRestarts {
		t.state = RestartScheduled
		return t.policy.Backoff(t.restartCount), true
	}
	t.cooldownActive = true
	t.state = Cooldown
	return t.policy.Cooldown, true
}

// Respawned is called when the scheduled delay elapsed and the child is
// about to be started again. Completing a cooldown resets the count.
func (t *Tracker) Respawned() {
	if t.cooldownActive {
		t.restartCount = 0
		t.cooldownActive = false
	}
	t.state = Running
}

// Stop records a clean exit.
func (t *Tracker) Stop() { t.state = Stopped }

// RestartCount returns the number of crashes since the last cooldown.
func (t *Tracker) RestartCount() int { return t.restartCount }

// CooldownActive reports whether a cooldown is pending.
func (t *Tracker) CooldownActive() bool { return t.cooldownActive }

// State returns the current state.
func (t *Tracker) State() State { return t.state }
