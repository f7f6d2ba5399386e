package timer

import (
	"sync"
	"time"
)

// State is the countdown state of an engine.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
)

// Duration bounds in minutes. Out-of-range inputs are clamped, non-positive
// inputs fall back to the previous valid value.
const (
	MinFocusMinutes = 1
	MaxFocusMinutes = 120
	MinBreakMinutes = 1
	MaxBreakMinutes = 30

	DefaultFocusMinutes = 25
	DefaultBreakMinutes = 5
)

// Snapshot is a point-in-time view of an engine, safe to hand to callers.
type Snapshot struct {
	TaskID           string  `json:"task_id"`
	State            State   `json:"state"`
	RemainingSeconds int     `json:"remaining_seconds"`
	TotalSeconds     int     `json:"total_seconds"`
	FocusMinutes     int     `json:"focus_minutes"`
	BreakMinutes     int     `json:"break_minutes"`
	Progress         float64 `json:"progress"`
}

// Engine is the countdown state machine for one task's focus session.
// It holds no goroutines: a Driver (or a test) feeds it ticks. All methods
// are safe for concurrent use.
type Engine struct {
	mu sync.Mutex

	userID string
	taskID string

	state            State
	focusMinutes     int
	breakMinutes     int
	remainingSeconds int
	totalSeconds     int

	startedAt time.Time
	clock     Clock
}

// NewEngine creates an idle engine for a task. Durations are clamped to
// the allowed bounds; non-positive values fall back to the defaults.
func NewEngine(userID, taskID string, focusMinutes, breakMinutes int, clock Clock) *Engine {
	if clock == nil {
		clock = RealClock{}
	}

	e := &Engine{
		userID:       userID,
		taskID:       taskID,
		state:        StateIdle,
		focusMinutes: clampDuration(focusMinutes, MinFocusMinutes, MaxFocusMinutes, DefaultFocusMinutes),
		breakMinutes: clampDuration(breakMinutes, MinBreakMinutes, MaxBreakMinutes, DefaultBreakMinutes),
		clock:        clock,
	}
	e.totalSeconds = e.focusMinutes * 60
	e.remainingSeconds = e.totalSeconds
	return e
}

// Start moves the engine into running. From paused it resumes without
// resetting the remaining time. It is a no-op in running and completed.
// Returns true when the engine transitioned to running.
func (e *Engine) Start() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateIdle:
		e.state = StateRunning
		e.startedAt = e.clock.Now()
		return true
	case StatePaused:
		e.state = StateRunning
		return true
	default:
		return false
	}
}

// Pause halts a running countdown, preserving the remaining time.
// Returns true when the engine transitioned to paused.
func (e *Engine) Pause() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateRunning {
		return false
	}
	e.state = StatePaused
	return true
}

// Reset returns the engine to idle from any state, recomputing the
// remaining and total seconds from the current focus duration.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state = StateIdle
	e.totalSeconds = e.focusMinutes * 60
	e.remainingSeconds = e.totalSeconds
	e.startedAt = time.Time{}
}

// SetDurations updates the configured focus/break durations. While idle the
// countdown is recomputed immediately; in any other state the new durations
// take effect on the next reset so an active countdown is not interrupted.
func (e *Engine) SetDurations(focusMinutes, breakMinutes int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.focusMinutes = clampDuration(focusMinutes, MinFocusMinutes, MaxFocusMinutes, e.focusMinutes)
	e.breakMinutes = clampDuration(breakMinutes, MinBreakMinutes, MaxBreakMinutes, e.breakMinutes)

	if e.state == StateIdle {
		e.totalSeconds = e.focusMinutes * 60
		e.remainingSeconds = e.totalSeconds
	}
}

// Tick advances the countdown by one second. It only has an effect while
// running; the transition into completed happens exactly once per cycle.
// When the tick completes the session, minutes holds the elapsed focus
// minutes to report.
func (e *Engine) Tick() (minutes int, completed bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateRunning {
		return 0, false
	}

	e.remainingSeconds--
	if e.remainingSeconds > 0 {
		return 0, false
	}

	e.remainingSeconds = 0
	e.state = StateCompleted
	return e.elapsedMinutesLocked(), true
}

// Snapshot returns a copy of the engine's current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Snapshot{
		TaskID:           e.taskID,
		State:            e.state,
		RemainingSeconds: e.remainingSeconds,
		TotalSeconds:     e.totalSeconds,
		FocusMinutes:     e.focusMinutes,
		BreakMinutes:     e.breakMinutes,
		Progress:         e.progressLocked(),
	}
}

// Progress reports elapsed/total as a fraction in [0,1].
func (e *Engine) Progress() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progressLocked()
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// StartedAt returns when the current cycle first left idle.
func (e *Engine) StartedAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startedAt
}

func (e *Engine) progressLocked() float64 {
	if e.totalSeconds <= 0 {
		return 0
	}
	return float64(e.totalSeconds-e.remainingSeconds) / float64(e.totalSeconds)
}

// elapsedMinutesLocked rounds the elapsed seconds to whole minutes.
func (e *Engine) elapsedMinutesLocked() int {
	elapsed := e.totalSeconds - e.remainingSeconds
	return (elapsed + 30) / 60
}

func clampDuration(minutes, min, max, fallback int) int {
	if minutes <= 0 {
		return fallback
	}
	if minutes < min {
		return min
	}
	if minutes > max {
		return max
	}
	return minutes
}
