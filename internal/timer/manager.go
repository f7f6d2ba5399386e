package timer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrNoSession is returned for timer intents against a task that has no
// open timer panel.
var ErrNoSession = errors.New("timer: no open session for task")

// SettingsSource supplies the focus/break durations configured by a user.
type SettingsSource interface {
	TimerDurations(ctx context.Context, userID string) (focusMinutes, breakMinutes int, err error)
}

// Manager owns one engine per open (user, task) timer panel. Engines are
// independent and share no mutable state; the manager only guards the map
// and the driver lifecycle.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry

	settings SettingsSource
	reporter WorkReporter
	interval time.Duration
	clock    Clock
	logger   zerolog.Logger
}

type entry struct {
	engine *Engine
	driver *driver
}

// Config holds manager configuration.
type Config struct {
	// TickInterval is the countdown resolution. Defaults to one second;
	// tests shorten it.
	TickInterval time.Duration
	Clock        Clock
}

// NewManager creates a timer manager.
func NewManager(settings SettingsSource, reporter WorkReporter, cfg Config, logger zerolog.Logger) *Manager {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}

	return &Manager{
		entries:  make(map[string]*entry),
		settings: settings,
		reporter: reporter,
		interval: cfg.TickInterval,
		clock:    cfg.Clock,
		logger:   logger.With().Str("component", "timer").Logger(),
	}
}

func sessionKey(userID, taskID string) string {
	return userID + "/" + taskID
}

// Open creates an idle engine for the task, seeded from the user's settings.
// Reopening an already-open panel returns the existing engine's snapshot.
func (m *Manager) Open(ctx context.Context, userID, taskID string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey(userID, taskID)
	if ent, ok := m.entries[key]; ok {
		return ent.engine.Snapshot(), nil
	}

	focus, breakM, err := m.settings.TimerDurations(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}

	engine := NewEngine(userID, taskID, focus, breakM, m.clock)
	m.entries[key] = &entry{engine: engine}

	m.logger.Debug().
		Str("user_id", userID).
		Str("task_id", taskID).
		Int("focus_minutes", focus).
		Msg("Timer panel opened")

	return engine.Snapshot(), nil
}

// Start begins or resumes the countdown. The previous driver, if any, is
// halted before a new one is created.
func (m *Manager) Start(ctx context.Context, userID, taskID string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ent, ok := m.entries[sessionKey(userID, taskID)]
	if !ok {
		return Snapshot{}, ErrNoSession
	}

	if !ent.engine.Start() {
		// Start is a no-op in running/completed; report state as-is.
		return ent.engine.Snapshot(), nil
	}

	if ent.driver != nil {
		ent.driver.halt()
	}

	ent.driver = newDriver(ent.engine, m.reporter, m.interval, m.clock, m.logger)
	go ent.driver.run()

	return ent.engine.Snapshot(), nil
}

// Pause halts the countdown, preserving the remaining time.
func (m *Manager) Pause(ctx context.Context, userID, taskID string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ent, ok := m.entries[sessionKey(userID, taskID)]
	if !ok {
		return Snapshot{}, ErrNoSession
	}

	ent.engine.Pause()
	m.haltDriverLocked(ent)

	return ent.engine.Snapshot(), nil
}

// Reset returns the engine to idle and recomputes the countdown from the
// current duration settings.
func (m *Manager) Reset(ctx context.Context, userID, taskID string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ent, ok := m.entries[sessionKey(userID, taskID)]
	if !ok {
		return Snapshot{}, ErrNoSession
	}

	m.haltDriverLocked(ent)
	ent.engine.Reset()

	return ent.engine.Snapshot(), nil
}

// Snapshot reports the current state of an open panel.
func (m *Manager) Snapshot(userID, taskID string) (Snapshot, error) {
	m.mu.Lock()
	ent, ok := m.entries[sessionKey(userID, taskID)]
	m.mu.Unlock()

	if !ok {
		return Snapshot{}, ErrNoSession
	}
	return ent.engine.Snapshot(), nil
}

// UpdateDurations propagates changed duration settings to every open engine
// belonging to the user. Engines apply them per their own state rules.
func (m *Manager) UpdateDurations(userID string, focusMinutes, breakMinutes int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := userID + "/"
	for key, ent := range m.entries {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			ent.engine.SetDurations(focusMinutes, breakMinutes)
		}
	}
}

// Close discards the engine for a task, halting any active driver. Closing
// a panel that is not open is a no-op.
func (m *Manager) Close(userID, taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey(userID, taskID)
	ent, ok := m.entries[key]
	if !ok {
		return
	}

	m.haltDriverLocked(ent)
	delete(m.entries, key)

	m.logger.Debug().
		Str("user_id", userID).
		Str("task_id", taskID).
		Msg("Timer panel closed")
}

// Shutdown halts all drivers and discards all engines.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, ent := range m.entries {
		m.haltDriverLocked(ent)
		delete(m.entries, key)
	}
}

func (m *Manager) haltDriverLocked(ent *entry) {
	if ent.driver != nil {
		ent.driver.halt()
		ent.driver = nil
	}
}
