package timer

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// WorkReporter receives the completion side effect of a focus session:
// the elapsed focus minutes to add to the task's cumulative work time.
type WorkReporter interface {
	ReportFocusWork(ctx context.Context, report WorkReport) error
}

// WorkReport describes one completed focus session.
type WorkReport struct {
	UserID       string
	TaskID       string
	Minutes      int
	TotalSeconds int
	StartedAt    time.Time
	CompletedAt  time.Time
}

// driver owns the one-second tick loop for a running engine. At most one
// driver exists per engine; the manager halts the old driver before creating
// a new one, so double decrements are impossible.
type driver struct {
	engine   *Engine
	reporter WorkReporter
	interval time.Duration
	clock    Clock
	logger   zerolog.Logger

	stop chan struct{}
	done chan struct{}
}

func newDriver(engine *Engine, reporter WorkReporter, interval time.Duration, clock Clock, logger zerolog.Logger) *driver {
	if interval <= 0 {
		interval = time.Second
	}
	return &driver{
		engine:   engine,
		reporter: reporter,
		interval: interval,
		clock:    clock,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// run ticks the engine until it completes or the driver is halted.
func (d *driver) run() {
	defer close(d.done)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			minutes, completed := d.engine.Tick()
			if !completed {
				continue
			}
			d.report(minutes)
			return
		}
	}
}

// report delivers the completion side effect. The engine has already
// transitioned to completed, so this runs at most once per cycle.
func (d *driver) report(minutes int) {
	snapshot := d.engine.Snapshot()
	report := WorkReport{
		UserID:       d.engine.userID,
		TaskID:       snapshot.TaskID,
		Minutes:      minutes,
		TotalSeconds: snapshot.TotalSeconds,
		StartedAt:    d.engine.StartedAt(),
		CompletedAt:  d.clock.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := d.reporter.ReportFocusWork(ctx, report); err != nil {
		// Fire-and-forget: the attempt was made, the failure is diagnosable
		// from logs alone.
		d.logger.Error().
			Err(err).
			Str("task_id", report.TaskID).
			Int("minutes", report.Minutes).
			Msg("Failed to report completed focus session")
		return
	}

	d.logger.Info().
		Str("task_id", report.TaskID).
		Int("minutes", report.Minutes).
		Msg("Focus session completed")
}

// halt stops the tick loop and waits for it to exit.
func (d *driver) halt() {
	select {
	case <-d.stop:
	default:
		close(d.stop)
	}
	<-d.done
}
