package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/luminapp/lumin/internal/metrics"
	"github.com/luminapp/lumin/internal/storage"
	"github.com/luminapp/lumin/internal/timer"
	"github.com/rs/zerolog"
)

// ErrEmptyText is returned when a task is created or renamed with no text.
var ErrEmptyText = errors.New("tasks: task text must not be empty")

// Stats aggregates a user's task list for display.
type Stats struct {
	TotalTasks     int     `json:"total_tasks"`
	CompletedTasks int     `json:"completed_tasks"`
	TodayCompleted int     `json:"today_completed"`
	TotalFocusTime int     `json:"total_focus_time"` // minutes
	CompletionRate float64 `json:"completion_rate"`  // percentage
}

// Update describes a partial task update. Nil fields are left unchanged.
type Update struct {
	Text      *string `json:"text,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

// Service implements task CRUD, work-time accounting, and stats aggregation.
// It also receives the timer engine's completion side effect.
type Service struct {
	store  storage.Store
	clock  timer.Clock
	logger zerolog.Logger
}

// NewService creates a task service.
func NewService(store storage.Store, clock timer.Clock, logger zerolog.Logger) *Service {
	if clock == nil {
		clock = timer.RealClock{}
	}
	return &Service{
		store:  store,
		clock:  clock,
		logger: logger.With().Str("component", "tasks").Logger(),
	}
}

// Create adds a new task for the user.
func (s *Service) Create(ctx context.Context, userID, text string) (*storage.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	task := storage.Task{
		ID:     uuid.NewString(),
		UserID: userID,
		Text:   text,
	}

	if err := s.store.Tasks().Upsert(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	metrics.TasksCreated.Inc()
	s.logger.Debug().Str("user_id", userID).Str("task_id", task.ID).Msg("Task created")

	return &task, nil
}

// Get retrieves a single task.
func (s *Service) Get(ctx context.Context, userID, taskID string) (*storage.Task, error) {
	return s.store.Tasks().Get(ctx, userID, taskID)
}

// List retrieves all of a user's tasks.
func (s *Service) List(ctx context.Context, userID string) ([]storage.Task, error) {
	return s.store.Tasks().List(ctx, userID)
}

// Update applies a partial update. Completing a task stamps CompletedAt;
// reopening clears it.
func (s *Service) Update(ctx context.Context, userID, taskID string, update Update) (*storage.Task, error) {
	task, err := s.store.Tasks().Get(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	if update.Text != nil {
		text := strings.TrimSpace(*update.Text)
		if text == "" {
			return nil, ErrEmptyText
		}
		task.Text = text
	}

	if update.Completed != nil && *update.Completed != task.Completed {
		task.Completed = *update.Completed
		if task.Completed {
			now := s.clock.Now()
			task.CompletedAt = &now
			metrics.TasksCompleted.Inc()
		} else {
			task.CompletedAt = nil
		}
	}

	if err := s.store.Tasks().Upsert(ctx, *task); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	return task, nil
}

// Delete removes a task.
func (s *Service) Delete(ctx context.Context, userID, taskID string) error {
	return s.store.Tasks().Delete(ctx, userID, taskID)
}

// Sessions lists the focus sessions recorded against a task.
func (s *Service) Sessions(ctx context.Context, userID, taskID string) ([]storage.FocusSession, error) {
	return s.store.FocusSessions().ListByTask(ctx, userID, taskID)
}

// Stats aggregates the user's task list.
func (s *Service) Stats(ctx context.Context, userID string) (*Stats, error) {
	tasks, err := s.store.Tasks().List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("aggregate stats: %w", err)
	}

	now := s.clock.Now()
	stats := &Stats{}

	for _, task := range tasks {
		stats.TotalTasks++
		stats.TotalFocusTime += task.TotalWorkTime
		if !task.Completed {
			continue
		}
		stats.CompletedTasks++
		if task.CompletedAt != nil && sameDay(*task.CompletedAt, now) {
			stats.TodayCompleted++
		}
	}

	if stats.TotalTasks > 0 {
		stats.CompletionRate = float64(stats.CompletedTasks) / float64(stats.TotalTasks) * 100
	}

	return stats, nil
}

// TimerDurations returns the user's configured focus/break durations,
// falling back to defaults when the user has never saved settings.
func (s *Service) TimerDurations(ctx context.Context, userID string) (int, int, error) {
	settings, err := s.store.Settings().Get(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		defaults := storage.DefaultSettings(userID)
		return defaults.FocusTime, defaults.BreakTime, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("load timer durations: %w", err)
	}
	return settings.FocusTime, settings.BreakTime, nil
}

// ReportFocusWork persists a completed focus session: the work-time delta on
// the task plus a session record. Implements timer.WorkReporter.
func (s *Service) ReportFocusWork(ctx context.Context, report timer.WorkReport) error {
	if report.Minutes > 0 {
		if err := s.store.Tasks().AddWorkTime(ctx, report.UserID, report.TaskID, report.Minutes); err != nil {
			return fmt.Errorf("add work time: %w", err)
		}
	}

	completedAt := report.CompletedAt
	session := storage.FocusSession{
		ID:              uuid.NewString(),
		UserID:          report.UserID,
		TaskID:          report.TaskID,
		DurationMinutes: report.Minutes,
		SessionType:     storage.SessionFocus,
		Completed:       true,
		StartedAt:       report.StartedAt,
		CompletedAt:     &completedAt,
	}
	if err := s.store.FocusSessions().Add(ctx, session); err != nil {
		return fmt.Errorf("record focus session: %w", err)
	}

	metrics.FocusSessionsCompleted.Inc()
	metrics.FocusMinutesTotal.Add(float64(report.Minutes))

	return nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
