package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/luminapp/lumin/internal/storage"
	"github.com/luminapp/lumin/internal/timer"
)

type settingsRequest struct {
	AutoHideCompleted *bool `json:"auto_hide_completed,omitempty"`
	CollapseCompleted *bool `json:"collapse_completed,omitempty"`
	ShowConfetti      *bool `json:"show_confetti,omitempty"`
	ShowStats         *bool `json:"show_stats,omitempty"`
	FocusTime         *int  `json:"focus_time,omitempty"`
	BreakTime         *int  `json:"break_time,omitempty"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())

	settings, err := s.store.Settings().Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			defaults := storage.DefaultSettings(userID)
			writeJSON(w, http.StatusOK, defaults)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())

	var req settingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	settings, err := s.store.Settings().Get(r.Context(), userID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusInternalServerError, "Failed to load settings")
			return
		}
		defaults := storage.DefaultSettings(userID)
		settings = &defaults
	}

	if req.AutoHideCompleted != nil {
		settings.AutoHideCompleted = *req.AutoHideCompleted
	}
	if req.CollapseCompleted != nil {
		settings.CollapseCompleted = *req.CollapseCompleted
	}
	if req.ShowConfetti != nil {
		settings.ShowConfetti = *req.ShowConfetti
	}
	if req.ShowStats != nil {
		settings.ShowStats = *req.ShowStats
	}
	if req.FocusTime != nil {
		if *req.FocusTime < timer.MinFocusMinutes || *req.FocusTime > timer.MaxFocusMinutes {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("focus_time must be between %d and %d minutes", timer.MinFocusMinutes, timer.MaxFocusMinutes))
			return
		}
		settings.FocusTime = *req.FocusTime
	}
	if req.BreakTime != nil {
		if *req.BreakTime < timer.MinBreakMinutes || *req.BreakTime > timer.MaxBreakMinutes {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("break_time must be between %d and %d minutes", timer.MinBreakMinutes, timer.MaxBreakMinutes))
			return
		}
		settings.BreakTime = *req.BreakTime
	}

	if err := s.store.Settings().Upsert(r.Context(), *settings); err != nil {
		s.logger.Error().Err(err).Msg("Failed to save settings")
		writeError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}

	// Idle timers pick up the new durations immediately; running or
	// paused ones keep their countdown until reset.
	s.timers.UpdateDurations(userID, settings.FocusTime, settings.BreakTime)

	writeJSON(w, http.StatusOK, settings)
}
