package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/luminapp/lumin/internal/storage"
	"github.com/luminapp/lumin/internal/timer"
)

// requireTask verifies the task exists before any timer operation, so a
// timer can never outlive or precede its task.
func (s *Server) requireTask(w http.ResponseWriter, r *http.Request) (userID, taskID string, ok bool) {
	userID, _ = GetUserIDFromContext(r.Context())
	taskID = mux.Vars(r)["id"]

	if _, err := s.tasks.Get(r.Context(), userID, taskID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Task not found")
		} else {
			writeError(w, http.StatusInternalServerError, "Failed to load task")
		}
		return "", "", false
	}

	return userID, taskID, true
}

func (s *Server) handleTimerOpen(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := s.requireTask(w, r)
	if !ok {
		return
	}

	snap, err := s.timers.Open(r.Context(), userID, taskID)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to open timer")
		writeError(w, http.StatusInternalServerError, "Failed to open timer")
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleTimerStart(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := s.requireTask(w, r)
	if !ok {
		return
	}

	snap, err := s.timers.Start(r.Context(), userID, taskID)
	if err != nil {
		if errors.Is(err, timer.ErrNoSession) {
			writeError(w, http.StatusNotFound, "No timer session for task")
			return
		}
		s.logger.Error().Err(err).Msg("Failed to start timer")
		writeError(w, http.StatusInternalServerError, "Failed to start timer")
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleTimerPause(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := s.requireTask(w, r)
	if !ok {
		return
	}

	snap, err := s.timers.Pause(r.Context(), userID, taskID)
	if err != nil {
		if errors.Is(err, timer.ErrNoSession) {
			writeError(w, http.StatusNotFound, "No timer session for task")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to pause timer")
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleTimerReset(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := s.requireTask(w, r)
	if !ok {
		return
	}

	snap, err := s.timers.Reset(r.Context(), userID, taskID)
	if err != nil {
		if errors.Is(err, timer.ErrNoSession) {
			writeError(w, http.StatusNotFound, "No timer session for task")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to reset timer")
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleTimerState(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	taskID := mux.Vars(r)["id"]

	snap, err := s.timers.Snapshot(userID, taskID)
	if err != nil {
		if errors.Is(err, timer.ErrNoSession) {
			writeError(w, http.StatusNotFound, "No timer session for task")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to read timer")
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleTimerClose(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	taskID := mux.Vars(r)["id"]

	s.timers.Close(userID, taskID)
	w.WriteHeader(http.StatusNoContent)
}
