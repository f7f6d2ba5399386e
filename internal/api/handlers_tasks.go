package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/luminapp/lumin/internal/storage"
	"github.com/luminapp/lumin/internal/tasks"
)

type createTaskRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())

	list, err := s.tasks.List(r.Context(), userID)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list tasks")
		writeError(w, http.StatusInternalServerError, "Failed to list tasks")
		return
	}
	if list == nil {
		list = []storage.Task{}
	}

	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())

	var req createTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	task, err := s.tasks.Create(r.Context(), userID, req.Text)
	if err != nil {
		if errors.Is(err, tasks.ErrEmptyText) {
			writeError(w, http.StatusBadRequest, "Task text cannot be empty")
			return
		}
		s.logger.Error().Err(err).Msg("Failed to create task")
		writeError(w, http.StatusInternalServerError, "Failed to create task")
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	taskID := mux.Vars(r)["id"]

	task, err := s.tasks.Get(r.Context(), userID, taskID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load task")
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	taskID := mux.Vars(r)["id"]

	var update tasks.Update
	if err := decodeJSON(r, &update); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	task, err := s.tasks.Update(r.Context(), userID, taskID, update)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, http.StatusNotFound, "Task not found")
		case errors.Is(err, tasks.ErrEmptyText):
			writeError(w, http.StatusBadRequest, "Task text cannot be empty")
		default:
			s.logger.Error().Err(err).Msg("Failed to update task")
			writeError(w, http.StatusInternalServerError, "Failed to update task")
		}
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	taskID := mux.Vars(r)["id"]

	// Drop any live timer for the task before removing the record.
	s.timers.Close(userID, taskID)

	if err := s.tasks.Delete(r.Context(), userID, taskID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete task")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTaskSessions(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	taskID := mux.Vars(r)["id"]

	sessions, err := s.tasks.Sessions(r.Context(), userID, taskID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load sessions")
		return
	}
	if sessions == nil {
		sessions = []storage.FocusSession{}
	}

	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())

	stats, err := s.tasks.Stats(r.Context(), userID)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to compute stats")
		writeError(w, http.StatusInternalServerError, "Failed to compute stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
