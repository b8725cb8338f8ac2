package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/moicben/calendar-agent/internal/delivery/http/request"
	"github.com/moicben/calendar-agent/internal/delivery/http/response"
	"github.com/moicben/calendar-agent/internal/entity"
	"github.com/moicben/calendar-agent/internal/usecase"
)

// RunStore submits and looks up asynchronous runs.
type RunStore interface {
	Submit(work usecase.RunFunc) (string, error)
	Get(id string) (entity.Run, error)
}

// GoalRunner executes free-form agent goals.
type GoalRunner interface {
	Run(ctx context.Context, req usecase.GoalRequest) (entity.AgentResult, error)
	RunFunc(req usecase.GoalRequest) usecase.RunFunc
}

// CalendarBooker performs one-shot bookings.
type CalendarBooker interface {
	BookOnce(ctx context.Context, req usecase.CalendarBookingRequest) (entity.BookingStatus, error)
}

type Handler struct {
	runs   RunStore
	goals  GoalRunner
	booker CalendarBooker
	logger *zap.Logger
}

func NewHandler(runs RunStore, goals GoalRunner, booker CalendarBooker, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		runs:   runs,
		goals:  goals,
		booker: booker,
		logger: logger,
	}
}

func (h *Handler) HandleCreateRun(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeGoal(w, r)
	if !ok {
		return
	}

	runID, err := h.runs.Submit(h.goals.RunFunc(toGoalRequest(req)))
	if err != nil {
		if errors.Is(err, usecase.ErrRegistryClosed) {
			h.writeJSONError(w, "server is shutting down", http.StatusServiceUnavailable)
			return
		}
		h.logger.Error("failed to submit run", zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusAccepted, response.CreateRunResponse{
		RunID:  runID,
		Status: string(entity.RunQueued),
	})
}

func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run, err := h.runs.Get(runID)
	if err != nil {
		if errors.Is(err, usecase.ErrRunNotFound) {
			h.writeJSONError(w, "run_not_found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to get run", zap.String("run_id", runID), zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, response.RunResponse{
		RunID:  run.ID,
		Status: string(run.Status),
		Result: run.Result,
		Error:  run.Error,
	})
}

func (h *Handler) HandleRunGoal(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeGoal(w, r)
	if !ok {
		return
	}

	result, err := h.goals.Run(r.Context(), toGoalRequest(req))
	if err != nil {
		h.logger.Warn("goal run failed", zap.Error(err))
		h.writeJSON(w, http.StatusOK, response.RunGoalResponse{OK: false, Error: err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, response.RunGoalResponse{OK: true, Result: entity.ResultValue(result)})
}

func (h *Handler) HandleBookCalendar(w http.ResponseWriter, r *http.Request) {
	var req request.BookCalendarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.CalendarURL == "" {
		h.writeJSONError(w, "calendar_url is required", http.StatusBadRequest)
		return
	}
	if _, err := url.Parse(req.CalendarURL); err != nil {
		h.writeJSONError(w, "Invalid URL format", http.StatusBadRequest)
		return
	}

	status, err := h.booker.BookOnce(r.Context(), usecase.CalendarBookingRequest{
		CalendarURL: req.CalendarURL,
		Contact: entity.Contact{
			Name:           req.Name,
			Email:          req.Email,
			Phone:          req.Phone,
			Website:        req.Website,
			Company:        req.Company,
			SlotPreference: req.SlotPreference,
			MeetingType:    req.MeetingType,
			Message:        req.Message,
		},
		Headless: req.Headless,
		MaxSteps: req.MaxSteps,
	})
	if err != nil {
		h.logger.Warn("calendar booking failed", zap.String("url", req.CalendarURL), zap.Error(err))
		h.writeJSON(w, http.StatusOK, response.BookCalendarResponse{OK: false, Error: err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, response.BookCalendarResponse{OK: true, Status: string(status)})
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) decodeGoal(w http.ResponseWriter, r *http.Request) (request.RunGoalRequest, bool) {
	var req request.RunGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return req, false
	}
	if req.Goal == "" {
		h.writeJSONError(w, "goal is required", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func toGoalRequest(req request.RunGoalRequest) usecase.GoalRequest {
	return usecase.GoalRequest{
		Goal:     req.Goal,
		StartURL: req.StartURL,
		Headless: req.Headless,
		MaxSteps: req.MaxSteps,
		Model:    req.Model,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
