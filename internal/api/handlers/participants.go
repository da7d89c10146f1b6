package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Togather-Foundation/attendance/internal/api/problem"
	"github.com/Togather-Foundation/attendance/internal/domain/participants"
)

type ParticipantsHandler struct {
	Service *participants.Service
	Env     string
}

func NewParticipantsHandler(service *participants.Service, env string) *ParticipantsHandler {
	return &ParticipantsHandler{Service: service, Env: env}
}

type registerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type registerResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

type evaluationRequest struct {
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

type participantResponse struct {
	Message     string                    `json:"message"`
	Participant participants.Participant `json:"participant"`
}

// Register handles POST /inscricao.
func (h *ParticipantsHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, r, err, h.Env)
		return
	}

	participant, err := h.Service.Register(r.Context(), participants.RegisterParams{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		writeDomainError(w, r, err, h.Env)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		Message: "registration completed",
		ID:      participant.ID,
	})
}

// MarkPresent handles POST /presenca/{id}.
func (h *ParticipantsHandler) MarkPresent(w http.ResponseWriter, r *http.Request) {
	id, ok := participantID(w, r, h.Env)
	if !ok {
		return
	}

	participant, err := h.Service.MarkPresent(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err, h.Env)
		return
	}

	writeJSON(w, http.StatusOK, participantResponse{
		Message:     "attendance confirmed",
		Participant: *participant,
	})
}

// Evaluate handles POST /avaliacao/{id}.
func (h *ParticipantsHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	id, ok := participantID(w, r, h.Env)
	if !ok {
		return
	}

	var req evaluationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, r, err, h.Env)
		return
	}

	participant, err := h.Service.RecordEvaluation(r.Context(), id, participants.EvaluateParams{
		Score:   req.Score,
		Comment: req.Comment,
	})
	if err != nil {
		writeDomainError(w, r, err, h.Env)
		return
	}

	writeJSON(w, http.StatusOK, participantResponse{
		Message:     "evaluation recorded",
		Participant: *participant,
	})
}

// List handles GET /inscritos.
func (h *ParticipantsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func participantID(w http.ResponseWriter, r *http.Request, env string) (int64, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request",
			fmt.Errorf("invalid participant id %q", raw), env,
			problem.WithDetail("participant id must be a positive integer"),
			problem.WithErrors(map[string]interface{}{"id": "must be a positive integer"}))
		return 0, false
	}
	return id, true
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

func writeDecodeError(w http.ResponseWriter, r *http.Request, err error, env string) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.TypeValidation, "Request too large", err, env,
			problem.WithDetail(fmt.Sprintf("request body must not exceed %d bytes", maxErr.Limit)))
		return
	}
	problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, env,
		problem.WithDetail("request body must be a JSON object"))
}

// writeDomainError maps service errors onto problem responses.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error, env string) {
	var validationErr participants.ValidationError
	switch {
	case errors.As(err, &validationErr):
		opts := []problem.Option{problem.WithDetail(validationErr.Error())}
		if validationErr.Field != "" {
			opts = append(opts, problem.WithErrors(map[string]interface{}{validationErr.Field: validationErr.Message}))
		}
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, env, opts...)
	case errors.Is(err, participants.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Participant not found", err, env,
			problem.WithDetail("participant not found"))
	case errors.Is(err, participants.ErrNotEligible):
		problem.Write(w, r, http.StatusForbidden, problem.TypeNotEligible, "Participant not eligible", err, env,
			problem.WithDetail(err.Error()))
	default:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, env)
	}
}
