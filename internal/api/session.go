package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/salesdrill/internal/conversation"
	"github.com/ashureev/salesdrill/internal/domain"
	"github.com/ashureev/salesdrill/internal/identity"
	"github.com/ashureev/salesdrill/internal/session"
)

const maxBodyBytes = 64 << 10

type startRequest struct {
	LLMChoice string `json:"llm_choice"`
}

type startResponse struct {
	SessionID        string         `json:"session_id"`
	CharacterInfo    domain.Persona `json:"character_info"`
	CurrentStage     int            `json:"current_stage"`
	StageDescription string         `json:"stage_description"`
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	UserInput string `json:"user_input"`
}

type chatResponse struct {
	ResponseText     string `json:"response_text"`
	InnerActivity    string `json:"inner_activity"`
	Conversation     string `json:"conversation"`
	CurrentStage     int    `json:"current_stage"`
	StageDescription string `json:"stage_description"`
	IsPass           bool   `json:"is_pass"`
	Finished         bool   `json:"finished"`
}

type endRequest struct {
	SessionID string `json:"session_id"`
}

type turnView struct {
	Question      string `json:"question"`
	InnerActivity string `json:"inner_activity"`
	Response      string `json:"response"`
}

type snapshotResponse struct {
	SessionID        string     `json:"session_id"`
	Vendor           string     `json:"vendor"`
	CurrentStage     int        `json:"current_stage"`
	StageDescription string     `json:"stage_description"`
	Finished         bool       `json:"finished"`
	Elaborated       bool       `json:"elaborated"`
	History          []turnView `json:"history"`
	Conversation     string     `json:"conversation"`
	CreatedAt        string     `json:"created_at"`
	LastActive       string     `json:"last_active"`
}

func newChatResponse(res session.TurnResult) chatResponse {
	return chatResponse{
		ResponseText:     res.Reply,
		InnerActivity:    res.InnerActivity,
		Conversation:     res.Conversation,
		CurrentStage:     res.Stage,
		StageDescription: res.StageDescription,
		IsPass:           res.Passed,
		Finished:         res.Finished,
	}
}

// RegisterRoutes registers the session routes, plus the bare /start,
// /chat and /end aliases older clients use.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/session", func(r chi.Router) {
		r.Post("/start", h.Start)
		r.Post("/chat", h.Chat)
		r.Post("/end", h.End)
		r.Get("/{id}", h.Get)
	})
	r.Post("/start", h.Start)
	r.Post("/chat", h.Chat)
	r.Post("/end", h.End)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// Start opens a session with the requested model vendor.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.sessions.Start(r.Context(), session.StartRequest{
		Vendor:   req.LLMChoice,
		Operator: identity.OperatorFromContext(r.Context()),
	})
	if err != nil {
		h.sessionError(w, "start", err)
		return
	}

	JSON(w, http.StatusOK, startResponse{
		SessionID:        res.SessionID,
		CharacterInfo:    res.Persona,
		CurrentStage:     res.Stage,
		StageDescription: res.StageDescription,
	})
}

// Chat runs one turn.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decode(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		Error(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if strings.TrimSpace(req.UserInput) == "" {
		Error(w, http.StatusBadRequest, "user_input is required")
		return
	}
	if !h.limiter.Allow(limiterKey(r)) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	res, err := h.sessions.Turn(r.Context(), req.SessionID, req.UserInput)
	if err != nil {
		h.sessionError(w, "chat", err)
		return
	}
	JSON(w, http.StatusOK, newChatResponse(res))
}

// End closes a session.
func (h *Handler) End(w http.ResponseWriter, r *http.Request) {
	var req endRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.sessions.End(r.Context(), req.SessionID); err != nil {
		h.sessionError(w, "end", err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"detail": "Session ended successfully."})
}

// Get returns a snapshot of a live session.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.sessionError(w, "get", err)
		return
	}

	history := make([]turnView, 0, len(snap.State.History))
	for _, t := range snap.State.History {
		history = append(history, turnView{Question: t.Question, InnerActivity: t.InnerActivity, Response: t.Response})
	}
	JSON(w, http.StatusOK, snapshotResponse{
		SessionID:        snap.SessionID,
		Vendor:           snap.Vendor,
		CurrentStage:     snap.State.Stage,
		StageDescription: snap.StageDescription,
		Finished:         snap.Finished,
		Elaborated:       snap.State.Elaboration != "",
		History:          history,
		Conversation:     conversation.RenderTranscript(snap.State.History),
		CreatedAt:        snap.CreatedAt.UTC().Format(time.RFC3339),
		LastActive:       snap.LastActive.UTC().Format(time.RFC3339),
	})
}

// limiterKey throttles by the operator the client presented, and by
// remote IP for clients that never send their identity back.
func limiterKey(r *http.Request) string {
	ctx := r.Context()
	if op := identity.OperatorFromContext(ctx); op != "" && !identity.OperatorIssued(ctx) {
		return op
	}
	return "ip:" + identity.IPFromRequest(r)
}
