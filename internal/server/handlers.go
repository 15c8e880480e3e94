package server

import (
	"encoding/json"
	"net/http"
	"time"

	orchestration "github.com/koscakluka/ema-speaker/core"
)

type handler struct {
	speaker Speaker
}

type submitRequest struct {
	Content string `json:"content"`
}

type submitResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

type cleanQueueResponse struct {
	Message string `json:"message"`
	Removed int    `json:"removed"`
}

type interruptResponse struct {
	Message     string `json:"message"`
	Interrupted bool   `json:"interrupted"`
}

type statusResponse struct {
	State         orchestration.State `json:"state"`
	Pending       int                 `json:"pending"`
	HistoryLength int                 `json:"history_length"`
	Speaking      bool                `json:"speaking"`
	LastTurn      *turnResponse       `json:"last_turn,omitempty"`
}

type turnResponse struct {
	ID                string                  `json:"id"`
	SourceFragmentIDs []string                `json:"source_fragment_ids"`
	State             orchestration.TurnState `json:"state"`
	ReplyText         string                  `json:"reply_text,omitempty"`
	Error             string                  `json:"error,omitempty"`
	StartedAt         time.Time               `json:"started_at"`
	DurationMs        int64                   `json:"duration_ms"`
}

// Submit handles POST /submit
func (h *handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ack := h.speaker.Submit(req.Content)
	respondJSON(w, http.StatusOK, submitResponse{
		Message: "Request received and processing started",
		ID:      ack.FragmentID,
	})
}

// CleanQueue handles POST /queue/clean
func (h *handler) CleanQueue(w http.ResponseWriter, r *http.Request) {
	removed := h.speaker.ResetQueue()
	respondJSON(w, http.StatusOK, cleanQueueResponse{
		Message: "Queue has been cleaned. All records removed.",
		Removed: removed,
	})
}

// Interrupt handles POST /interrupt
func (h *handler) Interrupt(w http.ResponseWriter, r *http.Request) {
	result := h.speaker.Interrupt()
	message := "No active speech synthesis to interrupt"
	if result.Interrupted {
		message = "Speech synthesis interrupted"
	}
	respondJSON(w, http.StatusOK, interruptResponse{
		Message:     message,
		Interrupted: result.Interrupted,
	})
}

func (h *handler) Status(w http.ResponseWriter, r *http.Request) {
	status := h.speaker.Status()
	resp := statusResponse{
		State:         status.State,
		Pending:       status.Pending,
		HistoryLength: status.HistoryLength,
		Speaking:      status.Speaking,
	}
	if turn := status.LastTurn; turn != nil {
		resp.LastTurn = &turnResponse{
			ID:                turn.ID,
			SourceFragmentIDs: turn.SourceFragmentIDs,
			State:             turn.State,
			ReplyText:         turn.ReplyText,
			StartedAt:         turn.StartedAt,
			DurationMs:        turn.Duration().Milliseconds(),
		}
		if turn.Err != nil {
			resp.LastTurn.Error = turn.Err.Error()
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
