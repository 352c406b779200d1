package email

import (
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("email")

// Handler simulates an outbound mail relay: it validates the message, waits
// for a random delivery latency and reports it as sent.
type Handler struct {
	logger   *slog.Logger
	maxDelay time.Duration
	sleep    func(time.Duration)
	sent     metric.Int64Counter
}

func NewHandler(logger *slog.Logger, maxDelay time.Duration) (*Handler, error) {
	sent, err := meter.Int64Counter("emails.sent",
		metric.WithDescription("Emails accepted for delivery"),
	)
	if err != nil {
		return nil, err
	}

	return &Handler{
		logger:   logger,
		maxDelay: maxDelay,
		sleep:    time.Sleep,
		sent:     sent,
	}, nil
}

type sendRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type sendResponse struct {
	Status string `json:"status"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := mail.ParseAddress(req.To); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid recipient")
		return
	}
	if strings.TrimSpace(req.Subject) == "" {
		h.writeError(w, http.StatusBadRequest, "subject is required")
		return
	}

	if h.maxDelay > 0 {
		h.sleep(rand.N(h.maxDelay))
	}

	h.sent.Add(r.Context(), 1)
	h.logger.Info("email sent", "to", req.To, "subject", req.Subject)

	h.writeJSON(w, http.StatusOK, sendResponse{Status: "sent"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
