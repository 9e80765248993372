package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"finplan/db"
	"finplan/models"
	"finplan/services/agent"
	"finplan/services/llm"
	"finplan/services/prompt"
)

type PlanHandler struct {
	runtime llm.Runtime
	agent   *agent.Service
	audit   db.AuditRepository // nil when auditing is disabled
	logger  zerolog.Logger

	homePurchaseModel string
	retirementModel   string
	requestTimeout    time.Duration
}

func NewPlanHandler(
	runtime llm.Runtime,
	agentService *agent.Service,
	audit db.AuditRepository,
	logger zerolog.Logger,
	homePurchaseModel, retirementModel string,
	requestTimeout time.Duration,
) *PlanHandler {
	return &PlanHandler{
		runtime:           runtime,
		agent:             agentService,
		audit:             audit,
		logger:            logger,
		homePurchaseModel: homePurchaseModel,
		retirementModel:   retirementModel,
		requestTimeout:    requestTimeout,
	}
}

func (h *PlanHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/plan-home-purchase", h.PlanHomePurchase).Methods("POST")
	router.HandleFunc("/plan-home-purchase/research", h.ResearchHomePurchase).Methods("POST")
	router.HandleFunc("/plan-retirement", h.PlanRetirement).Methods("POST")
	router.HandleFunc("/plan-retirement/research", h.ResearchRetirement).Methods("POST")
}

// PlanHomePurchase relays the model's answer as an incrementally streamed
// text/plain body.
func (h *PlanHandler) PlanHomePurchase(w http.ResponseWriter, r *http.Request) {
	var req models.HousePurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if err := req.Validate(h.homePurchaseModel); err != nil {
		h.writeValidationError(w, err)
		return
	}

	h.streamAnswer(w, r, "/plan-home-purchase", req.Model, prompt.HomePurchase(req))
}

func (h *PlanHandler) PlanRetirement(w http.ResponseWriter, r *http.Request) {
	var req models.RetirementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if err := req.Validate(h.retirementModel); err != nil {
		h.writeValidationError(w, err)
		return
	}

	h.streamAnswer(w, r, "/plan-retirement", req.Model, prompt.Retirement(req))
}

// ResearchHomePurchase runs the tool-augmented conversation loop and returns
// the final answer as a single JSON payload.
func (h *PlanHandler) ResearchHomePurchase(w http.ResponseWriter, r *http.Request) {
	var req models.HousePurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if err := req.Validate(h.homePurchaseModel); err != nil {
		h.writeValidationError(w, err)
		return
	}

	h.research(w, r, "/plan-home-purchase/research", req.Model, prompt.HomePurchaseResearch(req, time.Now()))
}

func (h *PlanHandler) ResearchRetirement(w http.ResponseWriter, r *http.Request) {
	var req models.RetirementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if err := req.Validate(h.retirementModel); err != nil {
		h.writeValidationError(w, err)
		return
	}

	h.research(w, r, "/plan-retirement/research", req.Model, prompt.RetirementResearch(req, time.Now()))
}

func (h *PlanHandler) streamAnswer(w http.ResponseWriter, r *http.Request, route, model, promptText string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeErrorResponse(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	conv := models.NewConversation(models.NewUserTurn(promptText))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	written := 0
	start := time.Now()
	err := h.runtime.Stream(ctx, model, conv, func(ctx context.Context, chunk []byte) error {
		if _, err := w.Write(chunk); err != nil {
			return err
		}
		flusher.Flush()
		written += len(chunk)
		return nil
	})
	if err != nil {
		if written == 0 {
			h.writeErrorResponse(w, http.StatusInternalServerError, err.Error())
			return
		}
		// Headers are already out; all we can do is log and drop the connection.
		h.logger.Error().Err(err).Str("route", route).Msg("stream aborted mid-response")
		return
	}

	h.recordAudit(route, model, 1, start, written)
}

func (h *PlanHandler) research(w http.ResponseWriter, r *http.Request, route, model, promptText string) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	conv := models.NewConversation(models.NewUserTurn(promptText))

	start := time.Now()
	answer, err := h.agent.Run(ctx, conv, model)
	if err != nil {
		var limitErr *agent.RoundLimitError
		if errors.As(err, &limitErr) {
			h.writeJSONResponse(w, http.StatusBadGateway, map[string]string{
				"error":          limitErr.Error(),
				"partial_answer": limitErr.LastContent,
			})
			return
		}
		h.logger.Error().Err(err).Str("route", route).Msg("research request failed")
		h.writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.recordAudit(route, model, conv.Rounds(), start, len(answer))
	h.writeJSONResponse(w, http.StatusOK, map[string]string{"answer": answer})
}

func (h *PlanHandler) recordAudit(route, model string, rounds int, start time.Time, answerChars int) {
	if h.audit == nil {
		return
	}
	audit := &models.PlanAudit{
		Route:       route,
		Model:       model,
		Rounds:      rounds,
		DurationMs:  time.Since(start).Milliseconds(),
		AnswerChars: answerChars,
	}
	if err := h.audit.RecordPlan(audit); err != nil {
		h.logger.Warn().Err(err).Str("route", route).Msg("failed to record plan audit")
	}
}

func (h *PlanHandler) writeValidationError(w http.ResponseWriter, err error) {
	var fieldErr *models.ValidationError
	if errors.As(err, &fieldErr) {
		h.writeJSONResponse(w, http.StatusBadRequest, map[string]string{
			"error": fieldErr.Message,
			"field": fieldErr.Field,
		})
		return
	}
	h.writeErrorResponse(w, http.StatusBadRequest, err.Error())
}

func (h *PlanHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (h *PlanHandler) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
