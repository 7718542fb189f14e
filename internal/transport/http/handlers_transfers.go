package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"fundgate/internal/platform/middleware"
	"fundgate/internal/safeguard/models"
	id "fundgate/pkg/domain"
	dErrors "fundgate/pkg/domain-errors"
	"fundgate/pkg/platform/httputil"
)

type transferRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	AmountCents int64  `json:"amount_cents"`
	Note        string `json:"note,omitempty"`
}

type transferResponse struct {
	TransferID  string    `json:"transfer_id"`
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	AmountCents int64     `json:"amount_cents"`
	CompletedAt time.Time `json:"completed_at"`
}

type stagedResponse struct {
	StagingID   string    `json:"staging_id"`
	Status      string    `json:"status"`
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	AmountCents int64     `json:"amount_cents"`
	Note        string    `json:"note,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func toStagedResponse(t models.StagedTransfer) stagedResponse {
	return stagedResponse{
		StagingID:   t.ID.String(),
		Status:      string(t.Status),
		Source:      t.Source,
		Destination: t.Destination,
		AmountCents: t.AmountCents,
		Note:        t.Note,
		ExpiresAt:   t.ExpiresAt,
	}
}

// rateLimit consumes one message slot per authenticated request. Denials are
// journaled by the limiter itself; the transport only translates the verdict.
func (h *Handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		identity := id.Identity(middleware.GetIdentity(ctx))

		allowed, err := h.gate.CheckRate(ctx, identity)
		if err != nil {
			h.logger.ErrorContext(ctx, "rate limit check failed",
				"error", err, "request_id", middleware.GetRequestID(ctx))
			httputil.WriteError(w, err)
			return
		}
		if !allowed {
			h.setRateLimitHeaders(ctx, w, identity)
			httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests, slow down"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// setRateLimitHeaders decorates a throttled response with the window state so
// clients know when to retry. Best-effort: a status read failure only costs
// the headers.
func (h *Handler) setRateLimitHeaders(ctx context.Context, w http.ResponseWriter, identity id.Identity) {
	status, err := h.gate.RateStatus(ctx, identity)
	if err != nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(status.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(status.Remaining))
	if wait := time.Until(status.ResetAt); wait > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(wait/time.Second)+1))
	}
}

func (h *Handler) decodeTransfer(w http.ResponseWriter, r *http.Request) (models.TransferRequest, bool) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return models.TransferRequest{}, false
	}
	return models.TransferRequest{
		Identity:    id.Identity(middleware.GetIdentity(r.Context())),
		Source:      req.Source,
		Destination: req.Destination,
		AmountCents: req.AmountCents,
		Note:        req.Note,
	}, true
}

// handleTransfer runs a transfer through admission and execution in one call.
func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := h.decodeTransfer(w, r)
	if !ok {
		return
	}

	outcome, err := h.gate.AdmitAndExecute(ctx, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, transferResponse{
		TransferID:  outcome.TransferID.String(),
		Source:      outcome.Source,
		Destination: outcome.Destination,
		AmountCents: outcome.AmountCents,
		CompletedAt: outcome.CompletedAt,
	})
}

// handleStage parks a transfer for later confirmation.
func (h *Handler) handleStage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := h.decodeTransfer(w, r)
	if !ok {
		return
	}

	staged, err := h.gate.Stage(ctx, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toStagedResponse(staged))
}

func (h *Handler) stagingID(w http.ResponseWriter, r *http.Request) (id.StagingID, bool) {
	stagingID, err := id.ParseStagingID(chi.URLParam(r, "stagingID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.StagingID{}, false
	}
	return stagingID, true
}

// handleConfirm resolves a staged transfer and executes it.
func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stagingID, ok := h.stagingID(w, r)
	if !ok {
		return
	}

	actor := id.Identity(middleware.GetIdentity(ctx))
	outcome, err := h.gate.Confirm(ctx, stagingID, actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, transferResponse{
		TransferID:  outcome.TransferID.String(),
		Source:      outcome.Source,
		Destination: outcome.Destination,
		AmountCents: outcome.AmountCents,
		CompletedAt: outcome.CompletedAt,
	})
}

// handleCancel resolves a staged transfer as cancelled.
func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stagingID, ok := h.stagingID(w, r)
	if !ok {
		return
	}

	actor := id.Identity(middleware.GetIdentity(ctx))
	cancelled, err := h.gate.Cancel(ctx, stagingID, actor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toStagedResponse(cancelled))
}

// handlePending lists transfers awaiting confirmation.
func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.gate.Pending(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]stagedResponse, 0, len(pending))
	for _, t := range pending {
		out = append(out, toStagedResponse(t))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"pending": out})
}

// handleLimits reports the caller's remaining daily headroom.
func (h *Handler) handleLimits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := id.Identity(middleware.GetIdentity(ctx))

	report, err := h.gate.Remaining(ctx, identity)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}
