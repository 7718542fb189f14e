package httptransport

import (
	"net/http"
	"strconv"

	"fundgate/internal/audit"
	"fundgate/internal/platform/middleware"
	id "fundgate/pkg/domain"
	dErrors "fundgate/pkg/domain-errors"
	"fundgate/pkg/platform/httputil"
)

const defaultAuditPageSize = 200

// handleAuditEvents streams journal entries in append order. An identity
// query parameter narrows the view; limit caps the page size.
func (h *Handler) handleAuditEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := defaultAuditPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	events := h.ledger.All(ctx)
	if identity := r.URL.Query().Get("identity"); identity != "" {
		events = h.ledger.ByIdentity(ctx, id.Identity(identity))
	}

	collected := make([]audit.Event, 0, min(limit, defaultAuditPageSize))
	for event, err := range events {
		if err != nil {
			h.logger.ErrorContext(ctx, "audit read failed",
				"error", err, "request_id", middleware.GetRequestID(ctx))
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodePersistence, "failed to read audit journal"))
			return
		}
		collected = append(collected, event)
		if len(collected) >= limit {
			break
		}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": collected})
}
