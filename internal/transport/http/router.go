// Package httptransport is the thin HTTP layer. Handlers delegate to the
// safeguard gate without embedding policy logic so transport concerns stay
// isolated from admission decisions.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fundgate/internal/audit"
	"fundgate/internal/platform/middleware"
	"fundgate/internal/safeguard/gate"
	"fundgate/internal/safeguard/models"
	id "fundgate/pkg/domain"
)

// Gate is the admission surface the transport consumes.
type Gate interface {
	AdmitAndExecute(ctx context.Context, req models.TransferRequest) (models.TransferOutcome, error)
	Stage(ctx context.Context, req models.TransferRequest) (models.StagedTransfer, error)
	Confirm(ctx context.Context, stagingID id.StagingID, actor id.Identity) (models.TransferOutcome, error)
	Cancel(ctx context.Context, stagingID id.StagingID, actor id.Identity) (models.StagedTransfer, error)
	CheckRate(ctx context.Context, identity id.Identity) (bool, error)
	RateStatus(ctx context.Context, identity id.Identity) (*models.RateLimitResult, error)
	Pending(ctx context.Context) ([]models.StagedTransfer, error)
	Remaining(ctx context.Context, identity id.Identity) (gate.LimitsReport, error)
}

// Handler holds the transport dependencies for all safeguard endpoints.
type Handler struct {
	gate         Gate
	ledger       audit.Ledger
	logger       *slog.Logger
	jwtValidator middleware.JWTValidator
}

func NewHandler(g Gate, ledger audit.Ledger, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		gate:         g,
		ledger:       ledger,
		logger:       logger,
		jwtValidator: jwtValidator,
	}
}

// NewRouter wires every endpoint. The transfer surface sits behind auth and
// the per-identity message rate limit; health and metrics stay open.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(h.logger))

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	api := chi.NewRouter()
	api.Use(middleware.Timeout(30 * time.Second))
	api.Use(middleware.ContentTypeJSON)
	api.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	api.Use(h.rateLimit)

	api.Post("/transfers", h.handleTransfer)
	api.Post("/transfers/stage", h.handleStage)
	api.Post("/transfers/{stagingID}/confirm", h.handleConfirm)
	api.Post("/transfers/{stagingID}/cancel", h.handleCancel)
	api.Get("/transfers/pending", h.handlePending)
	api.Get("/limits", h.handleLimits)
	api.Get("/audit/events", h.handleAuditEvents)

	r.Mount("/", api)
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
