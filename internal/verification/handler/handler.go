package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"docverify/internal/verification/models"
	"docverify/internal/verification/policy"
	"docverify/internal/verification/ports"
	"docverify/internal/verification/session"
	dErrors "docverify/pkg/domain-errors"
	"docverify/pkg/platform/httputil"
	"docverify/pkg/platform/sentinel"
	"docverify/pkg/requestcontext"
)

// Service defines the session operations the handler exposes.
type Service interface {
	Run(ctx context.Context, req session.Request) (*models.Decision, error)
	VerifyDocument(ctx context.Context, req session.DocumentRequest) (*models.Decision, error)
}

// Handler wires verification endpoints to the session service and policy store.
type Handler struct {
	service  Service
	policies ports.PolicyStore
	logger   *slog.Logger
}

// New constructs a verification handler with its dependencies.
func New(service Service, policies ports.PolicyStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, policies: policies, logger: logger}
}

// Register mounts verification endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/verification/sessions", h.HandleCreateSession)
	r.Get("/verification/policies/{id}", h.HandleGetLatestPolicy)
	r.Get("/verification/policies/{id}/versions/{version}", h.HandleGetPolicyVersion)
}

// HandleCreateSession handles POST /verification/sessions.
func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[SessionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	sessionID := uuid.NewString()
	ctx = requestcontext.WithSessionID(ctx, sessionID)

	var (
		decision *models.Decision
		err      error
	)
	if req.Document != nil {
		decision, err = h.service.VerifyDocument(ctx, session.DocumentRequest{
			PolicyID:        req.PolicyID,
			Version:         req.Version,
			Document:        *req.Document,
			Facts:           req.Facts,
			ClassifierFacts: req.ClassifierFacts,
		})
	} else {
		decision, err = h.service.Run(ctx, session.Request{
			PolicyID: req.PolicyID,
			Version:  req.Version,
			Facts:    req.Facts,
			Signals:  req.Signals,
		})
	}
	if err != nil {
		h.logger.WarnContext(ctx, "verification session failed",
			"request_id", requestID,
			"session_id", sessionID,
			"policy_id", req.PolicyID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "verification session completed",
		"request_id", requestID,
		"session_id", sessionID,
		"policy_id", decision.PolicyID,
		"verdict", decision.Verdict,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, &SessionResponse{
		SessionID:   sessionID,
		Decision:    *decision,
		EvaluatedAt: requestcontext.Now(ctx).UTC(),
	})
}

// HandleGetLatestPolicy handles GET /verification/policies/{id}.
func (h *Handler) HandleGetLatestPolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	p, err := h.policies.Latest(ctx, id)
	if err != nil {
		h.writeStoreError(ctx, w, id, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPolicyResponse(p))
}

// HandleGetPolicyVersion handles GET /verification/policies/{id}/versions/{version}.
func (h *Handler) HandleGetPolicyVersion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	version, err := policy.CanonicalVersion(chi.URLParam(r, "version"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "version must be a semantic version"))
		return
	}
	p, err := h.policies.Get(ctx, id, version)
	if err != nil {
		h.writeStoreError(ctx, w, id, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPolicyResponse(p))
}

func (h *Handler) writeStoreError(ctx context.Context, w http.ResponseWriter, id string, err error) {
	var pe *policy.PolicyError
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "policy not found"))
		return
	case errors.As(err, &pe), errors.Is(err, sentinel.ErrInvalidState):
		err = dErrors.Wrap(err, dErrors.CodeInvariantViolation, "stored policy is invalid")
	case errors.Is(err, sentinel.ErrUnavailable):
		err = dErrors.Wrap(err, dErrors.CodeUnavailable, "policy store unavailable")
	default:
		err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to load policy")
	}
	h.logger.ErrorContext(ctx, "policy lookup failed",
		"request_id", requestcontext.RequestID(ctx),
		"policy_id", id,
		"error", err,
	)
	httputil.WriteError(w, err)
}
