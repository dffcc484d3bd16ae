package handler

import (
	"context"
	"iter"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"dsrengine/internal/consent/models"
	id "dsrengine/pkg/domain"
	dErrors "dsrengine/pkg/domain-errors"
	"dsrengine/pkg/platform/httputil"
	"dsrengine/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service,Authorizer

// Service defines the consent operations exposed over HTTP.
type Service interface {
	RecordConsent(ctx context.Context, userID id.UserID, purpose string, granted bool) (*models.RecordResult, error)
	CurrentConsent(ctx context.Context, userID id.UserID, purpose string) (bool, error)
	History(ctx context.Context, userID id.UserID, purpose string) iter.Seq2[models.Record, error]
	Preferences(ctx context.Context, userID id.UserID) (*models.Preferences, error)
}

// Authorizer decides whether the caller may act on userID.
type Authorizer interface {
	AuthorizeUser(ctx context.Context, userID string) error
}

// Handler handles consent endpoints.
type Handler struct {
	logger  *slog.Logger
	consent Service
	authz   Authorizer
}

// New creates a new consent Handler.
func New(consent Service, authz Authorizer, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		consent: consent,
		authz:   authz,
	}
}

// Register registers the consent routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/consent", h.HandleRecordConsent)
	r.Get("/consent", h.HandleCurrentConsent)
	r.Get("/consent/history", h.HandleHistory)
	r.Get("/users/{userID}/preferences", h.HandlePreferences)
}

func (h *Handler) HandleRecordConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.RecordConsentRequest](w, r, h.logger)
	if !ok {
		return
	}
	userID, ok := h.authorizedUser(w, r, req.UserID)
	if !ok {
		return
	}

	res, err := h.consent.RecordConsent(ctx, userID, req.Purpose, *req.Granted)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to record consent",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.RecordConsentResponse{
		Changed: res.Changed,
		Version: res.Version,
	})
}

func (h *Handler) HandleCurrentConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, purpose, ok := h.userAndPurpose(w, r)
	if !ok {
		return
	}

	granted, err := h.consent.CurrentConsent(ctx, userID, purpose)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read consent",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.CurrentConsentResponse{
		UserID:  userID,
		Purpose: purpose,
		Granted: granted,
	})
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, purpose, ok := h.userAndPurpose(w, r)
	if !ok {
		return
	}

	res := models.HistoryResponse{Records: []models.Record{}}
	for record, err := range h.consent.History(ctx, userID, purpose) {
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to read consent history",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}
		res.Records = append(res.Records, record)
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) HandlePreferences(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.authorizedUser(w, r, chi.URLParam(r, "userID"))
	if !ok {
		return
	}

	prefs, err := h.consent.Preferences(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read preferences",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, prefs)
}

func (h *Handler) userAndPurpose(w http.ResponseWriter, r *http.Request) (id.UserID, string, bool) {
	q := r.URL.Query()
	purpose := strings.ToLower(strings.TrimSpace(q.Get("purpose")))
	if purpose == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "purpose is required"))
		return "", "", false
	}
	userID, ok := h.authorizedUser(w, r, q.Get("user_id"))
	if !ok {
		return "", "", false
	}
	return userID, purpose, true
}

// authorizedUser parses raw and checks the caller may act on it.
func (h *Handler) authorizedUser(w http.ResponseWriter, r *http.Request, raw string) (id.UserID, bool) {
	userID, err := id.ParseUserID(raw)
	if err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	if err := h.authz.AuthorizeUser(r.Context(), userID.String()); err != nil {
		h.logger.WarnContext(r.Context(), "caller not allowed to act on user",
			"request_id", requestcontext.RequestID(r.Context()),
			"user_id", userID,
		)
		httputil.WriteError(w, err)
		return "", false
	}
	return userID, true
}
