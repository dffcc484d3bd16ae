package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dsrengine/internal/export"
	"dsrengine/internal/requests/models"
	id "dsrengine/pkg/domain"
	"dsrengine/pkg/platform/httputil"
	"dsrengine/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service,Authorizer

// Service defines the privacy request operations exposed over HTTP.
type Service interface {
	CreateRequest(ctx context.Context, userID id.UserID, kind models.Kind, categories []string) (*models.CreateResult, error)
	GetStatus(ctx context.Context, requestID id.RequestID) (*models.Request, error)
	Cancel(ctx context.Context, requestID id.RequestID) (*models.Request, error)
	Export(ctx context.Context, requestID id.RequestID) (*models.DownloadHandle, error)
	ResolveDownload(ctx context.Context, token string) (export.Download, error)
	ListForUser(ctx context.Context, userID id.UserID) ([]*models.Request, error)
}

// Authorizer decides whether the caller may act on userID.
type Authorizer interface {
	AuthorizeUser(ctx context.Context, userID string) error
}

// Handler handles privacy request endpoints.
type Handler struct {
	logger   *slog.Logger
	requests Service
	authz    Authorizer
}

func New(requests Service, authz Authorizer, logger *slog.Logger) *Handler {
	return &Handler{
		logger:   logger,
		requests: requests,
		authz:    authz,
	}
}

// Register registers the privacy request routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/privacy-requests", h.HandleCreate)
	r.Get("/privacy-requests/{id}", h.HandleGetStatus)
	r.Post("/privacy-requests/{id}/cancel", h.HandleCancel)
	r.Get("/privacy-requests/{id}/export", h.HandleExport)
	r.Get("/users/{userID}/privacy-requests", h.HandleListForUser)
}

// RegisterDownloads registers the export download route. The token is the
// credential, so it is mounted outside bearer authentication.
func (h *Handler) RegisterDownloads(r chi.Router) {
	r.Get("/exports/{token}", h.HandleDownload)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.CreateRequest](w, r, h.logger)
	if !ok {
		return
	}
	userID, err := id.ParseUserID(req.UserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !h.authorize(w, r, userID) {
		return
	}

	res, err := h.requests.CreateRequest(ctx, userID, models.Kind(req.Kind), req.Categories)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to create privacy request",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusAccepted
	}
	httputil.WriteJSON(w, status, models.CreateResponse{
		RequestID: res.Request.ID,
		State:     res.Request.State,
		Created:   res.Created,
	})
}

func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	req, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToResponse(req))
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	cancelled, err := h.requests.Cancel(ctx, req.ID)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to cancel privacy request",
			"request_id", requestcontext.RequestID(ctx),
			"privacy_request_id", req.ID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.ToResponse(cancelled))
}

func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	handle, err := h.requests.Export(ctx, req.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, handle)
}

// HandleDownload serves the export bytes, or redirects to object storage.
func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dl, err := h.requests.ResolveDownload(ctx, chi.URLParam(r, "token"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !h.authorize(w, r, dl.Handle.UserID) {
		return
	}
	if dl.URL != "" {
		http.Redirect(w, r, dl.URL, http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+dl.Handle.RequestID.String()+`.json"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(dl.Payload); err != nil {
		h.logger.WarnContext(ctx, "failed to write export payload", "error", err)
	}
}

func (h *Handler) HandleListForUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !h.authorize(w, r, userID) {
		return
	}
	reqs, err := h.requests.ListForUser(ctx, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	res := models.ListResponse{Requests: make([]models.RequestResponse, 0, len(reqs))}
	for _, req := range reqs {
		res.Requests = append(res.Requests, models.ToResponse(req))
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// loadOwned parses the {id} path parameter, loads the request and checks the
// caller may act on its user.
func (h *Handler) loadOwned(w http.ResponseWriter, r *http.Request) (*models.Request, bool) {
	ctx := r.Context()
	requestID, err := id.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	req, err := h.requests.GetStatus(ctx, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	if !h.authorize(w, r, req.UserID) {
		return nil, false
	}
	return req, true
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, userID id.UserID) bool {
	if err := h.authz.AuthorizeUser(r.Context(), userID.String()); err != nil {
		h.logger.WarnContext(r.Context(), "caller not allowed to act on user",
			"request_id", requestcontext.RequestID(r.Context()),
			"user_id", userID,
		)
		httputil.WriteError(w, err)
		return false
	}
	return true
}
