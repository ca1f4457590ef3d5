package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/content-dashboard/internal/apperror"
	"github.com/sakif/content-dashboard/internal/auth"
	"github.com/sakif/content-dashboard/internal/model"
)

// AllowList is implemented by *service.AllowListService.
type AllowList interface {
	Add(ctx context.Context, email, invitedBy string) (*model.AllowedEmail, error)
	Remove(ctx context.Context, email string) error
	List(ctx context.Context) ([]model.AllowedEmail, error)
}

// AdminHandler manages the login allow-list. Every route is admin-only;
// the role check happens in the router.
type AdminHandler struct {
	allowList AllowList
	logger    *slog.Logger
}

func NewAdminHandler(allowList AllowList, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{allowList: allowList, logger: logger}
}

type addAllowedEmailRequest struct {
	Email string `json:"email"`
}

// HandleList serves GET /api/admin/allowed-emails.
func (h *AdminHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.allowList.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleAdd serves POST /api/admin/allowed-emails with {"email": "..."}.
// The inviting admin is taken from the session.
func (h *AdminHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req addAllowedEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	id, _ := auth.IdentityFromContext(r.Context())
	entry, err := h.allowList.Add(r.Context(), req.Email, id.Email)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// HandleRemove serves DELETE /api/admin/allowed-emails/{email}.
func (h *AdminHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil || email == "" {
		writeError(w, h.logger, apperror.ValidationFailed("email", "a valid email address is required"))
		return
	}
	if err := h.allowList.Remove(r.Context(), email); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "removed"})
}
