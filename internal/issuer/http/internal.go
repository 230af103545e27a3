package http

import (
	"errors"
	"net/http"

	"github.com/agrilink/agrilink/internal/issuer/service"
	"github.com/agrilink/agrilink/pkg/authsdk"
	"github.com/agrilink/agrilink/pkg/httpx"
	"github.com/agrilink/agrilink/pkg/jwtx"
	"github.com/agrilink/agrilink/pkg/slogx"
)

// InternalHandler serves the service-to-service endpoints under /internal/v1.
// These are reachable only on the internal network and are not proxied by the
// gateway.
type InternalHandler struct {
	ValidationService *service.ValidationService
}

// HandleValidate godoc
//
//	@Summary		Validate an access token
//	@Description	Verifies a raw access token and returns the identity it carries.
//	@Description	An invalid token is a 200 with valid=false, not an error status.
//	@Tags			Internal
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ValidateRequest		true	"Raw access token"
//	@Success		200		{object}	authsdk.ValidationResult	"valid, subject, username, roles"
//	@Failure		400		{object}	httpx.ErrorBody				"error, status, message"
//	@Router			/internal/v1/validate [post].
func (h *InternalHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ValidateRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Token == "" {
		httpx.WriteError(w, http.StatusBadRequest,
			authsdk.ErrorCodeBadRequest, "token is required")
		return
	}

	result := h.ValidationService.ValidateToken(r.Context(), req.Token)
	httpx.WriteJSON(w, http.StatusOK, result)
}

// HandleUserInfo godoc
//
//	@Summary		Resolve the user behind a token
//	@Description	Verifies the bearer token and returns the account it belongs to.
//	@Description	Roles reflect the store, not the token, so recent grant changes win.
//	@Tags			Internal
//	@Produce		json
//	@Success		200	{object}	authsdk.UserInfoResponse	"userId, username, roles"
//	@Failure		401	{object}	httpx.ErrorBody				"error, status, message"
//	@Failure		404	{object}	httpx.ErrorBody				"error, status, message"
//	@Security		BearerAuth
//	@Router			/internal/v1/userinfo [get].
func (h *InternalHandler) HandleUserInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	token, ok := httpx.BearerToken(r)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized,
			authsdk.ErrorCodeInvalidToken, "bearer token required")
		return
	}

	u, err := h.ValidationService.GetUserInfo(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			httpx.WriteError(w, http.StatusNotFound,
				authsdk.ErrorCodeNotFound, "user no longer exists")
		case errors.Is(err, jwtx.ErrUpstream):
			httpx.WriteError(w, http.StatusServiceUnavailable,
				authsdk.ErrorCodeUpstreamUnavailable, "key source unavailable")
		default:
			log.Debug("userinfo token rejected", "err", err)
			httpx.WriteError(w, http.StatusUnauthorized,
				authsdk.ErrorCodeInvalidToken, "token verification failed")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.UserInfoResponse{
		UserID:   u.ID,
		Username: u.Username,
		Roles:    u.Roles,
	})
}

// HandleGetUser godoc
//
//	@Summary		Look up a user by id
//	@Tags			Internal
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string						true	"User id"
//	@Success		200	{object}	authsdk.UserInfoResponse	"userId, username, roles"
//	@Failure		401	{object}	httpx.ErrorBody				"error, status, message"
//	@Failure		403	{object}	httpx.ErrorBody				"error, status, message"
//	@Failure		404	{object}	httpx.ErrorBody				"error, status, message"
//	@Failure		500	{object}	httpx.ErrorBody				"error, status, message"
//	@Router			/internal/v1/users/{id} [get].
func (h *InternalHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	id := r.PathValue("id")
	u, err := h.ValidationService.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			httpx.WriteError(w, http.StatusNotFound,
				authsdk.ErrorCodeNotFound, "no such user")
			return
		}
		log.Error("user lookup failed", "err", err, "user_id", id)
		httpx.WriteError(w, http.StatusInternalServerError,
			authsdk.ErrorCodeServerError, "internal error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.UserInfoResponse{
		UserID:   u.ID,
		Username: u.Username,
		Roles:    u.Roles,
	})
}
