package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/agrilink/agrilink/internal/issuer/service"
	"github.com/agrilink/agrilink/pkg/authsdk"
	"github.com/agrilink/agrilink/pkg/httpx"
	"github.com/agrilink/agrilink/pkg/slogx"
)

// AuthHandler serves the public authentication endpoints under /v1/auth.
// All endpoints accept and produce application/json.
type AuthHandler struct {
	TokenService *service.TokenService
}

// HandleLogin godoc
//
//	@Summary		Login
//	@Description	Exchanges a username and password for an access/refresh token pair.
//	@Description	A new login revokes the user's previous refresh tokens unless the
//	@Description	service is configured for multiple concurrent sessions.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.TokenResponse	"accessToken, refreshToken, expiresIn"
//	@Failure		400		{object}	httpx.ErrorBody			"error, status, message"
//	@Failure		401		{object}	httpx.ErrorBody			"error, status, message"
//	@Failure		500		{object}	httpx.ErrorBody			"error, status, message"
//	@Header			200		{string}	Cache-Control			"no-store"
//	@Router			/v1/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.LoginRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest,
			authsdk.ErrorCodeBadRequest, "username and password are required")
		return
	}

	pair, err := h.TokenService.Login(ctx, username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			httpx.WriteError(w, http.StatusUnauthorized,
				authsdk.ErrorCodeInvalidCredentials, "invalid username or password")
			return
		}
		log.Error("login failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError,
			authsdk.ErrorCodeServerError, "internal error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    int(pair.ExpiresIn.Seconds()),
	})
}

// HandleRefresh godoc
//
//	@Summary		Refresh
//	@Description	Rotates a refresh token: the presented token is revoked and a fresh
//	@Description	access/refresh pair is issued. A revoked or already-used token is
//	@Description	rejected, so only one caller wins a concurrent refresh race.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RefreshRequest	true	"Refresh token"
//	@Success		200		{object}	authsdk.TokenResponse	"accessToken, refreshToken, expiresIn"
//	@Failure		400		{object}	httpx.ErrorBody			"error, status, message"
//	@Failure		401		{object}	httpx.ErrorBody			"error, status, message"
//	@Failure		500		{object}	httpx.ErrorBody			"error, status, message"
//	@Header			200		{string}	Cache-Control			"no-store"
//	@Router			/v1/auth/refresh [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.RefreshRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest,
			authsdk.ErrorCodeBadRequest, "refreshToken is required")
		return
	}

	pair, err := h.TokenService.Refresh(ctx, req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRefreshRevoked):
			httpx.WriteError(w, http.StatusUnauthorized,
				authsdk.ErrorCodeRefreshRevoked, "refresh token has been revoked")
		case errors.Is(err, service.ErrRefreshExpired):
			httpx.WriteError(w, http.StatusUnauthorized,
				authsdk.ErrorCodeRefreshExpired, "refresh token has expired")
		case errors.Is(err, service.ErrInvalidRefresh):
			httpx.WriteError(w, http.StatusUnauthorized,
				authsdk.ErrorCodeInvalidToken, "refresh token is not recognised")
		default:
			log.Error("refresh failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError,
				authsdk.ErrorCodeServerError, "internal error")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    int(pair.ExpiresIn.Seconds()),
	})
}

// HandleLogout godoc
//
//	@Summary		Logout
//	@Description	Revokes the presented refresh token. Succeeds whether or not the
//	@Description	token was still live, so logout is idempotent.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body	authsdk.LogoutRequest	true	"Refresh token to revoke"
//	@Success		204		"No Content"
//	@Failure		400		{object}	httpx.ErrorBody	"error, status, message"
//	@Failure		500		{object}	httpx.ErrorBody	"error, status, message"
//	@Router			/v1/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.LogoutRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest,
			authsdk.ErrorCodeBadRequest, "refreshToken is required")
		return
	}

	if err := h.TokenService.RevokeRefreshToken(ctx, req.RefreshToken); err != nil {
		log.Error("logout failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError,
			authsdk.ErrorCodeServerError, "internal error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleLogoutAll godoc
//
//	@Summary		Logout everywhere
//	@Description	Revokes every refresh token belonging to the authenticated user.
//	@Tags			Auth
//	@Produce		json
//	@Success		204	"No Content"
//	@Failure		401	{object}	httpx.ErrorBody	"error, status, message"
//	@Failure		500	{object}	httpx.ErrorBody	"error, status, message"
//	@Security		BearerAuth
//	@Router			/v1/auth/logout-all [post].
func (h *AuthHandler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := ctx.Value(httpx.CtxKeyUserID).(string)
	if !ok || userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized,
			authsdk.ErrorCodeInvalidToken, "authentication required")
		return
	}

	if err := h.TokenService.RevokeAllForUser(ctx, userID); err != nil {
		log.Error("logout-all failed", "err", err, "user_id", userID)
		httpx.WriteError(w, http.StatusInternalServerError,
			authsdk.ErrorCodeServerError, "internal error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// decodeJSONBody decodes a JSON request body into dst, writing a 400 and
// returning false on malformed input or the wrong content type.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/json") {
		httpx.WriteError(w, http.StatusBadRequest,
			authsdk.ErrorCodeBadRequest, "Content-Type must be application/json")
		return false
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		httpx.WriteError(w, http.StatusBadRequest,
			authsdk.ErrorCodeBadRequest, "request body is not valid JSON")
		return false
	}
	return true
}
