package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/edoras/internal/identity/domain"
	"github.com/aussiebroadwan/edoras/internal/identity/service"
	"github.com/aussiebroadwan/edoras/pkg/httpx"
)

type UsersHandler struct {
	AccountService *service.AccountService
}

// identity returns the caller resolved by the authn middleware.
func identity(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := httpx.SubjectFromContext(r.Context())
	if !ok || id == "" {
		writeError(w, r, domain.ErrTokenInvalid)
		return "", false
	}
	return id, true
}

// HandleGetMe returns the caller's profile.
//
//	@Summary		Get my profile
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	UserResponse	"Owner profile, includes is_admin"
//	@Failure		401	{object}	ErrorResponse	"Invalid or expired token"
//	@Failure		404	{object}	ErrorResponse	"Account no longer exists"
//	@Router			/users/me [get].
func (h *UsersHandler) HandleGetMe(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	profile, err := h.AccountService.GetProfile(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, UserResponse{User: profile})
}

// HandleUpdateMe applies a partial profile update.
//
//	@Summary		Update my profile
//	@Description	Only keys present in the body are changed. null or "" clears a field.
//	@Tags			Users
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		object			true	"first_name, last_name, avatar_url"
//	@Success		200		{object}	UserResponse	"Updated profile"
//	@Failure		400		{object}	ErrorResponse	"Validation failed"
//	@Failure		401		{object}	ErrorResponse	"Invalid or expired token"
//	@Failure		404		{object}	ErrorResponse	"Account no longer exists"
//	@Router			/users/me [put].
func (h *UsersHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	in, err := httpx.DecodeObject(w, r, httpx.DefaultMaxBodyBytes)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}

	profile, err := h.AccountService.UpdateProfile(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, UserResponse{
		Message: "Profile updated successfully",
		User:    profile,
	})
}

// HandleChangePassword rotates the caller's password.
//
//	@Summary		Change my password
//	@Description	Existing session tokens stay valid until they expire.
//	@Tags			Users
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		object				true	"current_password, new_password"
//	@Success		200		{object}	MessageResponse		"Password changed"
//	@Failure		400		{object}	ErrorResponse		"Validation failed or current password incorrect"
//	@Failure		401		{object}	ErrorResponse		"Invalid or expired token"
//	@Failure		404		{object}	ErrorResponse		"Account no longer exists"
//	@Router			/users/me/password [put].
func (h *UsersHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	in, err := httpx.DecodeObject(w, r, httpx.DefaultMaxBodyBytes)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}

	err = h.AccountService.ChangePassword(r.Context(), id, in)
	switch {
	case errors.Is(err, domain.ErrBadCredential):
		writeErrorStatus(w, r, err, http.StatusBadRequest, "current password is incorrect")
		return
	case err != nil:
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Password changed successfully"})
}

// HandleDeleteMe permanently deletes the caller's account.
//
//	@Summary		Delete my account
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	MessageResponse	"Account deleted"
//	@Failure		401	{object}	ErrorResponse	"Invalid or expired token"
//	@Failure		404	{object}	ErrorResponse	"Account no longer exists"
//	@Router			/users/me [delete].
func (h *UsersHandler) HandleDeleteMe(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	if err := h.AccountService.DeleteAccount(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Account deleted successfully"})
}

// HandleList lists accounts for admins.
//
//	@Summary		List accounts
//	@Description	Admin only. Ordered by creation time.
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Param			page		query		int				false	"Page number, default 1"
//	@Param			per_page	query		int				false	"Page size, default 20, max 100"
//	@Success		200			{object}	UsersResponse	"One page of accounts"
//	@Failure		401			{object}	ErrorResponse	"Invalid or expired token"
//	@Failure		403			{object}	ErrorResponse	"Admin access required"
//	@Router			/users [get].
func (h *UsersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	page := queryInt(q.Get("page"), 1)
	perPage := queryInt(q.Get("per_page"), domain.DefaultPageSize)

	res, err := h.AccountService.ListAccounts(r.Context(), id, page, perPage)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, UsersResponse{Users: res.Items, Pagination: res.Pagination})
}

// queryInt parses v, falling back to def when it is missing or not a number.
func queryInt(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
