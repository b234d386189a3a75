package http

import (
	"net/http"

	"github.com/aussiebroadwan/edoras/internal/identity/service"
	"github.com/aussiebroadwan/edoras/pkg/httpx"
)

type AuthHandler struct {
	AuthService *service.AuthService
}

// HandleRegister creates a new account.
//
//	@Summary		Register an account
//	@Description	Creates an identity from email, username and password. Email is normalized to lower case.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		object			true	"email, username, password, first_name, last_name"
//	@Success		201		{object}	UserResponse	"Registered profile"
//	@Failure		400		{object}	ErrorResponse	"Validation failed or email/username already taken"
//	@Failure		429		{object}	ErrorResponse	"Rate limited"
//	@Router			/auth/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	in, err := httpx.DecodeObject(w, r, httpx.DefaultMaxBodyBytes)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}

	profile, err := h.AuthService.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, UserResponse{
		Message: "User registered successfully",
		User:    profile,
	})
}

// HandleLogin exchanges credentials for a session token.
//
//	@Summary		Log in
//	@Description	Verifies email and password and returns a session token. Unknown email, wrong password and inactive accounts are indistinguishable.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		object			true	"email, password"
//	@Success		200		{object}	LoginResponse	"Session token and profile"
//	@Failure		400		{object}	ErrorResponse	"Validation failed"
//	@Failure		401		{object}	ErrorResponse	"Invalid credentials"
//	@Failure		429		{object}	ErrorResponse	"Rate limited"
//	@Router			/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	in, err := httpx.DecodeObject(w, r, httpx.DefaultMaxBodyBytes)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}

	res, err := h.AuthService.Login(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, LoginResponse{
		Message:     "Login successful",
		AccessToken: res.Token.AccessToken,
		TokenType:   res.Token.TokenType,
		ExpiresIn:   res.Token.ExpiresIn,
		ExpiresAt:   res.Token.ExpiresAt,
		User:        res.Profile,
	})
}
