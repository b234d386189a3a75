package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/edoras/internal/identity/domain"
	"github.com/aussiebroadwan/edoras/pkg/httpx"
	"github.com/aussiebroadwan/edoras/pkg/slogx"
)

// ErrorResponse documents the error envelope for swagger.
type ErrorResponse = httpx.ErrorBody

var kindStatus = map[domain.Kind]int{
	domain.KindValidation:    http.StatusBadRequest,
	domain.KindInvalidToken:  http.StatusUnauthorized,
	domain.KindTokenExpired:  http.StatusUnauthorized,
	domain.KindBadCredential: http.StatusUnauthorized,
	domain.KindForbidden:     http.StatusForbidden,
	domain.KindNotFound:      http.StatusNotFound,
	domain.KindTimeout:       http.StatusGatewayTimeout,
	domain.KindInternal:      http.StatusInternalServerError,
}

// Messages are fixed per kind so no internal detail reaches the client.
var kindMessage = map[domain.Kind]string{
	domain.KindValidation:    "validation failed",
	domain.KindInvalidToken:  "invalid token",
	domain.KindTokenExpired:  "token expired",
	domain.KindBadCredential: "invalid credentials",
	domain.KindForbidden:     "admin access required",
	domain.KindNotFound:      "user not found",
	domain.KindTimeout:       "dependency timed out",
	domain.KindInternal:      "internal server error",
}

// writeError renders err with the status of its kind.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeErrorStatus(w, r, err, 0, "")
}

// writeErrorStatus is writeError with an overridden status and message.
// Zero values keep the defaults of the kind.
func writeErrorStatus(w http.ResponseWriter, r *http.Request, err error, status int, message string) {
	kind := domain.KindOf(err)
	if status == 0 {
		status = kindStatus[kind]
	}
	if message == "" {
		message = kindMessage[kind]
	}

	var fields map[string]string
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		fields = ve.Fields
	}

	log := slogx.FromContext(r.Context())
	if kind == domain.KindInternal || kind == domain.KindTimeout {
		log.Error("request failed", "kind", kind, "err", err)
	} else {
		log.Debug("request rejected", "kind", kind, "err", err)
	}

	httpx.WriteError(w, status, string(kind), message, fields)
}

// writeBodyError answers a request whose body could not be read as an object.
func writeBodyError(w http.ResponseWriter, r *http.Request, err error) {
	msg := "request body must be a JSON object"
	switch {
	case errors.Is(err, httpx.ErrEmptyBody):
		msg = "request body is required"
	case errors.Is(err, httpx.ErrBodyTooLarge):
		msg = "request body too large"
	}
	slogx.FromContext(r.Context()).Debug("unreadable request body", "err", err)
	httpx.WriteError(w, http.StatusBadRequest, string(domain.KindValidation), msg, nil)
}

func denyAuth(w http.ResponseWriter, r *http.Request, err error) {
	writeErrorStatus(w, r, err, http.StatusUnauthorized, "")
}
