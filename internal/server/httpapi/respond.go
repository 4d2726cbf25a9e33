package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Satyam1603/GoTogether/internal/common"
)

const maxBodyBytes = 1 << 20

type envelope struct {
	Data any `json:"data"`
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Data: data})
}

// apiError is a resolved failure ready to be written.
type apiError struct {
	status  int
	code    string
	message string
}

// errorTable maps domain errors to responses. The first match wins. An empty
// message means the error text itself is safe to show.
var errorTable = []struct {
	err error
	apiError
}{
	{common.ErrInvalidPhone, apiError{http.StatusBadRequest, "invalid_phone", ""}},
	{common.ErrInvalidEmail, apiError{http.StatusBadRequest, "invalid_email", ""}},
	{common.ErrValidation, apiError{http.StatusBadRequest, "validation_error", ""}},
	{common.ErrInvalidCredentials, apiError{http.StatusUnauthorized, "invalid_credentials", "invalid login or password"}},
	{common.ErrTokenExpired, apiError{http.StatusUnauthorized, "token_expired", "access token expired"}},
	{common.ErrInvalidToken, apiError{http.StatusUnauthorized, "invalid_token", "token is invalid or revoked"}},
	{common.ErrorUnauthorized, apiError{http.StatusUnauthorized, "unauthorized", "authentication required"}},
	{common.ErrVerificationPending, apiError{http.StatusForbidden, "verification_pending", "account is not verified yet"}},
	{common.ErrForbidden, apiError{http.StatusForbidden, "forbidden", "not allowed"}},
	{common.ErrorNotFound, apiError{http.StatusNotFound, "not_found", "not found"}},
	{common.ErrorAlreadyExists, apiError{http.StatusConflict, "already_exists", "an account with this email or phone already exists"}},
	{common.ErrRateLimited, apiError{http.StatusTooManyRequests, "rate_limited", "too many codes requested, try again later"}},
	{common.ErrDeliveryFailed, apiError{http.StatusBadGateway, "delivery_failed", "could not deliver the code, try again"}},
	{common.ErrExpired, apiError{http.StatusBadRequest, "expired", "code expired, request a new one"}},
	{common.ErrAlreadyConsumed, apiError{http.StatusBadRequest, "already_used", "code was already used"}},
	{common.ErrSuperseded, apiError{http.StatusBadRequest, "invalid_code", invalidCodeMessage}},
	{common.ErrMismatch, apiError{http.StatusBadRequest, "invalid_code", invalidCodeMessage}},
}

// invalidCodeMessage is shared by every "wrong code" outcome so a caller
// cannot tell an unknown user from a wrong code.
const invalidCodeMessage = "invalid or expired code"

func resolve(err error) (apiError, bool) {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			out := e.apiError
			if out.message == "" {
				out.message = err.Error()
			}
			return out, true
		}
	}
	return apiError{http.StatusInternalServerError, "internal", "internal error"}, false
}

func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	h.writeAPIError(w, r, err, resolve)
}

func (h *handlers) writeAPIError(w http.ResponseWriter, r *http.Request, err error, resolver func(error) (apiError, bool)) {
	ae, known := resolver(err)
	if !known {
		h.log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, ae.status, errorBody{Message: ae.message, Code: ae.code})
}

// resolveOTP hides which of "no challenge" and "wrong code" happened.
func resolveOTP(err error) (apiError, bool) {
	if errors.Is(err, common.ErrorNotFound) {
		return apiError{http.StatusBadRequest, "invalid_code", invalidCodeMessage}, true
	}
	return resolve(err)
}

// resolveEmailConfirm answers 410 for links that can never work again.
func resolveEmailConfirm(err error) (apiError, bool) {
	switch {
	case errors.Is(err, common.ErrExpired):
		return apiError{http.StatusGone, "expired", "verification link expired"}, true
	case errors.Is(err, common.ErrAlreadyConsumed):
		return apiError{http.StatusGone, "already_used", "verification link was already used"}, true
	case errors.Is(err, common.ErrSuperseded):
		return apiError{http.StatusGone, "superseded", "a newer verification link was sent"}, true
	case errors.Is(err, common.ErrorNotFound), errors.Is(err, common.ErrMismatch):
		return apiError{http.StatusBadRequest, "invalid_token", "invalid verification link"}, true
	}
	return resolve(err)
}

// decodeJSON reads a JSON body into dst. An empty body is accepted when
// optional is true.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF) && optional:
		return nil
	default:
		return fmt.Errorf("%w: malformed JSON body", common.ErrValidation)
	}
}

