package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Satyam1603/GoTogether/internal/common"
	"github.com/Satyam1603/GoTogether/internal/server/services"
)

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, pair, err := h.deps.Users.Register(r.Context(), services.RegisterRequest{
		Email:              req.Email,
		Phone:              req.Phone,
		Password:           req.Password,
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		Role:               req.Role,
		VerificationMethod: req.VerificationMethod,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, authResponse{User: toUserResponse(user), tokenResponse: toTokenResponse(pair)})
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	login := req.Login
	for _, alt := range []string{req.Email, req.Phone} {
		if login == "" {
			login = alt
		}
	}

	user, pair, err := h.deps.Users.Login(r.Context(), login, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, authResponse{User: toUserResponse(user), tokenResponse: toTokenResponse(pair)})
}

func (h *handlers) refreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	pair, err := h.deps.Tokens.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, toTokenResponse(pair))
}

// logout is authorized by the refresh token in the body, not by the access
// token, so it works after the access token expired. It always answers 204;
// revoking is best effort.
func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	_ = decodeJSON(w, r, &req, true)

	if err := h.deps.Users.Logout(r.Context(), req.RefreshToken); err != nil {
		h.log.Warn(r.Context(), "logout revoke failed", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) revokeToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	_ = decodeJSON(w, r, &req, true)

	if err := h.deps.Tokens.Revoke(r.Context(), chi.URLParam(r, "id"), req.RefreshToken); err != nil {
		h.log.Warn(r.Context(), "revoke failed", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) revokeAll(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Tokens.RevokeAll(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) verifyPhone(w http.ResponseWriter, r *http.Request) {
	var req verifyPhoneRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.sendChallenge(w, r, req.Phone, common.PurposePhone)
}

func (h *handlers) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.sendChallenge(w, r, req.Email, common.PurposeEmail)
}

func (h *handlers) sendChallenge(w http.ResponseWriter, r *http.Request, contact, purpose string) {
	c, err := h.deps.Verification.Resend(r.Context(), chi.URLParam(r, "id"), contact, purpose)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusAccepted, challengeResponse{ExpiresAt: c.ExpiresAt})
}

func (h *handlers) verifyOTP(w http.ResponseWriter, r *http.Request) {
	otp := strings.TrimSpace(r.URL.Query().Get("otp"))
	if otp == "" {
		h.writeError(w, r, fmt.Errorf("%w: otp is required", common.ErrValidation))
		return
	}

	user, err := h.deps.Verification.VerifyChallenge(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("phone"), common.PurposePhone, otp)
	if err != nil {
		h.writeAPIError(w, r, err, resolveOTP)
		return
	}
	writeData(w, http.StatusOK, userEnvelope{User: toUserResponse(user)})
}

func (h *handlers) verifyEmailConfirm(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		h.writeError(w, r, fmt.Errorf("%w: token is required", common.ErrValidation))
		return
	}

	user, err := h.deps.Verification.ConfirmEmailToken(r.Context(), token)
	if err != nil {
		h.writeAPIError(w, r, err, resolveEmailConfirm)
		return
	}
	writeData(w, http.StatusOK, userEnvelope{User: toUserResponse(user)})
}

func (h *handlers) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.deps.Users.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, userEnvelope{User: toUserResponse(user)})
}

func (h *handlers) verificationStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.Users.VerificationStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, verificationStatusResponse{
		Method:        st.Method,
		EmailVerified: st.EmailVerified,
		PhoneVerified: st.PhoneVerified,
		Active:        st.Active,
	})
}

func (h *handlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.deps.Users.UpdateProfile(r.Context(), chi.URLParam(r, "id"), services.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, userEnvelope{User: toUserResponse(user)})
}

func (h *handlers) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.deps.Users.ChangePassword(r.Context(), chi.URLParam(r, "id"), req.CurrentPassword, req.NewPassword); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) imageUploadURL(w http.ResponseWriter, r *http.Request) {
	var req imageUploadRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.ContentType == "" {
		req.ContentType = "image/jpeg"
	}

	key, url, err := h.deps.Images.PresignUpload(r.Context(), chi.URLParam(r, "id"), req.ContentType)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, imageUploadResponse{Key: key, URL: url})
}

func (h *handlers) imageURL(w http.ResponseWriter, r *http.Request) {
	url, err := h.deps.Images.PresignDownload(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, imageURLResponse{URL: url})
}

