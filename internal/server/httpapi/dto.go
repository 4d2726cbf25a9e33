package httpapi

import (
	"time"

	"github.com/Satyam1603/GoTogether/internal/server/models"
	"github.com/Satyam1603/GoTogether/internal/server/services"
)

type userResponse struct {
	ID                 string    `json:"id"`
	Email              *string   `json:"email,omitempty"`
	Phone              *string   `json:"phone,omitempty"`
	FirstName          string    `json:"firstName"`
	LastName           string    `json:"lastName"`
	Role               string    `json:"role"`
	EmailVerified      bool      `json:"emailVerified"`
	PhoneVerified      bool      `json:"phoneVerified"`
	VerificationMethod string    `json:"verificationMethod"`
	Active             bool      `json:"active"`
	HasProfileImage    bool      `json:"hasProfileImage"`
	CreatedAt          time.Time `json:"createdAt"`
}

func toUserResponse(u *models.User) *userResponse {
	return &userResponse{
		ID:                 u.ID,
		Email:              u.Email,
		Phone:              u.Phone,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		Role:               u.Role,
		EmailVerified:      u.EmailVerified,
		PhoneVerified:      u.PhoneVerified,
		VerificationMethod: u.VerificationMethod,
		Active:             u.Active(),
		HasProfileImage:    u.ProfileImageKey != nil && *u.ProfileImageKey != "",
		CreatedAt:          u.CreatedAt,
	}
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

func toTokenResponse(p *services.TokenPair) tokenResponse {
	return tokenResponse{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken, ExpiresIn: p.ExpiresIn}
}

type authResponse struct {
	User *userResponse `json:"user"`
	tokenResponse
}

type userEnvelope struct {
	User *userResponse `json:"user"`
}

type registerRequest struct {
	Email              string `json:"email"`
	Phone              string `json:"phone"`
	Password           string `json:"password"`
	FirstName          string `json:"firstName"`
	LastName           string `json:"lastName"`
	Role               string `json:"role"`
	VerificationMethod string `json:"verificationMethod"`
}

type loginRequest struct {
	Login    string `json:"login"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type verifyPhoneRequest struct {
	Phone string `json:"phone"`
}

type verifyEmailRequest struct {
	Email string `json:"email"`
}

type challengeResponse struct {
	ExpiresAt time.Time `json:"expiresAt"`
}

// updateProfileRequest leaves absent fields unchanged. An empty email or
// phone removes it.
type updateProfileRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type imageUploadRequest struct {
	ContentType string `json:"contentType"`
}

type imageUploadResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type imageURLResponse struct {
	URL string `json:"url"`
}

type verificationStatusResponse struct {
	Method        string `json:"verificationMethod"`
	EmailVerified bool   `json:"emailVerified"`
	PhoneVerified bool   `json:"phoneVerified"`
	Active        bool   `json:"active"`
}
