package otp

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/researchportal/pubportal/pkg/httputil"
	"github.com/researchportal/pubportal/pkg/observability"
)

// Handlers serves the password reset endpoints
type Handlers struct {
	service *Service
	limiter func(http.Handler) http.Handler
}

// NewHandlers creates OTP handlers. limiter, when non-nil, wraps every
// route.
func NewHandlers(service *Service, limiter func(http.Handler) http.Handler) *Handlers {
	return &Handlers{service: service, limiter: limiter}
}

// RegisterRoutes registers the reset routes. None of them need a session.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	h.handle(router, "/auth/otp/request", h.requestCode)
	h.handle(router, "/auth/otp/verify", h.verifyCode)
	h.handle(router, "/auth/password/reset", h.resetPassword)
}

func (h *Handlers) handle(router *mux.Router, path string, fn http.HandlerFunc) {
	var handler http.Handler = fn
	if h.limiter != nil {
		handler = h.limiter(handler)
	}
	router.Handle(path, handler).Methods("POST")
}

// RequestCodeRequest is the body of POST /auth/otp/request
type RequestCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// VerifyCodeRequest is the body of POST /auth/otp/verify
type VerifyCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// VerifyCodeResponse carries the reset token
type VerifyCodeResponse struct {
	ResetToken string `json:"reset_token"`
	ExpiresIn  int    `json:"expires_in"`
}

// ResetPasswordRequest is the body of POST /auth/password/reset
type ResetPasswordRequest struct {
	ResetToken  string `json:"reset_token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// requestCode handles POST /auth/otp/request. Failures are logged, not
// reported, so the response never reveals whether the account exists.
func (h *Handlers) requestCode(w http.ResponseWriter, r *http.Request) {
	var req RequestCodeRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.RequestCode(r.Context(), req.Email); err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("otp request failed")
	}

	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{
		"status": "if the address has an account, a code has been sent",
	})
}

// verifyCode handles POST /auth/otp/verify
func (h *Handlers) verifyCode(w http.ResponseWriter, r *http.Request) {
	var req VerifyCodeRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	token, err := h.service.VerifyCode(r.Context(), req.Email, req.Code)
	switch {
	case errors.Is(err, ErrTooManyAttempts):
		httputil.WriteTooManyRequests(w, err.Error())
		return
	case errors.Is(err, ErrInvalidCode):
		httputil.WriteBadRequest(w, err.Error())
		return
	case err != nil:
		observability.FromContext(r.Context()).WithError(err).Error("otp verify failed")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, VerifyCodeResponse{
		ResetToken: token,
		ExpiresIn:  int(h.service.Config().ResetTTL.Seconds()),
	})
}

// resetPassword handles POST /auth/password/reset
func (h *Handlers) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	err := h.service.ResetPassword(r.Context(), req.ResetToken, req.NewPassword)
	if errors.Is(err, ErrInvalidResetToken) {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}
