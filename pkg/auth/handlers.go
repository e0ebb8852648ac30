package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/researchportal/pubportal/pkg/audit"
	"github.com/researchportal/pubportal/pkg/httputil"
	"github.com/researchportal/pubportal/pkg/observability"
	"github.com/researchportal/pubportal/pkg/policy"
	"github.com/researchportal/pubportal/pkg/storage"
)

// errBadCredentials is the single message for every failed login
const errBadCredentials = "invalid email or password"

// Handlers serves login and the current-user endpoint
type Handlers struct {
	accounts AccountStore
	tokens   *TokenManager
	audit    audit.Logger
}

// NewHandlers creates auth handlers
func NewHandlers(accounts AccountStore, tokens *TokenManager, auditLogger audit.Logger) *Handlers {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	return &Handlers{accounts: accounts, tokens: tokens, audit: auditLogger}
}

// RegisterPublicRoutes registers routes that do not need a session
func (h *Handlers) RegisterPublicRoutes(router *mux.Router) {
	router.HandleFunc("/auth/login", h.login).Methods("POST")
}

// RegisterRoutes registers routes that need a session
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/me", h.me).Methods("GET")
}

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is returned on successful login
type LoginResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
	User      Profile   `json:"user"`
}

// login handles POST /auth/login
func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}
	ctx := r.Context()
	email := strings.ToLower(strings.TrimSpace(req.Email))

	account, err := h.accounts.AccountByEmail(ctx, email)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		observability.FromContext(ctx).WithError(err).Error("account lookup failed")
		httputil.WriteInternalError(w, err)
		return
	}

	ok := false
	if account != nil {
		ok, err = VerifyPassword(req.Password, account.PasswordHash)
		if err != nil {
			observability.FromContext(ctx).WithError(err).Error("password verification failed")
			httputil.WriteInternalError(w, err)
			return
		}
	}
	if !ok {
		event := audit.NewEvent(audit.EventTypeAuthLoginFailed, audit.EventStatusFailure, policy.Actor{Email: email}).
			On(audit.ResourceTypeSession, 0)
		event.IPAddress = r.RemoteAddr
		h.audit.Log(ctx, event)
		httputil.WriteUnauthorized(w, errBadCredentials)
		return
	}

	token, expiresAt, err := h.tokens.Issue(account.Actor)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	event := audit.NewEvent(audit.EventTypeAuthLogin, audit.EventStatusSuccess, account.Actor).
		On(audit.ResourceTypeSession, account.ID)
	event.IPAddress = r.RemoteAddr
	h.audit.Log(ctx, event)

	httputil.WriteSuccess(w, LoginResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: expiresAt,
		User:      NewProfile(account),
	})
}

// me handles GET /auth/me
func (h *Handlers) me(w http.ResponseWriter, r *http.Request) {
	ac := FromContext(r.Context())
	if ac == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	account, err := h.accounts.AccountByID(r.Context(), ac.Actor.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		httputil.WriteUnauthorized(w, "account no longer exists")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, NewProfile(account))
}
