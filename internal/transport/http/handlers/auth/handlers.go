package authhandler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"leavehub/internal/domain/audit"
	"leavehub/internal/domain/auth"
	"leavehub/internal/platform/requestctx"
	"leavehub/internal/transport/http/api"
	"leavehub/internal/transport/http/middleware"
	"leavehub/internal/transport/http/shared"
)

const tokenTTL = 8 * time.Hour

type Handler struct {
	Users  UserFinder
	Secret string
	Audit  audit.Recorder
}

// UserFinder is the slice of the auth store the login flow needs.
type UserFinder interface {
	FindUserByEmail(ctx context.Context, email string) (auth.AuthUser, error)
}

func NewHandler(users UserFinder, secret string, recorder audit.Recorder) *Handler {
	if recorder == nil {
		recorder = audit.Noop{}
	}
	return &Handler{Users: users, Secret: secret, Audit: recorder}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	requestID := requestctx.GetRequestID(r.Context())

	var payload loginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if email == "" || payload.Password == "" {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "email and password are required", requestID)
		return
	}

	user, err := h.Users.FindUserByEmail(r.Context(), email)
	if err != nil {
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", requestID)
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, payload.Password); err != nil {
		if err := h.Audit.Record(r.Context(), user.ID, "auth.login_failed", "user", user.ID, requestID, shared.ClientIP(r), nil); err != nil {
			slog.Warn("audit record failed", "action", "auth.login_failed", "err", err)
		}
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", requestID)
		return
	}

	token, err := auth.GenerateToken(h.Secret, auth.Claims{
		UserID:     user.ID,
		EmployeeID: user.EmployeeID,
		RoleName:   user.RoleName,
	}, tokenTTL)
	if err != nil {
		slog.Error("token generation failed", "userId", user.ID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "token_error", "failed to issue token", requestID)
		return
	}

	if err := h.Audit.Record(r.Context(), user.ID, "auth.login", "user", user.ID, requestID, shared.ClientIP(r), nil); err != nil {
		slog.Warn("audit record failed", "action", "auth.login", "err", err)
	}

	api.Success(w, map[string]any{
		"token": token,
		"user": map[string]string{
			"id":         user.ID,
			"email":      user.Email,
			"employeeId": user.EmployeeID,
			"role":       user.RoleName,
		},
	}, requestID)
}

// HandleLogout exists for client symmetry. Tokens are stateless, so the
// server only records that the actor signed out.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	requestID := requestctx.GetRequestID(r.Context())
	if user, ok := middleware.GetUser(r.Context()); ok {
		if err := h.Audit.Record(r.Context(), user.UserID, "auth.logout", "user", user.UserID, requestID, shared.ClientIP(r), nil); err != nil {
			slog.Warn("audit record failed", "action", "auth.logout", "err", err)
		}
	}
	api.Success(w, map[string]string{"status": "logged_out"}, requestID)
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	requestID := requestctx.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	api.Success(w, map[string]string{
		"id":         user.UserID,
		"employeeId": user.EmployeeID,
		"role":       user.RoleName,
	}, requestID)
}
