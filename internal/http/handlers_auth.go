package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	domainauth "github.com/ofirc298/GUIDESSITE2025/internal/domain/auth"
	"github.com/ofirc298/GUIDESSITE2025/internal/ports"
	"github.com/ofirc298/GUIDESSITE2025/internal/service"
)

// AuthServiceInterface defines the auth operations the handlers need.
type AuthServiceInterface interface {
	SignIn(scope ports.RequestScope, email, password string) (*domainauth.Session, error)
	SignOut(scope ports.RequestScope) error
	SignUp(ctx context.Context, in service.SignUpInput) (*domainauth.UserRecord, error)
}

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Svc      AuthServiceInterface
	Resolver SessionResolver
	Logger   *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInResponse struct {
	Success bool                   `json:"success"`
	User    domainauth.SessionUser `json:"user"`
}

// SignIn handles POST /api/auth/signin.
func (h *AuthHandlers) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	sess, err := h.Svc.SignIn(ports.RequestScope{W: w, R: r}, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domainauth.ErrMissingCredentials):
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "missing_credentials", Err: err})
		case errors.Is(err, domainauth.ErrInvalidCredentials):
			WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "invalid_credentials", Err: err})
		default:
			h.logger().ErrorContext(r.Context(), "sign-in failed",
				"error", err,
				"request_id", RequestIDFromContext(r.Context()),
			)
			WriteError(w, ErrorParams{
				Code:    http.StatusInternalServerError,
				ErrCode: "signin_failed",
				Message: "sign-in is temporarily unavailable",
			})
		}
		return
	}

	noStore(w)
	WriteJSON(w, http.StatusOK, signInResponse{Success: true, User: sess.User})
}

// SignOut handles POST /api/auth/signout. It succeeds whether or not a session exists.
func (h *AuthHandlers) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.SignOut(ports.RequestScope{W: w, R: r}); err != nil {
		h.logger().ErrorContext(r.Context(), "sign-out failed", "error", err)
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "signout_failed", Message: "sign-out failed"})
		return
	}
	noStore(w)
	WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Session handles GET /api/auth/session. The body is the session or JSON null.
func (h *AuthHandlers) Session(w http.ResponseWriter, r *http.Request) {
	sess := h.Resolver.Resolve(ports.RequestScope{W: w, R: r})
	noStore(w)
	if sess == nil {
		WriteJSON(w, http.StatusOK, nil)
		return
	}
	WriteJSON(w, http.StatusOK, sess)
}

type signUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpResponse struct {
	Message string                 `json:"message"`
	User    domainauth.SessionUser `json:"user"`
}

// SignUp handles POST /api/auth/signup. New accounts are students and are not signed in.
func (h *AuthHandlers) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	rec, err := h.Svc.SignUp(r.Context(), service.SignUpInput{Name: req.Name, Email: req.Email, Password: req.Password})
	if err != nil {
		writeSignUpError(w, r, h.logger(), err)
		return
	}
	WriteJSON(w, http.StatusCreated, signUpResponse{
		Message: "account created",
		User:    domainauth.UserFromRecord(*rec),
	})
}

func writeSignUpError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, domainauth.ErrMissingFields):
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "missing_fields", Err: err})
	case errors.Is(err, domainauth.ErrInvalidEmail):
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_email", Err: err})
	case errors.Is(err, domainauth.ErrWeakPassword):
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "weak_password", Err: err})
	case errors.Is(err, domainauth.ErrPasswordTooLong):
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "password_too_long", Err: err})
	case errors.Is(err, domainauth.ErrEmailTaken):
		WriteError(w, ErrorParams{Code: http.StatusConflict, ErrCode: "email_taken", Err: err})
	default:
		logger.ErrorContext(r.Context(), "sign-up failed",
			"error", err,
			"request_id", RequestIDFromContext(r.Context()),
		)
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "signup_failed", Message: "sign-up failed"})
	}
}

func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
}
