package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gabpaderog/maxicoffee-server/internal/apperr"
	"github.com/gabpaderog/maxicoffee-server/internal/auth"
	"github.com/gabpaderog/maxicoffee-server/internal/domain/user"
)

type claimsKey struct{}

// ClaimsFromContext returns the verified access token claims of the caller.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return c, ok
}

// requireAdmin admits requests carrying an admin access token. It is a no-op
// unless Config.EnforceAdmin is set.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	if !h.cfg.EnforceAdmin {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeError(w, r, apperr.New(apperr.Unauthorized, "Authorization token is required"))
			return
		}
		claims, err := h.svc.Tokens.Parse(strings.TrimSpace(token), auth.TypeAccess)
		if err != nil {
			writeError(w, r, apperr.Wrap(apperr.Unauthorized, err, apperr.Message(err)))
			return
		}
		if claims.Role != user.RoleAdmin {
			writeError(w, r, apperr.New(apperr.Forbidden, "Admin access required"))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

func (h *Handler) limited(r chi.Router) chi.Router {
	if h.cfg.AuthLimiter == nil {
		return r
	}
	return r.With(h.cfg.AuthLimiter)
}

func (h *Handler) authRoutes(r chi.Router) {
	h.limited(r).Post("/register", h.register)
	h.limited(r).Post("/forgot_password", h.forgotPassword)
	r.Post("/login", h.login)
	r.Post("/verify", h.verifyEmail)
	r.Get("/reset_password", h.checkResetToken)
	r.Post("/reset_password", h.resetPassword)
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.svc.Users.Register(r.Context(), user.RegisterRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Registration successful. Please check your email to verify your account.", toUserResponse(u))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.svc.Users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Login successful", sessionResponse{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
	})
}

// tokenParam reads the token from the query string, as sent by emailed links.
func tokenParam(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func (h *Handler) verifyEmail(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Users.VerifyEmail(r.Context(), tokenParam(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, true, "Email verified successfully")
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *Handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.Users.ForgotPassword(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, true, "Password reset link sent to your email")
}

func (h *Handler) checkResetToken(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Users.CheckResetToken(r.Context(), tokenParam(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, true, "Token is valid")
}

type resetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.Users.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, true, "Password has been reset successfully")
}
