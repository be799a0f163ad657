package api

import (
	"errors"
	"net/http"

	"github.com/beavernet/beavernet/internal/auth"
	"github.com/beavernet/beavernet/internal/metrics"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Email    string `json:"email"`
	}
	if !BindJSON(w, r, &req) {
		return
	}

	user, err := s.users.Register(req.Username, req.Password, req.Email)
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			WriteError(w, http.StatusBadRequest, "Username already taken")
			return
		}
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.logger.Info("user registered", "username", user.Username, "ip", getClientIP(r))
	s.recordAudit(r, "user.register", "user/"+user.Username, http.StatusCreated,
		map[string]any{"username": user.Username})

	// Registration logs the user straight in
	sess, err := s.users.CreateSession(user, false)
	if err != nil {
		s.logger.Error("failed to create session", "error", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	metrics.Get().ActiveSessions.Set(float64(s.users.SessionCount()))
	auth.SetSessionCookie(w, r, sess)

	WriteJSON(w, http.StatusCreated, user.Sanitized())
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	clientIP := getClientIP(r)
	if !s.rateLimiter.Allow(clientIP, s.loginAttempts, s.loginWindow) {
		s.logger.Warn("rate limit exceeded for login", "ip", clientIP)
		WriteError(w, http.StatusTooManyRequests, "Too many login attempts. Please try again later.")
		return
	}

	var creds struct {
		Username   string `json:"username"`
		Password   string `json:"password"`
		RememberMe bool   `json:"rememberMe"`
	}
	if !BindJSON(w, r, &creds) {
		return
	}

	user, err := s.users.Authenticate(creds.Username, creds.Password)
	if err != nil {
		s.logger.Warn("failed login attempt", "username", creds.Username, "ip", clientIP)
		metrics.Get().LoginAttempts.WithLabelValues("failure").Inc()
		WriteError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	sess, err := s.users.CreateSession(user, creds.RememberMe)
	if err != nil {
		s.logger.Error("failed to create session", "error", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.logger.Info("successful login", "username", user.Username, "ip", clientIP)
	metrics.Get().LoginAttempts.WithLabelValues("success").Inc()
	metrics.Get().ActiveSessions.Set(float64(s.users.SessionCount()))
	s.rateLimiter.Reset(clientIP)
	s.hub.EmitLogin(user.Username, creds.RememberMe)
	s.recordAudit(r, "session.login", "session", http.StatusOK,
		map[string]any{"username": user.Username, "remember": creds.RememberMe})

	auth.SetSessionCookie(w, r, sess)
	WriteJSON(w, http.StatusOK, user.Sanitized())
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.SessionCookieName); err == nil {
		if s.users.DestroySession(cookie.Value) {
			metrics.Get().ActiveSessions.Set(float64(s.users.SessionCount()))
		}
	}

	if user := auth.GetUserFromContext(r.Context()); user != nil {
		s.hub.EmitLogout(user.Username)
		s.recordAudit(r, "session.logout", "session", http.StatusOK, nil)
	}

	auth.ClearSessionCookie(w)
	SuccessResponse(w)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r.Context())
	if user == nil {
		WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	WriteJSON(w, http.StatusOK, user.Sanitized())
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r.Context())
	if user == nil {
		WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		Email       string `json:"email"`
		NewPassword string `json:"newPassword"`
	}
	if !BindJSON(w, r, &req) {
		return
	}

	if req.Email == "" && req.NewPassword == "" {
		WriteError(w, http.StatusBadRequest, "No fields to update")
		return
	}

	updated, err := s.users.UpdateUser(user.ID, req.Email, req.NewPassword)
	if err != nil {
		s.logger.Error("profile update failed", "username", user.Username, "error", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.recordAudit(r, "user.update", "user/"+user.Username, http.StatusOK, nil)
	WriteJSON(w, http.StatusOK, updated.Sanitized())
}
