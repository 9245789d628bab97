package http

import (
	"context"
	"net/http"
	"strings"

	"cashstash/internal/auth"
	applog "cashstash/internal/log"
)

type sessionKey struct{}

func withSession(ctx context.Context, sess *auth.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// sessionFrom returns the session stored by requireSession, or nil.
func sessionFrom(ctx context.Context) *auth.Session {
	sess, _ := ctx.Value(sessionKey{}).(*auth.Session)
	return sess
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// requireSession resolves the bearer token into a session and tags the
// request logger with the user id.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, r, http.StatusUnauthorized, msgUnauthorized, auth.ErrNoSession)
			return
		}
		sess, err := s.deps.Identity.Authenticate(r.Context(), token)
		if err != nil {
			fail(w, r, msgUnauthorized, err)
			return
		}
		ctx := withSession(r.Context(), sess)
		ctx = applog.IntoContext(ctx, applog.FromContext(ctx).With(applog.FieldUserID, sess.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, msgRegister, err)
		return
	}
	sess, err := s.deps.Identity.Register(r.Context(), auth.RegisterInput{
		FullName:        req.FullName,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		fail(w, r, msgRegister, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionResponse(sess, true))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, msgLogin, err)
		return
	}
	sess, err := s.deps.Identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		fail(w, r, msgLogin, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess, true))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Identity.Logout(r.Context(), sessionFrom(r.Context()).Token); err != nil {
		fail(w, r, msgLogout, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if sess == nil {
		fail(w, r, msgProfile, auth.ErrNoSession)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess, false))
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, msgUpdateProfile, err)
		return
	}
	sess, err := s.deps.Identity.UpdateProfile(r.Context(), sessionFrom(r.Context()), req.FullName)
	if err != nil {
		fail(w, r, msgUpdateProfile, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess, false))
}
