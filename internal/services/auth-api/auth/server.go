package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/NordCoder/Tokengate/internal/domain"
	domainauth "github.com/NordCoder/Tokengate/internal/domain/auth"
	"github.com/NordCoder/Tokengate/internal/domain/user"
	"github.com/NordCoder/Tokengate/internal/obs"
)

const maxBodyBytes = 1 << 20

type Server struct {
	log   *zap.Logger
	uc    *Usecase
	users user.Directory
	msgs  domainauth.Messages
}

type Opts struct {
	Logger *zap.Logger
}

func NewServer(uc *Usecase, users user.Directory, msgs domainauth.Messages, o Opts) *Server {
	log := o.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		log:   log.With(zap.String("component", "auth.http")),
		uc:    uc,
		users: users,
		msgs:  msgs,
	}
}

// Routes mounts the auth API under /v1/auth.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/v1/auth", func(r chi.Router) {
		r.Post("/register", s.Register)
		r.Post("/login", s.Login)
		r.Post("/refresh", s.Refresh)
		r.Post("/logout", s.Logout)
		r.With(BearerAuth(s.uc.ParseAccess, s.msgs)).Get("/me", s.Me)
	})
	return r
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type messageResponse struct {
	Success *bool  `json:"success,omitempty"`
	Message string `json:"message"`
}

type loginResponse struct {
	LoginResponse
	Message string `json:"message"`
}

type meResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !s.decode(w, r, &req) {
		return
	}

	out, err := s.uc.Register(r.Context(), req)
	if err != nil {
		s.internal(w, r, "auth.register", err)
		return
	}

	ok := out.Succeeded()
	status := http.StatusOK
	if !ok {
		status = http.StatusBadRequest
	}
	obs.WithTrace(r.Context(), s.log).Info("auth.register",
		zap.String("username", req.Username), zap.String("result", string(out.Key())))
	writeJSON(w, status, messageResponse{Success: &ok, Message: s.render(r, out.Key())})
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}

	out, err := s.uc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.internal(w, r, "auth.login", err)
		return
	}

	obs.WithTrace(r.Context(), s.log).Info("auth.login",
		zap.String("username", req.Username), zap.String("result", string(out.Key())))

	resp, ok := out.Payload()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, messageResponse{Message: s.render(r, out.Key())})
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{LoginResponse: resp, Message: s.render(r, out.Key())})
}

func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !s.decode(w, r, &req) {
		return
	}

	out, err := s.uc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.internal(w, r, "auth.refresh", err)
		return
	}

	resp, ok := out.Payload()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, messageResponse{Message: s.render(r, out.Key())})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.uc.Logout(r.Context(), req.RefreshToken); err != nil {
		s.internal(w, r, "auth.logout", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromCtx(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, messageResponse{Message: s.render(r, domainauth.MsgInvalidCredentials)})
		return
	}
	id, err := claims.UserID()
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, messageResponse{Message: s.render(r, domainauth.MsgInvalidCredentials)})
		return
	}

	u, err := s.users.FindByIDWithRole(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusUnauthorized, messageResponse{Message: s.render(r, domainauth.MsgInvalidCredentials)})
		return
	}
	if err != nil {
		s.internal(w, r, "auth.me", err)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.RoleName(),
		ExpiresAt: claims.ExpiresAt.Time,
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: s.render(r, domainauth.MsgInvalidRequest)})
		return false
	}
	return true
}

func (s *Server) render(r *http.Request, key domainauth.MessageKey) string {
	return s.msgs.Resolve(key, r.Header.Get("Accept-Language"))
}

// internal never leaks err to the client.
func (s *Server) internal(w http.ResponseWriter, r *http.Request, op string, err error) {
	obs.WithTrace(r.Context(), s.log).Error(op, zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, messageResponse{Message: s.render(r, domainauth.MsgInternalError)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
