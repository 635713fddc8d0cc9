package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/omnibus-tickets/omnibus-api/internal/app/auth"
)

func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeDecodeError(w, r, err)
		return
	}
	u, err := s.Auth.Register(r.Context(), auth.RegisterInput{
		Name:     req.Name,
		Email:    string(req.Email),
		Password: req.Password,
		CPF:      req.CPF,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": userFromDomain(u)})
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeDecodeError(w, r, err)
		return
	}
	res, err := s.Auth.Login(r.Context(), auth.LoginInput{Email: req.Email, Password: req.Password, Role: req.Role})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"credential": credentialFromTokens(res.Credential),
		"user":       userFromDomain(res.User),
	})
}

func (s *Server) SwitchRole(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	cred, err := s.Auth.SwitchRole(r.Context(), p, chi.URLParam(r, "role"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"credential": credentialFromTokens(cred)})
}
