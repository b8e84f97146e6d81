package main

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Roy-Barak/Mystock-Backend/cmd"
	"github.com/Roy-Barak/Mystock-Backend/internal/auth"
	"github.com/Roy-Barak/Mystock-Backend/internal/store"
)

type tokenResponse struct {
	Name  string `json:"name"`
	Token string `json:"token"`
}

// POST /user-register
func (s *server) register(w http.ResponseWriter, r *http.Request) {
	var req cmd.RegisterRequest
	if err := readJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Message: "Invalid request body"})
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Message: "Validation failed: " + err.Error()})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		writeJSON(w, http.StatusBadRequest, apiError{Message: "Validation failed: password is longer than 72 bytes"})
		return
	} else if err != nil {
		s.internalError(w, "HashPassword", err)
		return
	}
	err = s.store.CreateUser(r.Context(), store.User{Email: req.Email, Name: req.Name, PasswordHash: hash}, s.startingBalance)
	if errors.Is(err, store.ErrEmailTaken) {
		writeJSON(w, http.StatusPaymentRequired, apiError{Message: "Email already registered"})
		return
	} else if err != nil {
		s.internalError(w, "CreateUser", err)
		return
	}

	token, err := s.issuer.Issue(req.Email)
	if err != nil {
		s.internalError(w, "Issue", err)
		return
	}
	s.log.Info("user registered", zap.String("email", req.Email))
	writeJSON(w, http.StatusOK, tokenResponse{Name: req.Name, Token: token})
}

// POST /user-login
func (s *server) login(w http.ResponseWriter, r *http.Request) {
	var req cmd.LoginRequest
	if err := readJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Message: "Invalid request body"})
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	incorrect := apiError{Message: "Incorrect email or password"}
	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusUnauthorized, incorrect)
		return
	}
	u, err := s.store.UserByEmail(r.Context(), req.Email)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusUnauthorized, incorrect)
		return
	} else if err != nil {
		s.internalError(w, "UserByEmail", err)
		return
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		writeJSON(w, http.StatusUnauthorized, incorrect)
		return
	}

	token, err := s.issuer.Issue(u.Email)
	if err != nil {
		s.internalError(w, "Issue", err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Name: u.Name, Token: token})
}
