// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storefront Contributors

package httpapi

import (
	"context"
	"net/http"

	"github.com/fashionhall/storefront/internal/auth"
	"github.com/fashionhall/storefront/internal/observability"
)

// AuthService is the auth behavior the handlers depend on.
type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.User, string, error)
	Login(ctx context.Context, email, password string) (*auth.User, string, error)
	CurrentUser(ctx context.Context, token string) (*auth.User, error)
}

// Handler implements the auth endpoints.
type Handler struct {
	auth    AuthService
	cookie  *auth.SessionCookie
	metrics *observability.Metrics
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Success bool            `json:"success"`
	User    auth.PublicUser `json:"user"`
	Token   string          `json:"token"`
}

type userResponse struct {
	Success bool            `json:"success"`
	User    auth.PublicUser `json:"user"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, opRegister, err)
		return
	}

	user, token, err := h.auth.Register(r.Context(), auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Phone:    req.Phone,
	})
	if err != nil {
		h.fail(w, r, opRegister, err)
		return
	}

	h.cookie.Attach(w, token)
	h.metrics.RecordAuthEvent(opRegister.event, "success")
	writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Success: true, User: user.Public(), Token: token})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, opLogin, err)
		return
	}

	user, token, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, opLogin, err)
		return
	}

	h.cookie.Attach(w, token)
	h.metrics.RecordAuthEvent(opLogin.event, "success")
	writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Success: true, User: user.Public(), Token: token})
}

// logout clears the cookie whether or not a session was presented.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	h.cookie.Clear(w)
	h.metrics.RecordAuthEvent("logout", "success")
	writeJSON(r.Context(), w, http.StatusOK, messageResponse{Success: true, Message: "logged out"})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	token, _ := h.cookie.Read(r)

	user, err := h.auth.CurrentUser(r.Context(), token)
	if err != nil {
		h.fail(w, r, opMe, err)
		return
	}

	h.metrics.RecordAuthEvent(opMe.event, "success")
	writeJSON(r.Context(), w, http.StatusOK, userResponse{Success: true, User: user.Public()})
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusNotFound, errorResponse{Success: false, Message: "not found"})
}
