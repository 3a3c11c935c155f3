package handler

import (
	"net/http"
	"time"

	"github.com/bcastroea/sapatariacapacita-backend/internal/model"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

type clientResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

type credentialResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

func toClientResponse(ident *model.Identity) clientResponse {
	return clientResponse{
		ID:        ident.ID,
		Name:      ident.Name,
		Email:     ident.Email,
		Role:      string(ident.Role),
		CreatedAt: ident.CreatedAt.Format(time.RFC3339),
	}
}

// Register регистрирует нового клиента.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	ident, err := h.service.RegisterCustomer(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toClientResponse(ident))
}

// Login проверяет email и пароль и выдаёт bearer-токен.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	cred, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, credentialResponse{
		Token:     cred.Token,
		ExpiresAt: cred.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// GetClient возвращает профиль клиента.
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "client")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ident, err := h.service.GetIdentity(r.Context(), caller, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toClientResponse(ident))
}

// ChangePassword меняет пароль клиента.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "client")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req passwordRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.service.ChangePassword(r.Context(), caller, id, req.Password); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
