package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/warasin/roomsync/core"
	"github.com/warasin/roomsync/pkg/router"
)

type AuthHandler struct {
	auth     core.AuthStore
	profiles core.ProfileStore
}

func NewAuthHandler(auth core.AuthStore, profiles core.ProfileStore) *AuthHandler {
	return &AuthHandler{auth: auth, profiles: profiles}
}

type SignupPayload struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) SignupHandler(w http.ResponseWriter, r *http.Request) error {
	var payload SignupPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return fmt.Errorf("Decode: %w", err)
	}
	defer r.Body.Close()

	profile, err := h.profiles.CreateAccount(r.Context(), core.Account{
		Email:    payload.Email,
		Username: payload.Username,
		Password: payload.Password,
	})
	if err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return router.NewJsonError(http.StatusBadRequest, "invalid input")
		}
		return err
	}

	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(profile); err != nil {
		return fmt.Errorf("Encode: %w", err)
	}
	return nil
}

type SigninPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) SigninHandler(w http.ResponseWriter, r *http.Request) error {
	var payload SigninPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return fmt.Errorf("Decode: %w", err)
	}
	defer r.Body.Close()

	session, err := h.auth.NewSession(r.Context(), payload.Email, payload.Password)
	if err != nil {
		return err
	}

	cookie := http.Cookie{
		Name:     core.AuthCookieName,
		Value:    session.Token,
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Path:     "/",
	}
	http.SetCookie(w, &cookie)

	if err := json.NewEncoder(w).Encode(session); err != nil {
		return fmt.Errorf("Encode: %w", err)
	}
	return nil
}
