package main

import (
	"encoding/json"
	"net/http"
	"net/mail"
	"time"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (a *App) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "Invalid request body")
		return
	}
	if c.Email == "" || c.Password == "" || c.Name == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "Email, password and name are required")
		return
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "Invalid email address")
		return
	}

	hashed, err := hashPassword(c.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, "Failed to process password")
		return
	}
	user, err := a.Store.CreateUser(c.Email, hashed, c.Name)
	if err == ErrDuplicate {
		writeError(w, http.StatusConflict, CodeConflict, "User with this email already exists")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, "Failed to create user")
		return
	}

	token, err := a.Tokens.Issue(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, "Failed to issue token")
		return
	}
	writeSuccess(w, http.StatusCreated, map[string]interface{}{
		"user":  user,
		"token": token,
	})
}

func (a *App) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidInput, "Invalid request body")
		return
	}
	user, err := a.Store.GetUserByEmail(c.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, "Failed to load user")
		return
	}
	// Same failure shape for unknown email and wrong password.
	if user == nil || !comparePassword(user.Password, c.Password) {
		writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "Invalid email or password")
		return
	}

	token, err := a.Tokens.Issue(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternal, "Failed to issue token")
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"user":  user,
		"token": token,
	})
}

// HandleLogout denylists the presented token's jti until its natural expiry.
// Requests without a valid token still get a success response so logout is
// safe to call from a client in any state.
func (a *App) HandleLogout(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	if tokenStr := bearerToken(r); tokenStr != "" {
		if claims, err := a.Tokens.Verify(tokenStr); err == nil && claims.ID != "" {
			exp := now.Add(a.Tokens.ttl)
			if claims.ExpiresAt != nil {
				exp = claims.ExpiresAt.Time
			}
			if err := a.Store.RevokeToken(claims.ID, exp); err != nil {
				a.Log.Error().Err(err).Msg("revoke token")
			}
		}
	}
	if err := a.Store.PruneRevokedTokens(now); err != nil {
		a.Log.Error().Err(err).Msg("prune revoked tokens")
	}
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

// HandleMe returns the authenticated caller's sanitized record.
func (a *App) HandleMe(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"user": currentUser(r),
	})
}
