// Package handlers contains HTTP handlers for K-Tunes. This file groups
// authentication related helpers and endpoints: signup, password login and
// logout. Sessions are stored in an HMAC-signed cookie. CSRF protection is
// implemented using a random token stored in a cookie which clients must echo
// back in the `X-CSRF-Token` header for all state changing requests.
package handlers

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// sessionCookie is the name of the signed session cookie. Its value encodes
// the user ID and an admin flag separated by a colon.
const sessionCookie = "ktunes_session"

// signValue computes an HMAC signature for value and appends it using the
// format value|signature. The signature is base64 URL encoded so it can be
// safely stored in cookies.
func signValue(value string, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(value))
	sig := mac.Sum(nil)
	return value + "|" + base64.RawURLEncoding.EncodeToString(sig)
}

// verifyValue checks the HMAC signature appended to signed. It returns the
// original value and true when the signature matches the provided key.
func verifyValue(signed string, key []byte) (string, bool) {
	i := strings.LastIndex(signed, "|")
	if i < 0 {
		return "", false
	}
	value, encoded := signed[:i], signed[i+1:]
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(value))
	expected := mac.Sum(nil)
	sig, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil || !hmac.Equal(expected, sig) {
		return "", false
	}
	return value, true
}

// setCSRFToken generates a new random token and sets it in a cookie. The token
// is returned so handlers can also include it in the response body. The cookie
// is not HttpOnly so client-side scripts can read the value and attach it to
// subsequent requests.
func setCSRFToken(w http.ResponseWriter, secure bool) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     "csrf_token",
		Value:    token,
		Path:     "/",
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// verifyCSRF compares the X-CSRF-Token header with the csrf_token cookie. The
// comparison is constant time to avoid timing attacks.
func verifyCSRF(r *http.Request) bool {
	c, err := r.Cookie("csrf_token")
	if err != nil {
		return false
	}
	header := r.Header.Get("X-CSRF-Token")
	if header == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.Value), []byte(header)) == 1
}

// setSession writes the signed session cookie plus a fresh CSRF token.
func (app *Application) setSession(w http.ResponseWriter, secure bool, userID string, admin bool) error {
	flag := "0"
	if admin {
		flag = "1"
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    signValue(userID+":"+flag, app.SignKey),
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	_, err := setCSRFToken(w, secure)
	return err
}

// userFromCookie returns the verified user ID and admin flag from the request
// cookie. An error is returned when the cookie is missing or has been
// tampered with.
func (app *Application) userFromCookie(r *http.Request) (string, bool, error) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return "", false, err
	}
	v, ok := verifyValue(c.Value, app.SignKey)
	if !ok {
		return "", false, fmt.Errorf("invalid signature")
	}
	id, flag, ok := strings.Cut(v, ":")
	if !ok {
		return "", false, fmt.Errorf("malformed session")
	}
	return id, flag == "1", nil
}

// requireUser is a helper used by handlers to enforce authentication. It
// writes a 401 response on failure and returns the user ID otherwise.
func (app *Application) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, _, err := app.userFromCookie(r)
	if err != nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return "", false
	}
	// Enforce CSRF protection on state-changing requests.
	if r.Method != http.MethodGet && r.Method != http.MethodHead && !verifyCSRF(r) {
		http.Error(w, "invalid csrf token", http.StatusForbidden)
		return "", false
	}
	return id, true
}

// requireAdmin enforces that the session belongs to an admin account. It
// writes 401 for anonymous requests and 403 for authenticated non-admins.
func (app *Application) requireAdmin(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, admin, err := app.userFromCookie(r)
	if err != nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return "", false
	}
	if !admin {
		http.Error(w, "admin access required", http.StatusForbidden)
		return "", false
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead && !verifyCSRF(r) {
		http.Error(w, "invalid csrf token", http.StatusForbidden)
		return "", false
	}
	return id, true
}

// Signup creates an account from a JSON username/password payload and logs
// the new user in. The first account ever created becomes the admin so a
// fresh deployment can bootstrap its catalog.
func (app *Application) Signup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if app.DB == nil {
		http.Error(w, "db not configured", http.StatusInternalServerError)
		return
	}
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Username == "" || len(req.Password) < 8 {
		respondJSONError(w, http.StatusBadRequest, "username and a password of at least 8 characters are required")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "failed to create account", http.StatusInternalServerError)
		return
	}
	var count int
	if err := app.DB.QueryRowContext(r.Context(), `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		http.Error(w, "failed to create account", http.StatusInternalServerError)
		return
	}
	admin := count == 0
	id, err := app.DB.CreateUser(r.Context(), req.Username, string(hash), admin)
	if err != nil {
		respondJSONError(w, http.StatusConflict, "username already taken")
		return
	}
	if err := app.setSession(w, r.TLS != nil, id, admin); err != nil {
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"user_id": id, "admin": admin})
}

// Login verifies a JSON username/password payload against the stored bcrypt
// hash and issues the session cookie. Unknown usernames and wrong passwords
// produce the same 401 so credentials cannot be probed.
func (app *Application) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if app.DB == nil {
		http.Error(w, "db not configured", http.StatusInternalServerError)
		return
	}
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := app.DB.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.WithError(err).Error("login lookup")
		}
		respondJSONError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		respondJSONError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err := app.setSession(w, r.TLS != nil, u.ID, u.Admin); err != nil {
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user_id": u.ID, "admin": u.Admin})
}

// Logout clears the session cookies so the user must re-authenticate.
func (app *Application) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{Name: "csrf_token", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}
