package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
)

// Store slot for the in-flight OAuth state nonce. Single-user bot, so a
// single slot is enough.
const oauthStateKey = "oura:oauth_state"

// handleOuraConnect starts the Oura authorization flow by redirecting the
// browser to the provider's consent page.
func (s *Server) handleOuraConnect(rw http.ResponseWriter, r *http.Request) {
	if s.cfg.Oura == nil {
		http.Error(rw, "Oura not configured", http.StatusServiceUnavailable)
		return
	}

	state, err := newState()
	if err != nil {
		http.Error(rw, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if err := s.cfg.Store.Set(r.Context(), oauthStateKey, state); err != nil {
		s.logger.Error("cannot persist oauth state", "err", err)
		http.Error(rw, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	url := s.cfg.Oura.AuthCodeURL(r.Context(), s.redirectURL(), state)
	http.Redirect(rw, r, url, http.StatusFound)
}

// handleOuraCallback finishes the flow: verify the state nonce, trade the
// code for tokens and burn the nonce.
func (s *Server) handleOuraCallback(rw http.ResponseWriter, r *http.Request) {
	if s.cfg.Oura == nil {
		http.Error(rw, "Oura not configured", http.StatusServiceUnavailable)
		return
	}
	ctx := r.Context()

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		http.Error(rw, "Authorization denied: "+errParam, http.StatusBadRequest)
		return
	}

	state := r.URL.Query().Get("state")
	want, err := s.cfg.Store.Get(ctx, oauthStateKey)
	if err != nil || want == "" || state != want {
		http.Error(rw, "Invalid state", http.StatusForbidden)
		return
	}
	s.clearState(ctx)

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(rw, "Missing code", http.StatusBadRequest)
		return
	}

	if err := s.cfg.Oura.Exchange(ctx, s.redirectURL(), code); err != nil {
		s.logger.Error("oura token exchange failed", "err", err)
		http.Error(rw, "Token exchange failed", http.StatusBadGateway)
		return
	}

	s.logger.Info("oura account connected")
	rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(rw, "✅ Oura connected. You can close this page and return to Telegram.")
}

func (s *Server) redirectURL() string {
	if s.cfg.OuraRedirectURL != "" {
		return s.cfg.OuraRedirectURL
	}
	return s.cfg.PublicURL + "/oura/callback"
}

func (s *Server) clearState(ctx context.Context) {
	if err := s.cfg.Store.Set(ctx, oauthStateKey, ""); err != nil {
		s.logger.Warn("cannot clear oauth state", "err", err)
	}
}

func newState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
