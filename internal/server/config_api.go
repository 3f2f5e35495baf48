package server

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"ouramate/internal/config"
)

// Keys whose values are safe to show unmasked in the config API.
var plainKeys = map[string]bool{
	config.KeyTelegramChatID: true,
	config.KeyAIModel:        true,
	config.KeyAIBaseURL:      true,
	config.KeyLanguage:       true,
	config.KeyReportHour:     true,
	config.KeyReportTimezone: true,
}

// configEntry is one key in the config API response.
type configEntry struct {
	Set   bool   `json:"set"`
	Value string `json:"value,omitempty"`
}

// configUpdate is the config API request body. The password doubles as the
// bootstrap credential: the first write sets it.
type configUpdate struct {
	Password string            `json:"password"`
	Values   map[string]string `json:"values"`
}

// handleConfig serves the runtime config API. Reads and writes are gated by
// a password stored alongside the values; until one is set, reads report
// the uninitialized state and the first write establishes it.
func (s *Server) handleConfig(rw http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleConfigGet(rw, r)
	case http.MethodPost:
		s.handleConfigPost(rw, r)
	default:
		http.Error(rw, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleConfigGet(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	password, err := s.cfg.Store.Password(ctx)
	if err != nil {
		writeJSON(rw, http.StatusInternalServerError, map[string]string{"error": "store unavailable"})
		return
	}
	if password == "" {
		writeJSON(rw, http.StatusOK, map[string]bool{"initialized": false})
		return
	}
	if !authorized(r, password) {
		writeJSON(rw, http.StatusUnauthorized, map[string]string{"error": "invalid password"})
		return
	}

	entries := make(map[string]configEntry, len(config.Keys()))
	for _, key := range config.Keys() {
		v := s.cfg.Resolver.Get(ctx, key)
		entry := configEntry{Set: v != ""}
		if plainKeys[key] {
			entry.Value = v
		} else {
			entry.Value = config.MaskSecret(v)
		}
		entries[key] = entry
	}
	writeJSON(rw, http.StatusOK, map[string]any{"initialized": true, "config": entries})
}

func (s *Server) handleConfigPost(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeJSON(rw, http.StatusBadRequest, map[string]string{"error": "read body: " + err.Error()})
		return
	}
	defer r.Body.Close()

	var update configUpdate
	if err := json.Unmarshal(body, &update); err != nil {
		writeJSON(rw, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if strings.TrimSpace(update.Password) == "" {
		writeJSON(rw, http.StatusBadRequest, map[string]string{"error": "password required"})
		return
	}

	stored, err := s.cfg.Store.Password(ctx)
	if err != nil {
		writeJSON(rw, http.StatusInternalServerError, map[string]string{"error": "store unavailable"})
		return
	}
	if stored == "" {
		if err := s.cfg.Store.SetPassword(ctx, update.Password); err != nil {
			writeJSON(rw, http.StatusInternalServerError, map[string]string{"error": "cannot set password"})
			return
		}
		s.logger.Info("config password established")
	} else if subtle.ConstantTimeCompare([]byte(stored), []byte(update.Password)) != 1 {
		writeJSON(rw, http.StatusUnauthorized, map[string]string{"error": "invalid password"})
		return
	}

	saved := 0
	for key, value := range update.Values {
		if !knownKey(key) {
			writeJSON(rw, http.StatusBadRequest, map[string]string{"error": "unknown key: " + key})
			return
		}
		if err := s.cfg.Store.Set(ctx, key, value); err != nil {
			writeJSON(rw, http.StatusInternalServerError, map[string]string{"error": "cannot save " + key})
			return
		}
		saved++
	}

	s.logger.Info("config updated", "keys", saved)
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "saved": saved})
}

func authorized(r *http.Request, password string) bool {
	auth := r.Header.Get("Authorization")
	got, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(password)) == 1
}

func knownKey(key string) bool {
	for _, k := range config.Keys() {
		if k == key {
			return true
		}
	}
	return false
}
