package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"

	"github.com/DoyleJ11/party-quiz-backend/internal/auth"
	"github.com/DoyleJ11/party-quiz-backend/internal/content"
	"github.com/DoyleJ11/party-quiz-backend/internal/engine"
	"github.com/DoyleJ11/party-quiz-backend/internal/hub"
	"github.com/DoyleJ11/party-quiz-backend/internal/lobby"
	public "github.com/DoyleJ11/party-quiz-backend/pkg/types"
)

const (
	defaultLanguage = "de"
	qrSize          = 320
	maxBodyBytes    = 1 << 12
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func requireHost(v *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || v.ValidateToken(token) != nil {
				writeError(w, http.StatusUnauthorized, "host token required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func Login(v *auth.Verifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Password string `json:"password"`
		}
		if !decode(w, r, &req) {
			return
		}
		token, err := v.Login(req.Password)
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to issue token")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

func CreateSession(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Language string `json:"language"`
		}
		if !decode(w, r, &req) {
			return
		}
		if req.Language == "" {
			req.Language = defaultLanguage
		}
		lang, err := engine.ParseLanguage(req.Language)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		created := h.Create(r.Context(), lang)
		if created.Err != nil {
			writeError(w, http.StatusInternalServerError, "failed to create session")
			return
		}
		writeJSON(w, http.StatusCreated, struct {
			ID   string `json:"id"`
			Code string `json:"code"`
		}{ID: created.ID, Code: created.Code})
	}
}

// GetSession is the anonymous full-state query: the same projection a
// connected client sees before joining.
func GetSession(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lb := h.Get(r.Context(), chi.URLParam(r, "code"))
		if lb == nil {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		reply := make(chan public.Snapshot, 1)
		select {
		case lb.Inbox() <- lobby.Query{Reply: reply}:
		case <-lb.Done():
			writeError(w, http.StatusServiceUnavailable, "session is shutting down")
			return
		case <-r.Context().Done():
			return
		}
		select {
		case snap := <-reply:
			writeJSON(w, http.StatusOK, snap)
		case <-lb.Done():
			writeError(w, http.StatusServiceUnavailable, "session is shutting down")
		case <-r.Context().Done():
		}
	}
}

func JoinQR(h *hub.Hub, publicURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.ToUpper(chi.URLParam(r, "code"))
		if h.Get(r.Context(), code) == nil {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		png, err := qrcode.Encode(publicURL+"/join/"+code, qrcode.Medium, qrSize)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "qr generation failed")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_, _ = w.Write(png)
	}
}

func Categories(c content.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("language")
		if raw == "" {
			raw = defaultLanguage
		}
		lang, err := engine.ParseLanguage(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, c.Categories(lang))
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
