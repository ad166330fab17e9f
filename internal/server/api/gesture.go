package api

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/ayusman/thumblight/internal/app"
)

// Controller starts and stops the acquisition loop.
type Controller interface {
	Start(url string) error
	Stop()
	Status() app.Status
}

// GestureHandler handles /api/gesture/{start,stop,status}.
type GestureHandler struct {
	ctrl Controller
}

// NewGestureHandler creates a GestureHandler for ctrl.
func NewGestureHandler(ctrl Controller) *GestureHandler {
	return &GestureHandler{ctrl: ctrl}
}

type startRequest struct {
	URL string `json:"url"`
}

// ServeHTTP routes on the last path segment.
func (h *GestureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action := strings.TrimPrefix(r.URL.Path, "/api/gesture/")

	switch action {
	case "start":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.start(w, r)
	case "stop":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.ctrl.Stop()
		writeJSON(w, http.StatusOK, h.ctrl.Status())
	case "status":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, h.ctrl.Status())
	default:
		http.NotFound(w, r)
	}
}

// start handles POST /api/gesture/start with a JSON or form "url".
func (h *GestureHandler) start(w http.ResponseWriter, r *http.Request) {
	var req startRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	} else {
		req.URL = r.FormValue("url")
	}

	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "Insira o endereço do stream para iniciar.")
		return
	}

	if err := h.ctrl.Start(req.URL); err != nil {
		if errors.Is(err, app.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, h.ctrl.Status())
}
