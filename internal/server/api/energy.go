package api

import (
	"net/http"

	"github.com/ayusman/thumblight/internal/report"
)

// ProfileFunc produces the load profile series.
type ProfileFunc func() []report.Point

// EnergyHandler serves GET /api/energy/profile.
type EnergyHandler struct {
	profile ProfileFunc
}

// NewEnergyHandler creates an EnergyHandler. A nil profile uses
// report.SampleProfile with the global random source.
func NewEnergyHandler(profile ProfileFunc) *EnergyHandler {
	if profile == nil {
		profile = func() []report.Point { return report.SampleProfile(nil) }
	}
	return &EnergyHandler{profile: profile}
}

type profileResponse struct {
	Title  string         `json:"title"`
	Series string         `json:"series"`
	Points []report.Point `json:"points"`
}

func (h *EnergyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{
		Title:  "Perfil de Carga",
		Series: "Demanda",
		Points: h.profile(),
	})
}
