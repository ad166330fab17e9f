package server

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/thumblight/internal/report"
)

//go:embed templates/*.html
var templateFS embed.FS

// navItem is one sidebar entry.
type navItem struct {
	Path  string
	Label string
}

var navigation = []navItem{
	{Path: "/gesture", Label: "Detecção de Gesto"},
	{Path: "/graphs", Label: "Gráficos"},
	{Path: "/suggestions", Label: "Sugestões de Economia"},
}

type pages struct {
	gesture     *template.Template
	graphs      *template.Template
	suggestions *template.Template
}

func loadPages() *pages {
	parse := func(page string) *template.Template {
		return template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/"+page))
	}
	return &pages{
		gesture:     parse("gesture.html"),
		graphs:      parse("graphs.html"),
		suggestions: parse("suggestions.html"),
	}
}

type pageData struct {
	Title  string
	Active string
	Nav    []navItem

	// gesture
	DefaultURL string

	// suggestions
	Total      string
	Period     string
	Suggestion string
	Error      string
}

func (s *Server) render(w http.ResponseWriter, status int, tmpl *template.Template, data pageData) {
	data.Nav = navigation

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		s.log.WithError(err).Error("failed to render page")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// handleRoot redirects to the gesture view and 404s anything else.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/gesture", http.StatusFound)
}

func (s *Server) handleGesture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.render(w, http.StatusOK, s.pages.gesture, pageData{
		Title:      "Detecção de Gesto com MediaPipe",
		Active:     "/gesture",
		DefaultURL: s.config.DefaultURL,
	})
}

func (s *Server) handleGraphs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.render(w, http.StatusOK, s.pages.graphs, pageData{
		Title:  "Painel de Monitoramento de Energia",
		Active: "/graphs",
	})
}

// handleChart renders the go-echarts page embedded by /graphs.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var buf bytes.Buffer
	if err := report.RenderProfile(&buf, s.config.Profile()); err != nil {
		s.log.WithError(err).Error("failed to render chart")
		http.Error(w, "Failed to render chart", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Title:  "Sugestões de Economia de Energia",
		Active: "/suggestions",
		Total:  "1",
		Period: report.DefaultPeriod,
	}

	switch r.Method {
	case http.MethodGet:
		s.render(w, http.StatusOK, s.pages.suggestions, data)
	case http.MethodPost:
		data.Total = strings.TrimSpace(r.FormValue("total"))
		data.Period = strings.TrimSpace(r.FormValue("period"))

		total, err := strconv.Atoi(data.Total)
		if err != nil {
			data.Error = "O consumo total deve ser um número inteiro."
			s.render(w, http.StatusBadRequest, s.pages.suggestions, data)
			return
		}
		msg, err := report.Suggestion(report.SuggestionInput{Total: total, Period: data.Period})
		if err != nil {
			data.Error = "O consumo deve ser de pelo menos 1 kWh e o período não pode ficar vazio."
			s.render(w, http.StatusBadRequest, s.pages.suggestions, data)
			return
		}
		data.Suggestion = msg
		s.render(w, http.StatusOK, s.pages.suggestions, data)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
