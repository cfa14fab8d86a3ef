package ui

import (
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"heartprev/domain/prevalence"
	"heartprev/internal/config"
	"heartprev/internal/dashboard"
	"heartprev/internal/figures"
	"heartprev/internal/pages"
	"heartprev/ui/middleware"
)

// Server represents the web server for the dashboard pages
type Server struct {
	router    *gin.Engine
	service   *dashboard.Service
	pages     *pages.Registry
	templates *template.Template
	assets    fs.FS
	settings  config.DashboardConfig
}

// NewServer creates a new web server instance. assets must hold ui/templates and ui/static.
func NewServer(assets fs.FS, service *dashboard.Service, registry *pages.Registry) *Server {
	return &Server{
		router:   gin.Default(),
		service:  service,
		pages:    registry,
		assets:   assets,
		settings: service.Settings(),
	}
}

// Initialize parses the templates and registers middleware, pages and the mounted JSON API
func (s *Server) Initialize(api http.Handler) error {
	funcMap := template.FuncMap{
		"cellStyle":   cellStyle,
		"columnStyle": columnStyle,
		"formatValue": formatValue,
		"join":        strings.Join,
		"contains":    prevalence.Contains,
		"round":       func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) },
	}

	templatesFS, err := fs.Sub(s.assets, "ui/templates")
	if err != nil {
		return err
	}
	s.templates, err = template.New("").Funcs(funcMap).ParseFS(templatesFS, "*.html")
	if err != nil {
		log.Printf("[TemplateInit] Failed to parse templates: %v", err)
		return err
	}
	log.Printf("[TemplateInit] Parsed templates: %s", s.templates.DefinedTemplates())

	if err := s.setupMiddleware(); err != nil {
		return err
	}
	s.setupRoutes(api)
	return nil
}

// setupMiddleware configures Gin middleware and the embedded static files
func (s *Server) setupMiddleware() error {
	s.router.Use(middleware.RequestID(), middleware.LogServerErrors())

	staticFS, err := fs.Sub(s.assets, "ui/static")
	if err != nil {
		return err
	}
	s.router.StaticFS("/static", http.FS(staticFS))
	return nil
}

// setupRoutes configures the application routes
func (s *Server) setupRoutes(api http.Handler) {
	s.router.GET("/", s.handleHome)
	s.router.GET("/map", s.handleMap)
	s.router.GET("/map/embed", s.handleMapEmbed)
	s.router.GET("/timeseries", s.handleTimeSeries)
	s.router.GET("/correlations", s.handleCorrelations)
	s.router.GET("/healthz", s.handleHealth)

	if api != nil {
		s.router.Any("/api/*path", gin.WrapH(api))
	}
	s.router.NoRoute(s.handleNotFound)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the web server
func (s *Server) Start(addr string) error {
	log.Printf("Starting heart disease dashboard on http://%s", addr)
	return s.router.Run(addr)
}

// Template helpers
func (s *Server) renderTemplate(c *gin.Context, status int, templateName string, data interface{}) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	if err := s.templates.ExecuteTemplate(c.Writer, templateName, data); err != nil {
		log.Printf("Template error: %v", err)
		c.AbortWithStatus(http.StatusInternalServerError)
	}
}

func cellStyle(s figures.CellStyle) template.CSS {
	return styleDecl(s.Background, s.Color)
}

func columnStyle(s figures.ColumnStyle) template.CSS {
	return styleDecl(s.Background, s.Color)
}

// styleDecl only passes through colours that look like a hex value or a plain name
func styleDecl(background, color string) template.CSS {
	var b strings.Builder
	if safeColor(background) {
		b.WriteString("background-color: " + background + ";")
	}
	if safeColor(color) {
		b.WriteString("color: " + color + ";")
	}
	return template.CSS(b.String())
}

func safeColor(c string) bool {
	if c == "" {
		return false
	}
	for i, r := range c {
		switch {
		case r == '#' && i == 0:
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return true
}

// formatValue prints grid values the way they appear in the CSV
func formatValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
