package ui

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"heartprev/internal/dashboard"
	"heartprev/internal/errors"
	"heartprev/internal/pages"
	"heartprev/ui/middleware"
)

const healthTimeout = 30 * time.Second

// pageError is the error block a page shows in place of its figures
type pageError struct {
	Status  int
	Code    string
	Message string
}

// pageData is what every page template receives
type pageData struct {
	Page      *pages.Page
	Nav       []*pages.Page
	RequestID string
	Error     *pageError
	View      interface{}
}

type homeView struct {
	Overview *dashboard.Overview
	VideoURL string
}

type mapView struct {
	Table    *dashboard.MapView
	Embedded bool
}

type timeSeriesView struct {
	Options *dashboard.Options
	Current *dashboard.TimeSeriesView
}

type correlationsView struct {
	Options *dashboard.Options
}

// renderPage renders a page, or the same page with an error block when err is set
func (s *Server) renderPage(c *gin.Context, slug, templateName string, view interface{}, err error) {
	page, perr := s.pages.Get(slug)
	if perr != nil {
		s.handleNotFound(c)
		return
	}
	data := pageData{
		Page:      page,
		Nav:       s.pages.Nav(),
		RequestID: middleware.GetRequestID(c),
		View:      view,
	}
	status := http.StatusOK
	if err != nil {
		status = errors.HTTPStatus(err)
		data.Error = &pageError{Status: status, Code: errors.GetCode(err), Message: err.Error()}
		c.Error(err)
	}
	s.renderTemplate(c, status, templateName, data)
}

func (s *Server) handleHome(c *gin.Context) {
	// The home page stays up without the overview; dataset failures surface on /healthz.
	overview, err := s.service.Overview(c.Request.Context())
	if err != nil {
		log.Printf("[Home] Overview unavailable: %v", err)
		overview = nil
	}
	s.renderPage(c, pages.Home, "home.html", homeView{Overview: overview, VideoURL: s.settings.VideoURL}, nil)
}

func (s *Server) handleMap(c *gin.Context) {
	table, err := s.service.MapView(c.Request.Context())
	s.renderPage(c, pages.Map, "map.html", mapView{Table: table, Embedded: s.mapEmbedAvailable()}, err)
}

// mapEmbedAvailable reports whether the pre-rendered map file is present
func (s *Server) mapEmbedAvailable() bool {
	if s.settings.MapHTMLPath == "" {
		return false
	}
	info, err := os.Stat(s.settings.MapHTMLPath)
	return err == nil && !info.IsDir()
}

// handleMapEmbed serves the pre-rendered map HTML shown in the map page's iframe
func (s *Server) handleMapEmbed(c *gin.Context) {
	if !s.mapEmbedAvailable() {
		s.handleNotFound(c)
		return
	}
	c.File(s.settings.MapHTMLPath)
}

// handleTimeSeries renders the controls and the full data grid. The figure is drawn once a
// factor is picked.
func (s *Server) handleTimeSeries(c *gin.Context) {
	ctx := c.Request.Context()
	view := timeSeriesView{}
	opts, err := s.service.TimeSeriesOptions(ctx)
	if err == nil {
		view.Options = opts
		view.Current, err = s.service.TimeSeriesView(ctx, opts.DefaultHealthBoard, nil)
	}
	s.renderPage(c, pages.TimeSeries, "timeseries.html", view, err)
}

func (s *Server) handleCorrelations(c *gin.Context) {
	opts, err := s.service.CorrelationOptions(c.Request.Context())
	s.renderPage(c, pages.Correlations, "correlations.html", correlationsView{Options: opts}, err)
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	overview, err := s.service.Overview(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  err.Error(),
			"code":   errors.GetCode(err),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "overview": overview})
}

func (s *Server) handleNotFound(c *gin.Context) {
	data := pageData{
		Page:      &pages.Page{Heading: "Page not found", NavTitle: "Not found"},
		Nav:       s.pages.Nav(),
		RequestID: middleware.GetRequestID(c),
		Error: &pageError{
			Status:  http.StatusNotFound,
			Code:    errors.CodeNotFound,
			Message: c.Request.URL.Path + " not found",
		},
	}
	s.renderTemplate(c, http.StatusNotFound, "error.html", data)
}
