// Package api serves the dashboard callbacks as JSON, plus XLSX and PNG exports.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"heartprev/domain/prevalence"
	"heartprev/internal/dashboard"
	"heartprev/internal/errors"
	"heartprev/internal/export"
	"heartprev/internal/render"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler exposes the dashboard service over HTTP
type Handler struct {
	service *dashboard.Service
}

// NewHandler creates an API handler
func NewHandler(service *dashboard.Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the callbacks on a router whose paths start at /api
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/map/table", h.handleMapTable)
		r.Get("/map/choropleth", h.handleChoropleth)

		r.Get("/timeseries/options", h.handleTimeSeriesOptions)
		r.Get("/timeseries/figure", h.handleTimeSeriesFigure)
		r.Get("/timeseries/chart.png", h.handleTimeSeriesChart)

		r.Get("/correlations/options", h.handleCorrelationOptions)
		r.Get("/correlations/figures", h.handleCorrelationFigures)
		r.Get("/correlations/trendline.png", h.handleTrendlineChart)

		r.Get("/export/snapshot.xlsx", h.handleSnapshotExport)
		r.Get("/export/timeseries.xlsx", h.handleTimeSeriesExport)

		r.Get("/overview", h.handleOverview)
	})
	return r
}

// NewRouter builds the standalone API router with chi's logging and recovery middleware
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Get("/healthz", h.handleHealth)
	r.Mount("/", h.Routes())
	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[API] %s %s failed: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  errors.GetCode(err),
	})
}

func writeFile(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	if filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}
	w.Header().Set("Content-Length", fmt.Sprint(len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// multiValue accepts both repeated parameters and comma separated lists
func multiValue(r *http.Request, key string) []string {
	var out []string
	for _, v := range r.URL.Query()[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (h *Handler) board(r *http.Request) string {
	if b := r.URL.Query().Get("healthboard"); b != "" {
		return b
	}
	return h.service.Settings().DefaultHealthBoard
}

func (h *Handler) factorPair(r *http.Request) (string, string) {
	q := r.URL.Query()
	x, y := q.Get("category1"), q.Get("category2")
	if x == "" {
		x = h.service.Settings().DefaultFactorX
	}
	if y == "" {
		y = h.service.Settings().DefaultFactorY
	}
	return x, y
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.Overview(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (h *Handler) handleMapTable(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.MapView(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleChoropleth(w http.ResponseWriter, r *http.Request) {
	fig, err := h.service.Choropleth(r.Context(), r.URL.Query().Get("metric"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fig)
}

func (h *Handler) handleTimeSeriesOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.service.TimeSeriesOptions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (h *Handler) handleTimeSeriesFigure(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.TimeSeriesView(r.Context(), h.board(r), multiValue(r, "category"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleTimeSeriesChart(w http.ResponseWriter, r *http.Request) {
	board := h.board(r)
	factors := multiValue(r, "category")
	rows, err := h.service.TimeSeriesRows(r.Context(), board, factors...)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := render.LineChart(&buf, rows, prevalence.ColumnYear, factors, dashboard.TimeSeriesTitle(board)); err != nil {
		writeError(w, r, err)
		return
	}
	writeFile(w, "image/png", "", buf.Bytes())
}

func (h *Handler) handleCorrelationOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.service.CorrelationOptions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (h *Handler) handleCorrelationFigures(w http.ResponseWriter, r *http.Request) {
	x, y := h.factorPair(r)
	view, err := h.service.CorrelationView(r.Context(), h.board(r), x, y)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleTrendlineChart(w http.ResponseWriter, r *http.Request) {
	board := h.board(r)
	x, y := h.factorPair(r)
	rows, err := h.service.CorrelationRows(r.Context(), board, x, y)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	title := fmt.Sprintf("Figure 2: Correlation of Heart Disease related factors in %s 2022-2025", board)
	if _, err := render.TrendlineChart(&buf, rows, x, y, title); err != nil {
		writeError(w, r, err)
		return
	}
	writeFile(w, "image/png", "", buf.Bytes())
}

func (h *Handler) handleSnapshotExport(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.MapView(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteSnapshot(&buf, view); err != nil {
		writeError(w, r, err)
		return
	}
	writeFile(w, xlsxContentType, "heart_prev_snapshot.xlsx", buf.Bytes())
}

func (h *Handler) handleTimeSeriesExport(w http.ResponseWriter, r *http.Request) {
	board := r.URL.Query().Get("healthboard")
	factors := multiValue(r, "category")
	rows, err := h.service.TimeSeriesRows(r.Context(), board, factors...)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteTimeSeries(&buf, rows, factors); err != nil {
		writeError(w, r, err)
		return
	}
	name := "heart_prev_timeseries.xlsx"
	if board != "" {
		name = "heart_prev_timeseries_" + strings.ReplaceAll(strings.ToLower(board), " ", "_") + ".xlsx"
	}
	writeFile(w, xlsxContentType, name, buf.Bytes())
}
