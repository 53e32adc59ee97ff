// Package server is the preview server: merged plans as JSON, emitted
// HTML, derived views, full-text search, and pipeline triggers over HTTP.
package server

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/wanderplan/wanderplan/config"
	"github.com/wanderplan/wanderplan/internal/merge"
	"github.com/wanderplan/wanderplan/internal/pipeline"
	"github.com/wanderplan/wanderplan/internal/render"
	"github.com/wanderplan/wanderplan/internal/search"
	"github.com/wanderplan/wanderplan/internal/telemetry"
	"github.com/wanderplan/wanderplan/internal/trip"
)

// Server wires the HTTP surface over one data directory.
type Server struct {
	cfg      *config.Config
	pipe     *pipeline.Pipeline
	tele     *telemetry.Telemetry
	renderer *render.TemplateRenderer
	index    *search.Index
	log      *log.Logger
}

// New builds a server; nil config or telemetry use defaults. The search
// index lives at config's search.index_dir, or in memory when unset.
func New(cfg *config.Config, tele *telemetry.Telemetry) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if tele == nil {
		tele = telemetry.New(cfg.Telemetry)
	}
	idx, err := search.Open(cfg.Search.IndexDir)
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:      cfg,
		pipe:     pipeline.New(cfg, tele),
		tele:     tele,
		renderer: render.New(cfg.Render),
		index:    idx,
		log:      log.New(log.Writer(), "[SERVER] ", log.LstdFlags),
	}, nil
}

// Echo assembles the routes on a fresh echo instance.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	if s.tele.Enabled() {
		e.GET("/metrics", echo.WrapHandler(s.tele.Handler()))
	}

	api := e.Group("/api")
	api.GET("/plans", s.listPlans)
	api.GET("/plans/:slug", s.getPlan)
	api.GET("/plans/:slug/html", s.getHTML)
	api.GET("/plans/:slug/views/:view", s.getView)
	api.POST("/plans/:slug/pipeline", s.runPipeline)
	api.GET("/search", s.searchPOIs)
	return e
}

// Run serves on the configured address until the listener fails.
func (s *Server) Run() error {
	addr := s.cfg.Server.Address
	s.log.Printf("listening on %s", addr)
	return s.Echo().Start(addr)
}

// Close releases the search index.
func (s *Server) Close() error { return s.index.Close() }

func (s *Server) listPlans(c echo.Context) error {
	entries, err := os.ReadDir(s.cfg.General.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return c.JSON(200, []string{})
		}
		return err
	}
	slugs := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			slugs = append(slugs, entry.Name())
		}
	}
	sort.Strings(slugs)
	return c.JSON(200, slugs)
}

func (s *Server) getPlan(c echo.Context) error {
	plan, err := s.buildPlan(c)
	if err != nil {
		return err
	}
	return c.JSON(200, plan)
}

func (s *Server) getHTML(c echo.Context) error {
	plan, err := s.buildPlan(c)
	if err != nil {
		return err
	}
	body, err := s.renderer.RenderBytes(plan)
	if err != nil {
		return err
	}
	return c.HTMLBlob(200, body)
}

func (s *Server) getView(c echo.Context) error {
	view, ok := merge.Views()[c.Param("view")]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("unknown view %q", c.Param("view")))
	}
	plan, err := s.buildPlan(c)
	if err != nil {
		return err
	}
	return c.JSON(200, view(plan.Days))
}

func (s *Server) runPipeline(c echo.Context) error {
	force := c.QueryParam("force") == "true"
	res, err := s.pipe.Run(c.Request().Context(), c.Param("slug"), force)
	if err != nil {
		if trip.IsKind(err, trip.KindNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		if trip.IsKind(err, trip.KindSemanticViolation) {
			// Validation found criticals; hand the caller the issue list.
			return c.JSON(http.StatusUnprocessableEntity, res)
		}
		return err
	}
	return c.JSON(200, res)
}

func (s *Server) searchPOIs(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing q parameter")
	}
	hits, err := s.index.Query(q, 20)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(200, hits)
}

// buildPlan merges the requested slug and keeps the search index warm
// with its POIs as a side effect.
func (s *Server) buildPlan(c echo.Context) (*merge.Plan, error) {
	slug := c.Param("slug")
	plan, err := s.pipe.Build(c.Request().Context(), slug)
	if err != nil {
		if trip.IsKind(err, trip.KindNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("plan %q not found", slug))
		}
		if trip.IsKind(err, trip.KindInvalidInput) {
			return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return nil, err
	}
	if _, err := s.index.IndexPlan(slug, plan); err != nil {
		s.log.Printf("index %s: %v", slug, err)
	}
	return plan, nil
}
