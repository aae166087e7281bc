// Package server exposes the report runner over a read-only HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/valentinejelimo/Data-Annotation-Error-analysis/engine"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/logging"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/observability"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/render"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/report"
	"github.com/valentinejelimo/Data-Annotation-Error-analysis/schema"
)

// Config wires the server's collaborators. Runner is required.
type Config struct {
	Runner  *report.Runner
	Catalog schema.Config
	Logger  *logging.Logger
	Metrics *observability.Metrics
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

type Server struct {
	runner  *report.Runner
	catalog schema.Config
	log     *logging.Logger
	engine  *gin.Engine
}

// New builds the router.
func New(cfg Config) *Server {
	s := &Server{
		runner:  cfg.Runner,
		catalog: cfg.Catalog,
		log:     logging.OrNop(cfg.Logger),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(cfg.Logger))
	r.Use(Metrics(cfg.Metrics))

	r.GET("/healthz", s.health)
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	{
		api.GET("/reports", s.listReports)
		api.GET("/reports/:name", s.runReport)
		api.POST("/query", s.runQuery)
		api.GET("/cost", s.cost)
		api.GET("/dimensions", s.dimensions)
	}

	s.engine = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("HTTP server shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return nil
	}
}

// ============================================================================
// HANDLERS
// ============================================================================

type reportSummary struct {
	Name        string      `json:"name"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Kind        report.Kind `json:"kind"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "records": s.runner.Records()})
}

func (s *Server) listReports(c *gin.Context) {
	specs := s.runner.Catalog().Specs()
	out := make([]reportSummary, len(specs))
	for i, sp := range specs {
		out[i] = reportSummary{Name: sp.Name, Title: sp.Title, Description: sp.Description, Kind: sp.Kind}
	}
	c.JSON(http.StatusOK, gin.H{"reports": out})
}

func (s *Server) runReport(c *gin.Context) {
	res, err := s.runner.Run(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	s.respondResult(c, res)
}

func (s *Server) runQuery(c *gin.Context) {
	var spec report.Spec
	if err := c.ShouldBindJSON(&spec); err != nil {
		respondError(c, fmt.Errorf("%w: %v", report.ErrInvalidSpec, err))
		return
	}
	if spec.Name == "" {
		spec.Name = "adhoc"
	}
	res, err := s.runner.RunSpec(c.Request.Context(), spec)
	if err != nil {
		respondError(c, err)
		return
	}
	s.respondResult(c, res)
}

// respondResult writes JSON, or CSV when ?format=csv.
func (s *Server) respondResult(c *gin.Context, res *report.Result) {
	format, err := render.ParseFormat(c.DefaultQuery("format", "json"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorEnvelope{Error: APIError{Message: err.Error(), Code: "invalid_format"}})
		return
	}
	if format == render.FormatCSV {
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Status(http.StatusOK)
		if err := render.WriteCSV(c.Writer, render.Table(res)); err != nil {
			_ = c.Error(err)
		}
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) cost(c *gin.Context) {
	res, err := s.runner.Cost(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) dimensions(c *gin.Context) {
	c.JSON(http.StatusOK, s.catalog)
}

// ============================================================================
// ERRORS
// ============================================================================

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// respondError maps domain errors onto status codes: bad queries and specs
// are 400, unknown reports 404, anything else 500.
func respondError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "internal"
	var qe *engine.QueryError
	switch {
	case errors.Is(err, report.ErrUnknownReport):
		status, code = http.StatusNotFound, "unknown_report"
	case errors.Is(err, report.ErrInvalidSpec):
		status, code = http.StatusBadRequest, "invalid_spec"
	case errors.As(err, &qe):
		status, code = http.StatusBadRequest, "invalid_query"
	}
	_ = c.Error(err)
	c.JSON(status, ErrorEnvelope{Error: APIError{Message: err.Error(), Code: code}})
}
