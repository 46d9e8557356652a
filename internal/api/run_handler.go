package api

import (
	"fmt"
	"math"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"gopattern/app"
	"gopattern/domain/core"
	"gopattern/domain/discovery"
	"gopattern/internal"
	"gopattern/internal/errors"
	"gopattern/internal/report"
	"gopattern/ports"
)

// RunHandler serves discovery runs over JSON
type RunHandler struct {
	service  *app.DiscoveryService
	defaults func() (discovery.Options, error)
	dataDir  string
	logger   *internal.Logger
}

// NewRunHandler creates a run handler. defaults supplies the options used when a request
// carries none; nil means discovery.DefaultOptions.
func NewRunHandler(service *app.DiscoveryService, defaults func() (discovery.Options, error), logger *internal.Logger) *RunHandler {
	if defaults == nil {
		defaults = func() (discovery.Options, error) { return discovery.DefaultOptions(), nil }
	}
	if logger == nil {
		logger = internal.NopLogger()
	}
	return &RunHandler{service: service, defaults: defaults, logger: logger.Named("api")}
}

// WithDataDir enables file sources, resolved relative to dir. Without it only inline rows
// are accepted.
func (h *RunHandler) WithDataDir(dir string) *RunHandler {
	h.dataDir = dir
	return h
}

// resolveSource maps a client-supplied source onto the data directory.
func (h *RunHandler) resolveSource(source string) (string, error) {
	if h.dataDir == "" {
		return "", errors.InvalidInput("file sources are disabled, send rows instead")
	}
	if !filepath.IsLocal(source) {
		return "", errors.InvalidInput(fmt.Sprintf("source %q must be a relative path inside the data directory", source))
	}
	return filepath.Join(h.dataDir, source), nil
}

// RegisterRoutes mounts the handler under /api
func (h *RunHandler) RegisterRoutes(r gin.IRouter) {
	api := r.Group("/api")
	api.POST("/discover", h.Discover)
	api.POST("/schema", h.InferSchema)
	api.GET("/runs", h.ListRuns)
	api.GET("/runs/:id", h.GetRun)
	api.GET("/runs/:id/report", h.GetReport)
}

// NewRouter builds a gin engine with recovery and the run routes
func NewRouter(h *RunHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	h.RegisterRoutes(router)
	return router
}

// DiscoverRequest is the body of POST /api/discover. Exactly one of Source and Rows is set.
type DiscoverRequest struct {
	Source  string             `json:"source"`
	Rows    []Record           `json:"rows"`
	Schema  discovery.Schema   `json:"schema"`
	Options *discovery.Options `json:"options"`
	Persist bool               `json:"persist"`
}

// Record is one inline observation
type Record struct {
	Values   map[string]interface{} `json:"values"`
	Outcome  *float64               `json:"outcome"`
	Contexts map[string]string      `json:"contexts"`
}

// Discover runs the engine on a file source or inline rows
func (h *RunHandler) Discover(c *gin.Context) {
	var req DiscoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.InvalidInput("invalid request body: "+err.Error()))
		return
	}
	if (req.Source == "") == (len(req.Rows) == 0) {
		respondError(c, errors.InvalidInput("exactly one of source and rows is required"))
		return
	}

	opts, err := h.options(req.Options)
	if err != nil {
		respondError(c, err)
		return
	}

	var result *app.DiscoveryResult
	if req.Source != "" {
		var path string
		if path, err = h.resolveSource(req.Source); err != nil {
			respondError(c, err)
			return
		}
		result, err = h.service.Discover(c.Request.Context(), app.DiscoveryRequest{
			Source:  path,
			Schema:  req.Schema,
			Options: opts,
			Persist: req.Persist,
		})
	} else {
		var ds *discovery.Dataset
		if ds, err = datasetFromRecords(req.Schema, req.Rows); err != nil {
			respondError(c, errors.WithCode(errors.CodeInvalidInput, err))
			return
		}
		result, err = h.service.DiscoverDataset(c.Request.Context(), ds, opts, req.Persist)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *RunHandler) options(requested *discovery.Options) (discovery.Options, error) {
	if requested != nil {
		return *requested, nil
	}
	return h.defaults()
}

// InferSchema proposes a schema for a file source
func (h *RunHandler) InferSchema(c *gin.Context) {
	var req struct {
		Source  string `json:"source" binding:"required"`
		Outcome string `json:"outcome" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.InvalidInput("source and outcome are required"))
		return
	}
	path, err := h.resolveSource(req.Source)
	if err != nil {
		respondError(c, err)
		return
	}
	schema, err := h.service.InferSchema(c.Request.Context(), path, req.Outcome)
	if err != nil {
		respondError(c, errors.WithCode(errors.CodeInvalidInput, err))
		return
	}
	c.JSON(http.StatusOK, schema)
}

// ListRuns lists stored runs, newest first
func (h *RunHandler) ListRuns(c *gin.Context) {
	filters := ports.RunFilters{
		Outcome: c.Query("outcome"),
		Status:  discovery.RunStatus(c.Query("status")),
		Limit:   queryInt(c, "limit", 50),
		Offset:  queryInt(c, "offset", 0),
	}
	items, err := h.service.ListRuns(c.Request.Context(), filters)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": items, "count": len(items)})
}

// GetRun returns one stored run
func (h *RunHandler) GetRun(c *gin.Context) {
	run, ok := h.loadRun(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, run)
}

// GetReport renders a stored run as Markdown, or HTML with ?format=html
func (h *RunHandler) GetReport(c *gin.Context) {
	run, ok := h.loadRun(c)
	if !ok {
		return
	}
	switch c.DefaultQuery("format", "markdown") {
	case "html":
		c.Data(http.StatusOK, "text/html; charset=utf-8", report.HTML(run))
	case "markdown", "md":
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(report.Markdown(run)))
	default:
		respondError(c, errors.InvalidInput("format must be markdown or html"))
	}
}

func (h *RunHandler) loadRun(c *gin.Context) (*discovery.AnalysisRun, bool) {
	id, err := core.ParseRunID(c.Param("id"))
	if err != nil {
		respondError(c, errors.WithCode(errors.CodeInvalidInput, err))
		return nil, false
	}
	run, err := h.service.GetRun(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return run, true
}

func queryInt(c *gin.Context, key string, def int) int {
	if v, err := strconv.Atoi(c.Query(key)); err == nil && v >= 0 {
		return v
	}
	return def
}

// StatusFor maps error codes to HTTP statuses
func StatusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeInvalidInput, errors.CodeConfigInvalid:
		return http.StatusBadRequest
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeInsufficientData, errors.CodeNumericDegeneracy:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	status := StatusFor(err)
	code := errors.GetCode(err)
	if status == http.StatusInternalServerError {
		code = errors.CodeInternalError
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "code": code})
}

func datasetFromRecords(schema discovery.Schema, records []Record) (*discovery.Dataset, error) {
	rows := make([]discovery.Observation, len(records))
	for i, rec := range records {
		obs := discovery.Observation{
			Values:   make(map[string]discovery.Value, len(rec.Values)),
			Contexts: rec.Contexts,
		}
		if rec.Outcome != nil {
			obs.Outcome = *rec.Outcome
		} else {
			obs.Outcome = math.NaN()
		}
		for name, raw := range rec.Values {
			v, err := valueOf(raw)
			if err != nil {
				return nil, fmt.Errorf("row %d, %q: %w", i, name, err)
			}
			obs.Values[name] = v
		}
		rows[i] = obs
	}
	return discovery.NewDataset(schema, rows)
}

func valueOf(raw interface{}) (discovery.Value, error) {
	switch v := raw.(type) {
	case nil:
		return discovery.Missing(), nil
	case float64:
		return discovery.Number(v), nil
	case string:
		return discovery.Label(v), nil
	case bool:
		return discovery.Bool(v), nil
	}
	return discovery.Value{}, fmt.Errorf("unsupported value %v", raw)
}
