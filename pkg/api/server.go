// Package api provides the REST control surface for a beatbox session
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/james-see/beatbox/pkg/grid"
	"github.com/james-see/beatbox/pkg/instrument"
	"github.com/james-see/beatbox/pkg/persist"
	"github.com/james-see/beatbox/pkg/playback"
)

// @title BeatBox API
// @version 1.0
// @description API for editing and playing a 16x16 drum step sequencer
// @host localhost:8080
// @BasePath /api/v1

// maxUpload bounds pattern uploads; the largest format is well under this
const maxUpload = 1 << 20

// CellRequest addresses one grid cell
type CellRequest struct {
	Instrument int   `json:"instrument" binding:"min=0,max=15"`
	Step       int   `json:"step" binding:"min=0,max=15"`
	Active     *bool `json:"active,omitempty"`
}

// Row is one instrument row of the grid
type Row struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Trigger uint8  `json:"trigger"`
	Steps   []bool `json:"steps"`
	Pattern string `json:"pattern"`
}

// GridResponse is the full grid
type GridResponse struct {
	Rows   []Row `json:"rows"`
	Active int   `json:"active"`
}

type handler struct {
	ctrl *playback.Controller
}

// NewRouter builds the gin engine for ctrl
func NewRouter(ctrl *playback.Controller) *gin.Engine {
	h := &handler{ctrl: ctrl}

	r := gin.Default()

	// CORS middleware
	r.Use(corsMiddleware())

	// Health check
	r.GET("/health", healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/instruments", listInstruments)

		v1.GET("/grid", h.getGrid)
		v1.POST("/grid/toggle", h.toggleCell)
		v1.PUT("/grid/cell", h.setCell)
		v1.POST("/grid/clear", h.clearGrid)

		v1.GET("/transport", h.getTransport)
		v1.POST("/transport/start", h.start)
		v1.POST("/transport/stop", h.stop)

		v1.POST("/tempo/up", h.tempoUp)
		v1.POST("/tempo/down", h.tempoDown)
		v1.POST("/tempo/reset", h.tempoReset)

		v1.GET("/pattern", h.downloadPattern)
		v1.POST("/pattern", h.uploadPattern)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// StartServer starts the API server on the specified port
func StartServer(port int, ctrl *playback.Controller) error {
	return NewRouter(ctrl).Run(fmt.Sprintf(":%d", port))
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// errorStatus maps controller errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, grid.ErrOutOfRange),
		errors.Is(err, grid.ErrInvalidStateSize),
		errors.Is(err, persist.ErrCorruptPersistedState):
		return http.StatusBadRequest
	case errors.Is(err, playback.ErrPlaybackRejected):
		return http.StatusConflict
	case errors.Is(err, playback.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(errorStatus(err), gin.H{"error": err.Error()})
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "beatbox",
	})
}

// listInstruments godoc
// @Summary List instruments
// @Description Returns the fixed instrument table in row order
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]instrument.Slot
// @Router /api/v1/instruments [get]
func listInstruments(c *gin.Context) {
	slots := instrument.All()
	c.JSON(http.StatusOK, gin.H{"instruments": slots[:]})
}

func gridResponse(m grid.Matrix) GridResponse {
	resp := GridResponse{Active: m.ActiveCount()}
	for _, s := range instrument.All() {
		resp.Rows = append(resp.Rows, Row{
			Index:   s.Index,
			Name:    s.Name,
			Trigger: s.Trigger,
			Steps:   append([]bool(nil), m[s.Index][:]...),
			Pattern: m.Row(s.Index),
		})
	}
	return resp
}

// getGrid godoc
// @Summary Get the grid
// @Description Returns every cell of the 16x16 grid
// @Tags grid
// @Produce json
// @Success 200 {object} GridResponse
// @Router /api/v1/grid [get]
func (h *handler) getGrid(c *gin.Context) {
	c.JSON(http.StatusOK, gridResponse(h.ctrl.Grid()))
}

// toggleCell godoc
// @Summary Toggle a cell
// @Description Flips one cell of the grid
// @Tags grid
// @Accept json
// @Produce json
// @Param cell body CellRequest true "Cell to toggle"
// @Success 200 {object} GridResponse
// @Failure 400 {object} map[string]string
// @Router /api/v1/grid/toggle [post]
func (h *handler) toggleCell(c *gin.Context) {
	var req CellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.ctrl.ToggleCell(req.Instrument, req.Step); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gridResponse(h.ctrl.Grid()))
}

// setCell godoc
// @Summary Set a cell
// @Description Turns one cell on or off
// @Tags grid
// @Accept json
// @Produce json
// @Param cell body CellRequest true "Cell and value"
// @Success 200 {object} GridResponse
// @Failure 400 {object} map[string]string
// @Router /api/v1/grid/cell [put]
func (h *handler) setCell(c *gin.Context) {
	var req CellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Active == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "active is required"})
		return
	}
	if err := h.ctrl.SetCell(req.Instrument, req.Step, *req.Active); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gridResponse(h.ctrl.Grid()))
}

// clearGrid godoc
// @Summary Clear the grid
// @Description Turns every cell off
// @Tags grid
// @Produce json
// @Success 200 {object} GridResponse
// @Router /api/v1/grid/clear [post]
func (h *handler) clearGrid(c *gin.Context) {
	h.ctrl.Clear()
	c.JSON(http.StatusOK, gridResponse(h.ctrl.Grid()))
}

// getTransport godoc
// @Summary Transport status
// @Description Returns the playback state and tempo
// @Tags transport
// @Produce json
// @Success 200 {object} playback.Status
// @Router /api/v1/transport [get]
func (h *handler) getTransport(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctrl.Status())
}

// start godoc
// @Summary Start playback
// @Description Compiles the grid and loops it. From stopped, playback begins at the first step; while playing, the new pattern takes over at the current position
// @Tags transport
// @Produce json
// @Success 200 {object} playback.Status
// @Failure 409 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /api/v1/transport/start [post]
func (h *handler) start(c *gin.Context) {
	if err := h.ctrl.Start(); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.ctrl.Status())
}

// stop godoc
// @Summary Stop playback
// @Tags transport
// @Produce json
// @Success 200 {object} playback.Status
// @Router /api/v1/transport/stop [post]
func (h *handler) stop(c *gin.Context) {
	h.ctrl.Stop()
	c.JSON(http.StatusOK, h.ctrl.Status())
}

// tempoUp godoc
// @Summary Tempo up
// @Description Multiplies the tempo factor by 1.03
// @Tags tempo
// @Produce json
// @Success 200 {object} playback.Status
// @Failure 503 {object} map[string]string
// @Router /api/v1/tempo/up [post]
func (h *handler) tempoUp(c *gin.Context) {
	if _, err := h.ctrl.TempoUp(); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.ctrl.Status())
}

// tempoDown godoc
// @Summary Tempo down
// @Description Multiplies the tempo factor by 0.97
// @Tags tempo
// @Produce json
// @Success 200 {object} playback.Status
// @Failure 503 {object} map[string]string
// @Router /api/v1/tempo/down [post]
func (h *handler) tempoDown(c *gin.Context) {
	if _, err := h.ctrl.TempoDown(); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.ctrl.Status())
}

// tempoReset godoc
// @Summary Reset tempo
// @Description Sets the tempo factor back to 1.0
// @Tags tempo
// @Produce json
// @Success 200 {object} playback.Status
// @Failure 503 {object} map[string]string
// @Router /api/v1/tempo/reset [post]
func (h *handler) tempoReset(c *gin.Context) {
	if err := h.ctrl.TempoReset(); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.ctrl.Status())
}

// downloadPattern godoc
// @Summary Download the pattern
// @Description Encodes the grid as a saved pattern file
// @Tags pattern
// @Produce application/octet-stream
// @Param format query string false "ser (default), yml or mid"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/pattern [get]
func (h *handler) downloadPattern(c *gin.Context) {
	f := persist.ParseFormat(c.DefaultQuery("format", string(persist.FormatJava)))
	codec, err := persist.ForFormat(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data, err := codec.Encode(h.ctrl.Grid())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var contentType, ext string
	switch f {
	case persist.FormatMIDI:
		contentType, ext = "audio/midi", ".mid"
	case persist.FormatText:
		contentType, ext = "application/yaml", ".yml"
	default:
		contentType, ext = "application/octet-stream", ".ser"
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=pattern%s", ext))
	c.Data(http.StatusOK, contentType, data)
}

// uploadPattern godoc
// @Summary Load a pattern
// @Description Upload a saved pattern; replaces the grid and stops playback
// @Tags pattern
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Pattern file (.ser, .yml or .mid)"
// @Success 200 {object} GridResponse
// @Failure 400 {object} map[string]string
// @Router /api/v1/pattern [post]
func (h *handler) uploadPattern(c *gin.Context) {
	// Get uploaded file
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, maxUpload))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}

	// Trust a known extension, otherwise sniff the content
	if f := persist.DetectFormat(header.Filename); f != persist.FormatUnknown {
		codec, _ := persist.ForFormat(f)
		m, err := codec.Decode(data)
		if err != nil {
			abortWithError(c, err)
			return
		}
		h.ctrl.LoadMatrix(m)
	} else if err := h.ctrl.Load(data); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gridResponse(h.ctrl.Grid()))
}
