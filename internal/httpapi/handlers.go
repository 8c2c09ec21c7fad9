package httpapi

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	twotier "github.com/kirky-x/twotier"
	"github.com/kirky-x/twotier/internal/cerror"
	"github.com/kirky-x/twotier/internal/logging"
)

// setRequest is the PUT /keys/:key body: value is base64-encoded so the
// JSON wire format can still carry arbitrary binary cache values.
type setRequest struct {
	Value string `json:"value" binding:"required,base64"`
	TTLMs int64  `json:"ttl_ms,omitempty" binding:"omitempty,min=0"`
}

// Handler adapts a *twotier.Cache to HTTP verbs — GET/PUT/DELETE on
// /keys/:key — for ad hoc exercising and benchmarking via cmd/twotier-bench.
type Handler struct {
	cache  *twotier.Cache
	logger logging.Logger
}

// NewHandler builds a Handler over cache.
func NewHandler(cache *twotier.Cache, logger logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Handler{cache: cache, logger: logger}
}

// Register wires Handler's routes onto router.
func (h *Handler) Register(router gin.IRouter) {
	router.GET("/keys/:key", h.get)
	router.PUT("/keys/:key", h.set)
	router.DELETE("/keys/:key", h.delete)
}

func (h *Handler) get(c *gin.Context) {
	key := c.Param("key")
	value, ok, err := h.cache.Get(c.Request.Context(), key)
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", value)
}

func (h *Handler) set(c *gin.Context) {
	key := c.Param("key")

	var body setRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	value, err := base64.StdEncoding.DecodeString(body.Value)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ttl := time.Duration(body.TTLMs) * time.Millisecond

	if err := h.cache.Set(c.Request.Context(), key, value, ttl); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) delete(c *gin.Context) {
	key := c.Param("key")
	if err := h.cache.Delete(c.Request.Context(), key); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, cerror.ErrKeyTooLong), errors.Is(err, cerror.ErrValueTooLarge), errors.Is(err, cerror.ErrConfigInvalid):
		status = http.StatusBadRequest
	case errors.Is(err, cerror.ErrBackendTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, cerror.ErrBackendUnavailable), errors.Is(err, cerror.ErrDegraded):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
