package http

import (
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	core "tdp/ingestion/service/core"
)

// TenantHeader carries the tenant for text/plain uploads
const TenantHeader = "X-Tenant-ID"

// LogHandler encapsulates the logic for handling HTTP ingestion requests
type LogHandler struct {
	svc          *core.Service
	logger       *log.Logger
	serviceName  string
	version      string
	topic        string
	maxBodyBytes int64
}

// HandlerOptions describes the gateway for the informational endpoints
type HandlerOptions struct {
	ServiceName  string
	Version      string
	Topic        string
	MaxBodyBytes int64
}

// NewLogHandler creates a new LogHandler
func NewLogHandler(s *core.Service, l *log.Logger, opts HandlerOptions) *LogHandler {
	return &LogHandler{
		svc:          s,
		logger:       l,
		serviceName:  opts.ServiceName,
		version:      opts.Version,
		topic:        opts.Topic,
		maxBodyBytes: opts.MaxBodyBytes,
	}
}

// Register mounts the gateway routes
func (h *LogHandler) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.HealthCheck)
	r.POST("/ingest", h.Ingest)
}

// NewRouter builds a gin engine with the gateway routes
func NewRouter(h *LogHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	h.Register(r)
	return r
}

// Root handles GET /
func (h *LogHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.serviceName,
		"version": h.version,
	})
}

// HealthCheck handles GET /health
func (h *LogHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"topic":     h.topic,
	})
}

// Ingest handles POST /ingest
func (h *LogHandler) Ingest(c *gin.Context) {
	body := c.Request.Body
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(c.Writer, body, h.maxBodyBytes)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(c, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		h.logger.Printf("HTTP Handler: Failed to read request body: %v", err)
		h.respondError(c, http.StatusBadRequest, "Failed to read request body")
		return
	}

	result, err := h.svc.Ingest(c.Request.Context(), core.IngestRequest{
		ContentType:  c.GetHeader("Content-Type"),
		TenantHeader: c.GetHeader(TenantHeader),
		Body:         data,
	})
	if err != nil {
		status := core.StatusOf(err)
		reason := core.ReasonInternalError
		var ie *core.IngestError
		if errors.As(err, &ie) {
			reason = ie.Reason
		}
		if status >= http.StatusInternalServerError {
			h.logger.Printf("HTTP Handler: Ingest failed: %v", err)
		}
		h.respondError(c, status, reason)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":     "accepted",
		"tenant_id":  result.TenantID,
		"log_id":     result.LogID,
		"message_id": result.MessageID,
		"message":    "Data queued for processing",
	})
}

// respondError sends the error envelope: status text, code and reason
func (h *LogHandler) respondError(c *gin.Context, statusCode int, detail string) {
	c.AbortWithStatusJSON(statusCode, gin.H{
		"error":  http.StatusText(statusCode),
		"status": statusCode,
		"detail": detail,
	})
}
