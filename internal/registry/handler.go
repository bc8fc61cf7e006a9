package registry

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mycoool/imonitor/internal/middleware"
)

// Publisher pushes a message to live dashboard clients
type Publisher interface {
	Publish(msgType string, data interface{})
}

// Handler exposes the registry over gin
type Handler struct {
	service   *Service
	publisher Publisher
	// pending holds at most one queued snapshot request
	pending chan struct{}
}

// NewHandler binds the service to HTTP. publisher may be nil; otherwise a
// single goroutine publishes snapshots for the life of the process.
func NewHandler(service *Service, publisher Publisher) *Handler {
	h := &Handler{service: service, publisher: publisher}
	if publisher != nil {
		h.pending = make(chan struct{}, 1)
		go h.publishLoop()
	}
	return h
}

type reserveRequest struct {
	Label string `json:"label"`
}

type renameRequest struct {
	Label *string `json:"label"`
}

// reportRequest keeps ip_address as a pointer so an omitted field can be
// told apart from an explicit empty string.
type reportRequest struct {
	Token     string                 `json:"token"`
	Hostname  string                 `json:"hostname"`
	IPAddress *string                `json:"ip_address"`
	Meta      map[string]interface{} `json:"meta"`
	Metrics   map[string]interface{} `json:"metrics"`
}

// HandleListNodes returns all nodes; tokens only for admin callers
func (h *Handler) HandleListNodes(c *gin.Context) {
	nodes, err := h.service.List(c.Request.Context(), IsAdmin(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, nodes)
}

func (h *Handler) HandleReserve(c *gin.Context) {
	var req reserveRequest
	// an empty body reserves an unlabelled node
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	resp, err := h.service.Reserve(requestContext(c), req.Label)
	if err != nil {
		writeError(c, err)
		return
	}
	h.notify()
	c.JSON(http.StatusOK, resp)
}

// HandleReport accepts a sampler snapshot. The token in the body is the credential.
func (h *Handler) HandleReport(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report body"})
		return
	}

	rep := Report{
		Token:    req.Token,
		Hostname: strings.TrimSpace(req.Hostname),
		Meta:     req.Meta,
		Metrics:  req.Metrics,
	}
	if req.IPAddress != nil {
		rep.IPAddress = *req.IPAddress
	} else {
		rep.IPAddress = middleware.GetClientIP(c)
	}

	if _, err := h.service.ApplyReport(requestContext(c), rep); err != nil {
		writeError(c, err)
		return
	}
	h.notify()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) HandleRename(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Label == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "label is required"})
		return
	}

	if err := h.service.Rename(requestContext(c), c.Param("token"), strings.TrimSpace(*req.Label)); err != nil {
		writeError(c, err)
		return
	}
	h.notify()
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (h *Handler) HandleDelete(c *gin.Context) {
	if err := h.service.Delete(requestContext(c), c.Param("token")); err != nil {
		writeError(c, err)
		return
	}
	h.notify()
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// IsAdmin reports whether the auth middleware admitted the caller as admin
func IsAdmin(c *gin.Context) bool {
	return c.GetString("role") == "admin"
}

// notify schedules a token-free snapshot for dashboard clients. Mutations
// arriving while a snapshot is queued share it.
func (h *Handler) notify() {
	if h.pending == nil {
		return
	}
	select {
	case h.pending <- struct{}{}:
	default:
	}
}

// publishLoop builds snapshots one at a time, so they are published in order
// and each reflects every mutation that requested it.
func (h *Handler) publishLoop() {
	for range h.pending {
		nodes, err := h.service.List(context.Background(), false)
		if err != nil {
			log.Printf("registry: failed to build stream snapshot: %v", err)
			continue
		}
		h.publisher.Publish("nodes", nodes)
	}
}

func requestContext(c *gin.Context) context.Context {
	return WithRemoteAddr(c.Request.Context(), middleware.GetClientIP(c))
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNodeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": ErrNodeNotFound.Error()})
	case errors.Is(err, ErrInvalidReport):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("registry: %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
