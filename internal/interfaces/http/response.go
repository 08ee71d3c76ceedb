package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/flow-forge/internal/domain/workflow"
)

// Response represents a standard JSON response.
// Code carries the engine error kind when one applies.
type Response struct {
	Success bool          `json:"success"`
	Data    interface{}   `json:"data,omitempty"`
	Error   string        `json:"error,omitempty"`
	Code    workflow.Code `json:"code,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// IDResponse is returned by the creating endpoints
type IDResponse struct {
	ID int64 `json:"id"`
}

// StateResponse is returned by GET /api/workflows/:id/state
type StateResponse struct {
	ID    int64          `json:"id"`
	State workflow.State `json:"state"`
}

var errBadRequest = errors.New("bad request")

func statusFor(code workflow.Code) int {
	switch code {
	case workflow.CodeNotFound:
		return http.StatusNotFound
	case workflow.CodeUnauthorized:
		return http.StatusForbidden
	case workflow.CodeInvalidState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
}

// fail writes an engine error with its code, or a 500 for anything else.
// Internal error text is not exposed.
func (h *Handlers) fail(c *gin.Context, op string, err error) {
	if errors.Is(err, errBadRequest) {
		badRequest(c, err)
		return
	}

	code, isEngine := workflow.CodeOf(err)
	if !isEngine {
		h.logger.Error("Request failed", "operation", op, "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal error"})
		return
	}

	c.JSON(statusFor(code), Response{Success: false, Error: err.Error(), Code: code})
}

func parseID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", errBadRequest, c.Param("id"))
	}
	return id, nil
}
