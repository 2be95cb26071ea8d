// Package responses provides standardized response formatting; errors follow
// the RFC 7807 Problem Details format.
package responses

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Aidin1998/dexter/pkg/errors"
)

// StandardResponse represents a standard API response format
type StandardResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// Success sends a successful response
func Success(c *gin.Context, data interface{}, message ...string) {
	send(c, http.StatusOK, data, "Operation successful", message)
}

// Accepted sends a 202 Accepted response
func Accepted(c *gin.Context, data interface{}, message ...string) {
	send(c, http.StatusAccepted, data, "Request accepted for processing", message)
}

func send(c *gin.Context, status int, data interface{}, msg string, message []string) {
	if len(message) > 0 && message[0] != "" {
		msg = message[0]
	}
	c.JSON(status, StandardResponse{
		Success:   true,
		Data:      data,
		Message:   msg,
		Timestamp: time.Now().UTC(),
		TraceID:   getTraceID(c),
	})
}

// Error sends err as problem details; errors that are not *errors.Error become 500s.
func Error(c *gin.Context, err error) {
	problem := errors.Problem(err, c.Request.URL.Path)
	c.Header("Content-Type", "application/problem+json")
	c.JSON(problem.Status, problem)
}

// BadRequest sends a 400 with an invalid order problem
func BadRequest(c *gin.Context, detail string) {
	Error(c, errors.InvalidOrder.Explain("%s", detail))
}

// getTraceID extracts trace ID from context
func getTraceID(c *gin.Context) string {
	if traceID, exists := c.Get("trace_id"); exists {
		if id, ok := traceID.(string); ok {
			return id
		}
	}
	return c.GetHeader("X-Trace-ID")
}
