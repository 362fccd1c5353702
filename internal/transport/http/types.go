package apihttp

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"polytrader/internal/service"
)

// Every endpoint answers the same envelope: {"success": true, "data": ...}
// or {"success": false, "error": "..."}.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, envelope{Success: true, Data: data})
}

func respondErr(c *gin.Context, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, service.ErrNotFound) {
		status = http.StatusNotFound
	}
	c.JSON(status, envelope{Success: false, Error: err.Error()})
}

func respondInternal(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, envelope{Success: false, Error: err.Error()})
}
