package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"repaytrack/internal/contract"
)

// Health reports that the server is up.
// @Summary     Health check
// @Tags        system
// @Produce     json
// @Success     200 {object} contract.HealthResponse
// @Router      /health [get]
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, contract.HealthResponse{Status: "ok"})
}
