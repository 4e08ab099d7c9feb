package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
)

type scanRequest struct {
	Sector string `json:"sector" binding:"required"`
}

func (h ApiHandler) scan(c *gin.Context) {
	var requestBody scanRequest
	if err := c.ShouldBindJSON(&requestBody); err != nil {
		returnErrorJsonCode(err, c, 400)
		return
	}
	if strings.TrimSpace(requestBody.Sector) == "" {
		returnErrorJsonCode(fmt.Errorf("sector is required"), c, 400)
		return
	}

	result, err := h.ScanService.Scan(c.Request.Context(), requestBody.Sector)
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	c.JSON(200, result)
}
