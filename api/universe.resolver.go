package api

import (
	l1_service "sectorscan/internal/service/l1"

	"github.com/gin-gonic/gin"
)

type getUniverseResponse struct {
	Sector      string   `json:"sector"`
	Instruments []string `json:"instruments"`
}

func (h ApiHandler) getUniverse(c *gin.Context) {
	sector := l1_service.NormalizeSectorTag(c.Param("sector"))
	instruments := h.UniverseResolver.Resolve(c.Request.Context(), sector)

	c.JSON(200, getUniverseResponse{
		Sector:      sector,
		Instruments: instruments,
	})
}
