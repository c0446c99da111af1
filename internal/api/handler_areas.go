package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"turnero-desk/internal/model"
)

// GetAreas handles GET /api/areas, optionally narrowed with ?piso=N.
func (h *Handler) GetAreas(c *gin.Context) {
	if h.Catalog == nil {
		unavailable(c, "area catalog")
		return
	}

	areas := h.Catalog.All()
	if raw := c.Query("piso"); raw != "" {
		piso, err := strconv.Atoi(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid piso"})
			return
		}
		areas = h.Catalog.ForFloor(piso)
	}
	if areas == nil {
		areas = []model.Area{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": areas, "count": len(areas)})
}
