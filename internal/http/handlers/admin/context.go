package admin

import (
	"github.com/lumeo-api/internal/constants"
	"github.com/lumeo-api/internal/http/response"

	"github.com/gin-gonic/gin"
)

func getAdminID(c *gin.Context) (uint, bool) {
	value, exists := c.Get("admin_id")
	if !exists {
		respondError(c, response.CodeUnauthorized, "unauthorized", nil)
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		if v < 0 {
			respondError(c, response.CodeBadRequest, "invalid admin id", nil)
			return 0, false
		}
		return uint(v), true
	case float64:
		if v < 0 {
			respondError(c, response.CodeBadRequest, "invalid admin id", nil)
			return 0, false
		}
		return uint(v), true
	default:
		respondError(c, response.CodeInternal, "invalid admin id type", nil)
		return 0, false
	}
}

func normalizePagination(page, pageSize int) (int, int) {
	if page < 1 {
		page = constants.DefaultPage
	}
	if pageSize < 1 {
		pageSize = constants.DefaultPageSize
	}
	if pageSize > constants.MaxPageSize {
		pageSize = constants.MaxPageSize
	}
	return page, pageSize
}
