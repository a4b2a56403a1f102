package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/geet-h17/canvas-lms/internal/middleware"
	"github.com/geet-h17/canvas-lms/internal/models"
	appErrors "github.com/geet-h17/canvas-lms/pkg/errors"
	"github.com/geet-h17/canvas-lms/pkg/response"
)

// claimsFromContext returns the authenticated claims, or nil when the request
// never went through the JWT middleware.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil
	}
	claims, _ := value.(*models.JWTClaims)
	return claims
}

// requireClaims fetches the authenticated claims and answers 401 itself when
// they are absent. Callers must return immediately on ok == false.
func requireClaims(c *gin.Context) (claims *models.JWTClaims, ok bool) {
	claims = claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return claims, true
}

// bindJSON decodes the request body into dst, answering 400 with msg when the
// payload does not parse. Callers must return immediately on false.
func bindJSON(c *gin.Context, dst interface{}, msg string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, msg))
		return false
	}
	return true
}

// listWindow reads the paging and ordering query parameters shared by the
// list endpoints. Unparseable numbers fall back to zero and are clamped by
// the repositories.
func listWindow(c *gin.Context) (page, size int, sortBy, sortOrder string) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	return page, size, c.Query("sort"), c.Query("order")
}
