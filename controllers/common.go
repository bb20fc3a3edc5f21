package controllers

import (
	"errors"
	"strconv"

	"github.com/DarkStars1922/zcpt/entity"
	"github.com/DarkStars1922/zcpt/pkg/resp"
	"github.com/DarkStars1922/zcpt/services"
	"github.com/DarkStars1922/zcpt/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// handleServiceError maps the service error taxonomy to HTTP statuses.
func handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		resp.NotFound(c, err.Error())
	case errors.Is(err, services.ErrForbidden):
		resp.Forbidden(c, err.Error())
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrInvalidScore):
		resp.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrInvalidState),
		errors.Is(err, services.ErrVersionConflict),
		errors.Is(err, services.ErrConflict):
		resp.Conflict(c, err.Error())
	default:
		resp.ServerError(c, err)
	}
}

// requireRole screens on the JWT role claim before any row is loaded.
// The service layer still authorizes against the stored user.
func requireRole(c *gin.Context, roles ...string) bool {
	role := utils.CurrentRole(c)
	for _, r := range roles {
		if role == r {
			return true
		}
	}
	resp.Forbidden(c, "insufficient role")
	return false
}

// currentUser loads the authenticated principal. Services need the full
// row (reviewer pair, class), not just the JWT claims.
func currentUser(c *gin.Context, db *gorm.DB) (*entity.User, bool) {
	var user entity.User
	if err := db.First(&user, utils.CurrentUserID(c)).Error; err != nil {
		resp.Unauthorized(c, "user not found")
		return nil, false
	}
	return &user, true
}

func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		resp.BadRequest(c, "invalid id")
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v := c.Query(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func queryIntPtr(c *gin.Context, key string) (*int, bool) {
	v := c.Query(key)
	if v == "" {
		return nil, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		resp.BadRequest(c, "invalid "+key)
		return nil, false
	}
	return &n, true
}
