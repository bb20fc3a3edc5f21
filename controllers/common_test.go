package controllers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DarkStars1922/zcpt/entity"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func roleContext(role string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	if role != "" {
		c.Set("role", role)
	}
	return c, w
}

func TestRequireRoleScreensOnClaim(t *testing.T) {
	c, w := roleContext(entity.RoleTeacher)
	assert.True(t, requireRole(c, entity.RoleTeacher, entity.RoleAdmin))
	assert.Equal(t, http.StatusOK, w.Code)

	c, w = roleContext(entity.RoleStudent)
	assert.False(t, requireRole(c, entity.RoleTeacher, entity.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, w.Code)

	// missing claim is treated like any other wrong role
	c, w = roleContext("")
	assert.False(t, requireRole(c, entity.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, w.Code)
}
