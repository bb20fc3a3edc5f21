package controllers

import (
	"time"

	"github.com/DarkStars1922/zcpt/entity"
	"github.com/DarkStars1922/zcpt/pkg/resp"
	"github.com/DarkStars1922/zcpt/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type TokenCreateRequest struct {
	ClassIDs  []int     `json:"classIds" binding:"required,min=1"`
	ExpiredAt time.Time `json:"expiredAt" binding:"required"`
}

type TokenActivateRequest struct {
	Token string `json:"token" binding:"required,min=6,max=64"`
}

type TokenController struct {
	DB      *gorm.DB
	Service *services.TokenService
}

func NewTokenController(db *gorm.DB) *TokenController {
	return &TokenController{DB: db, Service: services.NewTokenService(db)}
}

// POST /tokens/reviewer
func (t *TokenController) Create(c *gin.Context) {
	if !requireRole(c, entity.RoleTeacher, entity.RoleAdmin) {
		return
	}
	user, ok := currentUser(c, t.DB)
	if !ok {
		return
	}

	var req TokenCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.BadRequest(c, err.Error())
		return
	}

	row, err := t.Service.Issue(user, req.ClassIDs, req.ExpiredAt)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	resp.Created(c, gin.H{
		"tokenId":   row.ID,
		"token":     row.Token,
		"type":      row.TokenType,
		"classIds":  row.ClassIDs(),
		"expiredAt": row.ExpiredAt,
	})
}

// POST /tokens/reviewer/activate
func (t *TokenController) Activate(c *gin.Context) {
	user, ok := currentUser(c, t.DB)
	if !ok {
		return
	}

	var req TokenActivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.BadRequest(c, err.Error())
		return
	}

	row, err := t.Service.Activate(user, req.Token)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	resp.OK(c, gin.H{
		"tokenId":         row.ID,
		"status":          "active",
		"activatedUserId": row.ActivatedUserID,
		"activatedAt":     row.ActivatedAt,
		"isReviewer":      user.IsReviewer,
		"reviewerTokenId": user.ReviewerTokenID,
	})
}

// GET /tokens
func (t *TokenController) List(c *gin.Context) {
	if !requireRole(c, entity.RoleTeacher, entity.RoleAdmin) {
		return
	}
	user, ok := currentUser(c, t.DB)
	if !ok {
		return
	}

	page, err := t.Service.List(user, c.DefaultQuery("type", "reviewer"), c.Query("status"),
		queryInt(c, "page", 1), queryInt(c, "size", 10))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resp.OK(c, page)
}

// POST /tokens/:id/revoke
func (t *TokenController) Revoke(c *gin.Context) {
	if !requireRole(c, entity.RoleTeacher, entity.RoleAdmin) {
		return
	}
	user, ok := currentUser(c, t.DB)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}

	if _, err := t.Service.Revoke(user, id); err != nil {
		handleServiceError(c, err)
		return
	}
	resp.OK(c, gin.H{})
}
