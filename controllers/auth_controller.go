package controllers

import (
	"net/http"
	"strings"

	"github.com/DarkStars1922/zcpt/configs"
	"github.com/DarkStars1922/zcpt/entity"
	"github.com/DarkStars1922/zcpt/pkg/resp"
	"github.com/DarkStars1922/zcpt/utils"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type RegisterRequest struct {
	Account  string `json:"account" binding:"required,min=3,max=32"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name" binding:"required"`
	Role     string `json:"role"`
	ClassID  *int   `json:"classId"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}
type LoginRequest struct {
	Account  string `json:"account" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthController struct {
	DB  *gorm.DB
	Cfg *configs.Config
}

func NewAuthController(db *gorm.DB, cfg *configs.Config) *AuthController {
	return &AuthController{DB: db, Cfg: cfg}
}

// POST /auth/register
func (a *AuthController) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.BadRequest(c, err.Error())
		return
	}

	role := req.Role
	if role == "" {
		role = entity.RoleStudent
	}
	switch role {
	case entity.RoleStudent, entity.RoleTeacher, entity.RoleAdmin:
	default:
		resp.BadRequest(c, "invalid role")
		return
	}

	account := strings.ToLower(strings.TrimSpace(req.Account))
	var exist entity.User
	if err := a.DB.Where("account = ?", account).First(&exist).Error; err == nil {
		resp.BadRequest(c, "account already registered")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		resp.ServerError(c, err)
		return
	}

	user := entity.User{
		Account:      account,
		PasswordHash: string(hashed),
		Name:         strings.TrimSpace(req.Name),
		Role:         role,
		ClassID:      req.ClassID,
		Email:        strings.TrimSpace(req.Email),
		Phone:        strings.TrimSpace(req.Phone),
	}
	if err := a.DB.Create(&user).Error; err != nil {
		resp.ServerError(c, err)
		return
	}

	resp.Created(c, gin.H{
		"id": user.ID, "account": user.Account, "name": user.Name,
		"role": user.Role, "classId": user.ClassID,
	})
}

// POST /auth/login
func (a *AuthController) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.BadRequest(c, err.Error())
		return
	}

	var user entity.User
	account := strings.ToLower(strings.TrimSpace(req.Account))
	if err := a.DB.Where("account = ?", account).First(&user).Error; err != nil {
		resp.Unauthorized(c, "invalid credentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		resp.Unauthorized(c, "invalid credentials")
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Role, a.Cfg.JWTSecret, a.Cfg.JWTTTL)
	if err != nil {
		resp.ServerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":    true,
		"token": token,
		"user": gin.H{
			"id": user.ID, "account": user.Account, "name": user.Name,
			"role": user.Role, "classId": user.ClassID, "isReviewer": user.IsReviewer,
		},
	})
}

// GET /auth/me
func (a *AuthController) Me(c *gin.Context) {
	user, ok := currentUser(c, a.DB)
	if !ok {
		return
	}
	resp.OK(c, gin.H{
		"id": user.ID, "account": user.Account, "name": user.Name,
		"role": user.Role, "classId": user.ClassID,
		"isReviewer": user.IsReviewer, "reviewerTokenId": user.ReviewerTokenID,
	})
}
