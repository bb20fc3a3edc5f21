package controllers

import (
	"time"

	"github.com/DarkStars1922/zcpt/pkg/resp"
	"github.com/DarkStars1922/zcpt/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type DecisionRequest struct {
	Decision   string `json:"decision" binding:"required,max=20"`
	Comment    string `json:"comment" binding:"max=1000"`
	ReasonCode string `json:"reasonCode" binding:"max=64"`
	ReasonText string `json:"reasonText" binding:"max=2000"`
}

type BatchDecisionRequest struct {
	ApplicationIDs []uint `json:"applicationIds" binding:"required,min=1,max=200"`
	Decision       string `json:"decision" binding:"required,max=20"`
	Comment        string `json:"comment" binding:"max=1000"`
	ReasonCode     string `json:"reasonCode" binding:"max=64"`
	ReasonText     string `json:"reasonText" binding:"max=2000"`
}

type ReviewController struct {
	DB      *gorm.DB
	Service *services.ReviewService
}

func NewReviewController(db *gorm.DB) *ReviewController {
	return &ReviewController{DB: db, Service: services.NewReviewService(db)}
}

func (r *ReviewController) pendingQuery(c *gin.Context) (services.PendingQuery, bool) {
	classID, ok := queryIntPtr(c, "classId")
	if !ok {
		return services.PendingQuery{}, false
	}
	return services.PendingQuery{
		ClassID:  classID,
		Category: c.Query("category"),
		SubType:  c.Query("subType"),
		Keyword:  c.Query("keyword"),
		Page:     queryInt(c, "page", 1),
		Size:     queryInt(c, "size", 10),
	}, true
}

// GET /reviews/pending
func (r *ReviewController) Pending(c *gin.Context) {
	user, ok := currentUser(c, r.DB)
	if !ok {
		return
	}
	q, ok := r.pendingQuery(c)
	if !ok {
		return
	}

	page, err := r.Service.PendingList(user, q)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resp.OK(c, page)
}

// GET /reviews/pending/by-category
func (r *ReviewController) PendingByCategory(c *gin.Context) {
	user, ok := currentUser(c, r.DB)
	if !ok {
		return
	}
	q, ok := r.pendingQuery(c)
	if !ok {
		return
	}

	page, err := r.Service.PendingByCategory(user, q)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resp.OK(c, page)
}

// GET /reviews/pending/category-summary
func (r *ReviewController) PendingSummary(c *gin.Context) {
	user, ok := currentUser(c, r.DB)
	if !ok {
		return
	}
	classID, ok := queryIntPtr(c, "classId")
	if !ok {
		return
	}

	stats, err := r.Service.PendingCategorySummary(user, classID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resp.OK(c, gin.H{"categories": stats})
}

// GET /reviews/pending/count
func (r *ReviewController) PendingCount(c *gin.Context) {
	user, ok := currentUser(c, r.DB)
	if !ok {
		return
	}

	count, err := r.Service.PendingCount(user)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resp.OK(c, gin.H{"pendingCount": count})
}

// GET /reviews/history
func (r *ReviewController) History(c *gin.Context) {
	user, ok := currentUser(c, r.DB)
	if !ok {
		return
	}

	var from, to *time.Time
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			resp.BadRequest(c, "from must be RFC3339")
			return
		}
		from = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			resp.BadRequest(c, "to must be RFC3339")
			return
		}
		to = &t
	}

	page, err := r.Service.History(user, c.Query("result"), from, to,
		queryInt(c, "page", 1), queryInt(c, "size", 10))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resp.OK(c, page)
}

// GET /reviews/:id
func (r *ReviewController) Detail(c *gin.Context) {
	user, ok := currentUser(c, r.DB)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}

	detail, err := r.Service.Detail(user, id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resp.OK(c, detail)
}

// POST /reviews/:id/decision
func (r *ReviewController) Decide(c *gin.Context) {
	user, ok := currentUser(c, r.DB)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.BadRequest(c, err.Error())
		return
	}

	app, rec, err := r.Service.Decide(user, id, services.DecisionInput{
		Decision:   req.Decision,
		Comment:    req.Comment,
		ReasonCode: req.ReasonCode,
		ReasonText: req.ReasonText,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	resp.OK(c, gin.H{
		"applicationId": app.ID,
		"status":        app.Status,
		"version":       app.Version,
		"reviewId":      rec.ID,
		"reviewedAt":    rec.CreatedAt,
	})
}

// POST /reviews/batch-decision
func (r *ReviewController) BatchDecide(c *gin.Context) {
	user, ok := currentUser(c, r.DB)
	if !ok {
		return
	}

	var req BatchDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.BadRequest(c, err.Error())
		return
	}

	outcomes, err := r.Service.BatchDecide(user, req.ApplicationIDs, services.DecisionInput{
		Decision:   req.Decision,
		Comment:    req.Comment,
		ReasonCode: req.ReasonCode,
		ReasonText: req.ReasonText,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resp.OK(c, gin.H{"results": outcomes})
}
