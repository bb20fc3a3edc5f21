package controllers

import (
	"time"

	"github.com/DarkStars1922/zcpt/configs"
	"github.com/DarkStars1922/zcpt/entity"
	"github.com/DarkStars1922/zcpt/pkg/resp"
	"github.com/DarkStars1922/zcpt/repository"
	"github.com/DarkStars1922/zcpt/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type AttachmentPayload struct {
	FileID  string `json:"fileId"`
	FileURL string `json:"fileUrl"`
}

type ApplicationRequest struct {
	Category    string              `json:"category" binding:"required,max=32"`
	SubType     string              `json:"subType" binding:"required,max=64"`
	AwardUID    int                 `json:"awardUid" binding:"min=0"`
	Title       string              `json:"title" binding:"required,max=255"`
	Description string              `json:"description" binding:"required,max=2000"`
	OccurredAt  string              `json:"occurredAt" binding:"required"`
	Attachments []AttachmentPayload `json:"attachments"`
	Score       *float64            `json:"score"`
}

type ApplicationUpdateRequest struct {
	ApplicationRequest
	Version int `json:"version" binding:"required,min=1"`
}

type AIResultRequest struct {
	Abnormal bool `json:"abnormal"`
}

type ApplicationController struct {
	DB      *gorm.DB
	Service *services.ApplicationService
}

func NewApplicationController(db *gorm.DB, cfg *configs.Config) *ApplicationController {
	return &ApplicationController{
		DB:      db,
		Service: services.NewApplicationService(db, services.DefaultAwardScoreTable(), cfg.AIAuditEnabled),
	}
}

func (r ApplicationRequest) toPayload() (services.ApplicationPayload, error) {
	occurredAt, err := time.Parse("2006-01-02", r.OccurredAt)
	if err != nil {
		return services.ApplicationPayload{}, err
	}
	attachments := make([]entity.Attachment, 0, len(r.Attachments))
	for _, att := range r.Attachments {
		attachments = append(attachments, entity.Attachment{FileID: att.FileID, FileURL: att.FileURL})
	}
	return services.ApplicationPayload{
		Category:    r.Category,
		SubType:     r.SubType,
		AwardUID:    r.AwardUID,
		Title:       r.Title,
		Description: r.Description,
		OccurredAt:  occurredAt,
		Attachments: attachments,
		Score:       r.Score,
	}, nil
}

// POST /applications
func (a *ApplicationController) Create(c *gin.Context) {
	user, ok := currentUser(c, a.DB)
	if !ok {
		return
	}

	var req ApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.BadRequest(c, err.Error())
		return
	}
	payload, err := req.toPayload()
	if err != nil {
		resp.BadRequest(c, "occurredAt must be YYYY-MM-DD")
		return
	}

	app, err := a.Service.Create(user, payload)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	resp.Created(c, gin.H{
		"id":               app.ID,
		"status":           app.Status,
		"score":            app.Score,
		"scoreRuleVersion": app.ScoreRuleVersion,
		"version":          app.Version,
		"createdAt":        app.CreatedAt,
	})
}

// GET /applications/my
func (a *ApplicationController) ListMine(c *gin.Context) {
	user, ok := currentUser(c, a.DB)
	if !ok {
		return
	}

	filter := repository.MyListFilter{
		Status:   entity.ApplicationStatus(c.Query("status")),
		Category: c.Query("category"),
		SubType:  c.Query("subType"),
		Keyword:  c.Query("keyword"),
	}
	page, err := a.Service.ListMine(user, filter, queryInt(c, "page", 1), queryInt(c, "size", 10))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resp.OK(c, page)
}

// GET /applications/my/category-summary
func (a *ApplicationController) CategorySummary(c *gin.Context) {
	user, ok := currentUser(c, a.DB)
	if !ok {
		return
	}

	summary, err := a.Service.MyCategorySummary(user)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resp.OK(c, summary)
}

// GET /applications/my/by-category
func (a *ApplicationController) ByCategory(c *gin.Context) {
	user, ok := currentUser(c, a.DB)
	if !ok {
		return
	}

	filter := repository.MyListFilter{
		Status:  entity.ApplicationStatus(c.Query("status")),
		SubType: c.Query("subType"),
	}
	page, err := a.Service.MyByCategory(user, c.Query("category"), filter,
		queryInt(c, "page", 1), queryInt(c, "size", 10))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resp.OK(c, page)
}

// GET /applications/:id
func (a *ApplicationController) Detail(c *gin.Context) {
	user, ok := currentUser(c, a.DB)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}

	app, err := a.Service.Detail(user, id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	resp.OK(c, gin.H{
		"id":               app.ID,
		"applicantId":      app.ApplicantID,
		"category":         app.Category,
		"subType":          app.SubType,
		"awardUid":         app.AwardUID,
		"title":            app.Title,
		"description":      app.Description,
		"occurredAt":       app.OccurredAt.Format("2006-01-02"),
		"attachments":      app.Attachments(),
		"status":           app.Status,
		"score":            app.Score,
		"scoreRuleVersion": app.ScoreRuleVersion,
		"comment":          app.Comment,
		"version":          app.Version,
		"createdAt":        app.CreatedAt,
		"updatedAt":        app.UpdatedAt,
	})
}

// PUT /applications/:id
func (a *ApplicationController) Update(c *gin.Context) {
	user, ok := currentUser(c, a.DB)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req ApplicationUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.BadRequest(c, err.Error())
		return
	}
	payload, err := req.toPayload()
	if err != nil {
		resp.BadRequest(c, "occurredAt must be YYYY-MM-DD")
		return
	}

	app, err := a.Service.Update(user, id, payload, req.Version)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resp.OK(c, gin.H{
		"id":        app.ID,
		"status":    app.Status,
		"score":     app.Score,
		"version":   app.Version,
		"updatedAt": app.UpdatedAt,
	})
}

// POST /applications/:id/withdraw
func (a *ApplicationController) Withdraw(c *gin.Context) {
	user, ok := currentUser(c, a.DB)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}

	app, err := a.Service.Withdraw(user, id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resp.OK(c, gin.H{"id": app.ID, "status": app.Status, "version": app.Version})
}

// DELETE /applications/:id
func (a *ApplicationController) Delete(c *gin.Context) {
	user, ok := currentUser(c, a.DB)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}

	if err := a.Service.SoftDelete(user, id); err != nil {
		handleServiceError(c, err)
		return
	}
	resp.OK(c, gin.H{})
}

// POST /admin/applications/:id/ai-result is the write-back seam for
// the external AI screening step.
func (a *ApplicationController) AIResult(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req AIResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.BadRequest(c, err.Error())
		return
	}

	app, err := a.Service.CompleteAIScreening(id, req.Abnormal)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	resp.OK(c, gin.H{"id": app.ID, "status": app.Status, "version": app.Version})
}
