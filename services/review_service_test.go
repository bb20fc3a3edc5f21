package services

import (
	"testing"
	"time"

	"github.com/DarkStars1922/zcpt/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createApplication(t *testing.T, db *gorm.DB, applicant *entity.User, status entity.ApplicationStatus) *entity.Application {
	t.Helper()
	svc := newAppService(db)
	app, err := svc.Create(applicant, basePayload())
	require.NoError(t, err)
	if status != app.Status {
		require.NoError(t, db.Model(&entity.Application{}).Where("id = ?", app.ID).
			Update("status", status).Error)
		app.Status = status
	}
	return app
}

func countRecords(t *testing.T, db *gorm.DB, applicationID uint) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&entity.ReviewRecord{}).
		Where("application_id = ?", applicationID).Count(&count).Error)
	return count
}

func TestResolveActorTeacherUnscoped(t *testing.T) {
	db := newTestDB(t)
	svc := NewReviewService(db)
	teacher := createUser(t, db, "t1", entity.RoleTeacher, nil)

	actor, err := svc.ResolveActor(teacher)
	require.NoError(t, err)
	assert.False(t, actor.Scoped())
	assert.Equal(t, []entity.ApplicationStatus{entity.StatusPendingTeacher}, actor.ReviewableStatuses)
	assert.True(t, actor.InScope(intPtr(42)))
}

func TestResolveActorScopedReviewer(t *testing.T) {
	db := newTestDB(t)
	svc := NewReviewService(db)
	manager := createUser(t, db, "t1", entity.RoleTeacher, nil)
	student := createUser(t, db, "s1", entity.RoleStudent, intPtr(1))
	bindReviewer(t, db, student, manager.ID, []int{1, 2}, time.Now().Add(time.Hour))

	actor, err := svc.ResolveActor(student)
	require.NoError(t, err)
	assert.True(t, actor.Scoped())
	assert.ElementsMatch(t, []int{1, 2}, actor.ScopeClassIDs)
	assert.True(t, actor.InScope(intPtr(2)))
	assert.False(t, actor.InScope(intPtr(3)))
	assert.False(t, actor.InScope(nil))
	assert.ElementsMatch(t,
		[]entity.ApplicationStatus{entity.StatusPendingReview, entity.StatusAIAbnormal},
		actor.ReviewableStatuses)
}

func TestResolveActorExpiredTokenClearsBinding(t *testing.T) {
	db := newTestDB(t)
	svc := NewReviewService(db)
	manager := createUser(t, db, "t1", entity.RoleTeacher, nil)
	student := createUser(t, db, "s1", entity.RoleStudent, intPtr(1))
	bindReviewer(t, db, student, manager.ID, []int{1}, time.Now().Add(-time.Hour))

	_, err := svc.ResolveActor(student)
	assert.ErrorIs(t, err, ErrForbidden)

	// the stale pair is cleared as a committed side effect
	stored := reloadUser(t, db, student.ID)
	assert.False(t, stored.IsReviewer)
	assert.Nil(t, stored.ReviewerTokenID)
}

func TestResolveActorPlainStudentForbidden(t *testing.T) {
	db := newTestDB(t)
	svc := NewReviewService(db)
	student := createUser(t, db, "s1", entity.RoleStudent, intPtr(1))

	_, err := svc.ResolveActor(student)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestScopedApprovalEscalates(t *testing.T) {
	db := newTestDB(t)
	svc := NewReviewService(db)
	manager := createUser(t, db, "t1", entity.RoleTeacher, nil)
	applicant := createUser(t, db, "s1", entity.RoleStudent, intPtr(1))
	reviewer := createUser(t, db, "s2", entity.RoleStudent, intPtr(1))
	bindReviewer(t, db, reviewer, manager.ID, []int{1}, time.Now().Add(time.Hour))

	app := createApplication(t, db, applicant, entity.StatusPendingReview)

	updated, rec, err := svc.Decide(reviewer, app.ID, DecisionInput{Decision: "approved"})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPendingTeacher, updated.Status)
	assert.Equal(t, 2, updated.Version)
	// the record keeps the literal decision, not the escalated status
	assert.Equal(t, entity.DecisionApproved, rec.Decision)
}

func TestScopedRejectionIsTerminal(t *testing.T) {
	db := newTestDB(t)
	svc := NewReviewService(db)
	manager := createUser(t, db, "t1", entity.RoleTeacher, nil)
	applicant := createUser(t, db, "s1", entity.RoleStudent, intPtr(1))
	reviewer := createUser(t, db, "s2", entity.RoleStudent, intPtr(1))
	bindReviewer(t, db, reviewer, manager.ID, []int{1}, time.Now().Add(time.Hour))

	app := createApplication(t, db, applicant, entity.StatusPendingReview)

	updated, rec, err := svc.Decide(reviewer, app.ID, DecisionInput{
		Decision:   "rejected",
		ReasonCode: "EVIDENCE_MISSING",
		ReasonText: "attachment does not show the award",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRejected, updated.Status)
	assert.Equal(t, entity.DecisionRejected, rec.Decision)
	assert.Equal(t, "attachment does not show the award", updated.Comment)
}

func TestTeacherDecisionIsTerminal(t *testing.T) {
	db := newTestDB(t)
	svc := NewReviewService(db)
	teacher := createUser(t, db, "t1", entity.RoleTeacher, nil)
	applicant := createUser(t, db, "s1", entity.RoleStudent, intPtr(1))

	app := createApplication(t, db, applicant, entity.StatusPendingTeacher)

	updated, rec, err := svc.Decide(teacher, app.ID, DecisionInput{Decision: "approved"})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, updated.Status)
	assert.Equal(t, entity.DecisionApproved, rec.Decision)
	assert.EqualValues(t, 1, countRecords(t, db, app.ID))
}

func TestTeacherCannotReviewFirstPassQueue(t *testing.T) {
	db := newTestDB(t)
	svc := NewReviewService(db)
	teacher := createUser(t, db, "t1", entity.RoleTeacher, nil)
	applicant := createUser(t, db, "s1", entity.RoleStudent, intPtr(1))

	app := createApplication(t, db, applicant, entity.StatusPendingReview)

	_, _, err := svc.Decide(teacher, app.ID, DecisionInput{Decision: "approved"})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRejectionWithoutReasonWritesNothing(t *testing.T) {
	db := newTestDB(t)
	svc := NewReviewService(db)
	teacher := createUser(t, db, "t1", entity.RoleTeacher, nil)
	applicant := createUser(t, db, "s1", entity.RoleStudent, intPtr(1))

	app := createApplication(t, db, applicant, entity.StatusPendingTeacher)

	_, _, err := svc.Decide(teacher, app.ID, DecisionInput{Decision: "rejected"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	stored := reloadApplication(t, db, app.ID)
	assert.Equal(t, entity.StatusPendingTeacher, stored.Status)
	assert.Equal(t, 1, stored.Version)
	assert.EqualValues(t, 0, countRecords(t, db, app.ID))
}

func TestDecisionNormalization(t *testing.T) {
	db := newTestDB(t)
	svc := NewReviewService(db)
	teacher := createUser(t, db, "t1", entity.RoleTeacher, nil)
	applicant := createUser(t, db, "s1", entity.RoleStudent, intPtr(1))

	app := createApplication(t, db, applicant, entity.StatusPendingTeacher)

	_, _, err := svc.Decide(teacher, app.ID, DecisionInput{Decision: "maybe"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	updated, _, err := svc.Decide(teacher, app.ID, DecisionInput{Decision: "  Approved "})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, updated.Status)
}

func TestDecideOutOfScopeForbidden(t *testing.T) {
	db := newTestDB(t)
	svc := NewReviewService(db)
	manager := createUser(t, db, "t1", entity.RoleTeacher, nil)
	applicant := createUser(t, db, "s1", entity.RoleStudent, intPtr(3))
	reviewer := createUser(t, db, "s2", entity.RoleStudent, intPtr(1))
	bindReviewer(t, db, reviewer, manager.ID, []int{1}, time.Now().Add(time.Hour))

	app := createApplication(t, db, applicant, entity.StatusPendingReview)

	_, _, err := svc.Decide(reviewer, app.ID, DecisionInput{Decision: "approved"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDecideDeletedApplicationNotFound(t *testing.T) {
	db := newTestDB(t)
	svc := NewReviewService(db)
	teacher := createUser(t, db, "t1", entity.RoleTeacher, nil)
	applicant := createUser(t, db, "s1", entity.RoleStudent, intPtr(1))

	app := createApplication(t, db, applicant, entity.StatusPendingTeacher)
	require.NoError(t, newAppService(db).SoftDelete(applicant, app.ID))

	_, _, err := svc.Decide(teacher, app.ID, DecisionInput{Decision: "approved"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBatchDecideIndependentOutcomes(t *testing.T) {
	db := newTestDB(t)
	svc := NewReviewService(db)
	teacher := createUser(t, db, "t1", entity.RoleTeacher, nil)
	applicant := createUser(t, db, "s1", entity.RoleStudent, intPtr(1))

	ready := createApplication(t, db, applicant, entity.StatusPendingTeacher)
	notReady := createApplication(t, db, applicant, entity.StatusPendingReview)

	outcomes, err := svc.BatchDecide(teacher, []uint{ready.ID, notReady.ID, 9999},
		DecisionInput{Decision: "approved"})
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	assert.True(t, outcomes[0].OK)
	assert.Equal(t, entity.StatusApproved, outcomes[0].Status)

	assert.False(t, outcomes[1].OK)
	assert.NotEmpty(t, outcomes[1].Error)
	assert.Equal(t, entity.StatusPendingReview, reloadApplication(t, db, notReady.ID).Status)

	assert.False(t, outcomes[2].OK)
}

func TestPendingListScopedToClasses(t *testing.T) {
	db := newTestDB(t)
	svc := NewReviewService(db)
	manager := createUser(t, db, "t1", entity.RoleTeacher, nil)
	inClass := createUser(t, db, "s1", entity.RoleStudent, intPtr(1))
	outClass := createUser(t, db, "s2", entity.RoleStudent, intPtr(3))
	reviewer := createUser(t, db, "s3", entity.RoleStudent, intPtr(1))
	bindReviewer(t, db, reviewer, manager.ID, []int{1}, time.Now().Add(time.Hour))

	visible := createApplication(t, db, inClass, entity.StatusPendingReview)
	createApplication(t, db, outClass, entity.StatusPendingReview)

	page, err := svc.PendingList(reviewer, PendingQuery{})
	require.NoError(t, err)
	require.EqualValues(t, 1, page.Total)
	assert.Equal(t, visible.ID, page.List[0].ApplicationID)
	assert.Equal(t, inClass.ID, page.List[0].StudentID)

	count, err := svc.PendingCount(reviewer)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	// asking for a class outside the scope
	_, err = svc.PendingList(reviewer, PendingQuery{ClassID: intPtr(3)})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestPendingCategorySummaryCounts(t *testing.T) {
	db := newTestDB(t)
	svc := NewReviewService(db)
	teacher := createUser(t, db, "t1", entity.RoleTeacher, nil)
	applicant := createUser(t, db, "s1", entity.RoleStudent, intPtr(1))

	createApplication(t, db, applicant, entity.StatusPendingTeacher)
	createApplication(t, db, applicant, entity.StatusPendingTeacher)
	createApplication(t, db, applicant, entity.StatusPendingReview)

	stats, err := svc.PendingCategorySummary(teacher, nil)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "intellectual", stats[0].Category)
	assert.Equal(t, 2, stats[0].PendingCount)
}

func TestReviewDetailScopeAndQueue(t *testing.T) {
	db := newTestDB(t)
	svc := NewReviewService(db)
	teacher := createUser(t, db, "t1", entity.RoleTeacher, nil)
	applicant := createUser(t, db, "s1", entity.RoleStudent, intPtr(1))

	app := createApplication(t, db, applicant, entity.StatusPendingTeacher)

	detail, err := svc.Detail(teacher, app.ID)
	require.NoError(t, err)
	assert.Equal(t, app.ID, detail.ID)
	assert.Equal(t, applicant.ID, detail.StudentID)
	require.Len(t, detail.Attachments, 1)

	// outside the teacher queue
	other := createApplication(t, db, applicant, entity.StatusPendingReview)
	_, err = svc.Detail(teacher, other.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestReviewHistoryFilters(t *testing.T) {
	db := newTestDB(t)
	svc := NewReviewService(db)
	teacher := createUser(t, db, "t1", entity.RoleTeacher, nil)
	applicant := createUser(t, db, "s1", entity.RoleStudent, intPtr(1))

	first := createApplication(t, db, applicant, entity.StatusPendingTeacher)
	second := createApplication(t, db, applicant, entity.StatusPendingTeacher)

	_, _, err := svc.Decide(teacher, first.ID, DecisionInput{Decision: "approved"})
	require.NoError(t, err)
	_, _, err = svc.Decide(teacher, second.ID, DecisionInput{
		Decision:   "rejected",
		ReasonCode: "EVIDENCE_MISSING",
		ReasonText: "no proof attached",
	})
	require.NoError(t, err)

	page, err := svc.History(teacher, "", nil, nil, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)

	page, err = svc.History(teacher, "rejected", nil, nil, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, page.Total)
	assert.Equal(t, second.ID, page.List[0].ApplicationID)
	assert.Equal(t, "no proof attached", page.List[0].ReasonText)

	_, err = svc.History(teacher, "bogus", nil, nil, 1, 10)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
