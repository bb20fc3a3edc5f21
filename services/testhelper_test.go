package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/DarkStars1922/zcpt/entity"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&entity.User{},
		&entity.ReviewerToken{},
		&entity.Application{},
		&entity.ReviewRecord{},
	))
	return db
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func intPtr(i int) *int { return &i }

func floatPtr(v float64) *float64 { return &v }

func createUser(t *testing.T, db *gorm.DB, account, role string, classID *int) *entity.User {
	t.Helper()
	user := &entity.User{
		Account:      account,
		PasswordHash: "x",
		Name:         account,
		Role:         role,
		ClassID:      classID,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func reloadUser(t *testing.T, db *gorm.DB, id uint) *entity.User {
	t.Helper()
	var user entity.User
	require.NoError(t, db.First(&user, id).Error)
	return &user
}

func reloadToken(t *testing.T, db *gorm.DB, id uint) *entity.ReviewerToken {
	t.Helper()
	var token entity.ReviewerToken
	require.NoError(t, db.First(&token, id).Error)
	return &token
}

func reloadApplication(t *testing.T, db *gorm.DB, id uint) *entity.Application {
	t.Helper()
	var app entity.Application
	require.NoError(t, db.First(&app, id).Error)
	return &app
}

// bindReviewer seeds an activated token plus the matching user pair.
func bindReviewer(t *testing.T, db *gorm.DB, student *entity.User, creator uint, classIDs []int, expiredAt time.Time) *entity.ReviewerToken {
	t.Helper()
	now := time.Now()
	token := &entity.ReviewerToken{
		Token:           "rvw_" + student.Account,
		TokenType:       entity.TokenTypeReviewer,
		CreatorUserID:   creator,
		ActivatedUserID: &student.ID,
		ActivatedAt:     &now,
		ExpiredAt:       expiredAt,
	}
	require.NoError(t, token.SetClassIDs(classIDs))
	require.NoError(t, db.Create(token).Error)

	require.NoError(t, db.Model(&entity.User{}).Where("id = ?", student.ID).
		Updates(map[string]any{"is_reviewer": true, "reviewer_token_id": token.ID}).Error)
	student.IsReviewer = true
	student.ReviewerTokenID = &token.ID
	return token
}
