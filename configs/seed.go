package configs

import (
	"log"

	"github.com/DarkStars1922/zcpt/entity"

	"golang.org/x/crypto/bcrypt"
)

// SeedAdmin creates the initial admin account from env, once.
func SeedAdmin() error {
	db := DB()
	account := getEnv("ADMIN_ACCOUNT", "")
	pass := getEnv("ADMIN_PASSWORD", "")
	if account == "" || pass == "" {
		log.Println("skip seeding admin: missing ADMIN_ACCOUNT/ADMIN_PASSWORD")
		return nil
	}

	var count int64
	db.Model(&entity.User{}).Where("account = ?", account).Count(&count)
	if count > 0 {
		log.Println("admin already exists:", account)
		return nil
	}

	hash, _ := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	admin := entity.User{
		Account:      account,
		PasswordHash: string(hash),
		Name:         "Admin",
		Role:         entity.RoleAdmin,
	}
	return db.Create(&admin).Error
}
