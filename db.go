package main

import (
	"log"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"gymtrack/models"
	"gymtrack/pkg/progress"
)

var db *gorm.DB

func initDB() {
	var err error
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN is not set. This service requires a Postgres DSN in DB_DSN.")
	}
	db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect postgres database:", err)
	}
	// Control schema migrations with env DB_AUTO_MIGRATE (default true).
	shouldMigrate := true
	if v := os.Getenv("DB_AUTO_MIGRATE"); v != "" {
		lv := strings.ToLower(v)
		if lv == "false" || lv == "0" || lv == "no" {
			shouldMigrate = false
		}
	}
	if shouldMigrate {
		// Migrate models individually so a failure on one doesn't block others
		if err := db.AutoMigrate(&models.User{}); err != nil {
			log.Printf("migration warning (users): %v", err)
		}
		if err := db.AutoMigrate(&models.RefreshToken{}); err != nil {
			log.Printf("migration warning (refresh_tokens): %v", err)
		}
		if err := db.AutoMigrate(&models.ProgressEntry{}); err != nil {
			log.Printf("migration warning (progress_entries): %v", err)
		}
		if err := db.AutoMigrate(&models.ProcessedMessage{}); err != nil {
			log.Printf("migration warning (processed_messages): %v", err)
		}
	}
	seedDB()
}

func seedDB() {
	var count int64
	db.Model(&models.User{}).Where("username = ?", "admin").Count(&count)
	if count != 0 {
		return
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin123" // development fallback, change in production
	}
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	admin := models.User{Username: "admin", HashedPassword: hashedPassword, Role: models.RoleAdmin}
	db.Create(&admin)
	log.Println("Seeded admin user: username=admin")
}

// newProgressStore selects the progress backend: PROGRESS_STORE=file keeps
// state in a flat JSON file (PROGRESS_DATA, default trainer_data.json),
// anything else uses the Postgres connection.
func newProgressStore() (progress.Store, error) {
	if strings.EqualFold(os.Getenv("PROGRESS_STORE"), "file") {
		path := os.Getenv("PROGRESS_DATA")
		if path == "" {
			path = "trainer_data.json"
		}
		return progress.NewFileStore(path)
	}
	return progress.NewGormStore(db), nil
}
