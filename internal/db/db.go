package db

import (
	"log"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/anantara-app/backend/internal/billing"
	"github.com/anantara-app/backend/internal/chat"
	"github.com/anantara-app/backend/internal/config"
	"github.com/anantara-app/backend/internal/content"
	"github.com/anantara-app/backend/internal/email"
	"github.com/anantara-app/backend/internal/models"
	"github.com/anantara-app/backend/internal/reset"
)

// Connect opens the configured database and runs migrations.
func Connect(cfg config.Config) *gorm.DB {
	var (
		gdb *gorm.DB
		err error
	)

	switch cfg.DBDriver {
	case "sqlite":
		gdb, err = gorm.Open(sqlite.Open(cfg.DBDSN), &gorm.Config{})
	default:
		gdb, err = gorm.Open(mysql.Open(cfg.DBDSN), &gorm.Config{})
	}
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}

	if err := gdb.AutoMigrate(
		&models.User{},
		&reset.Token{},
		&chat.Session{},
		&chat.Message{},
		&billing.Payment{},
		&content.Prompt{},
		&content.Document{},
		&email.Job{},
	); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	return gdb
}
