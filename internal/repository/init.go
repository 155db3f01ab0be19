package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/mailcat/mailcat/config"
	"github.com/mailcat/mailcat/interfaces"
	"github.com/mailcat/mailcat/internal/models"
)

type Repositories struct {
	MailboxRepository interfaces.MailboxRepository
	EmailRepository   interfaces.EmailRepository
}

func InitRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		MailboxRepository: NewMailboxRepository(db),
		EmailRepository:   NewEmailRepository(db),
	}
}

func MigrateDB(dbConfig *config.DatabaseConfig, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	sqlDB.SetMaxOpenConns(5)

	err = db.AutoMigrate(
		&models.Mailbox{},
		&models.Email{},
	)

	sqlDB.Close()

	sqlDB, _ = db.DB()
	sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConn)
	sqlDB.SetMaxOpenConns(dbConfig.MaxConn)
	sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Minute)

	return err
}
